package discovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"pglauncher/internal/debug"
	pgerrors "pglauncher/internal/errors"
	"pglauncher/internal/platform"
)

// pnpManifests are tried in order.
var pnpManifests = []string{".pnp.cjs", ".pnp.js"}

// Installer performs the interactive download flow.
type Installer interface {
	// ConfirmDownload asks the user for consent. false with a nil error
	// means the user declined.
	ConfirmDownload(ctx context.Context) (bool, error)
	// Install downloads a release and returns the installed path.
	Install(ctx context.Context) (string, error)
}

// Deps are the collaborators strategies read from.
type Deps struct {
	Config platform.Config
	Fs     afero.Fs
	// Setting returns the raw configured binary value: a string, a map of
	// platform identifier to path, or nil.
	Setting func() any
	Getenv  func(string) string
	Modules ModuleResolver
	LoadPnP PnPLoader
	// Installer may be nil, in which case only an existing download is used.
	Installer Installer
}

func (d Deps) fs() afero.Fs {
	if d.Fs == nil {
		return afero.NewOsFs()
	}
	return d.Fs
}

// LocalStrategies is the ordering used when a single project root is known.
func LocalStrategies(d Deps) []Strategy {
	return []Strategy{
		SettingsLookup(d),
		PackageManagerLookup(d),
		PlugAndPlayLookup(d),
		PathLookup(d),
		DownloadFallback(d),
	}
}

// GlobalStrategies is the ordering used without a single project root.
func GlobalStrategies(d Deps) []Strategy {
	return []Strategy{
		SettingsLookup(d),
		PathLookup(d),
		DownloadFallback(d),
	}
}

// StrategiesFor picks the ordering matching rc.
func StrategiesFor(d Deps, rc Context) []Strategy {
	if rc.HasRoot() {
		return LocalStrategies(d)
	}
	return GlobalStrategies(d)
}

func logFound(r FindResult) {
	debug.Logf("found %s via %s", r.Binary, r.Identity)
}

// SettingsLookup reads the configured binary path.
func SettingsLookup(d Deps) Strategy {
	return Strategy{
		Identity: Settings,
		Locate: func(_ context.Context, rc Context) (string, error) {
			if d.Setting == nil {
				return "", nil
			}
			configured := settingFor(d.Setting(), d.Config.Platform.ID())
			if configured == "" {
				return "", nil
			}
			path := configured
			if !filepath.IsAbs(path) {
				if !rc.HasRoot() {
					return "", pgerrors.New(pgerrors.CodeConfigurationError,
						fmt.Sprintf("relative binary path %q needs a single project root to resolve against; use an absolute path", configured), nil)
				}
				path = filepath.Join(rc.ProjectRoot, path)
			}
			if !fileExists(d.fs(), path) {
				debug.Logf("configured binary %s does not exist", path)
				return "", nil
			}
			return path, nil
		},
		OnSuccess: logFound,
	}
}

// settingFor extracts the path for platformID from a raw setting value.
func settingFor(raw any, platformID string) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		s, _ := v[platformID].(string)
		return strings.TrimSpace(s)
	case map[string]string:
		return strings.TrimSpace(v[platformID])
	default:
		return ""
	}
}

// PackageManagerLookup finds the binary in the project's node_modules.
func PackageManagerLookup(d Deps) Strategy {
	return Strategy{
		Identity:     PackageManager,
		Precondition: hasRoot,
		Locate: func(ctx context.Context, rc Context) (string, error) {
			if d.Modules == nil {
				return "", nil
			}
			for _, dist := range d.Config.Distributions() {
				manifest, err := d.Modules.Resolve(ctx, dist.Package+"/package.json", rc.ProjectRoot)
				if err != nil {
					return "", fmt.Errorf("resolve %s: %w", dist.Package, err)
				}
				if manifest == "" {
					continue
				}
				platformPkg, err := d.Config.PlatformPackage(dist)
				if err != nil {
					debug.Logf("%s has no platform package for %s: %v", dist.Package, d.Config.Platform.ID(), err)
					continue
				}
				request := platformPkg + "/" + d.Config.Executable(dist)
				bin, err := d.Modules.Resolve(ctx, request, filepath.Dir(manifest))
				if err != nil {
					return "", fmt.Errorf("resolve %s: %w", platformPkg, err)
				}
				if bin != "" && fileExists(d.fs(), bin) {
					return bin, nil
				}
			}
			return "", nil
		},
		OnSuccess: logFound,
	}
}

// PlugAndPlayLookup resolves the binary through a Yarn Plug'n'Play manifest.
func PlugAndPlayLookup(d Deps) Strategy {
	return Strategy{
		Identity:     PlugAndPlay,
		Precondition: hasRoot,
		Locate: func(ctx context.Context, rc Context) (string, error) {
			if d.LoadPnP == nil {
				return "", nil
			}
			for _, name := range pnpManifests {
				manifest := filepath.Join(rc.ProjectRoot, name)
				if !fileExists(d.fs(), manifest) {
					continue
				}
				resolver := d.LoadPnP(manifest)
				for _, dist := range d.Config.Distributions() {
					platformPkg, err := d.Config.PlatformPackage(dist)
					if err != nil {
						continue
					}
					bin, err := resolver.Resolve(ctx, platformPkg+"/"+d.Config.Executable(dist), rc.ProjectRoot)
					if err != nil {
						debug.Logf("plug-and-play: %v", err)
						continue
					}
					if bin != "" && fileExists(d.fs(), bin) {
						return bin, nil
					}
				}
			}
			return "", nil
		},
		OnSuccess: logFound,
	}
}

// PathLookup searches the directories of the PATH variable.
func PathLookup(d Deps) Strategy {
	return Strategy{
		Identity: Path,
		Locate: func(_ context.Context, _ Context) (string, error) {
			getenv := d.Getenv
			if getenv == nil {
				getenv = os.Getenv
			}
			for _, dir := range filepath.SplitList(getenv("PATH")) {
				if dir == "" {
					continue
				}
				for _, dist := range d.Config.Distributions() {
					candidate := filepath.Join(dir, d.Config.Executable(dist))
					if isExecutable(d.fs(), candidate, d.Config.Platform) {
						return candidate, nil
					}
				}
			}
			return "", nil
		},
		OnSuccess: logFound,
	}
}

// DownloadFallback reuses a previous download or, with consent, downloads.
func DownloadFallback(d Deps) Strategy {
	return Strategy{
		Identity: Download,
		Locate: func(ctx context.Context, _ Context) (string, error) {
			for _, dist := range d.Config.Distributions() {
				installed := d.Config.InstalledPath(dist)
				if fileExists(d.fs(), installed) {
					return installed, nil
				}
			}
			if d.Installer == nil {
				return "", nil
			}
			ok, err := d.Installer.ConfirmDownload(ctx)
			if err != nil {
				return "", err
			}
			if !ok {
				debug.Log("download declined")
				return "", nil
			}
			return d.Installer.Install(ctx)
		},
		OnSuccess: logFound,
	}
}

func fileExists(fs afero.Fs, path string) bool {
	info, err := fs.Stat(path)
	return err == nil && !info.IsDir()
}

func isExecutable(fs afero.Fs, path string, p platform.Platform) bool {
	info, err := fs.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if p.OS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
