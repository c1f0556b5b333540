// Package launcher turns a resolution request into an executable path:
// discovery, provisioning, and the notices shown along the way.
package launcher

import (
	"context"
	"fmt"

	"pglauncher/internal/debug"
	"pglauncher/internal/discovery"
	pgerrors "pglauncher/internal/errors"
	"pglauncher/internal/platform"
	"pglauncher/internal/provision"
	"pglauncher/internal/release"
)

// Catalog answers questions about published releases.
type Catalog interface {
	All(ctx context.Context) ([]release.Release, error)
	LatestVersion(ctx context.Context) (string, error)
	VersionOutdated(ctx context.Context, version string) (bool, error)
}

// Downloader installs a release and returns the installed path.
type Downloader interface {
	Download(ctx context.Context, tag string) (string, error)
}

// Provisioner copies a binary into the version-keyed cache.
type Provisioner interface {
	Provision(ctx context.Context, original string) (provision.Provisioned, error)
}

// Prober reports a binary's version.
type Prober interface {
	Version(ctx context.Context, path string) (string, error)
}

// Prompter asks the user about downloads.
type Prompter interface {
	ConfirmDownload(ctx context.Context) (bool, error)
	SelectRelease(ctx context.Context, releases []release.Release, installed string) (string, error)
}

// NoticeKind classifies a Notice.
type NoticeKind string

const (
	NoticeMigration NoticeKind = "migration"
	NoticeUpdate    NoticeKind = "update"
)

// Notice is a message for the user produced during resolution.
type Notice struct {
	Kind    NoticeKind `json:"kind" yaml:"kind"`
	Message string     `json:"message" yaml:"message"`
}

// Resolution is the outcome of Engine.Resolve.
type Resolution struct {
	Found   discovery.FindResult `json:"found" yaml:"found"`
	Version string               `json:"version" yaml:"version"`
	// Executable is the path to run: the provisioned copy when provisioning
	// succeeded, the original binary otherwise.
	Executable  string   `json:"executable" yaml:"executable"`
	Provisioned bool     `json:"provisioned" yaml:"provisioned"`
	Notices     []Notice `json:"notices,omitempty" yaml:"notices,omitempty"`
}

// Engine runs resolutions. Callers serialize Resolve calls per project root.
type Engine struct {
	cfg             platform.Config
	chain           *discovery.Chain
	deps            discovery.Deps
	catalog         Catalog
	downloader      Downloader
	provisioner     Provisioner
	prober          Prober
	prompter        Prompter
	skipUpdateCheck bool
}

// Components are the collaborators an Engine is assembled from. Deps.Installer
// is filled in by New.
type Components struct {
	Chain           *discovery.Chain
	Deps            discovery.Deps
	Catalog         Catalog
	Downloader      Downloader
	Provisioner     Provisioner
	Prober          Prober
	Prompter        Prompter
	SkipUpdateCheck bool
}

// New assembles an Engine.
func New(cfg platform.Config, c Components) *Engine {
	e := &Engine{
		cfg:             cfg,
		chain:           c.Chain,
		deps:            c.Deps,
		catalog:         c.Catalog,
		downloader:      c.Downloader,
		provisioner:     c.Provisioner,
		prober:          c.Prober,
		prompter:        c.Prompter,
		skipUpdateCheck: c.SkipUpdateCheck,
	}
	if e.chain == nil {
		e.chain = discovery.NewChain()
	}
	e.deps.Config = cfg
	if e.prompter != nil && e.catalog != nil && e.downloader != nil {
		e.deps.Installer = installer{engine: e}
	}
	return e
}

// Resolve finds, provisions and describes the binary for rc. ok is false
// when no strategy found it; that is not an error. The returned error is
// reserved for invariant violations.
func (e *Engine) Resolve(ctx context.Context, rc discovery.Context) (Resolution, bool, error) {
	found, ok := e.chain.Resolve(ctx, discovery.StrategiesFor(e.deps, rc), rc)
	if !ok {
		debug.Logf("no binary found (project root %q)", rc.ProjectRoot)
		return Resolution{}, false, nil
	}

	res := Resolution{Found: found, Executable: found.Binary}
	if e.provisioner != nil {
		prov, err := e.provisioner.Provision(ctx, found.Binary)
		if err != nil {
			return Resolution{}, false, err
		}
		res.Version = prov.SourceVersion
		if prov.CachePath != "" {
			res.Executable = prov.CachePath
			res.Provisioned = true
		}
	} else if e.prober != nil {
		version, err := e.prober.Version(ctx, found.Binary)
		if err != nil {
			return Resolution{}, false, pgerrors.New(pgerrors.CodeInvariantViolation,
				fmt.Sprintf("binary %s exists but reports no version", found.Binary), err)
		}
		res.Version = version
	}

	if msg, ok := discovery.MigrationNotice(e.cfg, found); ok {
		res.Notices = append(res.Notices, Notice{Kind: NoticeMigration, Message: msg})
	}
	if notice, ok := e.updateNotice(ctx, found, res.Version); ok {
		res.Notices = append(res.Notices, notice)
	}
	return res, true, nil
}

// updateNotice only concerns downloaded binaries; package-managed and
// user-provided binaries are updated through their own channels.
func (e *Engine) updateNotice(ctx context.Context, found discovery.FindResult, version string) (Notice, bool) {
	if e.skipUpdateCheck || e.catalog == nil || version == "" || found.Identity != discovery.Download {
		return Notice{}, false
	}
	outdated, err := e.catalog.VersionOutdated(ctx, version)
	if err != nil {
		debug.Logf("update check failed: %v", err)
		return Notice{}, false
	}
	if !outdated {
		return Notice{}, false
	}
	latest, err := e.catalog.LatestVersion(ctx)
	if err != nil {
		debug.Logf("update check failed: %v", err)
		return Notice{}, false
	}
	return Notice{
		Kind: NoticeUpdate,
		Message: fmt.Sprintf("postgres-language-server %s is available (installed: %s). Run `pglauncher download %s` to update.",
			latest, version, latest),
	}, true
}

// Releases lists published releases, newest first.
func (e *Engine) Releases(ctx context.Context) ([]release.Release, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("release catalog not configured")
	}
	return e.catalog.All(ctx)
}

// InstalledVersion reports the version of the downloaded binary, if any.
func (e *Engine) InstalledVersion(ctx context.Context) (string, string) {
	fs := e.deps.Fs
	for _, dist := range e.cfg.Distributions() {
		path := e.cfg.InstalledPath(dist)
		if fs != nil {
			if _, err := fs.Stat(path); err != nil {
				continue
			}
		}
		if e.prober == nil {
			return "", path
		}
		version, err := e.prober.Version(ctx, path)
		if err != nil {
			debug.Logf("installed binary %s: %v", path, err)
			continue
		}
		return version, path
	}
	return "", ""
}

// Download installs tag, or asks which release to install when tag is empty.
// An empty path with a nil error means the user chose nothing.
func (e *Engine) Download(ctx context.Context, tag string) (string, error) {
	if e.downloader == nil {
		return "", fmt.Errorf("downloader not configured")
	}
	if tag == "" {
		chosen, err := e.selectRelease(ctx)
		if err != nil || chosen == "" {
			return "", err
		}
		tag = chosen
	}
	return e.downloader.Download(ctx, tag)
}

func (e *Engine) selectRelease(ctx context.Context) (string, error) {
	if e.catalog == nil || e.prompter == nil {
		return "", fmt.Errorf("release selection not configured")
	}
	releases, err := e.catalog.All(ctx)
	if err != nil {
		return "", pgerrors.New(pgerrors.CodeDownloadFailed, "list releases", err)
	}
	installed, _ := e.InstalledVersion(ctx)
	return e.prompter.SelectRelease(ctx, releases, installed)
}

// installer adapts the engine to the download strategy.
type installer struct {
	engine *Engine
}

func (i installer) ConfirmDownload(ctx context.Context) (bool, error) {
	return i.engine.prompter.ConfirmDownload(ctx)
}

func (i installer) Install(ctx context.Context) (string, error) {
	return i.engine.Download(ctx, "")
}
