package launcher

import (
	"net/http"
	"os"
	"time"

	"github.com/spf13/afero"

	"pglauncher/internal/config"
	"pglauncher/internal/discovery"
	"pglauncher/internal/platform"
	"pglauncher/internal/probe"
	"pglauncher/internal/provision"
	"pglauncher/internal/release"
	"pglauncher/internal/telemetry"
)

// Options are the host-supplied pieces of a configured Engine.
type Options struct {
	Prompter Prompter
	Notify   discovery.NotifyFunc
	Progress release.ProgressFunc
	Recorder *telemetry.Recorder
	// Node is the node executable used for plug-and-play resolution.
	Node string
}

// PlatformConfig builds the frozen platform configuration from the
// configuration surface.
func PlatformConfig() (platform.Config, error) {
	return platform.New(config.GetString(config.KeyStorageDir),
		platform.WithRelease(config.GetString(config.KeyReleaseOwner), config.GetString(config.KeyReleaseRepo)),
		platform.WithEndpoints(config.GetString(config.KeyReleaseHost), config.GetString(config.KeyReleaseAPI)),
		platform.WithCacheTTL(config.GetDuration(config.KeyReleaseCacheTTL)),
	)
}

// Build assembles an Engine backed by the real filesystem, network and
// release cache.
func Build(opts Options) (*Engine, error) {
	cfg, err := PlatformConfig()
	if err != nil {
		return nil, err
	}

	fs := afero.NewOsFs()
	runner := probe.ExecRunner{}
	prober := probe.New(probe.WithRunner(runner), probe.WithRecorder(opts.Recorder))

	catalog := release.NewCatalog(cfg.API, cfg.Owner, cfg.Repo,
		release.WithStore(release.NewSQLiteStore(cfg.ReleaseDBPath())),
		release.WithTTL(cfg.CacheTTL),
		release.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
	)

	downloadOpts := []release.DownloaderOption{
		release.WithFs(fs),
		release.WithDownloadRecorder(opts.Recorder),
	}
	if opts.Progress != nil {
		downloadOpts = append(downloadOpts, release.WithProgress(opts.Progress))
	}
	downloader := release.NewDownloader(cfg, catalog.LatestVersion, downloadOpts...)

	node := opts.Node
	if node == "" {
		node = "node"
	}

	return New(cfg, Components{
		Chain: discovery.NewChain(
			discovery.WithChainFs(fs),
			discovery.WithNotify(opts.Notify),
			discovery.WithChainRecorder(opts.Recorder),
		),
		Deps: discovery.Deps{
			Fs:      fs,
			Setting: func() any { return config.Get(config.KeyBin) },
			Getenv:  os.Getenv,
			Modules: discovery.NodeModulesResolver{Fs: fs},
			LoadPnP: discovery.NodePnPLoader(node, runner),
		},
		Catalog:         catalog,
		Downloader:      downloader,
		Provisioner:     provision.New(cfg, prober, provision.WithFs(fs), provision.WithRecorder(opts.Recorder)),
		Prober:          prober,
		Prompter:        opts.Prompter,
		SkipUpdateCheck: config.GetBool(config.KeySkipUpdateCheck),
	}), nil
}
