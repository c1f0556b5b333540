package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"pglauncher/internal/config"
	"pglauncher/internal/debug"
	"pglauncher/internal/discovery"
	"pglauncher/internal/launcher"
	"pglauncher/internal/prompt"
	"pglauncher/internal/release"
	"pglauncher/internal/telemetry"
)

// engine is the part of launcher.Engine the commands drive.
type engine interface {
	Resolve(ctx context.Context, rc discovery.Context) (launcher.Resolution, bool, error)
	Download(ctx context.Context, tag string) (string, error)
	Releases(ctx context.Context) ([]release.Release, error)
	InstalledVersion(ctx context.Context) (string, string)
}

// buildEngine is swapped in tests.
var buildEngine = func(opts launcher.Options) (engine, error) {
	e, err := launcher.Build(opts)
	if err != nil {
		return nil, err
	}
	return e, nil
}

type rootFlags struct {
	debug       bool
	storageDir  string
	projectRoot string
	yes         bool
}

// app holds state shared by the commands of one invocation.
type app struct {
	flags    rootFlags
	recorder *telemetry.Recorder
	closers  []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pglauncher",
		Short:         "Locate, provision and launch postgres-language-server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVar(&a.flags.debug, "debug", false, "Write a debug log to ~/.pglauncher/debug.log")
	flags.StringVar(&a.flags.storageDir, "storage-dir", "", "Directory for downloaded and provisioned binaries")
	flags.StringVar(&a.flags.projectRoot, "project-root", "", "Project to resolve from (defaults to the discovered project config, then the working directory if it has a package.json)")
	flags.BoolVarP(&a.flags.yes, "yes", "y", false, "Download without asking and pick the latest release")

	cmd.AddCommand(newResolveCmd(a))
	cmd.AddCommand(newExecCmd(a))
	cmd.AddCommand(newDownloadCmd(a))
	cmd.AddCommand(newReleasesCmd(a))
	cmd.AddCommand(newWatchCmd(a))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// setup applies explicitly set flags on top of the loaded configuration and
// starts logging.
func (a *app) setup(cmd *cobra.Command) error {
	overrides := map[string]any{}
	flags := cmd.Flags()
	if flags.Changed("debug") {
		overrides[config.KeyDebug] = a.flags.debug
	}
	if flags.Changed("storage-dir") {
		overrides[config.KeyStorageDir] = strings.TrimSpace(a.flags.storageDir)
	}
	if flags.Changed("yes") {
		overrides[config.KeyDownloadAutoConfirm] = a.flags.yes
	}
	if err := config.ApplyOverrides(overrides); err != nil {
		return fmt.Errorf("apply flags: %w", err)
	}
	if err := config.Validate(); err != nil {
		return err
	}

	if config.GetBool(config.KeyDebug) {
		if err := debug.Init(true); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: debug log unavailable: %v\n", err)
		} else {
			a.closers = append(a.closers, debug.Close)
			a.startTelemetry()
		}
	}
	return nil
}

// startTelemetry exports metrics into the debug log.
func (a *app) startTelemetry() {
	provider, err := telemetry.NewWriterProvider(debug.Writer())
	if err != nil {
		debug.Logf("metrics disabled: %v", err)
		return
	}
	recorder, err := telemetry.NewRecorder(provider.Meter(telemetry.MeterName))
	if err != nil {
		debug.Logf("metrics disabled: %v", err)
		_ = provider.Shutdown(context.Background())
		return
	}
	a.recorder = recorder
	a.closers = append(a.closers, func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			debug.Logf("flush metrics: %v", err)
		}
	})
}

// engine builds the engine for cmd. Download progress is drawn on stderr.
func (a *app) engine(cmd *cobra.Command) (engine, *progressDisplay, error) {
	display := newProgressDisplay(cmd.ErrOrStderr())
	e, err := buildEngine(launcher.Options{
		Prompter: prompt.Terminal{AutoConfirm: config.GetBool(config.KeyDownloadAutoConfirm)},
		Notify: func(err error) {
			fmt.Fprint(cmd.ErrOrStderr(), renderNotice(noticeWarning, err.Error(), noticeWidth))
		},
		Progress: display.Report,
		Recorder: a.recorder,
	})
	if err != nil {
		return nil, nil, err
	}
	return e, display, nil
}

// resolutionContext picks the project root: the flag, then the directory of
// the discovered project config, then the working directory when it holds a
// package.json. Without any of these resolution is global.
func (a *app) resolutionContext() (discovery.Context, error) {
	root := strings.TrimSpace(a.flags.projectRoot)
	if root == "" {
		root = config.ProjectRoot()
	}
	if root == "" {
		root = packageDir()
	}
	if root == "" {
		return discovery.Context{}, nil
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return discovery.Context{}, fmt.Errorf("resolve project root %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return discovery.Context{}, fmt.Errorf("project root %s is not a directory", abs)
	}
	return discovery.Context{ProjectRoot: abs}, nil
}

// resolve runs one resolution and prints its notices to stderr.
func (a *app) resolve(cmd *cobra.Command) (engine, launcher.Resolution, error) {
	rc, err := a.resolutionContext()
	if err != nil {
		return nil, launcher.Resolution{}, err
	}
	e, display, err := a.engine(cmd)
	if err != nil {
		return nil, launcher.Resolution{}, err
	}
	res, ok, err := e.Resolve(cmd.Context(), rc)
	display.Stop()
	if err != nil {
		return nil, launcher.Resolution{}, err
	}
	if !ok {
		return nil, launcher.Resolution{}, errNotFound
	}
	for _, n := range res.Notices {
		fmt.Fprint(cmd.ErrOrStderr(), renderNotice(noticeKindStyle(n.Kind), n.Message, noticeWidth))
	}
	return e, res, nil
}

// packageDir returns the working directory if it contains a package.json.
func packageDir() string {
	wd, err := os.Getwd()
	if err != nil {
		debug.Logf("working directory: %v", err)
		return ""
	}
	info, err := os.Stat(filepath.Join(wd, "package.json"))
	if err != nil || info.IsDir() {
		return ""
	}
	return wd
}
