package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

const (
	// KeyBin holds either a path or a map of platform identifier to path.
	KeyBin        = "bin"
	KeyStorageDir = "storage-dir"

	KeyReleaseOwner    = "release.owner"
	KeyReleaseRepo     = "release.repo"
	KeyReleaseHost     = "release.host"
	KeyReleaseAPI      = "release.api"
	KeyReleaseCacheTTL = "release.cache-ttl"

	KeyDownloadAutoConfirm = "download.auto-confirm"
	KeySkipUpdateCheck     = "skip-update-check"
	KeyDebug               = "debug"
)

const (
	DefaultReleaseOwner    = "supabase-community"
	DefaultReleaseRepo     = "postgres-language-server"
	DefaultReleaseHost     = "https://github.com"
	DefaultReleaseAPI      = "https://api.github.com"
	DefaultReleaseCacheTTL = time.Hour

	// ConfigDirName is used for both the user and the project config directory.
	ConfigDirName = ".pglauncher"
	envPrefix     = "PGL"
)

type initSettings struct {
	workingDir        string
	projectConfigPath string
	userConfigPath    string
}

// Option configures Initialize behaviour. Useful for tests to override paths.
type Option func(*initSettings)

// WithWorkingDir overrides the directory used for project config discovery.
func WithWorkingDir(dir string) Option {
	return func(cfg *initSettings) {
		cfg.workingDir = dir
	}
}

// WithProjectConfig explicitly sets the project config path instead of discovery.
func WithProjectConfig(path string) Option {
	return func(cfg *initSettings) {
		cfg.projectConfigPath = path
	}
}

// WithUserConfig overrides the default user config path.
func WithUserConfig(path string) Option {
	return func(cfg *initSettings) {
		cfg.userConfigPath = path
	}
}

var (
	configOnce sync.Once
	configMu   sync.RWMutex
	configInst *viper.Viper
	initErr    error
	// projectRoot is the directory containing the discovered project config, if any.
	projectRoot string
)

// Initialize loads configuration using the precedence:
// defaults < user config < project config < environment variables < overrides.
func Initialize(opts ...Option) error {
	configOnce.Do(func() {
		settings := initSettings{}
		for _, opt := range opts {
			opt(&settings)
		}
		initErr = configure(&settings)
	})
	return initErr
}

// ApplyOverrides injects values typically coming from CLI flags.
func ApplyOverrides(overrides map[string]any) error {
	if len(overrides) == 0 {
		return nil
	}
	if err := Initialize(); err != nil {
		return err
	}
	configMu.Lock()
	defer configMu.Unlock()
	if configInst == nil {
		return fmt.Errorf("configuration not initialized")
	}
	for k, v := range overrides {
		configInst.Set(k, v)
	}
	return nil
}

// Get returns the raw value stored under key, or nil when unset.
func Get(key string) any {
	v, err := getViper()
	if err != nil {
		return nil
	}
	return v.Get(key)
}

// GetString fetches a string configuration value, initializing on demand.
func GetString(key string) string {
	v, err := getViper()
	if err != nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool fetches a bool configuration value, initializing on demand.
func GetBool(key string) bool {
	v, err := getViper()
	if err != nil {
		return false
	}
	return v.GetBool(key)
}

// GetDuration fetches a duration configuration value, initializing on demand.
func GetDuration(key string) time.Duration {
	v, err := getViper()
	if err != nil {
		return 0
	}
	return v.GetDuration(key)
}

// ProjectRoot returns the directory that holds the discovered project config
// directory, or "" when no project config was found.
func ProjectRoot() string {
	configMu.RLock()
	defer configMu.RUnlock()
	return projectRoot
}

// Set updates a configuration key at runtime, initializing on demand.
func Set(key string, value any) error {
	if err := Initialize(); err != nil {
		return err
	}
	configMu.Lock()
	defer configMu.Unlock()
	if configInst == nil {
		return fmt.Errorf("configuration not initialized")
	}
	configInst.Set(key, value)
	return nil
}

func configure(settings *initSettings) error {
	workingDir := strings.TrimSpace(settings.workingDir)
	if workingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("determine working directory: %w", err)
		}
		workingDir = wd
	}

	userConfigPath := strings.TrimSpace(settings.userConfigPath)
	if userConfigPath == "" {
		path, err := defaultUserConfigPath()
		if err != nil {
			return err
		}
		userConfigPath = path
	}

	projectConfigPath := strings.TrimSpace(settings.projectConfigPath)
	if projectConfigPath == "" {
		path, err := findProjectConfig(workingDir)
		if err != nil {
			return err
		}
		projectConfigPath = path
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := mergeConfigFile(v, userConfigPath); err != nil {
		return fmt.Errorf("load user config: %w", err)
	}
	if err := mergeConfigFile(v, projectConfigPath); err != nil {
		return fmt.Errorf("load project config: %w", err)
	}

	configMu.Lock()
	defer configMu.Unlock()
	configInst = v
	projectRoot = ""
	if projectConfigPath != "" {
		if _, err := os.Stat(projectConfigPath); err == nil {
			projectRoot = filepath.Dir(filepath.Dir(projectConfigPath))
		}
	}
	return nil
}

func mergeConfigFile(v *viper.Viper, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}
	//nolint:gosec // G304: config loader intentionally reads user and project config files
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine user home: %w", err)
	}
	return filepath.Join(home, ConfigDirName, "config.yaml"), nil
}

func findProjectConfig(startDir string) (string, error) {
	if strings.TrimSpace(startDir) == "" {
		return "", nil
	}
	home, _ := os.UserHomeDir()
	dir := startDir
	for {
		// The user config lives in the same-named directory under home;
		// it must not be mistaken for a project config.
		if dir != home {
			candidate := filepath.Join(dir, ConfigDirName, "config.yaml")
			info, err := os.Stat(candidate)
			if err == nil {
				if info.IsDir() {
					return "", fmt.Errorf("config path %s is a directory", candidate)
				}
				return candidate, nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return "", fmt.Errorf("stat %s: %w", candidate, err)
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyStorageDir, "")
	v.SetDefault(KeyReleaseOwner, DefaultReleaseOwner)
	v.SetDefault(KeyReleaseRepo, DefaultReleaseRepo)
	v.SetDefault(KeyReleaseHost, DefaultReleaseHost)
	v.SetDefault(KeyReleaseAPI, DefaultReleaseAPI)
	v.SetDefault(KeyReleaseCacheTTL, DefaultReleaseCacheTTL)
	v.SetDefault(KeyDownloadAutoConfirm, false)
	v.SetDefault(KeySkipUpdateCheck, false)
	v.SetDefault(KeyDebug, false)
}

func getViper() (*viper.Viper, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	configMu.RLock()
	defer configMu.RUnlock()
	if configInst == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	return configInst, nil
}

// reset clears package state for tests.
func reset() {
	configMu.Lock()
	defer configMu.Unlock()
	configInst = nil
	initErr = nil
	projectRoot = ""
	configOnce = sync.Once{}
}

// ResetForTesting clears package state for tests in other packages and
// initializes against an empty temp directory. Returns the cleanup func.
func ResetForTesting(t interface{ TempDir() string }) func() {
	reset()
	tmp := t.TempDir()
	_ = Initialize(WithWorkingDir(tmp), WithUserConfig(filepath.Join(tmp, "user.yaml")))
	return reset
}
