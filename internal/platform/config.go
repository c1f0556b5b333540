package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	globalBinDir = "global-bin"
	tmpBinDir    = "tmp-bin"
	releaseDB    = "releases.db"
)

// Distribution describes one published name of the tool. The tool was
// renamed, so a current and a legacy distribution coexist.
type Distribution struct {
	// BinaryName is the executable's base name without extension.
	BinaryName string
	// Package is the npm package that pulls in the platform package.
	Package string
	// Scope is the npm scope platform packages are published under.
	Scope string
	// Legacy marks the pre-rename distribution.
	Legacy bool
}

var (
	// CurrentDistribution is the tool's current name.
	CurrentDistribution = Distribution{
		BinaryName: "postgres-language-server",
		Package:    "@postgres-language-server/cli",
		Scope:      "@postgres-language-server",
	}
	// LegacyDistribution is the tool's name before the rename.
	LegacyDistribution = Distribution{
		BinaryName: "postgrestools",
		Package:    "@postgrestools/postgrestools",
		Scope:      "@postgrestools",
		Legacy:     true,
	}
)

// Config is the immutable launcher configuration.
type Config struct {
	Platform   Platform
	StorageDir string

	Owner    string
	Repo     string
	Host     string
	API      string
	CacheTTL time.Duration
}

// Option customizes New.
type Option func(*Config)

// WithPlatform overrides the detected platform.
func WithPlatform(p Platform) Option {
	return func(c *Config) { c.Platform = p }
}

// WithRelease sets the repository releases are fetched from.
func WithRelease(owner, repo string) Option {
	return func(c *Config) {
		if owner != "" {
			c.Owner = owner
		}
		if repo != "" {
			c.Repo = repo
		}
	}
}

// WithEndpoints sets the download host and release API base URLs.
func WithEndpoints(host, api string) Option {
	return func(c *Config) {
		if host != "" {
			c.Host = strings.TrimRight(host, "/")
		}
		if api != "" {
			c.API = strings.TrimRight(api, "/")
		}
	}
}

// WithCacheTTL sets how long a fetched release list stays fresh.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Config) {
		if ttl > 0 {
			c.CacheTTL = ttl
		}
	}
}

// New builds a Config rooted at storageDir, defaulting to ~/.pglauncher.
func New(storageDir string, opts ...Option) (Config, error) {
	storageDir = strings.TrimSpace(storageDir)
	if storageDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("determine user home: %w", err)
		}
		storageDir = filepath.Join(home, ".pglauncher")
	}
	abs, err := filepath.Abs(storageDir)
	if err != nil {
		return Config{}, fmt.Errorf("resolve storage dir %s: %w", storageDir, err)
	}

	cfg := Config{
		Platform:   Current(),
		StorageDir: abs,
		Owner:      "supabase-community",
		Repo:       "postgres-language-server",
		Host:       "https://github.com",
		API:        "https://api.github.com",
		CacheTTL:   time.Hour,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg, nil
}

// Distributions returns the current then the legacy distribution.
func (c Config) Distributions() []Distribution {
	return []Distribution{CurrentDistribution, LegacyDistribution}
}

// Executable returns the on-disk file name of d's binary on this platform.
func (c Config) Executable(d Distribution) string {
	return c.Platform.Executable(d.BinaryName)
}

// GlobalBinDir holds binaries installed by the download flow.
func (c Config) GlobalBinDir() string {
	return filepath.Join(c.StorageDir, globalBinDir)
}

// TmpBinDir holds the per-version provisioned copies.
func (c Config) TmpBinDir() string {
	return filepath.Join(c.StorageDir, tmpBinDir)
}

// ReleaseDBPath is the sqlite file caching the release index.
func (c Config) ReleaseDBPath() string {
	return filepath.Join(c.StorageDir, releaseDB)
}

// InstalledPath is the well-known location of d's downloaded binary.
func (c Config) InstalledPath(d Distribution) string {
	return filepath.Join(c.GlobalBinDir(), c.Executable(d))
}

// PlatformPackage names the npm package carrying d's binary for this
// platform, for example "@postgres-language-server/cli-x86_64-linux-gnu".
func (c Config) PlatformPackage(d Distribution) (string, error) {
	arch, err := c.Platform.ArchToken()
	if err != nil {
		return "", err
	}
	var osPart string
	switch c.Platform.OS {
	case "darwin":
		osPart = "apple-darwin"
	case "linux":
		osPart = "linux-gnu"
	case "windows":
		osPart = "windows-msvc"
	default:
		return "", fmt.Errorf("unsupported operating system %q", c.Platform.OS)
	}
	return fmt.Sprintf("%s/cli-%s-%s", d.Scope, arch, osPart), nil
}

// AssetName is the release asset for d on this platform, for example
// "postgres-language-server_aarch64-apple-darwin".
func (c Config) AssetName(d Distribution) (string, error) {
	triple, err := c.Platform.Triple()
	if err != nil {
		return "", err
	}
	return d.BinaryName + "_" + triple, nil
}

// AssetURL is the download URL of d's asset for tag.
func (c Config) AssetURL(d Distribution, tag string) (string, error) {
	name, err := c.AssetName(d)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/%s/releases/download/%s/%s", c.Host, c.Owner, c.Repo, tag, name), nil
}

// IsLegacyBinary reports whether path names the legacy executable.
func (c Config) IsLegacyBinary(path string) bool {
	return filepath.Base(path) == c.Executable(LegacyDistribution)
}
