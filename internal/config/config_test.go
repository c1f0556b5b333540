package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestInitializeLoadsDefaults(t *testing.T) {
	reset()
	t.Cleanup(reset)

	tmp := t.TempDir()
	userCfg := filepath.Join(tmp, "user.yaml")

	if err := Initialize(WithWorkingDir(tmp), WithUserConfig(userCfg)); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	if got := GetString(KeyReleaseOwner); got != DefaultReleaseOwner {
		t.Fatalf("expected default %s, got %q", KeyReleaseOwner, got)
	}
	if got := GetString(KeyReleaseHost); got != DefaultReleaseHost {
		t.Fatalf("expected default %s, got %q", KeyReleaseHost, got)
	}
	if got := GetDuration(KeyReleaseCacheTTL); got != time.Hour {
		t.Fatalf("expected default cache ttl of 1h, got %v", got)
	}
	if GetBool(KeyDownloadAutoConfirm) {
		t.Fatalf("expected %s to default to false", KeyDownloadAutoConfirm)
	}
	if Get(KeyBin) != nil {
		t.Fatalf("expected %s to be unset, got %v", KeyBin, Get(KeyBin))
	}
	if ProjectRoot() != "" {
		t.Fatalf("expected no project root, got %q", ProjectRoot())
	}
}

func TestProjectConfigOverridesUser(t *testing.T) {
	reset()
	t.Cleanup(reset)

	tmp := t.TempDir()
	projectDir := filepath.Join(tmp, "repo")
	nested := filepath.Join(projectDir, "packages", "api")
	mustMkdir(t, nested)
	writeFile(t, filepath.Join(projectDir, ConfigDirName, "config.yaml"), `
bin: ./tools/postgres-language-server
release:
  repo: fork
`)

	userCfg := filepath.Join(tmp, "user.yaml")
	writeFile(t, userCfg, `
bin: /opt/user/postgres-language-server
release:
  repo: user-fork
skip-update-check: true
`)

	if err := Initialize(WithWorkingDir(nested), WithUserConfig(userCfg)); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	if got := GetString(KeyBin); got != "./tools/postgres-language-server" {
		t.Fatalf("expected project bin to win, got %q", got)
	}
	if got := GetString(KeyReleaseRepo); got != "fork" {
		t.Fatalf("expected project release repo, got %q", got)
	}
	if !GetBool(KeySkipUpdateCheck) {
		t.Fatalf("expected user setting %s to survive the merge", KeySkipUpdateCheck)
	}
	if got := ProjectRoot(); got != projectDir {
		t.Fatalf("expected project root %q, got %q", projectDir, got)
	}
}

func TestBinAcceptsPlatformMap(t *testing.T) {
	reset()
	t.Cleanup(reset)

	tmp := t.TempDir()
	projectCfg := filepath.Join(tmp, ConfigDirName, "config.yaml")
	writeFile(t, projectCfg, `
bin:
  linux-x64: /opt/linux/postgres-language-server
  darwin-arm64: /opt/mac/postgres-language-server
`)

	if err := Initialize(WithWorkingDir(tmp), WithProjectConfig(projectCfg), WithUserConfig(filepath.Join(tmp, "none.yaml"))); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	raw, ok := Get(KeyBin).(map[string]any)
	if !ok {
		t.Fatalf("expected map value for %s, got %T", KeyBin, Get(KeyBin))
	}
	if raw["linux-x64"] != "/opt/linux/postgres-language-server" {
		t.Fatalf("unexpected linux entry %v", raw["linux-x64"])
	}
}

func TestEnvironmentAndOverridesPrecedence(t *testing.T) {
	reset()
	t.Cleanup(reset)

	tmp := t.TempDir()
	projectCfg := filepath.Join(tmp, ConfigDirName, "config.yaml")
	writeFile(t, projectCfg, `
storage-dir: /project/store
download:
  auto-confirm: false
`)

	t.Setenv("PGL_STORAGE_DIR", "/env/store")
	t.Setenv("PGL_DOWNLOAD_AUTO_CONFIRM", "true")

	if err := Initialize(WithWorkingDir(tmp), WithProjectConfig(projectCfg), WithUserConfig(filepath.Join(tmp, "none.yaml"))); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	if got := GetString(KeyStorageDir); got != "/env/store" {
		t.Fatalf("expected env override for %s, got %q", KeyStorageDir, got)
	}
	if !GetBool(KeyDownloadAutoConfirm) {
		t.Fatalf("expected env override for %s", KeyDownloadAutoConfirm)
	}

	if err := ApplyOverrides(map[string]any{KeyStorageDir: "/flag/store"}); err != nil {
		t.Fatalf("ApplyOverrides returned error: %v", err)
	}
	if got := GetString(KeyStorageDir); got != "/flag/store" {
		t.Fatalf("expected CLI override for %s, got %q", KeyStorageDir, got)
	}
}

func TestProjectConfigDirectoryIsRejected(t *testing.T) {
	reset()
	t.Cleanup(reset)

	tmp := t.TempDir()
	mustMkdir(t, filepath.Join(tmp, ConfigDirName, "config.yaml"))

	if err := Initialize(WithWorkingDir(tmp), WithUserConfig(filepath.Join(tmp, "none.yaml"))); err == nil {
		t.Fatal("expected error when config path is a directory")
	}
}

func mustMkdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	mustMkdir(t, filepath.Dir(path))
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write file %s: %v", path, err)
	}
}
