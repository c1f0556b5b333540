package platform

import (
	"path/filepath"
	"testing"
	"time"
)

func TestPlatformID(t *testing.T) {
	tests := []struct {
		p    Platform
		want string
	}{
		{Platform{OS: "linux", Arch: "amd64"}, "linux-x64"},
		{Platform{OS: "darwin", Arch: "arm64"}, "darwin-arm64"},
		{Platform{OS: "windows", Arch: "amd64"}, "win32-x64"},
		{Platform{OS: "windows", Arch: "arm64"}, "win32-arm64"},
	}
	for _, tt := range tests {
		if got := tt.p.ID(); got != tt.want {
			t.Fatalf("%+v.ID() = %q, want %q", tt.p, got, tt.want)
		}
	}
}

func TestTriple(t *testing.T) {
	tests := []struct {
		p       Platform
		want    string
		wantErr bool
	}{
		{Platform{OS: "linux", Arch: "amd64"}, "x86_64-unknown-linux-gnu", false},
		{Platform{OS: "darwin", Arch: "arm64"}, "aarch64-apple-darwin", false},
		{Platform{OS: "windows", Arch: "amd64"}, "x86_64-pc-windows-msvc", false},
		{Platform{OS: "freebsd", Arch: "amd64"}, "", true},
		{Platform{OS: "linux", Arch: "386"}, "", true},
	}
	for _, tt := range tests {
		got, err := tt.p.Triple()
		if tt.wantErr {
			if err == nil {
				t.Fatalf("expected error for %+v", tt.p)
			}
			if tt.p.Supported() {
				t.Fatalf("expected %+v to be unsupported", tt.p)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error for %+v: %v", tt.p, err)
		}
		if got != tt.want {
			t.Fatalf("%+v.Triple() = %q, want %q", tt.p, got, tt.want)
		}
	}
}

func TestExecutable(t *testing.T) {
	win := Platform{OS: "windows", Arch: "amd64"}
	if got := win.Executable("postgrestools"); got != "postgrestools.exe" {
		t.Fatalf("unexpected windows executable %q", got)
	}
	if got := win.Executable("postgrestools.exe"); got != "postgrestools.exe" {
		t.Fatalf("expected extension not to be doubled, got %q", got)
	}
	linux := Platform{OS: "linux", Arch: "amd64"}
	if got := linux.Executable("postgrestools"); got != "postgrestools" {
		t.Fatalf("unexpected linux executable %q", got)
	}
}

func TestConfigLayout(t *testing.T) {
	dir := t.TempDir()
	cfg, err := New(dir,
		WithPlatform(Platform{OS: "linux", Arch: "arm64"}),
		WithEndpoints("https://mirror.example/", ""),
		WithCacheTTL(5*time.Minute),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if got := cfg.GlobalBinDir(); got != filepath.Join(dir, "global-bin") {
		t.Fatalf("unexpected global bin dir %q", got)
	}
	if got := cfg.TmpBinDir(); got != filepath.Join(dir, "tmp-bin") {
		t.Fatalf("unexpected tmp bin dir %q", got)
	}
	if got := cfg.InstalledPath(LegacyDistribution); got != filepath.Join(dir, "global-bin", "postgrestools") {
		t.Fatalf("unexpected legacy install path %q", got)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Fatalf("expected cache ttl override, got %v", cfg.CacheTTL)
	}

	url, err := cfg.AssetURL(CurrentDistribution, "0.9.0")
	if err != nil {
		t.Fatalf("AssetURL: %v", err)
	}
	want := "https://mirror.example/supabase-community/postgres-language-server/releases/download/0.9.0/postgres-language-server_aarch64-unknown-linux-gnu"
	if url != want {
		t.Fatalf("AssetURL = %q, want %q", url, want)
	}

	pkg, err := cfg.PlatformPackage(LegacyDistribution)
	if err != nil {
		t.Fatalf("PlatformPackage: %v", err)
	}
	if pkg != "@postgrestools/cli-aarch64-linux-gnu" {
		t.Fatalf("unexpected platform package %q", pkg)
	}
}

func TestIsLegacyBinary(t *testing.T) {
	cfg, err := New(t.TempDir(), WithPlatform(Platform{OS: "windows", Arch: "amd64"}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !cfg.IsLegacyBinary(filepath.Join("C:", "tools", "postgrestools.exe")) {
		t.Fatal("expected legacy executable to be detected")
	}
	if cfg.IsLegacyBinary(filepath.Join("C:", "tools", "postgres-language-server.exe")) {
		t.Fatal("expected current executable not to be legacy")
	}
}
