package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	pgerrors "pglauncher/internal/errors"
)

func initWithProject(t *testing.T, body string) {
	t.Helper()
	reset()
	t.Cleanup(reset)

	tmp := t.TempDir()
	projectCfg := filepath.Join(tmp, ConfigDirName, "config.yaml")
	if err := os.MkdirAll(filepath.Dir(projectCfg), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(projectCfg, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := Initialize(WithWorkingDir(tmp), WithUserConfig(filepath.Join(tmp, "user.yaml"))); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	initWithProject(t, "")
	if err := Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestValidateAcceptsPlatformMapping(t *testing.T) {
	initWithProject(t, "bin:\n  linux-x64: ./bin/pgls\n  darwin-arm64: /opt/pgls\nrelease:\n  cache-ttl: 30m\n")
	if err := Validate(); err != nil {
		t.Fatalf("expected mapping to validate, got %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "unknown platform", body: "bin:\n  beos-x64: /opt/pgls\n", want: `unknown platform "beos-x64"`},
		{name: "non-string path", body: "bin:\n  linux-x64: 3\n", want: "expected a path"},
		{name: "list", body: "bin:\n  - /opt/pgls\n", want: "expected a path or a mapping"},
		{name: "ttl", body: "release:\n  cache-ttl: soon\n", want: "cache-ttl"},
		{name: "negative ttl", body: "release:\n  cache-ttl: -1h\n", want: "must not be negative"},
		{name: "endpoint", body: "release:\n  api: ftp://example.com\n", want: "not an http(s) URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			initWithProject(t, tt.body)
			err := Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !pgerrors.IsCode(err, pgerrors.CodeConfigurationError) {
				t.Fatalf("expected configuration error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in %q", tt.want, err.Error())
			}
		})
	}
}
