package provision

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pglauncher/internal/debug"
	pgerrors "pglauncher/internal/errors"
	"pglauncher/internal/platform"
)

type fakeProber struct {
	version string
	err     error
	calls   int
}

func (f *fakeProber) Version(ctx context.Context, path string) (string, error) {
	f.calls++
	return f.version, f.err
}

type countingCopier struct {
	calls int
	err   error
}

func (c *countingCopier) copy(fs afero.Fs, src, dst string) error {
	c.calls++
	if c.err != nil {
		return c.err
	}
	return CopyFile(fs, src, dst)
}

func newTestProvisioner(t *testing.T, prober VersionProber, opts ...Option) (*Provisioner, afero.Fs, platform.Config) {
	t.Helper()
	cfg, err := platform.New("/store", platform.WithPlatform(platform.Platform{OS: "linux", Arch: "amd64"}))
	require.NoError(t, err)
	fs := afero.NewMemMapFs()
	opts = append([]Option{WithFs(fs)}, opts...)
	return New(cfg, prober, opts...), fs, cfg
}

func writeBinary(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
}

func TestProvisionCopiesOnceAndReuses(t *testing.T) {
	copier := &countingCopier{}
	p, fs, cfg := newTestProvisioner(t, &fakeProber{version: "0.9.0"}, WithCopier(copier.copy))
	original := "/proj/node_modules/.bin/postgres-language-server"
	writeBinary(t, fs, original, "binary-bytes")

	first, err := p.Provision(context.Background(), original)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.TmpBinDir(), "postgres-language-server-0.9.0"), first.CachePath)
	assert.Equal(t, "0.9.0", first.SourceVersion)
	assert.False(t, first.Reused)

	second, err := p.Provision(context.Background(), original)
	require.NoError(t, err)
	assert.Equal(t, first.CachePath, second.CachePath)
	assert.True(t, second.Reused)
	assert.Equal(t, 1, copier.calls, "second provisioning must not copy again")

	data, err := afero.ReadFile(fs, first.CachePath)
	require.NoError(t, err)
	assert.Equal(t, "binary-bytes", string(data))

	info, err := fs.Stat(first.CachePath)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o100, "cached copy must be executable")

	origInfo, err := fs.Stat(original)
	require.NoError(t, err)
	assert.NotZero(t, origInfo.Mode().Perm()&0o100, "original must be made executable")
}

func TestProvisionKeysByVersionOnly(t *testing.T) {
	copier := &countingCopier{}
	p, fs, _ := newTestProvisioner(t, &fakeProber{version: "1.0.0"}, WithCopier(copier.copy))
	writeBinary(t, fs, "/a/postgres-language-server", "first")
	writeBinary(t, fs, "/b/postgres-language-server", "second")

	first, err := p.Provision(context.Background(), "/a/postgres-language-server")
	require.NoError(t, err)
	second, err := p.Provision(context.Background(), "/b/postgres-language-server")
	require.NoError(t, err)

	assert.Equal(t, first.CachePath, second.CachePath)
	assert.Equal(t, 1, copier.calls)
	data, err := afero.ReadFile(fs, second.CachePath)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestProvisionNoVersionIsInvariantViolation(t *testing.T) {
	p, fs, _ := newTestProvisioner(t, &fakeProber{err: errors.New("exit status 1")})
	writeBinary(t, fs, "/bin/postgrestools", "x")

	result, err := p.Provision(context.Background(), "/bin/postgrestools")
	require.Error(t, err)
	assert.True(t, pgerrors.IsCode(err, pgerrors.CodeInvariantViolation))
	assert.Empty(t, result.CachePath)
}

func TestProvisionCopyFailureFallsBack(t *testing.T) {
	var logs bytes.Buffer
	debug.SetOutput(&logs)
	t.Cleanup(func() { debug.SetOutput(nil) })

	copier := &countingCopier{err: errors.New("disk full")}
	p, fs, _ := newTestProvisioner(t, &fakeProber{version: "0.9.0"}, WithCopier(copier.copy))
	writeBinary(t, fs, "/bin/postgres-language-server", "x")

	result, err := p.Provision(context.Background(), "/bin/postgres-language-server")
	require.NoError(t, err)
	assert.Empty(t, result.CachePath)
	assert.Equal(t, "0.9.0", result.SourceVersion)
	assert.True(t, strings.Contains(logs.String(), "disk full"), "copy failure should be logged")
}

func TestProvisionDirectoryFailureFallsBack(t *testing.T) {
	cfg, err := platform.New("/store", platform.WithPlatform(platform.Platform{OS: "linux", Arch: "amd64"}))
	require.NoError(t, err)
	base := afero.NewMemMapFs()
	writeBinary(t, base, "/bin/postgres-language-server", "x")

	p := New(cfg, &fakeProber{version: "0.9.0"}, WithFs(afero.NewReadOnlyFs(base)))
	result, err := p.Provision(context.Background(), "/bin/postgres-language-server")
	require.NoError(t, err)
	assert.Empty(t, result.CachePath)
}

func TestProvisionMissingOriginal(t *testing.T) {
	prober := &fakeProber{version: "0.9.0"}
	p, _, _ := newTestProvisioner(t, prober)

	result, err := p.Provision(context.Background(), "/nowhere/postgres-language-server")
	require.NoError(t, err)
	assert.Empty(t, result.CachePath)
	assert.Zero(t, prober.calls)
}

func TestCachePathOnWindowsKeepsExtension(t *testing.T) {
	cfg, err := platform.New("/store", platform.WithPlatform(platform.Platform{OS: "windows", Arch: "amd64"}))
	require.NoError(t, err)
	p := New(cfg, &fakeProber{})

	got := p.CachePath(`C:\tools\postgrestools.exe`, "0.8.1")
	assert.True(t, strings.HasSuffix(got, "postgrestools-0.8.1.exe"), got)
}
