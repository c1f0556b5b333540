// Package provision keeps a private, per-version copy of the resolved binary
// so the launcher never executes a file an installer may be replacing.
package provision

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"pglauncher/internal/debug"
	pgerrors "pglauncher/internal/errors"
	"pglauncher/internal/platform"
	"pglauncher/internal/telemetry"
)

// VersionProber reports the version a binary claims to be.
type VersionProber interface {
	Version(ctx context.Context, path string) (string, error)
}

// CopyFunc copies src to dst on fs.
type CopyFunc func(fs afero.Fs, src, dst string) error

// Provisioned describes the outcome of provisioning one binary. An empty
// CachePath means the caller must run the original binary.
type Provisioned struct {
	SourceVersion string
	CachePath     string
	Reused        bool
}

// Provisioner copies binaries into the version-keyed temp cache.
type Provisioner struct {
	cfg      platform.Config
	fs       afero.Fs
	prober   VersionProber
	copy     CopyFunc
	recorder *telemetry.Recorder
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithFs overrides the filesystem.
func WithFs(fs afero.Fs) Option {
	return func(p *Provisioner) { p.fs = fs }
}

// WithCopier overrides how bytes are copied into the cache.
func WithCopier(fn CopyFunc) Option {
	return func(p *Provisioner) { p.copy = fn }
}

// WithRecorder counts provisioning outcomes.
func WithRecorder(r *telemetry.Recorder) Option {
	return func(p *Provisioner) { p.recorder = r }
}

// New returns a Provisioner writing under cfg.TmpBinDir().
func New(cfg platform.Config, prober VersionProber, opts ...Option) *Provisioner {
	p := &Provisioner{
		cfg:    cfg,
		fs:     afero.NewOsFs(),
		prober: prober,
		copy:   CopyFile,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CachePath returns where the copy of original at version lives.
func (p *Provisioner) CachePath(original, version string) string {
	base := strings.TrimSuffix(filepath.Base(original), ".exe")
	return filepath.Join(p.cfg.TmpBinDir(), p.cfg.Platform.Executable(base+"-"+version))
}

// Provision ensures a copy of original exists in the temp cache and returns
// it. Filesystem failures are logged and yield an empty CachePath. The only
// error returned is an invariant violation: an existing binary that reports
// no version.
func (p *Provisioner) Provision(ctx context.Context, original string) (Provisioned, error) {
	if _, err := p.fs.Stat(original); err != nil {
		debug.Logf("provision: stat %s: %v", original, err)
		p.recorder.Provision(ctx, telemetry.OutcomeFailed)
		return Provisioned{}, nil
	}

	version, err := p.prober.Version(ctx, original)
	if err != nil {
		p.recorder.Provision(ctx, telemetry.OutcomeFailed)
		return Provisioned{}, pgerrors.New(pgerrors.CodeInvariantViolation,
			fmt.Sprintf("binary %s exists but reports no version", original), err)
	}

	result := Provisioned{SourceVersion: version}
	dest := p.CachePath(original, version)

	if _, err := p.fs.Stat(dest); err == nil {
		debug.Logf("provision: reusing %s", dest)
		result.CachePath = dest
		result.Reused = true
		p.recorder.Provision(ctx, telemetry.OutcomeReused)
		return result, nil
	}

	if err := p.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		debug.Logf("provision: create %s: %v", filepath.Dir(dest), err)
		p.recorder.Provision(ctx, telemetry.OutcomeFailed)
		return result, nil
	}
	if err := p.copy(p.fs, original, dest); err != nil {
		debug.Logf("provision: copy %s to %s: %v", original, dest, err)
		p.recorder.Provision(ctx, telemetry.OutcomeFailed)
		return result, nil
	}
	//nolint:gosec // G302: the original must stay runnable
	if err := p.fs.Chmod(original, 0o755); err != nil {
		debug.Logf("provision: chmod %s: %v", original, err)
	}

	debug.Logf("provision: copied %s to %s", original, dest)
	result.CachePath = dest
	p.recorder.Provision(ctx, telemetry.OutcomeCopied)
	return result, nil
}

// CopyFile copies src to an executable dst, writing through a temp file so
// a concurrent reader never sees a half-written binary.
func CopyFile(fs afero.Fs, src, dst string) error {
	source, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = source.Close() }()

	tmp, err := afero.TempFile(fs, filepath.Dir(dst), "."+filepath.Base(dst)+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, source); err != nil {
		_ = tmp.Close()
		_ = fs.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmpName)
		return err
	}
	//nolint:gosec // G302: binary needs to be executable
	if err := fs.Chmod(tmpName, 0o755); err != nil {
		_ = fs.Remove(tmpName)
		return err
	}
	if err := fs.Rename(tmpName, dst); err != nil {
		_ = fs.Remove(tmpName)
		return err
	}
	return nil
}
