package discovery

import (
	"context"

	"github.com/spf13/afero"

	"pglauncher/internal/debug"
	pgerrors "pglauncher/internal/errors"
	"pglauncher/internal/telemetry"
)

// NotifyFunc receives strategy errors that the user should see.
type NotifyFunc func(error)

// Chain evaluates strategies in order and stops at the first hit.
type Chain struct {
	fs       afero.Fs
	notify   NotifyFunc
	recorder *telemetry.Recorder
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithChainFs overrides the filesystem used for the final existence check.
func WithChainFs(fs afero.Fs) ChainOption {
	return func(c *Chain) { c.fs = fs }
}

// WithNotify sets the callback for user-facing strategy errors.
func WithNotify(fn NotifyFunc) ChainOption {
	return func(c *Chain) { c.notify = fn }
}

// WithChainRecorder counts strategy outcomes.
func WithChainRecorder(r *telemetry.Recorder) ChainOption {
	return func(c *Chain) { c.recorder = r }
}

// NewChain returns a chain checking files on the OS filesystem.
func NewChain(opts ...ChainOption) *Chain {
	c := &Chain{fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve runs strategies sequentially. A strategy whose precondition is
// false is skipped. Errors are logged and count as "not found". The first
// located path that exists is returned after its OnSuccess hook runs; later
// strategies are never invoked. ok is false when nothing was found.
func (c *Chain) Resolve(ctx context.Context, strategies []Strategy, rc Context) (FindResult, bool) {
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			debug.Logf("resolution abandoned before %s: %v", s.Identity, err)
			return FindResult{}, false
		}
		if s.Precondition != nil && !s.Precondition(rc) {
			debug.Logf("strategy %s skipped: precondition not met", s.Identity)
			c.recorder.Resolution(ctx, s.Identity.String(), telemetry.OutcomeSkipped)
			continue
		}

		path, err := s.Locate(ctx, rc)
		if err != nil {
			debug.Logf("strategy %s failed: %v", s.Identity, err)
			c.recorder.Resolution(ctx, s.Identity.String(), telemetry.OutcomeFailed)
			if c.notify != nil && pgerrors.IsUserFacing(err) {
				c.notify(err)
			}
			continue
		}
		if path == "" {
			c.recorder.Resolution(ctx, s.Identity.String(), telemetry.OutcomeNotFound)
			continue
		}
		if _, err := c.fs.Stat(path); err != nil {
			debug.Logf("strategy %s returned %s but it does not exist: %v", s.Identity, path, err)
			c.recorder.Resolution(ctx, s.Identity.String(), telemetry.OutcomeNotFound)
			continue
		}

		result := FindResult{Binary: path, Identity: s.Identity, Label: s.Identity.Label()}
		c.recorder.Resolution(ctx, s.Identity.String(), telemetry.OutcomeFound)
		if s.OnSuccess != nil {
			s.OnSuccess(result)
		}
		return result, true
	}
	return FindResult{}, false
}
