// Package probe asks a binary for its version.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"pglauncher/internal/telemetry"
)

// VersionFlag is the argument the tool answers with its version.
const VersionFlag = "--version"

// ErrorKind categorizes probe failures.
type ErrorKind string

const (
	ErrorNotInstalled  ErrorKind = "not_installed"
	ErrorCommandFailed ErrorKind = "command_failed"
	ErrorParse         ErrorKind = "parse_failed"
)

// Error wraps a probe failure with its category.
type Error struct {
	Kind ErrorKind
	Bin  string
	Err  error
}

// Error implements the error interface.
func (e Error) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("probe %s: %v", e.Bin, e.Err)
	case e.Kind == ErrorNotInstalled:
		return fmt.Sprintf("probe %s: binary not found", e.Bin)
	case e.Kind == ErrorParse:
		return fmt.Sprintf("probe %s: no version in output", e.Bin)
	default:
		return fmt.Sprintf("probe %s: version command failed", e.Bin)
	}
}

// Unwrap exposes the wrapped error.
func (e Error) Unwrap() error {
	return e.Err
}

// CommandRunner executes external commands, allowing tests to inject stubs.
type CommandRunner interface {
	Run(ctx context.Context, bin string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec and returns combined output.
type ExecRunner struct{}

// Run implements CommandRunner.
func (ExecRunner) Run(ctx context.Context, bin string, args ...string) ([]byte, error) {
	//nolint:gosec // G204: the binary path comes from discovery, not user input
	cmd := exec.CommandContext(ctx, bin, args...)
	return cmd.CombinedOutput()
}

// Prober extracts version strings from binaries.
type Prober struct {
	runner   CommandRunner
	recorder *telemetry.Recorder
	timeout  time.Duration
}

// Option configures a Prober.
type Option func(*Prober)

// WithRunner overrides the command runner.
func WithRunner(r CommandRunner) Option {
	return func(p *Prober) { p.runner = r }
}

// WithRecorder records probe durations.
func WithRecorder(r *telemetry.Recorder) Option {
	return func(p *Prober) { p.recorder = r }
}

// WithTimeout bounds a single probe.
func WithTimeout(d time.Duration) Option {
	return func(p *Prober) { p.timeout = d }
}

// New returns a Prober that runs binaries for real unless told otherwise.
func New(opts ...Option) *Prober {
	p := &Prober{runner: ExecRunner{}, timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Version runs `bin --version` and returns the version token from its
// output. A non-zero exit or output without a version yields an Error;
// callers treat any error as "no version".
func (p *Prober) Version(ctx context.Context, bin string) (string, error) {
	bin = strings.TrimSpace(bin)
	if bin == "" {
		return "", Error{Kind: ErrorNotInstalled, Bin: bin}
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := p.runner.Run(ctx, bin, VersionFlag)
	if err != nil {
		p.recorder.Probe(ctx, time.Since(start), false)
		kind := ErrorCommandFailed
		if isNotFound(err) {
			kind = ErrorNotInstalled
		}
		return "", Error{Kind: kind, Bin: bin, Err: err}
	}

	version, ok := ParseVersion(string(out))
	p.recorder.Probe(ctx, time.Since(start), ok)
	if !ok {
		return "", Error{Kind: ErrorParse, Bin: bin}
	}
	return version, nil
}

var versionRegex = regexp.MustCompile(`v?(\d+\.\d+\.\d+(?:-[0-9A-Za-z.-]+)?)`)

// ParseVersion returns the first semantic version token in output, without
// any leading "v".
func ParseVersion(output string) (string, bool) {
	match := versionRegex.FindStringSubmatch(strings.TrimSpace(output))
	if match == nil {
		return "", false
	}
	return match[1], true
}

func isNotFound(err error) bool {
	var execErr *exec.Error
	return errors.As(err, &execErr) || errors.Is(err, fs.ErrNotExist)
}
