package release

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"pglauncher/internal/debug"
	pgerrors "pglauncher/internal/errors"
	"pglauncher/internal/platform"
	"pglauncher/internal/telemetry"
)

// ErrDownloadFailed marks every failed download.
var ErrDownloadFailed = fmt.Errorf("download failed")

// ProgressFunc receives bytes written so far and the expected total, which
// is -1 when the server does not announce a length.
type ProgressFunc func(written, total int64)

// LatestFunc returns the newest release tag.
type LatestFunc func(ctx context.Context) (string, error)

// Downloader fetches release assets into the global install directory.
type Downloader struct {
	cfg        platform.Config
	fs         afero.Fs
	httpClient *http.Client
	latest     LatestFunc
	recorder   *telemetry.Recorder
	progress   ProgressFunc
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithDownloadHTTPClient sets a custom HTTP client for downloads.
func WithDownloadHTTPClient(client *http.Client) DownloaderOption {
	return func(d *Downloader) {
		d.httpClient = client
	}
}

// WithFs overrides the filesystem binaries are written to.
func WithFs(fs afero.Fs) DownloaderOption {
	return func(d *Downloader) {
		d.fs = fs
	}
}

// WithProgress reports download progress.
func WithProgress(fn ProgressFunc) DownloaderOption {
	return func(d *Downloader) {
		d.progress = fn
	}
}

// WithDownloadRecorder counts downloads.
func WithDownloadRecorder(r *telemetry.Recorder) DownloaderOption {
	return func(d *Downloader) {
		d.recorder = r
	}
}

// NewDownloader creates a downloader. latest supplies the newest release tag
// for the asset naming check, normally Catalog.LatestVersion.
func NewDownloader(cfg platform.Config, latest LatestFunc, opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		cfg:        cfg,
		fs:         afero.NewOsFs(),
		httpClient: &http.Client{},
		latest:     latest,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download fetches the asset for tag and installs it as the global binary.
// It returns the installed path. No partial file is left at that path when
// the download fails.
func (d *Downloader) Download(ctx context.Context, tag string) (string, error) {
	dist, err := d.distribution(ctx)
	if err != nil {
		d.recorder.Download(ctx, telemetry.OutcomeFailed)
		return "", err
	}

	path, err := d.fetch(ctx, dist, tag)
	if err != nil && !dist.Legacy && isNotFound(err) {
		// Releases cut before the rename only carry the legacy asset.
		debug.Logf("asset for %s missing under current name, trying legacy name", tag)
		path, err = d.fetch(ctx, platform.LegacyDistribution, tag)
	}
	if err != nil {
		d.recorder.Download(ctx, telemetry.OutcomeFailed)
		return "", err
	}
	d.recorder.Download(ctx, telemetry.OutcomeSuccess)
	return path, nil
}

// distribution decides between the current and the legacy asset name by
// checking whether the newest release publishes the current-name asset.
func (d *Downloader) distribution(ctx context.Context) (platform.Distribution, error) {
	if d.latest == nil {
		return platform.CurrentDistribution, nil
	}
	latest, err := d.latest(ctx)
	if err != nil {
		return platform.Distribution{}, pgerrors.New(pgerrors.CodeDownloadFailed,
			"determine newest release for asset naming", fmt.Errorf("%w: %v", ErrDownloadFailed, err))
	}
	url, err := d.cfg.AssetURL(platform.CurrentDistribution, latest)
	if err != nil {
		return platform.Distribution{}, pgerrors.New(pgerrors.CodeDownloadFailed, "build asset url", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return platform.Distribution{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "pglauncher")
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return platform.Distribution{}, pgerrors.New(pgerrors.CodeDownloadFailed,
			fmt.Sprintf("check %s", url), fmt.Errorf("%w: %v", ErrDownloadFailed, err))
	}
	_ = resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return platform.CurrentDistribution, nil
	case resp.StatusCode == http.StatusNotFound:
		debug.Logf("HEAD %s returned 404, using legacy asset names", url)
		return platform.LegacyDistribution, nil
	default:
		return platform.Distribution{}, pgerrors.New(pgerrors.CodeDownloadFailed,
			fmt.Sprintf("check %s", url), fmt.Errorf("%w: %w", ErrDownloadFailed, statusError{status: resp.StatusCode}))
	}
}

type statusError struct {
	status int
}

func (e statusError) Error() string {
	return fmt.Sprintf("status %d", e.status)
}

func isNotFound(err error) bool {
	var se statusError
	return errors.As(err, &se) && se.status == http.StatusNotFound
}

func (d *Downloader) fetch(ctx context.Context, dist platform.Distribution, tag string) (string, error) {
	url, err := d.cfg.AssetURL(dist, tag)
	if err != nil {
		return "", pgerrors.New(pgerrors.CodeDownloadFailed, "build asset url", err)
	}
	failed := func(err error) error {
		return pgerrors.New(pgerrors.CodeDownloadFailed,
			fmt.Sprintf("download %s version %s from %s", dist.BinaryName, TrimV(tag), url),
			fmt.Errorf("%w: %w", ErrDownloadFailed, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/octet-stream")
	req.Header.Set("User-Agent", "pglauncher")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", failed(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", failed(statusError{status: resp.StatusCode})
	}

	dest := d.cfg.InstalledPath(dist)
	if err := d.install(resp.Body, resp.ContentLength, dest); err != nil {
		return "", failed(err)
	}
	debug.Logf("installed %s %s at %s", dist.BinaryName, tag, dest)
	return dest, nil
}

// install streams body into a temp file next to dest, marks it executable
// and renames it into place.
func (d *Downloader) install(body io.Reader, total int64, dest string) error {
	dir := filepath.Dir(dest)
	if err := d.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(d.fs, dir, "."+filepath.Base(dest)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = d.fs.Remove(tmpName) }

	var w io.Writer = tmp
	if d.progress != nil {
		w = &progressWriter{w: tmp, total: total, fn: d.progress}
	}
	if _, err := io.Copy(w, body); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	//nolint:gosec // G302: binary needs to be executable
	if err := d.fs.Chmod(tmpName, FileMode); err != nil {
		cleanup()
		return fmt.Errorf("set executable permission: %w", err)
	}
	if err := d.fs.Rename(tmpName, dest); err != nil {
		cleanup()
		return fmt.Errorf("move into place: %w", err)
	}
	return nil
}

type progressWriter struct {
	w       io.Writer
	written int64
	total   int64
	fn      ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	p.fn(p.written, p.total)
	return n, err
}

// FileMode is the permission installed binaries carry.
const FileMode os.FileMode = 0o755
