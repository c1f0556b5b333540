package release

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"pglauncher/internal/debug"
)

// DefaultTimeout bounds release index requests.
const DefaultTimeout = 10 * time.Second

var (
	ErrNetworkFailure = fmt.Errorf("network request failed")
	ErrRateLimited    = fmt.Errorf("rate limited by GitHub API")
	ErrNoReleases     = fmt.Errorf("no releases published")
)

// Release is one published, non-draft release.
type Release struct {
	Tag         string    `json:"tag" yaml:"tag"`
	Name        string    `json:"name,omitempty" yaml:"name,omitempty"`
	Prerelease  bool      `json:"prerelease" yaml:"prerelease"`
	Notes       string    `json:"notes,omitempty" yaml:"notes,omitempty"`
	PublishedAt time.Time `json:"published_at" yaml:"published_at"`
}

// Version is the tag without a leading "v".
func (r Release) Version() string {
	return TrimV(r.Tag)
}

type releaseJSON struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Body        string    `json:"body"`
	PublishedAt time.Time `json:"published_at"`
	Prerelease  bool      `json:"prerelease"`
	Draft       bool      `json:"draft"`
}

// Catalog lists releases newest-first, caching them for a TTL.
type Catalog struct {
	api        string
	owner      string
	repo       string
	ttl        time.Duration
	httpClient *http.Client
	store      Store
	now        func() time.Time

	group     singleflight.Group
	mu        sync.RWMutex
	releases  []Release
	fetchedAt time.Time
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithHTTPClient sets a custom HTTP client for the catalog.
func WithHTTPClient(client *http.Client) CatalogOption {
	return func(c *Catalog) {
		c.httpClient = client
	}
}

// WithStore persists fetched releases across processes.
func WithStore(s Store) CatalogOption {
	return func(c *Catalog) {
		c.store = s
	}
}

// WithTTL sets how long a fetched list is served without refetching.
func WithTTL(ttl time.Duration) CatalogOption {
	return func(c *Catalog) {
		c.ttl = ttl
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) CatalogOption {
	return func(c *Catalog) {
		c.now = now
	}
}

// NewCatalog creates a catalog reading {api}/repos/{owner}/{repo}/releases.
func NewCatalog(api, owner, repo string, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		api:        strings.TrimRight(api, "/"),
		owner:      owner,
		repo:       repo,
		ttl:        time.Hour,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// All returns every known release, newest first. A fresh cached list is
// returned without network access. When the index cannot be reached a
// stale cached list is returned instead of an error.
func (c *Catalog) All(ctx context.Context) ([]Release, error) {
	if releases, ok := c.fresh(); ok {
		return releases, nil
	}
	c.loadStored(ctx)
	if releases, ok := c.fresh(); ok {
		return releases, nil
	}

	v, err, _ := c.group.Do("releases", func() (any, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		if stale := c.snapshot(); len(stale) > 0 {
			debug.Logf("release index unavailable, serving %d cached releases: %v", len(stale), err)
			return stale, nil
		}
		return nil, err
	}
	releases, _ := v.([]Release)
	return cloneReleases(releases), nil
}

// Refresh drops the cached list and fetches it again.
func (c *Catalog) Refresh(ctx context.Context) ([]Release, error) {
	c.mu.Lock()
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
	v, err, _ := c.group.Do("releases", func() (any, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	releases, _ := v.([]Release)
	return cloneReleases(releases), nil
}

// LatestVersion returns the tag of the newest release.
func (c *Catalog) LatestVersion(ctx context.Context) (string, error) {
	releases, err := c.All(ctx)
	if err != nil {
		return "", err
	}
	if len(releases) == 0 {
		return "", ErrNoReleases
	}
	return releases[0].Tag, nil
}

// VersionOutdated reports whether version is older than the newest release.
// An empty catalog never makes a version outdated.
func (c *Catalog) VersionOutdated(ctx context.Context, version string) (bool, error) {
	latest, err := c.LatestVersion(ctx)
	if errors.Is(err, ErrNoReleases) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	cmp, err := CompareVersions(version, latest)
	if err != nil {
		return false, err
	}
	return cmp < 0, nil
}

func (c *Catalog) fresh() ([]Release, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.fetchedAt.IsZero() || c.now().Sub(c.fetchedAt) >= c.ttl {
		return nil, false
	}
	return cloneReleases(c.releases), true
}

func (c *Catalog) snapshot() []Release {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneReleases(c.releases)
}

func (c *Catalog) loadStored(ctx context.Context) {
	if c.store == nil {
		return
	}
	c.mu.RLock()
	loaded := len(c.releases) > 0
	c.mu.RUnlock()
	if loaded {
		return
	}
	releases, fetchedAt, err := c.store.Load(ctx)
	if err != nil {
		debug.Logf("load cached releases: %v", err)
		return
	}
	if len(releases) == 0 {
		return
	}
	c.mu.Lock()
	c.releases = releases
	c.fetchedAt = fetchedAt
	c.mu.Unlock()
}

func (c *Catalog) refresh(ctx context.Context) ([]Release, error) {
	releases, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	fetchedAt := c.now()
	c.mu.Lock()
	c.releases = releases
	c.fetchedAt = fetchedAt
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Save(ctx, releases, fetchedAt); err != nil {
			debug.Logf("save cached releases: %v", err)
		}
	}
	return releases, nil
}

func (c *Catalog) fetch(ctx context.Context) ([]Release, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases?per_page=100", c.api, c.owner, c.repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "pglauncher")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", ErrNetworkFailure, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s: status %d", ErrNetworkFailure, url, resp.StatusCode)
	}

	var raw []releaseJSON
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	releases := make([]Release, 0, len(raw))
	for _, r := range raw {
		if r.Draft || strings.TrimSpace(r.TagName) == "" {
			continue
		}
		releases = append(releases, Release{
			Tag:         r.TagName,
			Name:        r.Name,
			Prerelease:  r.Prerelease,
			Notes:       r.Body,
			PublishedAt: r.PublishedAt,
		})
	}
	return releases, nil
}

func cloneReleases(in []Release) []Release {
	if in == nil {
		return nil
	}
	out := make([]Release, len(in))
	copy(out, in)
	return out
}
