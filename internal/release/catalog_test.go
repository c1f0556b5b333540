package release

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func releaseServer(t *testing.T, releases []releaseJSON, hits *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/owner/repo/releases" {
			t.Errorf("unexpected path: %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(releases)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCatalogAllSkipsDraftsAndKeepsOrder(t *testing.T) {
	server := releaseServer(t, []releaseJSON{
		{TagName: "2.1.0", Draft: true},
		{TagName: "2.0.0", Body: "notes"},
		{TagName: "2.0.0-rc.1", Prerelease: true},
		{TagName: "1.9.0"},
	}, nil)

	c := NewCatalog(server.URL, "owner", "repo")
	releases, err := c.All(context.Background())
	if err != nil {
		t.Fatalf("All() error: %v", err)
	}
	if len(releases) != 3 {
		t.Fatalf("expected 3 releases, got %d", len(releases))
	}
	if releases[0].Tag != "2.0.0" || releases[0].Notes != "notes" {
		t.Fatalf("unexpected first release %+v", releases[0])
	}
	if !releases[1].Prerelease {
		t.Fatal("expected prerelease flag to be kept")
	}
}

func TestCatalogLatestAndOutdated(t *testing.T) {
	server := releaseServer(t, []releaseJSON{{TagName: "2.0.0"}, {TagName: "1.9.0"}}, nil)
	c := NewCatalog(server.URL, "owner", "repo")
	ctx := context.Background()

	latest, err := c.LatestVersion(ctx)
	if err != nil {
		t.Fatalf("LatestVersion() error: %v", err)
	}
	if latest != "2.0.0" {
		t.Fatalf("LatestVersion = %q, want 2.0.0", latest)
	}

	tests := []struct {
		version string
		want    bool
	}{
		{"1.9.0", true},
		{"2.0.0", false},
		{"v2.0.0", false},
		{"2.0.1", false},
	}
	for _, tt := range tests {
		got, err := c.VersionOutdated(ctx, tt.version)
		if err != nil {
			t.Fatalf("VersionOutdated(%q) error: %v", tt.version, err)
		}
		if got != tt.want {
			t.Fatalf("VersionOutdated(%q) = %v, want %v", tt.version, got, tt.want)
		}
	}
}

func TestCatalogEmptyIndex(t *testing.T) {
	server := releaseServer(t, []releaseJSON{}, nil)
	c := NewCatalog(server.URL, "owner", "repo")

	if _, err := c.LatestVersion(context.Background()); !errors.Is(err, ErrNoReleases) {
		t.Fatalf("expected ErrNoReleases, got %v", err)
	}
	outdated, err := c.VersionOutdated(context.Background(), "1.0.0")
	if err != nil || outdated {
		t.Fatalf("expected not outdated without releases, got %v, %v", outdated, err)
	}
}

func TestCatalogServesCacheWithinTTL(t *testing.T) {
	var hits int32
	server := releaseServer(t, []releaseJSON{{TagName: "2.0.0"}}, &hits)

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCatalog(server.URL, "owner", "repo",
		WithTTL(time.Hour),
		WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.All(ctx); err != nil {
			t.Fatalf("All() error: %v", err)
		}
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected one request within ttl, got %d", got)
	}

	now = now.Add(2 * time.Hour)
	if _, err := c.All(ctx); err != nil {
		t.Fatalf("All() error: %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Fatalf("expected refetch after ttl, got %d requests", got)
	}
}

func TestCatalogRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c := NewCatalog(server.URL, "owner", "repo")
	if _, err := c.All(context.Background()); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestCatalogServesStaleListWhenOffline(t *testing.T) {
	var down atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if down.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode([]releaseJSON{{TagName: "2.0.0"}})
	}))
	defer server.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCatalog(server.URL, "owner", "repo", WithClock(func() time.Time { return now }))
	ctx := context.Background()

	if _, err := c.All(ctx); err != nil {
		t.Fatalf("All() error: %v", err)
	}
	down.Store(true)
	now = now.Add(24 * time.Hour)

	releases, err := c.All(ctx)
	if err != nil {
		t.Fatalf("expected stale list, got error %v", err)
	}
	if len(releases) != 1 || releases[0].Tag != "2.0.0" {
		t.Fatalf("unexpected stale releases %+v", releases)
	}
}

func TestCatalogNetworkFailureWithoutCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewCatalog(server.URL, "owner", "repo")
	if _, err := c.All(context.Background()); !errors.Is(err, ErrNetworkFailure) {
		t.Fatalf("expected ErrNetworkFailure, got %v", err)
	}
}
