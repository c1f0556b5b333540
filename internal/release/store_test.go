package release

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"pglauncher/internal/debug"
)

func TestSQLiteStoreRoundTripKeepsOrder(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "releases.db"))
	ctx := context.Background()

	releases, fetchedAt, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load on missing db: %v", err)
	}
	if len(releases) != 0 || !fetchedAt.IsZero() {
		t.Fatalf("expected empty load, got %v at %v", releases, fetchedAt)
	}

	published := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	when := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	in := []Release{
		{Tag: "2.0.0", Notes: "## Changes", PublishedAt: published},
		{Tag: "2.0.0-rc.1", Prerelease: true},
		{Tag: "1.9.0"},
	}
	if err := store.Save(ctx, in, when); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, gotWhen, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !gotWhen.Equal(when) {
		t.Fatalf("fetched_at = %v, want %v", gotWhen, when)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 releases, got %d", len(out))
	}
	if out[0].Tag != "2.0.0" || out[0].Notes != "## Changes" || !out[0].PublishedAt.Equal(published) {
		t.Fatalf("unexpected first release %+v", out[0])
	}
	if !out[1].Prerelease || out[2].Tag != "1.9.0" {
		t.Fatalf("unexpected order or flags %+v", out)
	}

	if err := store.Save(ctx, in[:1], when); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	out, _, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("Load after replace: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected Save to replace the list, got %d entries", len(out))
	}
}

func TestCatalogUsesPersistedList(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_ = json.NewEncoder(w).Encode([]releaseJSON{{TagName: "2.0.0"}})
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "releases.db")
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := WithClock(func() time.Time { return now })

	first := NewCatalog(server.URL, "owner", "repo", WithStore(NewSQLiteStore(path)), clock)
	if _, err := first.All(context.Background()); err != nil {
		t.Fatalf("All() error: %v", err)
	}

	second := NewCatalog(server.URL, "owner", "repo", WithStore(NewSQLiteStore(path)), clock)
	latest, err := second.LatestVersion(context.Background())
	if err != nil {
		t.Fatalf("LatestVersion() error: %v", err)
	}
	if latest != "2.0.0" {
		t.Fatalf("unexpected latest %q", latest)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected second catalog to use the persisted list, got %d requests", got)
	}
}

func TestSQLiteStoreLogsUnreadablePublishDate(t *testing.T) {
	var logs bytes.Buffer
	debug.SetOutput(&logs)
	t.Cleanup(func() { debug.SetOutput(nil) })

	store := NewSQLiteStore(filepath.Join(t.TempDir(), "releases.db"))
	ctx := context.Background()
	if err := store.Save(ctx, []Release{{Tag: "2.0.0", PublishedAt: time.Now()}}, time.Now()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	db, err := store.openDB(ctx)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := db.ExecContext(ctx, `UPDATE releases SET published_at = 'last tuesday'`); err != nil {
		t.Fatalf("corrupt row: %v", err)
	}
	_ = db.Close()

	out, _, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out) != 1 || !out[0].PublishedAt.IsZero() {
		t.Fatalf("expected the release with a zero publish date, got %+v", out)
	}
	if !strings.Contains(logs.String(), `unreadable published_at "last tuesday"`) {
		t.Fatalf("expected the parse failure to be logged, got %q", logs.String())
	}
}
