package release

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"pglauncher/internal/debug"
)

// Store persists the release list between runs.
type Store interface {
	Load(ctx context.Context) ([]Release, time.Time, error)
	Save(ctx context.Context, releases []Release, fetchedAt time.Time) error
}

// SQLiteStore keeps the release list in a small sqlite database.
type SQLiteStore struct {
	path string
	dsn  string
}

// NewSQLiteStore returns a store backed by the database file at path. The
// file and its directory are created on first save.
func NewSQLiteStore(path string) *SQLiteStore {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	q := url.Values{}
	q.Set("_pragma", "busy_timeout(3000)")
	u.RawQuery = q.Encode()
	return &SQLiteStore{path: path, dsn: u.String()}
}

const schema = `
CREATE TABLE IF NOT EXISTS releases (
	position     INTEGER PRIMARY KEY,
	tag          TEXT NOT NULL,
	name         TEXT NOT NULL DEFAULT '',
	prerelease   INTEGER NOT NULL DEFAULT 0,
	body         TEXT NOT NULL DEFAULT '',
	published_at TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

func (s *SQLiteStore) openDB(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("sqlite", s.dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return db, nil
}

// Load returns the stored releases in their original order and when they
// were fetched. A missing database yields no releases and no error.
func (s *SQLiteStore) Load(ctx context.Context) ([]Release, time.Time, error) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return nil, time.Time{}, nil
	}

	db, err := s.openDB(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer func() {
		_ = db.Close()
	}()

	var fetched string
	err = db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'fetched_at'`).Scan(&fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("query fetched_at: %w", err)
	}
	fetchedAt, err := time.Parse(time.RFC3339Nano, fetched)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("parse fetched_at %q: %w", fetched, err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT tag, name, prerelease, body, published_at
		FROM releases
		ORDER BY position`)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("query releases: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var releases []Release
	for rows.Next() {
		var (
			r         Release
			pre       int
			published string
		)
		if err := rows.Scan(&r.Tag, &r.Name, &pre, &r.Notes, &published); err != nil {
			return nil, time.Time{}, fmt.Errorf("scan release: %w", err)
		}
		r.Prerelease = pre != 0
		if published != "" {
			at, err := time.Parse(time.RFC3339, published)
			if err != nil {
				debug.Logf("release store: %s has unreadable published_at %q: %v", r.Tag, published, err)
			}
			r.PublishedAt = at
		}
		releases = append(releases, r)
	}
	return releases, fetchedAt, rows.Err()
}

// Save replaces the stored list.
func (s *SQLiteStore) Save(ctx context.Context, releases []Release, fetchedAt time.Time) error {
	//nolint:gosec // G301: storage directory needs standard permissions
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	db, err := s.openDB(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM releases`); err != nil {
		return fmt.Errorf("clear releases: %w", err)
	}
	for i, r := range releases {
		pre := 0
		if r.Prerelease {
			pre = 1
		}
		published := ""
		if !r.PublishedAt.IsZero() {
			published = r.PublishedAt.UTC().Format(time.RFC3339)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO releases (position, tag, name, prerelease, body, published_at) VALUES (?, ?, ?, ?, ?, ?)`,
			i, r.Tag, r.Name, pre, r.Notes, published,
		); err != nil {
			return fmt.Errorf("insert release %s: %w", r.Tag, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('fetched_at', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		fetchedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("record fetched_at: %w", err)
	}
	return tx.Commit()
}
