package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a durable tier backed by a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// Compile-time check: *SQLiteStore satisfies Store.
var _ Store = (*SQLiteStore)(nil)

// OpenSQLiteStore opens (or creates) the cache database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS cache_entries (
		key       TEXT PRIMARY KEY,
		data      BLOB NOT NULL,
		stored_at INTEGER NOT NULL,
		ttl_ms    INTEGER NOT NULL,
		swr_ms    INTEGER NOT NULL DEFAULT 0
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Load returns the entry for key, or nil if there is none.
func (s *SQLiteStore) Load(ctx context.Context, key string) (*Entry, error) {
	var (
		data                 []byte
		storedAt, ttl, swrMs int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT data, stored_at, ttl_ms, swr_ms FROM cache_entries WHERE key = ?`, key,
	).Scan(&data, &storedAt, &ttl, &swrMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading cache entry %q: %w", key, err)
	}
	return &Entry{
		Data:     data,
		StoredAt: time.UnixMilli(storedAt),
		TTL:      time.Duration(ttl) * time.Millisecond,
		SWR:      time.Duration(swrMs) * time.Millisecond,
	}, nil
}

// Save inserts or replaces the entry for key.
func (s *SQLiteStore) Save(ctx context.Context, key string, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cache_entries (key, data, stored_at, ttl_ms, swr_ms) VALUES (?, ?, ?, ?, ?)`,
		key, []byte(e.Data), e.StoredAt.UnixMilli(), e.TTL.Milliseconds(), e.SWR.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("saving cache entry %q: %w", key, err)
	}
	return nil
}

// Delete removes entries whose key starts with prefix, or all entries for "".
func (s *SQLiteStore) Delete(ctx context.Context, prefix string) error {
	var err error
	if prefix == "" {
		_, err = s.db.ExecContext(ctx, `DELETE FROM cache_entries`)
	} else {
		_, err = s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE instr(key, ?) = 1`, prefix)
	}
	if err != nil {
		return fmt.Errorf("deleting cache entries %q: %w", prefix, err)
	}
	return nil
}

// Close closes the cache database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
