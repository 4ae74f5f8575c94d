package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/claude/summitchronicles/internal/cache"
	"github.com/jackc/pgx/v5"
)

// CacheStore is a durable cache tier shared by every instance pointed at the
// same database.
type CacheStore struct {
	db *DB
}

// Compile-time check: *CacheStore satisfies cache.Store.
var _ cache.Store = (*CacheStore)(nil)

// NewCacheStore returns a cache tier backed by the cache_entries table.
func NewCacheStore(db *DB) *CacheStore {
	return &CacheStore{db: db}
}

// Load returns the entry for key, or nil if there is none.
func (s *CacheStore) Load(ctx context.Context, key string) (*cache.Entry, error) {
	var (
		data       []byte
		storedAt   time.Time
		ttl, swrMs int64
	)
	err := s.db.Pool.QueryRow(ctx,
		`SELECT data, stored_at, ttl_ms, swr_ms FROM cache_entries WHERE key = $1`, key,
	).Scan(&data, &storedAt, &ttl, &swrMs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading cache entry %q: %w", key, err)
	}
	return &cache.Entry{
		Data:     data,
		StoredAt: storedAt,
		TTL:      time.Duration(ttl) * time.Millisecond,
		SWR:      time.Duration(swrMs) * time.Millisecond,
	}, nil
}

// Save upserts the entry for key.
func (s *CacheStore) Save(ctx context.Context, key string, e cache.Entry) error {
	_, err := s.db.Pool.Exec(ctx,
		`INSERT INTO cache_entries (key, data, stored_at, ttl_ms, swr_ms)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (key) DO UPDATE
			SET data = EXCLUDED.data, stored_at = EXCLUDED.stored_at,
			    ttl_ms = EXCLUDED.ttl_ms, swr_ms = EXCLUDED.swr_ms`,
		key, []byte(e.Data), e.StoredAt, e.TTL.Milliseconds(), e.SWR.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("saving cache entry %q: %w", key, err)
	}
	return nil
}

// Delete removes entries whose key starts with prefix, or all entries for "".
func (s *CacheStore) Delete(ctx context.Context, prefix string) error {
	_, err := s.db.Pool.Exec(ctx,
		`DELETE FROM cache_entries WHERE $1 = '' OR starts_with(key, $1)`, prefix)
	if err != nil {
		return fmt.Errorf("deleting cache entries %q: %w", prefix, err)
	}
	return nil
}
