package cache

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Queries runs keyed loads through a Cache. Concurrent misses for one key
// share a single execution, and stale hits are served immediately while a
// background refresh runs.
type Queries struct {
	cache *Cache
	group singleflight.Group
	log   *slog.Logger

	// mu guards pending and orders result writes against Invalidate.
	mu      sync.Mutex
	gen     uint64
	pending map[string]uint64 // key -> generation of its in-flight load

	wg sync.WaitGroup
}

// NewQueries creates a query layer over c.
func NewQueries(c *Cache, log *slog.Logger) *Queries {
	if log == nil {
		log = slog.Default()
	}
	return &Queries{cache: c, log: log, pending: make(map[string]uint64)}
}

// Cache returns the underlying cache.
func (q *Queries) Cache() *Cache {
	return q.cache
}

// loadFunc is a type-erased query function.
type loadFunc func(ctx context.Context) (any, error)

// Query returns the cached value for key, calling fn on a miss. A stale hit
// returns the cached value and refreshes it in the background. Errors from
// fn reach every caller waiting on that execution and are not cached.
func Query[T any](ctx context.Context, q *Queries, key string, fn func(context.Context) (T, error), cfg Config) (T, error) {
	load := func(ctx context.Context) (any, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return v, nil
	}

	if v, st := q.cache.Lookup(ctx, key); st == Fresh || st == Stale {
		out, err := Decode[T](v)
		if err == nil {
			if st == Stale {
				q.revalidate(ctx, key, load, cfg)
			}
			return out, nil
		}
		q.log.Warn("cache: dropping undecodable entry", "key", key, "error", err)
	}

	v, err := q.do(ctx, key, load, cfg)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](v)
}

// do runs load once per key among concurrent callers. The shared execution
// is detached from the caller's cancellation so one waiter giving up does not
// fail the others. A load invalidated while in flight still answers its
// waiters but is not cached.
func (q *Queries) do(ctx context.Context, key string, load loadFunc, cfg Config) (any, error) {
	v, err, _ := q.group.Do(key, func() (any, error) {
		q.mu.Lock()
		q.gen++
		gen := q.gen
		q.pending[key] = gen
		q.mu.Unlock()

		detached := context.WithoutCancel(ctx)
		v, err := load(detached)

		q.mu.Lock()
		defer q.mu.Unlock()
		current, ok := q.pending[key]
		if !ok || current != gen {
			return v, err
		}
		delete(q.pending, key)
		if err != nil {
			return nil, err
		}
		q.cache.Set(detached, key, v, cfg)
		return v, nil
	})
	return v, err
}

// revalidate refreshes key in the background. Failures leave the stale entry
// in place.
func (q *Queries) revalidate(ctx context.Context, key string, load loadFunc, cfg Config) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if _, err := q.do(context.WithoutCancel(ctx), key, load, cfg); err != nil {
			q.log.Warn("cache: background revalidation failed", "key", key, "error", err)
			return
		}
		q.log.Debug("cache: revalidated", "key", key)
	}()
}

// Invalidate drops cached entries with the given prefix and forgets any
// matching in-flight loads so the next call starts a fresh one and the
// forgotten loads never write their results.
func (q *Queries) Invalidate(ctx context.Context, prefix string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for key := range q.pending {
		if strings.HasPrefix(key, prefix) {
			q.group.Forget(key)
			delete(q.pending, key)
		}
	}
	q.cache.Invalidate(ctx, prefix)
}

// Shutdown waits for background revalidations to finish or ctx to end.
func (q *Queries) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
