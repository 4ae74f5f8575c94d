package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxSize is the memory tier capacity when Options.MaxSize is unset.
const DefaultMaxSize = 100

// evictFraction of the memory tier is dropped, oldest first, when it is full.
const evictFraction = 0.2

// Options configures a Cache.
type Options struct {
	MaxSize int
	Now     func() time.Time
}

// item is a memory tier entry. value is either the Go value passed to Set or
// raw JSON promoted from the durable tier.
type item struct {
	Entry
	value any
}

// Cache is a two-tier cache. The memory tier is authoritative while it holds
// a usable entry; the durable tier is a best-effort rehydration source and
// its failures never reach callers. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	mem     *lru.Cache[string, item]
	maxSize int
	store   Store
	now     func() time.Time
	log     *slog.Logger
}

// New creates a Cache. store may be nil for a memory-only cache.
func New(store Store, opts Options, log *slog.Logger) *Cache {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	// lru.New only fails for a non-positive size, guarded above.
	mem, _ := lru.New[string, item](opts.MaxSize)
	return &Cache{
		mem:     mem,
		maxSize: opts.MaxSize,
		store:   store,
		now:     opts.Now,
		log:     log,
	}
}

// Set stores data under key in both tiers.
func (c *Cache) Set(ctx context.Context, key string, data any, cfg Config) {
	it := item{
		Entry: Entry{StoredAt: c.now(), TTL: cfg.TTL, SWR: cfg.StaleWhileRevalidate},
		value: data,
	}
	c.remember(key, it)

	if c.store == nil {
		return
	}
	raw, err := toJSON(data)
	if err != nil {
		c.log.Warn("cache: encoding entry for durable tier", "key", key, "error", err)
		return
	}
	e := it.Entry
	e.Data = raw
	if err := c.store.Save(ctx, key, e); err != nil {
		c.log.Warn("cache: durable write failed", "key", key, "error", err)
	}
}

// Get returns the value for key only while it is fresh.
func (c *Cache) Get(ctx context.Context, key string) (any, bool) {
	v, st := c.Lookup(ctx, key)
	return v, st == Fresh
}

// IsStaleButRevalidate reports whether key is past its TTL but still inside
// its stale-while-revalidate window.
func (c *Cache) IsStaleButRevalidate(ctx context.Context, key string) bool {
	_, st := c.Lookup(ctx, key)
	return st == Stale
}

// Lookup returns the value for key and its state. The value is set only for
// Fresh and Stale. A fresh durable entry beats a stale memory one and is
// promoted into memory.
func (c *Cache) Lookup(ctx context.Context, key string) (any, State) {
	now := c.now()

	c.mu.Lock()
	memItem, inMem := c.mem.Peek(key)
	c.mu.Unlock()

	memState := Missing
	if inMem {
		memState = memItem.State(now)
		if memState == Fresh {
			return memItem.value, Fresh
		}
	}

	durable := c.loadDurable(ctx, key)
	if durable != nil {
		st := durable.State(now)
		if st == Fresh || (st == Stale && memState != Stale) {
			c.remember(key, item{Entry: Entry{StoredAt: durable.StoredAt, TTL: durable.TTL, SWR: durable.SWR}, value: durable.Data})
			return durable.Data, st
		}
	}

	switch memState {
	case Stale:
		return memItem.value, Stale
	case Expired:
		return nil, Expired
	}
	if durable != nil {
		return nil, Expired
	}
	return nil, Missing
}

// Invalidate removes every key starting with prefix from both tiers. An
// empty prefix clears the cache.
func (c *Cache) Invalidate(ctx context.Context, prefix string) {
	c.mu.Lock()
	if prefix == "" {
		c.mem.Purge()
	} else {
		for _, k := range c.mem.Keys() {
			if strings.HasPrefix(k, prefix) {
				c.mem.Remove(k)
			}
		}
	}
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	if err := c.store.Delete(ctx, prefix); err != nil {
		c.log.Warn("cache: durable delete failed", "prefix", prefix, "error", err)
	}
}

// Len returns the number of entries in the memory tier.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mem.Len()
}

// remember writes to the memory tier, first dropping the oldest entries if
// the tier is full. Reads use Peek, so lru order is write order.
func (c *Cache) remember(key string, it item) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n := c.mem.Len(); n >= c.maxSize {
		drop := int(math.Ceil(float64(n) * evictFraction))
		for range drop {
			c.mem.RemoveOldest()
		}
	}
	c.mem.Add(key, it)
}

func (c *Cache) loadDurable(ctx context.Context, key string) *Entry {
	if c.store == nil {
		return nil
	}
	e, err := c.store.Load(ctx, key)
	if err != nil {
		c.log.Warn("cache: durable read failed", "key", key, "error", err)
		return nil
	}
	return e
}

func toJSON(v any) (json.RawMessage, error) {
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(v)
}

// Decode returns a cached value as T. Values promoted from the durable tier
// are raw JSON and are unmarshaled.
func Decode[T any](v any) (T, error) {
	var out T
	switch x := v.(type) {
	case T:
		return x, nil
	case json.RawMessage:
		if err := json.Unmarshal(x, &out); err != nil {
			return out, fmt.Errorf("decoding cached value: %w", err)
		}
		return out, nil
	}
	return out, fmt.Errorf("cached value has type %T", v)
}
