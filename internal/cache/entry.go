// Package cache is a two-tier key/value cache (in-process memory plus a
// durable store) with stale-while-revalidate fetch helpers.
package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Config sets the lifetime of an entry. An entry is fresh for TTL, then
// stale-but-usable for a further StaleWhileRevalidate, then expired.
type Config struct {
	TTL                  time.Duration `yaml:"ttl"`
	StaleWhileRevalidate time.Duration `yaml:"stale_while_revalidate"`
}

// Presets for common kinds of data.
var (
	Static   = Config{TTL: time.Hour, StaleWhileRevalidate: 10 * time.Minute}
	API      = Config{TTL: 5 * time.Minute, StaleWhileRevalidate: 2 * time.Minute}
	User     = Config{TTL: 2 * time.Minute, StaleWhileRevalidate: time.Minute}
	Realtime = Config{TTL: 30 * time.Second, StaleWhileRevalidate: 10 * time.Second}
	LongTerm = Config{TTL: 24 * time.Hour, StaleWhileRevalidate: time.Hour}
)

// State is the freshness of a cache entry.
type State int

const (
	Missing State = iota
	Fresh
	Stale
	Expired
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	case Expired:
		return "expired"
	default:
		return "missing"
	}
}

// Entry is a cached payload with its timing. Data is JSON and is only
// populated for the durable tier.
type Entry struct {
	Data     json.RawMessage
	StoredAt time.Time
	TTL      time.Duration
	SWR      time.Duration
}

// State reports the entry's freshness at now.
func (e Entry) State(now time.Time) State {
	age := now.Sub(e.StoredAt)
	switch {
	case age < e.TTL:
		return Fresh
	case e.SWR > 0 && age < e.TTL+e.SWR:
		return Stale
	default:
		return Expired
	}
}

// Store is the durable tier. Load returns nil, nil when the key is absent.
// Delete removes every key with the given prefix; an empty prefix removes all.
type Store interface {
	Load(ctx context.Context, key string) (*Entry, error)
	Save(ctx context.Context, key string, e Entry) error
	Delete(ctx context.Context, prefix string) error
}
