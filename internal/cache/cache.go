// Package cache provides the expiring response cache that fronts remote
// reads. Entries live in memory and are mirrored to a durable local
// store; when the store is missing or failing the cache silently runs
// memory-only.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dnguyen/buswatch/internal/store"
)

// Clock supplies the current time. Tests substitute a fake.
type Clock func() time.Time

type entry struct {
	payload   []byte
	createdAt time.Time
	ttl       time.Duration
}

func (e entry) expired(now time.Time) bool {
	return now.After(e.createdAt.Add(e.ttl))
}

// Cache is a TTL-expiring key/value cache for remote responses. It is
// constructed once at the composition root and handed to consumers;
// there is no package-level instance.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	backing store.CacheStore
	clock   Clock
	log     zerolog.Logger
}

// Option customizes a Cache.
type Option func(*Cache)

// WithClock substitutes the time source.
func WithClock(c Clock) Option {
	return func(cc *Cache) {
		cc.clock = c
	}
}

// New creates a cache backed by cs. A nil cs is allowed and yields a
// memory-only cache. Persisted entries are read back immediately, with
// already-expired ones dropped before first use.
func New(cs store.CacheStore, log zerolog.Logger, opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		backing: cs,
		clock:   time.Now,
		log:     log.With().Str("component", "cache").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if cs != nil {
		rows, err := cs.LoadCache(context.Background())
		if err != nil {
			c.log.Warn().Err(err).Msg("cache store unavailable, running memory-only")
			c.backing = nil
			return c
		}
		now := c.clock()
		for _, row := range rows {
			e := entry{payload: row.Payload, createdAt: row.CreatedAt, ttl: row.TTL}
			if !e.expired(now) {
				c.entries[row.Key] = e
			}
		}
	}

	return c
}

// Get returns the payload stored under key, or ok=false when the key is
// absent or its entry has expired. Expired entries are purged on access.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if e.expired(c.clock()) {
		delete(c.entries, key)
		c.persistLocked()
		return nil, false
	}
	return e.payload, true
}

// Set stores payload under key for ttl.
func (c *Cache) Set(key string, payload []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{
		payload:   payload,
		createdAt: c.clock(),
		ttl:       ttl,
	}
	c.persistLocked()
}

// Remove drops the entry stored under key, if any.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.persistLocked()
	}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry)
	c.persistLocked()
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CachedCall returns the unexpired payload under key when present;
// otherwise it invokes producer, stores the result under key with ttl,
// and returns it. A producer failure propagates and caches nothing.
func (c *Cache) CachedCall(
	ctx context.Context,
	key string,
	ttl time.Duration,
	producer func(context.Context) ([]byte, error),
) ([]byte, error) {
	if payload, ok := c.Get(key); ok {
		return payload, nil
	}

	payload, err := producer(ctx)
	if err != nil {
		return nil, err
	}

	c.Set(key, payload, ttl)
	return payload, nil
}

// persistLocked mirrors the full table to the durable store. Failures
// downgrade the cache to memory-only rather than surfacing; a client
// must keep working when local persistence is unavailable.
func (c *Cache) persistLocked() {
	if c.backing == nil {
		return
	}

	rows := make([]store.CacheRow, 0, len(c.entries))
	for key, e := range c.entries {
		rows = append(rows, store.CacheRow{
			Key:       key,
			Payload:   e.payload,
			CreatedAt: e.createdAt,
			TTL:       e.ttl,
		})
	}

	if err := c.backing.ReplaceCache(context.Background(), rows); err != nil {
		c.log.Warn().Err(err).Msg("persisting cache failed, continuing memory-only")
		c.backing = nil
	}
}

// CachedJSON is a typed convenience over CachedCall: it decodes a cache
// hit into T and encodes a produced value before storing it.
func CachedJSON[T any](
	ctx context.Context,
	c *Cache,
	key string,
	ttl time.Duration,
	producer func(context.Context) (T, error),
) (T, error) {
	var zero T

	payload, err := c.CachedCall(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		value, err := producer(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encoding cache entry %q: %w", key, err)
		}
		return data, nil
	})
	if err != nil {
		return zero, err
	}

	var value T
	if err := json.Unmarshal(payload, &value); err != nil {
		return zero, fmt.Errorf("decoding cache entry %q: %w", key, err)
	}
	return value, nil
}
