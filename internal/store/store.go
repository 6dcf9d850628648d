package store

import (
	"context"
	"time"
)

// CacheRow is one persisted response-cache entry. Payload is the opaque
// JSON the entry was stored with; TTL is measured from CreatedAt.
type CacheRow struct {
	Key       string        `db:"key"`
	Payload   []byte        `db:"payload"`
	CreatedAt time.Time     `db:"created_at"`
	TTL       time.Duration `db:"ttl_ns"`
}

// CacheStore is the durable backing for the response cache. The cache
// must keep working (memory-only) when its store is nil or failing, so
// implementations report errors but callers may ignore them.
type CacheStore interface {
	// ReplaceCache atomically replaces the persisted cache table with rows.
	ReplaceCache(ctx context.Context, rows []CacheRow) error

	// LoadCache returns every persisted cache entry.
	LoadCache(ctx context.Context) ([]CacheRow, error)
}
