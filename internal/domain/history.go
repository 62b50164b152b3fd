package domain

import (
	"context"
	"time"
)

// HistoryEntry records one completed lookup for the local query log.
type HistoryEntry struct {
	ID        string
	CreatedAt time.Time
	Engine    Engine
	Query     string
	Offset    *int
	// Results counts search entries returned, or 1 for an answer/fetch.
	Results int
	Cached  bool
	Took    time.Duration
	Error   string
}

// HistoryStore persists the local query log.
type HistoryStore interface {
	Record(ctx context.Context, e HistoryEntry) error
	Recent(ctx context.Context, limit int) ([]HistoryEntry, error)
	// Purge deletes entries older than the cutoff and returns how many
	// were removed.
	Purge(ctx context.Context, olderThan time.Time) (int64, error)
	Close() error
}

// CacheStore persists opaque result blobs keyed by content hash.
// A miss is reported as an error wrapping ErrNotFound; Get also returns
// the entry's last-write time so callers can enforce a TTL.
type CacheStore interface {
	Get(key string) (data []byte, storedAt time.Time, err error)
	Put(key string, data []byte) error
}
