package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"websearch/internal/domain"
)

// offsetNone is the key component for a request with no explicit offset.
// It keeps "no offset" distinct from "offset 0" in the cache identity.
const offsetNone = "none"

// CacheKey derives the content address for a lookup: a hex SHA-256 over
// the query, engine, and offset, with a NUL delimiter so adjacent
// components cannot collide.
func CacheKey(query string, engine domain.Engine, offset *int) string {
	off := offsetNone
	if offset != nil {
		off = strconv.Itoa(*offset)
	}
	h := sha256.New()
	h.Write([]byte(query))
	h.Write([]byte{0})
	h.Write([]byte(engine))
	h.Write([]byte{0})
	h.Write([]byte(off))
	return hex.EncodeToString(h.Sum(nil))
}

// ResultCache applies TTL and corruption policy over a blob store.
// All failure modes degrade to a miss or a logged warning; the cache
// never fails a search.
type ResultCache struct {
	store  domain.CacheStore
	ttl    time.Duration
	logger *slog.Logger
}

// NewResultCache wraps store with the given entry lifetime. A zero or
// negative ttl makes every entry immediately stale.
func NewResultCache(store domain.CacheStore, ttl time.Duration, logger *slog.Logger) *ResultCache {
	return &ResultCache{store: store, ttl: ttl, logger: logger}
}

// cacheLookup returns the decoded entry for key if it exists, is within
// its TTL, and unmarshals cleanly. A corrupt entry is logged and treated
// as a miss so the pipeline falls through to a live call that will
// overwrite it.
func cacheLookup[T any](c *ResultCache, key string) (*T, bool) {
	if c == nil {
		return nil, false
	}

	data, storedAt, err := c.store.Get(key)
	if err != nil {
		return nil, false
	}

	if time.Since(storedAt) >= c.ttl {
		c.logger.Debug("cache entry expired", "key", key, "age", time.Since(storedAt))
		return nil, false
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		c.logger.Warn("cache entry corrupt, treating as miss", "key", key, "error", err)
		return nil, false
	}
	return &v, true
}

// cacheStore writes the entry best-effort. Failures are logged, never
// propagated: a broken cache must not fail a successful search.
func cacheStore[T any](c *ResultCache, key string, v *T) {
	if c == nil {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.store.Put(key, data); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
}
