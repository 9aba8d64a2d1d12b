package cache

import (
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Cache configuration constants.
const (
	DefaultMaxSize = 1000
	DefaultTTL     = time.Hour

	// GrowthFactor lets the cache exceed MaxSize by 20% before a cleanup pass.
	GrowthFactor = 1.2
)

// Config configures a Cache.
type Config struct {
	MaxSize int
	TTL     time.Duration

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

type entry[V any] struct {
	value     V
	timestamp time.Time
	// seq orders entries inserted within the same clock tick
	seq uint64
}

// Cache is a TTL and capacity bounded store keyed by a content hash of the
// caller's string. Eviction is by insertion time, not access time.
// All operations on one instance are serialized by a single mutex.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]
	seq     uint64
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// New creates a cache, filling zero config values with defaults.
func New[V any](cfg Config) *Cache[V] {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Cache[V]{
		entries: make(map[string]entry[V]),
		maxSize: cfg.MaxSize,
		ttl:     cfg.TTL,
		now:     cfg.Now,
	}
}

// Key derives the content-addressed key for raw.
func Key(raw string) string {
	sum := blake2b.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// SearchKey is the raw search-cache key for a query scoped to a document or all documents.
func SearchKey(query, docID string) string {
	if docID == "" {
		docID = "all"
	}
	return query + "_" + docID
}

// Get returns the value for raw if present and younger than the TTL.
// Stale entries are removed.
func (c *Cache[V]) Get(raw string) (V, bool) {
	key := Key(raw)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().Sub(e.timestamp) >= c.ttl {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put inserts or replaces the value for raw with a fresh timestamp.
// A cleanup pass runs once the size exceeds MaxSize * GrowthFactor.
func (c *Cache[V]) Put(raw string, value V) {
	key := Key(raw)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	c.entries[key] = entry[V]{value: value, timestamp: c.now(), seq: c.seq}
	if float64(len(c.entries)) > float64(c.maxSize)*GrowthFactor {
		c.cleanupLocked()
	}
}

// Cleanup removes expired entries, then the oldest entries until at most MaxSize remain.
func (c *Cache[V]) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupLocked()
}

func (c *Cache[V]) cleanupLocked() {
	now := c.now()
	for k, e := range c.entries {
		if now.Sub(e.timestamp) >= c.ttl {
			delete(c.entries, k)
		}
	}
	if len(c.entries) <= c.maxSize {
		return
	}

	type aged struct {
		key string
		ts  time.Time
		seq uint64
	}
	byAge := make([]aged, 0, len(c.entries))
	for k, e := range c.entries {
		byAge = append(byAge, aged{k, e.timestamp, e.seq})
	}
	sort.Slice(byAge, func(i, j int) bool {
		if !byAge[i].ts.Equal(byAge[j].ts) {
			return byAge[i].ts.Before(byAge[j].ts)
		}
		return byAge[i].seq < byAge[j].seq
	})

	for _, a := range byAge[:len(byAge)-c.maxSize] {
		delete(c.entries, a.key)
	}
}

// Len returns the number of stored entries, including not yet evicted stale ones.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear removes every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[V])
}

// MaxSize returns the configured capacity.
func (c *Cache[V]) MaxSize() int {
	return c.maxSize
}

// TTL returns the configured time to live.
func (c *Cache[V]) TTL() time.Duration {
	return c.ttl
}
