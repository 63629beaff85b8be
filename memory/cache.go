// Package memory provides the in-process tier of the blob store: a bounded,
// time-and-capacity evicting key to payload cache. It owns no authoritative
// data; dropping every entry only costs read performance.
package memory

import (
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Tier is the capability the storage engine needs from a memory cache.
// Absence is never an error. Implementations must be safe for concurrent use.
type Tier interface {
	// Get returns the payload for key if it is resident and not expired.
	Get(key string) ([]byte, bool)
	// Set inserts or overwrites key, resetting its recency and age.
	Set(key string, payload []byte)
	// Clear drops every entry.
	Clear()
}

// LRU is a Tier that evicts the least recently used entry once MaxEntries is
// exceeded and hides entries older than TTL. Expired entries are reclaimed
// lazily by the underlying cache's sweep. Payloads are copied on the way in
// and out, so cached bytes can never be mutated by a caller.
type LRU struct {
	entries *expirable.LRU[string, []byte]
}

var _ Tier = (*LRU)(nil)

// NewLRU creates an LRU from configuration. Non-positive bounds fall back to
// the defaults.
//
// Each LRU starts a background goroutine that reclaims expired entries and
// runs for the life of the process; the underlying cache has no way to stop
// it. Create one LRU per engine and reuse it rather than building them per
// request.
func NewLRU(cfg *Config) *LRU {
	size := cfg.MaxEntries
	if size <= 0 {
		size = defaultMaxEntries
	}
	ttl := time.Duration(cfg.TTL)
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &LRU{
		entries: expirable.NewLRU[string, []byte](size, nil, ttl),
	}
}

func (c *LRU) Get(key string) ([]byte, bool) {
	val, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	return slices.Clone(val), true
}

func (c *LRU) Set(key string, payload []byte) {
	c.entries.Add(key, slices.Clone(payload))
}

func (c *LRU) Clear() {
	c.entries.Purge()
}

// Len reports the number of resident entries, including expired entries the
// sweep has not reclaimed yet.
func (c *LRU) Len() int {
	return c.entries.Len()
}
