// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package translationcache provides a bounded, TTL-expiring cache of
// translated strings, keyed by source/target language and a content hash
// of the source text so identical prompts across requests are translated
// at most once per TTL window.
package translationcache

import (
	"crypto/sha256"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultTTL is used when a Cache is constructed without an explicit TTL.
const DefaultTTL = 24 * time.Hour

// DefaultSize is used when a Cache is constructed without an explicit
// capacity.
const DefaultSize = 1000

// Stats reports cumulative cache access counters. It is safe to read
// concurrently with cache use.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// HitRate returns Hits / (Hits + Misses), or 0 when there have been no
// lookups yet.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache is a concurrency-safe LRU cache of translated text with per-entry
// expiry, backed by expirable.LRU which natively supports both a bounded
// size and a uniform TTL.
type Cache struct {
	lru *expirable.LRU[string, string]

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New constructs a Cache holding up to size entries, each expiring ttl
// after it was last set. A size or ttl of zero falls back to the package
// defaults.
func New(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{}
	c.lru = expirable.NewLRU[string, string](size, c.onEvict, ttl)
	return c
}

func (c *Cache) onEvict(_ string, _ string) {
	c.evictions.Add(1)
}

// Key derives the cache key for a (sourceLang, targetLang, text) triple:
// the literal prefix "trans:" followed by the first 16 hex characters of
// SHA-256("<sourceLang>:<targetLang>:<text>").
func Key(sourceLang, targetLang, text string) string {
	sum := sha256.Sum256([]byte(sourceLang + ":" + targetLang + ":" + text))
	return "trans:" + fmt.Sprintf("%x", sum)[:16]
}

// Get looks up the translation previously stored under key. It reports a
// miss, rather than panicking or erroring, when the entry is absent or has
// expired.
func (c *Cache) Get(key string) (value string, ok bool) {
	value, ok = c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return value, ok
}

// Set stores value under key, evicting the least-recently-used entry if
// the cache is at capacity.
func (c *Cache) Set(key, value string) {
	c.lru.Add(key, value)
}

// Evict removes key from the cache, if present.
func (c *Cache) Evict(key string) {
	c.lru.Remove(key)
}

// Clear empties the cache. Hit and miss counters are kept; each entry it
// drops is counted in Stats.Evictions, as are entries removed by Evict.
func (c *Cache) Clear() {
	c.lru.Purge()
}

// Len returns the number of live entries currently in the cache.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Stats returns a snapshot of the cumulative hit/miss/eviction counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
