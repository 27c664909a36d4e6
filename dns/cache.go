package dns

import (
	"net/netip"
	"time"

	"github.com/nettopo/netsim/clock"
)

// cacheEntry is a cached A-record answer with its expiry (spec.md §4.8).
type cacheEntry struct {
	answer netip.Addr
	expiry time.Time
}

// Cache is the resolver's TTL cache, keyed by lowercased name.
type Cache struct {
	clock   clock.Clock
	entries map[string]cacheEntry
}

// NewCache constructs an empty cache driven by cl.
func NewCache(cl clock.Clock) *Cache {
	if cl == nil {
		cl = clock.Real{}
	}
	return &Cache{clock: cl, entries: make(map[string]cacheEntry)}
}

// Lookup returns the cached answer for name if present and unexpired.
func (c *Cache) Lookup(name string) (netip.Addr, bool) {
	name = NormalizeName(name)
	e, ok := c.entries[name]
	if !ok {
		return netip.Addr{}, false
	}
	if !c.clock.Now().Before(e.expiry) {
		delete(c.entries, name)
		return netip.Addr{}, false
	}
	return e.answer, true
}

// Len returns the number of entries currently cached, expired or not
// (SPEC_FULL.md §4.10's netsim_dns_cache_entries gauge).
func (c *Cache) Len() int {
	return len(c.entries)
}

// Store caches answer for name for ttl seconds.
func (c *Cache) Store(name string, answer netip.Addr, ttl uint32) {
	name = NormalizeName(name)
	c.entries[name] = cacheEntry{
		answer: answer,
		expiry: c.clock.Now().Add(time.Duration(ttl) * time.Second),
	}
}
