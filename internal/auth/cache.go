package auth

import (
	"sync"
	"sync/atomic"
	"time"
)

// Cache is a TTL-based in-memory cache for authenticated customer
// contexts. Uses sync.Map for lock-free reads on the hot path.
//
// Stale-while-revalidate: when an entry expires, Get() still returns
// the stale value immediately and signals that a background refresh is
// needed, so no request ever blocks on DB + bcrypt after the first
// cold start.
type Cache struct {
	store sync.Map // map[string]*cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	customer   *CustomerContext
	expiresAt  time.Time
	refreshing atomic.Bool // prevents duplicate background refreshes
}

// NewCache creates a cache with the given TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl}
}

// GetResult holds the result of a cache lookup.
type GetResult struct {
	Customer     *CustomerContext
	Hit          bool // a value was found (fresh or stale)
	NeedsRefresh bool // entry expired; refresh it in the background
}

// Get looks up the API key in the cache.
//
// Returns:
//   - Fresh hit:  {Customer, Hit=true,  NeedsRefresh=false}
//   - Stale hit:  {Customer, Hit=true,  NeedsRefresh=true}
//   - Miss:       {nil,      Hit=false, NeedsRefresh=false}
//
// When NeedsRefresh=true, the caller should refresh in a background
// goroutine. The refreshing flag is CAS-set so only one goroutine
// refreshes per key.
func (c *Cache) Get(apiKey string) GetResult {
	val, ok := c.store.Load(apiKey)
	if !ok {
		return GetResult{}
	}

	entry := val.(*cacheEntry)

	if time.Now().Before(entry.expiresAt) {
		return GetResult{Customer: entry.customer, Hit: true}
	}

	needsRefresh := entry.refreshing.CompareAndSwap(false, true)
	return GetResult{
		Customer:     entry.customer,
		Hit:          true,
		NeedsRefresh: needsRefresh,
	}
}

// Set stores a customer context in the cache with the configured TTL.
func (c *Cache) Set(apiKey string, customer *CustomerContext) {
	c.store.Store(apiKey, &cacheEntry{
		customer:  customer,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// Delete removes an entry from the cache.
func (c *Cache) Delete(apiKey string) {
	c.store.Delete(apiKey)
}
