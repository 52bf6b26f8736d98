package resolver

import "sync"

// HandleCache maps actor DIDs to resolved handles for the process lifetime.
// Entries are written once and never overwritten; actor cardinality is
// bounded, so there is no eviction.
type HandleCache struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewHandleCache creates an empty handle cache
func NewHandleCache() *HandleCache {
	return &HandleCache{
		entries: make(map[string]string),
	}
}

// Get returns the cached handle for a DID, if present.
func (c *HandleCache) Get(did string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	handle, ok := c.entries[did]
	return handle, ok
}

// Put stores a handle for a DID. The first write wins.
func (c *HandleCache) Put(did, handle string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[did]; ok {
		return
	}
	c.entries[did] = handle
}

// Len returns the number of cached handles.
func (c *HandleCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
