package cache

import (
	"sync"
	"time"

	"github.com/ammiranda/category_service/models"
)

// DefaultMemoryEntries bounds the number of pages a MemoryCache holds
const DefaultMemoryEntries = 1024

type memoryEntry struct {
	response  *models.PaginatedTreeResponse
	expiresAt time.Time
}

// MemoryCache implements CacheProvider in process memory. It holds at most
// maxEntries pages; when full, expired pages are dropped first and then the
// page closest to expiry.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewMemoryCache creates a new in-memory cache provider
func NewMemoryCache() *MemoryCache {
	return NewMemoryCacheWithLimit(DefaultMemoryEntries)
}

// NewMemoryCacheWithLimit creates an in-memory cache holding at most maxEntries pages
func NewMemoryCacheWithLimit(maxEntries int) *MemoryCache {
	if maxEntries < 1 {
		maxEntries = DefaultMemoryEntries
	}
	return &MemoryCache{
		entries:    make(map[string]memoryEntry),
		ttl:        5 * time.Minute,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Initialize is a no-op for the in-memory cache
func (c *MemoryCache) Initialize() error {
	return nil
}

// GetPaginatedTree returns a stored page unless it has expired
func (c *MemoryCache) GetPaginatedTree(page, pageSize int) (*models.PaginatedTreeResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[cacheKey(page, pageSize)]
	if !ok || c.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.response, true
}

// SetPaginatedTree stores a page, evicting another one if the cache is full
func (c *MemoryCache) SetPaginatedTree(page, pageSize int, response *models.PaginatedTreeResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(page, pageSize)
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}
	c.entries[key] = memoryEntry{response: response, expiresAt: c.now().Add(c.ttl)}
}

func (c *MemoryCache) evictLocked() {
	now := c.now()
	var oldestKey string
	var oldest time.Time
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			continue
		}
		if oldestKey == "" || entry.expiresAt.Before(oldest) {
			oldestKey, oldest = key, entry.expiresAt
		}
	}
	if len(c.entries) >= c.maxEntries && oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Len returns the number of stored pages, expired ones included
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// InvalidateCache drops every page
func (c *MemoryCache) InvalidateCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]memoryEntry)
}

// SetCacheTTL sets the lifetime of pages stored from now on
func (c *MemoryCache) SetCacheTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = ttl
}
