package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/ammiranda/category_service/config"
	"github.com/ammiranda/category_service/models"

	"github.com/redis/go-redis/v9"
)

var (
	provider CacheProvider
	once     sync.Once
	mu       sync.RWMutex

	// generation counts invalidations. genMu orders InvalidateCache against
	// SetPaginatedTreeAt so a page computed before an invalidation is never
	// stored after it.
	genMu      sync.Mutex
	generation uint64
)

// CacheProvider defines the interface for cache implementations.
// It caches pages of the category forest; any write to the tree must be
// followed by InvalidateCache.
type CacheProvider interface {
	// GetPaginatedTree retrieves a page of the tree from cache if available.
	// Parameters:
	//   - page: The page number
	//   - pageSize: The number of root categories per page
	// Returns:
	//   - The paginated tree response
	//   - A boolean indicating whether the response was found in cache
	GetPaginatedTree(page, pageSize int) (*models.PaginatedTreeResponse, bool)

	// SetPaginatedTree stores a page of the tree in cache.
	SetPaginatedTree(page, pageSize int, response *models.PaginatedTreeResponse)

	// InvalidateCache removes all cached pages.
	InvalidateCache()

	// SetCacheTTL sets the duration after which cached pages expire.
	SetCacheTTL(ttl time.Duration)

	// Initialize performs any necessary setup for the cache provider, such
	// as checking connectivity or creating tables.
	Initialize() error
}

// NewProvider builds the cache provider selected by cfg
func NewProvider(cfg *config.CacheConfig) (CacheProvider, error) {
	var p CacheProvider
	switch cfg.Provider {
	case config.CacheRedis:
		p = NewRedisCache(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	case config.CacheDynamoDB:
		d, err := NewDynamoDBCache(cfg.DynamoDBTable)
		if err != nil {
			return nil, fmt.Errorf("failed to create dynamodb cache: %w", err)
		}
		p = d
	case config.CacheMemory:
		p = NewMemoryCache()
	default:
		return nil, fmt.Errorf("unknown cache provider %q", cfg.Provider)
	}
	p.SetCacheTTL(cfg.TTL)
	return p, nil
}

// Initialize sets up the global cache provider from cfg
func Initialize(cfg *config.CacheConfig) error {
	var err error
	once.Do(func() {
		var p CacheProvider
		p, err = NewProvider(cfg)
		if err != nil {
			return
		}
		err = SetProvider(p)
	})
	return err
}

// cacheKey generates a cache key for the given page and pageSize
func cacheKey(page, pageSize int) string {
	return fmt.Sprintf("category_tree:%d:%d", page, pageSize)
}

// GetPaginatedTree retrieves a page of the tree from the global provider
func GetPaginatedTree(page, pageSize int) (*models.PaginatedTreeResponse, bool) {
	mu.RLock()
	defer mu.RUnlock()
	if provider == nil {
		return nil, false
	}
	return provider.GetPaginatedTree(page, pageSize)
}

// SetPaginatedTree stores a page of the tree in the global provider
func SetPaginatedTree(page, pageSize int, response *models.PaginatedTreeResponse) {
	mu.RLock()
	defer mu.RUnlock()
	if provider == nil {
		return
	}
	provider.SetPaginatedTree(page, pageSize, response)
}

// Generation returns the current invalidation generation. Callers read it
// before loading the data they intend to cache.
func Generation() uint64 {
	genMu.Lock()
	defer genMu.Unlock()
	return generation
}

// SetPaginatedTreeAt stores a page only if no invalidation happened since
// gen was read. It reports whether the page was stored.
func SetPaginatedTreeAt(gen uint64, page, pageSize int, response *models.PaginatedTreeResponse) bool {
	genMu.Lock()
	defer genMu.Unlock()
	if gen != generation {
		return false
	}

	mu.RLock()
	defer mu.RUnlock()
	if provider == nil {
		return false
	}
	provider.SetPaginatedTree(page, pageSize, response)
	return true
}

// InvalidateCache removes all cached data from the global provider
func InvalidateCache() {
	genMu.Lock()
	defer genMu.Unlock()
	generation++

	mu.RLock()
	defer mu.RUnlock()
	if provider == nil {
		return
	}
	provider.InvalidateCache()
}

// SetCacheTTL sets the cache time-to-live duration of the global provider
func SetCacheTTL(ttl time.Duration) {
	mu.RLock()
	defer mu.RUnlock()
	if provider == nil {
		return
	}
	provider.SetCacheTTL(ttl)
}

// SetProvider allows changing the cache provider at runtime
func SetProvider(p CacheProvider) error {
	if err := p.Initialize(); err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	provider = p
	return nil
}

// ResetProvider resets the cache provider for testing
func ResetProvider() {
	mu.Lock()
	defer mu.Unlock()
	provider = nil
	once = sync.Once{}
}
