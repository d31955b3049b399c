package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ammiranda/category_service/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const redisKeyPattern = "category_tree:*"

// RedisCache implements CacheProvider using Redis
type RedisCache struct {
	client    *redis.Client
	ttl       time.Duration
	opTimeout time.Duration
}

// NewRedisCache creates a new Redis cache provider
func NewRedisCache(opts *redis.Options) *RedisCache {
	return &RedisCache{
		client:    redis.NewClient(opts),
		ttl:       5 * time.Minute,
		opTimeout: 2 * time.Second,
	}
}

// Initialize checks that the Redis server is reachable
func (c *RedisCache) Initialize() error {
	ctx, cancel := c.opContext()
	defer cancel()
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.opTimeout)
}

// GetPaginatedTree retrieves a page of the tree from Redis if available
func (c *RedisCache) GetPaginatedTree(page, pageSize int) (*models.PaginatedTreeResponse, bool) {
	ctx, cancel := c.opContext()
	defer cancel()

	data, err := c.client.Get(ctx, cacheKey(page, pageSize)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Msg("redis cache read failed")
		}
		return nil, false
	}

	var response models.PaginatedTreeResponse
	if err := json.Unmarshal(data, &response); err != nil {
		log.Warn().Err(err).Msg("redis cache entry is not valid JSON")
		return nil, false
	}
	return &response, true
}

// SetPaginatedTree stores a page of the tree in Redis
func (c *RedisCache) SetPaginatedTree(page, pageSize int, response *models.PaginatedTreeResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		log.Warn().Err(err).Msg("failed to encode tree page for redis")
		return
	}

	ctx, cancel := c.opContext()
	defer cancel()
	if err := c.client.Set(ctx, cacheKey(page, pageSize), data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Msg("redis cache write failed")
	}
}

// InvalidateCache removes every cached page from Redis
func (c *RedisCache) InvalidateCache() {
	ctx, cancel := c.opContext()
	defer cancel()

	iter := c.client.Scan(ctx, 0, redisKeyPattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Warn().Err(err).Msg("redis cache scan failed")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.Warn().Err(err).Msg("redis cache invalidation failed")
	}
}

// SetCacheTTL sets the cache time-to-live duration
func (c *RedisCache) SetCacheTTL(ttl time.Duration) {
	c.ttl = ttl
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
