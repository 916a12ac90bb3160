package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/webcomponents/catalog/pkg/catalog"
	"github.com/webcomponents/catalog/pkg/storage"
)

// RedisClient is the L2 read-through cache sitting between the L1
// in-process LRU and Postgres.
type RedisClient struct {
	client *redis.Client
	config storage.Config
}

// NewRedisClient creates a new Redis client.
func NewRedisClient(config storage.Config) (*RedisClient, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if config.RedisPassword != "" {
		opts.Password = config.RedisPassword
	}
	if config.RedisDB >= 0 {
		opts.DB = config.RedisDB
	}
	if config.RedisMaxRetries > 0 {
		opts.MaxRetries = config.RedisMaxRetries
	}
	if config.RedisPoolSize > 0 {
		opts.PoolSize = config.RedisPoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisClient{client: client, config: config}, nil
}

func (c *RedisClient) GetLibrary(ctx context.Context, id string) (*catalog.Library, error) {
	key := fmt.Sprintf("library:%s", id)
	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var lib catalog.Library
	if err := unmarshalFromRedis([]byte(data), &lib); err != nil {
		c.client.Del(ctx, key)
		return nil, fmt.Errorf("failed to unmarshal library: %w", err)
	}
	return &lib, nil
}

func (c *RedisClient) SetLibrary(ctx context.Context, lib *catalog.Library) error {
	key := fmt.Sprintf("library:%s", lib.ID())
	data, err := marshalForRedis(lib)
	if err != nil {
		return fmt.Errorf("failed to marshal library: %w", err)
	}
	return c.client.Set(ctx, key, data, c.config.CacheTTL["library"]).Err()
}

func (c *RedisClient) InvalidateLibrary(ctx context.Context, id string) error {
	return c.client.Del(ctx, fmt.Sprintf("library:%s", id)).Err()
}

func (c *RedisClient) GetVersionCache(ctx context.Context, libraryID string) (*catalog.VersionCache, error) {
	key := fmt.Sprintf("versioncache:%s", libraryID)
	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var vc catalog.VersionCache
	if err := unmarshalFromRedis([]byte(data), &vc); err != nil {
		c.client.Del(ctx, key)
		return nil, fmt.Errorf("failed to unmarshal version cache: %w", err)
	}
	return &vc, nil
}

func (c *RedisClient) SetVersionCache(ctx context.Context, vc *catalog.VersionCache) error {
	key := fmt.Sprintf("versioncache:%s", vc.LibraryID)
	data, err := marshalForRedis(vc)
	if err != nil {
		return fmt.Errorf("failed to marshal version cache: %w", err)
	}
	return c.client.Set(ctx, key, data, c.config.CacheTTL["version_cache"]).Err()
}

func (c *RedisClient) InvalidateVersionCache(ctx context.Context, libraryID string) error {
	return c.client.Del(ctx, fmt.Sprintf("versioncache:%s", libraryID)).Err()
}

// InvalidatePatterns removes keys matching the given SCAN patterns.
func (c *RedisClient) InvalidatePatterns(ctx context.Context, patterns ...string) error {
	for _, pattern := range patterns {
		iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
				return fmt.Errorf("failed to delete key %s: %w", iter.Val(), err)
			}
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("scan failed for pattern %s: %w", pattern, err)
		}
	}
	return nil
}

func (c *RedisClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisClient) Close() error {
	return c.client.Close()
}

// GetDel atomically gets and deletes a key — the primitive the task
// runtime's single-use XSRF admission token is built on.
func (c *RedisClient) GetDel(ctx context.Context, key string) (string, error) {
	return c.client.GetDel(ctx, key).Result()
}

// SetNX sets a key only if absent, used for distributed admission locks.
func (c *RedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, value, expiration).Result()
}

func (c *RedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, key).Result()
}

func (c *RedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return c.client.Expire(ctx, key, expiration).Err()
}

// GetClient returns the underlying client for health checks.
func (c *RedisClient) GetClient() *redis.Client {
	return c.client
}
