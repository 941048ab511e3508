// Package cache provides the tenant-scoped result cache behind lead search.
// A Redis backend shares entries across replicas; the local backend keeps
// single-process deployments dependency-free.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Cache stores serialized results keyed by tenant, resource kind, and an
// opaque identifier. A backend failure degrades to a miss rather than
// failing the request.
type Cache interface {
	Get(ctx context.Context, tenant, resource, identifier string) ([]byte, bool)
	Set(ctx context.Context, tenant, resource, identifier string, value []byte, ttl time.Duration)
	Close() error
}

func cacheKey(tenant, resource, identifier string) string {
	return fmt.Sprintf("prospect:%s:%s:%s", tenant, resource, identifier)
}

// redisCache is the shared backend.
type redisCache struct {
	client *redis.Client
}

// NewRedis connects to Redis and verifies it with a ping.
func NewRedis(ctx context.Context, addr, password string, db int) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, eris.Wrap(err, "cache: redis ping")
	}
	return &redisCache{client: client}, nil
}

func (c *redisCache) Get(ctx context.Context, tenant, resource, identifier string) ([]byte, bool) {
	val, err := c.client.Get(ctx, cacheKey(tenant, resource, identifier)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("cache: redis get failed", zap.String("resource", resource), zap.Error(err))
		}
		return nil, false
	}
	return val, true
}

func (c *redisCache) Set(ctx context.Context, tenant, resource, identifier string, value []byte, ttl time.Duration) {
	if err := c.client.Set(ctx, cacheKey(tenant, resource, identifier), value, ttl).Err(); err != nil {
		zap.L().Warn("cache: redis set failed", zap.String("resource", resource), zap.Error(err))
	}
}

func (c *redisCache) Close() error {
	return c.client.Close()
}

// localCache is the in-process backend used when no Redis address is
// configured.
type localCache struct {
	c *gocache.Cache
}

// NewLocal creates an in-process cache with background expiry sweeps.
func NewLocal() Cache {
	return &localCache{c: gocache.New(gocache.NoExpiration, 10*time.Minute)}
}

func (c *localCache) Get(_ context.Context, tenant, resource, identifier string) ([]byte, bool) {
	v, ok := c.c.Get(cacheKey(tenant, resource, identifier))
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

func (c *localCache) Set(_ context.Context, tenant, resource, identifier string, value []byte, ttl time.Duration) {
	c.c.Set(cacheKey(tenant, resource, identifier), value, ttl)
}

func (c *localCache) Close() error { return nil }
