package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores resolved tenants keyed by slug or domain.
type Cache interface {
	Get(ctx context.Context, key string) (*Tenant, bool)
	Set(ctx context.Context, key string, t *Tenant)
	Delete(ctx context.Context, keys ...string)
}

// Lookup turns a Resolution into a Tenant, consulting an optional cache.
type Lookup struct {
	repo  Repository
	cache Cache
}

// NewLookup creates a Lookup. cache may be nil.
func NewLookup(repo Repository, cache Cache) *Lookup {
	return &Lookup{repo: repo, cache: cache}
}

func slugKey(slug string) string     { return "tenant:slug:" + slug }
func domainKey(domain string) string { return "tenant:domain:" + domain }

// Find returns the active tenant referenced by res. Inactive tenants are
// reported as not found.
func (l *Lookup) Find(ctx context.Context, res Resolution) (*Tenant, error) {
	if !res.Matched {
		return nil, ErrTenantNotFound
	}

	key := slugKey(res.Slug)
	if res.Domain != "" {
		key = domainKey(res.Domain)
	}

	if l.cache != nil {
		if t, ok := l.cache.Get(ctx, key); ok {
			return t, nil
		}
	}

	var (
		t   *Tenant
		err error
	)
	if res.Domain != "" {
		t, err = l.repo.GetByDomain(ctx, res.Domain)
	} else {
		t, err = l.repo.GetBySlug(ctx, res.Slug)
	}
	if err != nil {
		return nil, err
	}
	if !t.Active {
		return nil, ErrTenantNotFound
	}

	if l.cache != nil {
		l.cache.Set(ctx, key, t)
	}
	return t, nil
}

// Invalidate drops every cache entry that may reference t.
func (l *Lookup) Invalidate(ctx context.Context, t *Tenant) {
	if l.cache == nil || t == nil {
		return
	}
	keys := []string{slugKey(t.Slug)}
	if t.CustomDomain != nil {
		keys = append(keys, domainKey(*t.CustomDomain))
	}
	l.cache.Delete(ctx, keys...)
}

// RedisCache is a Cache backed by Redis with a fixed TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache parses a redis:// URL and returns a cache using it.
func NewRedisCache(url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	return &RedisCache{client: redis.NewClient(opts), ttl: ttl}, nil
}

// Ping verifies the Redis connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Get returns the cached tenant for key. Cache failures are treated as misses.
func (c *RedisCache) Get(ctx context.Context, key string) (*Tenant, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("tenant cache read failed", "key", key, "error", err)
		}
		return nil, false
	}

	var t Tenant
	if err := json.Unmarshal(raw, &t); err != nil {
		slog.Warn("tenant cache entry is corrupt", "key", key, "error", err)
		return nil, false
	}
	return &t, true
}

// Set stores t under key.
func (c *RedisCache) Set(ctx context.Context, key string, t *Tenant) {
	raw, err := json.Marshal(t)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		slog.Warn("tenant cache write failed", "key", key, "error", err)
	}
}

// Delete removes keys from the cache.
func (c *RedisCache) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		slog.Warn("tenant cache delete failed", "keys", keys, "error", err)
	}
}
