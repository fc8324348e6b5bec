package client

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// permissionChecker is what the cache decorates.
type permissionChecker interface {
	Check(ctx context.Context, actorID, permission string) (bool, error)
}

// CachedPermissionGate wraps a permission checker with a short-TTL Redis
// cache. Only grants are cached: a denial is always re-checked so a revoked
// actor is locked out no later than the TTL and a newly granted one is never
// delayed by a stale negative.
type CachedPermissionGate struct {
	inner permissionChecker
	redis *redis.Client
	ttl   time.Duration
	log   zerolog.Logger
}

// NewCachedPermissionGate creates the caching decorator.
func NewCachedPermissionGate(inner permissionChecker, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedPermissionGate {
	return &CachedPermissionGate{inner: inner, redis: rdb, ttl: ttl, log: log}
}

func cacheKey(actorID, permission string) string {
	return "perm:" + actorID + ":" + permission
}

// Check consults the cache first; cache failures fall through to the inner
// gate, never to a denial.
func (g *CachedPermissionGate) Check(ctx context.Context, actorID, permission string) (bool, error) {
	key := cacheKey(actorID, permission)

	val, err := g.redis.Get(ctx, key).Result()
	if err == nil && val == "1" {
		return true, nil
	}
	if err != nil && err != redis.Nil {
		g.log.Warn().Err(err).Str("key", key).Msg("permission cache read failed")
	}

	allowed, err := g.inner.Check(ctx, actorID, permission)
	if err != nil {
		return false, err
	}

	if allowed {
		if err := g.redis.Set(ctx, key, "1", g.ttl).Err(); err != nil {
			g.log.Warn().Err(err).Str("key", key).Msg("permission cache write failed")
		}
	}
	return allowed, nil
}
