package orgs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jobtrail/jobtrail/pkg/observability"
	"github.com/jobtrail/jobtrail/pkg/rbac"
)

// RoleCache caches (organization, user) -> role lookups for read paths.
// L1 is an in-process LRU, L2 is redis. Mutating operations never trust
// the cache: they re-read the membership row inside their transaction and
// invalidate here afterwards. A nil *RoleCache is valid and misses
// everything.
type RoleCache struct {
	l1      *lru.Cache[string, rbac.Role]
	redis   *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewRoleCache creates a role cache. redisClient may be nil to run with
// the in-process tier only.
func NewRoleCache(redisClient *redis.Client, size int, ttl time.Duration, metrics *observability.Metrics) (*RoleCache, error) {
	if size <= 0 {
		size = 4096
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	l1, err := lru.New[string, rbac.Role](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create role cache: %w", err)
	}
	return &RoleCache{l1: l1, redis: redisClient, ttl: ttl, metrics: metrics}, nil
}

func roleCacheKey(orgID, userID int64) string {
	return fmt.Sprintf("orgrole:%d:%d", orgID, userID)
}

// Get returns a cached role for an active member.
func (c *RoleCache) Get(ctx context.Context, orgID, userID int64) (rbac.Role, bool) {
	if c == nil {
		return "", false
	}
	key := roleCacheKey(orgID, userID)

	if role, ok := c.l1.Get(key); ok {
		if c.metrics != nil {
			c.metrics.RoleCacheHitsTotal.WithLabelValues("l1").Inc()
		}
		return role, true
	}

	if c.redis != nil {
		val, err := c.redis.Get(ctx, key).Result()
		if err == nil {
			role := rbac.Role(val)
			if role.Valid() {
				c.l1.Add(key, role)
				if c.metrics != nil {
					c.metrics.RoleCacheHitsTotal.WithLabelValues("l2").Inc()
				}
				return role, true
			}
		}
	}

	if c.metrics != nil {
		c.metrics.RoleCacheMissesTotal.Inc()
	}
	return "", false
}

// Set stores a role in both tiers. Redis failures are ignored; the cache
// is best effort.
func (c *RoleCache) Set(ctx context.Context, orgID, userID int64, role rbac.Role) {
	if c == nil {
		return
	}
	key := roleCacheKey(orgID, userID)
	c.l1.Add(key, role)
	if c.redis != nil {
		c.redis.Set(ctx, key, string(role), c.ttl)
	}
}

// Invalidate drops the cached role after a membership mutation.
func (c *RoleCache) Invalidate(ctx context.Context, orgID, userID int64) {
	if c == nil {
		return
	}
	key := roleCacheKey(orgID, userID)
	c.l1.Remove(key)
	if c.redis != nil {
		c.redis.Del(ctx, key)
	}
}
