// Package redis provides the shared menu-catalog cache so replicas of the
// gateway reuse one backend fetch per tenant per TTL window.
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/core"
)

const menuKeyPrefix = "menu:"

// MenuCache implements catalog.SharedCache on Redis. All failures degrade to
// a cache miss; the caller falls through to the backend.
type MenuCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewMenuCache(client *redis.Client, ttl time.Duration, log *zap.Logger) *MenuCache {
	return &MenuCache{client: client, ttl: ttl, log: log}
}

func menuKey(t *core.TenantConfig) string {
	return menuKeyPrefix + t.Subdomain + ":" + string(t.Branch)
}

func (c *MenuCache) Get(ctx context.Context, tenant *core.TenantConfig) ([]core.MenuCategory, bool) {
	val, err := c.client.Get(ctx, menuKey(tenant)).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.log.Warn("menu cache read failed", zap.String("tenant", string(tenant.ID)), zap.Error(err))
		return nil, false
	}

	var cats []core.MenuCategory
	if err := json.Unmarshal([]byte(val), &cats); err != nil {
		c.log.Warn("menu cache entry corrupt", zap.String("tenant", string(tenant.ID)), zap.Error(err))
		return nil, false
	}
	return cats, true
}

func (c *MenuCache) Set(ctx context.Context, tenant *core.TenantConfig, cats []core.MenuCategory) {
	data, err := json.Marshal(cats)
	if err != nil {
		c.log.Warn("menu cache marshal failed", zap.String("tenant", string(tenant.ID)), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, menuKey(tenant), data, c.ttl).Err(); err != nil {
		c.log.Warn("menu cache write failed", zap.String("tenant", string(tenant.ID)), zap.Error(err))
	}
}
