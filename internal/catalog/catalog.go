// Package catalog caches the tenant menu tree in front of the remote
// backend. Reads take a read lock; refreshes are coalesced into a single
// writer so concurrent sessions never stampede the backend.
package catalog

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/core"
)

// DefaultTTL keeps menus fresh enough for price changes while absorbing the
// conversational request rate.
const DefaultTTL = 5 * time.Minute

type fetcher interface {
	MenuStructure(ctx context.Context, tenant *core.TenantConfig) ([]core.MenuCategory, error)
	ProductDetails(ctx context.Context, tenant *core.TenantConfig, ids []string) ([]core.Product, error)
}

// SharedCache is an optional cross-replica L2 (Redis). Misses and failures
// fall through to the backend.
type SharedCache interface {
	Get(ctx context.Context, tenant *core.TenantConfig) ([]core.MenuCategory, bool)
	Set(ctx context.Context, tenant *core.TenantConfig, cats []core.MenuCategory)
}

type tenantCache struct {
	mu         sync.RWMutex
	categories []core.MenuCategory
	fetchedAt  time.Time
	inflight   chan struct{}

	detailMu sync.RWMutex
	details  map[string]detailEntry
}

type detailEntry struct {
	product   core.Product
	fetchedAt time.Time
}

// Catalog implements core.MenuCatalog.
type Catalog struct {
	remote fetcher
	shared SharedCache
	ttl    time.Duration
	log    *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	tenants map[string]*tenantCache
}

func New(remote fetcher, shared SharedCache, ttl time.Duration, log *zap.Logger) *Catalog {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Catalog{
		remote:  remote,
		shared:  shared,
		ttl:     ttl,
		log:     log,
		now:     time.Now,
		tenants: make(map[string]*tenantCache),
	}
}

func cacheKey(t *core.TenantConfig) string {
	return t.Subdomain + ":" + string(t.Branch)
}

func (c *Catalog) entry(t *core.TenantConfig) *tenantCache {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey(t)
	e, ok := c.tenants[key]
	if !ok {
		e = &tenantCache{details: make(map[string]detailEntry)}
		c.tenants[key] = e
	}
	return e
}

// Categories returns the cached tree, refreshing it when stale. Concurrent
// callers of a stale entry share one backend fetch.
func (c *Catalog) Categories(ctx context.Context, tenant *core.TenantConfig) ([]core.MenuCategory, error) {
	e := c.entry(tenant)

	e.mu.RLock()
	if e.categories != nil && c.now().Sub(e.fetchedAt) < c.ttl {
		cats := e.categories
		e.mu.RUnlock()
		return cats, nil
	}
	e.mu.RUnlock()

	return c.refresh(ctx, tenant, e)
}

func (c *Catalog) refresh(ctx context.Context, tenant *core.TenantConfig, e *tenantCache) ([]core.MenuCategory, error) {
	e.mu.Lock()
	// Re-check: another caller may have refreshed while we waited.
	if e.categories != nil && c.now().Sub(e.fetchedAt) < c.ttl {
		cats := e.categories
		e.mu.Unlock()
		return cats, nil
	}
	if e.inflight != nil {
		wait := e.inflight
		e.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		e.mu.RLock()
		defer e.mu.RUnlock()
		if e.categories != nil {
			return e.categories, nil
		}
		return nil, core.ErrItemNotFound
	}
	done := make(chan struct{})
	e.inflight = done
	stale := e.categories
	e.mu.Unlock()

	cats, err := c.fetch(ctx, tenant)

	e.mu.Lock()
	e.inflight = nil
	close(done)
	if err == nil {
		e.categories = cats
		e.fetchedAt = c.now()
		e.mu.Unlock()
		return cats, nil
	}
	e.mu.Unlock()

	if stale != nil {
		c.log.Warn("menu refresh failed, serving stale catalog",
			zap.String("tenant", string(tenant.ID)), zap.Error(err))
		return stale, nil
	}
	return nil, err
}

func (c *Catalog) fetch(ctx context.Context, tenant *core.TenantConfig) ([]core.MenuCategory, error) {
	if c.shared != nil {
		if cats, ok := c.shared.Get(ctx, tenant); ok {
			return cats, nil
		}
	}
	cats, err := c.remote.MenuStructure(ctx, tenant)
	if err != nil {
		return nil, err
	}
	if c.shared != nil {
		c.shared.Set(ctx, tenant, cats)
	}
	return cats, nil
}

// ProductByID scans the cached tree.
func (c *Catalog) ProductByID(ctx context.Context, tenant *core.TenantConfig, id string) (*core.Product, error) {
	cats, err := c.Categories(ctx, tenant)
	if err != nil {
		return nil, err
	}
	for _, cat := range cats {
		for i := range cat.Products {
			if cat.Products[i].ID == id {
				p := cat.Products[i]
				return &p, nil
			}
		}
	}
	return nil, core.ErrItemNotFound
}

// ProductDetails resolves presentations and modifier groups, cached per
// product with the same TTL as the tree.
func (c *Catalog) ProductDetails(ctx context.Context, tenant *core.TenantConfig, id string) (*core.Product, error) {
	e := c.entry(tenant)

	e.detailMu.RLock()
	if d, ok := e.details[id]; ok && c.now().Sub(d.fetchedAt) < c.ttl {
		p := d.product
		e.detailMu.RUnlock()
		return &p, nil
	}
	e.detailMu.RUnlock()

	products, err := c.remote.ProductDetails(ctx, tenant, []string{id})
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, core.ErrItemNotFound
	}
	p := products[0]

	e.detailMu.Lock()
	e.details[id] = detailEntry{product: p, fetchedAt: c.now()}
	e.detailMu.Unlock()
	return &p, nil
}

// Search matches product names case-insensitively against the cached tree.
func (c *Catalog) Search(ctx context.Context, tenant *core.TenantConfig, query string) ([]core.Product, error) {
	cats, err := c.Categories(ctx, tenant)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	var out []core.Product
	for _, cat := range cats {
		for _, p := range cat.Products {
			if strings.Contains(strings.ToLower(p.Name), q) {
				out = append(out, p)
			}
		}
	}
	return out, nil
}
