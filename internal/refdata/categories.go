package refdata

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fieldexpense/claimsync/internal/model"
	"github.com/fieldexpense/claimsync/internal/storage"
)

// CategoryLister is the remote category endpoint.
type CategoryLister interface {
	ListCategories(ctx context.Context) ([]model.Category, error)
}

// CategoryCache is the time-bounded cached copy of the category table.
type CategoryCache struct {
	store  storage.Store
	api    CategoryLister
	conn   ConnectivitySource
	logger *zap.Logger
	ttl    time.Duration
	now    func() time.Time

	mu         sync.Mutex
	categories []model.Category
	lastSync   time.Time
}

// NewCategoryCache creates a category cache. ttl <= 0 selects DefaultTTL.
func NewCategoryCache(store storage.Store, api CategoryLister, conn ConnectivitySource, ttl time.Duration, logger *zap.Logger) *CategoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CategoryCache{
		store:  store,
		api:    api,
		conn:   conn,
		logger: logger,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Hydrate loads the persisted cache and its last-sync timestamp.
func (c *CategoryCache) Hydrate(ctx context.Context) {
	var cached []model.Category
	if _, err := c.store.Get(ctx, storage.KeyCachedCategories, &cached); err != nil {
		c.logger.Warn("Failed to hydrate category cache", zap.Error(err))
		return
	}

	c.mu.Lock()
	if len(cached) > 0 {
		c.categories = cached
		c.lastSync = lastSyncAt(ctx, c.store, storage.KeyLastSyncCategories)
	}
	c.mu.Unlock()
}

// Fetch returns the category list. Within the freshness window a cached
// non-empty copy is returned without network I/O unless forceRefresh is
// set. Offline, the cache is served as-is; ErrNoData is returned only
// when there is neither network nor cache.
func (c *CategoryCache) Fetch(ctx context.Context, forceRefresh bool) ([]model.Category, error) {
	c.mu.Lock()
	cached := c.categories
	lastSync := c.lastSync
	c.mu.Unlock()

	if !forceRefresh && len(cached) > 0 && fresh(lastSync, c.ttl, c.now()) {
		return cached, nil
	}

	if !c.conn.IsOnline() {
		return c.fallback(ctx, nil)
	}

	fetched, err := c.api.ListCategories(ctx)
	if err != nil {
		c.logger.Warn("Category refresh failed, falling back to cache", zap.Error(err))
		return c.fallback(ctx, err)
	}

	now := c.now()
	c.mu.Lock()
	c.categories = fetched
	c.lastSync = now
	c.mu.Unlock()

	persistWithStamp(ctx, c.store, c.logger,
		storage.KeyCachedCategories, fetched,
		storage.KeyLastSyncCategories, now)

	c.logger.Info("Categories refreshed", zap.Int("count", len(fetched)))
	return fetched, nil
}

// ByID looks a category up in the cached copy.
func (c *CategoryCache) ByID(id int64) (model.Category, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cat := range c.categories {
		if cat.ID == id {
			return cat, true
		}
	}
	return model.Category{}, false
}

// fallback serves whatever cached data exists: in-memory first, then a
// reload from the durable store. Only a completely empty cache surfaces
// an error.
func (c *CategoryCache) fallback(ctx context.Context, cause error) ([]model.Category, error) {
	c.mu.Lock()
	cached := c.categories
	c.mu.Unlock()
	if len(cached) > 0 {
		return cached, nil
	}

	var stored []model.Category
	if _, err := c.store.Get(ctx, storage.KeyCachedCategories, &stored); err == nil && len(stored) > 0 {
		c.mu.Lock()
		c.categories = stored
		c.mu.Unlock()
		return stored, nil
	}

	if cause != nil {
		return nil, wrapFetchErr("categories", cause)
	}
	return nil, ErrNoData
}
