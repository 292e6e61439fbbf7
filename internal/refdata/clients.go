package refdata

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fieldexpense/claimsync/internal/model"
	"github.com/fieldexpense/claimsync/internal/storage"
)

// ClientAPI is the remote client endpoint surface.
type ClientAPI interface {
	ListClients(ctx context.Context, search string) ([]model.Client, error)
	CreateClient(ctx context.Context, name string) (*model.Client, error)
}

// ClientCache is the time-bounded cached copy of the client table, with
// search and offline client creation.
type ClientCache struct {
	store  storage.Store
	api    ClientAPI
	conn   ConnectivitySource
	logger *zap.Logger
	ttl    time.Duration
	now    func() time.Time

	mu       sync.Mutex
	clients  []model.Client
	lastSync time.Time

	// lastPlaceholderID makes consecutive offline creations within the
	// same millisecond still get distinct negative ids.
	lastPlaceholderID int64
}

// NewClientCache creates a client cache. ttl <= 0 selects DefaultTTL.
func NewClientCache(store storage.Store, api ClientAPI, conn ConnectivitySource, ttl time.Duration, logger *zap.Logger) *ClientCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ClientCache{
		store:  store,
		api:    api,
		conn:   conn,
		logger: logger,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Hydrate loads the persisted cache and its last-sync timestamp.
func (c *ClientCache) Hydrate(ctx context.Context) {
	var cached []model.Client
	if _, err := c.store.Get(ctx, storage.KeyCachedClients, &cached); err != nil {
		c.logger.Warn("Failed to hydrate client cache", zap.Error(err))
		return
	}

	c.mu.Lock()
	if len(cached) > 0 {
		c.clients = cached
		c.lastSync = lastSyncAt(ctx, c.store, storage.KeyLastSyncClients)
	}
	c.mu.Unlock()
}

// Fetch returns the full client list, refreshing from the server when the
// cached copy is stale or forceRefresh is set. Semantics mirror
// CategoryCache.Fetch.
func (c *ClientCache) Fetch(ctx context.Context, forceRefresh bool) ([]model.Client, error) {
	c.mu.Lock()
	cached := c.clients
	lastSync := c.lastSync
	c.mu.Unlock()

	if !forceRefresh && len(cached) > 0 && fresh(lastSync, c.ttl, c.now()) {
		return cached, nil
	}

	if !c.conn.IsOnline() {
		return c.fallback(ctx, nil)
	}

	fetched, err := c.api.ListClients(ctx, "")
	if err != nil {
		c.logger.Warn("Client refresh failed, falling back to cache", zap.Error(err))
		return c.fallback(ctx, err)
	}

	c.replaceAll(ctx, fetched)
	c.logger.Info("Clients refreshed", zap.Int("count", len(fetched)))
	return fetched, nil
}

// Search returns clients matching query. Online, filtering is delegated
// to the server. Offline, the full cached list is filtered locally by
// case-insensitive substring match, preserving cached order.
func (c *ClientCache) Search(ctx context.Context, query string) ([]model.Client, error) {
	if !c.conn.IsOnline() {
		all, err := c.fallback(ctx, nil)
		if err != nil {
			return nil, err
		}
		if query == "" {
			return all, nil
		}
		needle := strings.ToLower(query)
		matched := make([]model.Client, 0, len(all))
		for _, cl := range all {
			if strings.Contains(strings.ToLower(cl.Name), needle) {
				matched = append(matched, cl)
			}
		}
		return matched, nil
	}

	results, err := c.api.ListClients(ctx, query)
	if err != nil {
		c.logger.Warn("Client search failed, filtering cache locally",
			zap.String("query", query), zap.Error(err))
		all, fbErr := c.fallback(ctx, err)
		if fbErr != nil {
			return nil, fbErr
		}
		if query == "" {
			return all, nil
		}
		needle := strings.ToLower(query)
		matched := make([]model.Client, 0, len(all))
		for _, cl := range all {
			if strings.Contains(strings.ToLower(cl.Name), needle) {
				matched = append(matched, cl)
			}
		}
		return matched, nil
	}

	// A searchless response is the full table; cache it.
	if query == "" && len(results) > 0 {
		c.replaceAll(ctx, results)
	}
	return results, nil
}

// Create registers a new client. Online, the server record is prepended
// to the cache. Offline, a placeholder with a unique negative id is
// prepended instead; the placeholder never crosses the wire, because
// submissions carry the client name as free text and the server performs
// lookup-or-create. The next full refresh replaces placeholders wholesale.
func (c *ClientCache) Create(ctx context.Context, name string) (model.Client, error) {
	if !c.conn.IsOnline() {
		placeholder := model.Client{ID: c.placeholderID(), Name: name}

		c.mu.Lock()
		c.clients = append([]model.Client{placeholder}, c.clients...)
		snapshot := make([]model.Client, len(c.clients))
		copy(snapshot, c.clients)
		c.mu.Unlock()

		if err := c.store.Set(ctx, storage.KeyCachedClients, snapshot); err != nil {
			c.logger.Warn("Failed to persist placeholder client", zap.Error(err))
		}

		c.logger.Info("Created offline placeholder client",
			zap.Int64("id", placeholder.ID), zap.String("name", name))
		return placeholder, nil
	}

	created, err := c.api.CreateClient(ctx, name)
	if err != nil {
		return model.Client{}, wrapFetchErr("client creation", err)
	}

	c.mu.Lock()
	c.clients = append([]model.Client{*created}, c.clients...)
	snapshot := make([]model.Client, len(c.clients))
	copy(snapshot, c.clients)
	c.mu.Unlock()

	if err := c.store.Set(ctx, storage.KeyCachedClients, snapshot); err != nil {
		c.logger.Warn("Failed to persist client cache", zap.Error(err))
	}
	return *created, nil
}

func (c *ClientCache) placeholderID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := -c.now().UnixMilli()
	if id >= c.lastPlaceholderID {
		id = c.lastPlaceholderID - 1
	}
	c.lastPlaceholderID = id
	return id
}

func (c *ClientCache) replaceAll(ctx context.Context, clients []model.Client) {
	now := c.now()
	c.mu.Lock()
	c.clients = clients
	c.lastSync = now
	c.mu.Unlock()

	persistWithStamp(ctx, c.store, c.logger,
		storage.KeyCachedClients, clients,
		storage.KeyLastSyncClients, now)
}

func (c *ClientCache) fallback(ctx context.Context, cause error) ([]model.Client, error) {
	c.mu.Lock()
	cached := c.clients
	c.mu.Unlock()
	if len(cached) > 0 {
		return cached, nil
	}

	var stored []model.Client
	if _, err := c.store.Get(ctx, storage.KeyCachedClients, &stored); err == nil && len(stored) > 0 {
		c.mu.Lock()
		c.clients = stored
		c.mu.Unlock()
		return stored, nil
	}

	if cause != nil {
		return nil, wrapFetchErr("clients", cause)
	}
	return nil, ErrNoData
}
