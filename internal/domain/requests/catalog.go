package requests

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"hrleave/internal/domain/apperror"
)

type TypeStore interface {
	ListRequestTypes(ctx context.Context) ([]RequestType, error)
}

// Catalog caches the request-type reference table. Concurrent misses share
// a single load.
type Catalog struct {
	store TypeStore
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu       sync.RWMutex
	types    []RequestType
	byID     map[string]RequestType
	loadedAt time.Time
}

func NewCatalog(store TypeStore, ttl time.Duration) *Catalog {
	return &Catalog{store: store, ttl: ttl, now: time.Now}
}

func (c *Catalog) List(ctx context.Context) ([]RequestType, error) {
	if types, ok := c.cached(); ok {
		return types, nil
	}
	if err := c.load(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]RequestType(nil), c.types...), nil
}

func (c *Catalog) Get(ctx context.Context, id string) (RequestType, error) {
	if _, ok := c.cached(); ok {
		if rt, found := c.lookup(id); found {
			return rt, nil
		}
	}
	// a miss may be a type added since the last load
	if err := c.load(ctx); err != nil {
		return RequestType{}, err
	}
	if rt, found := c.lookup(id); found {
		return rt, nil
	}
	return RequestType{}, apperror.NotFound("request type")
}

func (c *Catalog) cached() ([]RequestType, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.byID == nil || c.ttl <= 0 || c.now().Sub(c.loadedAt) > c.ttl {
		return nil, false
	}
	return append([]RequestType(nil), c.types...), true
}

func (c *Catalog) lookup(id string) (RequestType, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rt, ok := c.byID[id]
	return rt, ok
}

func (c *Catalog) load(ctx context.Context) error {
	_, err, _ := c.group.Do("request-types", func() (any, error) {
		types, err := c.store.ListRequestTypes(ctx)
		if err != nil {
			return nil, err
		}
		byID := make(map[string]RequestType, len(types))
		for _, rt := range types {
			byID[rt.ID] = rt
		}
		c.mu.Lock()
		c.types = types
		c.byID = byID
		c.loadedAt = c.now()
		c.mu.Unlock()
		return nil, nil
	})
	return err
}
