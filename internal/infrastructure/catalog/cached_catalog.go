package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/example/plant-store/internal/config"
	"github.com/example/plant-store/internal/domain/plant"
	"github.com/example/plant-store/internal/logger"
)

// Backend is the full read surface of a plant catalog.
type Backend interface {
	plant.Catalog
	Search(ctx context.Context, params plant.SearchParams) ([]*plant.Plant, int64, error)
	Categories(ctx context.Context) ([]string, error)
}

// NewRedisClient connects to redis and verifies the connection with a ping.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// CachedCatalog is a read-through redis cache in front of a Backend.
// Only plant lookups are cached; listings go straight to the backend.
// A failing redis degrades to uncached reads.
type CachedCatalog struct {
	Backend
	rdb     goredis.UniversalClient
	ttl     time.Duration
	timeout time.Duration
	log     *logger.Logger
	group   singleflight.Group
}

// NewCachedCatalog wraps backend. timeout bounds a shared backend lookup,
// which runs detached from the cancellation of the request that started it.
func NewCachedCatalog(backend Backend, rdb goredis.UniversalClient, ttl, timeout time.Duration, log *logger.Logger) *CachedCatalog {
	return &CachedCatalog{
		Backend: backend,
		rdb:     rdb,
		ttl:     ttl,
		timeout: timeout,
		log:     log.With("component", "catalog_cache"),
	}
}

func cacheKey(id string) string {
	return "plant:" + id
}

func (c *CachedCatalog) Resolve(ctx context.Context, id string) (*plant.Plant, error) {
	if err := plant.ValidateID(id); err != nil {
		return nil, err
	}

	raw, err := c.rdb.Get(ctx, cacheKey(id)).Bytes()
	switch {
	case err == nil:
		var p plant.Plant
		if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil {
			return &p, nil
		}
		c.log.Warn("discarding corrupt cache entry", "plant_id", id)
	case !errors.Is(err, goredis.Nil):
		c.log.Warn("plant cache read failed", "plant_id", id, "error", err)
	}

	v, err, _ := c.group.Do(id, func() (interface{}, error) {
		fetchCtx, cancel := c.sharedContext(ctx)
		defer cancel()
		p, err := c.Backend.Resolve(fetchCtx, id)
		if err != nil {
			return nil, err
		}
		c.store(fetchCtx, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	p := *v.(*plant.Plant)
	return &p, nil
}

func (c *CachedCatalog) ResolveMany(ctx context.Context, ids []string) (map[string]*plant.Plant, error) {
	out := make(map[string]*plant.Plant, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(id)
	}

	missing := ids
	values, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		c.log.Warn("plant cache read failed", "count", len(ids), "error", err)
	} else {
		missing = nil
		for i, v := range values {
			s, ok := v.(string)
			if !ok {
				missing = append(missing, ids[i])
				continue
			}
			var p plant.Plant
			if json.Unmarshal([]byte(s), &p) != nil {
				missing = append(missing, ids[i])
				continue
			}
			out[ids[i]] = &p
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := c.Backend.ResolveMany(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, p := range fetched {
		out[id] = p
		c.store(ctx, p)
	}
	return out, nil
}

// sharedContext keeps the caller's values but not its cancellation, since
// other callers may be waiting on the same lookup.
func (c *CachedCatalog) sharedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *CachedCatalog) store(ctx context.Context, p *plant.Plant) {
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(p.ID), raw, c.ttl).Err(); err != nil {
		c.log.Debug("plant cache write failed", "plant_id", p.ID, "error", err)
	}
}
