package recommend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const prefetchConcurrency = 3

// Cache memoizes ProvinceData per province for the life of the process.
// Concurrent fetches of the same province share one backend request.
type Cache struct {
	fetcher Fetcher
	memo    *cache.Cache
	group   singleflight.Group
	logger  *slog.Logger
}

// NewCache creates a Cache backed by the given Fetcher. Entries never expire.
func NewCache(f Fetcher) *Cache {
	return &Cache{
		fetcher: f,
		memo:    cache.New(cache.NoExpiration, 0),
		logger:  slog.Default(),
	}
}

// Lookup returns the memoized data for province, if any.
func (c *Cache) Lookup(province string) (ProvinceData, bool) {
	v, ok := c.memo.Get(province)
	if !ok {
		return ProvinceData{}, false
	}
	return v.(ProvinceData), true
}

// Fetch returns the memoized data for province, requesting it from the
// backend on a miss. Failures are not memoized.
func (c *Cache) Fetch(ctx context.Context, province string) (ProvinceData, error) {
	if data, ok := c.Lookup(province); ok {
		return data, nil
	}

	v, err, shared := c.group.Do(province, func() (any, error) {
		if data, ok := c.Lookup(province); ok {
			return data, nil
		}
		data, err := c.fetcher.Recommend(ctx, province)
		if err != nil {
			return nil, err
		}
		c.memo.Set(province, data, cache.NoExpiration)
		return data, nil
	})
	if err != nil {
		return ProvinceData{}, fmt.Errorf("fetching recommendations for %s: %w", province, err)
	}
	if shared {
		c.logger.Debug("recommendation fetch shared", "province", province)
	}
	return v.(ProvinceData), nil
}

// Len returns the number of memoized provinces.
func (c *Cache) Len() int {
	return c.memo.ItemCount()
}

// Prefetch warms the cache for the given provinces with bounded concurrency.
// Every province is attempted; the first error is returned.
func (c *Cache) Prefetch(ctx context.Context, provinces []string) error {
	var g errgroup.Group
	g.SetLimit(prefetchConcurrency)

	for _, p := range provinces {
		g.Go(func() error {
			if _, err := c.Fetch(ctx, p); err != nil {
				c.logger.Warn("prefetch failed", "province", p, "error", err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
