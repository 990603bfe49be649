package geocode

import (
	"context"
	"fmt"
	"strings"

	"storymap/pkg/cache"
	"storymap/pkg/tracker"
)

// Cached memoizes answers of another geocoder in the persistent cache.
// Failed lookups are not stored. Searches without a match are counted as
// empty answers of the wrapped geocoder.
type Cached struct {
	next    Geocoder
	cache   cache.Cacher
	tracker *tracker.Tracker
}

// NewCached wraps g. A nil cache disables memoization, a nil tracker counting.
func NewCached(g Geocoder, c cache.Cacher, t *tracker.Tracker) *Cached {
	return &Cached{next: g, cache: c, tracker: t}
}

func (c *Cached) Name() string { return c.next.Name() }

func (c *Cached) Search(ctx context.Context, query string) (*Result, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	return cache.Fetch(ctx, c.cache, "geocode:search:"+q, func(ctx context.Context) (*Result, error) {
		res, err := c.next.Search(ctx, query)
		if err == nil && res == nil {
			c.tracker.Empty(c.next.Name())
		}
		return res, err
	})
}

func (c *Cached) Reverse(ctx context.Context, lng, lat float64) (string, error) {
	key := fmt.Sprintf("geocode:reverse:%.5f,%.5f", lng, lat)
	return cache.Fetch(ctx, c.cache, key, func(ctx context.Context) (string, error) {
		return c.next.Reverse(ctx, lng, lat)
	})
}
