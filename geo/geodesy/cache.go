package geodesy

import (
	"github.com/hashicorp/golang-lru/v2"
)

type pairKey [4]float64

// Cached memoizes an underlying Distancer over the most recent point pairs.
// Stationary stretches of a track repeat the same coordinates many times over,
// and the ellipsoidal solution is iterative. Cached is safe for concurrent use.
type Cached struct {
	Distancer
	cache *lru.Cache[pairKey, float64]
}

func NewCached(d Distancer, size int) (*Cached, error) {
	cache, err := lru.New[pairKey, float64](size)
	if err != nil {
		return nil, err
	}
	return &Cached{Distancer: d, cache: cache}, nil
}

func (c *Cached) Distance(lat1, lng1, lat2, lng2 float64) float64 {
	key := pairKey{lat1, lng1, lat2, lng2}
	if v, ok := c.cache.Get(key); ok {
		return v
	}
	v := c.Distancer.Distance(lat1, lng1, lat2, lng2)
	c.cache.Add(key, v)
	return v
}

// Len returns the number of cached pairs.
func (c *Cached) Len() int {
	return c.cache.Len()
}
