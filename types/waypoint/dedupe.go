package waypoint

import (
	"fmt"
	"github.com/golang/groupcache/lru"
	"github.com/mitchellh/hashstructure/v2"
)

// NewDedupeLRUFunc returns a predicate that passes a waypoint only if an identical
// waypoint is not among the last size distinct waypoints it has seen.
func NewDedupeLRUFunc(size int) func(Waypoint) bool {
	var dedupeCache = lru.New(size)
	return func(w Waypoint) bool {
		hash, err := hashstructure.Hash(w, hashstructure.FormatV2, nil)
		if err != nil {
			return true
		}
		key := fmt.Sprintf("%d", hash)
		if _, ok := dedupeCache.Get(key); ok {
			return false
		}
		dedupeCache.Add(key, true)
		return true
	}
}
