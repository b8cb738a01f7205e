package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// lruFront is the in-process L1 in front of a fileTier, generic over
// the cached value type. Shape grounded on the teacher's
// TwoTierTemplateCache, generalized from one hard-coded entry type to
// the three this cache needs (string, *domain.Profile, *domain.Relationship).
// Entries carry their own capture time so a read hit can be re-checked
// against the tier's TTL instead of trusting LRU residency alone.
type lruFront[V any] struct {
	cache *lru.Cache[string, lruEntry[V]]
	ttl   time.Duration
}

type lruEntry[V any] struct {
	value      V
	capturedAt time.Time
}

func newLRUFront[V any](size int, ttl time.Duration) (*lruFront[V], error) {
	if size <= 0 {
		size = 1000
	}
	c, err := lru.New[string, lruEntry[V]](size)
	if err != nil {
		return nil, err
	}
	return &lruFront[V]{cache: c, ttl: ttl}, nil
}

// get returns the cached value for key, re-checking its capture time
// against the tier's TTL and evicting on expiry, the same way
// fileTier.get does for the slower tier behind this one.
func (f *lruFront[V]) get(key string) (V, bool) {
	entry, ok := f.cache.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	if f.ttl > 0 && time.Since(entry.capturedAt) > f.ttl {
		f.cache.Remove(key)
		var zero V
		return zero, false
	}
	return entry.value, true
}

func (f *lruFront[V]) add(key string, value V) {
	f.cache.Add(key, lruEntry[V]{value: value, capturedAt: time.Now()})
}

func (f *lruFront[V]) remove(key string) {
	f.cache.Remove(key)
}

func (f *lruFront[V]) purge() {
	f.cache.Purge()
}
