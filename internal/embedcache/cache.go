// Package embedcache implements the two bounded caches sitting in front
// of the embedder: a per-call-argument cache wrapping embed_text
// and embed_diff, and a per-descriptor composite cache keyed by a
// stable hash of (title, description, diff). Both use insertion-order
// eviction (the oldest entry is dropped when inserting at capacity,
// regardless of how recently it was read) and expose hit/miss
// statistics.
package embedcache

import (
	"container/list"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

type entry[K comparable, V any] struct {
	key   K
	value V
}

// orderedCache is a fixed-capacity map with FIFO (insertion-order)
// eviction, safe for concurrent get/insert. Stale reads under
// concurrent mutation are acceptable; torn values are not, since every
// read and write happens under the same mutex.
type orderedCache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	index    map[K]*list.Element

	hits   uint64
	misses uint64
}

func newOrderedCache[K comparable, V any](capacity int) *orderedCache[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &orderedCache[K, V]{
		capacity: capacity,
		ll:       list.New(),
		index:    make(map[K]*list.Element),
	}
}

func (c *orderedCache[K, V]) get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.index[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	return el.Value.(entry[K, V]).value, true
}

func (c *orderedCache[K, V]) put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[key]; ok {
		el.Value = entry[K, V]{key: key, value: value}
		return
	}
	el := c.ll.PushBack(entry[K, V]{key: key, value: value})
	c.index[key] = el
	if c.ll.Len() > c.capacity {
		oldest := c.ll.Front()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.index, oldest.Value.(entry[K, V]).key)
		}
	}
}

func (c *orderedCache[K, V]) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll = list.New()
	c.index = make(map[K]*list.Element)
	c.hits = 0
	c.misses = 0
}

func (c *orderedCache[K, V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *orderedCache[K, V]) stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Stats reports hit/miss counters and the hit rate, hits/(hits+misses).
// An empty cache (no gets yet) reports a hit rate of 0.
type Stats struct {
	Hits   uint64
	Misses uint64
	Size   int
}

func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// StringVectorCache is the per-call-argument cache around a single
// embedder method (embed_text or embed_diff): raw input string ->
// vector. GetOrCompute additionally collapses concurrent identical
// misses into a single underlying compute call via singleflight, which
// is what lets the composite cache's "safe for concurrent get/insert"
// requirement hold without duplicating embedder calls.
type StringVectorCache struct {
	cache *orderedCache[string, []float64]
	group singleflight.Group
}

func NewStringVectorCache(capacity int) *StringVectorCache {
	return &StringVectorCache{cache: newOrderedCache[string, []float64](capacity)}
}

func (c *StringVectorCache) Get(key string) ([]float64, bool) {
	return c.cache.get(key)
}

func (c *StringVectorCache) Put(key string, value []float64) {
	c.cache.put(key, value)
}

// GetOrCompute returns the cached vector for key, or calls compute
// exactly once across any number of concurrent callers sharing the
// same key, caching and returning its result.
func (c *StringVectorCache) GetOrCompute(key string, compute func() ([]float64, error)) ([]float64, error) {
	if v, ok := c.cache.get(key); ok {
		return v, nil
	}
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if v, ok := c.cache.get(key); ok {
			return v, nil
		}
		computed, err := compute()
		if err != nil {
			return nil, err
		}
		c.cache.put(key, computed)
		return computed, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float64), nil
}

func (c *StringVectorCache) Clear()   { c.cache.clear() }
func (c *StringVectorCache) Len() int { return c.cache.len() }
func (c *StringVectorCache) Stats() Stats {
	hits, misses := c.cache.stats()
	return Stats{Hits: hits, Misses: misses, Size: c.cache.len()}
}

// CompositeEmbedding is the cached value for a descriptor's combined
// text+diff embedding.
type CompositeEmbedding struct {
	Text []float64
	Diff []float64
}

// CompositeCache is the per-descriptor cache keyed by CompositeKey,
// holding both vectors so a cache hit short-circuits the entire
// embedding pipeline.
type CompositeCache struct {
	cache *orderedCache[uint32, CompositeEmbedding]
	group singleflight.Group
}

func NewCompositeCache(capacity int) *CompositeCache {
	return &CompositeCache{cache: newOrderedCache[uint32, CompositeEmbedding](capacity)}
}

func (c *CompositeCache) Get(key uint32) (CompositeEmbedding, bool) {
	return c.cache.get(key)
}

func (c *CompositeCache) Put(key uint32, value CompositeEmbedding) {
	c.cache.put(key, value)
}

// GetOrCompute mirrors StringVectorCache.GetOrCompute for the composite key.
func (c *CompositeCache) GetOrCompute(key uint32, compute func() (CompositeEmbedding, error)) (CompositeEmbedding, error) {
	if v, ok := c.cache.get(key); ok {
		return v, nil
	}
	type result struct{ v CompositeEmbedding }
	v, err, _ := c.group.Do(strconv.FormatUint(uint64(key), 36), func() (interface{}, error) {
		if v, ok := c.cache.get(key); ok {
			return result{v}, nil
		}
		computed, err := compute()
		if err != nil {
			return result{}, err
		}
		c.cache.put(key, computed)
		return result{computed}, nil
	})
	if err != nil {
		return CompositeEmbedding{}, err
	}
	return v.(result).v, nil
}

func (c *CompositeCache) Clear()   { c.cache.clear() }
func (c *CompositeCache) Len() int { return c.cache.len() }
func (c *CompositeCache) Stats() Stats {
	hits, misses := c.cache.stats()
	return Stats{Hits: hits, Misses: misses, Size: c.cache.len()}
}
