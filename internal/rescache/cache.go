// Package rescache provides a bounded LRU memoization cache for indicator
// results. The cache is a pure optimization layer: every value stored in it
// is recomputable from the inputs, so disabling it (a nil *Cache) changes
// performance only, never output.
package rescache

import (
	"container/list"
	"encoding/binary"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultCapacity is the default maximum number of entries.
const DefaultCapacity = 100

// Cache is a thread-safe LRU cache from key to an arbitrary indicator result.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List // front = most recently used
	items    map[string]*list.Element

	hits      uint64
	misses    uint64
	evictions uint64
}

type entry struct {
	key   string
	value any
}

// New creates a Cache with the given capacity.
// Non-positive capacities fall back to DefaultCapacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

// Get returns the cached value for key and marks it most recently used.
// A nil receiver always misses, so a disabled cache needs no call-site guards.
func (c *Cache) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.ll.MoveToFront(el)
	return el.Value.(*entry).value, true
}

// Put inserts or refreshes a value, evicting the least recently used entry
// when the cache is at capacity. No-op on a nil receiver.
func (c *Cache) Put(key string, value any) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*entry).value = value
		c.ll.MoveToFront(el)
		return
	}

	if c.ll.Len() >= c.capacity {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.items, oldest.Value.(*entry).key)
			c.evictions++
		}
	}
	c.items[key] = c.ll.PushFront(&entry{key: key, value: value})
}

// Len returns the current number of entries.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Stats returns cumulative hit, miss and eviction counts.
func (c *Cache) Stats() (hits, misses, evictions uint64) {
	if c == nil {
		return 0, 0, 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, c.evictions
}

// Key builds a deterministic cache key: indicator name, ordered parameters,
// and an xxhash64 content fingerprint of the input series. Identical inputs
// always produce the same key; distinct inputs collide only with the hash's
// negligible probability.
func Key(name string, params []float64, series ...[]float64) string {
	var sb strings.Builder
	sb.WriteString(name)
	for _, p := range params {
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatFloat(p, 'g', -1, 64))
	}
	sb.WriteByte('@')
	sb.WriteString(strconv.FormatUint(fingerprint(series...), 16))
	return sb.String()
}

// fingerprint hashes the raw bits of every series, with a length separator
// per series so ([a,b],[c]) and ([a],[b,c]) cannot alias.
func fingerprint(series ...[]float64) uint64 {
	h := xxhash.New()
	var buf [8]byte
	for _, s := range series {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(s)))
		h.Write(buf[:])
		for _, v := range s {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			h.Write(buf[:])
		}
	}
	return h.Sum64()
}
