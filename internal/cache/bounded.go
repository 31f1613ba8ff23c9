// Package cache implements the gateway's three bounded LRU caches:
// raw document-symbol responses, processed symbol trees, and file
// contents. All three share the same dual entry-count/approximate-byte
// eviction discipline on top of github.com/hashicorp/golang-lru/v2, which
// supplies the LRU ordering; this package layers the second (byte) bound
// and the URI-keyed invalidation hooks the LRU alone doesn't know about.
package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// sizer computes the approximate in-memory footprint of a cache value, for
// the byte-bound half of the dual eviction rule.
type sizer[V any] func(V) int

// bounded wraps an LRU keyed by K with an additional approximate-byte
// budget: insertion never leaves either bound exceeded, evicting
// least-recently-used entries (by the underlying LRU's order, which
// RemoveOldest also respects) until both are satisfied again.
type bounded[K comparable, V any] struct {
	mu        sync.Mutex
	lru       *lru.Cache[K, V]
	sizeOf    sizer[V]
	maxBytes  int
	curBytes  int
	entrySize map[K]int
}

func newBounded[K comparable, V any](maxEntries, maxBytes int, sizeOf sizer[V]) *bounded[K, V] {
	c, err := lru.New[K, V](maxEntries)
	if err != nil {
		// Only returns an error for a non-positive size, which never
		// happens for our fixed, positive default bounds.
		panic(err)
	}
	return &bounded[K, V]{
		lru:       c,
		sizeOf:    sizeOf,
		maxBytes:  maxBytes,
		entrySize: make(map[K]int),
	}
}

// get returns the cached value for key and records the access for LRU
// ordering.
func (b *bounded[K, V]) get(key K) (V, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lru.Get(key)
}

// put inserts or replaces the entry for key, then evicts least-recently-used
// entries until both the entry-count bound (enforced by the underlying LRU
// on Add) and the byte bound are satisfied.
func (b *bounded[K, V]) put(key K, value V) {
	size := b.sizeOf(value)

	b.mu.Lock()
	defer b.mu.Unlock()

	if old, ok := b.entrySize[key]; ok {
		b.curBytes -= old
	}
	evicted := b.lru.Add(key, value)
	b.entrySize[key] = size
	b.curBytes += size
	if evicted {
		// The LRU's own entry-count eviction already dropped one entry;
		// our size-tracking map doesn't know which one, so resync by
		// dropping any tracked key no longer present in the LRU.
		b.reconcileLocked()
	}

	for b.curBytes > b.maxBytes && b.lru.Len() > 0 {
		oldKey, _, ok := b.lru.RemoveOldest()
		if !ok {
			break
		}
		if sz, tracked := b.entrySize[oldKey]; tracked {
			b.curBytes -= sz
			delete(b.entrySize, oldKey)
		}
	}
}

// reconcileLocked drops entrySize/curBytes bookkeeping for keys the LRU
// evicted on its own (entry-count bound), called with mu held.
func (b *bounded[K, V]) reconcileLocked() {
	for k, sz := range b.entrySize {
		if !b.lru.Contains(k) {
			b.curBytes -= sz
			delete(b.entrySize, k)
		}
	}
}

// remove purges key, a no-op if absent.
func (b *bounded[K, V]) remove(key K) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sz, ok := b.entrySize[key]; ok {
		b.curBytes -= sz
		delete(b.entrySize, key)
	}
	b.lru.Remove(key)
}

// removeIf purges every entry whose key matches pred, used for the
// URI-prefix purges invalidation requires (a single file may be keyed by
// multiple content-hashes across its edit history).
func (b *bounded[K, V]) removeIf(pred func(K) bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range b.lru.Keys() {
		if pred(k) {
			if sz, ok := b.entrySize[k]; ok {
				b.curBytes -= sz
				delete(b.entrySize, k)
			}
			b.lru.Remove(k)
		}
	}
}

func (b *bounded[K, V]) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lru.Len()
}
