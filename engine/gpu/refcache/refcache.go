// Package refcache implements the structural-identity cache-with-refcount
// pattern shared by every resource table in spec.md §3 point 1: shader
// modules, descriptor-set layouts, pipeline layouts and pipeline state
// objects are each "at most once in the engine at any time (refcount ≥ 1);
// freeing the last holder schedules destruction." Rather than repeat that
// bookkeeping four times, it is factored once here and instantiated per
// resource kind — generalized from the teacher's per-system lookup-table +
// array pattern (engine/systems/shader.go's Lookup map plus Shaders array,
// engine/systems/texture.go's analogous table) which hand-rolls the same
// shape without generics.
package refcache

import "sync"

type entry[V any] struct {
	value    V
	refcount int32
}

// Cache deduplicates values of type V by a comparable key K, keeping a
// refcount per entry. It does not itself destroy anything — GetOrCreate and
// Release report enough information for the caller to enqueue destruction
// on its own deletion queue, keeping refcache independent of any particular
// frame-lifecycle implementation.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*entry[V]
}

// New creates an empty cache.
func New[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{entries: make(map[K]*entry[V])}
}

// GetOrCreate returns the cached value for key, incrementing its refcount,
// or calls create to build a new one (refcount seeded at 1) if key is
// unseen. create is invoked at most once per distinct key per epoch —
// i.e. never while holding another goroutine's in-flight create for the
// same key, since the whole operation holds the cache lock.
func (c *Cache[K, V]) GetOrCreate(key K, create func() (V, error)) (value V, refcount int32, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.refcount++
		return e.value, e.refcount, nil
	}
	v, err := create()
	if err != nil {
		var zero V
		return zero, 0, err
	}
	c.entries[key] = &entry[V]{value: v, refcount: 1}
	return v, 1, nil
}

// Release decrements key's refcount. zero reports whether this call
// dropped the refcount to zero — the caller should remove the resource
// from service and enqueue its destruction — in which case value is the
// entry removed from the cache. ok is false if key was not present.
func (c *Cache[K, V]) Release(key K) (value V, zero bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, present := c.entries[key]
	if !present {
		return value, false, false
	}
	e.refcount--
	if e.refcount <= 0 {
		delete(c.entries, key)
		return e.value, true, true
	}
	return e.value, false, true
}

// Len reports the number of live (refcount > 0) entries, useful for
// shutdown assertions (spec.md §10: "shutdown... asserts refcount == 0 for
// every entry").
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Each invokes fn for every live entry, for shutdown-time diagnostics and
// tests. fn must not call back into the cache.
func (c *Cache[K, V]) Each(fn func(key K, value V, refcount int32)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		fn(k, e.value, e.refcount)
	}
}
