package containers

import (
	"container/list"
	"sync"
)

// LRU is a name-keyed cache with aging eviction (spec.md §8 Testable
// Property 7): every slot carries a decaying `life` counter that `Get` tops
// back up and `ReduceLifetime` drains; a slot is evicted once its life
// reaches zero. Backed by container/list for O(1) touch/evict, the
// idiomatic stdlib base for an LRU — no repo in the corpus implements one of
// its own (see DESIGN.md).
type LRU struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	order    *list.List
	initial  int32
	boost    int32
	capacity int
}

type lruEntry struct {
	name  string
	value interface{}
	life  int32
}

// NewLRU creates a cache holding at most capacity entries. initialLife is the
// life every new or touched entry is (re)set to, clamped at boost above its
// current value; boost is added on every Get.
func NewLRU(capacity int, initialLife, boost int32) *LRU {
	return &LRU{
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
		initial:  initialLife,
		boost:    boost,
		capacity: capacity,
	}
}

// Put inserts or replaces the entry for name, resetting its life to the
// initial value and marking it most-recently-used. If the cache is at
// capacity and name is new, the least-recently-used entry is evicted.
func (c *LRU) Put(name string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[name]; ok {
		e := el.Value.(*lruEntry)
		e.value = value
		e.life = c.initial
		c.order.MoveToFront(el)
		return
	}

	if c.capacity > 0 && len(c.items) >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*lruEntry).name)
		}
	}

	el := c.order.PushFront(&lruEntry{name: name, value: value, life: c.initial})
	c.items[name] = el
}

// Get returns the value for name and boosts its remaining life, or reports
// ok=false if name is absent (already evicted or never inserted).
func (c *LRU) Get(name string) (value interface{}, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, found := c.items[name]
	if !found {
		return nil, false
	}
	e := el.Value.(*lruEntry)
	e.life += c.boost
	if e.life > c.initial {
		e.life = c.initial
	}
	c.order.MoveToFront(el)
	return e.value, true
}

// ReduceLifetime ages every entry by d, evicting any whose life drops to or
// below zero. Entries not touched via Get since the previous cycle age down
// by exactly d, matching Testable Property 7: `life <= max(0, initial - k*d)`
// after k cycles without a Get.
func (c *LRU) ReduceLifetime(d int32) (evicted []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		e := el.Value.(*lruEntry)
		e.life -= d
		if e.life <= 0 {
			c.order.Remove(el)
			delete(c.items, e.name)
			evicted = append(evicted, e.name)
		}
		el = prev
	}
	return evicted
}

// Len returns the number of entries currently cached.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
