package containers

import "testing"

func TestLRUEvictsLeastRecentlyUsedAtCapacity(t *testing.T) {
	c := NewLRU(2, 10, 5)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3) // evicts "a", the least recently touched

	if _, ok := c.Get("a"); ok {
		t.Fatal("expected \"a\" to have been evicted")
	}
	if v, ok := c.Get("b"); !ok || v.(int) != 2 {
		t.Fatalf("expected \"b\"=2 to survive, got %v, %v", v, ok)
	}
	if v, ok := c.Get("c"); !ok || v.(int) != 3 {
		t.Fatalf("expected \"c\"=3 to survive, got %v, %v", v, ok)
	}
	if c.Len() != 2 {
		t.Fatalf("expected len 2, got %d", c.Len())
	}
}

// TestLRUReduceLifetimeAgesUntouchedEntries checks spec.md Testable
// Property 7: after k ReduceLifetime(d) cycles with no intervening Get, an
// entry's life is initial - k*d, and it is evicted on the first cycle that
// brings its life to 0 or below: with initial=10 and d=1 it survives 9
// cycles and is evicted on the 10th (ceil(initial/d) in general).
func TestLRUReduceLifetimeAgesUntouchedEntries(t *testing.T) {
	c := NewLRU(10, 10, 0)
	c.Put("x", "v")

	for i := 0; i < 9; i++ {
		evicted := c.ReduceLifetime(1)
		if len(evicted) != 0 {
			t.Fatalf("unexpected eviction after %d cycles: %v", i+1, evicted)
		}
	}
	evicted := c.ReduceLifetime(1)
	if len(evicted) != 1 || evicted[0] != "x" {
		t.Fatalf("expected \"x\" evicted on the 10th cycle, got %v", evicted)
	}
	if _, ok := c.Get("x"); ok {
		t.Fatal("expected \"x\" to be gone after eviction")
	}
}

func TestLRUGetBoostsLifetime(t *testing.T) {
	c := NewLRU(10, 10, 5)
	c.Put("x", "v")
	c.ReduceLifetime(8) // life now 2

	if _, ok := c.Get("x"); !ok {
		t.Fatal("expected \"x\" to still be present before boost")
	}
	// Get boosts life by 5 (clamped to initial=10), so two more
	// ReduceLifetime(4) cycles (down to 3, then -1) should evict only on
	// the second.
	if evicted := c.ReduceLifetime(4); len(evicted) != 0 {
		t.Fatalf("unexpected eviction after boosted Get: %v", evicted)
	}
	evicted := c.ReduceLifetime(4)
	if len(evicted) != 1 || evicted[0] != "x" {
		t.Fatalf("expected eviction after lifetime exhausted, got %v", evicted)
	}
}
