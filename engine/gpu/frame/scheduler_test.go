package frame

// Resource.drain is the part of the frame scheduler that doesn't require a
// real device, swapchain or queue (everything else in this package —
// BeginFrame/EndFrame — submits to an actual GPU, which the corpus never
// unit-tests: the teacher's engine/renderer/vulkan/backend.go has no
// _test.go either). This exercises the deletion-queue FIFO ordering and
// drain-then-empty behavior spec.md §4.6 step 2 and Testable Property 2
// depend on.

import "testing"

func TestResourceDrainRunsDeletersInFIFOOrder(t *testing.T) {
	var r Resource
	var order []int

	r.PendingDelete(func() { order = append(order, 1) })
	r.PendingDelete(func() { order = append(order, 2) })
	r.PendingDelete(func() { order = append(order, 3) })

	r.drain()

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("expected deleters to run in FIFO order [1 2 3], got %v", order)
	}
}

func TestResourceDrainIsEmptyAfterRunning(t *testing.T) {
	var r Resource
	calls := 0
	r.PendingDelete(func() { calls++ })

	r.drain()
	if calls != 1 {
		t.Fatalf("expected 1 call after first drain, got %d", calls)
	}

	// A second drain with nothing newly enqueued must not re-invoke the
	// already-drained deleters (spec.md invariant 2: destroyed exactly
	// once, never re-entered).
	r.drain()
	if calls != 1 {
		t.Fatalf("expected drain to be idempotent when nothing new was enqueued, got %d calls", calls)
	}
}

func TestResourceDrainAfterReuseOnlyRunsNewlyEnqueued(t *testing.T) {
	var r Resource
	var ran []string

	r.PendingDelete(func() { ran = append(ran, "frame-k") })
	r.drain()

	// Simulate the same frame slot being reused renderAhead frames later:
	// a fresh set of deleters enqueued this time around must run exactly
	// once of their own, independent of what already drained.
	r.PendingDelete(func() { ran = append(ran, "frame-k+renderAhead") })
	r.drain()

	if len(ran) != 2 || ran[0] != "frame-k" || ran[1] != "frame-k+renderAhead" {
		t.Fatalf("expected exactly the two deleters to run once each in order, got %v", ran)
	}
}
