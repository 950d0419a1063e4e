package containers

import "sync"

// ManualResetEvent is a synchronization primitive that, once Set, stays
// signaled until Reset is called — the Go equivalent of an OS manual-reset
// event, built from a closable channel per the teacher's channel-based
// synchronization idiom (engine/systems/job.go).
type ManualResetEvent struct {
	mu     sync.Mutex
	ch     chan struct{}
	signal bool
}

func newManualResetEvent() *ManualResetEvent {
	return &ManualResetEvent{ch: make(chan struct{})}
}

// Set signals the event. Idempotent.
func (e *ManualResetEvent) Set() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.signal {
		e.signal = true
		close(e.ch)
	}
}

// Reset returns the event to the unsignaled state.
func (e *ManualResetEvent) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.signal {
		e.signal = false
		e.ch = make(chan struct{})
	}
}

// Wait blocks until the event is signaled.
func (e *ManualResetEvent) Wait() {
	e.mu.Lock()
	ch := e.ch
	e.mu.Unlock()
	<-ch
}

// EventPool is a reservoir of reusable ManualResetEvents, handed
// out to thread-pool workers (spec.md §5: "each worker holds a manual-reset
// event from an event pool") and recycled through the lock-free LIFO above
// so acquiring and releasing an event never touches a mutex-guarded
// allocator on the hot path.
type EventPool struct {
	free  *LockFreeStack
	limit int
}

// NewEventPool pre-populates a reservoir of size events.
func NewEventPool(size int) *EventPool {
	p := &EventPool{free: NewLockFreeStack(), limit: size}
	for i := 0; i < size; i++ {
		p.free.Push(newManualResetEvent())
	}
	return p
}

// Acquire removes an event from the reservoir, allocating a new one if the
// pool is momentarily exhausted (never blocks). Release returns every event
// to the reservoir, so the reservoir can grow past its initial size; that
// size is not enforced as a cap.
func (p *EventPool) Acquire() *ManualResetEvent {
	if v, ok := p.free.Pop(); ok {
		return v.(*ManualResetEvent)
	}
	return newManualResetEvent()
}

// Release resets and returns an event to the reservoir for reuse.
func (p *EventPool) Release(e *ManualResetEvent) {
	e.Reset()
	p.free.Push(e)
}
