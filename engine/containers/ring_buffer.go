// Package containers holds the lock-free/lock-light data structures shared by
// the GPU resource core: a resizable MPSC ring buffer, a lock-free LIFO, an
// aging LRU, and a pooled event reservoir (spec.md §1 point 6).
package containers

import (
	"errors"
	"sync"
	"sync/atomic"
)

var (
	ErrRingBufferFull  = errors.New("ring buffer is full")
	ErrRingBufferEmpty = errors.New("ring buffer is empty")
)

// RingBuffer is a resizable multiple-producer, single-consumer queue. A
// single consumer calls Pop; any number of producers call Push concurrently.
// Producers claim a slot with an atomic fetch-add on tail; a resize path
// takes the write lock, reallocates, and migrates the live [head, tail)
// range contiguously into the new backing array (spec.md §5).
//
// Grounded on the teacher's engine/containers/ring_queue.go fixed-size
// enqueue/dequeue shape, generalized per spec.md §4's "resizable SPSC/MPSC
// ring buffer" requirement and the growth-trigger in Testable Property 6 /
// Scenario S6.
type RingBuffer struct {
	mu   sync.RWMutex
	data []interface{}
	cap  uint64
	head uint64 // next slot to pop, mutated only by the single consumer
	tail uint64 // next slot to claim, advanced via atomic fetch-add
}

// NewRingBuffer creates a buffer with the given initial capacity (values <= 0
// are raised to 1).
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &RingBuffer{
		data: make([]interface{}, capacity),
		cap:  uint64(capacity),
	}
}

// Push enqueues value, growing the buffer (doubling capacity) if it is full.
// Safe for concurrent use by multiple producers.
func (rb *RingBuffer) Push(value interface{}) {
	for {
		rb.mu.RLock()
		cap := rb.cap
		tail := atomic.AddUint64(&rb.tail, 1) - 1
		head := atomic.LoadUint64(&rb.head)
		if tail-head >= cap {
			// No room under the read lock's current capacity snapshot;
			// undo the claim and grow under the write lock.
			atomic.AddUint64(&rb.tail, ^uint64(0)) // tail--
			rb.mu.RUnlock()
			rb.grow(cap)
			continue
		}
		rb.data[tail%cap] = value
		rb.mu.RUnlock()
		return
	}
}

func (rb *RingBuffer) grow(observedCap uint64) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.cap != observedCap {
		// Someone else already grew it while we waited for the lock.
		return
	}
	newCap := rb.cap * 2
	newData := make([]interface{}, newCap)
	head, tail := rb.head, rb.tail
	for i := head; i < tail; i++ {
		newData[i-head] = rb.data[i%rb.cap]
	}
	rb.data = newData
	rb.head = 0
	rb.tail = tail - head
	rb.cap = newCap
}

// Pop removes and returns the oldest element. Must only be called by the
// single designated consumer goroutine.
func (rb *RingBuffer) Pop() (interface{}, error) {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	head := rb.head
	tail := atomic.LoadUint64(&rb.tail)
	if head >= tail {
		return nil, ErrRingBufferEmpty
	}
	v := rb.data[head%rb.cap]
	rb.data[head%rb.cap] = nil
	rb.head++
	return v, nil
}

// Len returns the number of elements currently queued.
func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return int(atomic.LoadUint64(&rb.tail) - rb.head)
}

// IsEmpty reports whether the buffer currently holds no elements.
func (rb *RingBuffer) IsEmpty() bool {
	return rb.Len() == 0
}
