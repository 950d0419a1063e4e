package containers

import "sync/atomic"

// LockFreeStack is a multi-producer/multi-consumer LIFO used as the backing
// store for the fixed-pool event reservoir (spec.md §5: "a lock-free LIFO").
//
// ABA hazard (spec.md §9 open question, resolved): a bare Treiber stack CAS's
// the head pointer directly, so if a node is popped and an equal-valued node
// is pushed back before a competing CAS lands, the competing CAS can succeed
// against stale `next` data. Rather than packing a generation tag into the
// pointer bits (fragile under a moving/precise GC and unsafe to express
// portably in Go), every mutation here allocates a fresh `head` indirection
// struct. The CAS target is always a pointer to that indirection struct, so
// two different moments in time can never produce a bit-identical CAS
// comparand even if the same *node happens to be reachable from both — the
// wrapping struct's identity, not the node's, is what a racing CAS compares
// against, and a struct read by a still-live CAS cannot be GC'd and reused
// out from under it. This sidesteps ABA without hazard pointers.
type LockFreeStack struct {
	head atomic.Pointer[link]
}

type node struct {
	value interface{}
	next  *node
}

type link struct {
	n *node
}

func NewLockFreeStack() *LockFreeStack {
	s := &LockFreeStack{}
	s.head.Store(&link{})
	return s
}

// Push adds value to the top of the stack.
func (s *LockFreeStack) Push(value interface{}) {
	n := &node{value: value}
	for {
		old := s.head.Load()
		n.next = old.n
		next := &link{n: n}
		if s.head.CompareAndSwap(old, next) {
			return
		}
	}
}

// Pop removes and returns the top value, or (nil, false) if the stack is empty.
func (s *LockFreeStack) Pop() (interface{}, bool) {
	for {
		old := s.head.Load()
		if old.n == nil {
			return nil, false
		}
		next := &link{n: old.n.next}
		if s.head.CompareAndSwap(old, next) {
			return old.n.value, true
		}
	}
}

// IsEmpty reports whether the stack currently holds no elements. The result
// may be stale immediately under concurrent mutation; it is intended for
// diagnostics, not for gating correctness decisions.
func (s *LockFreeStack) IsEmpty() bool {
	return s.head.Load().n == nil
}
