// Package alloc provides the engine's transient memory arenas: a two-ended
// frame allocator swapped once per frame, and a committed-on-demand linear
// stack allocator (spec.md §1 point 6, §5 "Frame-allocator discipline", §9).
package alloc

import "fmt"

const chunkSize = 64 * 1024

// FrameAllocator is a double-buffered, two-ended stack. A producer writes
// from the low end upward (e.g. per-frame upload staging scratch) while a
// consumer writes from the high end downward (e.g. command-recording
// scratch); Swap() resets whichever half is about to be reused for the next
// frame, so one half is always stable while the other fills.
//
// Backing storage grows in fixed chunks only as the high-water mark passes
// what is already committed and is never shrunk — the portable analogue of
// "reserved virtual address space, committed on demand, decommit never
// performed" from spec.md §9 (see DESIGN.md for why this approximates
// mmap/mprotect rather than calling them directly).
type FrameAllocator struct {
	buffers  [2][]byte
	low      [2]uint64
	high     [2]uint64
	active   int
	reserved uint64
}

// NewFrameAllocator creates an allocator whose two halves each reserve
// `reserved` bytes logically (committed lazily in chunkSize increments).
func NewFrameAllocator(reserved uint64) *FrameAllocator {
	return &FrameAllocator{reserved: reserved}
}

func (f *FrameAllocator) ensureCommitted(half int, upTo uint64) {
	buf := f.buffers[half]
	if uint64(len(buf)) >= upTo {
		return
	}
	newLen := uint64(len(buf))
	for newLen < upTo {
		newLen += chunkSize
	}
	if newLen > f.reserved {
		newLen = f.reserved
	}
	grown := make([]byte, newLen)
	copy(grown, buf)
	f.buffers[half] = grown
}

// PushLow allocates size bytes from the low end of the active half, growing
// committed pages as needed, and returns a slice view into the arena. It
// panics if size would exceed the half's reserved capacity, mirroring a
// fatal out-of-arena condition (spec.md §7 tier 3).
func (f *FrameAllocator) PushLow(size uint64) []byte {
	h := f.active
	start := f.low[h]
	end := start + size
	if end+f.high[h] > f.reserved {
		panic(fmt.Sprintf("alloc: frame allocator exhausted: requested %d, available %d", size, f.reserved-f.low[h]-f.high[h]))
	}
	f.ensureCommitted(h, end)
	f.low[h] = end
	return f.buffers[h][start:end]
}

// PushHigh allocates size bytes from the high end of the active half.
func (f *FrameAllocator) PushHigh(size uint64) []byte {
	h := f.active
	if f.low[h]+f.high[h]+size > f.reserved {
		panic(fmt.Sprintf("alloc: frame allocator exhausted: requested %d, available %d", size, f.reserved-f.low[h]-f.high[h]))
	}
	f.high[h] += size
	end := f.reserved - (f.high[h] - size)
	start := end - size
	f.ensureCommitted(h, end)
	return f.buffers[h][start:end]
}

// Swap resets the half that is about to become active again, then switches
// the active half. Called once per frame by the frame scheduler.
func (f *FrameAllocator) Swap() {
	next := 1 - f.active
	f.low[next] = 0
	f.high[next] = 0
	f.active = next
}

// UsedLow and UsedHigh report the current watermarks of the active half,
// useful for diagnostics and tests.
func (f *FrameAllocator) UsedLow() uint64  { return f.low[f.active] }
func (f *FrameAllocator) UsedHigh() uint64 { return f.high[f.active] }
