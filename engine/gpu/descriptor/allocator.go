package descriptor

import (
	"sync"

	vk "github.com/goki/vulkan"

	"github.com/kilnforge/ember/engine/core"
	"github.com/kilnforge/ember/engine/gpu/shader"
)

// PoolSize is one entry of the `{(DescriptorType, max-count)...}`
// parameterization spec.md §4.5 requires of both allocators.
type PoolSize struct {
	Type     shader.DescriptorKind
	MaxCount uint32
}

// PoolDevice is the slice of the GPU device wrapper the allocators call
// into for pool and set lifecycle.
type PoolDevice interface {
	CreateDescriptorPool(sizes []PoolSize, maxSets uint32, allowIndividualFree bool) (vk.DescriptorPool, error)
	DestroyDescriptorPool(vk.DescriptorPool)
	ResetDescriptorPool(vk.DescriptorPool) error
	AllocateDescriptorSet(pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, error)
	FreeDescriptorSet(pool vk.DescriptorPool, set vk.DescriptorSet) error
}

type pool struct {
	handle    vk.DescriptorPool
	allocated int
	capacity  int
}

// DynamicAllocator hands out descriptor sets valid for exactly one frame
// (spec.md §4.5). It keeps one independent sub-allocator per frame-in-flight
// slot so frame k's allocations never interact with frame k+1's.
type DynamicAllocator struct {
	device  PoolDevice
	sizes   []PoolSize
	maxSets uint32
	frames  []frameSlot
}

type frameSlot struct {
	mu        sync.Mutex
	free      []*pool
	exhausted []*pool
}

// NewDynamicAllocator creates a dynamic allocator with framesInFlight
// independent partitions, each parameterized identically by sizes/maxSets.
func NewDynamicAllocator(device PoolDevice, sizes []PoolSize, maxSets uint32, framesInFlight int) *DynamicAllocator {
	return &DynamicAllocator{
		device:  device,
		sizes:   sizes,
		maxSets: maxSets,
		frames:  make([]frameSlot, framesInFlight),
	}
}

// Allocate returns a descriptor set matching layout from frame index
// frameIdx's partition, growing a new backing pool if every free pool is
// full. The returned set must not be referenced past the end of that
// frame's lifetime (spec.md §4.5).
func (a *DynamicAllocator) Allocate(frameIdx int, layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	slot := &a.frames[frameIdx]
	slot.mu.Lock()
	defer slot.mu.Unlock()

	for _, p := range slot.free {
		if set, err := a.device.AllocateDescriptorSet(p.handle, layout); err == nil {
			p.allocated++
			if p.allocated >= p.capacity {
				slot.free = removePool(slot.free, p)
				slot.exhausted = append(slot.exhausted, p)
			}
			return set, nil
		}
	}

	handle, err := a.device.CreateDescriptorPool(a.sizes, a.maxSets, false)
	if err != nil {
		var zero vk.DescriptorSet
		return zero, err
	}
	p := &pool{handle: handle, capacity: int(a.maxSets)}
	set, err := a.device.AllocateDescriptorSet(p.handle, layout)
	if err != nil {
		a.device.DestroyDescriptorPool(handle)
		var zero vk.DescriptorSet
		return zero, err
	}
	p.allocated = 1
	if p.allocated < p.capacity {
		slot.free = append(slot.free, p)
	} else {
		slot.exhausted = append(slot.exhausted, p)
	}
	return set, nil
}

// Reset reclaims every set allocated from frameIdx's partition this cycle:
// exhausted pools rejoin the free list and every pool (free and newly
// rejoined) is reset, matching spec.md §4.5's frame-2 "reset() for the
// current frame moves exhausted pools back to free and resets every pool."
func (a *DynamicAllocator) Reset(frameIdx int) error {
	slot := &a.frames[frameIdx]
	slot.mu.Lock()
	defer slot.mu.Unlock()

	slot.free = append(slot.free, slot.exhausted...)
	slot.exhausted = nil
	for _, p := range slot.free {
		if err := a.device.ResetDescriptorPool(p.handle); err != nil {
			return err
		}
		p.allocated = 0
	}
	return nil
}

// DestroyAll destroys every backing pool across every frame partition,
// called at shutdown once the deletion queue has drained.
func (a *DynamicAllocator) DestroyAll() {
	for i := range a.frames {
		slot := &a.frames[i]
		for _, p := range append(slot.free, slot.exhausted...) {
			a.device.DestroyDescriptorPool(p.handle)
		}
		slot.free, slot.exhausted = nil, nil
	}
}

func removePool(pools []*pool, target *pool) []*pool {
	out := pools[:0]
	for _, p := range pools {
		if p != target {
			out = append(out, p)
		}
	}
	return out
}

// StaticAllocator hands out descriptor sets with an independent lifetime,
// freed explicitly by the caller (spec.md §4.5: "pools are created with
// per-set-free capability"). A single mutex-guarded owner map routes each
// free() back to the pool that allocated it.
type StaticAllocator struct {
	device  PoolDevice
	sizes   []PoolSize
	maxSets uint32

	mu        sync.Mutex
	free      []*pool
	exhausted []*pool
	owner     map[vk.DescriptorSet]*pool
}

func NewStaticAllocator(device PoolDevice, sizes []PoolSize, maxSets uint32) *StaticAllocator {
	return &StaticAllocator{
		device:  device,
		sizes:   sizes,
		maxSets: maxSets,
		owner:   make(map[vk.DescriptorSet]*pool),
	}
}

// Allocate returns a descriptor set matching layout, growing a new pool
// (allowing individual-set free) if every free pool is full.
func (a *StaticAllocator) Allocate(layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, p := range a.free {
		if set, err := a.device.AllocateDescriptorSet(p.handle, layout); err == nil {
			p.allocated++
			a.owner[set] = p
			if p.allocated >= p.capacity {
				a.free = removePool(a.free, p)
				a.exhausted = append(a.exhausted, p)
			}
			return set, nil
		}
	}

	handle, err := a.device.CreateDescriptorPool(a.sizes, a.maxSets, true)
	if err != nil {
		var zero vk.DescriptorSet
		return zero, err
	}
	p := &pool{handle: handle, capacity: int(a.maxSets)}
	set, err := a.device.AllocateDescriptorSet(p.handle, layout)
	if err != nil {
		a.device.DestroyDescriptorPool(handle)
		var zero vk.DescriptorSet
		return zero, err
	}
	p.allocated = 1
	a.owner[set] = p
	if p.allocated < p.capacity {
		a.free = append(a.free, p)
	} else {
		a.exhausted = append(a.exhausted, p)
	}
	return set, nil
}

// Free returns set to its originating pool, rejoining the free list if a
// previously exhausted pool regains capacity (spec.md §4.5).
func (a *StaticAllocator) Free(set vk.DescriptorSet) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.owner[set]
	if !ok {
		return core.ErrNotMaterialOwner
	}
	if err := a.device.FreeDescriptorSet(p.handle, set); err != nil {
		return err
	}
	delete(a.owner, set)
	p.allocated--

	if p.allocated < p.capacity {
		for i, e := range a.exhausted {
			if e == p {
				a.exhausted = append(a.exhausted[:i], a.exhausted[i+1:]...)
				a.free = append(a.free, p)
				break
			}
		}
	}
	return nil
}

// DestroyAll destroys every backing pool, called at shutdown.
func (a *StaticAllocator) DestroyAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range append(a.free, a.exhausted...) {
		a.device.DestroyDescriptorPool(p.handle)
	}
	a.free, a.exhausted = nil, nil
	a.owner = make(map[vk.DescriptorSet]*pool)
}
