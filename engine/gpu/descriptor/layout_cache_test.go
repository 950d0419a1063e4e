package descriptor

import (
	"sync/atomic"
	"testing"

	vk "github.com/goki/vulkan"

	"github.com/kilnforge/ember/engine/gpu/shader"
)

// fakeLayoutDevice counts handle creation/destruction without touching a
// real GPU, so the cache's dedup/refcount behavior can be checked in
// isolation (spec.md Testable Property 1: cache idempotence).
type fakeLayoutDevice struct {
	nextHandle    uint64
	setsCreated   int32
	setsDestroyed int32
	pipesCreated  int32
}

func (f *fakeLayoutDevice) CreateDescriptorSetLayout(bindings []shader.Binding) (vk.DescriptorSetLayout, error) {
	atomic.AddInt32(&f.setsCreated, 1)
	f.nextHandle++
	return vk.DescriptorSetLayout(f.nextHandle), nil
}

func (f *fakeLayoutDevice) DestroyDescriptorSetLayout(vk.DescriptorSetLayout) {
	atomic.AddInt32(&f.setsDestroyed, 1)
}

func (f *fakeLayoutDevice) CreatePipelineLayout(setLayouts []vk.DescriptorSetLayout, pushConstantSize uint64, pushConstantMask shader.StageMask) (vk.PipelineLayout, error) {
	atomic.AddInt32(&f.pipesCreated, 1)
	f.nextHandle++
	return vk.PipelineLayout(f.nextHandle), nil
}

func (f *fakeLayoutDevice) DestroyPipelineLayout(vk.PipelineLayout) {}

func TestSetLayoutCacheDedupesByCanonicalKeyRegardlessOfOrder(t *testing.T) {
	dev := &fakeLayoutDevice{}
	c := NewCache(dev)

	a := []shader.Binding{
		{Binding: 0, ArraySize: 1, Kind: shader.DescriptorUniformBuffer, Stages: shader.StageMaskVertex},
		{Binding: 1, ArraySize: 1, Kind: shader.DescriptorCombinedImageSampler, Stages: shader.StageMaskFragment},
	}
	b := []shader.Binding{a[1], a[0]}

	l1, err := c.GetSetLayout(a)
	if err != nil {
		t.Fatalf("GetSetLayout(a): %v", err)
	}
	l2, err := c.GetSetLayout(b)
	if err != nil {
		t.Fatalf("GetSetLayout(b): %v", err)
	}
	if l1 != l2 {
		t.Fatalf("expected identical cached *SetLayout for shuffled bindings, got %p vs %p", l1, l2)
	}
	if dev.setsCreated != 1 {
		t.Fatalf("expected exactly one CreateDescriptorSetLayout call, got %d", dev.setsCreated)
	}

	// Two outstanding references: releasing once must not destroy the handle.
	c.ReleaseSetLayout(l1, func(sl *SetLayout) { dev.DestroyDescriptorSetLayout(sl.Handle) })
	if dev.setsDestroyed != 0 {
		t.Fatalf("expected no destruction with one reference remaining, got %d", dev.setsDestroyed)
	}
	c.ReleaseSetLayout(l2, func(sl *SetLayout) { dev.DestroyDescriptorSetLayout(sl.Handle) })
	if dev.setsDestroyed != 1 {
		t.Fatalf("expected destruction once the last reference is released, got %d", dev.setsDestroyed)
	}
}

func TestPipelineLayoutReleaseCascadesToSetLayouts(t *testing.T) {
	dev := &fakeLayoutDevice{}
	c := NewCache(dev)

	global, err := c.GetSetLayout(nil)
	if err != nil {
		t.Fatalf("GetSetLayout(global): %v", err)
	}

	material := map[uint32][]shader.Binding{
		1: {{Binding: 0, ArraySize: 1, Kind: shader.DescriptorUniformBuffer, Stages: shader.StageMaskFragment}},
	}

	pl, err := c.GetPipelineLayout(global, material, 0, 0)
	if err != nil {
		t.Fatalf("GetPipelineLayout: %v", err)
	}
	if len(pl.SetLayouts) != 2 {
		t.Fatalf("expected 2 set layouts (global + material), got %d", len(pl.SetLayouts))
	}

	destroyedSets := 0
	pipelineDestroyed := false
	c.ReleasePipelineLayout(pl, func(*PipelineLayout) { pipelineDestroyed = true }, func(*SetLayout) { destroyedSets++ })

	if !pipelineDestroyed {
		t.Fatal("expected the pipeline layout itself destroyed on its last release")
	}
	// GetPipelineLayout folds the caller-supplied global layout into
	// SetLayouts without taking an extra cache reference on it, so its
	// single reference is consumed by this same cascade alongside the
	// reflection-derived material set layout.
	if destroyedSets != 2 {
		t.Fatalf("expected both set layouts destroyed by the cascade, got %d", destroyedSets)
	}
}
