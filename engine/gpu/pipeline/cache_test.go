package pipeline

import (
	"testing"

	vk "github.com/goki/vulkan"

	"github.com/kilnforge/ember/engine/gpu/descriptor"
	"github.com/kilnforge/ember/engine/gpu/shader"
)

type fakePSODevice struct {
	nextHandle uint64
	created    int
	destroyed  int
}

func (f *fakePSODevice) CreateGraphicsPipeline(d Desc) (vk.Pipeline, error) {
	f.created++
	f.nextHandle++
	return vk.Pipeline(f.nextHandle), nil
}

func (f *fakePSODevice) DestroyGraphicsPipeline(vk.Pipeline) {
	f.destroyed++
}

func descFor(sourceID, layoutKey string, meta MetaMaterial, subpass uint32) Desc {
	return Desc{
		Module:         &shader.Module{SourceID: sourceID},
		Meta:           meta,
		PipelineLayout: &descriptor.PipelineLayout{Key: layoutKey},
		Subpass:        subpass,
	}
}

// TestPSOCacheKeyStability checks spec.md Testable Property 5: the same
// (shader, meta, layout, render pass, subpass) tuple always maps to the same
// PSO, and changing any one of shader, layout, meta or subpass yields a
// distinct one (the render pass is left unset in every variant here).
func TestPSOCacheKeyStability(t *testing.T) {
	dev := &fakePSODevice{}
	c := NewCache(dev)

	meta := Pack(MetaMaterialDesc{CullMode: CullBack, DepthTest: true, DepthWrite: true, Samples: 1})

	base := descFor("unlit", "0:;1:u1@0f", meta, 0)
	again := descFor("unlit", "0:;1:u1@0f", meta, 0)

	p1, err := c.Get(base)
	if err != nil {
		t.Fatalf("Get(base): %v", err)
	}
	p2, err := c.Get(again)
	if err != nil {
		t.Fatalf("Get(again): %v", err)
	}
	if p1 != p2 {
		t.Fatalf("expected identical PSO for identical key tuple, got %p vs %p", p1, p2)
	}
	if dev.created != 1 {
		t.Fatalf("expected exactly one CreateGraphicsPipeline call, got %d", dev.created)
	}

	variants := []Desc{
		descFor("lit", "0:;1:u1@0f", meta, 0),
		descFor("unlit", "0:;1:u1@0v", meta, 0),
		descFor("unlit", "0:;1:u1@0f", Pack(MetaMaterialDesc{CullMode: CullNone}), 0),
		descFor("unlit", "0:;1:u1@0f", meta, 1),
	}
	for i, v := range variants {
		pv, err := c.Get(v)
		if err != nil {
			t.Fatalf("Get(variant %d): %v", i, err)
		}
		if pv == p1 {
			t.Fatalf("variant %d unexpectedly shared the base PSO", i)
		}
	}
}

func TestPSOCacheReleaseDestroysAtZeroRefcount(t *testing.T) {
	dev := &fakePSODevice{}
	c := NewCache(dev)
	meta := Pack(MetaMaterialDesc{CullMode: CullBack})

	d := descFor("unlit", "0:;1:u1@0f", meta, 0)
	p1, err := c.Get(d)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := c.Get(d); err != nil {
		t.Fatalf("Get (again): %v", err)
	}

	c.Release(p1.Key, func(p *PSO) { dev.DestroyGraphicsPipeline(p.Handle) })
	if dev.destroyed != 0 {
		t.Fatalf("expected no destruction with one reference remaining, got %d", dev.destroyed)
	}
	c.Release(p1.Key, func(p *PSO) { dev.DestroyGraphicsPipeline(p.Handle) })
	if dev.destroyed != 1 {
		t.Fatalf("expected destruction on last release, got %d", dev.destroyed)
	}
}
