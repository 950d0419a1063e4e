package gpu

import (
	"testing"

	vk "github.com/goki/vulkan"

	"github.com/kilnforge/ember/engine/gpu/descriptor"
	"github.com/kilnforge/ember/engine/gpu/pipeline"
	"github.com/kilnforge/ember/engine/gpu/shader"
	"github.com/kilnforge/ember/engine/gpu/vulkan"
)

// fakePSODevice mirrors pipeline/cache_test.go's fake: it lets the PSO
// cache run for real while keeping the test off an actual GPU.
type fakePSODevice struct {
	nextHandle uint64
	created    int
}

func (f *fakePSODevice) CreateGraphicsPipeline(d pipeline.Desc) (vk.Pipeline, error) {
	f.created++
	f.nextHandle++
	return vk.Pipeline(f.nextHandle), nil
}

func (f *fakePSODevice) DestroyGraphicsPipeline(vk.Pipeline) {}

// domainTarget is one entry of fakePipeline's domain table.
type domainTarget struct {
	renderPass *vulkan.RenderPass
	subpass    uint32
	meta       pipeline.MetaMaterial
}

// fakePipeline implements MaterialPipeline with an explicit domain->(renderPass,
// subpass, meta) table, standing in for the host render-pipeline spec.md §6
// describes as an external collaborator.
type fakePipeline struct {
	domains map[uint32]domainTarget
}

func (p *fakePipeline) ResolveMaterialDomain(domain uint32) (*vulkan.RenderPass, uint32, pipeline.MetaMaterial) {
	t := p.domains[domain]
	return t.renderPass, t.subpass, t.meta
}
func (p *fakePipeline) GlobalDescriptorSet() vk.DescriptorSet { return vk.DescriptorSet(1) }
func (p *fakePipeline) GlobalDescriptorSetLayout() *descriptor.SetLayout {
	return &descriptor.SetLayout{Key: "global"}
}

func unlitModule() *shader.Module {
	return &shader.Module{SourceID: "unlit", Reflection: &shader.Reflection{}}
}

// TestMaterialInstanceResolvesAndCachesPSOPerDomain checks spec.md §4.8:
// "MaterialInstance(material, materialDomain, ...) asks the active
// pipeline to resolveMaterialDomain(domain) ... then obtains a PSO from the
// pipeline-state cache", and that a second instance for the same material
// and domain reuses the cached PSO instead of building another one
// (mirrors Testable Property 5's key-stability guarantee one layer up).
func TestMaterialInstanceResolvesAndCachesPSOPerDomain(t *testing.T) {
	dev := &fakePSODevice{}
	psoCache := pipeline.NewCache(dev)
	meta := pipeline.Pack(pipeline.MetaMaterialDesc{CullMode: pipeline.CullBack, DepthTest: true})
	rpA := &vulkan.RenderPass{Handle: vk.RenderPass(7)}
	rpB := &vulkan.RenderPass{Handle: vk.RenderPass(9)}
	pl := &fakePipeline{domains: map[uint32]domainTarget{
		0: {renderPass: rpA, subpass: 0, meta: meta},
		1: {renderPass: rpA, subpass: 1, meta: meta},
		2: {renderPass: rpB, subpass: 0, meta: meta},
	}}

	mat := &Material{Shader: unlitModule(), pipelineStates: map[uint32]*pipeline.PSO{}}
	layout := &descriptor.PipelineLayout{Key: "0:;1:u1@0f"}

	mi1, err := NewMaterialInstance(pl, psoCache, mat, 0, pipeline.VertexInput{}, layout)
	if err != nil {
		t.Fatalf("NewMaterialInstance: %v", err)
	}
	if mi1.Domain != 0 || mi1.Material != mat || mi1.Shader != mat.Shader {
		t.Fatalf("unexpected instance fields: %+v", mi1)
	}
	if dev.created != 1 {
		t.Fatalf("expected exactly one PSO build, got %d", dev.created)
	}

	mi2, err := NewMaterialInstance(pl, psoCache, mat, 0, pipeline.VertexInput{}, layout)
	if err != nil {
		t.Fatalf("NewMaterialInstance (second instance, same domain): %v", err)
	}
	if mi2.pso != mi1.pso {
		t.Fatalf("expected domain-cached PSO reuse, got distinct PSOs %p vs %p", mi1.pso, mi2.pso)
	}
	if dev.created != 1 {
		t.Fatalf("expected no additional PSO build on cached domain, got %d total builds", dev.created)
	}
	if mi1.ID == mi2.ID {
		t.Fatal("expected distinct instance IDs even when the PSO is reused")
	}

	// Domains 1 and 2 resolve to a different subpass and a different render
	// pass respectively; both must build distinct, separately-cached PSOs
	// from domain 0 and from each other (spec.md §4.4 key is
	// (Shader, MetaMaterial, RenderPass, subpass)).
	mi3, err := NewMaterialInstance(pl, psoCache, mat, 1, pipeline.VertexInput{}, layout)
	if err != nil {
		t.Fatalf("NewMaterialInstance (domain 1): %v", err)
	}
	mi4, err := NewMaterialInstance(pl, psoCache, mat, 2, pipeline.VertexInput{}, layout)
	if err != nil {
		t.Fatalf("NewMaterialInstance (domain 2): %v", err)
	}
	if mi3.pso == mi1.pso || mi4.pso == mi1.pso || mi3.pso == mi4.pso {
		t.Fatal("expected each distinct (renderPass, subpass) domain to produce a distinct PSO")
	}
	if dev.created != 3 {
		t.Fatalf("expected 3 total PSO builds (domains 0, 1, 2), got %d", dev.created)
	}
}

// TestBindStateResetClearsTrackedBind checks the BindState bookkeeping
// MaterialInstance.Bind relies on to skip redundant binds (spec.md §4.8 /
// S3): a fresh frame must re-bind the Global set and whatever PSO comes
// first.
func TestBindStateResetClearsTrackedBind(t *testing.T) {
	state := &BindState{lastPSO: &pipeline.PSO{Key: "stale"}, boundGlobalSet: true}
	state.Reset()
	if state.lastPSO != nil || state.boundGlobalSet {
		t.Fatalf("expected Reset to clear tracked PSO and global-set bind, got %+v", state)
	}
}

// TestFindTexturePropertyMatchesByBinding checks the lookup NewMaterial
// uses to validate each TextureBinding against the shader's declared
// schema (spec.md invariant 4: bound texture image-view type must match
// the shader's declared property at that binding).
func TestFindTexturePropertyMatchesByBinding(t *testing.T) {
	props := []shader.Property{
		{Name: "albedo", Kind: shader.PropertyTexture, Binding: 0, ImageDim: 2, ArraySize: 1},
		{Name: "time", Kind: shader.PropertyVector, ByteOffset: 0},
		{Name: "normal", Kind: shader.PropertyTexture, Binding: 1, ImageDim: 2, ArraySize: 1},
	}

	p, ok := findTextureProperty(props, 1)
	if !ok || p.Name != "normal" {
		t.Fatalf("expected to find 'normal' at binding 1, got %+v (ok=%v)", p, ok)
	}

	if _, ok := findTextureProperty(props, 5); ok {
		t.Fatal("expected no property at an undeclared binding")
	}

	// A Vector property must never satisfy a texture-binding lookup even if
	// some future schema reused the same binding number by coincidence.
	vectorOnly := []shader.Property{{Name: "time", Kind: shader.PropertyVector, ByteOffset: 0}}
	if _, ok := findTextureProperty(vectorOnly, 0); ok {
		t.Fatal("expected a Vector property to never satisfy a texture lookup")
	}
}
