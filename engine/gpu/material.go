// Package gpu hosts the Material/MaterialInstance layer (spec.md §4.8) and
// the render-pass builder (spec.md §4.9), both of which sit directly on top
// of the shader, descriptor and pipeline caches rather than owning a
// sub-package of their own (SPEC_FULL.md §3 package-mapping table).
package gpu

import (
	"fmt"

	"github.com/google/uuid"
	vk "github.com/goki/vulkan"

	"github.com/kilnforge/ember/engine/core"
	"github.com/kilnforge/ember/engine/gpu/descriptor"
	"github.com/kilnforge/ember/engine/gpu/pipeline"
	"github.com/kilnforge/ember/engine/gpu/shader"
	"github.com/kilnforge/ember/engine/gpu/vulkan"
)

// TextureBinding is one `(texture-binding-index, [texture…])` pair from
// spec.md §4.8's MaterialInitializer.
type TextureBinding struct {
	Binding  uint32
	Textures []Texture
}

// MaterialInitializer supplies everything Material construction needs: the
// shader to bind, the uniform-buffer bytes (must equal
// Shader.UniformBufferSize), and the per-binding texture lists.
type MaterialInitializer struct {
	Shader        *shader.Module
	UniformBytes  []byte
	TextureGroups []TextureBinding
}

// MaterialPipeline is the slice of the render-pipeline (spec.md §6's
// `Pipeline` interface) that Material/MaterialInstance construction needs:
// resolving a material domain to concrete render targets, and exposing the
// pipeline's Global (set 0) descriptor set and layout.
type MaterialPipeline interface {
	ResolveMaterialDomain(domain uint32) (renderPass *vulkan.RenderPass, subpass uint32, meta pipeline.MetaMaterial)
	GlobalDescriptorSet() vk.DescriptorSet
	GlobalDescriptorSetLayout() *descriptor.SetLayout
}

// Material owns a shader's uniform-buffer data and bound texture set
// (spec.md §3: "(Shader ref, optional uniform Buffer, optional material
// DescriptorSet, per-domain PipelineState vector)").
type Material struct {
	Shader         *shader.Module
	uniformBuffer  *vulkan.Buffer
	descriptorSet  vk.DescriptorSet
	hasDescriptorSet bool

	pipelineStates map[uint32]*pipeline.PSO // by material domain
}

// NewMaterial validates and constructs a Material from init, allocating its
// material descriptor set (if the shader declares one), uploading its
// uniform buffer, and writing its texture bindings (spec.md §4.8 step 1).
func NewMaterial(ctx *vulkan.Context, descriptors *descriptor.Cache, staticAlloc *descriptor.StaticAllocator, uploadBuffer func(dst *vulkan.Buffer, offset uint64, data []byte) error, init MaterialInitializer) (*Material, error) {
	m := &Material{Shader: init.Shader, pipelineStates: make(map[uint32]*pipeline.PSO)}

	materialBindings := init.Shader.Reflection.Sets[shader.SetMaterial]
	if len(materialBindings) == 0 {
		return m, nil
	}

	layout, err := descriptors.GetSetLayout(materialBindings)
	if err != nil {
		return nil, fmt.Errorf("gpu: material set layout: %w", err)
	}
	set, err := staticAlloc.Allocate(layout.Handle)
	if err != nil {
		return nil, fmt.Errorf("gpu: allocate material descriptor set: %w", err)
	}
	m.descriptorSet = set
	m.hasDescriptorSet = true

	var writes []vk.WriteDescriptorSet

	uboSize := init.Shader.UniformBufferSize()
	if uboSize > 0 {
		if uint32(len(init.UniformBytes)) != uboSize {
			return nil, fmt.Errorf("%w: material uniform payload is %d bytes, shader declares %d",
				core.ErrUniformSizeMismatch, len(init.UniformBytes), uboSize)
		}
		buf, err := ctx.CreateBuffer(uint64(uboSize),
			vk.BufferUsageUniformBufferBit|vk.BufferUsageTransferDstBit,
			vk.MemoryPropertyDeviceLocalBit)
		if err != nil {
			return nil, fmt.Errorf("gpu: create material uniform buffer: %w", err)
		}
		if err := uploadBuffer(buf, 0, init.UniformBytes); err != nil {
			ctx.DestroyBuffer(buf)
			return nil, fmt.Errorf("gpu: upload material uniform buffer: %w", err)
		}
		m.uniformBuffer = buf

		writes = append(writes, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      0,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			PBufferInfo:     []vk.DescriptorBufferInfo{{Buffer: buf.Handle, Offset: 0, Range: vk.DeviceSize(uboSize)}},
		})
	}

	properties := init.Shader.Reflection.Properties
	for _, group := range init.TextureGroups {
		prop, ok := findTextureProperty(properties, group.Binding)
		if !ok {
			return nil, fmt.Errorf("%w: shader declares no texture property at binding %d", core.ErrTextureTypeMismatch, group.Binding)
		}
		if uint32(len(group.Textures)) != prop.ArraySize {
			return nil, fmt.Errorf("%w: binding %d has %d textures, shader declares array size %d",
				core.ErrTextureCountMismatch, group.Binding, len(group.Textures), prop.ArraySize)
		}
		imageInfos := make([]vk.DescriptorImageInfo, len(group.Textures))
		for i, t := range group.Textures {
			if t.Dim != prop.ImageDim {
				return nil, fmt.Errorf("%w: binding %d texture %d has dim %d, shader declares %d",
					core.ErrTextureTypeMismatch, group.Binding, i, t.Dim, prop.ImageDim)
			}
			imageInfos[i] = vk.DescriptorImageInfo{
				Sampler: t.Sampler, ImageView: t.View, ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			}
		}
		writes = append(writes, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      group.Binding,
			DescriptorCount: uint32(len(imageInfos)),
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			PImageInfo:      imageInfos,
		})
	}

	if len(writes) > 0 {
		vk.UpdateDescriptorSets(ctx.Device, uint32(len(writes)), writes, 0, nil)
	}
	return m, nil
}

func findTextureProperty(props []shader.Property, binding uint32) (shader.Property, bool) {
	for _, p := range props {
		if p.Kind == shader.PropertyTexture && p.Binding == binding {
			return p, true
		}
	}
	return shader.Property{}, false
}

// Destroy enqueues the material's GPU resources (uniform buffer, descriptor
// set) for destruction; callers should route this through a frame's
// deletion queue rather than calling immediately (spec.md §3: resource
// destruction is never immediate).
func (m *Material) Destroy(ctx *vulkan.Context, staticAlloc *descriptor.StaticAllocator) {
	if m.hasDescriptorSet {
		staticAlloc.Free(m.descriptorSet)
	}
	if m.uniformBuffer != nil {
		ctx.DestroyBuffer(m.uniformBuffer)
	}
}

// MaterialInstance binds a Material to a concrete render target via a
// material domain (spec.md §3: "(Material ref, Shader ref, PipelineState,
// MetaMaterial)"). Its ID is a debug-visible handle for logging.
type MaterialInstance struct {
	ID       uuid.UUID
	Material *Material
	Shader   *shader.Module
	Meta     pipeline.MetaMaterial
	Domain   uint32
	pso      *pipeline.PSO
}

// NewMaterialInstance resolves domain through pl.ResolveMaterialDomain,
// obtains a PSO from psoCache for (shader, meta, renderPass, subpass), and
// caches it on the Material for reuse by domain (spec.md §4.8).
func NewMaterialInstance(pl MaterialPipeline, psoCache *pipeline.Cache, mat *Material, domain uint32, vertexInput pipeline.VertexInput, pipelineLayout *descriptor.PipelineLayout) (*MaterialInstance, error) {
	renderPass, subpass, meta := pl.ResolveMaterialDomain(domain)

	if pso, ok := mat.pipelineStates[domain]; ok {
		return &MaterialInstance{ID: uuid.New(), Material: mat, Shader: mat.Shader, Meta: meta, Domain: domain, pso: pso}, nil
	}

	pso, err := psoCache.Get(pipeline.Desc{
		Module: mat.Shader, Meta: meta, PipelineLayout: pipelineLayout,
		RenderPass: renderPass.Handle, Subpass: subpass, VertexInput: vertexInput,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: resolve PSO for material instance: %w", err)
	}
	mat.pipelineStates[domain] = pso

	return &MaterialInstance{ID: uuid.New(), Material: mat, Shader: mat.Shader, Meta: meta, Domain: domain, pso: pso}, nil
}

// BindState tracks what the current frame has already bound, so
// MaterialInstance.Bind can skip redundant pipeline/global-set binds
// (spec.md §4.8, S3).
type BindState struct {
	lastPSO        *pipeline.PSO
	boundGlobalSet bool
}

// Reset clears the bind state at the start of a new frame.
func (s *BindState) Reset() {
	s.lastPSO = nil
	s.boundGlobalSet = false
}

// Bind records bindPipeline (if the PSO changed), bindDescriptorSet(set=0)
// (on the first bind of the frame) and bindDescriptorSet(set=1) (if the
// material has one) — spec.md §4.8 / S3.
func (mi *MaterialInstance) Bind(cb *vulkan.CommandBuffer, pl MaterialPipeline, layout *descriptor.PipelineLayout, state *BindState) {
	if state.lastPSO != mi.pso {
		vk.CmdBindPipeline(cb.Handle, vk.PipelineBindPointGraphics, mi.pso.Handle)
		state.lastPSO = mi.pso
	}
	if !state.boundGlobalSet {
		global := pl.GlobalDescriptorSet()
		vk.CmdBindDescriptorSets(cb.Handle, vk.PipelineBindPointGraphics, layout.Handle,
			shader.SetGlobal, 1, []vk.DescriptorSet{global}, 0, nil)
		state.boundGlobalSet = true
	}
	if mi.Material.hasDescriptorSet {
		vk.CmdBindDescriptorSets(cb.Handle, vk.PipelineBindPointGraphics, layout.Handle,
			shader.SetMaterial, 1, []vk.DescriptorSet{mi.Material.descriptorSet}, 0, nil)
	}
}
