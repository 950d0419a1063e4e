package batchquad

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/kilnforge/ember/engine/gpu/descriptor"
	"github.com/kilnforge/ember/engine/gpu/pipeline"
	"github.com/kilnforge/ember/engine/gpu/vulkan"
)

// DrawMaterial is the slice of a bound shader/PSO a batch run needs: the
// pipeline to bind plus the layout of the per-run object descriptor set
// (spec.md §4.10: "the shader's object descriptor set is allocated from the
// dynamic allocator and written with the slot array's current textures" —
// set 2, Object, by the engine-wide convention in spec.md's GLOSSARY).
type DrawMaterial struct {
	PSO             *pipeline.PSO
	PipelineLayout  *descriptor.PipelineLayout
	ObjectSetLayout vk.DescriptorSetLayout
}

// Begin starts recording a new frame's batch runs into cb, using
// allocator's frameIdx partition for this frame's object descriptor sets.
func (b *Batch) Begin(cb *vulkan.CommandBuffer, allocator *descriptor.DynamicAllocator, frameIdx int) {
	b.cb = cb
	b.allocator = allocator
	b.frameIdx = frameIdx
	b.vertexCount = 0
	b.indexCount = 0
	b.flushedVertexOffset = 0
	b.flushedIndexOffset = 0
	b.slotCount = 0
	b.current = nil
}

// SetMaterial flushes the current run (if any geometry is pending) and
// switches to mat for subsequent DrawQuad calls (spec.md §4.10 "on material
// change the current run is flushed and the new material's shader bound").
func (b *Batch) SetMaterial(mat *DrawMaterial) error {
	if b.current == mat {
		return nil
	}
	if err := b.Flush(); err != nil {
		return err
	}
	b.current = mat
	return nil
}

// slotFor resolves view to a texture slot index, reusing an existing
// binding or appending to the next unused slot; when the array is full it
// flushes first and starts a fresh slot table (spec.md §4.10).
func (b *Batch) slotFor(view vk.ImageView) (uint32, error) {
	for i := 0; i < b.slotCount; i++ {
		if b.slots[i] == view {
			return uint32(i), nil
		}
	}
	if b.slotCount >= maxTextureSlots {
		if err := b.Flush(); err != nil {
			return 0, err
		}
	}
	slot := uint32(b.slotCount)
	b.slots[b.slotCount] = view
	b.slotCount++
	return slot, nil
}

// DrawQuad appends one axis-aligned textured quad (two triangles) at pos
// with size, sampling view across uv0..uv1 and modulated by color.
func (b *Batch) DrawQuad(pos, size [2]float32, uv0, uv1 [2]float32, color [4]float32, view vk.ImageView) error {
	if b.current == nil {
		return fmt.Errorf("batchquad: DrawQuad called with no material set")
	}
	texID, err := b.slotFor(view)
	if err != nil {
		return err
	}
	if err := b.growVertices(b.vertexCount + 4); err != nil {
		return err
	}
	if err := b.growIndices(b.indexCount + 6); err != nil {
		return err
	}

	base := uint32(b.vertexCount)
	verts := [4]Vertex{
		{Pos: pos, TexID: texID, UV: [2]float32{uv0[0], uv0[1]}, Color: color},
		{Pos: [2]float32{pos[0] + size[0], pos[1]}, TexID: texID, UV: [2]float32{uv1[0], uv0[1]}, Color: color},
		{Pos: [2]float32{pos[0] + size[0], pos[1] + size[1]}, TexID: texID, UV: [2]float32{uv1[0], uv1[1]}, Color: color},
		{Pos: [2]float32{pos[0], pos[1] + size[1]}, TexID: texID, UV: [2]float32{uv0[0], uv1[1]}, Color: color},
	}
	for i, v := range verts {
		writeVertex(b.vertexMapped, b.vertexCount+i, v)
	}
	b.vertexCount += 4

	indices := [6]uint32{base, base + 1, base + 2, base, base + 2, base + 3}
	for i, idx := range indices {
		writeIndex(b.indexMapped, b.indexCount+i, idx)
	}
	b.indexCount += 6
	return nil
}

func writeVertex(dst []byte, i int, v Vertex) {
	off := i * vertexSize
	putFloat32(dst[off:], v.Pos[0])
	putFloat32(dst[off+4:], v.Pos[1])
	putUint32(dst[off+8:], v.TexID)
	putFloat32(dst[off+12:], v.UV[0])
	putFloat32(dst[off+16:], v.UV[1])
	putFloat32(dst[off+20:], v.Color[0])
	putFloat32(dst[off+24:], v.Color[1])
	putFloat32(dst[off+28:], v.Color[2])
	putFloat32(dst[off+32:], v.Color[3])
}

func writeIndex(dst []byte, i int, v uint32) {
	putUint32(dst[i*4:], v)
}

// Flush records the accumulated vertex/index range (since the previous
// flush) as one drawIndexed call, binds a freshly allocated object
// descriptor set written with the current slot array, and advances the
// flushed offsets (spec.md §4.10).
func (b *Batch) Flush() error {
	pendingIndices := b.indexCount - b.flushedIndexOffset
	if pendingIndices == 0 {
		b.slotCount = 0
		return nil
	}
	mat := b.current

	set, err := b.allocator.Allocate(b.frameIdx, mat.ObjectSetLayout)
	if err != nil {
		return fmt.Errorf("batchquad: allocate object descriptor set: %w", err)
	}
	imageInfos := make([]vk.DescriptorImageInfo, b.slotCount)
	for i := 0; i < b.slotCount; i++ {
		imageInfos[i] = vk.DescriptorImageInfo{ImageView: b.slots[i], ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal}
	}
	if len(imageInfos) > 0 {
		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      0,
			DescriptorCount: uint32(len(imageInfos)),
			DescriptorType:  vk.DescriptorTypeSampledImage,
			PImageInfo:      imageInfos,
		}
		vk.UpdateDescriptorSets(b.ctx.Device, 1, []vk.WriteDescriptorSet{write}, 0, nil)
	}

	vk.CmdBindPipeline(b.cb.Handle, vk.PipelineBindPointGraphics, mat.PSO.Handle)
	vk.CmdBindDescriptorSets(b.cb.Handle, vk.PipelineBindPointGraphics, mat.PipelineLayout.Handle,
		objectSetIndex, 1, []vk.DescriptorSet{set}, 0, nil)

	offsets := []vk.DeviceSize{0}
	vk.CmdBindVertexBuffers(b.cb.Handle, 0, 1, []vk.Buffer{b.vertexBuffer.Handle}, offsets)
	vk.CmdBindIndexBuffer(b.cb.Handle, b.indexBuffer.Handle, 0, vk.IndexTypeUint32)
	vk.CmdDrawIndexed(b.cb.Handle, uint32(pendingIndices), 1, uint32(b.flushedIndexOffset), 0, 0)

	b.flushedVertexOffset = b.vertexCount
	b.flushedIndexOffset = b.indexCount
	b.slotCount = 0
	return nil
}

// objectSetIndex is set 2 (Object) by the engine-wide descriptor-set
// convention (spec.md GLOSSARY: "set 0/1/2 = Global / Material / Object").
const objectSetIndex = 2
