// Package batchquad implements the batch quad renderer (spec.md §4.10):
// coalescing many small textured or solid quads into few draw calls via a
// growable host-visible vertex/index buffer pair and a bounded texture-slot
// array. Grounded on the teacher's engine/renderer/vulkan buffer-growth
// idiom (VulkanBufferResize-style 1.5x growth, deferred-destroy the old
// backing) generalized to 2D UI geometry, which the teacher itself has no
// equivalent of.
package batchquad

import (
	"encoding/binary"
	"math"

	vk "github.com/goki/vulkan"

	"github.com/kilnforge/ember/engine/gpu/descriptor"
	"github.com/kilnforge/ember/engine/gpu/vulkan"
)

// Vertex is one batch-quad vertex (spec.md §4.10: "{pos:vec2, texID:uint,
// uv:vec2, color:vec4}").
type Vertex struct {
	Pos   [2]float32
	TexID uint32
	UV    [2]float32
	Color [4]float32
}

const vertexSize = 4*2 + 4 + 4*2 + 4*4

// maxTextureSlots is min(sampler-count-limit, 64); this engine's material
// layer caps material textures at 16 (engine/gpu/shader's maxMaterialTextures),
// well under the hardware sampler limit, so 64 is the binding operative cap.
const maxTextureSlots = 64

const growthFactor = 1.5

// Batch owns the growable vertex/index buffers and texture-slot array for
// one batch-quad renderer instance. Not safe for concurrent use — draws are
// recorded from a single thread per spec.md §5.
type Batch struct {
	ctx *vulkan.Context

	vertexBuffer   *vulkan.Buffer
	vertexMapped   []byte
	vertexCapacity int // in vertices
	vertexCount    int

	indexBuffer   *vulkan.Buffer
	indexMapped   []byte
	indexCapacity int
	indexCount    int

	slots     [maxTextureSlots]vk.ImageView
	slotCount int

	flushedVertexOffset int
	flushedIndexOffset  int

	retiredVertex *vulkan.Buffer
	retiredIndex  *vulkan.Buffer

	// Per-frame recording state, set by Begin and consumed by DrawQuad/Flush.
	cb        *vulkan.CommandBuffer
	allocator *descriptor.DynamicAllocator
	frameIdx  int
	current   *DrawMaterial
}

func putFloat32(dst []byte, v float32) {
	binary.LittleEndian.PutUint32(dst, math.Float32bits(v))
}

func putUint32(dst []byte, v uint32) {
	binary.LittleEndian.PutUint32(dst, v)
}

// New creates a Batch with room for initialQuads quads (4 vertices, 6
// indices each).
func New(ctx *vulkan.Context, initialQuads int) (*Batch, error) {
	b := &Batch{ctx: ctx}
	if err := b.growVertices(initialQuads * 4); err != nil {
		return nil, err
	}
	if err := b.growIndices(initialQuads * 6); err != nil {
		return nil, err
	}
	return b, nil
}

func growTo(current, min int) int {
	if current == 0 {
		current = min
	}
	for current < min {
		current = int(float64(current) * growthFactor)
	}
	return current
}

func (b *Batch) growVertices(minCapacity int) error {
	if minCapacity <= b.vertexCapacity {
		return nil
	}
	newCapacity := growTo(b.vertexCapacity, minCapacity)
	buf, err := b.ctx.CreateBuffer(uint64(newCapacity*vertexSize),
		vk.BufferUsageVertexBufferBit,
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		return err
	}
	mapped, err := b.ctx.MapBuffer(buf)
	if err != nil {
		b.ctx.DestroyBuffer(buf)
		return err
	}
	if b.vertexBuffer != nil {
		copy(mapped, b.vertexMapped[:b.vertexCount*vertexSize])
		b.retiredVertex = b.vertexBuffer
	}
	b.vertexBuffer, b.vertexMapped, b.vertexCapacity = buf, mapped, newCapacity
	return nil
}

func (b *Batch) growIndices(minCapacity int) error {
	if minCapacity <= b.indexCapacity {
		return nil
	}
	newCapacity := growTo(b.indexCapacity, minCapacity)
	buf, err := b.ctx.CreateBuffer(uint64(newCapacity*4),
		vk.BufferUsageIndexBufferBit,
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		return err
	}
	mapped, err := b.ctx.MapBuffer(buf)
	if err != nil {
		b.ctx.DestroyBuffer(buf)
		return err
	}
	if b.indexBuffer != nil {
		copy(mapped, b.indexMapped[:b.indexCount*4])
		b.retiredIndex = b.indexBuffer
	}
	b.indexBuffer, b.indexMapped, b.indexCapacity = buf, mapped, newCapacity
	return nil
}

// TakeRetired returns and clears any buffers superseded by a growth this
// frame, so the caller can enqueue them on the current frame's deletion
// queue instead of destroying them immediately.
func (b *Batch) TakeRetired() (vertex, index *vulkan.Buffer) {
	vertex, index = b.retiredVertex, b.retiredIndex
	b.retiredVertex, b.retiredIndex = nil, nil
	return
}

// Destroy frees both buffers unconditionally; callers should only do this
// at shutdown, after the deletion queue has drained.
func (b *Batch) Destroy() {
	b.ctx.DestroyBuffer(b.vertexBuffer)
	b.ctx.DestroyBuffer(b.indexBuffer)
}
