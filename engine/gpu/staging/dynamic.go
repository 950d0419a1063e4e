// Package staging implements the staging-upload subsystem (spec.md §4.7):
// the per-frame dynamic buffer ring used for in-frame uploads, and the
// blocking buffer/image upload path used for uploads that must complete
// before the caller proceeds. Grounded on the teacher's
// engine/renderer/vulkan/buffer.go copy helpers, generalized into the
// fixed-size, persistently-mapped ring spec.md §4.7 describes (the teacher
// has no such ring; it always does a blocking one-shot copy).
package staging

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/kilnforge/ember/engine/core"
	"github.com/kilnforge/ember/engine/gpu/vulkan"
)

type chunk struct {
	buffer *vulkan.Buffer
	mapped []byte
	fill   uint64
}

// DynamicBuffer is one frame-in-flight's ring of fixed-size, host-visible,
// persistently-mapped staging buffers (spec.md §3: FrameResource's
// DynamicStagingBuffer). An upload writes into the first chunk with a
// sufficient free suffix; if none fits, a new fixed-size chunk is appended.
type DynamicBuffer struct {
	ctx       *vulkan.Context
	chunkSize uint64
	chunks    []*chunk
}

// NewDynamicBuffer creates a dynamic staging buffer with one chunk of the
// given fixed size already allocated.
func NewDynamicBuffer(ctx *vulkan.Context, chunkSize uint64) (*DynamicBuffer, error) {
	d := &DynamicBuffer{ctx: ctx, chunkSize: chunkSize}
	if _, err := d.addChunk(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DynamicBuffer) addChunk() (*chunk, error) {
	buf, err := d.ctx.CreateBuffer(d.chunkSize,
		vk.BufferUsageTransferSrcBit,
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		return nil, fmt.Errorf("staging: allocate dynamic chunk: %w", err)
	}
	mapped, err := d.ctx.MapBuffer(buf)
	if err != nil {
		d.ctx.DestroyBuffer(buf)
		return nil, fmt.Errorf("staging: map dynamic chunk: %w", err)
	}
	c := &chunk{buffer: buf, mapped: mapped}
	d.chunks = append(d.chunks, c)
	return c, nil
}

// BarrierSpec describes the access this upload's data will next be consumed
// by, so Write can record the buffer-memory-barrier spec.md §4.7's "dynamic
// buffer with barrier" subsection requires.
type BarrierSpec struct {
	StageAfter  vk.PipelineStageFlagBits
	AccessAfter vk.AccessFlagBits
}

// chooseChunk returns the first chunk with a free suffix of at least
// dataLen bytes, or nil if none fits — spec.md §4.7: "An upload writes into
// the first buffer with sufficient free suffix". Factored out of Write so
// the first-fit selection can be tested without a real GPU context.
func chooseChunk(chunks []*chunk, chunkSize, dataLen uint64) *chunk {
	for _, c := range chunks {
		if chunkSize-c.fill >= dataLen {
			return c
		}
	}
	return nil
}

// Write copies data into the first chunk with room (host-coherent memory,
// so no flush is issued) and records
// a copy-buffer command from the staging chunk into dst at dstOffset,
// followed by a buffer-memory-barrier transitioning from TransferWrite@Transfer
// to barrier.AccessAfter@barrier.StageAfter (spec.md §4.7, Testable
// Property / S4). Returns core.ErrStagingBufferOverflow if data is larger
// than the fixed chunk size — a hard error per spec, not a resize.
func (d *DynamicBuffer) Write(cb *vulkan.CommandBuffer, dst *vulkan.Buffer, dstOffset uint64, data []byte, barrier BarrierSpec) error {
	if uint64(len(data)) > d.chunkSize {
		return core.ErrStagingBufferOverflow
	}

	target := chooseChunk(d.chunks, d.chunkSize, uint64(len(data)))
	if target == nil {
		var err error
		target, err = d.addChunk()
		if err != nil {
			return err
		}
	}

	srcOffset := target.fill
	copy(target.mapped[srcOffset:], data)
	target.fill += uint64(len(data))

	d.ctx.CopyBuffer(cb, target.buffer, dst, uint64(len(data)), srcOffset, dstOffset)

	b := vk.BufferMemoryBarrier{
		SType:               vk.StructureTypeBufferMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(vk.AccessTransferWriteBit),
		DstAccessMask:       vk.AccessFlags(barrier.AccessAfter),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Buffer:              dst.Handle,
		Offset:              vk.DeviceSize(dstOffset),
		Size:                vk.DeviceSize(len(data)),
	}
	vk.CmdPipelineBarrier(cb.Handle,
		vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.PipelineStageFlags(barrier.StageAfter), 0,
		0, nil, 1, []vk.BufferMemoryBarrier{b}, 0, nil)

	return nil
}

// Reset zeroes every chunk's fill pointer, called at the start of the frame
// that reuses this slot (frame scheduler step 2).
func (d *DynamicBuffer) Reset() {
	for _, c := range d.chunks {
		c.fill = 0
	}
}

// Destroy frees every chunk's backing buffer.
func (d *DynamicBuffer) Destroy() {
	for _, c := range d.chunks {
		d.ctx.DestroyBuffer(c.buffer)
	}
	d.chunks = nil
}
