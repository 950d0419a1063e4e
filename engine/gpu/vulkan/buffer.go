package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"
)

// Buffer wraps a VkBuffer plus its backing VkDeviceMemory and mapped pointer
// (when host-visible), the shape the staging-upload and frame-allocator
// layers build on (spec.md §4.7).
type Buffer struct {
	Handle     vk.Buffer
	Memory     vk.DeviceMemory
	Size       uint64
	mapped     []byte
	usage      vk.BufferUsageFlagBits
}

// CreateBuffer allocates a buffer of size bytes with the given usage and
// memory-property flags, binding fresh device memory to it.
func (c *Context) CreateBuffer(size uint64, usage vk.BufferUsageFlagBits, properties vk.MemoryPropertyFlagBits) (*Buffer, error) {
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if err := checkResult("vkCreateBuffer", vk.CreateBuffer(c.Device, &info, nil, &handle)); err != nil {
		return nil, err
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(c.Device, handle, &req)
	req.Deref()

	memIndex, err := c.FindMemoryIndex(req.MemoryTypeBits, properties)
	if err != nil {
		vk.DestroyBuffer(c.Device, handle, nil)
		return nil, err
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: memIndex,
	}
	var memory vk.DeviceMemory
	if err := checkResult("vkAllocateMemory", vk.AllocateMemory(c.Device, &allocInfo, nil, &memory)); err != nil {
		vk.DestroyBuffer(c.Device, handle, nil)
		return nil, err
	}
	if err := checkResult("vkBindBufferMemory", vk.BindBufferMemory(c.Device, handle, memory, 0)); err != nil {
		vk.DestroyBuffer(c.Device, handle, nil)
		vk.FreeMemory(c.Device, memory, nil)
		return nil, err
	}

	return &Buffer{Handle: handle, Memory: memory, Size: size, usage: usage}, nil
}

// MapBuffer persistently maps the whole buffer for host access, used by the
// dynamic staging ring and the frame-partitioned uniform buffers (spec.md
// §4.7: "fixed-size, persistently host-mapped").
func (c *Context) MapBuffer(b *Buffer) ([]byte, error) {
	if b.mapped != nil {
		return b.mapped, nil
	}
	var ptr unsafe.Pointer
	if err := checkResult("vkMapMemory", vk.MapMemory(c.Device, b.Memory, 0, vk.DeviceSize(b.Size), 0, &ptr)); err != nil {
		return nil, err
	}
	b.mapped = unsafe.Slice((*byte)(ptr), int(b.Size))
	return b.mapped, nil
}

func (c *Context) UnmapBuffer(b *Buffer) {
	if b.mapped == nil {
		return
	}
	vk.UnmapMemory(c.Device, b.Memory)
	b.mapped = nil
}

func (c *Context) DestroyBuffer(b *Buffer) {
	c.UnmapBuffer(b)
	vk.DestroyBuffer(c.Device, b.Handle, nil)
	vk.FreeMemory(c.Device, b.Memory, nil)
}

// CopyBuffer records a copy of size bytes from src at srcOffset to dst at
// dstOffset into cb, the
// primitive both the dynamic and blocking staging upload paths share.
func (c *Context) CopyBuffer(cb *CommandBuffer, src, dst *Buffer, size uint64, srcOffset, dstOffset uint64) {
	region := vk.BufferCopy{SrcOffset: vk.DeviceSize(srcOffset), DstOffset: vk.DeviceSize(dstOffset), Size: vk.DeviceSize(size)}
	vk.CmdCopyBuffer(cb.Handle, src.Handle, dst.Handle, 1, []vk.BufferCopy{region})
}
