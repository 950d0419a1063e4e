package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/kilnforge/ember/engine/core"
)

// Context is the single owner of every native Vulkan handle this engine
// allocates: instance, surface, physical/logical device, queues, the
// lock pool and the graphics command pool. It is the concrete type behind
// every narrow Device/PoolDevice interface declared in the cache packages
// (engine/gpu/shader, engine/gpu/descriptor, engine/gpu/pipeline), grounded
// on the teacher's engine/renderer/vulkan/context.go VulkanContext.
type Context struct {
	Instance       vk.Instance
	Surface        vk.Surface
	DebugMessenger vk.DebugReportCallback

	PhysicalDevice vk.PhysicalDevice
	Device         vk.Device

	GraphicsQueue  vk.Queue
	PresentQueue   vk.Queue
	TransferQueue  vk.Queue
	GraphicsFamily uint32
	PresentFamily  uint32
	TransferFamily uint32

	MemoryProperties vk.PhysicalDeviceMemoryProperties

	GraphicsCommandPool vk.CommandPool

	Locks *LockPool

	FramebufferWidth, FramebufferHeight uint32
}

// FindMemoryIndex returns the first memory-type index matching typeFilter's
// bitmask and carrying every bit of propertyFlags, adapted verbatim from the
// teacher's VulkanContext.FindMemoryIndex.
func (c *Context) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlagBits) (uint32, error) {
	c.MemoryProperties.Deref()
	for i := uint32(0); i < c.MemoryProperties.MemoryTypeCount; i++ {
		c.MemoryProperties.MemoryTypes[i].Deref()
		if typeFilter&(1<<i) == 0 {
			continue
		}
		if vk.MemoryPropertyFlagBits(c.MemoryProperties.MemoryTypes[i].PropertyFlags)&propertyFlags == propertyFlags {
			return i, nil
		}
	}
	return 0, fmt.Errorf("vulkan: unable to find suitable memory type for filter 0x%x flags 0x%x", typeFilter, propertyFlags)
}

// checkResult logs and returns an error if result is not a success code
// (core.ErrUnknown for fatal results, a descriptive error otherwise), the
// common pattern repeated at every raw vk.* call site in this package.
func checkResult(op string, result vk.Result) error {
	if IsSuccess(result) {
		return nil
	}
	core.LogError("vulkan: %s failed: %s", op, ResultString(result, true))
	if IsFatal(result) {
		return core.ErrUnknown
	}
	return fmt.Errorf("vulkan: %s: %s", op, ResultString(result, false))
}
