package vulkan

import vk "github.com/goki/vulkan"

// Fence wraps a VkFence, adapted from the teacher's engine/renderer/vulkan/fence.go.
type Fence struct {
	Handle   vk.Fence
	Signaled bool
}

// CreateFence creates a fence, optionally pre-signaled — the frame scheduler
// creates its in-flight fences pre-signaled so the first wait on each frame
// slot returns immediately (spec.md §4.6).
func (c *Context) CreateFence(createSignaled bool) (*Fence, error) {
	flags := vk.FenceCreateFlags(0)
	if createSignaled {
		flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	info := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo, Flags: flags}
	var handle vk.Fence
	if err := checkResult("vkCreateFence", vk.CreateFence(c.Device, &info, nil, &handle)); err != nil {
		return nil, err
	}
	return &Fence{Handle: handle, Signaled: createSignaled}, nil
}

// FenceWait blocks until the fence signals or timeoutNanos elapses, and
// reports false on timeout.
func (c *Context) FenceWait(f *Fence, timeoutNanos uint64) (bool, error) {
	if f.Signaled {
		return true, nil
	}
	result := vk.WaitForFences(c.Device, 1, []vk.Fence{f.Handle}, vk.True, timeoutNanos)
	switch result {
	case vk.Success:
		f.Signaled = true
		return true, nil
	case vk.Timeout:
		return false, nil
	default:
		return false, checkResult("vkWaitForFences", result)
	}
}

// FenceReset resets f to the unsignaled state.
func (c *Context) FenceReset(f *Fence) error {
	if !f.Signaled {
		return nil
	}
	err := checkResult("vkResetFences", vk.ResetFences(c.Device, 1, []vk.Fence{f.Handle}))
	f.Signaled = false
	return err
}

func (c *Context) DestroyFence(f *Fence) {
	vk.DestroyFence(c.Device, f.Handle, nil)
}

// CreateSemaphore creates a binary VkSemaphore.
func (c *Context) CreateSemaphore() (vk.Semaphore, error) {
	info := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	var handle vk.Semaphore
	if err := checkResult("vkCreateSemaphore", vk.CreateSemaphore(c.Device, &info, nil, &handle)); err != nil {
		return vk.NullSemaphore, err
	}
	return handle, nil
}

func (c *Context) DestroySemaphore(s vk.Semaphore) {
	vk.DestroySemaphore(c.Device, s, nil)
}
