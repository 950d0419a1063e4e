package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/kilnforge/ember/engine/core"
)

// PhysicalDeviceInfo is the subset of a VkPhysicalDevice's properties the
// GPU-selection callback (spec.md §6: "a GPU-selection callback
// (available: [PhysicalDevice]) → index") is handed so host applications can
// pick deterministically instead of always taking index 0.
type PhysicalDeviceInfo struct {
	Handle        vk.PhysicalDevice
	Name          string
	IsDiscreteGPU bool
	DeviceType    vk.PhysicalDeviceType
}

// SelectGPU is the signature of the callback spec.md §6 requires in
// RendererStartupInfo.
type SelectGPU func(available []PhysicalDeviceInfo) int

type queueFamilyIndices struct {
	graphics, present, transfer uint32
	hasGraphics, hasPresent, hasTransfer bool
}

// EnumeratePhysicalDevices lists every physical device visible to the
// instance along with the caller-facing summary used by SelectGPU.
func (c *Context) EnumeratePhysicalDevices() ([]PhysicalDeviceInfo, error) {
	var count uint32
	if err := checkResult("vkEnumeratePhysicalDevices(count)", vk.EnumeratePhysicalDevices(c.Instance, &count, nil)); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("vulkan: no physical devices found")
	}
	handles := make([]vk.PhysicalDevice, count)
	if err := checkResult("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(c.Instance, &count, handles)); err != nil {
		return nil, err
	}

	infos := make([]PhysicalDeviceInfo, count)
	for i, h := range handles {
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(h, &props)
		props.Deref()
		name := vulkanCStr(props.DeviceName[:])
		infos[i] = PhysicalDeviceInfo{
			Handle:        h,
			Name:          name,
			IsDiscreteGPU: props.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu,
			DeviceType:    props.DeviceType,
		}
	}
	return infos, nil
}

func vulkanCStr(raw []int8) string {
	b := make([]byte, 0, len(raw))
	for _, c := range raw {
		if c == 0 {
			break
		}
		b = append(b, byte(c))
	}
	return string(b)
}

func (c *Context) findQueueFamilies(physical vk.PhysicalDevice) (queueFamilyIndices, error) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(physical, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(physical, &count, families)

	var out queueFamilyIndices
	for i := uint32(0); i < count; i++ {
		families[i].Deref()
		flags := vk.QueueFlagBits(families[i].QueueFlags)

		if flags&vk.QueueGraphicsBit != 0 && !out.hasGraphics {
			out.graphics, out.hasGraphics = i, true
		}
		if flags&vk.QueueTransferBit != 0 && flags&vk.QueueGraphicsBit == 0 && !out.hasTransfer {
			out.transfer, out.hasTransfer = i, true
		}

		var presentSupport vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(physical, i, c.Surface, &presentSupport)
		if presentSupport.B() && !out.hasPresent {
			out.present, out.hasPresent = i, true
		}
	}
	if !out.hasTransfer {
		out.transfer, out.hasTransfer = out.graphics, out.hasGraphics
	}
	return out, nil
}

// DeviceCreate selects a physical device (via selectGPU if non-nil,
// otherwise the first discrete GPU or else index 0) and creates the logical
// device, queues and graphics command pool. Grounded on the teacher's
// engine/renderer/vulkan/device.go DeviceCreate: queue-family dedup and
// device creation serialized through the lock pool. The only device
// extension enabled is VK_KHR_swapchain; device extensions are not
// enumerated.
func (c *Context) DeviceCreate(selectGPU SelectGPU) error {
	infos, err := c.EnumeratePhysicalDevices()
	if err != nil {
		return err
	}

	chosen := 0
	if selectGPU != nil {
		chosen = selectGPU(infos)
		if chosen < 0 || chosen >= len(infos) {
			return fmt.Errorf("vulkan: GPU-selection callback returned out-of-range index %d", chosen)
		}
	} else {
		for i, info := range infos {
			if info.IsDiscreteGPU {
				chosen = i
				break
			}
		}
	}
	c.PhysicalDevice = infos[chosen].Handle
	core.LogInfo("vulkan: selected GPU %q", infos[chosen].Name)

	vk.GetPhysicalDeviceMemoryProperties(c.PhysicalDevice, &c.MemoryProperties)

	families, err := c.findQueueFamilies(c.PhysicalDevice)
	if err != nil {
		return err
	}
	if !families.hasGraphics || !families.hasPresent {
		return fmt.Errorf("vulkan: selected device lacks a graphics or present queue family")
	}
	c.GraphicsFamily, c.PresentFamily, c.TransferFamily = families.graphics, families.present, families.transfer

	unique := map[uint32]bool{families.graphics: true, families.present: true, families.transfer: true}
	priority := []float32{1.0}
	queueInfos := make([]vk.DeviceQueueCreateInfo, 0, len(unique))
	for idx := range unique {
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: idx,
			QueueCount:       1,
			PQueuePriorities: priority,
		})
	}

	extensions := SafeStrings([]string{"VK_KHR_swapchain"})
	features := vk.PhysicalDeviceFeatures{
		SamplerAnisotropy: vk.True,
	}

	createInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{features},
	}

	err = c.Locks.SafeCall(LockQueueManagement, func() error {
		var device vk.Device
		if err := checkResult("vkCreateDevice", vk.CreateDevice(c.PhysicalDevice, &createInfo, nil, &device)); err != nil {
			return err
		}
		c.Device = device
		vk.InitDevice(device)
		return nil
	})
	if err != nil {
		return err
	}

	var graphicsQueue, presentQueue, transferQueue vk.Queue
	vk.GetDeviceQueue(c.Device, c.GraphicsFamily, 0, &graphicsQueue)
	vk.GetDeviceQueue(c.Device, c.PresentFamily, 0, &presentQueue)
	vk.GetDeviceQueue(c.Device, c.TransferFamily, 0, &transferQueue)
	c.GraphicsQueue, c.PresentQueue, c.TransferQueue = graphicsQueue, presentQueue, transferQueue

	c.Locks.SetQueueFamily(c.GraphicsFamily)
	c.Locks.SetQueueFamily(c.PresentFamily)
	c.Locks.SetQueueFamily(c.TransferFamily)

	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: c.GraphicsFamily,
	}
	var pool vk.CommandPool
	if err := checkResult("vkCreateCommandPool", vk.CreateCommandPool(c.Device, &poolInfo, nil, &pool)); err != nil {
		return err
	}
	c.GraphicsCommandPool = pool
	return nil
}

// DeviceDestroy tears down the graphics command pool and logical device, in
// reverse creation order.
func (c *Context) DeviceDestroy() {
	if c.GraphicsCommandPool != vk.NullCommandPool {
		vk.DestroyCommandPool(c.Device, c.GraphicsCommandPool, nil)
	}
	if c.Device != vk.NullDevice {
		vk.DeviceWaitIdle(c.Device)
		vk.DestroyDevice(c.Device, nil)
	}
}
