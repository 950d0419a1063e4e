package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/kilnforge/ember/engine/core"
)

// Swapchain wraps a VkSwapchainKHR and its images/views, adapted from the
// teacher's engine/renderer/vulkan/swapchain.go.
type Swapchain struct {
	Handle      vk.Swapchain
	Format      vk.Format
	Extent      vk.Extent2D
	Images      []vk.Image
	ImageViews  []vk.ImageView
	MaxFramesInFlight uint32
}

// CreateSwapchain (re)creates the swapchain for the current surface and
// framebuffer size. oldSwapchain, if non-null, is passed to the create info
// and destroyed by the caller afterward.
func (c *Context) CreateSwapchain(width, height uint32, oldSwapchain vk.Swapchain) (*Swapchain, error) {
	var caps vk.SurfaceCapabilities
	if err := checkResult("vkGetPhysicalDeviceSurfaceCapabilitiesKHR",
		vk.GetPhysicalDeviceSurfaceCapabilities(c.PhysicalDevice, c.Surface, &caps)); err != nil {
		return nil, err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()

	extent := vk.Extent2D{Width: width, Height: height}
	if caps.CurrentExtent.Width != 0xFFFFFFFF {
		extent = caps.CurrentExtent
	}

	var formatCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(c.PhysicalDevice, c.Surface, &formatCount, nil)
	formats := make([]vk.SurfaceFormat, formatCount)
	vk.GetPhysicalDeviceSurfaceFormats(c.PhysicalDevice, c.Surface, &formatCount, formats)
	chosen := formats[0]
	for _, f := range formats {
		f.Deref()
		if f.Format == vk.FormatB8g8r8a8Unorm && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			chosen = f
			break
		}
	}
	chosen.Deref()

	imageCount := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}

	info := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          c.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      chosen.Format,
		ImageColorSpace:  chosen.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      vk.PresentModeFifo,
		Clipped:          vk.True,
		OldSwapchain:     oldSwapchain,
	}
	if c.GraphicsFamily != c.PresentFamily {
		info.ImageSharingMode = vk.SharingModeConcurrent
		info.QueueFamilyIndexCount = 2
		info.PQueueFamilyIndices = []uint32{c.GraphicsFamily, c.PresentFamily}
	} else {
		info.ImageSharingMode = vk.SharingModeExclusive
	}

	var handle vk.Swapchain
	if err := checkResult("vkCreateSwapchainKHR", vk.CreateSwapchain(c.Device, &info, nil, &handle)); err != nil {
		return nil, err
	}

	var count uint32
	vk.GetSwapchainImages(c.Device, handle, &count, nil)
	images := make([]vk.Image, count)
	vk.GetSwapchainImages(c.Device, handle, &count, images)

	views := make([]vk.ImageView, count)
	for i, img := range images {
		viewInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    img,
			ViewType: vk.ImageViewType2d,
			Format:   chosen.Format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}
		if err := checkResult("vkCreateImageView", vk.CreateImageView(c.Device, &viewInfo, nil, &views[i])); err != nil {
			return nil, err
		}
	}

	return &Swapchain{
		Handle: handle, Format: chosen.Format, Extent: extent,
		Images: images, ImageViews: views,
	}, nil
}

func (c *Context) DestroySwapchain(sc *Swapchain) {
	for _, v := range sc.ImageViews {
		vk.DestroyImageView(c.Device, v, nil)
	}
	vk.DestroySwapchain(c.Device, sc.Handle, nil)
}

// AcquireNextImage acquires the next presentable image index, signaling
// imageAvailable on completion. Fixes a defect in the teacher's
// SwapchainAcquireNextImageIndex, which declared `var outImageIndex *uint32`
// (nil) and passed it straight to vkAcquireNextImageKHR before dereferencing
// it — a guaranteed nil-pointer panic. Here a real uint32 is allocated and
// its address passed instead.
func (c *Context) AcquireNextImage(sc *Swapchain, timeoutNanos uint64, imageAvailable vk.Semaphore, fence vk.Fence) (uint32, vk.Result) {
	var imageIndex uint32
	result := vk.AcquireNextImage(c.Device, sc.Handle, timeoutNanos, imageAvailable, fence, &imageIndex)
	if result != vk.Success && result != vk.Suboptimal {
		core.LogWarn("vulkan: vkAcquireNextImageKHR: %s", ResultString(result, true))
	}
	return imageIndex, result
}

// Present presents imageIndex on the present queue, waiting on
// renderComplete.
func (c *Context) Present(sc *Swapchain, imageIndex uint32, renderComplete vk.Semaphore) vk.Result {
	info := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{renderComplete},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.Handle},
		PImageIndices:      []uint32{imageIndex},
	}
	var result vk.Result
	c.Locks.SafeQueueCall(c.PresentFamily, func() error {
		result = vk.QueuePresent(c.PresentQueue, &info)
		return nil
	})
	return result
}
