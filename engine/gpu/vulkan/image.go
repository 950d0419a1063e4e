package vulkan

import vk "github.com/goki/vulkan"

// Image wraps a VkImage, its memory and default view, adapted from the
// teacher's engine/renderer/vulkan/image.go. Unlike the teacher struct, this
// one tracks the current VkImageLayout per array layer: spec.md invariant 3
// ("every image tracks its current layout per layer/mip after any transition
// or upload") requires it and the teacher's VulkanImage has no such field at
// all.
type Image struct {
	Handle      vk.Image
	Memory      vk.DeviceMemory
	View        vk.ImageView
	Width       uint32
	Height      uint32
	Format      vk.Format
	MipLevels   uint32
	ArrayLayers uint32

	layouts []vk.ImageLayout // len == ArrayLayers
}

// LayoutOf returns the tracked layout of layer, or Undefined if layer is out
// of range.
func (img *Image) LayoutOf(layer uint32) vk.ImageLayout {
	if int(layer) >= len(img.layouts) {
		return vk.ImageLayoutUndefined
	}
	return img.layouts[layer]
}

func (img *Image) setLayout(layer uint32, layout vk.ImageLayout) {
	if int(layer) < len(img.layouts) {
		img.layouts[layer] = layout
	}
}

// CreateImage allocates a 2D image with arrayLayers layers and mipLevels
// mips, binding device-local memory and creating a full-range view.
func (c *Context) CreateImage(width, height, mipLevels, arrayLayers uint32, format vk.Format, usage vk.ImageUsageFlagBits, aspect vk.ImageAspectFlagBits) (*Image, error) {
	info := vk.ImageCreateInfo{
		SType:       vk.StructureTypeImageCreateInfo,
		ImageType:   vk.ImageType2d,
		Extent:      vk.Extent3D{Width: width, Height: height, Depth: 1},
		MipLevels:   mipLevels,
		ArrayLayers: arrayLayers,
		Format:      format,
		Tiling:      vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         vk.ImageUsageFlags(usage),
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}
	var handle vk.Image
	if err := checkResult("vkCreateImage", vk.CreateImage(c.Device, &info, nil, &handle)); err != nil {
		return nil, err
	}

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(c.Device, handle, &req)
	req.Deref()
	memIndex, err := c.FindMemoryIndex(req.MemoryTypeBits, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		vk.DestroyImage(c.Device, handle, nil)
		return nil, err
	}
	allocInfo := vk.MemoryAllocateInfo{SType: vk.StructureTypeMemoryAllocateInfo, AllocationSize: req.Size, MemoryTypeIndex: memIndex}
	var memory vk.DeviceMemory
	if err := checkResult("vkAllocateMemory", vk.AllocateMemory(c.Device, &allocInfo, nil, &memory)); err != nil {
		vk.DestroyImage(c.Device, handle, nil)
		return nil, err
	}
	if err := checkResult("vkBindImageMemory", vk.BindImageMemory(c.Device, handle, memory, 0)); err != nil {
		vk.DestroyImage(c.Device, handle, nil)
		vk.FreeMemory(c.Device, memory, nil)
		return nil, err
	}

	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    handle,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(aspect),
			BaseMipLevel:   0,
			LevelCount:     mipLevels,
			BaseArrayLayer: 0,
			LayerCount:     arrayLayers,
		},
	}
	var view vk.ImageView
	if err := checkResult("vkCreateImageView", vk.CreateImageView(c.Device, &viewInfo, nil, &view)); err != nil {
		vk.DestroyImage(c.Device, handle, nil)
		vk.FreeMemory(c.Device, memory, nil)
		return nil, err
	}

	layouts := make([]vk.ImageLayout, arrayLayers)
	for i := range layouts {
		layouts[i] = vk.ImageLayoutUndefined
	}

	return &Image{
		Handle: handle, Memory: memory, View: view,
		Width: width, Height: height, Format: format,
		MipLevels: mipLevels, ArrayLayers: arrayLayers,
		layouts: layouts,
	}, nil
}

func (c *Context) DestroyImage(img *Image) {
	vk.DestroyImageView(c.Device, img.View, nil)
	vk.DestroyImage(c.Device, img.Handle, nil)
	vk.FreeMemory(c.Device, img.Memory, nil)
}

// TransitionLayout records a pipeline barrier moving layer from its
// currently-tracked layout to newLayout, then updates the tracked layout —
// the per-layer bookkeeping spec.md invariant 3 requires and the teacher
// does not implement.
func (c *Context) TransitionLayout(cb *CommandBuffer, img *Image, layer uint32, newLayout vk.ImageLayout, aspect vk.ImageAspectFlagBits) {
	oldLayout := img.LayoutOf(layer)

	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img.Handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(aspect),
			BaseMipLevel:   0,
			LevelCount:     img.MipLevels,
			BaseArrayLayer: layer,
			LayerCount:     1,
		},
	}

	var srcStage, dstStage vk.PipelineStageFlagBits
	switch {
	case oldLayout == vk.ImageLayoutUndefined && newLayout == vk.ImageLayoutTransferDstOptimal:
		barrier.SrcAccessMask = 0
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		srcStage, dstStage = vk.PipelineStageTopOfPipeBit, vk.PipelineStageTransferBit
	case oldLayout == vk.ImageLayoutTransferDstOptimal && newLayout == vk.ImageLayoutShaderReadOnlyOptimal:
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		srcStage, dstStage = vk.PipelineStageTransferBit, vk.PipelineStageFragmentShaderBit
	default:
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessMemoryWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessMemoryReadBit)
		srcStage, dstStage = vk.PipelineStageAllCommandsBit, vk.PipelineStageAllCommandsBit
	}

	vk.CmdPipelineBarrier(cb.Handle, vk.PipelineStageFlags(srcStage), vk.PipelineStageFlags(dstStage), 0,
		0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})

	img.setLayout(layer, newLayout)
}

// CopyBufferToImage records a buffer-to-image copy into the given layer
// (mip 0) of img, used by the blocking staging.UploadImage path.
func (c *Context) CopyBufferToImage(cb *CommandBuffer, src *Buffer, img *Image, layer uint32) {
	region := vk.BufferImageCopy{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: layer,
			LayerCount:     1,
		},
		ImageExtent: vk.Extent3D{Width: img.Width, Height: img.Height, Depth: 1},
	}
	vk.CmdCopyBufferToImage(cb.Handle, src.Handle, img.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}
