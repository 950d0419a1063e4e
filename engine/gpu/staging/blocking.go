package staging

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/kilnforge/ember/engine/gpu/vulkan"
)

// UploadBuffer performs a one-shot blocking upload of data into dst at
// offset: allocate a host-visible, host-coherent staging buffer sized to the
// payload, copy the bytes in, submit a one-shot command buffer on the transfer
// queue with a fence, wait, then free both the command buffer and the
// staging buffer (spec.md §4.7 "Buffer upload (blocking)").
func UploadBuffer(ctx *vulkan.Context, dst *vulkan.Buffer, offset uint64, data []byte) error {
	staged, err := ctx.CreateBuffer(uint64(len(data)), vk.BufferUsageTransferSrcBit,
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		return fmt.Errorf("staging: allocate blocking staging buffer: %w", err)
	}
	defer ctx.DestroyBuffer(staged)

	mapped, err := ctx.MapBuffer(staged)
	if err != nil {
		return fmt.Errorf("staging: map blocking staging buffer: %w", err)
	}
	copy(mapped, data)

	cb, err := ctx.AllocateCommandBuffer(ctx.GraphicsCommandPool, true)
	if err != nil {
		return fmt.Errorf("staging: allocate one-shot command buffer: %w", err)
	}
	defer ctx.FreeCommandBuffer(cb)

	if err := ctx.BeginCommandBuffer(cb); err != nil {
		return err
	}
	ctx.CopyBuffer(cb, staged, dst, uint64(len(data)), 0, offset)
	if err := ctx.EndCommandBuffer(cb); err != nil {
		return err
	}

	return ctx.SubmitAndWait(cb, ctx.TransferQueue, ctx.TransferFamily)
}

// UploadImage performs a one-shot blocking upload of a single layer's pixel
// data into img: allocate staging, copy, transition the layer to
// TransferDst, copy-buffer-to-image, transition to ShaderReadOnlyOptimal,
// submit and wait (spec.md §4.7 "image upload"). bpp is unused beyond
// validating the payload size against img's dimensions; the subresource
// copy itself is described by img's width/height.
func UploadImage(ctx *vulkan.Context, img *vulkan.Image, layer uint32, data []byte, bytesPerPixel uint32) error {
	expected := uint64(img.Width) * uint64(img.Height) * uint64(bytesPerPixel)
	if uint64(len(data)) != expected {
		return fmt.Errorf("staging: image upload payload size %d does not match %dx%d at %d bytes/pixel (want %d)",
			len(data), img.Width, img.Height, bytesPerPixel, expected)
	}

	staged, err := ctx.CreateBuffer(expected, vk.BufferUsageTransferSrcBit,
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		return fmt.Errorf("staging: allocate image staging buffer: %w", err)
	}
	defer ctx.DestroyBuffer(staged)

	mapped, err := ctx.MapBuffer(staged)
	if err != nil {
		return fmt.Errorf("staging: map image staging buffer: %w", err)
	}
	copy(mapped, data)

	cb, err := ctx.AllocateCommandBuffer(ctx.GraphicsCommandPool, true)
	if err != nil {
		return fmt.Errorf("staging: allocate one-shot command buffer: %w", err)
	}
	defer ctx.FreeCommandBuffer(cb)

	if err := ctx.BeginCommandBuffer(cb); err != nil {
		return err
	}
	ctx.TransitionLayout(cb, img, layer, vk.ImageLayoutTransferDstOptimal, vk.ImageAspectColorBit)
	ctx.CopyBufferToImage(cb, staged, img, layer)
	ctx.TransitionLayout(cb, img, layer, vk.ImageLayoutShaderReadOnlyOptimal, vk.ImageAspectColorBit)
	if err := ctx.EndCommandBuffer(cb); err != nil {
		return err
	}

	return ctx.SubmitAndWait(cb, ctx.GraphicsQueue, ctx.GraphicsFamily)
}
