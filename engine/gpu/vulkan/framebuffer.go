package vulkan

import vk "github.com/goki/vulkan"

// Framebuffer wraps a VkFramebuffer, adapted from the teacher's
// engine/renderer/vulkan/framebuffer.go VulkanFramebuffer.
type Framebuffer struct {
	Handle      vk.Framebuffer
	Attachments []vk.ImageView
	RenderPass  vk.RenderPass
}

func (c *Context) CreateFramebuffer(rp *RenderPass, attachments []vk.ImageView, width, height uint32) (*Framebuffer, error) {
	info := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      rp.Handle,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           width,
		Height:          height,
		Layers:          1,
	}
	var handle vk.Framebuffer
	if err := checkResult("vkCreateFramebuffer", vk.CreateFramebuffer(c.Device, &info, nil, &handle)); err != nil {
		return nil, err
	}
	return &Framebuffer{Handle: handle, Attachments: attachments, RenderPass: rp.Handle}, nil
}

func (c *Context) DestroyFramebuffer(fb *Framebuffer) {
	vk.DestroyFramebuffer(c.Device, fb.Handle, nil)
}
