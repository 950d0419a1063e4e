package vulkan

import vk "github.com/goki/vulkan"

// CreateShaderModule satisfies engine/gpu/shader.Device.
func (c *Context) CreateShaderModule(words []uint32) (vk.ShaderModule, error) {
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(words) * 4),
		PCode:    words,
	}
	var handle vk.ShaderModule
	if err := checkResult("vkCreateShaderModule", vk.CreateShaderModule(c.Device, &info, nil, &handle)); err != nil {
		return vk.NullShaderModule, err
	}
	return handle, nil
}

// DestroyShaderModule satisfies engine/gpu/shader.Device.
func (c *Context) DestroyShaderModule(handle vk.ShaderModule) {
	vk.DestroyShaderModule(c.Device, handle, nil)
}
