package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/kilnforge/ember/engine/gpu/descriptor"
	"github.com/kilnforge/ember/engine/gpu/shader"
)

func vkDescriptorType(kind shader.DescriptorKind) vk.DescriptorType {
	switch kind {
	case shader.DescriptorSampler:
		return vk.DescriptorTypeSampler
	case shader.DescriptorCombinedImageSampler:
		return vk.DescriptorTypeCombinedImageSampler
	case shader.DescriptorSampledImage:
		return vk.DescriptorTypeSampledImage
	case shader.DescriptorUniformBuffer:
		return vk.DescriptorTypeUniformBuffer
	default:
		return vk.DescriptorTypeUniformBuffer
	}
}

func vkStageFlags(mask shader.StageMask) vk.ShaderStageFlagBits {
	var flags vk.ShaderStageFlagBits
	if mask&shader.StageMaskVertex != 0 {
		flags |= vk.ShaderStageVertexBit
	}
	if mask&shader.StageMaskFragment != 0 {
		flags |= vk.ShaderStageFragmentBit
	}
	if mask&shader.StageMaskGeometry != 0 {
		flags |= vk.ShaderStageGeometryBit
	}
	return flags
}

// CreateDescriptorSetLayout satisfies engine/gpu/descriptor.Device.
func (c *Context) CreateDescriptorSetLayout(bindings []shader.Binding) (vk.DescriptorSetLayout, error) {
	vkBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		count := b.ArraySize
		if count == 0 {
			count = 1
		}
		vkBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  vkDescriptorType(b.Kind),
			DescriptorCount: count,
			StageFlags:      vk.ShaderStageFlags(vkStageFlags(b.Stages)),
		}
	}
	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(vkBindings)),
		PBindings:    vkBindings,
	}
	var handle vk.DescriptorSetLayout
	if err := checkResult("vkCreateDescriptorSetLayout", vk.CreateDescriptorSetLayout(c.Device, &info, nil, &handle)); err != nil {
		return vk.NullDescriptorSetLayout, err
	}
	return handle, nil
}

func (c *Context) DestroyDescriptorSetLayout(handle vk.DescriptorSetLayout) {
	vk.DestroyDescriptorSetLayout(c.Device, handle, nil)
}

// CreatePipelineLayout satisfies engine/gpu/descriptor.Device.
func (c *Context) CreatePipelineLayout(setLayouts []vk.DescriptorSetLayout, pushConstantSize uint64, pushConstantMask shader.StageMask) (vk.PipelineLayout, error) {
	info := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(setLayouts)),
		PSetLayouts:    setLayouts,
	}
	var ranges []vk.PushConstantRange
	if pushConstantSize > 0 {
		ranges = []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vkStageFlags(pushConstantMask)),
			Offset:     0,
			Size:       uint32(pushConstantSize),
		}}
		info.PushConstantRangeCount = 1
		info.PPushConstantRanges = ranges
	}
	var handle vk.PipelineLayout
	if err := checkResult("vkCreatePipelineLayout", vk.CreatePipelineLayout(c.Device, &info, nil, &handle)); err != nil {
		return vk.NullPipelineLayout, err
	}
	return handle, nil
}

func (c *Context) DestroyPipelineLayout(handle vk.PipelineLayout) {
	vk.DestroyPipelineLayout(c.Device, handle, nil)
}

// CreateDescriptorPool satisfies engine/gpu/descriptor.PoolDevice.
func (c *Context) CreateDescriptorPool(sizes []descriptor.PoolSize, maxSets uint32, allowIndividualFree bool) (vk.DescriptorPool, error) {
	vkSizes := make([]vk.DescriptorPoolSize, len(sizes))
	for i, s := range sizes {
		vkSizes[i] = vk.DescriptorPoolSize{Type: vkDescriptorType(s.Type), DescriptorCount: s.MaxCount}
	}
	flags := vk.DescriptorPoolCreateFlags(0)
	if allowIndividualFree {
		flags = vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit)
	}
	info := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         flags,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(vkSizes)),
		PPoolSizes:    vkSizes,
	}
	var handle vk.DescriptorPool
	if err := checkResult("vkCreateDescriptorPool", vk.CreateDescriptorPool(c.Device, &info, nil, &handle)); err != nil {
		return vk.NullDescriptorPool, err
	}
	return handle, nil
}

func (c *Context) DestroyDescriptorPool(handle vk.DescriptorPool) {
	vk.DestroyDescriptorPool(c.Device, handle, nil)
}

func (c *Context) ResetDescriptorPool(handle vk.DescriptorPool) error {
	return checkResult("vkResetDescriptorPool", vk.ResetDescriptorPool(c.Device, handle, 0))
}

// AllocateDescriptorSet satisfies engine/gpu/descriptor.PoolDevice. Pool
// exhaustion and fragmentation both surface as a non-success VkResult, which
// the caller (engine/gpu/descriptor's allocators) interprets as "try the
// next pool or grow."
func (c *Context) AllocateDescriptorSet(pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	info := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}
	sets := make([]vk.DescriptorSet, 1)
	if err := checkResult("vkAllocateDescriptorSets", vk.AllocateDescriptorSets(c.Device, &info, sets)); err != nil {
		return vk.NullDescriptorSet, err
	}
	return sets[0], nil
}

func (c *Context) FreeDescriptorSet(pool vk.DescriptorPool, set vk.DescriptorSet) error {
	return checkResult("vkFreeDescriptorSets", vk.FreeDescriptorSets(c.Device, pool, 1, []vk.DescriptorSet{set}))
}
