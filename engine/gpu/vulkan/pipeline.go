package vulkan

import (
	vk "github.com/goki/vulkan"

	pipelinepkg "github.com/kilnforge/ember/engine/gpu/pipeline"
	"github.com/kilnforge/ember/engine/gpu/shader"
)

func vkCullMode(m pipelinepkg.CullMode) vk.CullModeFlagBits {
	switch m {
	case pipelinepkg.CullFront:
		return vk.CullModeFrontBit
	case pipelinepkg.CullBack:
		return vk.CullModeBackBit
	case pipelinepkg.CullFrontAndBack:
		return vk.CullModeFrontAndBack
	default:
		return vk.CullModeNone
	}
}

func vkBlendFactor(f pipelinepkg.BlendFactor) vk.BlendFactor {
	switch f {
	case pipelinepkg.BlendFactorOne:
		return vk.BlendFactorOne
	case pipelinepkg.BlendFactorSrcAlpha:
		return vk.BlendFactorSrcAlpha
	case pipelinepkg.BlendFactorOneMinusSrcAlpha:
		return vk.BlendFactorOneMinusSrcAlpha
	case pipelinepkg.BlendFactorDstAlpha:
		return vk.BlendFactorDstAlpha
	case pipelinepkg.BlendFactorOneMinusDstAlpha:
		return vk.BlendFactorOneMinusDstAlpha
	case pipelinepkg.BlendFactorSrcColor:
		return vk.BlendFactorSrcColor
	case pipelinepkg.BlendFactorOneMinusSrcColor:
		return vk.BlendFactorOneMinusSrcColor
	case pipelinepkg.BlendFactorDstColor:
		return vk.BlendFactorDstColor
	case pipelinepkg.BlendFactorOneMinusDstColor:
		return vk.BlendFactorOneMinusDstColor
	default:
		return vk.BlendFactorZero
	}
}

func vkBlendOp(op pipelinepkg.BlendOp) vk.BlendOp {
	switch op {
	case pipelinepkg.BlendOpSubtract:
		return vk.BlendOpSubtract
	case pipelinepkg.BlendOpReverseSubtract:
		return vk.BlendOpReverseSubtract
	case pipelinepkg.BlendOpMin:
		return vk.BlendOpMin
	case pipelinepkg.BlendOpMax:
		return vk.BlendOpMax
	default:
		return vk.BlendOpAdd
	}
}

func vkSampleCount(n uint32) vk.SampleCountFlagBits {
	switch n {
	case 2:
		return vk.SampleCount2Bit
	case 4:
		return vk.SampleCount4Bit
	case 8:
		return vk.SampleCount8Bit
	case 16:
		return vk.SampleCount16Bit
	case 32:
		return vk.SampleCount32Bit
	case 64:
		return vk.SampleCount64Bit
	default:
		return vk.SampleCount1Bit
	}
}

func vkAttributeFormat(a shader.AttributeType) vk.Format {
	switch a {
	case shader.AttribFloat32:
		return vk.FormatR32Sfloat
	case shader.AttribFloat32x2:
		return vk.FormatR32g32Sfloat
	case shader.AttribFloat32x3:
		return vk.FormatR32g32b32Sfloat
	case shader.AttribFloat32x4:
		return vk.FormatR32g32b32a32Sfloat
	case shader.AttribInt32:
		return vk.FormatR32Sint
	case shader.AttribUint32:
		return vk.FormatR32Uint
	default:
		return vk.FormatR32g32b32Sfloat
	}
}

// CreateGraphicsPipeline satisfies engine/gpu/pipeline.Device. Adapted from
// the teacher's engine/renderer/vulkan/pipeline.go NewGraphicsPipeline, but
// every fixed-function state the teacher hardcoded (cull mode via a switch
// on a separate argument, blend factors always SrcAlpha/OneMinusSrcAlpha,
// MSAA always SampleCount1Bit) is instead driven entirely by d.Meta, and the
// wireframe flag selects PolygonModeLine the same way the teacher's did.
func (c *Context) CreateGraphicsPipeline(d pipelinepkg.Desc) (vk.Pipeline, error) {
	var stages []vk.PipelineShaderStageCreateInfo
	if h := d.Module.StageHandle(shader.StageVertex); h != vk.NullShaderModule {
		stages = append(stages, vk.PipelineShaderStageCreateInfo{
			SType: vk.StructureTypePipelineShaderStageCreateInfo,
			Stage: vk.ShaderStageVertexBit, Module: h, PName: SafeString("main"),
		})
	}
	if h := d.Module.StageHandle(shader.StageFragment); h != vk.NullShaderModule {
		stages = append(stages, vk.PipelineShaderStageCreateInfo{
			SType: vk.StructureTypePipelineShaderStageCreateInfo,
			Stage: vk.ShaderStageFragmentBit, Module: h, PName: SafeString("main"),
		})
	}

	attrs := make([]vk.VertexInputAttributeDescription, len(d.VertexInput.Attributes))
	for i, a := range d.VertexInput.Attributes {
		attrs[i] = vk.VertexInputAttributeDescription{
			Location: a.Location, Binding: 0,
			Format: vkAttributeFormat(a.Type), Offset: offsetOf(d.VertexInput.Attributes, i),
		}
	}
	bindings := []vk.VertexInputBindingDescription{{Binding: 0, Stride: d.VertexInput.Stride, InputRate: vk.VertexInputRateVertex}}

	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attrs)),
		PVertexAttributeDescriptions:    attrs,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: vk.PrimitiveTopologyTriangleList,
	}

	viewportState := vk.PipelineViewportStateCreateInfo{
		SType: vk.StructureTypePipelineViewportStateCreateInfo, ViewportCount: 1, ScissorCount: 1,
	}

	polygonMode := vk.PolygonModeFill
	if d.Meta.Wireframe() {
		polygonMode = vk.PolygonModeLine
	}
	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType: vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: polygonMode, LineWidth: 1.0,
		CullMode: vk.CullModeFlags(vkCullMode(d.Meta.CullMode())), FrontFace: vk.FrontFaceCounterClockwise,
	}

	multisampling := vk.PipelineMultisampleStateCreateInfo{
		SType: vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vkSampleCount(d.Meta.SampleCount()),
	}

	var depthStencil *vk.PipelineDepthStencilStateCreateInfo
	if d.Meta.DepthTest() {
		depthStencil = &vk.PipelineDepthStencilStateCreateInfo{
			SType: vk.StructureTypePipelineDepthStencilStateCreateInfo,
			DepthTestEnable: boolToVk(d.Meta.DepthTest()), DepthWriteEnable: boolToVk(d.Meta.DepthWrite()),
			DepthCompareOp: vk.CompareOpLess,
		}
	}

	colorBlendAttachment := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
		BlendEnable:    boolToVk(d.Meta.BlendEnable()),
		SrcColorBlendFactor: vkBlendFactor(d.Meta.ColorSrcFactor()),
		DstColorBlendFactor: vkBlendFactor(d.Meta.ColorDstFactor()),
		ColorBlendOp:        vkBlendOp(d.Meta.ColorBlendOp()),
		SrcAlphaBlendFactor: vkBlendFactor(d.Meta.AlphaSrcFactor()),
		DstAlphaBlendFactor: vkBlendFactor(d.Meta.AlphaDstFactor()),
		AlphaBlendOp:        vkBlendOp(d.Meta.AlphaBlendOp()),
	}
	colorBlending := vk.PipelineColorBlendStateCreateInfo{
		SType: vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: 1, PAttachments: []vk.PipelineColorBlendAttachmentState{colorBlendAttachment},
	}

	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor, vk.DynamicStateLineWidth}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType: vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)), PDynamicStates: dynamicStates,
	}

	info := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PDepthStencilState:  depthStencil,
		PColorBlendState:    &colorBlending,
		PDynamicState:       &dynamicState,
		Layout:              d.PipelineLayout.Handle,
		RenderPass:          d.RenderPass,
		Subpass:             d.Subpass,
	}

	pipelines := make([]vk.Pipeline, 1)
	if err := checkResult("vkCreateGraphicsPipelines",
		vk.CreateGraphicsPipelines(c.Device, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{info}, nil, pipelines)); err != nil {
		return vk.NullPipeline, err
	}
	return pipelines[0], nil
}

func (c *Context) DestroyGraphicsPipeline(handle vk.Pipeline) {
	vk.DestroyPipeline(c.Device, handle, nil)
}

func boolToVk(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

func offsetOf(attrs []shader.Attribute, index int) uint32 {
	var off uint32
	for i := 0; i < index; i++ {
		off += attrs[i].Size
	}
	return off
}
