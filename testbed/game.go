// Package testbed is a minimal host application exercising
// engine/renderer.Renderer end to end, the same role the teacher's
// testbed package plays for its own engine: a render pipeline that clears
// the swapchain image to a solid color every frame. It owns no scene
// graph or ECS — those are out of scope for this engine's GPU core — so
// Render's scene argument is accepted and ignored.
package testbed

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/kilnforge/ember/engine/core"
	"github.com/kilnforge/ember/engine/gpu"
	"github.com/kilnforge/ember/engine/gpu/descriptor"
	"github.com/kilnforge/ember/engine/gpu/pipeline"
	"github.com/kilnforge/ember/engine/gpu/vulkan"
	"github.com/kilnforge/ember/engine/renderer"
)

// ClearPipeline is a Pipeline implementation (engine/renderer.Pipeline)
// with a single render pass and subpass: clear the acquired swapchain
// image and present it. It owns no material domains of its own, so
// ResolveMaterialDomain always answers with its one subpass.
type ClearPipeline struct {
	r *renderer.Renderer

	renderPassCache *gpu.RenderPassCache
	renderPassKey   string
	renderPass      *vulkan.RenderPass
	framebuffers    []*vulkan.Framebuffer

	globalLayout *descriptor.SetLayout
	globalSet    vk.DescriptorSet
}

// NewClearPipeline returns an unstarted ClearPipeline.
func NewClearPipeline() *ClearPipeline {
	return &ClearPipeline{}
}

// Startup builds the render pass against the live swapchain's color format
// and allocates one framebuffer per swapchain image (engine/renderer.Pipeline).
func (p *ClearPipeline) Startup(r *renderer.Renderer) error {
	p.r = r
	p.renderPassCache = gpu.NewRenderPassCache()

	layout, err := r.Descriptors.GetSetLayout(nil)
	if err != nil {
		return fmt.Errorf("testbed: global set layout: %w", err)
	}
	p.globalLayout = layout
	set, err := r.AllocateStaticMaterialDescriptorSet(layout)
	if err != nil {
		return fmt.Errorf("testbed: allocate global set: %w", err)
	}
	p.globalSet = set

	if err := p.buildSwapchainTargets(); err != nil {
		return err
	}

	core.LogInfo("testbed: clear pipeline ready")
	return nil
}

func (p *ClearPipeline) buildSwapchainTargets() error {
	ctx := p.r.Context()
	sc := p.r.Swapchain()

	builder := gpu.NewRenderPassBuilder()
	colorAttachment := builder.AddAttachment(sc.ImageViews[0], sc.Format, vk.SampleCount1Bit, false)
	builder.AddSubpass(gpu.SubpassIO{
		Writes: []int{colorAttachment},
		Clears: []int{colorAttachment},
	})

	rp, err := builder.Build(ctx, p.renderPassCache, colorAttachment)
	if err != nil {
		return fmt.Errorf("testbed: build render pass: %w", err)
	}
	p.renderPassKey = builder.Key()
	p.renderPass = rp

	fbs := make([]*vulkan.Framebuffer, len(sc.ImageViews))
	for i, view := range sc.ImageViews {
		fb, err := ctx.CreateFramebuffer(rp, []vk.ImageView{view}, sc.Extent.Width, sc.Extent.Height)
		if err != nil {
			return fmt.Errorf("testbed: framebuffer %d: %w", i, err)
		}
		fbs[i] = fb
	}
	p.framebuffers = fbs
	return nil
}

func (p *ClearPipeline) destroySwapchainTargets() {
	ctx := p.r.Context()
	for _, fb := range p.framebuffers {
		ctx.DestroyFramebuffer(fb)
	}
	p.framebuffers = nil
	if p.renderPass != nil {
		p.renderPassCache.Release(p.renderPassKey, ctx)
		p.renderPass = nil
	}
}

// Resize tears down and rebuilds the render pass/framebuffers for the new
// swapchain extent (engine/renderer.Pipeline).
func (p *ClearPipeline) Resize(width, height uint32) error {
	p.destroySwapchainTargets()
	return p.buildSwapchainTargets()
}

// Render records a begin/clear/end render pass against the currently
// acquired swapchain image and returns its view (engine/renderer.Pipeline).
// scene is unused: this pipeline has no scene graph of its own.
func (p *ClearPipeline) Render(scene interface{}) (vk.ImageView, error) {
	ctx := p.r.Context()
	sc := p.r.Swapchain()
	cb := p.r.CurrentCommandBuffer()
	imageIndex := p.r.CurrentImageIndex()

	fb := p.framebuffers[imageIndex]
	ctx.BeginRenderPass(cb, p.renderPass, fb.Handle, 0, 0, int32(sc.Extent.Width), int32(sc.Extent.Height))
	ctx.EndRenderPass(cb)

	return sc.ImageViews[imageIndex], nil
}

// ResolveMaterialDomain always answers with this pipeline's single render
// pass, subpass 0 and a default, opaque MetaMaterial (gpu.MaterialPipeline).
func (p *ClearPipeline) ResolveMaterialDomain(domain uint32) (*vulkan.RenderPass, uint32, pipeline.MetaMaterial) {
	return p.renderPass, 0, pipeline.Pack(pipeline.MetaMaterialDesc{
		CullMode:   pipeline.CullBack,
		DepthTest:  true,
		DepthWrite: true,
		Samples:    1,
	})
}

// GlobalDescriptorSet returns the (binding-less) global descriptor set
// (gpu.MaterialPipeline).
func (p *ClearPipeline) GlobalDescriptorSet() vk.DescriptorSet { return p.globalSet }

// GlobalDescriptorSetLayout returns the global descriptor set layout
// (gpu.MaterialPipeline).
func (p *ClearPipeline) GlobalDescriptorSetLayout() *descriptor.SetLayout { return p.globalLayout }

// Shutdown releases the render pass, framebuffers and global descriptor
// set (engine/renderer.Pipeline).
func (p *ClearPipeline) Shutdown() {
	p.destroySwapchainTargets()
	p.r.FreeStaticMaterialDescriptorSet(p.globalSet)
}
