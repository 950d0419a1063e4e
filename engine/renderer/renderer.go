// Package renderer is the host-facing façade spec.md §6 describes: it wires
// together the GPU context, frame scheduler, and the shader/descriptor/PSO
// caches into the small surface upper layers (ECS façade, GUI, scripting
// bridge — all external collaborators per spec.md §1) actually call.
// Grounded on the teacher's engine/application.go ApplicationCreate/Run
// lifecycle shape (Clock.Start/Update/Elapsed sequencing, event
// registration for resize), re-scoped from "the whole engine" down to
// "the GPU core" since everything else in that file belongs to
// out-of-scope collaborators.
package renderer

import (
	"errors"
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/kilnforge/ember/engine/core"
	"github.com/kilnforge/ember/engine/gpu"
	"github.com/kilnforge/ember/engine/gpu/descriptor"
	"github.com/kilnforge/ember/engine/gpu/frame"
	"github.com/kilnforge/ember/engine/gpu/pipeline"
	"github.com/kilnforge/ember/engine/gpu/shader"
	"github.com/kilnforge/ember/engine/gpu/staging"
	"github.com/kilnforge/ember/engine/gpu/vulkan"
)

// Platform is the windowing collaborator the renderer needs to stand up a
// Vulkan surface, matching engine/platform.Platform's exported surface
// without importing that package directly (engine/gpu/vulkan.Platform
// mirrors the same seam one layer down).
type Platform interface {
	GetRequiredExtensionNames() []string
	CreateSurface(instance uintptr) (uintptr, error)
	FramebufferSize() (uint32, uint32)
}

// Pipeline is the render-pipeline collaborator of spec.md §6: "Pipeline
// interface: Pipeline.startup/.shutdown/.resize/.render(scene) →
// ImageView, .resolveMaterialDomain(u32) → (RenderPass&, subpass,
// MetaMaterial), .getGlobalDescriptorSet(), .getGlobalDescriptorSetLayout()".
// It embeds gpu.MaterialPipeline so a Pipeline implementation is usable
// directly wherever Material/MaterialInstance construction asks for one.
type Pipeline interface {
	gpu.MaterialPipeline

	Startup(r *Renderer) error
	Shutdown()
	Resize(width, height uint32) error
	Render(scene interface{}) (vk.ImageView, error)
}

// StartupInfo is RendererStartupInfo from spec.md §6: "{renderAheadCount ∈
// [1,3], enableVsync: bool, useTripleBuffering: bool, quadBudget: u32,
// pipeline: Pipeline} plus a GPU-selection callback".
type StartupInfo struct {
	ApplicationName    string
	EnableValidation   bool
	RenderAheadCount   int
	EnableVsync        bool
	UseTripleBuffering bool
	QuadBudget         uint32
	Pipeline           Pipeline
	SelectGPU          vulkan.SelectGPU

	// StagingBufferSize sizes each frame-in-flight's dynamic staging ring
	// chunk (spec.md §4.7). Defaults to 4 MiB if zero.
	StagingBufferSize uint64

	// Descriptor pool sizing for the dynamic (per-frame) and static
	// (long-lived) allocators (spec.md §4.5). Defaults applied if empty/zero.
	DynamicDescriptorPoolSizes []descriptor.PoolSize
	DynamicDescriptorMaxSets   uint32
	StaticDescriptorPoolSizes  []descriptor.PoolSize
	StaticDescriptorMaxSets    uint32
}

func defaultPoolSizes() []descriptor.PoolSize {
	return []descriptor.PoolSize{
		{Type: shader.DescriptorUniformBuffer, MaxCount: 256},
		{Type: shader.DescriptorCombinedImageSampler, MaxCount: 256},
		{Type: shader.DescriptorSampledImage, MaxCount: 64},
		{Type: shader.DescriptorSampler, MaxCount: 64},
	}
}

// Renderer is the single owner of the GPU core: the device/instance/
// swapchain, the frame scheduler, the resource caches and the descriptor
// allocators. Host applications hold exactly one.
type Renderer struct {
	ctx       *vulkan.Context
	swapchain *vulkan.Swapchain
	scheduler *frame.Scheduler

	Shaders     *shader.Cache
	Descriptors *descriptor.Cache
	Pipelines   *pipeline.Cache
	Static      *descriptor.StaticAllocator
	dynamic     *descriptor.DynamicAllocator

	pipeline Pipeline
	info     StartupInfo

	clock     *core.Clock
	lastTime  float64
	deltaTime float64

	started           bool
	currentImageIndex uint32
}

// New returns an unstarted Renderer; call Startup before use.
func New() *Renderer {
	return &Renderer{}
}

// Startup brings up the instance, device, swapchain, frame scheduler and
// resource caches, then calls info.Pipeline.Startup(r) so the pipeline layer
// can build its own render passes against the live context (spec.md §6).
func (r *Renderer) Startup(platform Platform, info StartupInfo) error {
	if r.started {
		return fmt.Errorf("renderer: already started")
	}
	if info.RenderAheadCount < 1 || info.RenderAheadCount > 3 {
		return fmt.Errorf("renderer: renderAheadCount must be in [1,3], got %d", info.RenderAheadCount)
	}
	if info.Pipeline == nil {
		return fmt.Errorf("renderer: StartupInfo.Pipeline is required")
	}
	r.info = info

	ctx, err := vulkan.NewInstance(platform, vulkan.InitOptions{
		ApplicationName:  info.ApplicationName,
		EnableValidation: info.EnableValidation,
	})
	if err != nil {
		return fmt.Errorf("renderer: create instance: %w", err)
	}
	if err := ctx.DeviceCreate(info.SelectGPU); err != nil {
		ctx.DestroyInstance()
		return fmt.Errorf("renderer: create device: %w", err)
	}

	sc, err := ctx.CreateSwapchain(ctx.FramebufferWidth, ctx.FramebufferHeight, nil)
	if err != nil {
		ctx.DeviceDestroy()
		ctx.DestroyInstance()
		return fmt.Errorf("renderer: create swapchain: %w", err)
	}

	stagingSize := info.StagingBufferSize
	if stagingSize == 0 {
		stagingSize = 4 << 20
	}
	sched, err := frame.New(ctx, sc, info.RenderAheadCount, stagingSize)
	if err != nil {
		ctx.DestroySwapchain(sc)
		ctx.DeviceDestroy()
		ctx.DestroyInstance()
		return fmt.Errorf("renderer: create frame scheduler: %w", err)
	}

	r.ctx = ctx
	r.swapchain = sc
	r.scheduler = sched
	r.Shaders = shader.NewCache(ctx)
	r.Descriptors = descriptor.NewCache(ctx)
	r.Pipelines = pipeline.NewCache(ctx)

	dynSizes := info.DynamicDescriptorPoolSizes
	if len(dynSizes) == 0 {
		dynSizes = defaultPoolSizes()
	}
	dynMax := info.DynamicDescriptorMaxSets
	if dynMax == 0 {
		dynMax = 256
	}
	r.dynamic = descriptor.NewDynamicAllocator(ctx, dynSizes, dynMax, info.RenderAheadCount)
	r.scheduler.RegisterDynamicAllocator(r.dynamic)

	staticSizes := info.StaticDescriptorPoolSizes
	if len(staticSizes) == 0 {
		staticSizes = defaultPoolSizes()
	}
	staticMax := info.StaticDescriptorMaxSets
	if staticMax == 0 {
		staticMax = 256
	}
	r.Static = descriptor.NewStaticAllocator(ctx, staticSizes, staticMax)

	r.pipeline = info.Pipeline
	if err := r.pipeline.Startup(r); err != nil {
		return fmt.Errorf("renderer: pipeline startup: %w", err)
	}

	core.EventRegister(core.EventSwapchainOutOfDate, r, func(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
		if err := r.Resize(r.ctx.FramebufferWidth, r.ctx.FramebufferHeight); err != nil {
			core.LogError("renderer: resize on out-of-date swapchain: %s", err)
		}
		return true
	})

	r.clock = core.NewClock()
	r.clock.Start()
	r.clock.Update()
	r.lastTime = r.clock.Elapsed()

	r.started = true
	return nil
}

// Shutdown waits the device idle, tears down the pipeline, frame scheduler,
// descriptor allocators and caches (in dependency order, reverse of
// Startup), then the swapchain, device and instance.
func (r *Renderer) Shutdown() {
	if !r.started {
		return
	}
	vk.DeviceWaitIdle(r.ctx.Device)

	core.EventUnregister(core.EventSwapchainOutOfDate, r)

	r.pipeline.Shutdown()
	r.scheduler.Shutdown()
	r.dynamic.DestroyAll()
	r.Static.DestroyAll()
	r.Pipelines.Shutdown()
	r.Shaders.Shutdown()

	r.ctx.DestroySwapchain(r.swapchain)
	r.ctx.DeviceDestroy()
	r.ctx.DestroyInstance()

	r.started = false
}

// Tick runs one complete frame of the scheduler loop (spec.md §4.6): begin
// (wait fence, drain deletion queue, reset per-frame allocators, acquire
// image), hand off to the pipeline to record draw commands against scene,
// then end (submit, present, advance currentFrame). A reported
// out-of-date swapchain triggers Resize and skips the frame rather than
// propagating an error, matching spec.md §7's "runtime recoverable" tier.
func (r *Renderer) Tick(scene interface{}) error {
	r.clock.Update()
	currentTime := r.clock.Elapsed()
	r.deltaTime = (currentTime - r.lastTime) / 1e9
	r.lastTime = currentTime

	imageIndex, err := r.scheduler.BeginFrame()
	if err != nil {
		if errors.Is(err, core.ErrSwapchainOutOfDate) {
			return r.Resize(r.ctx.FramebufferWidth, r.ctx.FramebufferHeight)
		}
		return err
	}
	r.currentImageIndex = imageIndex

	if _, err := r.pipeline.Render(scene); err != nil {
		return fmt.Errorf("renderer: pipeline render: %w", err)
	}

	if err := r.scheduler.EndFrame(imageIndex); err != nil {
		return err
	}
	if r.scheduler.NeedsResize() {
		return r.Resize(r.ctx.FramebufferWidth, r.ctx.FramebufferHeight)
	}
	return nil
}

// Resize recreates the swapchain for the given framebuffer size (spec.md
// §6: "Renderer.resize() — swapchain recreation after presented-out-of-
// date") and notifies the pipeline so it can rebuild any size-dependent
// render targets.
func (r *Renderer) Resize(width, height uint32) error {
	vk.DeviceWaitIdle(r.ctx.Device)

	old := r.swapchain
	sc, err := r.ctx.CreateSwapchain(width, height, old.Handle)
	if err != nil {
		return fmt.Errorf("renderer: recreate swapchain: %w", err)
	}
	r.ctx.DestroySwapchain(old)
	r.swapchain = sc
	r.ctx.FramebufferWidth, r.ctx.FramebufferHeight = width, height
	r.scheduler.ClearResizeFlag(sc)

	if err := r.pipeline.Resize(width, height); err != nil {
		return fmt.Errorf("renderer: pipeline resize: %w", err)
	}
	return nil
}

// DeltaTime returns the seconds elapsed between the two most recent Tick
// calls, grounded on the teacher's application.go Clock.Start/Update/
// Elapsed sequencing — here actually driven every frame rather than left
// in the teacher's commented-out run loop. External collaborators (the
// Pipeline's scene, animation blending, scripting bridge) read this to
// advance time-dependent state.
func (r *Renderer) DeltaTime() float64 { return r.deltaTime }

// CurrentFrame returns the currently active frame-in-flight index.
func (r *Renderer) CurrentFrame() int { return r.scheduler.CurrentFrame() }

// CurrentCommandBuffer returns the command buffer being recorded this frame.
func (r *Renderer) CurrentCommandBuffer() *vulkan.CommandBuffer {
	return r.scheduler.CurrentCommandBuffer()
}

// PendingDelete enqueues fn on the current frame's deletion queue (spec.md
// §6: "Renderer.pendingDelete(fn) — enqueue a deleter on the current
// frame").
func (r *Renderer) PendingDelete(fn func()) {
	r.scheduler.PendingDelete(fn)
}

// Context exposes the underlying GPU context for collaborators (the
// pipeline layer, render-pass builder, material construction) that need to
// issue raw GPU calls.
func (r *Renderer) Context() *vulkan.Context { return r.ctx }

// Swapchain exposes the current swapchain so a Pipeline can size
// swapchain-dependent render targets and pick its per-image framebuffer.
func (r *Renderer) Swapchain() *vulkan.Swapchain { return r.swapchain }

// CurrentImageIndex returns the swapchain image index acquired by the most
// recent BeginFrame, valid for the duration of Pipeline.Render.
func (r *Renderer) CurrentImageIndex() uint32 { return r.currentImageIndex }

// DynamicAllocator exposes the current renderer's per-frame descriptor
// allocator, used by the material/batch layers to allocate object-domain
// (set 2) descriptor sets that live exactly one frame (spec.md §4.5).
func (r *Renderer) DynamicAllocator() *descriptor.DynamicAllocator { return r.dynamic }

// QuadBudget returns the configured batch-quad vertex/index budget
// (spec.md §6 StartupInfo field, consumed by engine/ui/batchquad).
func (r *Renderer) QuadBudget() uint32 { return r.info.QuadBudget }

// UploadBuffer performs a blocking host→device buffer upload (spec.md §6:
// "Renderer.uploadBuffer(buf, offset, size, bytes) — blocking upload").
func (r *Renderer) UploadBuffer(buf *vulkan.Buffer, offset uint64, data []byte) error {
	return staging.UploadBuffer(r.ctx, buf, offset, data)
}

// UploadBufferDynamic performs an in-frame upload through the current
// frame's dynamic staging ring with a barrier to accessAfter@stageAfter
// (spec.md §6: "Renderer.uploadBufferDynamic(buf, offset, size, bytes,
// stagesAccessesBefore/After)"). If the payload exceeds the fixed staging
// chunk size it falls back to a blocking upload and logs a warning, per
// spec.md §7's runtime-recoverable tier ("buffer upload too large for
// dynamic staging: fall back to blocking upload").
func (r *Renderer) UploadBufferDynamic(buf *vulkan.Buffer, offset uint64, data []byte, barrier staging.BarrierSpec) error {
	err := r.scheduler.DynamicStaging().Write(r.scheduler.CurrentCommandBuffer(), buf, offset, data, barrier)
	if errors.Is(err, core.ErrStagingBufferOverflow) {
		core.LogWarn("renderer: dynamic upload of %d bytes exceeds staging chunk size, falling back to blocking upload", len(data))
		return r.UploadBuffer(buf, offset, data)
	}
	return err
}

// UploadImage performs a blocking image upload with layout transitions
// (spec.md §6: "Renderer.uploadImage(img, layer, size, bpp, bytes)").
func (r *Renderer) UploadImage(img *vulkan.Image, layer uint32, data []byte, bytesPerPixel uint32) error {
	return staging.UploadImage(r.ctx, img, layer, data, bytesPerPixel)
}

// AllocateStaticMaterialDescriptorSet allocates a long-lived descriptor set
// from the static allocator (spec.md §6).
func (r *Renderer) AllocateStaticMaterialDescriptorSet(layout *descriptor.SetLayout) (vk.DescriptorSet, error) {
	return r.Static.Allocate(layout.Handle)
}

// FreeStaticMaterialDescriptorSet returns set to the static allocator's
// owning pool (spec.md §6).
func (r *Renderer) FreeStaticMaterialDescriptorSet(set vk.DescriptorSet) error {
	return r.Static.Free(set)
}
