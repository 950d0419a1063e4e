// Package frame implements the frame scheduler (spec.md §4.6): an array of
// per-frame-in-flight resources, the 8-step begin/end-frame procedure, and
// the deletion queue that defers GPU object destruction until the frame
// slot's fence has been observed signaled again. Grounded on the teacher's
// engine/renderer/vulkan/backend.go BeginFrame/EndFrame, generalized from
// its swapchain-specific inline logic into a reusable scheduler that the
// engine/renderer façade drives.
package frame

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/kilnforge/ember/engine/core"
	"github.com/kilnforge/ember/engine/gpu/descriptor"
	"github.com/kilnforge/ember/engine/gpu/staging"
	"github.com/kilnforge/ember/engine/gpu/vulkan"
)

// Resource is one frame-in-flight's private state (spec.md §3:
// "FrameResource: (CommandBuffer, image-available Semaphore,
// render-finished Semaphore, in-flight Fence, DynamicStagingBuffer,
// deletion Queue)"). Named Resource rather than FrameResource to avoid
// stuttering with the package name (SPEC_FULL.md §4).
type Resource struct {
	CommandBuffer  *vulkan.CommandBuffer
	ImageAvailable vk.Semaphore
	RenderFinished vk.Semaphore
	InFlightFence  *vulkan.Fence
	DynamicStaging *staging.DynamicBuffer

	deletionQueue []func()
}

// PendingDelete enqueues fn to run once this frame slot's fence has
// next been observed signaled (spec.md invariant 2).
func (r *Resource) PendingDelete(fn func()) {
	r.deletionQueue = append(r.deletionQueue, fn)
}

func (r *Resource) drain() {
	for _, fn := range r.deletionQueue {
		fn()
	}
	r.deletionQueue = r.deletionQueue[:0]
}

// Scheduler owns the renderAhead-length Resource array and drives the
// per-tick acquire/submit/present sequence.
type Scheduler struct {
	ctx         *vulkan.Context
	frames      []Resource
	renderAhead int
	current     int

	swapchain          *vulkan.Swapchain
	imagesInFlight      []*vulkan.Fence // one per swapchain image, borrowed from frames[*]
	dynamicAllocators  []*descriptor.DynamicAllocator

	needsResize bool
	resizeWidth, resizeHeight uint32
}

// New builds the frame-in-flight array: command buffers from the graphics
// command pool, per-frame semaphores, fences created pre-signaled (so the
// first wait on each slot returns immediately, matching the teacher's
// Initialize), and one dynamic staging buffer per slot.
func New(ctx *vulkan.Context, sc *vulkan.Swapchain, renderAhead int, stagingBufferSize uint64) (*Scheduler, error) {
	if renderAhead < 1 || renderAhead > 3 {
		return nil, fmt.Errorf("frame: renderAhead must be in [1,3], got %d", renderAhead)
	}

	s := &Scheduler{ctx: ctx, swapchain: sc, renderAhead: renderAhead}
	s.frames = make([]Resource, renderAhead)
	s.imagesInFlight = make([]*vulkan.Fence, len(sc.Images))

	for i := range s.frames {
		cb, err := ctx.AllocateCommandBuffer(ctx.GraphicsCommandPool, true)
		if err != nil {
			return nil, fmt.Errorf("frame: allocate command buffer %d: %w", i, err)
		}
		imageAvailable, err := ctx.CreateSemaphore()
		if err != nil {
			return nil, fmt.Errorf("frame: create image-available semaphore %d: %w", i, err)
		}
		renderFinished, err := ctx.CreateSemaphore()
		if err != nil {
			return nil, fmt.Errorf("frame: create render-finished semaphore %d: %w", i, err)
		}
		fence, err := ctx.CreateFence(true)
		if err != nil {
			return nil, fmt.Errorf("frame: create in-flight fence %d: %w", i, err)
		}
		dynStaging, err := staging.NewDynamicBuffer(ctx, stagingBufferSize)
		if err != nil {
			return nil, fmt.Errorf("frame: create dynamic staging buffer %d: %w", i, err)
		}

		s.frames[i] = Resource{
			CommandBuffer: cb, ImageAvailable: imageAvailable,
			RenderFinished: renderFinished, InFlightFence: fence,
			DynamicStaging: dynStaging,
		}
	}
	return s, nil
}

// RegisterDynamicAllocator adds a per-material-shader dynamic descriptor
// allocator to the set reset every frame (step 2 of §4.6).
func (s *Scheduler) RegisterDynamicAllocator(a *descriptor.DynamicAllocator) {
	s.dynamicAllocators = append(s.dynamicAllocators, a)
}

// CurrentFrame returns the currently active frame-in-flight index.
func (s *Scheduler) CurrentFrame() int { return s.current }

// CurrentCommandBuffer returns the command buffer being recorded this frame.
func (s *Scheduler) CurrentCommandBuffer() *vulkan.CommandBuffer {
	return s.frames[s.current].CommandBuffer
}

// PendingDelete enqueues fn on the current frame's deletion queue.
func (s *Scheduler) PendingDelete(fn func()) {
	s.frames[s.current].PendingDelete(fn)
}

// DynamicStaging returns the current frame's dynamic staging buffer.
func (s *Scheduler) DynamicStaging() *staging.DynamicBuffer {
	return s.frames[s.current].DynamicStaging
}

// BeginFrame executes steps 1-4 of §4.6: wait the in-flight fence, drain the
// deletion queue, reset dynamic allocators and the staging buffer, reset and
// begin the command buffer, then acquire the next swapchain image. Returns
// the acquired image index.
func (s *Scheduler) BeginFrame() (uint32, error) {
	res := &s.frames[s.current]

	if _, err := s.ctx.FenceWait(res.InFlightFence, ^uint64(0)); err != nil {
		return 0, fmt.Errorf("frame: wait in-flight fence: %w", err)
	}

	res.drain()
	res.DynamicStaging.Reset()
	for _, alloc := range s.dynamicAllocators {
		if err := alloc.Reset(s.current); err != nil {
			return 0, fmt.Errorf("frame: reset dynamic descriptor allocator: %w", err)
		}
	}

	if err := s.ctx.ResetCommandBuffer(res.CommandBuffer); err != nil {
		return 0, fmt.Errorf("frame: reset command buffer: %w", err)
	}
	if err := s.ctx.BeginCommandBuffer(res.CommandBuffer); err != nil {
		return 0, fmt.Errorf("frame: begin command buffer: %w", err)
	}

	imageIndex, result := s.ctx.AcquireNextImage(s.swapchain, ^uint64(0), res.ImageAvailable, vk.NullFence)
	if result == vk.ErrorOutOfDate {
		s.needsResize = true
		return 0, core.ErrSwapchainOutOfDate
	}
	if !vulkan.IsSuccess(result) {
		return 0, fmt.Errorf("frame: acquire next image: %s", vulkan.ResultString(result, true))
	}

	// If a previous frame is still using this swapchain image, wait on it
	// before reusing (teacher's backend.go ImagesInFlight discipline).
	if inFlight := s.imagesInFlight[imageIndex]; inFlight != nil && inFlight != res.InFlightFence {
		if _, err := s.ctx.FenceWait(inFlight, ^uint64(0)); err != nil {
			return 0, fmt.Errorf("frame: wait images-in-flight fence: %w", err)
		}
	}
	s.imagesInFlight[imageIndex] = res.InFlightFence

	return imageIndex, nil
}

// EndFrame executes steps 6-8 of §4.6: end and submit the command buffer
// signaling renderFinished and the in-flight fence, present waiting on
// renderFinished, then advance currentFrame.
func (s *Scheduler) EndFrame(imageIndex uint32) error {
	res := &s.frames[s.current]

	if err := s.ctx.EndCommandBuffer(res.CommandBuffer); err != nil {
		return fmt.Errorf("frame: end command buffer: %w", err)
	}

	if err := s.ctx.FenceReset(res.InFlightFence); err != nil {
		return fmt.Errorf("frame: reset in-flight fence: %w", err)
	}

	waitStages := []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}
	submit := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{res.ImageAvailable},
		PWaitDstStageMask:    waitStages,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{res.CommandBuffer.Handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{res.RenderFinished},
	}

	err := s.ctx.Locks.SafeQueueCall(s.ctx.GraphicsFamily, func() error {
		result := vk.QueueSubmit(s.ctx.GraphicsQueue, 1, []vk.SubmitInfo{submit}, res.InFlightFence.Handle)
		if !vulkan.IsSuccess(result) {
			return fmt.Errorf("frame: submit: %s", vulkan.ResultString(result, true))
		}
		res.InFlightFence.Signaled = false
		return nil
	})
	if err != nil {
		return err
	}

	result := s.ctx.Present(s.swapchain, imageIndex, res.RenderFinished)
	switch result {
	case vk.ErrorOutOfDate, vk.Suboptimal:
		s.needsResize = true
	default:
		if !vulkan.IsSuccess(result) {
			return fmt.Errorf("frame: present: %s", vulkan.ResultString(result, true))
		}
	}

	s.current = (s.current + 1) % s.renderAhead
	return nil
}

// NeedsResize reports whether the last BeginFrame/EndFrame observed an
// out-of-date or suboptimal swapchain.
func (s *Scheduler) NeedsResize() bool { return s.needsResize }

// ClearResizeFlag resets NeedsResize after the caller has recreated the
// swapchain (engine/renderer.Renderer.resize).
func (s *Scheduler) ClearResizeFlag(newSwapchain *vulkan.Swapchain) {
	s.swapchain = newSwapchain
	s.imagesInFlight = make([]*vulkan.Fence, len(newSwapchain.Images))
	s.needsResize = false
}

// Shutdown waits for the device to go idle, drains every frame's deletion
// queue one last time, and destroys the per-frame synchronization objects
// and staging buffers.
func (s *Scheduler) Shutdown() {
	vk.DeviceWaitIdle(s.ctx.Device)
	for i := range s.frames {
		res := &s.frames[i]
		res.drain()
		s.ctx.DestroyFence(res.InFlightFence)
		s.ctx.DestroySemaphore(res.ImageAvailable)
		s.ctx.DestroySemaphore(res.RenderFinished)
		res.DynamicStaging.Destroy()
		s.ctx.FreeCommandBuffer(res.CommandBuffer)
	}
}
