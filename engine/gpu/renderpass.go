package gpu

import (
	"fmt"
	"sort"
	"strings"

	vk "github.com/goki/vulkan"

	"github.com/kilnforge/ember/engine/gpu/refcache"
	"github.com/kilnforge/ember/engine/gpu/vulkan"
)

// SubpassIO describes one subpass's attachment roles by index into the
// builder's attachment list (spec.md §4.9): which attachments it reads
// (input attachments / sampled), writes (color output), clears at its
// start, and which single attachment (if any) it uses as depth/stencil.
type SubpassIO struct {
	Reads  []int
	Writes []int
	Clears []int
	Depth  *int
}

type attachmentEntry struct {
	view    vk.ImageView
	format  vk.Format
	samples vk.SampleCountFlagBits
	isDepth bool

	firstReadSubpass  int
	hasRead           bool
	firstClearSubpass int
	hasClear          bool
	lastWriteSubpass  int
	hasWrite          bool
}

// RenderPassBuilder collects attachments (deduplicated by ImageView) and
// per-subpass roles, then derives load/store ops, initial/final layouts and
// subpass dependencies (spec.md §4.9). Built render passes are cached and
// refcounted by a canonical key over attachments, roles and dependencies.
type RenderPassBuilder struct {
	attachments []*attachmentEntry
	byView      map[vk.ImageView]int
	subpasses   []SubpassIO
}

func NewRenderPassBuilder() *RenderPassBuilder {
	return &RenderPassBuilder{byView: make(map[vk.ImageView]int)}
}

// AddAttachment registers (or returns the existing index for) an attachment
// by ImageView identity.
func (b *RenderPassBuilder) AddAttachment(view vk.ImageView, format vk.Format, samples vk.SampleCountFlagBits, isDepth bool) int {
	if idx, ok := b.byView[view]; ok {
		return idx
	}
	idx := len(b.attachments)
	b.attachments = append(b.attachments, &attachmentEntry{view: view, format: format, samples: samples, isDepth: isDepth})
	b.byView[view] = idx
	return idx
}

// AddSubpass appends a subpass and records this attachment's roles for
// load/store-op and dependency inference.
func (b *RenderPassBuilder) AddSubpass(io SubpassIO) int {
	idx := len(b.subpasses)
	b.subpasses = append(b.subpasses, io)

	for _, a := range io.Clears {
		e := b.attachments[a]
		if !e.hasClear {
			e.firstClearSubpass, e.hasClear = idx, true
		}
	}
	for _, a := range io.Reads {
		e := b.attachments[a]
		if !e.hasRead {
			e.firstReadSubpass, e.hasRead = idx, true
		}
	}
	for _, a := range io.Writes {
		e := b.attachments[a]
		e.lastWriteSubpass, e.hasWrite = idx, true
	}
	if io.Depth != nil {
		e := b.attachments[*io.Depth]
		e.lastWriteSubpass, e.hasWrite = idx, true
	}
	return idx
}

func (b *RenderPassBuilder) loadOp(e *attachmentEntry) vk.AttachmentLoadOp {
	switch {
	case e.hasClear && (!e.hasRead || e.firstClearSubpass <= e.firstReadSubpass):
		return vk.AttachmentLoadOpClear
	case e.hasRead:
		return vk.AttachmentLoadOpLoad
	default:
		return vk.AttachmentLoadOpDontCare
	}
}

func (b *RenderPassBuilder) storeOp(e *attachmentEntry) vk.AttachmentStoreOp {
	if e.hasWrite {
		return vk.AttachmentStoreOpStore
	}
	return vk.AttachmentStoreOpDontCare
}

func (b *RenderPassBuilder) layouts(e *attachmentEntry, isPresentSource bool) (initial, final vk.ImageLayout) {
	initial = vk.ImageLayoutUndefined
	if e.isDepth {
		final = vk.ImageLayoutDepthStencilAttachmentOptimal
		return
	}
	switch {
	case isPresentSource:
		final = vk.ImageLayoutPresentSrc
	case e.hasRead && e.firstReadSubpass > e.lastWriteSubpass:
		final = vk.ImageLayoutShaderReadOnlyOptimal
	default:
		final = vk.ImageLayoutColorAttachmentOptimal
	}
	return
}

// Key returns this builder's canonical cache key, stable across builders
// constructed with the same attachments and subpass roles in the same
// order. Callers that rebuild a render pass (e.g. on swapchain resize)
// keep the builder around so they can call Key again to release the
// previous render pass from the cache.
func (b *RenderPassBuilder) Key() string {
	return b.canonicalKey()
}

func (b *RenderPassBuilder) canonicalKey() string {
	var sb strings.Builder
	for i, e := range b.attachments {
		fmt.Fprintf(&sb, "a%d:%v:%d:%d;", i, e.view, e.format, boolInt(e.isDepth))
	}
	for i, sp := range b.subpasses {
		reads := append([]int(nil), sp.Reads...)
		writes := append([]int(nil), sp.Writes...)
		clears := append([]int(nil), sp.Clears...)
		sort.Ints(reads)
		sort.Ints(writes)
		sort.Ints(clears)
		depth := -1
		if sp.Depth != nil {
			depth = *sp.Depth
		}
		fmt.Fprintf(&sb, "s%d:r%v:w%v:c%v:d%d;", i, reads, writes, clears, depth)
	}
	return sb.String()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (b *RenderPassBuilder) dependencies(presentAttachment int) []vk.SubpassDependency {
	var deps []vk.SubpassDependency
	for i := 1; i < len(b.subpasses); i++ {
		prev, cur := b.subpasses[i-1], b.subpasses[i]
		writesBefore := make(map[int]bool, len(prev.Writes))
		for _, a := range prev.Writes {
			writesBefore[a] = true
		}
		readsAfter := false
		for _, a := range cur.Reads {
			if writesBefore[a] {
				readsAfter = true
			}
		}
		if readsAfter {
			deps = append(deps, vk.SubpassDependency{
				SrcSubpass:      uint32(i - 1),
				DstSubpass:      uint32(i),
				SrcStageMask:    vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
				DstStageMask:    vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
				SrcAccessMask:   vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
				DstAccessMask:   vk.AccessFlags(vk.AccessShaderReadBit),
				DependencyFlags: vk.DependencyFlags(vk.DependencyByRegionBit),
			})
		}
	}
	deps = append(deps, vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessColorAttachmentReadBit),
	})
	return deps
}

// Build derives ops/layouts/dependencies and returns the cached, refcounted
// RenderPass for this exact structural configuration (presentAttachment
// selects which attachment index, if any, is the swapchain image needing a
// PresentSrc final layout; pass -1 if none).
func (b *RenderPassBuilder) Build(ctx *vulkan.Context, cache *RenderPassCache, presentAttachment int) (*vulkan.RenderPass, error) {
	key := b.canonicalKey()
	rp, _, err := cache.cache.GetOrCreate(key, func() (*vulkan.RenderPass, error) {
		attachments := make([]vulkan.AttachmentDesc, len(b.attachments))
		for i, e := range b.attachments {
			initial, final := b.layouts(e, i == presentAttachment)
			attachments[i] = vulkan.AttachmentDesc{
				Format: e.format, Samples: e.samples,
				LoadOp: b.loadOp(e), StoreOp: b.storeOp(e),
				InitialLayout: initial, FinalLayout: final,
				IsDepth: e.isDepth,
			}
		}
		subpasses := make([]vulkan.SubpassDesc, len(b.subpasses))
		for i, sp := range b.subpasses {
			color := make([]uint32, len(sp.Writes))
			for j, a := range sp.Writes {
				color[j] = uint32(a)
			}
			sd := vulkan.SubpassDesc{ColorAttachments: color}
			if sp.Depth != nil {
				d := uint32(*sp.Depth)
				sd.DepthAttachment = &d
			}
			subpasses[i] = sd
		}
		return ctx.CreateRenderPass(attachments, subpasses, b.dependencies(presentAttachment))
	})
	return rp, err
}

// RenderPassCache deduplicates and refcounts built render passes by
// canonical key, the cache half of the builder described in spec.md §4.9.
type RenderPassCache struct {
	cache *refcache.Cache[string, *vulkan.RenderPass]
}

func NewRenderPassCache() *RenderPassCache {
	return &RenderPassCache{cache: refcache.New[string, *vulkan.RenderPass]()}
}

// Release decrements key's refcount, destroying the render pass if it
// reaches zero.
func (c *RenderPassCache) Release(key string, ctx *vulkan.Context) {
	rp, zero, ok := c.cache.Release(key)
	if ok && zero {
		ctx.DestroyRenderPass(rp)
	}
}
