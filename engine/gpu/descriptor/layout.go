// Package descriptor implements the descriptor-set-layout and
// pipeline-layout caches (spec.md §4.3) and the dynamic/static
// descriptor-set allocators (spec.md §4.5). Grounded on the teacher's
// engine/renderer/vulkan/descriptor.go binding-table shape, generalized
// from its fixed VULKAN_SHADER_MAX_BINDINGS array into the reflection-
// driven, arbitrarily-shaped layouts this engine derives per shader.
package descriptor

import (
	"fmt"
	"sort"
	"strings"

	vk "github.com/goki/vulkan"

	"github.com/kilnforge/ember/engine/gpu/refcache"
	"github.com/kilnforge/ember/engine/gpu/shader"
)

// SetLayout is one refcounted descriptor-set-layout, keyed by its canonical
// binding-list string (spec.md §4.3).
type SetLayout struct {
	Key      string
	Handle   vk.DescriptorSetLayout
	Bindings []shader.Binding
}

// PipelineLayout is the ordered tuple of per-set layouts plus the
// push-constant stage mask (spec.md §3 data model: "Pipeline layout").
type PipelineLayout struct {
	Key              string
	Handle           vk.PipelineLayout
	SetLayouts       []*SetLayout // index == set index
	PushConstantSize uint64
	PushConstantMask shader.StageMask
}

// Device is the slice of the GPU device wrapper this package calls into.
type Device interface {
	CreateDescriptorSetLayout(bindings []shader.Binding) (vk.DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(vk.DescriptorSetLayout)
	CreatePipelineLayout(setLayouts []vk.DescriptorSetLayout, pushConstantSize uint64, pushConstantMask shader.StageMask) (vk.PipelineLayout, error)
	DestroyPipelineLayout(vk.PipelineLayout)
}

// Cache deduplicates set layouts and pipeline layouts by canonical
// structural key (spec.md §4.3 invariant: "two requests that differ only
// in binding order produce the same handle").
type Cache struct {
	device    Device
	sets      *refcache.Cache[string, *SetLayout]
	pipelines *refcache.Cache[string, *PipelineLayout]
}

func NewCache(device Device) *Cache {
	return &Cache{
		device:    device,
		sets:      refcache.New[string, *SetLayout](),
		pipelines: refcache.New[string, *PipelineLayout](),
	}
}

// letterFor returns the canonical grammar letter for a descriptor kind:
// s/t/i/u for Sampler/CombinedImageSampler/SampledImage/UniformBuffer.
func letterFor(k shader.DescriptorKind) byte {
	switch k {
	case shader.DescriptorSampler:
		return 's'
	case shader.DescriptorCombinedImageSampler:
		return 't'
	case shader.DescriptorSampledImage:
		return 'i'
	case shader.DescriptorUniformBuffer:
		return 'u'
	default:
		return '?'
	}
}

func stageChars(mask shader.StageMask) string {
	const all = shader.StageMaskVertex | shader.StageMaskFragment | shader.StageMaskGeometry
	if mask&all == all {
		return "ag"
	}
	var sb strings.Builder
	if mask&shader.StageMaskVertex != 0 {
		sb.WriteByte('v')
	}
	if mask&shader.StageMaskGeometry != 0 {
		sb.WriteByte('g')
	}
	if mask&shader.StageMaskFragment != 0 {
		sb.WriteByte('f')
	}
	return sb.String()
}

// CanonicalSetKey builds the grammar string from spec.md §4.3: a
// comma-separated list of bindings, each `<letter><count>@<binding><stages>`,
// sorted by binding point first so shuffled input produces an identical key
// (Testable Property 3).
func CanonicalSetKey(bindings []shader.Binding) string {
	sorted := append([]shader.Binding(nil), bindings...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Binding < sorted[j].Binding })

	parts := make([]string, len(sorted))
	for i, b := range sorted {
		parts[i] = fmt.Sprintf("%c%d@%d%s", letterFor(b.Kind), b.ArraySize, b.Binding, stageChars(b.Stages))
	}
	return strings.Join(parts, ",")
}

// CanonicalPipelineKey builds the `;`-separated `<set-index>:<set-key>`
// string over every set in ascending index order.
func CanonicalPipelineKey(setsByIndex map[uint32][]shader.Binding) string {
	indices := make([]uint32, 0, len(setsByIndex))
	for idx := range setsByIndex {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = fmt.Sprintf("%d:%s", idx, CanonicalSetKey(setsByIndex[idx]))
	}
	return strings.Join(parts, ";")
}

// GetSetLayout returns the cached layout for this exact binding list,
// creating it on first request.
func (c *Cache) GetSetLayout(bindings []shader.Binding) (*SetLayout, error) {
	key := CanonicalSetKey(bindings)
	layout, _, err := c.sets.GetOrCreate(key, func() (*SetLayout, error) {
		handle, err := c.device.CreateDescriptorSetLayout(bindings)
		if err != nil {
			return nil, err
		}
		return &SetLayout{Key: key, Handle: handle, Bindings: append([]shader.Binding(nil), bindings...)}, nil
	})
	return layout, err
}

// ReleaseSetLayout decrements the layout's refcount, calling destroy if this
// was the last holder.
func (c *Cache) ReleaseSetLayout(layout *SetLayout, destroy func(*SetLayout)) {
	v, zero, ok := c.sets.Release(layout.Key)
	if ok && zero {
		destroy(v)
	}
}

// GetPipelineLayout returns the cached pipeline layout for the given
// per-set bindings (Material=1, Object=2, ... as derived from reflection)
// plus an externally-supplied Global (set 0) layout — spec.md §4.3: "set
// index 0 is supplied externally by the active render-pipeline, not
// derived from shader reflection."
func (c *Cache) GetPipelineLayout(global *SetLayout, setsByIndex map[uint32][]shader.Binding, pushConstantSize uint64, pushConstantMask shader.StageMask) (*PipelineLayout, error) {
	full := map[uint32][]shader.Binding{shader.SetGlobal: global.Bindings}
	for idx, bindings := range setsByIndex {
		if idx == shader.SetGlobal {
			continue
		}
		full[idx] = bindings
	}
	key := CanonicalPipelineKey(full)

	layout, _, err := c.pipelines.GetOrCreate(key, func() (*PipelineLayout, error) {
		maxIdx := uint32(0)
		for idx := range full {
			if idx > maxIdx {
				maxIdx = idx
			}
		}
		ordered := make([]*SetLayout, maxIdx+1)
		handles := make([]vk.DescriptorSetLayout, maxIdx+1)
		ordered[shader.SetGlobal] = global
		handles[shader.SetGlobal] = global.Handle
		for idx, bindings := range setsByIndex {
			if idx == shader.SetGlobal {
				continue
			}
			sl, err := c.GetSetLayout(bindings)
			if err != nil {
				return nil, err
			}
			ordered[idx] = sl
			handles[idx] = sl.Handle
		}

		handle, err := c.device.CreatePipelineLayout(handles, pushConstantSize, pushConstantMask)
		if err != nil {
			return nil, err
		}
		return &PipelineLayout{
			Key: key, Handle: handle, SetLayouts: ordered,
			PushConstantSize: pushConstantSize, PushConstantMask: pushConstantMask,
		}, nil
	})
	return layout, err
}

// ReleasePipelineLayout decrements the pipeline layout's refcount; at zero
// it also releases each of its set layouts (spec.md §4.3: "Freeing
// decrements the pipeline-layout refcount; at zero it also decrements each
// of its set-layouts").
func (c *Cache) ReleasePipelineLayout(layout *PipelineLayout, destroyPipeline func(*PipelineLayout), destroySet func(*SetLayout)) {
	v, zero, ok := c.pipelines.Release(layout.Key)
	if !ok || !zero {
		return
	}
	destroyPipeline(v)
	for _, sl := range v.SetLayouts {
		c.ReleaseSetLayout(sl, destroySet)
	}
}
