package pipeline

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/kilnforge/ember/engine/core"
	"github.com/kilnforge/ember/engine/gpu/descriptor"
	"github.com/kilnforge/ember/engine/gpu/refcache"
	"github.com/kilnforge/ember/engine/gpu/shader"
)

// VertexInput is the subset of a shader's reflected vertex attributes the
// pipeline-creation call needs: binding stride plus the attribute list.
type VertexInput struct {
	Stride     uint32
	Attributes []shader.Attribute
}

// Desc is everything the PSO cache's key and creation call need: the shader
// module to bind, the packed fixed-function state, the pipeline layout and
// the render pass/subpass it will run in.
type Desc struct {
	Module         *shader.Module
	Meta           MetaMaterial
	PipelineLayout *descriptor.PipelineLayout
	RenderPass     vk.RenderPass
	Subpass        uint32
	VertexInput    VertexInput
}

// PSO is one refcounted pipeline-state object.
type PSO struct {
	Key    string
	Handle vk.Pipeline
}

// Device is the slice of the GPU device wrapper this cache calls into,
// generalized from the teacher's engine/renderer/vulkan/pipeline.go
// NewGraphicsPipeline free function into a single-method interface so the
// PSO cache never imports engine/gpu/vulkan directly.
type Device interface {
	CreateGraphicsPipeline(d Desc) (vk.Pipeline, error)
	DestroyGraphicsPipeline(vk.Pipeline)
}

// Cache deduplicates pipeline-state objects by (shader source ID, packed
// MetaMaterial, pipeline-layout key, render-pass handle, subpass) — spec.md
// §4.4: "PSOs are keyed on (Shader, MetaMaterial, RenderPass, subpass) and
// deduplicated/refcounted like every other cache."
type Cache struct {
	device Device
	cache  *refcache.Cache[string, *PSO]
}

func NewCache(device Device) *Cache {
	return &Cache{device: device, cache: refcache.New[string, *PSO]()}
}

func keyFor(d Desc, subpass uint32) string {
	return fmt.Sprintf("%s|%s|%08x|%x|%d", d.Module.SourceID, d.PipelineLayout.Key, uint32(d.Meta), uint64(d.RenderPass), subpass)
}

// Get returns the cached PSO for this exact combination, building it on
// first request.
func (c *Cache) Get(d Desc) (*PSO, error) {
	key := keyFor(d, d.Subpass)
	pso, _, err := c.cache.GetOrCreate(key, func() (*PSO, error) {
		handle, err := c.device.CreateGraphicsPipeline(d)
		if err != nil {
			return nil, err
		}
		return &PSO{Key: key, Handle: handle}, nil
	})
	return pso, err
}

// Release decrements the PSO's refcount, destroying it immediately if it
// reaches zero. Callers on the render thread should route this through the
// frame scheduler's deletion queue rather than calling destroy synchronously
// mid-frame (spec.md §3: resource destruction is never immediate).
func (c *Cache) Release(key string, destroy func(*PSO)) {
	pso, zero, ok := c.cache.Release(key)
	if !ok {
		core.LogWarn("pipeline: release of unknown PSO %q", key)
		return
	}
	if zero {
		destroy(pso)
	}
}

func (c *Cache) Shutdown() {
	c.cache.Each(func(key string, _ *PSO, refcount int32) {
		core.LogWarn("pipeline: PSO %q still has refcount %d at shutdown", key, refcount)
	})
}
