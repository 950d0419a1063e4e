package shader

import (
	vk "github.com/goki/vulkan"

	"github.com/kilnforge/ember/engine/core"
	"github.com/kilnforge/ember/engine/gpu/refcache"
)

// Device is the slice of the GPU device wrapper the shader cache needs:
// creating and destroying native shader-module objects. Declared locally so
// this package depends on an interface, not engine/gpu/vulkan directly —
// the teacher's vulkan.VulkanContext is accepted the same way its own
// systems accept *VulkanContext, but narrowed here to what this cache
// actually calls.
type Device interface {
	CreateShaderModule(words []uint32) (vk.ShaderModule, error)
	DestroyShaderModule(vk.ShaderModule)
}

// Module is a cached, reflected shader: one native module per stage plus
// the merged reflection spec.md §4 calls a "triple of bytecode modules...
// immutable after construction; owned by reference count."
type Module struct {
	SourceID   string
	Reflection *Reflection
	stages     map[StageRole]vk.ShaderModule
}

// StageHandle returns the native module handle for a given stage, or the
// zero value if the shader has no such stage.
func (m *Module) StageHandle(role StageRole) vk.ShaderModule {
	return m.stages[role]
}

// UniformBufferSize is the Material set's (index 1) declared uniform block
// size, or 0 if the shader declares none. Spec.md §4: "a uniform-buffer
// byte size (≤16 KiB)".
func (m *Module) UniformBufferSize() uint32 {
	for _, b := range m.Reflection.Sets[SetMaterial] {
		if b.Kind == DescriptorUniformBuffer {
			return b.BlockBytes
		}
	}
	return 0
}

// Cache deduplicates shader modules by source identifier (spec.md §4.1:
// "one GPU shader-module object per distinct source identifier for the
// lifetime of its holders"). Get creates lazily on first request; Release
// reports when the last holder let go so the caller can enqueue GPU
// destruction on its own deletion queue.
type Cache struct {
	device Device
	cache  *refcache.Cache[string, *Module]
}

func NewCache(device Device) *Cache {
	return &Cache{device: device, cache: refcache.New[string, *Module]()}
}

// Get returns the module for sourceID, building it from code on first
// request. Subsequent calls with the same sourceID return the existing
// module and increment its refcount — code is ignored once cached, matching
// "the cache returns an existing module when the identifier matches."
func (c *Cache) Get(sourceID string, code *Bytecode) (*Module, error) {
	mod, _, err := c.cache.GetOrCreate(sourceID, func() (*Module, error) {
		return c.build(sourceID, code)
	})
	return mod, err
}

func (c *Cache) build(sourceID string, code *Bytecode) (*Module, error) {
	refl, err := Reflect(code)
	if err != nil {
		return nil, err
	}
	stages := make(map[StageRole]vk.ShaderModule, len(code.Stages))
	for _, st := range code.Stages {
		handle, err := c.device.CreateShaderModule(st.Words)
		if err != nil {
			for _, created := range stages {
				c.device.DestroyShaderModule(created)
			}
			return nil, err
		}
		stages[st.Role] = handle
	}
	return &Module{SourceID: sourceID, Reflection: refl, stages: stages}, nil
}

// Release decrements sourceID's refcount. On reaching zero it calls destroy
// with the module so the caller can enqueue its native handles onto the
// current frame's deletion queue rather than freeing immediately (spec.md
// §3: "Resource destruction is never immediate").
func (c *Cache) Release(sourceID string, destroy func(*Module)) {
	mod, zero, ok := c.cache.Release(sourceID)
	if !ok {
		core.LogWarn("shader: release of unknown module %q", sourceID)
		return
	}
	if zero {
		destroy(mod)
	}
}

// Shutdown asserts every cached module has been released, per spec.md §10's
// deterministic-teardown design decision.
func (c *Cache) Shutdown() {
	c.cache.Each(func(id string, _ *Module, refcount int32) {
		core.LogWarn("shader: module %q still has refcount %d at shutdown", id, refcount)
	})
}
