package vulkan

import (
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/kilnforge/ember/engine/core"
)

// Platform is the slice of engine/platform.Platform the Vulkan backend needs
// to create its surface, declared locally so this package never imports
// engine/platform directly (spec.md §1: the GPU layer is platform-agnostic
// behind this seam).
type Platform interface {
	GetRequiredExtensionNames() []string
	CreateSurface(instance uintptr) (uintptr, error)
	FramebufferSize() (uint32, uint32)
}

// InitOptions configures NewInstance. EnableValidation turns on
// VK_LAYER_KHRONOS_validation plus a debug report
// callback that routes messages through engine/core's logger. Left on by
// default in the teacher's backend.go; callers building a release binary
// should pass false.
type InitOptions struct {
	ApplicationName   string
	EnableValidation  bool
}

// NewInstance creates the VkInstance, optional debug callback and window
// surface, adapted from the teacher's VulkanRenderer.Initialize instance/
// surface bring-up.
func NewInstance(platform Platform, opts InitOptions) (*Context, error) {
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		return nil, err
	}

	extensions := SafeStrings(append(platform.GetRequiredExtensionNames(), "VK_EXT_debug_report"))
	var layers []string
	if opts.EnableValidation {
		layers = SafeStrings([]string{"VK_LAYER_KHRONOS_validation"})
	}

	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   SafeString(opts.ApplicationName),
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:        SafeString("ember"),
		EngineVersion:      vk.MakeVersion(1, 0, 0),
		ApiVersion:         vk.ApiVersion11,
	}

	createInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}

	var instance vk.Instance
	if err := checkResult("vkCreateInstance", vk.CreateInstance(&createInfo, nil, &instance)); err != nil {
		return nil, err
	}
	vk.InitInstance(instance)

	ctx := &Context{Instance: instance, Locks: NewLockPool()}

	if opts.EnableValidation {
		ctx.DebugMessenger = ctx.createDebugReportCallback()
	}

	surfacePtr, err := platform.CreateSurface(uintptr(instance))
	if err != nil {
		return nil, err
	}
	ctx.Surface = vk.SurfaceFromPointer(surfacePtr)

	w, h := platform.FramebufferSize()
	ctx.FramebufferWidth, ctx.FramebufferHeight = w, h

	return ctx, nil
}

func (c *Context) createDebugReportCallback() vk.DebugReportCallback {
	dbgCreateInfo := vk.DebugReportCallbackCreateInfo{
		SType: vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags: vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
		PfnCallback: func(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
			switch {
			case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
				core.LogError("vulkan validation: %s", pMessage)
			case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
				core.LogWarn("vulkan validation: %s", pMessage)
			default:
				core.LogDebug("vulkan validation: %s", pMessage)
			}
			return vk.Bool32(vk.False)
		},
	}
	var callback vk.DebugReportCallback
	if err := checkResult("vkCreateDebugReportCallbackEXT", vk.CreateDebugReportCallback(c.Instance, &dbgCreateInfo, nil, &callback)); err != nil {
		core.LogWarn("vulkan: debug report callback unavailable: %s", err)
		return vk.NullDebugReportCallback
	}
	return callback
}

// DestroyInstance tears down the instance-level objects: debug callback, surface and
// instance, in that reverse-creation order.
func (c *Context) DestroyInstance() {
	if c.DebugMessenger != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(c.Instance, c.DebugMessenger, nil)
	}
	if c.Surface != vk.NullSurface {
		vk.DestroySurface(c.Instance, c.Surface, nil)
	}
	vk.DestroyInstance(c.Instance, nil)
}
