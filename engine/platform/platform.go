// Package platform wraps the minimal windowing surface the GPU core needs:
// a native window handle and a Vulkan-compatible presentation surface. Input,
// menus, and the rest of OS integration are external collaborators (spec.md
// §1 Out of scope) and are not modeled here.
package platform

import (
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/kilnforge/ember/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread.
	runtime.LockOSThread()
}

type Platform struct {
	Window    *glfw.Window
	startTime float64
}

func New() (*Platform, error) {
	return &Platform{}, nil
}

func (p *Platform) Startup(applicationName string, x, y, width, height uint32) error {
	if err := glfw.Init(); err != nil {
		core.LogFatal("failed to initialize glfw: %s", err)
		return err
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		core.LogFatal("failed to create window: %s", err)
		return err
	}
	p.Window = window
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()

	p.startTime = glfw.GetTime()
	return nil
}

func (p *Platform) Shutdown() error {
	glfw.Terminate()
	return nil
}

// PumpMessages processes queued OS/window events. Called once per tick by
// the host application, before the renderer's frame scheduler runs.
func (p *Platform) PumpMessages() {
	glfw.PollEvents()
}

// GetRequiredExtensionNames returns the Vulkan instance extensions GLFW
// needs in order to present to this platform's window.
func (p *Platform) GetRequiredExtensionNames() []string {
	return glfw.GetRequiredInstanceExtensions()
}

// CreateSurface creates a Vulkan surface for this window against the given
// instance handle, returning the raw surface handle as a uintptr.
func (p *Platform) CreateSurface(instance uintptr) (uintptr, error) {
	surface, err := p.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		return 0, fmt.Errorf("platform: create window surface: %w", err)
	}
	return surface, nil
}

// FramebufferSize returns the current framebuffer size in pixels.
func (p *Platform) FramebufferSize() (uint32, uint32) {
	w, h := p.Window.GetFramebufferSize()
	return uint32(w), uint32(h)
}

// ShouldClose reports whether the host OS requested the window be closed.
func (p *Platform) ShouldClose() bool {
	return p.Window.ShouldClose()
}

// ElapsedTime returns the seconds elapsed since Startup was called.
func (p *Platform) ElapsedTime() float64 {
	return glfw.GetTime() - p.startTime
}
