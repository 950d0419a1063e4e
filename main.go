/*
This is an example application demonstrating the engine package: it opens
a window, stands up the renderer against it, and clears the screen every
frame until the window is closed or the process receives a termination
signal.
*/
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/kilnforge/ember/engine/core"
	"github.com/kilnforge/ember/engine/platform"
	"github.com/kilnforge/ember/engine/renderer"
	"github.com/kilnforge/ember/testbed"
)

func main() {
	p, err := platform.New()
	if err != nil {
		panic(err)
	}
	if err := p.Startup("Ember Testbed", 100, 100, 1280, 720); err != nil {
		panic(err)
	}

	r := renderer.New()
	pipeline := testbed.NewClearPipeline()
	if err := r.Startup(p, renderer.StartupInfo{
		ApplicationName:  "Ember Testbed",
		EnableValidation: true,
		RenderAheadCount: 2,
		EnableVsync:      true,
		QuadBudget:       4096,
		Pipeline:         pipeline,
	}); err != nil {
		panic(err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	quit := make(chan struct{})
	go func() {
		<-sigCh
		close(quit)
	}()

	for !p.ShouldClose() {
		select {
		case <-quit:
			goto shutdown
		default:
		}

		p.PumpMessages()
		if err := r.Tick(nil); err != nil {
			core.LogError("main: tick failed: %s", err)
			break
		}
	}

shutdown:
	r.Shutdown()
	if err := p.Shutdown(); err != nil {
		core.LogError("main: platform shutdown: %s", err)
	}
}
