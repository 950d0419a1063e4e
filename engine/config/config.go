// Package config loads the renderer's TOML-sourced startup parameters,
// mirroring the decode-into-a-tmp-struct-then-validate idiom the teacher
// uses for shader/material configs (engine/assets/loaders/shader.go,
// material.go) but applied to RendererStartupInfo (spec.md §6), which the
// distilled spec leaves as a bare Go struct with no stated file format.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/kilnforge/ember/engine/core"
)

// FileConfig is the TOML-serializable subset of RendererStartupInfo — the
// GPU-selection callback and the active Pipeline are supplied in code, not
// sourced from a file.
type FileConfig struct {
	ApplicationName    string `toml:"application_name"`
	EnableValidation   bool   `toml:"enable_validation"`
	RenderAheadCount   int    `toml:"render_ahead_count"`
	EnableVsync        bool   `toml:"enable_vsync"`
	UseTripleBuffering bool   `toml:"use_triple_buffering"`
	QuadBudget         uint32 `toml:"quad_budget"`
}

// Validate checks the fields spec.md §6 constrains (renderAheadCount in
// [1,3]) and fills in the defaults it leaves implicit for the rest.
func (c *FileConfig) Validate() error {
	if c.RenderAheadCount < 1 || c.RenderAheadCount > 3 {
		return fmt.Errorf("config: render_ahead_count must be in [1,3], got %d", c.RenderAheadCount)
	}
	if c.QuadBudget == 0 {
		c.QuadBudget = 4096
	}
	return nil
}

// Load reads and decodes path as TOML, then validates it.
func Load(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg FileConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	core.LogInfo("config: loaded %s (renderAhead=%d vsync=%v tripleBuffering=%v quadBudget=%d)",
		path, cfg.RenderAheadCount, cfg.EnableVsync, cfg.UseTripleBuffering, cfg.QuadBudget)
	return &cfg, nil
}
