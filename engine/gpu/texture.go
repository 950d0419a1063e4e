package gpu

import vk "github.com/goki/vulkan"

// Texture pairs an image view with an externally-owned sampler (spec.md §3:
// "Texture: (ImageView, Sampler). Sampler is externally owned."). The
// sampler's lifetime is the caller's responsibility; this engine never
// creates or destroys one on the caller's behalf.
type Texture struct {
	View    vk.ImageView
	Sampler vk.Sampler
	// Dim is the view's declared dimensionality (1D/2D/3D/Cube), checked
	// against the shader's declared property dimensionality at bind time
	// (spec.md invariant 4).
	Dim uint8
}
