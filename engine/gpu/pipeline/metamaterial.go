// Package pipeline implements the pipeline-state-object cache (spec.md
// §4.4): PSOs are keyed on (Shader, MetaMaterial, RenderPass, subpass) and
// deduplicated/refcounted like every other cache in this engine. Grounded
// on the teacher's engine/renderer/vulkan/pipeline.go NewGraphicsPipeline,
// whose individually-passed cull_mode/is_wireframe/depth_test_enabled
// arguments are packed here into the single MetaMaterial value spec.md
// calls for instead of a long parameter list.
package pipeline

// CullMode mirrors the teacher's metadata.FaceCullMode enumerants.
type CullMode uint8

const (
	CullNone CullMode = iota
	CullFront
	CullBack
	CullFrontAndBack
)

// BlendFactor is a reduced VkBlendFactor subset, the ones real materials in
// this engine's corpus actually use.
type BlendFactor uint8

const (
	BlendFactorZero BlendFactor = iota
	BlendFactorOne
	BlendFactorSrcAlpha
	BlendFactorOneMinusSrcAlpha
	BlendFactorDstAlpha
	BlendFactorOneMinusDstAlpha
	BlendFactorSrcColor
	BlendFactorOneMinusSrcColor
	BlendFactorDstColor
	BlendFactorOneMinusDstColor
)

// BlendOp mirrors VkBlendOp's arithmetic subset.
type BlendOp uint8

const (
	BlendOpAdd BlendOp = iota
	BlendOpSubtract
	BlendOpReverseSubtract
	BlendOpMin
	BlendOpMax
)

// MetaMaterialDesc is the unpacked, readable form of a MetaMaterial — what
// a Material author fills in before it is packed for hashing.
type MetaMaterialDesc struct {
	CullMode    CullMode
	DepthTest   bool
	DepthWrite  bool
	Wireframe   bool
	BlendEnable bool

	ColorSrcFactor BlendFactor
	ColorDstFactor BlendFactor
	ColorBlendOp   BlendOp

	AlphaSrcFactor BlendFactor
	AlphaDstFactor BlendFactor
	AlphaBlendOp   BlendOp

	// Samples is the MSAA sample count (1, 2, 4, 8, 16, 32 or 64). Zero
	// means "use the pipeline factory's default" (spec.md §10 design
	// decision: MetaMaterial.Samples overrides a single-sample default).
	Samples uint8
}

// MetaMaterial packs blend factors/operations, cull mode, depth test/write
// and wireframe into a single comparable value (spec.md §3: "packs blend
// factors/operations, cull mode, depth test/write, wireframe into ≤32
// bits"), so it can be used directly as a map-key component in the PSO
// cache without a custom Equal/Hash pair.
type MetaMaterial uint32

const (
	shiftCullMode = iota * 0 // placeholder, real shifts assigned below
)

const (
	bitsCullMode     = 2
	bitsFlag         = 1
	bitsBlendFactor  = 4
	bitsBlendOp      = 3
	bitsSamplesLog2  = 3
)

const (
	offCullMode = 0
	offDepthTest = offCullMode + bitsCullMode
	offDepthWrite = offDepthTest + bitsFlag
	offWireframe = offDepthWrite + bitsFlag
	offBlendEnable = offWireframe + bitsFlag
	offColorSrc = offBlendEnable + bitsFlag
	offColorDst = offColorSrc + bitsBlendFactor
	offColorOp = offColorDst + bitsBlendFactor
	offAlphaSrc = offColorOp + bitsBlendOp
	offAlphaDst = offAlphaSrc + bitsBlendFactor
	offAlphaOp = offAlphaDst + bitsBlendFactor
	offSamplesLog2 = offAlphaOp + bitsBlendOp
)

func boolBit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func log2SampleCount(samples uint8) uint32 {
	if samples == 0 {
		samples = 1
	}
	n := uint32(0)
	for s := uint8(1); s < samples; s <<= 1 {
		n++
	}
	return n
}

// Pack compresses a MetaMaterialDesc into its canonical 32-bit form.
func Pack(d MetaMaterialDesc) MetaMaterial {
	v := uint32(d.CullMode) << offCullMode
	v |= boolBit(d.DepthTest) << offDepthTest
	v |= boolBit(d.DepthWrite) << offDepthWrite
	v |= boolBit(d.Wireframe) << offWireframe
	v |= boolBit(d.BlendEnable) << offBlendEnable
	v |= uint32(d.ColorSrcFactor) << offColorSrc
	v |= uint32(d.ColorDstFactor) << offColorDst
	v |= uint32(d.ColorBlendOp) << offColorOp
	v |= uint32(d.AlphaSrcFactor) << offAlphaSrc
	v |= uint32(d.AlphaDstFactor) << offAlphaDst
	v |= uint32(d.AlphaBlendOp) << offAlphaOp
	v |= log2SampleCount(d.Samples) << offSamplesLog2
	return MetaMaterial(v)
}

func field(m MetaMaterial, off, bits uint32) uint32 {
	return (uint32(m) >> off) & ((1 << bits) - 1)
}

func (m MetaMaterial) CullMode() CullMode       { return CullMode(field(m, offCullMode, bitsCullMode)) }
func (m MetaMaterial) DepthTest() bool          { return field(m, offDepthTest, bitsFlag) != 0 }
func (m MetaMaterial) DepthWrite() bool         { return field(m, offDepthWrite, bitsFlag) != 0 }
func (m MetaMaterial) Wireframe() bool          { return field(m, offWireframe, bitsFlag) != 0 }
func (m MetaMaterial) BlendEnable() bool        { return field(m, offBlendEnable, bitsFlag) != 0 }
func (m MetaMaterial) ColorSrcFactor() BlendFactor { return BlendFactor(field(m, offColorSrc, bitsBlendFactor)) }
func (m MetaMaterial) ColorDstFactor() BlendFactor { return BlendFactor(field(m, offColorDst, bitsBlendFactor)) }
func (m MetaMaterial) ColorBlendOp() BlendOp       { return BlendOp(field(m, offColorOp, bitsBlendOp)) }
func (m MetaMaterial) AlphaSrcFactor() BlendFactor { return BlendFactor(field(m, offAlphaSrc, bitsBlendFactor)) }
func (m MetaMaterial) AlphaDstFactor() BlendFactor { return BlendFactor(field(m, offAlphaDst, bitsBlendFactor)) }
func (m MetaMaterial) AlphaBlendOp() BlendOp       { return BlendOp(field(m, offAlphaOp, bitsBlendOp)) }

// SampleCount returns the unpacked MSAA sample count (1, 2, 4, ...).
func (m MetaMaterial) SampleCount() uint32 {
	return 1 << field(m, offSamplesLog2, bitsSamplesLog2)
}
