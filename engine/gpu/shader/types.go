package shader

// AttributeType enumerates the vertex-attribute scalar/vector shapes the
// reflector recognizes, named after the teacher's ShaderAttributeType but
// trimmed to what SPIR-V vertex inputs actually produce.
type AttributeType uint8

const (
	AttribFloat32 AttributeType = iota
	AttribFloat32x2
	AttribFloat32x3
	AttribFloat32x4
	AttribMatrix4
	AttribInt32
	AttribUint32
)

// Size returns the attribute's size in bytes.
func (t AttributeType) Size() uint32 {
	switch t {
	case AttribFloat32, AttribInt32, AttribUint32:
		return 4
	case AttribFloat32x2:
		return 8
	case AttribFloat32x3:
		return 12
	case AttribFloat32x4:
		return 16
	case AttribMatrix4:
		return 64
	default:
		return 0
	}
}

// Attribute is a single vertex input, in declaration (location) order.
type Attribute struct {
	Name     string
	Type     AttributeType
	Location uint32
	Size     uint32
}

// DescriptorKind mirrors the VkDescriptorType subset the engine's reflection
// cares about.
type DescriptorKind uint8

const (
	DescriptorSampler DescriptorKind = iota
	DescriptorCombinedImageSampler
	DescriptorSampledImage
	DescriptorUniformBuffer
)

// letter is the grammar character used by the descriptor-layout cache's
// canonical set-key (spec §4.3): s/t/i/u for
// Sampler/CombinedImageSampler/SampledImage/UniformBuffer.
func (k DescriptorKind) letter() byte {
	switch k {
	case DescriptorSampler:
		return 's'
	case DescriptorCombinedImageSampler:
		return 't'
	case DescriptorSampledImage:
		return 'i'
	case DescriptorUniformBuffer:
		return 'u'
	default:
		return '?'
	}
}

// StageMask is a bitmask of the stages that reference a binding or push
// constant block. OR-ed across stages during reflection merge (spec §4.2.2).
type StageMask uint8

const (
	StageMaskVertex StageMask = 1 << iota
	StageMaskFragment
	StageMaskGeometry
)

func stageMaskFor(role StageRole) StageMask {
	switch role {
	case StageVertex:
		return StageMaskVertex
	case StageFragment:
		return StageMaskFragment
	case StageGeometry:
		return StageMaskGeometry
	default:
		return 0
	}
}

// chars renders the stage mask using the descriptor-layout cache's
// canonical grammar: v/g/f for single stages, "ag" for all-graphics.
func (m StageMask) chars() string {
	if m&(StageMaskVertex|StageMaskFragment|StageMaskGeometry) == (StageMaskVertex | StageMaskFragment | StageMaskGeometry) {
		return "ag"
	}
	s := ""
	if m&StageMaskVertex != 0 {
		s += "v"
	}
	if m&StageMaskGeometry != 0 {
		s += "g"
	}
	if m&StageMaskFragment != 0 {
		s += "f"
	}
	return s
}

// Binding is one descriptor binding within a set, merged across every stage
// that declares it.
type Binding struct {
	Binding    uint32
	ArraySize  uint32
	Kind       DescriptorKind
	Stages     StageMask
	BlockBytes uint32 // uniform-buffer byte size; 0 for non-UBO bindings
}

// PropertyKind distinguishes the two tagged-variant forms of a material
// property schema entry (spec §4.2.4, REDESIGN FLAGS: tagged-variant
// properties replace the teacher's inheritance-based ShaderUniformType).
type PropertyKind uint8

const (
	PropertyVector PropertyKind = iota
	PropertyTexture
)

// ScalarType is the underlying 32-bit scalar/vector element type of a
// Vector property.
type ScalarType uint8

const (
	ScalarFloat ScalarType = iota
	ScalarFloat2
	ScalarFloat3
	ScalarFloat4
	ScalarInt
	ScalarUint
)

// Property is a single named entry in a shader's material property schema.
// Exactly one of the Vector or Texture fields is meaningful, selected by
// Kind — the Go rendering of the source's tagged union.
type Property struct {
	Name string
	Kind PropertyKind

	// Valid when Kind == PropertyVector.
	VectorType ScalarType
	ByteOffset uint32

	// Valid when Kind == PropertyTexture.
	ImageDim  uint8 // 1D/2D/3D/Cube, raw SPIR-V Dim operand
	Binding   uint32
	ArraySize uint32
}

// Reflection is the complete output of reflecting a shader's stages: the
// vertex layout, the per-set descriptor bindings, push-constant stage
// usage, and the Material-set (index 1) property schema.
type Reflection struct {
	Attributes       []Attribute
	Sets             map[uint32][]Binding // set index -> bindings, sorted by Binding
	PushConstantSize uint64
	PushConstantMask StageMask
	Properties       []Property // from set index 1 (Material)
}

// DescriptorSetIndex conventions (spec §10 GLOSSARY: set 0/1/2 = Global /
// Material / Object by convention).
const (
	SetGlobal   = 0
	SetMaterial = 1
	SetObject   = 2
)

const (
	maxSets           = 4
	maxBindingsPerSet = 18
	maxUBOBytes       = 16 * 1024
	maxMaterialTextures = 16
)
