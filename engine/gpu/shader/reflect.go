package shader

import (
	"fmt"
	"sort"

	"github.com/kilnforge/ember/engine/core"
)

// Reflect walks a shader's per-stage bytecode and produces the merged
// vertex layout, descriptor bindings, push-constant usage and material
// property schema described by spec.md §4.2. Grounded on the attribute and
// uniform modeling in the teacher's engine/renderer/metadata/shader.go,
// re-expressed against the SPIR-V words this engine actually consumes
// (the teacher never reflects bytecode — it hand-authors ShaderAttribute
// lists from a TOML config — so the walker itself is original work against
// the SPIR-V specification, grounded on no single example file).
func Reflect(code *Bytecode) (*Reflection, error) {
	out := &Reflection{Sets: map[uint32][]Binding{}}

	merged := map[[2]uint32]reflectedBinding{} // (set,binding) -> merged entry

	for _, stage := range code.Stages {
		info, err := parseStage(stage.Role, stage.Words)
		if err != nil {
			return nil, err
		}

		if stage.Role == StageVertex {
			attrs, err := reflectVertexInputs(info)
			if err != nil {
				return nil, err
			}
			out.Attributes = attrs
		}

		bindings, err := reflectBindings(info)
		if err != nil {
			return nil, err
		}
		mask := stageMaskFor(stage.Role)
		for _, b := range bindings {
			key := [2]uint32{b.set, b.Binding.Binding}
			if existing, ok := merged[key]; ok {
				if existing.Kind != b.Kind || existing.ArraySize != b.ArraySize {
					return nil, fmt.Errorf("shader: set %d binding %d disagrees across stages", b.set, b.Binding.Binding)
				}
				existing.Stages |= mask
				merged[key] = existing
			} else {
				b.Stages = mask
				merged[key] = b
			}
		}

		props, err := reflectMaterialProperties(info)
		if err != nil {
			return nil, err
		}
		if len(props) > 0 {
			if out.Properties == nil {
				out.Properties = props
			} else if !propertiesEqual(out.Properties, props) {
				return nil, fmt.Errorf("shader: material property schema disagrees across stages")
			}
		}

		pcSize, pcCount, err := reflectPushConstants(info)
		if err != nil {
			return nil, err
		}
		if pcCount > 1 {
			return nil, fmt.Errorf("shader: stage %s declares more than one push-constant block", stage.Role)
		}
		if pcCount == 1 {
			if pcSize > out.PushConstantSize {
				out.PushConstantSize = pcSize
			}
			out.PushConstantMask |= mask
		}
	}

	for key, b := range merged {
		out.Sets[key[0]] = append(out.Sets[key[0]], b.Binding)
	}
	for set := range out.Sets {
		sort.Slice(out.Sets[set], func(i, j int) bool {
			return out.Sets[set][i].Binding < out.Sets[set][j].Binding
		})
	}

	if err := validateCaps(out); err != nil {
		return nil, err
	}
	return out, nil
}

func validateCaps(r *Reflection) error {
	if len(r.Sets) > maxSets {
		return fmt.Errorf("%w: %d descriptor sets declared, max %d", core.ErrSchemaMismatch, len(r.Sets), maxSets)
	}
	for set, bindings := range r.Sets {
		if len(bindings) > maxBindingsPerSet {
			return fmt.Errorf("%w: set %d declares %d bindings, max %d", core.ErrSchemaMismatch, set, len(bindings), maxBindingsPerSet)
		}
		for _, b := range bindings {
			if b.Kind == DescriptorUniformBuffer && b.BlockBytes > maxUBOBytes {
				return fmt.Errorf("%w: set %d binding %d uniform block is %d bytes, max %d", core.ErrUniformSizeMismatch, set, b.Binding, b.BlockBytes, maxUBOBytes)
			}
		}
	}
	textureCount := 0
	for _, p := range r.Properties {
		if p.Kind == PropertyTexture {
			textureCount++
		}
	}
	if textureCount > maxMaterialTextures {
		return fmt.Errorf("%w: material set declares %d textures, max %d", core.ErrTextureCountMismatch, textureCount, maxMaterialTextures)
	}
	return nil
}

func propertiesEqual(a, b []Property) bool {
	if len(a) != len(b) {
		return false
	}
	byName := make(map[string]Property, len(a))
	for _, p := range a {
		byName[p.Name] = p
	}
	for _, p := range b {
		q, ok := byName[p.Name]
		if !ok || q.Kind != p.Kind || q.VectorType != p.VectorType || q.ByteOffset != p.ByteOffset ||
			q.Binding != p.Binding || q.ArraySize != p.ArraySize {
			return false
		}
	}
	return true
}

func reflectVertexInputs(info *stageInfo) ([]Attribute, error) {
	type located struct {
		Attribute
		hasLoc bool
	}
	var attrs []located
	for id, v := range info.variables {
		if v.storageClass != storageClassInput {
			continue
		}
		ptr, ok := info.types[v.pointerType]
		if !ok || ptr.kind != tPointer {
			continue
		}
		at, _, err := resolveAttributeType(info, ptr.compType)
		if err != nil {
			return nil, fmt.Errorf("shader: vertex input %q: %w", info.names[id], err)
		}
		loc, hasLoc := decorationOperand(info.decorations, id, decorationLocation)
		attrs = append(attrs, located{
			Attribute: Attribute{Name: info.names[id], Type: at, Location: loc, Size: at.Size()},
			hasLoc:    hasLoc,
		})
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Location < attrs[j].Location })
	out := make([]Attribute, len(attrs))
	for i, a := range attrs {
		if !a.hasLoc {
			return nil, fmt.Errorf("%w: vertex input %q has no Location decoration", core.ErrSchemaMismatch, a.Name)
		}
		if a.Location != uint32(i) {
			return nil, fmt.Errorf("%w: vertex input locations must be contiguous starting at 0, got %d at position %d", core.ErrSchemaMismatch, a.Location, i)
		}
		out[i] = a.Attribute
	}
	return out, nil
}

func resolveAttributeType(info *stageInfo, typeID uint32) (AttributeType, uint32, error) {
	t, ok := info.types[typeID]
	if !ok {
		return 0, 0, fmt.Errorf("unresolved type id %d", typeID)
	}
	switch t.kind {
	case tFloat:
		return AttribFloat32, 4, nil
	case tInt:
		return AttribInt32, 4, nil
	case tVector:
		comp := info.types[t.compType]
		switch {
		case comp.kind == tFloat && t.compCount == 2:
			return AttribFloat32x2, 8, nil
		case comp.kind == tFloat && t.compCount == 3:
			return AttribFloat32x3, 12, nil
		case comp.kind == tFloat && t.compCount == 4:
			return AttribFloat32x4, 16, nil
		default:
			return 0, 0, fmt.Errorf("unsupported vector attribute shape")
		}
	case tMatrix:
		if t.compCount == 4 {
			return AttribMatrix4, 64, nil
		}
		return 0, 0, fmt.Errorf("unsupported matrix attribute shape")
	default:
		return 0, 0, fmt.Errorf("unsupported vertex-input type kind %v", t.kind)
	}
}

func resolveScalarType(info *stageInfo, typeID uint32) (ScalarType, uint32, error) {
	t, ok := info.types[typeID]
	if !ok {
		return 0, 0, fmt.Errorf("unresolved type id %d", typeID)
	}
	switch t.kind {
	case tFloat:
		return ScalarFloat, 4, nil
	case tInt:
		return ScalarInt, 4, nil
	case tVector:
		comp := info.types[t.compType]
		switch {
		case comp.kind == tFloat && t.compCount == 2:
			return ScalarFloat2, 8, nil
		case comp.kind == tFloat && t.compCount == 3:
			return ScalarFloat3, 12, nil
		case comp.kind == tFloat && t.compCount == 4:
			return ScalarFloat4, 16, nil
		default:
			return 0, 0, fmt.Errorf("unsupported uniform member vector shape")
		}
	default:
		return 0, 0, fmt.Errorf("material uniform block members must be 32-bit scalar or vector types")
	}
}

func decorationOperand(decs map[uint32]map[uint32][]uint32, id, dec uint32) (uint32, bool) {
	byDec, ok := decs[id]
	if !ok {
		return 0, false
	}
	ops, ok := byDec[dec]
	if !ok || len(ops) == 0 {
		return 0, false
	}
	return ops[0], true
}

type reflectedBinding struct {
	Binding
	set uint32
}

func reflectBindings(info *stageInfo) ([]reflectedBinding, error) {
	var out []reflectedBinding
	for id, v := range info.variables {
		if v.storageClass != storageClassUniform && v.storageClass != storageClassUniformConstant {
			continue
		}
		ptr, ok := info.types[v.pointerType]
		if !ok || ptr.kind != tPointer {
			continue
		}
		set, hasSet := decorationOperand(info.decorations, id, decorationDescriptorSet)
		binding, hasBinding := decorationOperand(info.decorations, id, decorationBinding)
		if !hasSet || !hasBinding {
			continue
		}

		pointee := info.types[ptr.compType]
		arraySize := uint32(1)
		underlying := ptr.compType
		if pointee.kind == tArray {
			arraySize = pointee.compCount
			underlying = pointee.compType
			pointee = info.types[underlying]
		}

		switch pointee.kind {
		case tStruct:
			size, err := structBlockSize(info, underlying)
			if err != nil {
				return nil, err
			}
			out = append(out, reflectedBinding{
				set: set,
				Binding: Binding{
					Binding: binding, ArraySize: arraySize,
					Kind: DescriptorUniformBuffer, BlockBytes: size,
				},
			})
		case tSampledImage:
			out = append(out, reflectedBinding{
				set: set,
				Binding: Binding{
					Binding: binding, ArraySize: arraySize,
					Kind: DescriptorCombinedImageSampler,
				},
			})
		case tImage:
			out = append(out, reflectedBinding{
				set: set,
				Binding: Binding{
					Binding: binding, ArraySize: arraySize,
					Kind: DescriptorSampledImage,
				},
			})
		}
	}
	return out, nil
}

// structBlockSize computes a UBO struct's byte size as the last member's
// offset plus its size, per the std140/std430 layout a compiler already
// resolved into OpMemberDecorate Offset annotations.
func structBlockSize(info *stageInfo, structType uint32) (uint32, error) {
	t := info.types[structType]
	var maxEnd uint32
	for idx, memberType := range t.members {
		offset, _ := memberOffset(info, structType, uint32(idx))
		_, size, err := resolveScalarType(info, memberType)
		if err != nil {
			// non-scalar members (nested structs, matrices) still consume
			// space; fall back to a conservative 16-byte stride.
			size = 16
		}
		if end := offset + size; end > maxEnd {
			maxEnd = end
		}
	}
	return maxEnd, nil
}

func memberOffset(info *stageInfo, structType, member uint32) (uint32, bool) {
	byMember, ok := info.memberDecorations[structType]
	if !ok {
		return 0, false
	}
	decs, ok := byMember[member]
	if !ok {
		return 0, false
	}
	ops, ok := decs[decorationOffset]
	if !ok || len(ops) == 0 {
		return 0, false
	}
	return ops[0], true
}

// reflectMaterialProperties extracts the Material-set (index 1) property
// schema: one Vector property per UBO member, one Texture property per
// combined-image-sampler binding (spec §4.2.4).
func reflectMaterialProperties(info *stageInfo) ([]Property, error) {
	var props []Property
	for id, v := range info.variables {
		set, hasSet := decorationOperand(info.decorations, id, decorationDescriptorSet)
		if !hasSet || set != SetMaterial {
			continue
		}
		binding, _ := decorationOperand(info.decorations, id, decorationBinding)
		ptr, ok := info.types[v.pointerType]
		if !ok || ptr.kind != tPointer {
			continue
		}
		pointee := info.types[ptr.compType]
		arraySize := uint32(1)
		underlying := ptr.compType
		if pointee.kind == tArray {
			arraySize = pointee.compCount
			underlying = pointee.compType
			pointee = info.types[underlying]
		}

		switch pointee.kind {
		case tStruct:
			for idx, memberType := range pointee.members {
				name := info.memberNames[underlying][uint32(idx)]
				offset, _ := memberOffset(info, underlying, uint32(idx))
				scalar, _, err := resolveScalarType(info, memberType)
				if err != nil {
					return nil, fmt.Errorf("shader: material property %q: %w", name, err)
				}
				props = append(props, Property{
					Name: name, Kind: PropertyVector,
					VectorType: scalar, ByteOffset: offset,
				})
			}
		case tSampledImage:
			img := info.types[pointee.compType]
			props = append(props, Property{
				Name: info.names[id], Kind: PropertyTexture,
				ImageDim: uint8(img.compCount), Binding: binding, ArraySize: arraySize,
			})
		}
	}
	return dedupeProperties(props)
}

// dedupeProperties enforces spec §5.12: a property name must not be
// declared twice within a single stage's schema before the cross-stage
// merge runs.
func dedupeProperties(props []Property) ([]Property, error) {
	seen := make(map[string]bool, len(props))
	for _, p := range props {
		if seen[p.Name] {
			return nil, fmt.Errorf("shader: duplicate material property name %q", p.Name)
		}
		seen[p.Name] = true
	}
	return props, nil
}

func reflectPushConstants(info *stageInfo) (size uint64, count int, err error) {
	for id, v := range info.variables {
		if v.storageClass != storageClassPushConstant {
			continue
		}
		count++
		ptr := info.types[v.pointerType]
		structSize, serr := structBlockSize(info, ptr.compType)
		if serr != nil {
			return 0, 0, serr
		}
		if uint64(structSize) > size {
			size = uint64(structSize)
		}
		_ = id
	}
	return size, count, nil
}
