package shader

// Hand-assembled SPIR-V instruction streams exercising just the opcodes
// parseStage walks (see spirv.go) — there is no SPIR-V assembler in the
// corpus, so these build the minimal module spirv.go needs word-by-word,
// the same way minimalModule() in cache_test.go does for the empty case.

import "testing"

func header(bound uint32) []uint32 {
	return []uint32{spirvMagic, 0x00010000, 0, bound, 0}
}

func inst(op uint32, args ...uint32) []uint32 {
	words := append([]uint32{0}, args...)
	words[0] = (uint32(len(words)) << 16) | op
	return words
}

func flatten(chunks ...[]uint32) []uint32 {
	var out []uint32
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

func encodeString(s string) []uint32 {
	b := append([]byte(s), 0)
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
	}
	return out
}

// vertexStageWords builds a vertex stage declaring two attributes:
// location 0 = vec3 ("inPos"), location 1 = vec2 ("inUV") — spec.md
// Scenario S2's "attributes [vec3, vec2]".
func vertexStageWords() []uint32 {
	return flatten(
		header(100),
		inst(opTypeFloat, 1),
		inst(opTypeVector, 2, 1, 3), // vec3
		inst(opTypeVector, 3, 1, 2), // vec2
		inst(opTypePointer, 4, storageClassInput, 2),
		inst(opTypePointer, 5, storageClassInput, 3),
		inst(opVariable, 4, 10, storageClassInput),
		inst(opVariable, 5, 11, storageClassInput),
		inst(opName, append([]uint32{10}, encodeString("inPos")...)...),
		inst(opName, append([]uint32{11}, encodeString("inUV")...)...),
		inst(opDecorate, 10, decorationLocation, 0),
		inst(opDecorate, 11, decorationLocation, 1),
	)
}

// fragmentStageWords builds a fragment stage declaring the Material set
// (index 1) binding 0 as a UBO `{float time; vec4 tint}` — spec.md
// Scenario S2's uniformBufferSize==32 / properties case.
func fragmentStageWords() []uint32 {
	return flatten(
		header(100),
		inst(opTypeFloat, 1),
		inst(opTypeVector, 2, 1, 4), // vec4
		inst(opTypeStruct, 3, 1, 2),
		inst(opTypePointer, 4, storageClassUniform, 3),
		inst(opVariable, 4, 20, storageClassUniform),
		inst(opMemberName, append([]uint32{3, 0}, encodeString("time")...)...),
		inst(opMemberName, append([]uint32{3, 1}, encodeString("tint")...)...),
		inst(opMemberDecorate, 3, 0, decorationOffset, 0),
		inst(opMemberDecorate, 3, 1, decorationOffset, 16),
		inst(opDecorate, 20, decorationDescriptorSet, SetMaterial),
		inst(opDecorate, 20, decorationBinding, 0),
	)
}

// TestReflectScenarioS2 checks spec.md Scenario S2 exactly: a vertex stage
// declaring attributes [vec3, vec2] and a fragment stage declaring set 1
// binding 0 as {float time; vec4 tint} reflects to uniformBufferSize==32
// and properties {time: Vector{float,0}, tint: Vector{vec4,16}}.
func TestReflectScenarioS2(t *testing.T) {
	code := &Bytecode{Stages: []Stage{
		{Role: StageVertex, Words: vertexStageWords()},
		{Role: StageFragment, Words: fragmentStageWords()},
	}}

	r, err := Reflect(code)
	if err != nil {
		t.Fatalf("Reflect: %v", err)
	}

	if len(r.Attributes) != 2 {
		t.Fatalf("expected 2 vertex attributes, got %d", len(r.Attributes))
	}
	if r.Attributes[0].Location != 0 || r.Attributes[0].Type != AttribFloat32x3 {
		t.Fatalf("attribute 0: expected location 0 vec3, got location %d type %v", r.Attributes[0].Location, r.Attributes[0].Type)
	}
	if r.Attributes[1].Location != 1 || r.Attributes[1].Type != AttribFloat32x2 {
		t.Fatalf("attribute 1: expected location 1 vec2, got location %d type %v", r.Attributes[1].Location, r.Attributes[1].Type)
	}

	materialBindings := r.Sets[SetMaterial]
	if len(materialBindings) != 1 || materialBindings[0].Kind != DescriptorUniformBuffer {
		t.Fatalf("expected one material-set UBO binding, got %+v", materialBindings)
	}
	if materialBindings[0].BlockBytes != 32 {
		t.Fatalf("expected uniformBufferSize == 32, got %d", materialBindings[0].BlockBytes)
	}

	if len(r.Properties) != 2 {
		t.Fatalf("expected 2 material properties, got %d", len(r.Properties))
	}
	byName := map[string]Property{}
	for _, p := range r.Properties {
		byName[p.Name] = p
	}
	time, ok := byName["time"]
	if !ok || time.Kind != PropertyVector || time.VectorType != ScalarFloat || time.ByteOffset != 0 {
		t.Fatalf("expected time: Vector{float,0}, got %+v (ok=%v)", time, ok)
	}
	tint, ok := byName["tint"]
	if !ok || tint.Kind != PropertyVector || tint.VectorType != ScalarFloat4 || tint.ByteOffset != 16 {
		t.Fatalf("expected tint: Vector{vec4,16}, got %+v (ok=%v)", tint, ok)
	}
}

// TestReflectRejectsMismatchedCrossStageBinding checks that two stages
// disagreeing on a (set,binding)'s descriptor type is a construction
// error (spec.md §4.2.2 "must agree across stages").
func TestReflectRejectsMismatchedCrossStageBinding(t *testing.T) {
	// Two stages disagree on set 1 binding 0's descriptor type: the
	// fragment stage declares a UBO, a synthetic vertex stage declares a
	// sampler at the same (set,binding). Reflect must reject this per
	// spec.md §4.2.2 ("must agree across stages").
	mismatched := flatten(
		header(100),
		inst(opTypeFloat, 1),
		inst(opTypeImage, 2, 1, 2),
		inst(opTypeSampledImg, 3, 2),
		inst(opTypePointer, 4, storageClassUniformConstant, 3),
		inst(opVariable, 4, 20, storageClassUniformConstant),
		inst(opDecorate, 20, decorationDescriptorSet, SetMaterial),
		inst(opDecorate, 20, decorationBinding, 0),
	)

	code := &Bytecode{Stages: []Stage{
		{Role: StageVertex, Words: mismatched},
		{Role: StageFragment, Words: fragmentStageWords()},
	}}

	if _, err := Reflect(code); err == nil {
		t.Fatal("expected Reflect to reject a cross-stage descriptor-type mismatch at (set 1, binding 0)")
	}
}

// vertexStageWordsWithGap declares two attributes at locations 0 and 2,
// leaving location 1 unused.
func vertexStageWordsWithGap() []uint32 {
	return flatten(
		header(100),
		inst(opTypeFloat, 1),
		inst(opTypeVector, 2, 1, 3), // vec3
		inst(opTypeVector, 3, 1, 2), // vec2
		inst(opTypePointer, 4, storageClassInput, 2),
		inst(opTypePointer, 5, storageClassInput, 3),
		inst(opVariable, 4, 10, storageClassInput),
		inst(opVariable, 5, 11, storageClassInput),
		inst(opName, append([]uint32{10}, encodeString("inPos")...)...),
		inst(opName, append([]uint32{11}, encodeString("inUV")...)...),
		inst(opDecorate, 10, decorationLocation, 0),
		inst(opDecorate, 11, decorationLocation, 2),
	)
}

// TestReflectRejectsNonContiguousVertexLocations checks spec.md §4.2 point
// 1: vertex-input locations must be contiguous 0..N-1; a gap is a fatal
// construction error, not silently accepted.
func TestReflectRejectsNonContiguousVertexLocations(t *testing.T) {
	code := &Bytecode{Stages: []Stage{
		{Role: StageVertex, Words: vertexStageWordsWithGap()},
		{Role: StageFragment, Words: fragmentStageWords()},
	}}

	if _, err := Reflect(code); err == nil {
		t.Fatal("expected Reflect to reject non-contiguous vertex input locations (gap at 1)")
	}
}
