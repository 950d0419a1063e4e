// Package shader implements the reflection-driven shader pipeline: a
// container format bundling a shader's per-stage SPIR-V words, a reflector
// that walks those words into vertex attributes, descriptor bindings, push
// constants and a material property schema, and the refcounted module
// cache that deduplicates shader objects by source identifier.
//
// Grounded on the teacher's engine/assets/loaders/binary.go (bytesToBytecode
// packs a raw byte slice into []uint32 words) and the resource-header
// convention in engine/renderer/metadata/resource.go (magic number + version
// + reserved fields prefixing a binary asset).
package shader

import (
	"encoding/binary"
	"fmt"

	"github.com/kilnforge/ember/engine/core"
)

// Magic identifies an Ember shader container: the ASCII bytes "SHDR" packed
// big-endian, mirroring the teacher's single uint32 ResourceMagic field.
const Magic uint32 = 0x53484452

// ContainerVersion is the current on-disk format version.
const ContainerVersion uint8 = 1

// StageRole identifies which pipeline stage a block of SPIR-V words targets.
type StageRole uint8

const (
	StageVertex StageRole = iota
	StageFragment
	StageGeometry
	StageCompute
)

func (r StageRole) String() string {
	switch r {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageGeometry:
		return "geometry"
	case StageCompute:
		return "compute"
	default:
		return "unknown"
	}
}

// Stage is one compiled SPIR-V module plus the role it plays.
type Stage struct {
	Role  StageRole
	Words []uint32
}

// Bytecode is the decoded form of a shader container: one or more stages
// bundled together (spec: "a triple of bytecode modules (vertex, optional
// geometry, fragment)").
type Bytecode struct {
	Stages []Stage
}

// Encode serializes b into the container format:
//
//	magic      uint32
//	version    uint8
//	stageCount uint8
//	reserved   uint16
//	per stage: role uint8, reserved [3]byte, wordCount uint32, words []uint32
//
// All integers are little-endian.
func Encode(b *Bytecode) []byte {
	size := 4 + 1 + 1 + 2
	for _, st := range b.Stages {
		size += 1 + 3 + 4 + len(st.Words)*4
	}
	out := make([]byte, size)
	off := 0
	binary.LittleEndian.PutUint32(out[off:], Magic)
	off += 4
	out[off] = ContainerVersion
	off++
	out[off] = uint8(len(b.Stages))
	off++
	off += 2 // reserved

	for _, st := range b.Stages {
		out[off] = uint8(st.Role)
		off += 1 + 3
		binary.LittleEndian.PutUint32(out[off:], uint32(len(st.Words)))
		off += 4
		for _, w := range st.Words {
			binary.LittleEndian.PutUint32(out[off:], w)
			off += 4
		}
	}
	return out
}

// Decode parses the container format produced by Encode, returning
// core.ErrShaderBytecodeInvalid wrapped with context on any malformed input.
func Decode(buf []byte) (*Bytecode, error) {
	if len(buf) < 8 {
		return nil, fmt.Errorf("shader: %w: bytecode container truncated: %d bytes", core.ErrShaderBytecodeInvalid, len(buf))
	}
	if got := binary.LittleEndian.Uint32(buf[0:4]); got != Magic {
		return nil, fmt.Errorf("shader: %w: bad container magic 0x%08x", core.ErrShaderBytecodeInvalid, got)
	}
	version := buf[4]
	if version != ContainerVersion {
		return nil, fmt.Errorf("shader: %w: unsupported container version %d", core.ErrShaderBytecodeInvalid, version)
	}
	stageCount := int(buf[5])
	off := 8

	b := &Bytecode{Stages: make([]Stage, 0, stageCount)}
	for i := 0; i < stageCount; i++ {
		if off+8 > len(buf) {
			return nil, fmt.Errorf("shader: %w: truncated stage header at offset %d", core.ErrShaderBytecodeInvalid, off)
		}
		role := StageRole(buf[off])
		off += 4
		wordCount := binary.LittleEndian.Uint32(buf[off:])
		off += 4
		need := int(wordCount) * 4
		if off+need > len(buf) {
			return nil, fmt.Errorf("shader: %w: truncated stage body: need %d bytes, have %d", core.ErrShaderBytecodeInvalid, need, len(buf)-off)
		}
		words := make([]uint32, wordCount)
		for w := range words {
			words[w] = binary.LittleEndian.Uint32(buf[off:])
			off += 4
		}
		b.Stages = append(b.Stages, Stage{Role: role, Words: words})
		off += 0
	}
	return b, nil
}

// bytesToWords packs a raw byte slice (e.g. a .spv file read straight off
// disk) into SPIR-V's native uint32 words, little-endian as the SPIR-V spec
// requires. Mirrors the teacher's bytesToBytecode helper.
func bytesToWords(b []byte) []uint32 {
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return words
}

// FromSPIRV builds a single Stage directly from raw SPIR-V bytes,
// the on-disk form produced by a shader compiler (glslangValidator, etc.).
func FromSPIRV(role StageRole, raw []byte) Stage {
	return Stage{Role: role, Words: bytesToWords(raw)}
}
