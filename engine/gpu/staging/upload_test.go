package staging

// chooseChunk is the only part of the dynamic staging ring that doesn't
// touch a real GPU context (everything else in this package allocates and
// maps actual device memory, which the corpus never unit-tests either —
// see engine/renderer/vulkan/*.go in the teacher, none of which has a
// _test.go). This exercises the first-fit selection spec.md §4.7 and
// Scenario S4 depend on.

import "testing"

func TestChooseChunkPicksFirstChunkWithRoom(t *testing.T) {
	chunks := []*chunk{
		{fill: 60}, // 4 bytes free of a 64-byte chunk
		{fill: 0},  // 64 bytes free
	}

	got := chooseChunk(chunks, 64, 4)
	if got != chunks[0] {
		t.Fatalf("expected the first chunk with sufficient free suffix, got %p want %p", got, chunks[0])
	}

	got = chooseChunk(chunks, 64, 5)
	if got != chunks[1] {
		t.Fatalf("expected to skip chunk 0 (4 bytes free) for a 5-byte write and land on chunk 1, got %p want %p", got, chunks[1])
	}
}

func TestChooseChunkReturnsNilWhenNoneFit(t *testing.T) {
	chunks := []*chunk{{fill: 64}, {fill: 40}}
	if got := chooseChunk(chunks, 64, 32); got != nil {
		t.Fatalf("expected nil when every chunk's free suffix is too small, got %p", got)
	}
}

func TestChooseChunkOnEmptyRingReturnsNil(t *testing.T) {
	if got := chooseChunk(nil, 64, 1); got != nil {
		t.Fatalf("expected nil on an empty chunk ring, got %p", got)
	}
}
