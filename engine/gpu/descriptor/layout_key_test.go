package descriptor

import (
	"testing"

	"github.com/kilnforge/ember/engine/gpu/shader"
)

// TestCanonicalSetKeyIsShuffleInvariant checks spec.md Testable Property 3:
// two binding lists that differ only in declaration order produce the same
// canonical key.
func TestCanonicalSetKeyIsShuffleInvariant(t *testing.T) {
	a := []shader.Binding{
		{Binding: 0, ArraySize: 1, Kind: shader.DescriptorUniformBuffer, Stages: shader.StageMaskVertex, BlockBytes: 64},
		{Binding: 1, ArraySize: 4, Kind: shader.DescriptorCombinedImageSampler, Stages: shader.StageMaskFragment},
	}
	b := []shader.Binding{a[1], a[0]}

	ka, kb := CanonicalSetKey(a), CanonicalSetKey(b)
	if ka != kb {
		t.Fatalf("expected shuffle-invariant keys, got %q vs %q", ka, kb)
	}
}

// TestCanonicalSetKeyDistinguishesStructure checks that a genuinely
// different binding list (different kind, stage mask or array size)
// produces a different key.
func TestCanonicalSetKeyDistinguishesStructure(t *testing.T) {
	base := []shader.Binding{
		{Binding: 0, ArraySize: 1, Kind: shader.DescriptorUniformBuffer, Stages: shader.StageMaskVertex},
	}
	variants := [][]shader.Binding{
		{{Binding: 0, ArraySize: 2, Kind: shader.DescriptorUniformBuffer, Stages: shader.StageMaskVertex}},
		{{Binding: 0, ArraySize: 1, Kind: shader.DescriptorSampledImage, Stages: shader.StageMaskVertex}},
		{{Binding: 0, ArraySize: 1, Kind: shader.DescriptorUniformBuffer, Stages: shader.StageMaskFragment}},
		{{Binding: 1, ArraySize: 1, Kind: shader.DescriptorUniformBuffer, Stages: shader.StageMaskVertex}},
	}

	baseKey := CanonicalSetKey(base)
	for i, v := range variants {
		if CanonicalSetKey(v) == baseKey {
			t.Fatalf("variant %d unexpectedly collided with base key %q", i, baseKey)
		}
	}
}

// TestCanonicalPipelineKeyOrdersBySetIndex checks that set order in the
// input map never affects the resulting key — only set index does.
func TestCanonicalPipelineKeyOrdersBySetIndex(t *testing.T) {
	sets := map[uint32][]shader.Binding{
		2: {{Binding: 0, ArraySize: 1, Kind: shader.DescriptorSampler, Stages: shader.StageMaskFragment}},
		0: {{Binding: 0, ArraySize: 1, Kind: shader.DescriptorUniformBuffer, Stages: shader.StageMaskVertex}},
	}
	key := CanonicalPipelineKey(sets)

	idx0 := indexOf(t, key, "0:")
	idx2 := indexOf(t, key, "2:")
	if idx0 >= idx2 {
		t.Fatalf("expected set 0 to precede set 2 in %q", key)
	}
}

func indexOf(t *testing.T, s, substr string) int {
	t.Helper()
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	t.Fatalf("expected %q to contain %q", s, substr)
	return -1
}
