package pipeline

import "testing"

// TestMetaMaterialPackRoundTrip checks spec.md §3/Testable Property: packing
// a MetaMaterialDesc and reading it back field-by-field recovers every value
// exactly, across a spread of cull modes, blend factors/ops and sample
// counts.
func TestMetaMaterialPackRoundTrip(t *testing.T) {
	cases := []MetaMaterialDesc{
		{},
		{
			CullMode:    CullBack,
			DepthTest:   true,
			DepthWrite:  true,
			Wireframe:   false,
			BlendEnable: false,
			Samples:     1,
		},
		{
			CullMode:       CullFrontAndBack,
			DepthTest:      false,
			DepthWrite:     false,
			Wireframe:      true,
			BlendEnable:    true,
			ColorSrcFactor: BlendFactorSrcAlpha,
			ColorDstFactor: BlendFactorOneMinusSrcAlpha,
			ColorBlendOp:   BlendOpAdd,
			AlphaSrcFactor: BlendFactorOne,
			AlphaDstFactor: BlendFactorZero,
			AlphaBlendOp:   BlendOpMax,
			Samples:        4,
		},
		{
			CullMode:       CullFront,
			DepthTest:      true,
			DepthWrite:     false,
			BlendEnable:    true,
			ColorSrcFactor: BlendFactorDstColor,
			ColorDstFactor: BlendFactorOneMinusDstColor,
			ColorBlendOp:   BlendOpReverseSubtract,
			AlphaSrcFactor: BlendFactorDstAlpha,
			AlphaDstFactor: BlendFactorOneMinusDstAlpha,
			AlphaBlendOp:   BlendOpMin,
			Samples:        8,
		},
	}

	for i, d := range cases {
		m := Pack(d)

		if got := m.CullMode(); got != d.CullMode {
			t.Errorf("case %d: CullMode = %v, want %v", i, got, d.CullMode)
		}
		if got := m.DepthTest(); got != d.DepthTest {
			t.Errorf("case %d: DepthTest = %v, want %v", i, got, d.DepthTest)
		}
		if got := m.DepthWrite(); got != d.DepthWrite {
			t.Errorf("case %d: DepthWrite = %v, want %v", i, got, d.DepthWrite)
		}
		if got := m.Wireframe(); got != d.Wireframe {
			t.Errorf("case %d: Wireframe = %v, want %v", i, got, d.Wireframe)
		}
		if got := m.BlendEnable(); got != d.BlendEnable {
			t.Errorf("case %d: BlendEnable = %v, want %v", i, got, d.BlendEnable)
		}
		if got := m.ColorSrcFactor(); got != d.ColorSrcFactor {
			t.Errorf("case %d: ColorSrcFactor = %v, want %v", i, got, d.ColorSrcFactor)
		}
		if got := m.ColorDstFactor(); got != d.ColorDstFactor {
			t.Errorf("case %d: ColorDstFactor = %v, want %v", i, got, d.ColorDstFactor)
		}
		if got := m.ColorBlendOp(); got != d.ColorBlendOp {
			t.Errorf("case %d: ColorBlendOp = %v, want %v", i, got, d.ColorBlendOp)
		}
		if got := m.AlphaSrcFactor(); got != d.AlphaSrcFactor {
			t.Errorf("case %d: AlphaSrcFactor = %v, want %v", i, got, d.AlphaSrcFactor)
		}
		if got := m.AlphaDstFactor(); got != d.AlphaDstFactor {
			t.Errorf("case %d: AlphaDstFactor = %v, want %v", i, got, d.AlphaDstFactor)
		}
		if got := m.AlphaBlendOp(); got != d.AlphaBlendOp {
			t.Errorf("case %d: AlphaBlendOp = %v, want %v", i, got, d.AlphaBlendOp)
		}

		wantSamples := d.Samples
		if wantSamples == 0 {
			wantSamples = 1
		}
		if got := m.SampleCount(); got != uint32(wantSamples) {
			t.Errorf("case %d: SampleCount = %d, want %d", i, got, wantSamples)
		}
	}
}

// TestMetaMaterialDistinctDescsPackDistinctly checks that MetaMaterial is
// safe to use as a map-key component: descriptions differing in exactly one
// field never collide.
func TestMetaMaterialDistinctDescsPackDistinctly(t *testing.T) {
	base := MetaMaterialDesc{CullMode: CullBack, DepthTest: true, DepthWrite: true, Samples: 1}
	variants := []MetaMaterialDesc{
		{CullMode: CullNone, DepthTest: true, DepthWrite: true, Samples: 1},
		{CullMode: CullBack, DepthTest: false, DepthWrite: true, Samples: 1},
		{CullMode: CullBack, DepthTest: true, DepthWrite: false, Samples: 1},
		{CullMode: CullBack, DepthTest: true, DepthWrite: true, Samples: 2},
		{CullMode: CullBack, DepthTest: true, DepthWrite: true, Wireframe: true, Samples: 1},
	}

	baseKey := Pack(base)
	for i, v := range variants {
		if Pack(v) == baseKey {
			t.Fatalf("variant %d unexpectedly packed identically to base", i)
		}
	}
}
