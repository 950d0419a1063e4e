package batchquad

import (
	"fmt"

	"github.com/fzipp/bmfont"
)

// Glyph is one character's placement within a font atlas page (spec.md
// §4.10 "font atlas ingestion"), in atlas-pixel coordinates.
type Glyph struct {
	Codepoint rune
	X, Y      uint16
	Width     uint16
	Height    uint16
	XOffset   int16
	YOffset   int16
	XAdvance  int16
	Page      uint8
}

// Atlas is a loaded bitmap-font description: one or more texture pages and
// the glyph metrics needed to lay out quads against them. Grounded on the
// teacher's engine/assets/loaders/bitmap_font.go FNT importer, generalized
// here to feed the batch-quad renderer directly instead of a resource-system
// intermediate (metadata.BitmapFontResourceData).
type Atlas struct {
	Face       string
	LineHeight int32
	Baseline   int32
	Pages      []string // page index -> relative image file path
	Glyphs     map[rune]Glyph
	Kerning    map[[2]rune]int16
}

// LoadFNT parses an Angelcode .fnt bitmap-font descriptor at path.
func LoadFNT(path string) (*Atlas, error) {
	font, err := bmfont.Load(path)
	if err != nil {
		return nil, fmt.Errorf("batchquad: load font atlas %q: %w", path, err)
	}
	d := font.Descriptor

	atlas := &Atlas{
		Face:       d.Info.Face,
		LineHeight: int32(d.Common.LineHeight),
		Baseline:   int32(d.Common.Base),
		Pages:      make([]string, len(d.Pages)),
		Glyphs:     make(map[rune]Glyph, len(d.Chars)),
		Kerning:    make(map[[2]rune]int16, len(d.Kerning)),
	}
	for _, p := range d.Pages {
		if int(p.ID) >= len(atlas.Pages) {
			continue
		}
		atlas.Pages[p.ID] = p.File
	}
	for _, g := range d.Chars {
		atlas.Glyphs[g.ID] = Glyph{
			Codepoint: g.ID,
			X:         uint16(g.X), Y: uint16(g.Y),
			Width: uint16(g.Width), Height: uint16(g.Height),
			XOffset: int16(g.XOffset), YOffset: int16(g.YOffset),
			XAdvance: int16(g.XAdvance), Page: uint8(g.Page),
		}
	}
	for pair, k := range d.Kerning {
		atlas.Kerning[[2]rune{pair.First, pair.Second}] = int16(k.Amount)
	}
	return atlas, nil
}

// Advance returns the horizontal advance, in pixels, from prev to cur: cur's
// XAdvance plus the (prev, cur) kerning, with no kerning when prev is 0
// (meaning "no previous glyph on this line"). It returns 0 if cur has no
// glyph in the atlas.
func (a *Atlas) Advance(prev, cur rune) int16 {
	g, ok := a.Glyphs[cur]
	if !ok {
		return 0
	}
	adv := g.XAdvance
	if prev != 0 {
		adv += a.Kerning[[2]rune{prev, cur}]
	}
	return adv
}
