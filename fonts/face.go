package fonts

import (
	"github.com/wudi/scanpdf/ir/semantic"
)

// Face couples a font resource with the machinery needed to measure and
// encode text in it. Embedded fonts are shaped; standard fonts use their
// single-byte encoding. A Face records every glyph it encodes in the font's
// ToUnicode map so the written PDF stays searchable.
type Face struct {
	Font   *semantic.Font
	shaper *Shaper
	widths map[string]float64
}

// NewFace prepares font for layout.
func NewFace(font *semantic.Font) (*Face, error) {
	f := &Face{Font: font, widths: make(map[string]float64)}
	if font.IsComposite() && font.IsEmbedded() {
		s, err := NewShaper(font)
		if err != nil {
			return nil, err
		}
		f.shaper = s
	}
	return f, nil
}

// Measure returns the advance width of text at size, in points.
func (f *Face) Measure(text string, size float64) float64 {
	if size <= 0 {
		size = 12
	}
	if w, ok := f.widths[text]; ok {
		return w * size / 1000
	}
	var units float64
	switch {
	case f.shaper != nil:
		for _, g := range f.shaper.Shape(text) {
			units += g.XAdvance
		}
	case f.Font.IsComposite():
		for _, r := range text {
			units += float64(f.glyphWidth(f.Font.RuneGlyphs[r]))
		}
	default:
		for _, b := range EncodeWinAnsi(text) {
			w, ok := f.Font.Widths[int(b)]
			if !ok {
				w = 500
			}
			units += float64(w)
		}
	}
	f.widths[text] = units
	return units * size / 1000
}

// Encode converts text to the byte codes shown by a Tj operator.
func (f *Face) Encode(text string) []byte {
	if !f.Font.IsComposite() {
		return EncodeWinAnsi(text)
	}
	if f.shaper != nil {
		glyphs := f.shaper.Shape(text)
		out := make([]byte, 0, len(glyphs)*2)
		for _, g := range glyphs {
			f.remember(g.ID, g.Runes)
			out = append(out, byte(g.ID>>8), byte(g.ID))
		}
		return out
	}
	out := make([]byte, 0, len(text)*2)
	for _, r := range text {
		gid := f.Font.RuneGlyphs[r]
		f.remember(gid, []rune{r})
		out = append(out, byte(gid>>8), byte(gid))
	}
	return out
}

// Covers reports whether the font has a glyph for every rune of text.
func (f *Face) Covers(text string) bool {
	if !f.Font.IsComposite() {
		return Representable(text)
	}
	for _, r := range text {
		if r == ' ' || r == '\t' {
			continue
		}
		if _, ok := f.Font.RuneGlyphs[r]; ok {
			continue
		}
		if f.shaper == nil {
			return false
		}
		for _, g := range f.shaper.Shape(string(r)) {
			if g.ID == 0 {
				return false
			}
		}
	}
	return true
}

// remember marks gid as drawn. Only the first glyph of a cluster carries
// runes; the rest still need their advance written.
func (f *Face) remember(gid int, runes []rune) {
	if f.Font.UsedGlyphs == nil {
		f.Font.UsedGlyphs = make(map[int]bool)
	}
	f.Font.UsedGlyphs[gid] = true
	if gid == 0 || len(runes) == 0 {
		return
	}
	if f.Font.ToUnicode == nil {
		f.Font.ToUnicode = make(map[int][]rune)
	}
	if _, ok := f.Font.ToUnicode[gid]; !ok {
		f.Font.ToUnicode[gid] = append([]rune(nil), runes...)
	}
}

func (f *Face) glyphWidth(gid int) int {
	if w, ok := f.Font.Widths[gid]; ok {
		return w
	}
	if f.Font.DescendantFont != nil && f.Font.DescendantFont.DW > 0 {
		return f.Font.DescendantFont.DW
	}
	return 1000
}

// MeasureString is a one-off Measure for callers without a Face.
func MeasureString(font *semantic.Font, text string, size float64) (float64, error) {
	face, err := NewFace(font)
	if err != nil {
		return 0, err
	}
	return face.Measure(text, size), nil
}
