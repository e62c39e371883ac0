package fonts

import (
	"fmt"
	"math"
	"strings"

	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/wudi/scanpdf/ir/semantic"
)

// LoadTrueType parses a TrueType/OpenType font, extracts basic metrics, and
// returns a semantic.Font configured for Type0 Identity-H usage with a
// FontFile2 stream. The full font is embedded (no subsetting).
func LoadTrueType(name string, data []byte) (*semantic.Font, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("truetype font data is empty")
	}
	font, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse truetype: %w", err)
	}
	unitsPerEm := font.UnitsPerEm()
	if unitsPerEm == 0 {
		return nil, fmt.Errorf("invalid unitsPerEm")
	}
	buf := &sfnt.Buffer{}
	ppem := fixed.Int26_6(unitsPerEm << 6)

	baseName := strings.TrimSpace(name)
	if ps, _ := font.Name(buf, sfnt.NameIDPostScript); len(ps) > 0 {
		baseName = ps
	}
	if baseName == "" {
		baseName = "CustomTT"
	}
	baseName = sanitizeName(baseName)

	widths := glyphWidths(font, buf, unitsPerEm, ppem)
	defaultWidth := widths[0]
	if defaultWidth == 0 {
		defaultWidth = 1000
	}

	metrics, _ := font.Metrics(buf, ppem, xfont.HintingNone)
	bounds, _ := font.Bounds(buf, ppem, xfont.HintingNone)
	descriptor := &semantic.FontDescriptor{
		FontName:    baseName,
		Flags:       32, // Nonsymbolic
		ItalicAngle: italicAngle(font),
		Ascent:      scaleFixed(metrics.Ascent, unitsPerEm),
		Descent:     -scaleFixed(metrics.Descent, unitsPerEm),
		CapHeight:   scaleFixed(metrics.CapHeight, unitsPerEm),
		StemV:       80,
		FontBBox: [4]float64{
			scaleFixed(bounds.Min.X, unitsPerEm),
			-scaleFixed(bounds.Max.Y, unitsPerEm),
			scaleFixed(bounds.Max.X, unitsPerEm),
			-scaleFixed(bounds.Min.Y, unitsPerEm),
		},
		FontFile:     data,
		FontFileType: "FontFile2",
	}
	if descriptor.CapHeight == 0 {
		descriptor.CapHeight = descriptor.Ascent
	}

	runeGlyphs := nominalGlyphs(font, buf)

	descendant := &semantic.CIDFont{
		Subtype:       "CIDFontType2",
		BaseFont:      baseName,
		CIDSystemInfo: semantic.CIDSystemInfo{Registry: "Adobe", Ordering: "Identity", Supplement: 0},
		DW:            defaultWidth,
		W:             widths,
		Descriptor:    descriptor,
	}

	return &semantic.Font{
		Subtype:        "Type0",
		BaseFont:       baseName,
		Encoding:       "Identity-H",
		Widths:         widths,
		ToUnicode:      make(map[int][]rune),
		UsedGlyphs:     make(map[int]bool),
		RuneGlyphs:     runeGlyphs,
		DescendantFont: descendant,
		Descriptor:     descriptor,
	}, nil
}

func glyphWidths(font *sfnt.Font, buf *sfnt.Buffer, unitsPerEm sfnt.Units, ppem fixed.Int26_6) map[int]int {
	glyphs := font.NumGlyphs()
	widths := make(map[int]int, glyphs)
	for i := 0; i < glyphs; i++ {
		adv, err := font.GlyphAdvance(buf, sfnt.GlyphIndex(i), ppem, xfont.HintingNone)
		if err != nil {
			continue
		}
		widths[i] = int(math.Round(scaleFixed(adv, unitsPerEm)))
	}
	return widths
}

// nominalGlyphs maps the printable ranges text is likely to use. Runes
// outside these ranges are still resolved through shaping.
func nominalGlyphs(font *sfnt.Font, buf *sfnt.Buffer) map[rune]int {
	ranges := [][2]rune{
		{0x20, 0x7E},     // Basic Latin
		{0xA0, 0x24F},    // Latin-1 Supplement, Latin Extended-A/B
		{0x370, 0x3FF},   // Greek
		{0x400, 0x52F},   // Cyrillic and supplement
		{0x2010, 0x206F}, // General punctuation
		{0x20A0, 0x20CF}, // Currency
	}
	m := make(map[rune]int)
	for _, rg := range ranges {
		for r := rg[0]; r <= rg[1]; r++ {
			gid, err := font.GlyphIndex(buf, r)
			if err != nil || gid == 0 {
				continue
			}
			m[r] = int(gid)
		}
	}
	return m
}

func italicAngle(font *sfnt.Font) float64 {
	post := font.PostTable()
	if post == nil {
		return 0
	}
	return post.ItalicAngle
}

func scaleFixed(val fixed.Int26_6, unitsPerEm sfnt.Units) float64 {
	return float64(val) * 1000.0 / (64.0 * float64(unitsPerEm))
}

// sanitizeName strips characters that are not allowed in a PDF name token.
func sanitizeName(name string) string {
	var sb strings.Builder
	for _, r := range name {
		if r <= ' ' || r > '~' || strings.ContainsRune("()<>[]{}/%#", r) {
			continue
		}
		sb.WriteRune(r)
	}
	if sb.Len() == 0 {
		return "CustomTT"
	}
	return sb.String()
}
