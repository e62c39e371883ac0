package fonts

import (
	"bytes"
	"fmt"
	"unicode"

	"github.com/go-text/typesetting/di"
	gofont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"

	"github.com/wudi/scanpdf/ir/semantic"
)

// ShapedGlyph represents a single shaped glyph with positioning information.
type ShapedGlyph struct {
	ID       int
	Cluster  int
	Runes    []rune  // source text this glyph stands for; empty for trailing glyphs of a cluster
	XAdvance float64 // In PDF text units (1/1000 em)
	YAdvance float64
	XOffset  float64
	YOffset  float64
}

// Shaper runs HarfBuzz shaping for one embedded font. It keeps the parsed
// face between calls and is not safe for concurrent use.
type Shaper struct {
	face   *gofont.Face
	shaper shaping.HarfbuzzShaper
}

// NewShaper parses the font program embedded in font.
func NewShaper(font *semantic.Font) (*Shaper, error) {
	if !font.IsEmbedded() {
		return nil, fmt.Errorf("font %q has no embedded program", fontName(font))
	}
	face, err := gofont.ParseTTF(bytes.NewReader(font.Descriptor.FontFile))
	if err != nil {
		return nil, fmt.Errorf("parse face: %w", err)
	}
	return &Shaper{face: face}, nil
}

// ShapeText shapes the given text using the provided font and returns the glyphs and positioning.
// Fonts without an embedded program yield no glyphs.
func ShapeText(text string, font *semantic.Font) ([]ShapedGlyph, error) {
	if !font.IsEmbedded() {
		return nil, nil
	}
	s, err := NewShaper(font)
	if err != nil {
		return nil, err
	}
	return s.Shape(text), nil
}

// Shape shapes a single run of text.
func (s *Shaper) Shape(text string) []ShapedGlyph {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	script := detectScript(runes)

	// 1000 units per em so advances come out in PDF glyph space.
	size := fixed.Int26_6(1000 * 64)

	input := shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: scriptDirection(script),
		Face:      s.face,
		Size:      size,
		Script:    script,
		Language:  language.DefaultLanguage(),
	}
	output := s.shaper.Shape(input)

	result := make([]ShapedGlyph, 0, len(output.Glyphs))
	for _, g := range output.Glyphs {
		result = append(result, ShapedGlyph{
			ID:       int(g.GlyphID),
			Cluster:  g.ClusterIndex,
			XAdvance: float64(g.XAdvance) / 64.0,
			YAdvance: float64(g.YAdvance) / 64.0,
			XOffset:  float64(g.XOffset) / 64.0,
			YOffset:  float64(g.YOffset) / 64.0,
		})
	}
	attachClusterText(result, runes)
	return result
}

// attachClusterText assigns each cluster's source runes to the first glyph
// of that cluster, which is what a ToUnicode map needs.
func attachClusterText(glyphs []ShapedGlyph, runes []rune) {
	starts := make(map[int]bool, len(glyphs))
	for _, g := range glyphs {
		starts[g.Cluster] = true
	}
	seen := make(map[int]bool, len(glyphs))
	for i := range glyphs {
		c := glyphs[i].Cluster
		if seen[c] || c < 0 || c >= len(runes) {
			continue
		}
		seen[c] = true
		end := c + 1
		for end < len(runes) && !starts[end] {
			end++
		}
		glyphs[i].Runes = runes[c:end]
	}
}

func fontName(font *semantic.Font) string {
	if font == nil {
		return ""
	}
	return font.BaseFont
}

func scriptDirection(script language.Script) di.Direction {
	switch script {
	case language.Arabic, language.Hebrew, language.Syriac, language.Thaana, language.Nko:
		return di.DirectionRTL
	default:
		return di.DirectionLTR
	}
}

func detectScript(runes []rune) language.Script {
	counts := make(map[language.Script]int)
	maxCount := 0
	bestScript := language.Latin

	for _, r := range runes {
		script := scriptFromRune(r)
		if script == language.Unknown {
			continue
		}
		counts[script]++
		if counts[script] > maxCount {
			maxCount = counts[script]
			bestScript = script
		}
	}
	return bestScript
}

func scriptFromRune(r rune) language.Script {
	switch {
	case unicode.Is(unicode.Latin, r):
		return language.Latin
	case unicode.Is(unicode.Cyrillic, r):
		return language.Cyrillic
	case unicode.Is(unicode.Greek, r):
		return language.Greek
	case unicode.Is(unicode.Arabic, r):
		return language.Arabic
	case unicode.Is(unicode.Hebrew, r):
		return language.Hebrew
	case unicode.Is(unicode.Devanagari, r):
		return language.Devanagari
	case unicode.Is(unicode.Thai, r):
		return language.Thai
	case unicode.Is(unicode.Han, r):
		return language.Han
	case unicode.Is(unicode.Hiragana, r):
		return language.Hiragana
	case unicode.Is(unicode.Katakana, r):
		return language.Katakana
	case unicode.Is(unicode.Hangul, r):
		return language.Hangul
	}
	return language.Unknown
}
