package fonts

import (
	"golang.org/x/text/encoding/charmap"

	"github.com/wudi/scanpdf/ir/semantic"
)

// Helvetica returns the standard-14 Helvetica font with WinAnsi encoding.
// It needs no embedding but can only show the Windows-1252 repertoire.
func Helvetica() *semantic.Font {
	widths := make(map[int]int, len(helveticaWidths))
	for code, w := range helveticaWidths {
		widths[code] = w
	}
	return &semantic.Font{
		Subtype:  "Type1",
		BaseFont: "Helvetica",
		Encoding: "WinAnsiEncoding",
		Widths:   widths,
	}
}

// EncodeWinAnsi encodes text to single-byte WinAnsi codes. Runes outside the
// encoding are dropped; tabs become a space.
func EncodeWinAnsi(text string) []byte {
	out := make([]byte, 0, len(text))
	for _, r := range text {
		if r == '\t' {
			r = ' '
		}
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok || b < 0x20 {
			continue
		}
		out = append(out, b)
	}
	return out
}

// Representable reports whether every rune of text survives EncodeWinAnsi.
func Representable(text string) bool {
	for _, r := range text {
		if r == '\t' {
			continue
		}
		if b, ok := charmap.Windows1252.EncodeRune(r); !ok || b < 0x20 {
			return false
		}
	}
	return true
}

// helveticaWidths holds the AFM advance widths of Helvetica for WinAnsi codes.
var helveticaWidths = map[int]int{
	0x20: 278, 0x21: 278, 0x22: 355, 0x23: 556, 0x24: 556, 0x25: 889, 0x26: 667, 0x27: 191,
	0x28: 333, 0x29: 333, 0x2A: 389, 0x2B: 584, 0x2C: 278, 0x2D: 333, 0x2E: 278, 0x2F: 278,
	0x30: 556, 0x31: 556, 0x32: 556, 0x33: 556, 0x34: 556, 0x35: 556, 0x36: 556, 0x37: 556,
	0x38: 556, 0x39: 556, 0x3A: 278, 0x3B: 278, 0x3C: 584, 0x3D: 584, 0x3E: 584, 0x3F: 556,
	0x40: 1015, 0x41: 667, 0x42: 667, 0x43: 722, 0x44: 722, 0x45: 667, 0x46: 611, 0x47: 778,
	0x48: 722, 0x49: 278, 0x4A: 500, 0x4B: 667, 0x4C: 556, 0x4D: 833, 0x4E: 722, 0x4F: 778,
	0x50: 667, 0x51: 778, 0x52: 722, 0x53: 667, 0x54: 611, 0x55: 722, 0x56: 667, 0x57: 944,
	0x58: 667, 0x59: 667, 0x5A: 611, 0x5B: 278, 0x5C: 278, 0x5D: 278, 0x5E: 469, 0x5F: 556,
	0x60: 333, 0x61: 556, 0x62: 556, 0x63: 500, 0x64: 556, 0x65: 556, 0x66: 278, 0x67: 556,
	0x68: 556, 0x69: 222, 0x6A: 222, 0x6B: 500, 0x6C: 222, 0x6D: 833, 0x6E: 556, 0x6F: 556,
	0x70: 556, 0x71: 556, 0x72: 333, 0x73: 500, 0x74: 278, 0x75: 556, 0x76: 500, 0x77: 722,
	0x78: 500, 0x79: 500, 0x7A: 500, 0x7B: 334, 0x7C: 260, 0x7D: 334, 0x7E: 584,
	0x80: 556, 0x82: 222, 0x83: 556, 0x84: 333, 0x85: 1000, 0x86: 556, 0x87: 556, 0x88: 333,
	0x89: 1000, 0x8A: 667, 0x8B: 333, 0x8C: 1000, 0x8E: 611, 0x91: 222, 0x92: 222, 0x93: 333,
	0x94: 333, 0x95: 350, 0x96: 556, 0x97: 1000, 0x98: 333, 0x99: 1000, 0x9A: 500, 0x9B: 333,
	0x9C: 944, 0x9E: 500, 0x9F: 667,
	0xA0: 278, 0xA1: 333, 0xA2: 556, 0xA3: 556, 0xA4: 556, 0xA5: 556, 0xA6: 260, 0xA7: 556,
	0xA8: 333, 0xA9: 737, 0xAA: 370, 0xAB: 556, 0xAC: 584, 0xAD: 333, 0xAE: 737, 0xAF: 333,
	0xB0: 400, 0xB1: 584, 0xB2: 333, 0xB3: 333, 0xB4: 333, 0xB5: 556, 0xB6: 537, 0xB7: 278,
	0xB8: 333, 0xB9: 333, 0xBA: 365, 0xBB: 556, 0xBC: 834, 0xBD: 834, 0xBE: 834, 0xBF: 611,
	0xC0: 667, 0xC1: 667, 0xC2: 667, 0xC3: 667, 0xC4: 667, 0xC5: 667, 0xC6: 1000, 0xC7: 722,
	0xC8: 667, 0xC9: 667, 0xCA: 667, 0xCB: 667, 0xCC: 278, 0xCD: 278, 0xCE: 278, 0xCF: 278,
	0xD0: 722, 0xD1: 722, 0xD2: 778, 0xD3: 778, 0xD4: 778, 0xD5: 778, 0xD6: 778, 0xD7: 584,
	0xD8: 778, 0xD9: 722, 0xDA: 722, 0xDB: 722, 0xDC: 722, 0xDD: 667, 0xDE: 667, 0xDF: 611,
	0xE0: 556, 0xE1: 556, 0xE2: 556, 0xE3: 556, 0xE4: 556, 0xE5: 556, 0xE6: 889, 0xE7: 500,
	0xE8: 556, 0xE9: 556, 0xEA: 556, 0xEB: 556, 0xEC: 278, 0xED: 278, 0xEE: 278, 0xEF: 278,
	0xF0: 556, 0xF1: 556, 0xF2: 556, 0xF3: 556, 0xF4: 556, 0xF5: 556, 0xF6: 556, 0xF7: 584,
	0xF8: 611, 0xF9: 556, 0xFA: 556, 0xFB: 556, 0xFC: 556, 0xFD: 500, 0xFE: 556, 0xFF: 500,
}
