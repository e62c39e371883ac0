// Package semantic is the in-memory document model produced by the builder
// and consumed by the writer.
package semantic

import "time"

// Document is the semantic representation of a PDF.
type Document struct {
	Pages []*Page
	Info  *DocumentInfo
	Lang  string
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	if d == nil {
		return 0
	}
	return len(d.Pages)
}

// Page models a single PDF page.
type Page struct {
	Index     int
	MediaBox  Rectangle
	Resources *Resources
	Contents  []ContentStream
}

// Rectangle is a PDF rectangle in user space units.
type Rectangle struct {
	LLX, LLY, URX, URY float64
}

// Width returns the horizontal extent.
func (r Rectangle) Width() float64 { return r.URX - r.LLX }

// Height returns the vertical extent.
func (r Rectangle) Height() float64 { return r.URY - r.LLY }

// ContentStream is a sequence of operations on a page.
type ContentStream struct {
	Operations []Operation
}

// Operation represents a PDF operator and operands.
type Operation struct {
	Operator string
	Operands []Operand
}

// Operand is a type-safe operand value.
type Operand interface {
	operand()
	Type() string
}

type NumberOperand struct{ Value float64 }

func (NumberOperand) operand()     {}
func (NumberOperand) Type() string { return "number" }

type NameOperand struct{ Value string }

func (NameOperand) operand()     {}
func (NameOperand) Type() string { return "name" }

// StringOperand carries raw string bytes. Hex selects the <...> form, used
// for two-byte glyph codes.
type StringOperand struct {
	Value []byte
	Hex   bool
}

func (StringOperand) operand()     {}
func (StringOperand) Type() string { return "string" }

type ArrayOperand struct{ Values []Operand }

func (ArrayOperand) operand()     {}
func (ArrayOperand) Type() string { return "array" }

// Resources lists the named resources a page's content refers to.
type Resources struct {
	Fonts    map[string]*Font
	XObjects map[string]*Image
}

// Font represents a font resource.
type Font struct {
	Subtype        string // Type1 or Type0
	BaseFont       string
	Encoding       string         // WinAnsiEncoding or Identity-H
	Widths         map[int]int    // character code (Type1) or glyph ID (Type0) -> width in 1/1000 em
	ToUnicode      map[int][]rune // glyph ID -> text it represents
	UsedGlyphs     map[int]bool   // glyph IDs drawn with a Type0 font
	RuneGlyphs     map[rune]int   // nominal cmap for Type0 fonts
	DescendantFont *CIDFont
	Descriptor     *FontDescriptor
}

// IsEmbedded reports whether the font carries its own font program.
func (f *Font) IsEmbedded() bool {
	return f != nil && f.Descriptor != nil && len(f.Descriptor.FontFile) > 0
}

// IsComposite reports whether text in this font is written as two-byte
// glyph IDs.
func (f *Font) IsComposite() bool {
	return f != nil && f.Subtype == "Type0" && f.Encoding == "Identity-H"
}

// CIDSystemInfo describes the registry/ordering of a CID font.
type CIDSystemInfo struct {
	Registry   string
	Ordering   string
	Supplement int
}

// CIDFont describes a descendant font for Type0 fonts.
type CIDFont struct {
	Subtype       string // CIDFontType2
	BaseFont      string
	CIDSystemInfo CIDSystemInfo
	DW            int
	W             map[int]int
	Descriptor    *FontDescriptor
}

// FontDescriptor carries metrics and font file embedding details.
type FontDescriptor struct {
	FontName     string
	Flags        int
	ItalicAngle  float64
	Ascent       float64
	Descent      float64
	CapHeight    float64
	StemV        int
	FontBBox     [4]float64
	FontFile     []byte
	FontFileType string // FontFile2
}

// Image is an image XObject. Data is either raw samples (Filter empty) or an
// already-encoded stream such as a JPEG file (Filter "DCTDecode").
type Image struct {
	Width            int
	Height           int
	ColorSpace       string // DeviceRGB or DeviceGray
	BitsPerComponent int
	Data             []byte
	Filter           string
}

// DocumentInfo models /Info dictionary values.
type DocumentInfo struct {
	Title        string
	Author       string
	Subject      string
	Creator      string
	Producer     string
	Keywords     []string
	CreationDate time.Time
}
