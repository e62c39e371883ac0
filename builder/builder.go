package builder

import (
	"fmt"

	"github.com/wudi/scanpdf/fonts"
	"github.com/wudi/scanpdf/ir/semantic"
)

// PDFBuilder provides a fluent API for PDF construction.
type PDFBuilder interface {
	NewPage(width, height float64) PageBuilder
	SetInfo(info *semantic.DocumentInfo) PDFBuilder
	SetLanguage(lang string) PDFBuilder
	RegisterFont(name string, font *semantic.Font) PDFBuilder
	RegisterTrueTypeFont(name string, data []byte) PDFBuilder
	MeasureText(text string, fontSize float64, font string) float64
	Covers(text string, font string) bool
	Build() (*semantic.Document, error)
}

// PageBuilder provides a fluent API for page construction.
type PageBuilder interface {
	DrawText(text string, x, y float64, opts TextOptions) PageBuilder
	DrawImage(img *semantic.Image, x, y, width, height float64) PageBuilder
	DrawRectangle(x, y, width, height float64, opts RectOptions) PageBuilder
	DrawLine(x1, y1, x2, y2 float64, opts LineOptions) PageBuilder
	Finish() PDFBuilder
}

// TextOptions configures text drawing.
type TextOptions struct {
	Font     string
	FontSize float64
	Color    Color
}

// PathOptions configures path drawing.
type PathOptions struct {
	StrokeColor Color
	FillColor   Color
	LineWidth   float64
	Fill        bool
	Stroke      bool
}

// RectOptions configures rectangle drawing (defaults to stroke if neither fill nor stroke is set).
type RectOptions = PathOptions

// LineOptions configures line drawing.
type LineOptions struct {
	StrokeColor Color
	LineWidth   float64
	DashPattern []float64
}

// Color represents an RGB color with components in [0,1].
type Color struct {
	R, G, B float64
}

// Gray returns a neutral color of the given lightness.
func Gray(v float64) Color { return Color{R: v, G: v, B: v} }

// PaperSize is a page size in points.
type PaperSize struct {
	Width  float64
	Height float64
}

var (
	A4     = PaperSize{Width: 595.28, Height: 841.89}
	Letter = PaperSize{Width: 612, Height: 792}
)

// PaperSizeByName resolves "a4" or "letter"; ok is false for anything else.
func PaperSizeByName(name string) (PaperSize, bool) {
	switch name {
	case "a4", "A4":
		return A4, true
	case "letter", "Letter", "LETTER":
		return Letter, true
	}
	return PaperSize{}, false
}

const (
	defaultFontResource = "F1"
)

type builderImpl struct {
	pages        []*semantic.Page
	open         []*pageBuilderImpl
	info         *semantic.DocumentInfo
	lang         string
	faces        map[string]*fonts.Face
	defaultFont  string
	xobjectCount int
	xobjectNames map[*semantic.Image]string
	fontErr      error
}

type pageBuilderImpl struct {
	parent *builderImpl
	page   *semantic.Page
	ops    []semantic.Operation
}

// NewBuilder constructs a PDFBuilder. Text drawn before any font is
// registered uses Helvetica.
func NewBuilder() PDFBuilder { return &builderImpl{} }

func (b *builderImpl) NewPage(w, h float64) PageBuilder {
	p := &semantic.Page{
		Index:    len(b.pages),
		MediaBox: semantic.Rectangle{LLX: 0, LLY: 0, URX: w, URY: h},
	}
	b.pages = append(b.pages, p)
	pb := &pageBuilderImpl{parent: b, page: p}
	b.open = append(b.open, pb)
	return pb
}

func (b *builderImpl) SetInfo(info *semantic.DocumentInfo) PDFBuilder {
	b.info = info
	return b
}

func (b *builderImpl) SetLanguage(lang string) PDFBuilder {
	b.lang = lang
	return b
}

func (b *builderImpl) RegisterFont(name string, font *semantic.Font) PDFBuilder {
	if font == nil {
		return b
	}
	face, err := fonts.NewFace(font)
	if err != nil {
		b.fontErr = fmt.Errorf("register font %s: %w", name, err)
		return b
	}
	if b.faces == nil {
		b.faces = make(map[string]*fonts.Face)
	}
	b.faces[name] = face
	if b.defaultFont == "" {
		b.defaultFont = name
	}
	return b
}

func (b *builderImpl) RegisterTrueTypeFont(name string, data []byte) PDFBuilder {
	font, err := fonts.LoadTrueType(name, data)
	if err != nil {
		b.fontErr = fmt.Errorf("register font %s: %w", name, err)
		return b
	}
	return b.RegisterFont(name, font)
}

func (b *builderImpl) MeasureText(text string, fontSize float64, fontName string) float64 {
	face, _ := b.faceForName(fontName)
	return face.Measure(text, fontSize)
}

func (b *builderImpl) Covers(text string, fontName string) bool {
	face, _ := b.faceForName(fontName)
	return face.Covers(text)
}

func (b *builderImpl) Build() (*semantic.Document, error) {
	if b.fontErr != nil {
		return nil, b.fontErr
	}
	if len(b.pages) == 0 {
		return nil, fmt.Errorf("document has no pages")
	}
	for _, pb := range b.open {
		pb.Finish()
	}
	return &semantic.Document{
		Pages: b.pages,
		Info:  b.info,
		Lang:  b.lang,
	}, nil
}

func (p *pageBuilderImpl) DrawText(text string, x, y float64, opts TextOptions) PageBuilder {
	face, fontName := p.parent.faceForName(opts.Font)
	encoded := face.Encode(text)
	if len(encoded) == 0 {
		return p
	}
	res := p.ensureResources()
	if _, ok := res.Fonts[fontName]; !ok {
		res.Fonts[fontName] = face.Font
	}
	size := opts.FontSize
	if size <= 0 {
		size = 12
	}

	// Fill color is graphics state and outlives ET; scope it to this run.
	colored := !isZeroColor(opts.Color)
	if colored {
		p.ops = append(p.ops, semantic.Operation{Operator: "q"})
	}
	p.ops = append(p.ops, semantic.Operation{Operator: "BT"})
	p.ops = append(p.ops, semantic.Operation{
		Operator: "Tf",
		Operands: []semantic.Operand{semantic.NameOperand{Value: fontName}, semantic.NumberOperand{Value: size}},
	})
	if colored {
		p.appendColorOp(opts.Color, false)
	}
	p.ops = append(p.ops, semantic.Operation{
		Operator: "Td",
		Operands: []semantic.Operand{semantic.NumberOperand{Value: x}, semantic.NumberOperand{Value: y}},
	})
	p.ops = append(p.ops, semantic.Operation{
		Operator: "Tj",
		Operands: []semantic.Operand{semantic.StringOperand{Value: encoded, Hex: face.Font.IsComposite()}},
	})
	p.ops = append(p.ops, semantic.Operation{Operator: "ET"})
	if colored {
		p.ops = append(p.ops, semantic.Operation{Operator: "Q"})
	}
	return p
}

func (p *pageBuilderImpl) DrawImage(img *semantic.Image, x, y, width, height float64) PageBuilder {
	if img == nil {
		return p
	}
	res := p.ensureResources()
	name := p.parent.imageName(img)
	res.XObjects[name] = img

	w := width
	if w == 0 {
		w = float64(img.Width)
	}
	h := height
	if h == 0 {
		h = float64(img.Height)
	}

	p.ops = append(p.ops,
		semantic.Operation{Operator: "q"},
		semantic.Operation{Operator: "cm", Operands: numbers(w, 0, 0, h, x, y)},
		semantic.Operation{Operator: "Do", Operands: []semantic.Operand{semantic.NameOperand{Value: name}}},
		semantic.Operation{Operator: "Q"},
	)
	return p
}

func (p *pageBuilderImpl) DrawRectangle(x, y, width, height float64, opts RectOptions) PageBuilder {
	po := opts
	if !po.Stroke && !po.Fill {
		po.Stroke = true
	}
	p.ops = append(p.ops, semantic.Operation{Operator: "q"})
	p.applyPathState(po)
	p.ops = append(p.ops, semantic.Operation{Operator: "re", Operands: numbers(x, y, width, height)})
	p.ops = append(p.ops, semantic.Operation{Operator: paintOperator(po.Fill, po.Stroke)})
	p.ops = append(p.ops, semantic.Operation{Operator: "Q"})
	return p
}

func (p *pageBuilderImpl) DrawLine(x1, y1, x2, y2 float64, opts LineOptions) PageBuilder {
	p.ops = append(p.ops, semantic.Operation{Operator: "q"})
	p.applyPathState(PathOptions{
		StrokeColor: opts.StrokeColor,
		LineWidth:   opts.LineWidth,
		Stroke:      true,
	})
	if len(opts.DashPattern) > 0 {
		p.ops = append(p.ops, semantic.Operation{
			Operator: "d",
			Operands: []semantic.Operand{
				semantic.ArrayOperand{Values: numbers(opts.DashPattern...)},
				semantic.NumberOperand{Value: 0},
			},
		})
	}
	p.ops = append(p.ops,
		semantic.Operation{Operator: "m", Operands: numbers(x1, y1)},
		semantic.Operation{Operator: "l", Operands: numbers(x2, y2)},
		semantic.Operation{Operator: "S"},
		semantic.Operation{Operator: "Q"},
	)
	return p
}

// Finish commits the drawn operations to the page. Drawing on a finished
// page starts a second content stream.
func (p *pageBuilderImpl) Finish() PDFBuilder {
	if len(p.ops) > 0 {
		p.page.Contents = append(p.page.Contents, semantic.ContentStream{Operations: p.ops})
		p.ops = nil
	}
	return p.parent
}

func (b *builderImpl) faceForName(name string) (*fonts.Face, string) {
	if name == "" {
		name = b.defaultFont
		if name == "" {
			name = defaultFontResource
		}
	}
	if face, ok := b.faces[name]; ok {
		return face, name
	}
	if b.faces == nil {
		b.faces = make(map[string]*fonts.Face)
	}
	// Unknown names fall back to the standard font under that resource name.
	face, _ := fonts.NewFace(fonts.Helvetica())
	b.faces[name] = face
	return face, name
}

func (b *builderImpl) imageName(img *semantic.Image) string {
	if b.xobjectNames == nil {
		b.xobjectNames = make(map[*semantic.Image]string)
	}
	if name, ok := b.xobjectNames[img]; ok {
		return name
	}
	b.xobjectCount++
	name := fmt.Sprintf("Im%d", b.xobjectCount)
	b.xobjectNames[img] = name
	return name
}

func (p *pageBuilderImpl) ensureResources() *semantic.Resources {
	if p.page.Resources == nil {
		p.page.Resources = &semantic.Resources{}
	}
	if p.page.Resources.Fonts == nil {
		p.page.Resources.Fonts = make(map[string]*semantic.Font)
	}
	if p.page.Resources.XObjects == nil {
		p.page.Resources.XObjects = make(map[string]*semantic.Image)
	}
	return p.page.Resources
}

func (p *pageBuilderImpl) appendColorOp(c Color, stroking bool) {
	op := "rg"
	if stroking {
		op = "RG"
	}
	p.ops = append(p.ops, semantic.Operation{Operator: op, Operands: numbers(c.R, c.G, c.B)})
}

func (p *pageBuilderImpl) applyPathState(opts PathOptions) {
	if opts.Fill && !isZeroColor(opts.FillColor) {
		p.appendColorOp(opts.FillColor, false)
	}
	if opts.Stroke {
		if !isZeroColor(opts.StrokeColor) {
			p.appendColorOp(opts.StrokeColor, true)
		}
		if opts.LineWidth > 0 {
			p.ops = append(p.ops, semantic.Operation{Operator: "w", Operands: numbers(opts.LineWidth)})
		}
	}
}

func numbers(vals ...float64) []semantic.Operand {
	out := make([]semantic.Operand, len(vals))
	for i, v := range vals {
		out[i] = semantic.NumberOperand{Value: v}
	}
	return out
}

func isZeroColor(c Color) bool {
	return c.R == 0 && c.G == 0 && c.B == 0
}

func paintOperator(fill, stroke bool) string {
	switch {
	case fill && stroke:
		return "B"
	case fill:
		return "f"
	default:
		return "S"
	}
}
