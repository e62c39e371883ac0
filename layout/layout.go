package layout

import (
	"strings"

	"github.com/yuin/goldmark"

	"github.com/wudi/scanpdf/builder"
	"github.com/wudi/scanpdf/ir/semantic"
)

// Engine handles the layout and rendering of flowing content (plain text,
// Markdown, HTML) into PDF pages.
type Engine struct {
	b builder.PDFBuilder

	// Configuration
	DefaultFont     string // empty selects the builder's default font
	DefaultFontSize float64
	LineHeight      float64 // Multiplier, e.g., 1.25
	Margins         Margins
	TabWidth        int

	// State
	markdown    goldmark.Markdown
	currentPage builder.PageBuilder
	cursorX     float64
	cursorY     float64
	pageWidth   float64
	pageHeight  float64
}

// Margins defines page margins in points.
type Margins struct {
	Top, Bottom, Left, Right float64
}

// Option defines a configuration option for the Engine.
type Option func(*Engine)

// WithDefaultFont sets the default font.
func WithDefaultFont(font string) Option {
	return func(e *Engine) {
		e.DefaultFont = font
	}
}

// WithDefaultFontSize sets the default font size.
func WithDefaultFontSize(size float64) Option {
	return func(e *Engine) {
		if size > 0 {
			e.DefaultFontSize = size
		}
	}
}

// WithLineHeight sets the line height multiplier.
func WithLineHeight(height float64) Option {
	return func(e *Engine) {
		if height > 0 {
			e.LineHeight = height
		}
	}
}

// WithMargins sets the page margins.
func WithMargins(margins Margins) Option {
	return func(e *Engine) {
		e.Margins = margins
	}
}

// WithUniformMargins sets all four margins to m.
func WithUniformMargins(m float64) Option {
	return WithMargins(Margins{Top: m, Bottom: m, Left: m, Right: m})
}

// WithPageSize sets the page dimensions.
func WithPageSize(width, height float64) Option {
	return func(e *Engine) {
		e.pageWidth = width
		e.pageHeight = height
	}
}

// WithPaperSize sets the page dimensions using a standard paper size.
func WithPaperSize(size builder.PaperSize) Option {
	return func(e *Engine) {
		e.pageWidth = size.Width
		e.pageHeight = size.Height
	}
}

// NewEngine creates a new layout engine with optional configuration.
func NewEngine(b builder.PDFBuilder, opts ...Option) *Engine {
	e := &Engine{
		b:               b,
		DefaultFontSize: 12,
		LineHeight:      1.25,
		TabWidth:        4,
		Margins: Margins{
			Top:    50,
			Bottom: 50,
			Left:   50,
			Right:  50,
		},
		pageWidth:  builder.A4.Width,
		pageHeight: builder.A4.Height,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetPageSize sets the dimensions for new pages.
func (e *Engine) SetPageSize(width, height float64) {
	e.pageWidth = width
	e.pageHeight = height
}

// ContentWidth is the horizontal space between the margins.
func (e *Engine) ContentWidth() float64 {
	return e.pageWidth - e.Margins.Left - e.Margins.Right
}

// ensurePage makes sure there is a current page and the cursor is valid.
func (e *Engine) ensurePage() {
	if e.currentPage == nil {
		e.newPage()
	}
}

// newPage starts a new page and resets the cursor.
func (e *Engine) newPage() {
	e.currentPage = e.b.NewPage(e.pageWidth, e.pageHeight)
	e.cursorX = e.Margins.Left
	e.cursorY = e.pageHeight - e.Margins.Top
}

// checkPageBreak checks if there is enough space for height; if not, adds a new page.
func (e *Engine) checkPageBreak(height float64) {
	if e.currentPage == nil {
		e.newPage()
		return
	}
	if e.cursorY-height < e.Margins.Bottom {
		e.currentPage.Finish()
		e.newPage()
	}
}

// finishPage commits pending drawing; later output continues on the same
// page below the cursor.
func (e *Engine) finishPage() {
	if e.currentPage != nil {
		e.currentPage.Finish()
	}
}

// PageBreak forces subsequent content onto a new page.
func (e *Engine) PageBreak() {
	e.finishPage()
	e.newPage()
}

// RenderText lays out plain text: one output line per input line, wrapping
// lines wider than the page. Empty input yields a single blank page.
func (e *Engine) RenderText(text string) error {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimRight(text, "\n")

	e.ensurePage()
	lineHeight := e.DefaultFontSize * e.LineHeight
	if text != "" {
		for _, line := range strings.Split(text, "\n") {
			line = expandTabs(line, e.TabWidth)
			if strings.TrimSpace(line) == "" {
				e.checkPageBreak(lineHeight)
				e.cursorY -= lineHeight
				continue
			}
			e.renderSpans([]TextSpan{{Text: line}}, e.Margins.Left, lineHeight)
		}
	}
	e.finishPage()
	return nil
}

// RenderImage draws img at the cursor, scaled down to fit the content area.
func (e *Engine) RenderImage(img *semantic.Image) {
	if img == nil || img.Width == 0 || img.Height == 0 {
		return
	}
	e.ensurePage()
	maxW := e.ContentWidth()
	maxH := e.pageHeight - e.Margins.Top - e.Margins.Bottom
	w, h := float64(img.Width), float64(img.Height)
	if scale := maxW / w; scale < 1 {
		w, h = w*scale, h*scale
	}
	if scale := maxH / h; scale < 1 {
		w, h = w*scale, h*scale
	}
	e.checkPageBreak(h)
	e.currentPage.DrawImage(img, e.Margins.Left, e.cursorY-h, w, h)
	e.cursorY -= h
	e.renderParagraphSpacing()
	e.finishPage()
}

func expandTabs(line string, width int) string {
	if !strings.ContainsRune(line, '\t') {
		return line
	}
	if width <= 0 {
		width = 4
	}
	var sb strings.Builder
	col := 0
	for _, r := range line {
		if r == '\t' {
			n := width - col%width
			sb.WriteString(strings.Repeat(" ", n))
			col += n
			continue
		}
		sb.WriteRune(r)
		col++
	}
	return sb.String()
}

// TextSpan represents a segment of text with specific styling.
type TextSpan struct {
	Text          string
	Font          string
	FontSize      float64
	Color         builder.Color
	Underline     bool
	Strikethrough bool
}

func sameStyle(a, b TextSpan) bool {
	return a.Font == b.Font && a.FontSize == b.FontSize && a.Color == b.Color &&
		a.Underline == b.Underline && a.Strikethrough == b.Strikethrough
}

func (e *Engine) renderParagraphSpacing() {
	if e.currentPage != nil {
		e.cursorY -= e.DefaultFontSize * e.LineHeight / 2
	}
}

func (e *Engine) renderTextWrapped(text string, x float64, fontSize, lineHeight float64) {
	e.renderSpans([]TextSpan{{
		Text:     text,
		Font:     e.DefaultFont,
		FontSize: fontSize,
	}}, x, lineHeight)
}

// renderSpans fills lines from x to the right margin. A "\n" in span text
// ends the line; an empty line still advances the cursor.
func (e *Engine) renderSpans(spans []TextSpan, x, lineHeight float64) {
	if len(spans) == 0 {
		return
	}

	maxWidth := e.pageWidth - e.Margins.Right - x

	type wordSpan struct {
		text  string
		span  TextSpan
		width float64
		space bool
	}

	var currentLine []wordSpan
	currentLineWidth := 0.0
	wrapped := false

	flushLine := func() {
		for len(currentLine) > 0 && currentLine[len(currentLine)-1].space {
			currentLine = currentLine[:len(currentLine)-1]
		}
		e.checkPageBreak(lineHeight)

		curX := x
		for i := 0; i < len(currentLine); {
			var run strings.Builder
			runWidth := 0.0
			j := i
			for j < len(currentLine) && sameStyle(currentLine[i].span, currentLine[j].span) {
				run.WriteString(currentLine[j].text)
				runWidth += currentLine[j].width
				j++
			}
			e.drawRun(run.String(), curX, runWidth, currentLine[i].span)
			curX += runWidth
			i = j
		}
		e.cursorY -= lineHeight
		currentLine = nil
		currentLineWidth = 0
	}

	spaceWidths := make(map[string]float64)
	getSpaceWidth := func(font string, size float64) float64 {
		key := font
		if w, ok := spaceWidths[key]; ok {
			return w * size / 12.0
		}
		w := e.b.MeasureText(" ", 12, font) // Measure at 12 then scale
		spaceWidths[key] = w
		return w * size / 12.0
	}

	for _, span := range spans {
		if span.Text == "" {
			continue
		}

		font := span.Font
		if font == "" {
			font = e.DefaultFont
		}
		size := span.FontSize
		if size == 0 {
			size = e.DefaultFontSize
		}
		span.Font = font
		span.FontSize = size

		spaceW := getSpaceWidth(font, size)

		for _, token := range tokenize(span.Text) {
			switch token {
			case "\n":
				flushLine()
				wrapped = false
				continue
			case " ":
				if len(currentLine) == 0 && wrapped {
					continue
				}
				if currentLineWidth+spaceW > maxWidth {
					flushLine()
					wrapped = true
				} else {
					currentLine = append(currentLine, wordSpan{text: " ", span: span, width: spaceW, space: true})
					currentLineWidth += spaceW
				}
				continue
			}

			w := e.b.MeasureText(token, size, font)

			if currentLineWidth+w > maxWidth {
				// Check if the word itself is longer than the line
				if w > maxWidth {
					// Character-level wrapping
					if len(currentLine) > 0 {
						flushLine()
					}
					var subToken strings.Builder
					subWidth := 0.0
					for _, r := range token {
						rw := e.b.MeasureText(string(r), size, font)
						if subWidth+rw > maxWidth && subToken.Len() > 0 {
							currentLine = append(currentLine, wordSpan{text: subToken.String(), span: span, width: subWidth})
							flushLine()
							subToken.Reset()
							subWidth = 0
						}
						subToken.WriteRune(r)
						subWidth += rw
					}
					if subToken.Len() > 0 {
						currentLine = append(currentLine, wordSpan{text: subToken.String(), span: span, width: subWidth})
						currentLineWidth = subWidth
					}
				} else {
					flushLine()
					currentLine = append(currentLine, wordSpan{text: token, span: span, width: w})
					currentLineWidth = w
				}
				wrapped = true
			} else {
				currentLine = append(currentLine, wordSpan{text: token, span: span, width: w})
				currentLineWidth += w
			}
		}
	}
	if len(currentLine) > 0 {
		flushLine()
	}
}

// tokenize splits text into words, single spaces and line breaks.
func tokenize(text string) []string {
	var tokens []string
	var currentToken strings.Builder
	for _, r := range text {
		if r == ' ' || r == '\n' || r == '\t' {
			if currentToken.Len() > 0 {
				tokens = append(tokens, currentToken.String())
				currentToken.Reset()
			}
			if r == '\n' {
				tokens = append(tokens, "\n")
			} else {
				tokens = append(tokens, " ")
			}
		} else {
			currentToken.WriteRune(r)
		}
	}
	if currentToken.Len() > 0 {
		tokens = append(tokens, currentToken.String())
	}
	return tokens
}

func (e *Engine) drawRun(text string, x, width float64, span TextSpan) {
	if text == "" {
		return
	}
	baseline := e.cursorY - span.FontSize
	e.currentPage.DrawText(text, x, baseline, builder.TextOptions{
		Font:     span.Font,
		FontSize: span.FontSize,
		Color:    span.Color,
	})
	if span.Underline {
		e.currentPage.DrawLine(x, baseline-2, x+width, baseline-2, builder.LineOptions{
			StrokeColor: span.Color,
			LineWidth:   0.75,
		})
	}
	if span.Strikethrough {
		midY := baseline + span.FontSize*0.3
		e.currentPage.DrawLine(x, midY, x+width, midY, builder.LineOptions{
			StrokeColor: span.Color,
			LineWidth:   0.75,
		})
	}
}

func (e *Engine) renderRule() {
	e.ensurePage()
	gap := e.DefaultFontSize * e.LineHeight / 2
	e.checkPageBreak(2 * gap)
	y := e.cursorY - gap
	e.currentPage.DrawLine(e.Margins.Left, y, e.pageWidth-e.Margins.Right, y, builder.LineOptions{
		StrokeColor: builder.Gray(0.6),
		LineWidth:   0.5,
	})
	e.cursorY -= 2 * gap
}

func (e *Engine) headingSize(level int) float64 {
	switch {
	case level <= 1:
		return e.DefaultFontSize * 2.0
	case level == 2:
		return e.DefaultFontSize * 1.5
	default:
		return e.DefaultFontSize * 1.25
	}
}

func (e *Engine) renderHeading(text string, level int) {
	fontSize := e.headingSize(level)
	e.ensurePage()
	e.renderTextWrapped(text, e.Margins.Left, fontSize, fontSize*e.LineHeight)
	e.renderParagraphSpacing()
}

func (e *Engine) renderListItem(marker string, spans []TextSpan, indent float64) {
	e.ensurePage()
	fontSize := e.DefaultFontSize
	lineHeight := fontSize * e.LineHeight
	e.checkPageBreak(lineHeight)
	e.currentPage.DrawText(marker, e.Margins.Left+indent, e.cursorY-fontSize, builder.TextOptions{
		Font:     e.DefaultFont,
		FontSize: fontSize,
	})
	e.renderSpans(spans, e.Margins.Left+indent+15, lineHeight)
}

// renderPreformatted draws lines verbatim, breaking only lines that do not
// fit the page width.
func (e *Engine) renderPreformatted(text string, indent float64) {
	e.ensurePage()
	lineHeight := e.DefaultFontSize * e.LineHeight
	text = strings.TrimRight(text, "\n")
	for _, line := range strings.Split(text, "\n") {
		line = expandTabs(line, e.TabWidth)
		if strings.TrimSpace(line) == "" {
			e.checkPageBreak(lineHeight)
			e.cursorY -= lineHeight
			continue
		}
		e.renderSpans([]TextSpan{{Text: line, Color: builder.Gray(0.2)}}, e.Margins.Left+indent, lineHeight)
	}
	e.renderParagraphSpacing()
}
