package layout

import (
	"strconv"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/wudi/scanpdf/builder"
)

var linkColor = builder.Color{R: 0.05, G: 0.25, B: 0.7}

// RenderMarkdown renders a markdown string to the PDF using goldmark.
func (e *Engine) RenderMarkdown(source string) error {
	if e.markdown == nil {
		e.markdown = newMarkdown()
	}
	src := []byte(source)
	doc := e.markdown.Parser().Parse(text.NewReader(src))

	e.ensurePage()
	e.walkMarkdown(doc, src, 0)
	e.finishPage()
	return nil
}

func (e *Engine) walkMarkdown(node ast.Node, source []byte, indent float64) {
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		e.renderMarkdownBlock(child, source, indent)
	}
}

func (e *Engine) renderMarkdownBlock(node ast.Node, source []byte, indent float64) {
	if tex := displayTeX(node); tex != nil {
		e.renderTeXBlock(tex, source, indent)
		return
	}
	switch n := node.(type) {
	case *ast.Heading:
		e.renderHeading(plainText(n, source), n.Level)
	case *ast.Paragraph, *ast.TextBlock:
		e.renderSpans(e.inlineSpans(n, source), e.Margins.Left+indent, e.DefaultFontSize*e.LineHeight)
		if _, ok := n.(*ast.Paragraph); ok {
			e.renderParagraphSpacing()
		}
	case *ast.List:
		e.renderMarkdownList(n, source, indent)
		e.renderParagraphSpacing()
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		e.renderPreformatted(blockLines(n, source), indent+10)
	case *ast.Blockquote:
		e.walkMarkdown(n, source, indent+20)
	case *ast.ThematicBreak:
		e.renderRule()
	case *ast.HTMLBlock:
		e.renderPreformatted(blockLines(n, source), indent)
	default:
		e.walkMarkdown(n, source, indent)
	}
}

func (e *Engine) renderMarkdownList(list *ast.List, source []byte, indent float64) {
	number := list.Start
	if number == 0 {
		number = 1
	}
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "•"
		if list.IsOrdered() {
			marker = strconv.Itoa(number) + string(list.Marker)
			number++
		}
		first := true
		for child := item.FirstChild(); child != nil; child = child.NextSibling() {
			switch c := child.(type) {
			case *ast.Paragraph, *ast.TextBlock:
				spans := e.inlineSpans(c, source)
				if first {
					e.renderListItem(marker, spans, indent)
				} else {
					e.renderSpans(spans, e.Margins.Left+indent+15, e.DefaultFontSize*e.LineHeight)
				}
			case *ast.List:
				if first {
					e.renderListItem(marker, nil, indent)
				}
				e.renderMarkdownList(c, source, indent+15)
			default:
				e.renderMarkdownBlock(child, source, indent+15)
			}
			first = false
		}
	}
}

// inlineSpans flattens inline markup into styled spans. Emphasis is kept as
// plain text; links are underlined.
func (e *Engine) inlineSpans(n ast.Node, source []byte) []TextSpan {
	var spans []TextSpan
	var walk func(node ast.Node, link bool)
	add := func(s string, link bool) {
		span := TextSpan{Text: s, Font: e.DefaultFont, FontSize: e.DefaultFontSize}
		if link {
			span.Color = linkColor
			span.Underline = true
		}
		spans = append(spans, span)
	}
	walk = func(node ast.Node, link bool) {
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			if isTeX(c) {
				if s := e.inlineTeX(c, source); s != "" {
					add(s, link)
				}
				continue
			}
			switch t := c.(type) {
			case *ast.Text:
				add(string(t.Segment.Value(source)), link)
				switch {
				case t.HardLineBreak():
					add("\n", link)
				case t.SoftLineBreak():
					add(" ", link)
				}
			case *ast.String:
				add(string(t.Value), link)
			case *ast.CodeSpan:
				add(plainText(t, source), link)
			case *ast.AutoLink:
				add(string(t.URL(source)), true)
			case *ast.Link:
				walk(t, true)
			case *ast.RawHTML:
				continue
			default:
				walk(c, link)
			}
		}
	}
	walk(n, false)
	return spans
}

// plainText concatenates the text of every inline descendant of n.
func plainText(n ast.Node, source []byte) string {
	var sb strings.Builder
	var walk func(node ast.Node)
	walk = func(node ast.Node) {
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			switch t := c.(type) {
			case *ast.Text:
				sb.Write(t.Segment.Value(source))
				if t.SoftLineBreak() || t.HardLineBreak() {
					sb.WriteByte(' ')
				}
			case *ast.String:
				sb.Write(t.Value)
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return sb.String()
}

func blockLines(n ast.Node, source []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(source))
	}
	return sb.String()
}
