package layout

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// RenderHTML renders an HTML string to the PDF.
func (e *Engine) RenderHTML(source string) error {
	doc, err := html.Parse(strings.NewReader(source))
	if err != nil {
		return err
	}
	e.ensurePage()
	e.walkHTML(doc, 0)
	e.finishPage()
	return nil
}

func (e *Engine) walkHTML(n *html.Node, indent float64) {
	var inline []*html.Node
	flushInline := func() {
		if len(inline) == 0 {
			return
		}
		e.renderHTMLInline(inline, indent)
		inline = nil
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isInline(c) {
			inline = append(inline, c)
			continue
		}
		flushInline()
		e.renderHTMLBlock(c, indent)
	}
	flushInline()
}

func (e *Engine) renderHTMLBlock(n *html.Node, indent float64) {
	if n.Type != html.ElementNode {
		if n.Type == html.DocumentNode {
			e.walkHTML(n, indent)
		}
		return
	}
	switch n.DataAtom {
	case atom.Head, atom.Script, atom.Style, atom.Template, atom.Title:
		return
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		level, _ := strconv.Atoi(n.Data[1:])
		e.renderHeading(collapseSpace(extractText(n)), level)
	case atom.P:
		e.renderHTMLInline(children(n), indent)
		e.renderParagraphSpacing()
	case atom.Ul, atom.Ol:
		e.renderHTMLList(n, indent)
		e.renderParagraphSpacing()
	case atom.Pre:
		e.renderPreformatted(extractRawText(n), indent+10)
	case atom.Hr:
		e.renderRule()
	case atom.Blockquote:
		e.walkHTML(n, indent+20)
	case atom.Math:
		e.renderMath(n, indent)
	default:
		e.walkHTML(n, indent)
	}
}

func (e *Engine) renderHTMLList(list *html.Node, indent float64) {
	number := 1
	if v := attr(list, "start"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			number = n
		}
	}
	for li := list.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.DataAtom != atom.Li {
			continue
		}
		marker := "•"
		if list.DataAtom == atom.Ol {
			marker = strconv.Itoa(number) + "."
			number++
		}
		var inline []*html.Node
		var nested []*html.Node
		for c := li.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.DataAtom == atom.Ul || c.DataAtom == atom.Ol) {
				nested = append(nested, c)
				continue
			}
			inline = append(inline, c)
		}
		e.renderListItem(marker, e.htmlSpans(inline), indent)
		for _, sub := range nested {
			e.renderHTMLList(sub, indent+15)
		}
	}
}

func (e *Engine) renderHTMLInline(nodes []*html.Node, indent float64) {
	spans := e.htmlSpans(nodes)
	if len(spans) == 0 {
		return
	}
	e.renderSpans(spans, e.Margins.Left+indent, e.DefaultFontSize*e.LineHeight)
}

// htmlSpans collapses whitespace the way a browser does for inline content
// and turns <br> into line breaks.
func (e *Engine) htmlSpans(nodes []*html.Node) []TextSpan {
	var spans []TextSpan
	lastSpace := true
	add := func(s string, link bool) {
		var sb strings.Builder
		for _, r := range s {
			if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' {
				if lastSpace {
					continue
				}
				sb.WriteByte(' ')
				lastSpace = true
				continue
			}
			sb.WriteRune(r)
			lastSpace = false
		}
		if sb.Len() == 0 {
			return
		}
		span := TextSpan{Text: sb.String(), Font: e.DefaultFont, FontSize: e.DefaultFontSize}
		if link {
			span.Color = linkColor
			span.Underline = true
		}
		spans = append(spans, span)
	}

	var walk func(n *html.Node, link bool)
	walk = func(n *html.Node, link bool) {
		switch n.Type {
		case html.TextNode:
			add(n.Data, link)
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Br:
				spans = append(spans, TextSpan{Text: "\n", Font: e.DefaultFont, FontSize: e.DefaultFontSize})
				lastSpace = true
				return
			case atom.Script, atom.Style:
				return
			case atom.Math:
				add(" "+linearizeMath(n)+" ", link)
				return
			case atom.A:
				link = link || attr(n, "href") != ""
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, link)
		}
	}
	for _, n := range nodes {
		walk(n, false)
	}
	return spans
}

func isInline(n *html.Node) bool {
	switch n.Type {
	case html.TextNode:
		return true
	case html.ElementNode:
		switch n.DataAtom {
		case atom.A, atom.Abbr, atom.B, atom.Br, atom.Code, atom.Em, atom.I, atom.Kbd,
			atom.Mark, atom.Q, atom.S, atom.Samp, atom.Small, atom.Span, atom.Strong,
			atom.Sub, atom.Sup, atom.Time, atom.U, atom.Var:
			return true
		case atom.Math:
			return attr(n, "display") != "block"
		}
	}
	return false
}

func children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func extractText(n *html.Node) string {
	var sb strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return strings.TrimSpace(sb.String())
}

// extractRawText keeps whitespace intact, for <pre>.
func extractRawText(n *html.Node) string {
	var sb strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			sb.WriteString(n.Data)
		case n.Type == html.ElementNode && n.DataAtom == atom.Br:
			sb.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return strings.TrimPrefix(sb.String(), "\n")
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
