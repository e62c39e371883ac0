package layout

import (
	"strings"

	"golang.org/x/net/html"
)

// renderMath draws display MathML as a centered line of linearized text.
func (e *Engine) renderMath(n *html.Node, indent float64) {
	text := linearizeMath(n)
	if text == "" {
		return
	}
	e.ensurePage()
	size := e.DefaultFontSize
	width := e.b.MeasureText(text, size, e.DefaultFont)
	x := e.Margins.Left + indent
	if avail := e.ContentWidth() - indent; width < avail {
		x += (avail - width) / 2
	}
	e.renderSpans([]TextSpan{{Text: text, Font: e.DefaultFont, FontSize: size}}, x, size*e.LineHeight)
	e.renderParagraphSpacing()
}

// linearizeMath renders a MathML tree as plain text: scripts become ^ and _,
// fractions (a)/(b), roots sqrt(x).
func linearizeMath(n *html.Node) string {
	return collapseSpace(mathText(n))
}

func mathText(n *html.Node) string {
	if n.Type == html.TextNode {
		return strings.TrimSpace(n.Data)
	}
	if n.Type != html.ElementNode && n.Type != html.DocumentNode {
		return ""
	}
	args := mathChildren(n)
	switch n.Data {
	case "annotation", "annotation-xml":
		return ""
	case "mo":
		op := strings.TrimSpace(extractText(n))
		switch op {
		case "=", "+", "-", "−", "<", ">", "≤", "≥", "≠", "×", "→":
			return " " + op + " "
		}
		return op
	case "msup":
		if len(args) == 2 {
			return group(args[0]) + "^" + group(args[1])
		}
	case "msub":
		if len(args) == 2 {
			return group(args[0]) + "_" + group(args[1])
		}
	case "msubsup":
		if len(args) == 3 {
			return group(args[0]) + "_" + group(args[1]) + "^" + group(args[2])
		}
	case "mfrac":
		if len(args) == 2 {
			return "(" + args[0] + ")/(" + args[1] + ")"
		}
	case "msqrt":
		return "sqrt(" + strings.Join(args, "") + ")"
	case "mroot":
		if len(args) == 2 {
			return "root" + group(args[1]) + "(" + args[0] + ")"
		}
	case "mover", "munder":
		if len(args) == 2 {
			return args[0] + args[1]
		}
	}
	return strings.Join(args, "")
}

func mathChildren(n *html.Node) []string {
	var out []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) == "" {
			continue
		}
		if c.Type == html.ElementNode && (c.Data == "annotation" || c.Data == "annotation-xml") {
			continue
		}
		out = append(out, mathText(c))
	}
	return out
}

// group parenthesizes multi-character script operands so a^(n+1) stays
// unambiguous.
func group(s string) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) <= 1 {
		return s
	}
	return "(" + collapseSpace(s) + ")"
}
