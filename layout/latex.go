package layout

import (
	"bytes"
	"strings"

	treeblood "github.com/wyatt915/goldmark-treeblood"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// newMarkdown returns a goldmark instance that parses $…$ and $$…$$ regions
// as TeX and renders them to MathML.
func newMarkdown() goldmark.Markdown {
	return goldmark.New(goldmark.WithExtensions(treeblood.MathML()))
}

func isTeX(n ast.Node) bool {
	k := n.Kind()
	return k == treeblood.KindMathInline || k == treeblood.KindMathBlock
}

// displayTeX returns the math node to center on its own line: a math block,
// or a paragraph holding nothing but one math region.
func displayTeX(n ast.Node) ast.Node {
	if isTeX(n) {
		return n
	}
	if n.Kind() == ast.KindParagraph && n.ChildCount() == 1 && isTeX(n.FirstChild()) {
		return n.FirstChild()
	}
	return nil
}

// texMath renders a math node to MathML and returns the <math> element.
func (e *Engine) texMath(n ast.Node, source []byte) *html.Node {
	var buf bytes.Buffer
	if err := e.markdown.Renderer().Render(&buf, source, n); err != nil {
		return nil
	}
	doc, err := html.Parse(strings.NewReader(buf.String()))
	if err != nil {
		return nil
	}
	return findMath(doc)
}

func (e *Engine) renderTeXBlock(n ast.Node, source []byte, indent float64) {
	if m := e.texMath(n, source); m != nil {
		e.renderMath(m, indent)
	}
}

func (e *Engine) inlineTeX(n ast.Node, source []byte) string {
	m := e.texMath(n, source)
	if m == nil {
		return ""
	}
	return linearizeMath(m)
}

func findMath(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Math {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if m := findMath(c); m != nil {
			return m
		}
	}
	return nil
}
