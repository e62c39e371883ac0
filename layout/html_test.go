package layout

import (
	"strings"
	"testing"
)

func TestEngine_RenderHTML(t *testing.T) {
	mb := &MockBuilder{}
	engine := NewEngine(mb)

	src := `<html><head><title>ignored</title></head><body>` +
		`<h2>Head</h2>` +
		`<p>Hello <b>bold</b><br>next <a href="http://example.com">link</a></p>` +
		`<ul><li>a</li><li>b<ol><li>c</li></ol></li></ul>` +
		"<pre>  x\n  y</pre>" +
		`<hr><script>bad()</script>` +
		`<p>Inline <math><msub><mi>w</mi><mi>i</mi></msub></math> end</p>` +
		`</body></html>`
	if err := engine.RenderHTML(src); err != nil {
		t.Fatalf("RenderHTML failed: %v", err)
	}

	got := mb.texts()
	want := []string{
		"Head",
		"Hello bold", "next ", "link",
		"•", "a", "•", "b", "1.", "c",
		"  x", "  y",
		"Inline w_i end",
	}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("texts = %q\nwant    %q", got, want)
	}
	if mb.Pages[0].Lines != 2 {
		t.Fatalf("expected link underline and rule, got %d lines", mb.Pages[0].Lines)
	}
}

func TestEngine_RenderHTMLLooseText(t *testing.T) {
	mb := &MockBuilder{}
	if err := NewEngine(mb).RenderHTML("just   some\n text"); err != nil {
		t.Fatalf("RenderHTML failed: %v", err)
	}
	if got := mb.texts(); len(got) != 1 || got[0] != "just some text" {
		t.Fatalf("texts = %q", got)
	}
}
