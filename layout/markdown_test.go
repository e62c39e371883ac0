package layout

import (
	"strings"
	"testing"

	"github.com/wudi/scanpdf/builder"
)

func TestEngine_RenderMarkdown(t *testing.T) {
	mb := &MockBuilder{}
	engine := NewEngine(mb)

	md := "# Title\n\n" +
		"Some *emphasis* and [link](http://example.com).\n\n" +
		"- one\n- two\n\n" +
		"1. first\n2. second\n\n" +
		"```\ncode  line\n```\n\n" +
		"---\n"
	if err := engine.RenderMarkdown(md); err != nil {
		t.Fatalf("RenderMarkdown failed: %v", err)
	}

	got := mb.texts()
	want := []string{
		"Title",
		"Some emphasis and ", "link", ".",
		"•", "one", "•", "two",
		"1.", "first", "2.", "second",
		"code  line",
	}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("texts = %q\nwant    %q", got, want)
	}

	page := mb.Pages[0]
	if page.DrawnTexts[0].Opts.FontSize != 24 {
		t.Fatalf("expected level 1 heading at 24pt, got %v", page.DrawnTexts[0].Opts.FontSize)
	}
	if page.DrawnTexts[2].Opts.Color == (builder.Color{}) {
		t.Fatalf("expected link text to be colored")
	}
	// Link underline plus thematic break.
	if page.Lines != 2 {
		t.Fatalf("expected 2 lines, got %d", page.Lines)
	}
}

func TestEngine_RenderMarkdownRealBuilder(t *testing.T) {
	b := builder.NewBuilder()
	engine := NewEngine(b)

	md := `# Title
## Subtitle

This is a paragraph with some text. It should wrap if it is long enough.

- List item 1
- List item 2

Another paragraph.
`
	if err := engine.RenderMarkdown(md); err != nil {
		t.Fatalf("RenderMarkdown failed: %v", err)
	}

	doc, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(doc.Pages) == 0 {
		t.Fatal("Expected at least one page")
	}
	if len(doc.Pages[0].Contents) == 0 {
		t.Fatal("Expected content stream")
	}
}
