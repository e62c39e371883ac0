package builder

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"reflect"
	"testing"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/wudi/scanpdf/ir/semantic"
)

func TestBuilderDrawTextDefaultFont(t *testing.T) {
	b := NewBuilder()
	b.SetInfo(&semantic.DocumentInfo{Title: "Hello"})
	b.NewPage(A4.Width, A4.Height).
		DrawText("Hello", 50, 700, TextOptions{FontSize: 14}).
		Finish()

	doc, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if doc.PageCount() != 1 {
		t.Fatalf("expected 1 page, got %d", doc.PageCount())
	}
	page := doc.Pages[0]
	font := page.Resources.Fonts[defaultFontResource]
	if font == nil || font.BaseFont != "Helvetica" {
		t.Fatalf("expected Helvetica under %s, got %#v", defaultFontResource, font)
	}
	ops := page.Contents[0].Operations
	var tj *semantic.Operation
	for i := range ops {
		if ops[i].Operator == "Tj" {
			tj = &ops[i]
		}
	}
	if tj == nil {
		t.Fatalf("expected Tj operation in %+v", ops)
	}
	s := tj.Operands[0].(semantic.StringOperand)
	if string(s.Value) != "Hello" || s.Hex {
		t.Fatalf("unexpected Tj operand: %+v", s)
	}
}

func TestBuilderTrueTypeTextIsGlyphEncoded(t *testing.T) {
	b := NewBuilder()
	b.RegisterTrueTypeFont("Body", goregular.TTF)
	b.NewPage(200, 200).DrawText("Київ", 10, 10, TextOptions{Font: "Body"})

	doc, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	page := doc.Pages[0]
	if len(page.Contents) != 1 {
		t.Fatalf("expected open page to be flushed by Build, got %d streams", len(page.Contents))
	}
	font := page.Resources.Fonts["Body"]
	if font == nil || !font.IsComposite() {
		t.Fatalf("expected composite font, got %#v", font)
	}
	if len(font.ToUnicode) != 4 {
		t.Fatalf("expected 4 ToUnicode entries, got %d", len(font.ToUnicode))
	}
	for _, op := range page.Contents[0].Operations {
		if op.Operator == "Tj" {
			s := op.Operands[0].(semantic.StringOperand)
			if !s.Hex || len(s.Value) != 8 {
				t.Fatalf("expected 4 two-byte glyph codes, got %+v", s)
			}
		}
	}
}

func TestBuilderColoredTextDoesNotLeak(t *testing.T) {
	b := NewBuilder()
	b.NewPage(200, 200).
		DrawText("code", 10, 100, TextOptions{Color: Color{R: 0.2, G: 0.2, B: 0.2}}).
		DrawText("after", 10, 80, TextOptions{})

	doc, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	var got []string
	for _, op := range doc.Pages[0].Contents[0].Operations {
		got = append(got, op.Operator)
	}
	want := []string{"q", "BT", "Tf", "rg", "Td", "Tj", "ET", "Q", "BT", "Tf", "Td", "Tj", "ET"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected operators:\n got %v\nwant %v", got, want)
	}
}

func TestBuilderReportsFontError(t *testing.T) {
	b := NewBuilder()
	b.RegisterTrueTypeFont("Broken", []byte("nope"))
	b.NewPage(100, 100)
	if _, err := b.Build(); err == nil {
		t.Fatalf("expected font registration error")
	}
}

func TestBuilderWithoutPages(t *testing.T) {
	if _, err := NewBuilder().Build(); err == nil {
		t.Fatalf("expected error for empty document")
	}
}

func TestMeasureTextUsesFontMetrics(t *testing.T) {
	b := NewBuilder()
	narrow := b.MeasureText("iiii", 12, "")
	wide := b.MeasureText("WWWW", 12, "")
	if narrow <= 0 || wide <= narrow {
		t.Fatalf("expected W wider than i: %v vs %v", wide, narrow)
	}
	if b.Covers("Київ", "") {
		t.Fatalf("standard font should not cover Cyrillic")
	}
}

func TestImageFromBytesJPEGPassthrough(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	out, err := ImageFromBytes(buf.Bytes())
	if err != nil {
		t.Fatalf("ImageFromBytes() error = %v", err)
	}
	if out.Filter != "DCTDecode" || out.Width != 4 || out.Height != 3 {
		t.Fatalf("unexpected image: %+v", out)
	}
	if !bytes.Equal(out.Data, buf.Bytes()) {
		t.Fatalf("expected jpeg bytes to be passed through")
	}
}

func TestImageFromBytesPNGToRGB(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	out, err := ImageFromBytes(buf.Bytes())
	if err != nil {
		t.Fatalf("ImageFromBytes() error = %v", err)
	}
	if out.Filter != "" || out.ColorSpace != "DeviceRGB" || len(out.Data) != 12 {
		t.Fatalf("unexpected image: %+v", out)
	}
	if out.Data[0] != 255 || out.Data[1] != 0 || out.Data[2] != 0 {
		t.Fatalf("expected red first pixel, got %v", out.Data[:3])
	}
	// Fully transparent pixels become white.
	if out.Data[3] != 255 || out.Data[4] != 255 || out.Data[5] != 255 {
		t.Fatalf("expected white second pixel, got %v", out.Data[3:6])
	}
}

func TestImageFromBytesRejectsGarbage(t *testing.T) {
	if _, err := ImageFromBytes([]byte("garbage")); err == nil {
		t.Fatalf("expected decode error")
	}
}
