package convert

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/wudi/scanpdf/ocr"
	"github.com/wudi/scanpdf/store"
	"github.com/wudi/scanpdf/writer"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func fixedEngine(text string) ocr.Engine {
	return ocr.EngineFunc(func(ctx context.Context, in ocr.Input) (ocr.Result, error) {
		return ocr.Result{InputID: in.ID, PlainText: text}, nil
	})
}

func newTestConverter(t *testing.T, engine ocr.Engine, opts ...Option) (*Converter, *store.Store, string) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	out := filepath.Join(dir, "outputs")
	require.NoError(t, os.MkdirAll(out, 0o755))

	base := []Option{
		WithRecorder(st),
		WithOutputDir(out),
		WithWriterConfig(writer.Config{NoCompression: true, Deterministic: true}),
	}
	return New(engine, append(base, opts...)...), st, out
}

func TestFromImage(t *testing.T) {
	var seen ocr.Input
	engine := ocr.EngineFunc(func(ctx context.Context, in ocr.Input) (ocr.Result, error) {
		seen = in
		return ocr.Result{InputID: in.ID, PlainText: "Recognized text"}, nil
	})
	c, st, out := newTestConverter(t, engine)

	res, err := c.FromImage(context.Background(), ImageRequest{Data: pngBytes(t, 40, 20), Filename: "scan.png", PageSegMode: 6})
	require.NoError(t, err)

	assert.Equal(t, KindImage, res.Kind)
	assert.Equal(t, "ocr_result.pdf", res.Filename)
	assert.Equal(t, "Recognized text", res.Text)
	assert.Equal(t, 1, res.Pages)
	assert.True(t, bytes.HasPrefix(res.PDF, []byte("%PDF-")))
	assert.Contains(t, string(res.PDF), "(Recognized text) Tj")
	assert.Contains(t, string(res.PDF), "/Title (scan)")
	assert.Contains(t, string(res.PDF), "/Lang (uk)")

	assert.Equal(t, []string{"ukr", "eng"}, seen.Languages)
	assert.Equal(t, res.ID, seen.ID)
	assert.Equal(t, ocr.ImageFormatPNG, seen.Format)
	assert.Equal(t, map[string]string{ocr.VarPageSegMode: "6"}, seen.Metadata)

	rec, err := st.Get(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusDone, rec.Status)
	assert.Equal(t, "ukr+eng", rec.Languages)
	assert.Equal(t, filepath.Join(out, res.ID+".pdf"), rec.OutputPath)
	assert.Equal(t, int64(len(res.PDF)), rec.OutputBytes)

	saved, err := os.ReadFile(rec.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, res.PDF, saved)
}

func TestFromImageIncludeImage(t *testing.T) {
	c, _, _ := newTestConverter(t, fixedEngine("text"))

	res, err := c.FromImage(context.Background(), ImageRequest{
		Data:         pngBytes(t, 40, 20),
		Languages:    []string{"eng"},
		IncludeImage: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pages)
	assert.Contains(t, string(res.PDF), "/Subtype /Image")
	assert.Contains(t, string(res.PDF), "/Lang (en)")
}

func TestFromImageUnsupported(t *testing.T) {
	c, st, _ := newTestConverter(t, fixedEngine("unused"))

	_, err := c.FromImage(context.Background(), ImageRequest{Data: []byte("not an image")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ocr.ErrUnsupportedImage)

	recs, err := st.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, store.StatusFailed, recs[0].Status)
	assert.Contains(t, recs[0].Error, "unsupported image")
}

func TestFromImageEngineFailure(t *testing.T) {
	boom := errors.New("engine crashed")
	engine := ocr.EngineFunc(func(ctx context.Context, in ocr.Input) (ocr.Result, error) {
		return ocr.Result{}, boom
	})
	c, st, out := newTestConverter(t, engine)

	_, err := c.FromImage(context.Background(), ImageRequest{Data: pngBytes(t, 10, 10)})
	assert.ErrorIs(t, err, boom)

	recs, err := st.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, store.StatusFailed, recs[0].Status)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFromImageWithoutEngine(t *testing.T) {
	c, _, _ := newTestConverter(t, nil)
	assert.Equal(t, "none", c.EngineName())

	_, err := c.FromImage(context.Background(), ImageRequest{Data: pngBytes(t, 10, 10)})
	assert.Error(t, err)
}

func TestFromText(t *testing.T) {
	c, _, _ := newTestConverter(t, nil)

	res, err := c.FromText(context.Background(), "first line\nsecond line")
	require.NoError(t, err)
	assert.Equal(t, "text_to_pdf.pdf", res.Filename)
	assert.Equal(t, 1, res.Pages)
	assert.Contains(t, string(res.PDF), "(first line) Tj")
	assert.Contains(t, string(res.PDF), "(second line) Tj")
	assert.Contains(t, string(res.PDF), "/Title (text_to_pdf)")
}

func TestFromTextWhitespaceGivesBlankPage(t *testing.T) {
	c, _, _ := newTestConverter(t, nil)

	res, err := c.FromText(context.Background(), "   \n")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pages)
}

func TestFromMarkdownAndHTML(t *testing.T) {
	c, _, _ := newTestConverter(t, nil)
	ctx := context.Background()

	md, err := c.FromMarkdown(ctx, "# Title\n\nBody text")
	require.NoError(t, err)
	assert.Equal(t, "markdown.pdf", md.Filename)
	assert.Contains(t, string(md.PDF), "(Body text) Tj")

	h, err := c.FromHTML(ctx, "<h1>Title</h1><p>Paragraph</p>")
	require.NoError(t, err)
	assert.Equal(t, "html.pdf", h.Filename)
	assert.Contains(t, string(h.PDF), "(Paragraph) Tj")
}

func TestFromMarkdownColorDoesNotLeak(t *testing.T) {
	c, _, _ := newTestConverter(t, nil)

	res, err := c.FromMarkdown(context.Background(), "```\ncode\n```\n\nafter")
	require.NoError(t, err)
	pdf := string(res.PDF)
	code := strings.Index(pdf, "(code) Tj")
	after := strings.Index(pdf, "(after) Tj")
	require.True(t, code >= 0 && after > code, "missing text runs in %q", pdf)
	between := pdf[code:after]
	assert.Contains(t, between, "Q\n")
	assert.NotContains(t, between, " rg\n")
}

func TestFromMarkdownMath(t *testing.T) {
	c, _, _ := newTestConverter(t, nil)

	res, err := c.FromMarkdown(context.Background(), "Energy:\n\n$$E = mc^2$$")
	require.NoError(t, err)
	pdf := string(res.PDF)
	assert.Contains(t, pdf, "^2")
	assert.NotContains(t, pdf, "$$")
}

type incompleteRecorder struct {
	*store.Store
}

func (r incompleteRecorder) Complete(ctx context.Context, id, outputPath string, outputBytes int64, pages int) error {
	return errors.New("disk full")
}

func TestRecordFailureRemovesOutput(t *testing.T) {
	c, st, out := newTestConverter(t, nil)
	c.recorder = incompleteRecorder{st}

	_, err := c.FromText(context.Background(), "hello")
	require.ErrorContains(t, err, "disk full")

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)

	list, err := st.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, store.StatusFailed, list[0].Status)
}

func TestEmbeddedFont(t *testing.T) {
	c, _, _ := newTestConverter(t, nil, WithFont(goregular.TTF))
	ctx := context.Background()

	first, err := c.FromText(ctx, "Привіт")
	require.NoError(t, err)
	assert.Contains(t, string(first.PDF), "/Subtype /Type0")
	assert.Contains(t, string(first.PDF), "/ToUnicode")

	// A second document must not inherit the first one's glyph usage.
	second, err := c.FromText(ctx, "Hello")
	require.NoError(t, err)
	assert.NotContains(t, string(second.PDF), "<041F>")
}

func TestEmptyInput(t *testing.T) {
	c, st, _ := newTestConverter(t, fixedEngine("x"))
	ctx := context.Background()

	_, err := c.FromText(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyInput)
	_, err = c.FromImage(ctx, ImageRequest{})
	assert.ErrorIs(t, err, ErrEmptyInput)

	recs, err := st.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestBusy(t *testing.T) {
	c, _, _ := newTestConverter(t, nil, WithWorkers(1))
	c.slots <- struct{}{}
	defer func() { <-c.slots }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := c.FromText(ctx, "waiting")
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOpen(t *testing.T) {
	c, st, _ := newTestConverter(t, nil)
	ctx := context.Background()

	res, err := c.FromText(ctx, "stored")
	require.NoError(t, err)

	got, err := c.Open(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.PDF, got.PDF)
	assert.Equal(t, "text_to_pdf.pdf", got.Filename)
	assert.Equal(t, 1, got.Pages)

	_, err = c.Open(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	pending, err := st.Create(ctx, store.NewConversion{Kind: "text", Input: []byte("x")})
	require.NoError(t, err)
	_, err = c.Open(ctx, pending.ID)
	assert.ErrorIs(t, err, ErrUnavailable)

	rec, err := st.Get(ctx, res.ID)
	require.NoError(t, err)
	require.NoError(t, os.Remove(rec.OutputPath))
	_, err = c.Open(ctx, res.ID)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestWithoutRecorder(t *testing.T) {
	c := New(nil)

	res, err := c.FromText(context.Background(), "ephemeral")
	require.NoError(t, err)
	assert.Len(t, res.ID, 36)

	_, err = c.Open(context.Background(), res.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTitleFrom(t *testing.T) {
	assert.Equal(t, "scan", titleFrom("dir/scan.jpeg"))
	assert.Equal(t, "", titleFrom(""))
	assert.Equal(t, "", pdfLanguage(nil))
	assert.Equal(t, "", pdfLanguage([]string{"xyz"}))
}
