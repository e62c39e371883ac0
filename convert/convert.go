// Package convert runs a conversion end to end: OCR or markup parsing,
// layout, PDF serialization and bookkeeping in the store.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wudi/scanpdf/builder"
	"github.com/wudi/scanpdf/ir/semantic"
	"github.com/wudi/scanpdf/layout"
	"github.com/wudi/scanpdf/observability"
	"github.com/wudi/scanpdf/ocr"
	"github.com/wudi/scanpdf/store"
	"github.com/wudi/scanpdf/writer"
)

var (
	// ErrEmptyInput is returned when a request carries no data at all.
	ErrEmptyInput = errors.New("convert: empty input")
	// ErrBusy is returned when the context ends while waiting for a free
	// conversion slot.
	ErrBusy = errors.New("convert: no conversion slot available")
	// ErrUnavailable is returned by Open for conversions without a stored PDF.
	ErrUnavailable = errors.New("convert: output not available")
)

type Kind string

const (
	KindImage    Kind = "image"
	KindText     Kind = "text"
	KindMarkdown Kind = "markdown"
	KindHTML     Kind = "html"
)

// Filename is the download name used for each kind of conversion.
func (k Kind) Filename() string {
	switch k {
	case KindImage:
		return "ocr_result.pdf"
	case KindText:
		return "text_to_pdf.pdf"
	case KindMarkdown:
		return "markdown.pdf"
	case KindHTML:
		return "html.pdf"
	}
	return "document.pdf"
}

// DefaultLanguages are used for OCR when neither the request nor the
// converter names any.
var DefaultLanguages = []string{"ukr", "eng"}

const bodyFont = "Body"

// Recorder is the subset of the store used by a Converter.
type Recorder interface {
	Create(ctx context.Context, in store.NewConversion) (store.Conversion, error)
	Complete(ctx context.Context, id, outputPath string, outputBytes int64, pages int) error
	Fail(ctx context.Context, id string, cause error) error
	Get(ctx context.Context, id string) (store.Conversion, error)
}

// ImageRequest is an uploaded image to recognize.
type ImageRequest struct {
	Data      []byte
	Filename  string
	Languages []string
	// IncludeImage places the source image on the first page, before the
	// recognized text.
	IncludeImage bool
	// PageSegMode is the Tesseract page segmentation mode (1-13); zero keeps
	// the engine default.
	PageSegMode int
	// Whitelist restricts recognition to these characters.
	Whitelist string
}

// Result is a finished conversion.
type Result struct {
	ID       string
	Kind     Kind
	Filename string
	PDF      []byte
	Pages    int
	Text     string
}

type Converter struct {
	engine     ocr.Engine
	recorder   Recorder
	outputDir  string
	fontData   []byte
	languages  []string
	layoutOpts []layout.Option
	writerCfg  writer.Config
	writer     writer.Writer
	logger     observability.Logger
	tracer     observability.Tracer
	slots      chan struct{}
}

type Option func(*Converter)

// WithRecorder persists conversion records.
func WithRecorder(r Recorder) Option {
	return func(c *Converter) { c.recorder = r }
}

// WithOutputDir stores every produced PDF under dir as <id>.pdf.
func WithOutputDir(dir string) Option {
	return func(c *Converter) { c.outputDir = dir }
}

// WithFont embeds the TrueType font data as the body font. Without it the
// standard Helvetica font is used.
func WithFont(data []byte) Option {
	return func(c *Converter) { c.fontData = data }
}

func WithLanguages(langs ...string) Option {
	return func(c *Converter) { c.languages = append([]string(nil), langs...) }
}

// WithWorkers bounds the number of conversions running at once.
func WithWorkers(n int) Option {
	return func(c *Converter) {
		if n > 0 {
			c.slots = make(chan struct{}, n)
		}
	}
}

func WithLayoutOptions(opts ...layout.Option) Option {
	return func(c *Converter) { c.layoutOpts = append(c.layoutOpts, opts...) }
}

func WithWriterConfig(cfg writer.Config) Option {
	return func(c *Converter) { c.writerCfg = cfg }
}

func WithLogger(l observability.Logger) Option {
	return func(c *Converter) { c.logger = l }
}

func WithTracer(t observability.Tracer) Option {
	return func(c *Converter) { c.tracer = t }
}

// New builds a Converter. engine may be nil when only markup conversions are
// needed; FromImage then fails.
func New(engine ocr.Engine, opts ...Option) *Converter {
	c := &Converter{
		engine:    engine,
		languages: DefaultLanguages,
		writerCfg: writer.Config{Producer: "scanpdf"},
		logger:    observability.NopLogger{},
		tracer:    observability.NopTracer(),
		slots:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.writer = (&writer.WriterBuilder{}).WithLogger(c.logger).Build()
	return c
}

// EngineName reports the configured OCR engine, or "none".
func (c *Converter) EngineName() string {
	if c.engine == nil {
		return "none"
	}
	return c.engine.Name()
}

// FromImage recognizes the text of an uploaded image and lays it out as a PDF.
func (c *Converter) FromImage(ctx context.Context, req ImageRequest) (Result, error) {
	langs := req.Languages
	if len(langs) == 0 {
		langs = c.languages
	}
	j := job{kind: KindImage, input: req.Data, languages: langs, title: titleFrom(req.Filename)}
	return c.run(ctx, j, func(ctx context.Context, id string, eng *layout.Engine) (string, error) {
		in, err := ocr.PrepareImage(req.Data,
			ocr.WithID(id),
			ocr.WithLanguages(langs...),
			ocr.WithPageSegMode(req.PageSegMode),
			ocr.WithCharWhitelist(req.Whitelist),
		)
		if err != nil {
			return "", err
		}

		start := time.Now()
		results, err := ocr.Recognize(ctx, c.engine, []ocr.Input{in})
		if err != nil {
			return "", err
		}
		text := ocr.JoinText(results)
		c.logger.Debug("ocr finished",
			observability.String("id", id),
			observability.String("engine", c.EngineName()),
			observability.Int("chars", len([]rune(text))),
			observability.Duration(observability.MetricOCRTime, time.Since(start)),
		)

		if req.IncludeImage {
			img, err := builder.ImageFromBytes(in.Image)
			if err != nil {
				return "", fmt.Errorf("embed image: %w", err)
			}
			eng.RenderImage(img)
			eng.PageBreak()
		}
		return text, eng.RenderText(text)
	})
}

// FromText lays out plain text, one output line per input line.
func (c *Converter) FromText(ctx context.Context, text string) (Result, error) {
	return c.run(ctx, job{kind: KindText, input: []byte(text)}, func(_ context.Context, _ string, eng *layout.Engine) (string, error) {
		return text, eng.RenderText(text)
	})
}

func (c *Converter) FromMarkdown(ctx context.Context, src string) (Result, error) {
	return c.run(ctx, job{kind: KindMarkdown, input: []byte(src)}, func(_ context.Context, _ string, eng *layout.Engine) (string, error) {
		return src, eng.RenderMarkdown(src)
	})
}

func (c *Converter) FromHTML(ctx context.Context, src string) (Result, error) {
	return c.run(ctx, job{kind: KindHTML, input: []byte(src)}, func(_ context.Context, _ string, eng *layout.Engine) (string, error) {
		return src, eng.RenderHTML(src)
	})
}

// Open returns the stored PDF of a finished conversion.
func (c *Converter) Open(ctx context.Context, id string) (Result, error) {
	if c.recorder == nil {
		return Result{}, store.ErrNotFound
	}
	rec, err := c.recorder.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if rec.Status != store.StatusDone || rec.OutputPath == "" {
		return Result{}, fmt.Errorf("%w: conversion %s is %s", ErrUnavailable, id, rec.Status)
	}
	data, err := os.ReadFile(rec.OutputPath)
	if errors.Is(err, os.ErrNotExist) {
		return Result{}, fmt.Errorf("%w: output of %s was removed", ErrUnavailable, id)
	}
	if err != nil {
		return Result{}, fmt.Errorf("read output: %w", err)
	}
	kind := Kind(rec.Kind)
	return Result{ID: rec.ID, Kind: kind, Filename: kind.Filename(), PDF: data, Pages: rec.Pages}, nil
}

type job struct {
	kind      Kind
	input     []byte
	languages []string
	title     string
}

type renderFunc func(ctx context.Context, id string, eng *layout.Engine) (text string, err error)

func (c *Converter) run(ctx context.Context, j job, render renderFunc) (Result, error) {
	if len(j.input) == 0 {
		return Result{}, ErrEmptyInput
	}
	select {
	case c.slots <- struct{}{}:
		defer func() { <-c.slots }()
	case <-ctx.Done():
		return Result{}, fmt.Errorf("%w: %w", ErrBusy, ctx.Err())
	}

	ctx, span := c.tracer.StartSpan(ctx, "convert."+string(j.kind))
	defer span.Finish()
	start := time.Now()

	id, err := c.create(ctx, j)
	if err != nil {
		span.SetError(err)
		return Result{}, err
	}
	span.SetTag("conversion.id", id)
	log := c.logger.With(observability.String("id", id), observability.String("kind", string(j.kind)))

	res, err := c.render(ctx, id, j, render)
	if err != nil {
		span.SetError(err)
		log.Error("conversion failed", observability.Error("error", err))
		if c.recorder != nil {
			// The request context may already be cancelled; the failure
			// still has to be recorded.
			if ferr := c.recorder.Fail(context.WithoutCancel(ctx), id, err); ferr != nil {
				log.Warn("record failure", observability.Error("error", ferr))
			}
		}
		return Result{}, fmt.Errorf("convert %s: %w", j.kind, err)
	}

	log.Info("conversion finished",
		observability.Int(observability.MetricPageCount, res.Pages),
		observability.Int(observability.MetricInputBytes, len(j.input)),
		observability.Int(observability.MetricOutputBytes, len(res.PDF)),
		observability.Duration(observability.MetricConvertTime, time.Since(start)),
	)
	return res, nil
}

func (c *Converter) create(ctx context.Context, j job) (string, error) {
	if c.recorder == nil {
		return uuid.NewString(), nil
	}
	rec, err := c.recorder.Create(ctx, store.NewConversion{Kind: string(j.kind), Input: j.input, Languages: j.languages})
	if err != nil {
		return "", fmt.Errorf("record conversion: %w", err)
	}
	return rec.ID, nil
}

func (c *Converter) render(ctx context.Context, id string, j job, render renderFunc) (Result, error) {
	b := builder.NewBuilder()
	var opts []layout.Option
	if len(c.fontData) > 0 {
		// Faces collect the glyphs they draw, so each document gets its own.
		b.RegisterTrueTypeFont(bodyFont, c.fontData)
		opts = append(opts, layout.WithDefaultFont(bodyFont))
	}
	title := j.title
	if title == "" {
		title = strings.TrimSuffix(j.kind.Filename(), ".pdf")
	}
	b.SetInfo(&semantic.DocumentInfo{Title: title, Creator: "scanpdf", Producer: c.writerCfg.Producer})
	if lang := pdfLanguage(j.languages); lang != "" {
		b.SetLanguage(lang)
	}

	start := time.Now()
	eng := layout.NewEngine(b, append(opts, c.layoutOpts...)...)
	text, err := render(ctx, id, eng)
	if err != nil {
		return Result{}, err
	}
	doc, err := b.Build()
	if err != nil {
		return Result{}, fmt.Errorf("build document: %w", err)
	}
	c.logger.Debug("layout finished",
		observability.String("id", id),
		observability.Duration(observability.MetricLayoutTime, time.Since(start)),
	)

	var buf bytes.Buffer
	if err := c.writer.Write(ctx, doc, &buf, c.writerCfg); err != nil {
		return Result{}, fmt.Errorf("write pdf: %w", err)
	}
	res := Result{
		ID:       id,
		Kind:     j.kind,
		Filename: j.kind.Filename(),
		PDF:      buf.Bytes(),
		Pages:    doc.PageCount(),
		Text:     text,
	}

	var path string
	if c.outputDir != "" {
		path = filepath.Join(c.outputDir, id+".pdf")
		if err := os.WriteFile(path, res.PDF, 0o644); err != nil {
			return Result{}, fmt.Errorf("save pdf: %w", err)
		}
	}
	if c.recorder != nil {
		if err := c.recorder.Complete(ctx, id, path, int64(len(res.PDF)), res.Pages); err != nil {
			// Unrecorded outputs are never swept.
			if path != "" {
				if rerr := os.Remove(path); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
					c.logger.Warn("remove unrecorded output", observability.String("id", id), observability.Error("error", rerr))
				}
			}
			return Result{}, fmt.Errorf("record result: %w", err)
		}
	}
	return res, nil
}

// tesseractToBCP47 maps trained-data names to document language tags.
var tesseractToBCP47 = map[string]string{
	"ukr": "uk",
	"eng": "en",
	"deu": "de",
	"fra": "fr",
	"pol": "pl",
	"rus": "ru",
	"spa": "es",
	"ita": "it",
}

// pdfLanguage returns the /Lang tag for the primary OCR language.
func pdfLanguage(langs []string) string {
	if len(langs) == 0 {
		return ""
	}
	return tesseractToBCP47[langs[0]]
}

func titleFrom(filename string) string {
	base := filepath.Base(filename)
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
