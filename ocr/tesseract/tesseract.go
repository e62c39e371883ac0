// Package tesseract implements ocr.Engine on top of the Tesseract C API via
// gosseract.
package tesseract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"os/exec"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/wudi/scanpdf/ocr"
)

// ErrMissingLanguage is returned by Check when trained data for a requested
// language is not installed.
var ErrMissingLanguage = errors.New("tesseract: language data not installed")

// Engine implements ocr.Engine and ocr.BatchEngine using a fresh gosseract
// client per image.
type Engine struct {
	clientFactory func() *gosseract.Client
	languages     []string
}

// Option configures an Engine.
type Option func(*Engine)

// WithDefaultLanguages sets the languages used when an input carries none.
func WithDefaultLanguages(langs ...string) Option {
	return func(e *Engine) { e.languages = append([]string(nil), langs...) }
}

// New constructs a Tesseract-backed OCR engine.
func New(opts ...Option) *Engine {
	e := &Engine{clientFactory: gosseract.NewClient}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize performs OCR on a single image input.
func (e *Engine) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Result{}, err
	}
	c := e.clientFactory()
	defer c.Close()
	res, err := e.recognizeWithClient(c, in)
	if err != nil {
		return ocr.Result{}, err
	}
	// The C call cannot be interrupted; drop the result if the caller gave up.
	if err := ctx.Err(); err != nil {
		return ocr.Result{}, err
	}
	return res, nil
}

// RecognizeBatch processes inputs sequentially, checking ctx between images.
func (e *Engine) RecognizeBatch(ctx context.Context, inputs []ocr.Input) ([]ocr.Result, error) {
	results := make([]ocr.Result, 0, len(inputs))
	for _, in := range inputs {
		res, err := e.Recognize(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("recognize %s: %w", in.ID, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (e *Engine) recognizeWithClient(c *gosseract.Client, in ocr.Input) (ocr.Result, error) {
	imgData, err := cropImage(in.Image, in.Region)
	if err != nil {
		return ocr.Result{}, err
	}
	if err := c.SetImageFromBytes(imgData); err != nil {
		return ocr.Result{}, fmt.Errorf("set image: %w", err)
	}
	langs := in.Languages
	if len(langs) == 0 {
		langs = e.languages
	}
	if len(langs) > 0 {
		if err := c.SetLanguage(langs...); err != nil {
			return ocr.Result{}, fmt.Errorf("set languages: %w", err)
		}
	}
	if in.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(in.DPI)); err != nil {
			return ocr.Result{}, fmt.Errorf("set dpi: %w", err)
		}
	}
	for k, v := range in.Metadata {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return ocr.Result{}, fmt.Errorf("set variable %s: %w", k, err)
		}
	}
	text, err := c.Text()
	if err != nil {
		return ocr.Result{}, fmt.Errorf("recognize text: %w", err)
	}
	plain := strings.TrimSpace(text)

	words, avgConf := extractWords(c)
	bounds := mergeBounds(words)
	block := ocr.TextBlock{
		Text:       plain,
		Bounds:     bounds,
		Lines:      splitLines(plain, words, bounds, avgConf),
		Confidence: avgConf,
	}

	return ocr.Result{
		InputID:    in.ID,
		PlainText:  plain,
		Blocks:     []ocr.TextBlock{block},
		Language:   firstLanguage(langs),
		Confidence: avgConf,
	}, nil
}

// Version reports the linked Tesseract library version.
func Version() string {
	return gosseract.Version()
}

// Languages lists the installed trained data.
func Languages() ([]string, error) {
	langs, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return nil, fmt.Errorf("list languages: %w", err)
	}
	return langs, nil
}

// Check verifies that every language in langs has trained data installed.
func Check(langs []string) error {
	installed, err := Languages()
	if err != nil {
		return err
	}
	return missingLanguages(langs, installed)
}

// BinaryPath locates the tesseract command line tool. The engine links the
// library directly; the binary's presence indicates a complete install.
func BinaryPath() (string, error) {
	return exec.LookPath("tesseract")
}

func missingLanguages(want, installed []string) error {
	have := make(map[string]bool, len(installed))
	for _, l := range installed {
		have[l] = true
	}
	var missing []string
	for _, l := range want {
		if !have[l] {
			missing = append(missing, l)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingLanguage, strings.Join(missing, ", "))
	}
	return nil
}

func extractWords(c *gosseract.Client) ([]ocr.TextWord, float64) {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return nil, 0
	}
	words := make([]ocr.TextWord, 0, len(boxes))
	var sum float64
	for _, b := range boxes {
		conf := b.Confidence / 100.0
		sum += conf
		words = append(words, ocr.TextWord{
			Text:       b.Word,
			Bounds:     ocr.Region{X: float64(b.Box.Min.X), Y: float64(b.Box.Min.Y), Width: float64(b.Box.Dx()), Height: float64(b.Box.Dy())},
			Confidence: conf,
		})
	}
	return words, sum / float64(len(words))
}

// splitLines pairs each line of recognized text with the words it contains,
// in reading order.
func splitLines(plain string, words []ocr.TextWord, bounds ocr.Region, conf float64) []ocr.TextLine {
	var lines []ocr.TextLine
	next := 0
	for _, text := range strings.Split(plain, "\n") {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		n := len(strings.Fields(text))
		if next+n > len(words) {
			lines = append(lines, ocr.TextLine{Text: text, Bounds: bounds, Confidence: conf})
			continue
		}
		lw := words[next : next+n]
		next += n
		var sum float64
		for _, w := range lw {
			sum += w.Confidence
		}
		lines = append(lines, ocr.TextLine{
			Text:       text,
			Bounds:     mergeBounds(lw),
			Words:      lw,
			Confidence: sum / float64(len(lw)),
		})
	}
	return lines
}

func mergeBounds(words []ocr.TextWord) ocr.Region {
	if len(words) == 0 {
		return ocr.Region{}
	}
	minX, minY := math.MaxFloat64, math.MaxFloat64
	var maxX, maxY float64
	for _, w := range words {
		minX = math.Min(minX, w.Bounds.X)
		minY = math.Min(minY, w.Bounds.Y)
		maxX = math.Max(maxX, w.Bounds.X+w.Bounds.Width)
		maxY = math.Max(maxY, w.Bounds.Y+w.Bounds.Height)
	}
	return ocr.Region{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

func firstLanguage(langs []string) string {
	if len(langs) == 0 {
		return ""
	}
	return langs[0]
}

func cropImage(data []byte, region *ocr.Region) ([]byte, error) {
	if region == nil || region.IsEmpty() {
		return data, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode for region: %w", err)
	}
	rect := image.Rect(
		int(math.Round(region.X)),
		int(math.Round(region.Y)),
		int(math.Round(region.X+region.Width)),
		int(math.Round(region.Y+region.Height)),
	).Intersect(img.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("region outside image bounds")
	}
	subImg, ok := img.(interface {
		SubImage(r image.Rectangle) image.Image
	})
	if !ok {
		return nil, fmt.Errorf("image does not support sub-image")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, subImg.SubImage(rect)); err != nil {
		return nil, fmt.Errorf("encode cropped image: %w", err)
	}
	return buf.Bytes(), nil
}
