package ocr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedImage is returned for data that is not a decodable image in
// one of the supported formats.
var ErrUnsupportedImage = errors.New("ocr: unsupported image")

const (
	// MaxImageSide bounds the longest side of an engine input; larger images
	// are scaled down before recognition.
	MaxImageSide = 4000
	// MaxImagePixels rejects images whose declared size would exhaust memory
	// when decoded.
	MaxImagePixels = 100_000_000
)

// InputOption mutates an OCR input.
type InputOption func(*Input)

// WithID sets the identifier echoed back in the Result.
func WithID(id string) InputOption {
	return func(in *Input) { in.ID = id }
}

// WithLanguages sets language hints on the OCR input.
func WithLanguages(langs ...string) InputOption {
	return func(in *Input) { in.Languages = append([]string(nil), langs...) }
}

// WithRegion sets the recognition region on the OCR input.
func WithRegion(region Region) InputOption {
	return func(in *Input) {
		if region.IsEmpty() {
			in.Region = nil
			return
		}
		in.Region = &region
	}
}

// WithDPI overrides the DPI value on the OCR input.
func WithDPI(dpi int) InputOption {
	return func(in *Input) { in.DPI = dpi }
}

// WithMetadata sets provider-specific metadata for the input.
func WithMetadata(metadata map[string]string) InputOption {
	return func(in *Input) {
		if len(metadata) == 0 {
			in.Metadata = nil
			return
		}
		in.Metadata = make(map[string]string, len(metadata))
		for k, v := range metadata {
			in.Metadata[k] = v
		}
	}
}

// PrepareImage decodes an uploaded image in any supported format, scales it
// down to MaxImageSide and re-encodes it as PNG for the engine.
func PrepareImage(data []byte, opts ...InputOption) (Input, error) {
	if len(data) == 0 {
		return Input{}, fmt.Errorf("%w: empty data", ErrUnsupportedImage)
	}
	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Input{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > MaxImagePixels {
		return Input{}, fmt.Errorf("%w: %dx%d pixels", ErrUnsupportedImage, cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Input{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	img = Downscale(img, MaxImageSide)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Input{}, fmt.Errorf("encode png: %w", err)
	}

	b := img.Bounds()
	in := Input{
		Image:        buf.Bytes(),
		Format:       ImageFormatPNG,
		SourceFormat: formatByName[name],
		Width:        b.Dx(),
		Height:       b.Dy(),
	}
	for _, opt := range opts {
		opt(&in)
	}
	return in, nil
}

// Downscale returns img unchanged when its longest side is within maxSide,
// otherwise a proportionally resampled copy.
func Downscale(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := w
	if h > longest {
		longest = h
	}
	if maxSide <= 0 || longest <= maxSide {
		return img
	}
	nw := w * maxSide / longest
	nh := h * maxSide / longest
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
