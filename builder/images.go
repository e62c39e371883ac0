package builder

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png" // Register decoders

	"github.com/wudi/scanpdf/ir/semantic"
)

// ImageFromBytes converts encoded image data to *semantic.Image. Baseline
// JPEG data in gray or RGB is embedded as-is; every other input is decoded
// and stored as RGB samples.
func ImageFromBytes(data []byte) (*semantic.Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	if format == "jpeg" {
		switch cfg.ColorModel {
		case color.GrayModel:
			return &semantic.Image{Width: cfg.Width, Height: cfg.Height, ColorSpace: "DeviceGray", BitsPerComponent: 8, Data: data, Filter: "DCTDecode"}, nil
		case color.YCbCrModel:
			return &semantic.Image{Width: cfg.Width, Height: cfg.Height, ColorSpace: "DeviceRGB", BitsPerComponent: 8, Data: data, Filter: "DCTDecode"}, nil
		}
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return FromImage(img), nil
}

// FromImage converts a standard Go image.Image to *semantic.Image.
// Transparent pixels are composited onto white.
func FromImage(src image.Image) *semantic.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if g, ok := src.(*image.Gray); ok {
		pixels := make([]byte, 0, w*h)
		for y := 0; y < h; y++ {
			row := g.Pix[y*g.Stride : y*g.Stride+w]
			pixels = append(pixels, row...)
		}
		return &semantic.Image{Width: w, Height: h, ColorSpace: "DeviceGray", BitsPerComponent: 8, Data: pixels}
	}

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(rgba, rgba.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(rgba, rgba.Bounds(), src, bounds.Min, draw.Over)

	pixels := make([]byte, 0, w*h*3)
	for i := 0; i < w*h; i++ {
		offset := i * 4
		pixels = append(pixels, rgba.Pix[offset], rgba.Pix[offset+1], rgba.Pix[offset+2])
	}
	return &semantic.Image{
		Width:            w,
		Height:           h,
		ColorSpace:       "DeviceRGB",
		BitsPerComponent: 8,
		Data:             pixels,
	}
}

// EncodeJPEG is a helper for callers that want DCT-compressed page images
// instead of raw samples.
func EncodeJPEG(src image.Image, quality int) (*semantic.Image, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return ImageFromBytes(buf.Bytes())
}
