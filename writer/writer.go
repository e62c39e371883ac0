package writer

import (
	"context"
	"io"

	"github.com/wudi/scanpdf/ir/semantic"
	"github.com/wudi/scanpdf/observability"
)

type PDFVersion string

const (
	PDF14 PDFVersion = "1.4"
	PDF17 PDFVersion = "1.7"
)

// Config controls serialization.
type Config struct {
	Version PDFVersion
	// Compression is the zlib level for content and image streams; zero
	// selects the default level.
	Compression int
	// NoCompression writes content streams uncompressed, which keeps them
	// readable for debugging and tests.
	NoCompression bool
	// Deterministic derives the file identifier from the document content
	// and omits the current time, so equal input yields equal bytes.
	Deterministic bool
	Producer      string
}

// Writer serializes a semantic document as a complete PDF file.
type Writer interface {
	Write(ctx context.Context, doc *semantic.Document, w io.Writer, cfg Config) error
}

// WriterBuilder assembles a Writer.
type WriterBuilder struct {
	logger observability.Logger
}

// WithLogger attaches a logger that receives one debug line per document.
func (b *WriterBuilder) WithLogger(l observability.Logger) *WriterBuilder {
	b.logger = l
	return b
}

func (b *WriterBuilder) Build() Writer {
	l := b.logger
	if l == nil {
		l = observability.NopLogger{}
	}
	return &impl{logger: l}
}

// Write is a convenience wrapper around a default Writer.
func Write(ctx context.Context, doc *semantic.Document, w io.Writer, cfg Config) error {
	return (&WriterBuilder{}).Build().Write(ctx, doc, w, cfg)
}
