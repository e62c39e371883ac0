// Package ocr defines the contract between the conversion pipeline and OCR
// engines, plus the image normalization every engine input goes through.
// Engines may be backed by local binaries, native libraries, or remote APIs
// without leaking provider-specific concerns into callers.
package ocr
