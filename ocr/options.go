package ocr

import "strconv"

// Tesseract variables carried in Input.Metadata.
const (
	VarPageSegMode   = "tessedit_pageseg_mode"
	VarCharWhitelist = "tessedit_char_whitelist"
)

// MaxPageSegMode is the highest Tesseract page segmentation mode. Mode 0
// only detects orientation and never yields text.
const MaxPageSegMode = 13

// ValidPageSegMode reports whether mode selects a text-producing layout
// analysis.
func ValidPageSegMode(mode int) bool { return mode >= 1 && mode <= MaxPageSegMode }

// WithPageSegMode selects how Tesseract splits the page into blocks, for
// example 6 for a single uniform block or 7 for a single line. Invalid modes
// leave the engine default in place.
func WithPageSegMode(mode int) InputOption {
	return func(in *Input) {
		if ValidPageSegMode(mode) {
			setMetadata(in, VarPageSegMode, strconv.Itoa(mode))
		}
	}
}

// WithCharWhitelist restricts recognition to chars. An empty string is a
// no-op.
func WithCharWhitelist(chars string) InputOption {
	return func(in *Input) {
		if chars != "" {
			setMetadata(in, VarCharWhitelist, chars)
		}
	}
}

func setMetadata(in *Input, key, value string) {
	if in.Metadata == nil {
		in.Metadata = make(map[string]string)
	}
	in.Metadata[key] = value
}
