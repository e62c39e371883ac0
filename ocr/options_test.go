package ocr

import "testing"

func TestPageSegModeAndWhitelist(t *testing.T) {
	in := Input{}
	WithPageSegMode(6)(&in)
	if got := in.Metadata[VarPageSegMode]; got != "6" {
		t.Fatalf("expected PSM to be set, got %q", got)
	}
	WithCharWhitelist("0123456789")(&in)
	if got := in.Metadata[VarCharWhitelist]; got != "0123456789" {
		t.Fatalf("expected whitelist to be set, got %q", got)
	}
}

func TestInvalidOptionsAreIgnored(t *testing.T) {
	in := Input{}
	for _, mode := range []int{-1, 0, 14} {
		WithPageSegMode(mode)(&in)
	}
	WithCharWhitelist("")(&in)
	if in.Metadata != nil {
		t.Fatalf("expected no metadata, got %+v", in.Metadata)
	}
	if !ValidPageSegMode(1) || !ValidPageSegMode(MaxPageSegMode) || ValidPageSegMode(0) {
		t.Fatalf("unexpected ValidPageSegMode results")
	}
}
