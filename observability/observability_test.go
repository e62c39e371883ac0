package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNopTracer(t *testing.T) {
	tracer := NopTracer()
	ctx := context.Background()
	ctx2, span := tracer.StartSpan(ctx, "test")
	if ctx2 != ctx {
		t.Fatalf("nop tracer should return same context")
	}
	span.SetTag("key", "value")
	span.SetError(nil)
	span.Finish()
}

func TestLogTracer(t *testing.T) {
	var buf bytes.Buffer
	sl, err := NewSlog(LogConfig{Level: "debug", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("NewSlog() error = %v", err)
	}
	tracer := NewLogTracer(NewSlogLogger(sl))
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	tracer.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls-1) * 2 * time.Second)
	}

	_, span := tracer.StartSpan(context.Background(), "convert.text")
	span.SetTag("conversion.id", "abc")
	span.SetError(errors.New("boom"))
	span.Finish()
	span.Finish()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one log line, got %d: %s", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec["msg"] != "span finished" || rec["span"] != "convert.text" || rec["took"] != "2s" {
		t.Fatalf("unexpected record: %v", rec)
	}
	if rec["conversion.id"] != "abc" || rec["error"] != "boom" {
		t.Fatalf("missing tag or error: %v", rec)
	}
}

func TestSlogLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewSlog(LogConfig{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("NewSlog() error = %v", err)
	}
	logger := NewSlogLogger(l).With(String("component", "test"))
	logger.Debug("hidden")
	logger.Info("converted",
		Int("pages", 2),
		Duration("took", 1500*time.Millisecond),
		Error("err", errors.New("boom")),
		Bool("ok", true),
	)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line above debug level, got %d: %s", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if entry["msg"] != "converted" || entry["component"] != "test" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["pages"] != float64(2) || entry["took"] != "1.5s" || entry["err"] != "boom" || entry["ok"] != true {
		t.Fatalf("unexpected fields: %v", entry)
	}
	if ts, _ := entry["time"].(string); !strings.HasSuffix(ts, "Z") {
		t.Fatalf("expected UTC timestamp, got %q", ts)
	}
}

func TestSlogLoggerText(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewSlog(LogConfig{Level: "debug", Format: "text", Output: &buf})
	if err != nil {
		t.Fatalf("NewSlog() error = %v", err)
	}
	NewSlogLogger(l).Debug("visible", String("k", "v"))
	if !strings.Contains(buf.String(), "msg=visible") || !strings.Contains(buf.String(), "k=v") {
		t.Fatalf("unexpected text output: %s", buf.String())
	}
}

func TestNewSlogRejectsUnknownSettings(t *testing.T) {
	if _, err := NewSlog(LogConfig{Level: "loud"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	if _, err := NewSlog(LogConfig{Format: "xml"}); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
