package logger

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelDebug,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetLevelAndGetLevel(t *testing.T) {
	defer SetLevel("debug")

	SetLevel("warn")
	if got := GetLevel(); got != "warn" {
		t.Fatalf("GetLevel() = %q, want %q", got, "warn")
	}
}

func TestCustomHandlerFiltersBelowGlobalLevel(t *testing.T) {
	defer SetLevel("debug")
	SetLevel("warn")

	var buf bytes.Buffer
	h := &customHandler{outs: []io.Writer{&buf}}
	log := slog.New(h)

	log.Debug("should be dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected debug line to be filtered, got %q", buf.String())
	}

	log.Warn("should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Fatalf("expected warn line to be written, got %q", buf.String())
	}
}

func TestJSONParsingWriterReformatsJSONLines(t *testing.T) {
	var buf bytes.Buffer
	w := &JSONParsingWriter{base: &buf}

	line := []byte(`{"level":"info","message":"hello","time":"2024-01-01T00:00:00Z","extra":"x"}` + "\n")
	if _, err := w.Write(line); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "[INFO]") || !strings.Contains(out, "hello") || !strings.Contains(out, "extra=x") {
		t.Fatalf("unexpected reformatted line: %q", out)
	}
}

func TestJSONParsingWriterPassesThroughNonJSON(t *testing.T) {
	var buf bytes.Buffer
	w := &JSONParsingWriter{base: &buf}

	if _, err := w.Write([]byte("plain line\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.String() != "plain line\n" {
		t.Fatalf("got %q, want unchanged passthrough", buf.String())
	}
}

func TestForBindsComponentAttribute(t *testing.T) {
	l := For("pair")
	if l == nil {
		t.Fatal("For returned nil logger")
	}

	var buf bytes.Buffer
	prev := slog.Default()
	defer slog.SetDefault(prev)
	slog.SetDefault(slog.New(&customHandler{outs: []io.Writer{&buf}}))

	For("pair").Info("hello")
	if !strings.Contains(buf.String(), "component=pair") {
		t.Fatalf("expected bound component attribute in %q", buf.String())
	}
}
