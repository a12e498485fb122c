package banner_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sebas/localswitch/internal/banner"
)

func TestFprintFramesEveryLine(t *testing.T) {
	var buf bytes.Buffer
	banner.Fprint(&buf, "LOCALSWITCHD", []banner.ConfigLine{
		{Label: "Admin Listen", Value: "127.0.0.1:8088"},
		{Label: "NATS", Value: "disabled"},
	})

	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) < 4 {
		t.Fatalf("expected at least 4 lines, got %d: %q", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "+") || !strings.HasSuffix(lines[0], "+") {
		t.Fatalf("expected top border, got %q", lines[0])
	}
	if !strings.Contains(out, "Admin Listen: 127.0.0.1:8088") {
		t.Fatalf("expected admin listen config line, got %q", out)
	}
	if !strings.Contains(out, "NATS: disabled") {
		t.Fatalf("expected nats config line, got %q", out)
	}
}

func TestFprintWidensFrameForLongValues(t *testing.T) {
	var buf bytes.Buffer
	longValue := strings.Repeat("x", 80)
	banner.Fprint(&buf, "svc", []banner.ConfigLine{{Label: "Path", Value: longValue}})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	for _, line := range lines {
		if strings.Contains(line, longValue) {
			return
		}
	}
	t.Fatalf("expected a line containing the full long value, got: %q", buf.String())
}

func TestFprintHandlesNoConfigLines(t *testing.T) {
	var buf bytes.Buffer
	banner.Fprint(&buf, "svc", nil)
	if !strings.Contains(buf.String(), "no configuration") {
		t.Fatalf("expected a placeholder line when no config is given, got %q", buf.String())
	}
}
