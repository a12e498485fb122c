package local_test

import (
	"context"
	"strings"
	"testing"

	"github.com/sebas/localswitch/internal/fakepbx"
	"github.com/sebas/localswitch/internal/local"
)

// Digit, text and HTML frames all take the same forward-as-is path; one
// representative per operation is enough to exercise forwardSimple for
// each frame type it's asked to carry.
func TestDigitTextHTMLForwardToPartner(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "internal", route("r1", "internal", "1000"))

	aEp, err := h.driver.Request(ctx, "1000@internal", 0)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	aCh := aEp.(*fakepbx.Channel)
	bCh := h.bFor(t, aCh.Name())

	if err := h.driver.DigitBegin(ctx, aEp, '5'); err != nil {
		t.Fatalf("DigitBegin: %v", err)
	}
	if err := h.driver.DigitEnd(ctx, aEp, '5', 100); err != nil {
		t.Fatalf("DigitEnd: %v", err)
	}
	if err := h.driver.SendText(ctx, aEp, "hello"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if err := h.driver.SendHTML(ctx, aEp, 3, []byte("<p>hi</p>")); err != nil {
		t.Fatalf("SendHTML: %v", err)
	}

	queued := bCh.DrainQueue()
	if len(queued) != 4 {
		t.Fatalf("b received %d frames, want 4", len(queued))
	}
	wantTypes := []local.FrameType{local.FrameDTMFBegin, local.FrameDTMFEnd, local.FrameText, local.FrameHTML}
	for i, f := range queued {
		if f.Type != wantTypes[i] {
			t.Errorf("frame %d type = %v, want %v", i, f.Type, wantTypes[i])
		}
	}
	if queued[3].HTMLClass != 3 {
		t.Errorf("html subclass = %d, want 3", queued[3].HTMLClass)
	}
}

func TestDigitBeginUnknownChannelIsError(t *testing.T) {
	h := newHarness(t, "internal", route("r1", "internal", "1000"))
	stray := fakepbx.NewChannel("SIP/stray-0001", local.StateUp)

	if err := h.driver.DigitBegin(context.Background(), stray, 'x'); err == nil {
		t.Fatal("expected DigitBegin on an unregistered channel to fail")
	}
}

// Fixup swaps whichever slot currently holds oldHandle for newHandle; a
// handle that matches neither slot is rejected.
func TestFixupReplacesMatchingSlot(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "internal", route("r1", "internal", "1000"))

	aEp, err := h.driver.Request(ctx, "1000@internal", 0)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	aCh := aEp.(*fakepbx.Channel)

	replacement := fakepbx.NewChannel("SIP/replacement-0099", local.StateUp)
	if err := h.driver.Fixup(aEp, aEp, replacement); err != nil {
		t.Fatalf("Fixup: %v", err)
	}

	// The pair's A slot now holds replacement; a subsequent write from
	// replacement should still route to B.
	bCh := h.bFor(t, aCh.Name())
	if err := h.driver.SendText(ctx, replacement, "after fixup"); err != nil {
		t.Fatalf("SendText after fixup: %v", err)
	}
	if got := bCh.ReadQueueLen(); got != 1 {
		t.Fatalf("b received %d frames after fixup, want 1", got)
	}
}

func TestFixupRejectsHandleThatMatchesNeitherSlot(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "internal", route("r1", "internal", "1000"))

	aEp, err := h.driver.Request(ctx, "1000@internal", 0)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	stray := fakepbx.NewChannel("SIP/stray-0001", local.StateUp)
	replacement := fakepbx.NewChannel("SIP/replacement-0099", local.StateUp)

	if err := h.driver.Fixup(aEp, stray, replacement); err == nil {
		t.Fatal("expected Fixup to reject a handle matching neither slot")
	}
}

// CLIShowChannels reports the empty placeholder with no pairs live, and
// one line per live pair once a request() has registered one.
func TestCLIShowChannelsReflectsLivePairs(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "internal", route("r1", "internal", "1000"))

	if lines := h.driver.CLIShowChannels(); len(lines) != 1 || !strings.Contains(lines[0], "No local channels") {
		t.Fatalf("CLIShowChannels with no pairs = %v", lines)
	}

	if _, err := h.driver.Request(ctx, "1000@internal", 0); err != nil {
		t.Fatalf("Request: %v", err)
	}

	lines := h.driver.CLIShowChannels()
	if len(lines) != 1 {
		t.Fatalf("CLIShowChannels with one pair = %v, want 1 line", lines)
	}
	if !strings.Contains(lines[0], "1000") {
		t.Fatalf("CLIShowChannels line %q missing extension", lines[0])
	}
}
