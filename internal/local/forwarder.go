package local

import (
	"context"

	"github.com/sebas/localswitch/internal/events"
)

// queueFrame implements §4.3: deliver a frame from one endpoint's write
// path to the other endpoint's read queue under deadlock-safe multi-lock.
//
// Precondition: caller holds p.mu. selfHandle is the endpoint initiating
// the forward (nil for some control paths); selfLocked records whether
// the caller also holds selfHandle's lock, which picks the back-off
// primitive per §5's two deadlock-avoidance flavors.
func (d *Driver) queueFrame(ctx context.Context, p *Pair, dir Direction, frame Frame, selfHandle Endpoint, selfLocked bool) error {
	if p.hasFlag(FlagAlreadyMasqed) {
		// Invariant 3 (§3): identity has already moved to the far bridge
		// peer. No frame forwarded on either side reaches the partner
		// from here on, regardless of which endpoint triggered it.
		return nil
	}

	other := p.PartnerOf(dir)
	if other == nil {
		return nil // nothing to do
	}

	if selfGen := generatorAttached(selfHandle); selfGen && generatorAttached(other) {
		return nil // both sides generating: drop per §4.3 step 2
	}

	p.setFlag(FlagGlareDetect)

	const maxAttempts = 64
	for attempt := 0; ; attempt++ {
		if other.TryLock() {
			break
		}

		p.Unlock()
		if selfLocked && selfHandle != nil {
			selfHandle.Backoff()
		} else {
			backoffWait(ctx)
		}
		p.Lock()

		// Re-read the partner: it may have been nulled (fixup/hangup)
		// during the gap.
		other = p.PartnerOf(dir)
		if other == nil {
			p.clearFlag(FlagGlareDetect)
			return nil
		}
		if attempt >= maxAttempts {
			p.clearFlag(FlagGlareDetect)
			return ErrLockContentionExhausted
		}
	}

	if p.hasFlag(FlagCancelQueue) {
		// Hung up during our back-off: the forwarder owns destruction.
		p.clearFlag(FlagGlareDetect)
		p.Unlock()
		other.Unlock()
		d.destroyPair(p, events.DestroyReasonGlare)
		return errFrameRacedHangup
	}

	if frame.Type == FrameControl && frame.Subclass == ControlRinging {
		other.SetState(StateRinging)
	}

	err := other.QueueFrame(frame)
	other.Unlock()
	p.clearFlag(FlagGlareDetect)
	return err
}

// generatorAttached reports whether ep currently has an audio generator
// attached. A nil endpoint (selfHandle may be nil per §4.3) never counts.
func generatorAttached(ep Endpoint) bool {
	if ep == nil {
		return false
	}
	g := ep.Generator()
	return g != nil && g.Attached()
}

// errFrameRacedHangup is returned by queueFrame when CANCEL_QUEUE was
// observed; the pair is already destroyed and callers must not touch it
// again (§4.3 "Observable side effect").
var errFrameRacedHangup = &StateError{
	Op:       "queue_frame",
	Detail:   "pair hung up during back-off (glare)",
	Sentinel: ErrPairDestroyed,
}
