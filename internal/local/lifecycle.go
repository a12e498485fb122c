package local

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sebas/localswitch/internal/dialplan"
	"github.com/sebas/localswitch/internal/events"
)

// Driver ties the Pair State, Frame Forwarder, Optimize-Away Engine,
// Lifecycle & Registry, and Control Surface components to their external
// collaborators: the switch, the dialplan existence lookup, and the
// lifecycle event publisher.
type Driver struct {
	registry *Registry
	sw       Switch
	dp       *dialplan.Dialplan
	pub      events.Publisher
	log      *slog.Logger

	defaultContext string
	defaultJB      JitterBufferConfig
}

// NewDriver wires a Driver from its collaborators. pub may be nil, in
// which case events.NewNoopPublisher semantics apply implicitly (no
// publish calls are made).
func NewDriver(sw Switch, dp *dialplan.Dialplan, pub events.Publisher, defaultContext string, defaultJB JitterBufferConfig) *Driver {
	return &Driver{
		registry:       NewRegistry(),
		sw:             sw,
		dp:             dp,
		pub:            pub,
		log:            slog.Default().With("component", "local"),
		defaultContext: defaultContext,
		defaultJB:      defaultJB,
	}
}

// Registry exposes the live-pair registry for the control surface.
func (d *Driver) Registry() *Registry { return d.registry }

// Request implements §4.5 request(): allocate a pair, parse options,
// insert into the registry, create both endpoints, and return A.
func (d *Driver) Request(ctx context.Context, dest string, reqFormat uint64) (Endpoint, error) {
	parsed, err := ParseDestination(dest, d.defaultContext)
	if err != nil {
		return nil, err
	}

	p := newPair(parsed, reqFormat, d.defaultJB, d.log.Warn)

	tag, err := randomTag()
	if err != nil {
		return nil, fmt.Errorf("generate channel tag: %w", err)
	}
	aName := fmt.Sprintf("Local/%s@%s-%s;1", parsed.Extension, parsed.Context, tag)
	bName := fmt.Sprintf("Local/%s@%s-%s;2", parsed.Extension, parsed.Context, tag)

	a, err := d.sw.NewEndpoint(aName, StateDown)
	if err != nil {
		return nil, fmt.Errorf("allocate A endpoint: %w", err)
	}

	b, err := d.sw.NewEndpoint(bName, StateRing)
	if err != nil {
		// Unwind: release the first endpoint, the pair never touched the
		// registry yet so there's nothing to remove there (§7).
		_ = d.sw.ReleaseEndpoint(a)
		return nil, fmt.Errorf("allocate B endpoint: %w", err)
	}

	p.aHandle = a
	p.bHandle = b
	p.aModuleRef = &ModuleRef{}
	p.bModuleRef = &ModuleRef{}

	a.SetJitterBuffer(p.jbConf)
	b.SetContextExtension(parsed.Context, parsed.Extension)

	d.registry.Insert(p)

	if d.pub != nil {
		d.pub.PublishAsync(newPairRequestedEvent(p, aName, bName))
	}

	return a, nil
}

// Call implements §4.5 call(): only legal on A. Propagates identity and
// metadata from A to B, validates the extension, then starts the
// dialplan on B.
func (d *Driver) Call(ctx context.Context, ast Endpoint, timeout time.Duration) error {
	p, ok := d.registry.Lookup(ast.Name())
	if !ok {
		return ErrUnknownChannel
	}

	// Triple-lock with back-off: B, A, pair (§4.5, §5).
	var b, a Endpoint
	for attempt := 0; ; attempt++ {
		p.Lock()
		if p.DirectionOf(ast) != DirectionA {
			p.Unlock()
			return &StateError{Op: "call", PairID: p.ID, Detail: "call() is only legal on the A side"}
		}
		a = p.aHandle
		b = p.bHandle
		if b == nil {
			p.Unlock()
			return &StateError{Op: "call", PairID: p.ID, Detail: "B side already gone"}
		}

		if !b.TryLock() {
			p.Unlock()
			backoffWait(ctx)
			continue
		}
		if !a.TryLock() {
			b.Unlock()
			p.Unlock()
			backoffWait(ctx)
			continue
		}
		break
	}
	defer a.Unlock()
	defer b.Unlock()
	defer p.Unlock()

	if !d.dp.ExtensionExists(p.context, p.extension) {
		return ErrExtensionNotFound
	}

	propagateToB(a, b)
	d.sw.DatastoreInherit(b, a)

	if err := d.sw.PBXStart(ctx, b); err != nil {
		return fmt.Errorf("start dialplan on B: %w", err)
	}
	p.setFlag(FlagLaunchedPBX)

	if d.pub != nil {
		d.pub.PublishAsync(newPairCalledEvent(p))
	}
	return nil
}

// propagateToB copies the metadata call() must carry from A to B:
// redirecting, dialed, caller/connected linking, language, account code,
// music class, channel variables (by ranging over the map Variables
// returns, so the order in which they are set on B is not defined), and the
// ANSWERED_ELSEWHERE flag if present. Datastores are inherited via the
// switch's own DatastoreInherit, called separately by Call. CDR linkage
// and CC parameters are carried implicitly through LinkedID — CDR
// itself is an out-of-scope external collaborator (§1) with no fields
// of its own on Endpoint.
//
// B's context/extension are NOT touched here: they were set once at
// request() time from the parsed destination string and must remain the
// dialplan target regardless of whatever A's (usually blank) values are.
func propagateToB(a, b Endpoint) {
	b.SetRedirectingParty(a.RedirectingParty())
	b.SetDialedParty(a.DialedParty())
	b.SetCallerParty(a.CallerParty())
	b.SetConnectedParty(a.ConnectedParty())
	b.SetLanguage(a.Language())
	b.SetAccountCode(a.AccountCode())
	b.SetMusicClass(a.MusicClass())
	b.SetLinkedID(a.LinkedID())
	if a.AnsweredElsewhere() {
		b.SetAnsweredElsewhere(true)
	}

	for k, v := range a.Variables() {
		b.SetVariable(k, v)
	}
}

// Hangup implements §4.5 hangup(): direction-aware teardown that detaches
// ast from the pair, releases its module reference, and destroys the pair
// once both slots are null — deferring to the forwarder via CANCEL_QUEUE
// if a frame is mid-flight.
func (d *Driver) Hangup(ctx context.Context, ast Endpoint) error {
	p, ok := d.registry.Lookup(ast.Name())
	if !ok {
		return nil // double-hangup is a no-op (§8.8)
	}

	p.Lock()
	dir := p.DirectionOf(ast)
	if dir == DirectionNone {
		p.Unlock()
		return nil
	}

	switch dir {
	case DirectionB:
		if p.aHandle != nil {
			if status, ok := p.bHandle.Variables()["DIALSTATUS"]; ok {
				p.aHandle.SetVariable("CHANLOCALSTATUS", status)
			}
		}
		if p.bModuleRef != nil {
			p.bModuleRef.release()
		}
		p.bHandle = nil
		p.clearFlag(FlagLaunchedPBX)

	case DirectionA:
		if p.aModuleRef != nil {
			p.aModuleRef.release()
		}
		launchedPBX := p.hasFlag(FlagLaunchedPBX)
		other := p.bHandle
		p.aHandle = nil
		if other != nil {
			if launchedPBX {
				// queueFrame may itself observe CANCEL_QUEUE and destroy
				// the pair, releasing p.mu before returning — detect
				// that and stop touching p immediately.
				if err := d.queueFrame(ctx, p, DirectionA, Frame{Type: FrameControl, Subclass: ControlHangup, HangupCause: ast.HangupCause()}, nil, false); err == errFrameRacedHangup {
					return nil
				}
			} else {
				// No dialplan was launched: there is no other owner of
				// B, hang it up directly rather than forwarding.
				p.Unlock()
				_ = d.Hangup(ctx, other)
				return nil
			}
		}
	}

	if p.bothNull() {
		if p.hasFlag(FlagGlareDetect) {
			p.setFlag(FlagCancelQueue)
			p.Unlock()
			return nil
		}
		p.Unlock()
		d.destroyPair(p, events.DestroyReasonNormal)
		return nil
	}

	p.Unlock()
	return nil
}

// destroyPair removes p from the registry and publishes PairDestroyed.
// Invariant 5 (§3, §8.4): called exactly once per pair, either here
// directly or from the forwarder's CANCEL_QUEUE path in forwarder.go.
func (d *Driver) destroyPair(p *Pair, reason events.DestroyReason) {
	d.registry.Remove(p.ID)
	if d.pub != nil {
		d.pub.PublishAsync(newPairDestroyedEvent(p, reason))
	}
}
