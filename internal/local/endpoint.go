package local

import "context"

// Answer implements §4.2 answer(): only legal on B; emits a control-answer
// frame toward A.
func (d *Driver) Answer(ctx context.Context, ast Endpoint) error {
	p, ok := d.registry.Lookup(ast.Name())
	if !ok {
		return ErrUnknownChannel
	}

	p.Lock()
	defer p.Unlock()

	if p.DirectionOf(ast) != DirectionB {
		d.log.Warn("answer called on A side", "pair", p.ID)
		return ErrAnswerOnA
	}

	return d.queueFrame(ctx, p, DirectionB, Frame{Type: FrameControl, Subclass: ControlAnswer}, ast, false)
}

// Read implements §4.2 read(): the driver never produces frames of its
// own; everything reaches an endpoint via another endpoint's write.
func (d *Driver) Read(ast Endpoint) Frame {
	return NullFrame
}

// Write implements §4.2 write(): forward via the forwarder; for B with
// audio/video, run optimize-away first and drop the write silently if it
// succeeds.
func (d *Driver) Write(ctx context.Context, ast Endpoint, frame Frame) error {
	p, ok := d.registry.Lookup(ast.Name())
	if !ok {
		return ErrUnknownChannel
	}

	p.Lock()
	dir := p.DirectionOf(ast)
	if dir == DirectionNone {
		p.Unlock()
		return ErrUnknownChannel
	}

	if dir == DirectionB && (frame.Type == FrameAudio || frame.Type == FrameVideo) {
		masqed, err := d.maybeOptimizeAway(ctx, p)
		if err != nil {
			d.log.Warn("optimize-away attempt failed", "pair", p.ID, "error", err)
		}
		if masqed {
			p.Unlock()
			return nil // identity moved; write silently dropped
		}
	}

	err := d.queueFrame(ctx, p, dir, frame, ast, false)
	if err == errFrameRacedHangup {
		return nil
	}
	p.Unlock()
	return err
}

// WriteVideo is identical to Write per §6.
func (d *Driver) WriteVideo(ctx context.Context, ast Endpoint, frame Frame) error {
	return d.Write(ctx, ast, frame)
}

// Indicate implements §4.2 indicate().
func (d *Driver) Indicate(ctx context.Context, ast Endpoint, subclass ControlSubclass, data []byte) error {
	p, ok := d.registry.Lookup(ast.Name())
	if !ok {
		return ErrUnknownChannel
	}

	p.Lock()
	dir := p.DirectionOf(ast)
	if dir == DirectionNone {
		p.Unlock()
		return ErrUnknownChannel
	}

	switch subclass {
	case ControlHold, ControlUnhold:
		if !p.hasFlag(FlagMOHPassthru) {
			// Handled locally: start/stop MOH on ast. Out of scope for
			// this driver (owned by the switch's MOH subsystem); nothing
			// to forward.
			p.Unlock()
			return nil
		}
		err := d.queueFrame(ctx, p, dir, Frame{Type: FrameControl, Subclass: subclass, Data: data}, ast, false)
		if err == errFrameRacedHangup {
			return nil
		}
		p.Unlock()
		return err

	case ControlConnectedLine, ControlRedirecting:
		var authoritative PartyInfo
		if subclass == ControlConnectedLine {
			authoritative = ast.ConnectedParty()
			if dir == DirectionB {
				// The connected party of the outbound leg becomes the
				// caller from the inbound leg's point of view.
				if partner := p.PartnerOf(dir); partner != nil {
					partner.SetCallerParty(authoritative)
				}
			}
		} else {
			authoritative = ast.RedirectingParty()
		}
		err := d.queueFrame(ctx, p, dir, Frame{Type: FrameControl, Subclass: subclass, Data: encodeParty(authoritative)}, ast, false)
		if err == errFrameRacedHangup {
			return nil
		}
		p.Unlock()
		return err

	default:
		err := d.queueFrame(ctx, p, dir, Frame{Type: FrameControl, Subclass: subclass, Data: data}, ast, false)
		if err == errFrameRacedHangup {
			return nil
		}
		p.Unlock()
		return err
	}
}

// encodeParty is a placeholder serialization hook: the authoritative party
// record travels as the frame payload rather than the partial payload the
// switch originally passed in, per §4.2. The wire shape is left to the
// switch's own party-info codec; here only the display name is encoded,
// as raw bytes.
func encodeParty(p PartyInfo) []byte {
	return []byte(p.DisplayName)
}

// DigitBegin / DigitEnd implement §4.2 digit_begin/digit_end.
func (d *Driver) DigitBegin(ctx context.Context, ast Endpoint, digit rune) error {
	return d.forwardSimple(ctx, ast, Frame{Type: FrameDTMFBegin, Digit: digit})
}

func (d *Driver) DigitEnd(ctx context.Context, ast Endpoint, digit rune, duration int) error {
	return d.forwardSimple(ctx, ast, Frame{Type: FrameDTMFEnd, Digit: digit, Duration: duration})
}

// SendText / SendHTML implement §4.2 sendtext/sendhtml.
func (d *Driver) SendText(ctx context.Context, ast Endpoint, text string) error {
	return d.forwardSimple(ctx, ast, Frame{Type: FrameText, Data: []byte(text)})
}

func (d *Driver) SendHTML(ctx context.Context, ast Endpoint, subclass int, data []byte) error {
	return d.forwardSimple(ctx, ast, Frame{Type: FrameHTML, HTMLClass: subclass, Data: data})
}

func (d *Driver) forwardSimple(ctx context.Context, ast Endpoint, frame Frame) error {
	p, ok := d.registry.Lookup(ast.Name())
	if !ok {
		return ErrUnknownChannel
	}
	p.Lock()
	dir := p.DirectionOf(ast)
	if dir == DirectionNone {
		p.Unlock()
		return ErrUnknownChannel
	}
	err := d.queueFrame(ctx, p, dir, frame, ast, false)
	if err == errFrameRacedHangup {
		return nil
	}
	p.Unlock()
	return err
}

// Fixup implements §4.2 fixup(): replace whichever slot matched old with
// new; fail if neither matched.
func (d *Driver) Fixup(ast Endpoint, oldHandle, newHandle Endpoint) error {
	p, ok := d.registry.Lookup(ast.Name())
	if !ok {
		return ErrUnknownChannel
	}
	p.Lock()
	defer p.Unlock()

	switch {
	case p.aHandle == oldHandle:
		p.aHandle = newHandle
	case p.bHandle == oldHandle:
		p.bHandle = newHandle
	default:
		d.log.Error("fixup: old handle matches neither slot", "pair", p.ID)
		return ErrFixupNoMatch
	}
	return nil
}

// QueryOption implements §4.2 query_option(): only T38_STATE is honored;
// the pair is "see-through" — the result comes from the remote end's
// bridge partner's answer to the same query.
//
// Lock order: pair mutex → far endpoint → far endpoint's bridge (§4.2,
// §5).
func (d *Driver) QueryOption(ctx context.Context, ast Endpoint, opt QueryOption) (string, error) {
	if opt != QueryOptionT38State {
		return "", ErrUnsupportedOption
	}

	p, ok := d.registry.Lookup(ast.Name())
	if !ok {
		return "", ErrUnknownChannel
	}

	const maxAttempts = 64
	for attempt := 0; ; attempt++ {
		p.Lock()
		dir := p.DirectionOf(ast)
		far := p.PartnerOf(dir)
		if far == nil {
			p.Unlock()
			return "", ErrUnsupportedOption // §8.10: no far peer, not a deadlock
		}

		if !far.TryLock() {
			p.Unlock()
			backoffWait(ctx)
			if attempt >= maxAttempts {
				return "", ErrLockContentionExhausted
			}
			continue
		}

		farBridge := far.BridgePartner()
		if farBridge == nil {
			far.Unlock()
			p.Unlock()
			return "", ErrUnsupportedOption
		}

		if !farBridge.TryLock() {
			far.Unlock()
			p.Unlock()
			backoffWait(ctx)
			if attempt >= maxAttempts {
				return "", ErrLockContentionExhausted
			}
			continue
		}

		result, err := farBridge.QueryOption(opt)
		farBridge.Unlock()
		far.Unlock()
		p.Unlock()
		return result, err
	}
}

// BridgedChannel implements §4.2 bridged_channel(): if BRIDGE_REPORT is
// set, return the far endpoint's bridge partner one hop past the pair;
// otherwise return bridge unchanged.
func (d *Driver) BridgedChannel(ast, bridge Endpoint) Endpoint {
	p, ok := d.registry.Lookup(ast.Name())
	if !ok {
		return bridge
	}
	p.Lock()
	defer p.Unlock()

	if !p.hasFlag(FlagBridgeReport) {
		return bridge
	}
	dir := p.DirectionOf(ast)
	far := p.PartnerOf(dir)
	if far == nil {
		return bridge
	}
	return far.BridgePartner()
}

// DeviceState implements §4.2 devicestate(): INVALID if the extension
// doesn't exist, else IN_USE iff a live pair matches with a non-null A,
// else NOT_IN_USE.
type DeviceState int

const (
	DeviceStateInvalid DeviceState = iota
	DeviceStateNotInUse
	DeviceStateInUse
)

func (d *Driver) DeviceState(dest string) DeviceState {
	parsed, err := ParseDestination(dest, d.defaultContext)
	if err != nil {
		d.log.Warn("bad destination in devicestate", "destination", dest, "error", err)
		return DeviceStateInvalid
	}
	if !d.dp.ExtensionExists(parsed.Context, parsed.Extension) {
		return DeviceStateInvalid
	}
	if d.registry.InUse(parsed.Extension, parsed.Context) {
		return DeviceStateInUse
	}
	return DeviceStateNotInUse
}
