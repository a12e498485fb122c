package local

import "context"

// maybeOptimizeAway implements §4.4: on the first media write on B after
// B's dialplan has bridged it to something concrete, detect eligibility
// and perform the atomic splice that retires the pair.
//
// Precondition: caller holds p.mu. Returns true if the splice completed
// (ALREADY_MASQED is now set) — callers use this to silently drop the
// triggering write, since identity has moved.
func (d *Driver) maybeOptimizeAway(ctx context.Context, p *Pair) (bool, error) {
	if p.hasFlag(FlagAlreadyMasqed) || p.hasFlag(FlagNoOptimization) {
		return false, nil
	}
	if p.aHandle == nil || p.bHandle == nil {
		return false, nil
	}

	bPeer := p.bHandle.BridgePartner()
	if bPeer == nil {
		return false, nil // B not bridged to anything concrete yet
	}
	// "B's one-step bridge partner equals B's transitively-resolved
	// bridge partner": reject an intermediate proxy one hop further in.
	if farther := bPeer.BridgePartner(); farther != nil && farther != p.bHandle {
		return false, nil
	}
	if p.aHandle.ReadQueueLen() != 0 {
		return false, nil // frames in flight on A; reassess on next write
	}

	if !bPeer.TryLock() {
		return false, nil
	}
	if !p.aHandle.TryLock() {
		bPeer.Unlock()
		return false, nil
	}
	defer bPeer.Unlock()
	defer p.aHandle.Unlock()

	a, b := p.aHandle, p.bHandle

	// §4.4: "with both locks held and neither side hungup, perform the
	// splice." A hangup racing the eligibility check above can still land
	// before the TryLocks above succeed; re-check now that both locks are
	// actually held.
	if a.Hungup() || bPeer.Hungup() {
		return false, nil
	}

	// 1. Swap monitor slot if A has one and the peer doesn't.
	if a.MonitorSlot() != nil && bPeer.MonitorSlot() == nil {
		aMon := a.MonitorSlot()
		a.SetMonitorSlot(nil)
		bPeer.SetMonitorSlot(aMon)
	}

	// 2. Swap audio hook lists between B and A.
	aHooks, bHooks := a.AudioHooks(), b.AudioHooks()
	a.SetAudioHooks(bHooks)
	b.SetAudioHooks(aHooks)

	// 3. Swap party information where A has any valid field.
	if caller := a.CallerParty(); !caller.empty() {
		peerCaller := bPeer.CallerParty()
		swapPartyInfo(&caller, &peerCaller)
		a.SetCallerParty(caller)
		bPeer.SetCallerParty(peerCaller)
	}
	if redir := a.RedirectingParty(); !redir.empty() {
		peerRedir := bPeer.RedirectingParty()
		swapPartyInfo(&redir, &peerRedir)
		a.SetRedirectingParty(redir)
		bPeer.SetRedirectingParty(peerRedir)
	}
	if dialed := a.DialedParty(); !dialed.empty() {
		peerDialed := bPeer.DialedParty()
		swapPartyInfo(&dialed, &peerDialed)
		a.SetDialedParty(dialed)
		bPeer.SetDialedParty(peerDialed)
	}

	// 4. Copy group memberships from B to A.
	a.SetGroupMemberships(b.GroupMemberships())
	d.sw.GroupUpdate(a)

	// 5. Invoke the switch's masquerade: A becomes B's bridge peer.
	if err := d.sw.Masquerade(ctx, a, bPeer); err != nil {
		return false, err
	}

	// 6. Mark retired. Pair is effectively dead to future writes.
	p.setFlag(FlagAlreadyMasqed)

	if d.pub != nil {
		d.pub.PublishAsync(newPairOptimizedAwayEvent(p, bPeer.Name()))
	}

	return true, nil
}
