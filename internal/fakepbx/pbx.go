package fakepbx

import (
	"context"
	"fmt"
	"sync"

	"github.com/sebas/localswitch/internal/local"
)

// PBX is a trivial local.Switch: it allocates Channels, performs
// masquerade by rewiring the two channels' bridge partners, and
// records which endpoints it started dialplan execution on so tests can
// assert PBXStart was reached.
type PBX struct {
	mu       sync.Mutex
	started  map[string]bool
	released map[string]bool
	channels map[string]*Channel
}

// NewPBX builds an empty fake switch.
func NewPBX() *PBX {
	return &PBX{
		started:  make(map[string]bool),
		released: make(map[string]bool),
		channels: make(map[string]*Channel),
	}
}

func (p *PBX) NewEndpoint(name string, initial local.ChannelState) (local.Endpoint, error) {
	ch := NewChannel(name, initial)
	p.mu.Lock()
	p.channels[name] = ch
	p.mu.Unlock()
	return ch, nil
}

// Channel looks up a previously allocated channel by name — the fake
// switch's equivalent of a channel directory, letting a test recover the
// B side of a pair (request() only hands the caller A) by computing its
// name from A's.
func (p *PBX) Channel(name string) (*Channel, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.channels[name]
	return ch, ok
}

func (p *PBX) ReleaseEndpoint(ep local.Endpoint) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released[ep.Name()] = true
	return nil
}

// Masquerade makes into's own outer bridge peer take over from's current
// position in the call: whatever into was bridged to ends up bridged
// directly to from, and into is left bridgeless. This mirrors what the
// real masquerade achieves for a local channel pair — the two outermost
// parties end up bridged to each other with neither pair leg in between.
// from's previous partner (the other pair leg) is left stale; the driver
// retires both pair legs separately once the splice completes.
func (p *PBX) Masquerade(ctx context.Context, into, from local.Endpoint) error {
	intoCh, ok1 := into.(*Channel)
	fromCh, ok2 := from.(*Channel)
	if !ok1 || !ok2 {
		return fmt.Errorf("fakepbx: masquerade requires *fakepbx.Channel endpoints")
	}

	intoCh.mu.Lock()
	outerPeer := intoCh.bridgePartner
	intoCh.bridgePartner = nil
	intoCh.mu.Unlock()

	fromCh.mu.Lock()
	fromCh.bridgePartner = outerPeer
	fromCh.mu.Unlock()

	if outerPeer != nil {
		outerPeer.mu.Lock()
		outerPeer.bridgePartner = fromCh
		outerPeer.mu.Unlock()
	}
	return nil
}

// PBXStart records that dialplan execution was requested on ep and
// transitions it to UP, standing in for the real switch running a
// dialplan context to completion.
func (p *PBX) PBXStart(ctx context.Context, ep local.Endpoint) error {
	p.mu.Lock()
	p.started[ep.Name()] = true
	p.mu.Unlock()
	ep.SetState(local.StateUp)
	return nil
}

// Started reports whether PBXStart was called for the named endpoint.
func (p *PBX) Started(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started[name]
}

// Released reports whether ReleaseEndpoint was called for the named
// endpoint.
func (p *PBX) Released(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released[name]
}

func (p *PBX) DatastoreInherit(dst, src local.Endpoint) {
	// No datastore model in this fake; a real switch copies opaque
	// key/value attachments here.
}

func (p *PBX) GroupUpdate(ep local.Endpoint) {
	// No group bookkeeping to notify in this fake.
}

func (p *PBX) BestCodec(requested, available uint64) uint64 {
	if available == 0 {
		return requested
	}
	return requested & available
}
