// Package fakepbx is a minimal in-memory stand-in for "the surrounding
// switch" (§1's explicit out-of-scope collaborator): just enough of a
// bridging core, channel allocator, and dialplan starter to drive the
// local package through the scenarios in SPEC_FULL.md §8 without a real
// telephony stack.
package fakepbx

import (
	"sync"
	"time"

	"github.com/sebas/localswitch/internal/local"
)

// Channel is a fake switch-owned channel handle implementing
// local.Endpoint.
type Channel struct {
	name string

	lockCh chan struct{} // capacity-1 token: a non-blocking mutex

	mu                 sync.Mutex // guards the fields below
	state              local.ChannelState
	bridgePartner      *Channel
	readQueue          []local.Frame
	generatorAttached  bool
	callerParty        local.PartyInfo
	connectedParty     local.PartyInfo
	redirectingParty   local.PartyInfo
	dialedParty        local.PartyInfo
	monitorSlot        any
	audioHooks         []any
	groupMemberships   []string
	variables          map[string]string
	varOrder           []string
	context, extension string
	language           string
	accountCode        string
	musicClass         string
	linkedID           string
	hangupCause        local.HangupCause
	answeredElsewhere  bool
	hungup             bool
	t38State           string
	jb                 local.JitterBufferConfig
}

// NewChannel creates a channel in the given initial state, as
// PBX.NewEndpoint does for the driver's request().
func NewChannel(name string, initial local.ChannelState) *Channel {
	lockCh := make(chan struct{}, 1)
	lockCh <- struct{}{}
	return &Channel{
		name:      name,
		lockCh:    lockCh,
		state:     initial,
		variables: make(map[string]string),
	}
}

func (c *Channel) Name() string { return c.name }

func (c *Channel) State() local.ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) SetState(s local.ChannelState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

func (c *Channel) BridgePartner() local.Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bridgePartner == nil {
		return nil
	}
	return c.bridgePartner
}

// BridgeWith directly bridges two channels one hop apart — the fake
// switch's equivalent of the bridging core connecting two concrete legs.
func (c *Channel) BridgeWith(peer *Channel) {
	c.mu.Lock()
	c.bridgePartner = peer
	c.mu.Unlock()
	if peer != nil {
		peer.mu.Lock()
		peer.bridgePartner = c
		peer.mu.Unlock()
	}
}

func (c *Channel) TryLock() bool {
	select {
	case <-c.lockCh:
		return true
	default:
		return false
	}
}

func (c *Channel) Lock() { <-c.lockCh }

func (c *Channel) Unlock() { c.lockCh <- struct{}{} }

// Backoff implements the "release my lock briefly, yield, reacquire"
// deadlock-avoidance primitive (§9 design note, flavor (a)).
func (c *Channel) Backoff() {
	c.Unlock()
	time.Sleep(local.BackoffTick)
	c.Lock()
}

func (c *Channel) QueueFrame(f local.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readQueue = append(c.readQueue, f)
	return nil
}

func (c *Channel) ReadQueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.readQueue)
}

// DrainQueue empties and returns the accumulated frames; used by tests to
// assert delivery order.
func (c *Channel) DrainQueue() []local.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.readQueue
	c.readQueue = nil
	return out
}

type fakeGenerator struct{ attached bool }

func (g fakeGenerator) Attached() bool { return g.attached }

func (c *Channel) Generator() local.Generator {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fakeGenerator{attached: c.generatorAttached}
}

// SetGeneratorAttached lets a test simulate a channel holding an audio
// generator, exercising the forwarder's "both sides generating" drop rule.
func (c *Channel) SetGeneratorAttached(attached bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generatorAttached = attached
}

func (c *Channel) CallerParty() local.PartyInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callerParty
}
func (c *Channel) SetCallerParty(p local.PartyInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callerParty = p
}
func (c *Channel) ConnectedParty() local.PartyInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectedParty
}
func (c *Channel) SetConnectedParty(p local.PartyInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectedParty = p
}
func (c *Channel) RedirectingParty() local.PartyInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.redirectingParty
}
func (c *Channel) SetRedirectingParty(p local.PartyInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.redirectingParty = p
}
func (c *Channel) DialedParty() local.PartyInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dialedParty
}
func (c *Channel) SetDialedParty(p local.PartyInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dialedParty = p
}

func (c *Channel) MonitorSlot() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.monitorSlot
}
func (c *Channel) SetMonitorSlot(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.monitorSlot = v
}
func (c *Channel) AudioHooks() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.audioHooks
}
func (c *Channel) SetAudioHooks(h []any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.audioHooks = h
}
func (c *Channel) GroupMemberships() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.groupMemberships
}
func (c *Channel) SetGroupMemberships(g []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groupMemberships = g
}

func (c *Channel) Variables() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.variables))
	for _, k := range c.varOrder {
		out[k] = c.variables[k]
	}
	return out
}

func (c *Channel) SetVariable(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.variables[key]; !exists {
		c.varOrder = append(c.varOrder, key)
	}
	c.variables[key] = value
}

func (c *Channel) Context() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.context
}
func (c *Channel) Extension() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.extension
}
func (c *Channel) SetContextExtension(context, extension string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.context = context
	c.extension = extension
}

func (c *Channel) Language() string    { return c.language }
func (c *Channel) AccountCode() string { return c.accountCode }
func (c *Channel) MusicClass() string  { return c.musicClass }
func (c *Channel) LinkedID() string    { return c.linkedID }

func (c *Channel) SetLanguage(v string)    { c.mu.Lock(); c.language = v; c.mu.Unlock() }
func (c *Channel) SetAccountCode(v string) { c.mu.Lock(); c.accountCode = v; c.mu.Unlock() }
func (c *Channel) SetMusicClass(v string)  { c.mu.Lock(); c.musicClass = v; c.mu.Unlock() }
func (c *Channel) SetLinkedID(v string)    { c.mu.Lock(); c.linkedID = v; c.mu.Unlock() }

func (c *Channel) HangupCause() local.HangupCause {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hangupCause
}

// SetHangupCause lets a test record why ast went down; the driver's
// hangup path reads it through HangupCause to carry it into the forwarded
// control frame toward the partner.
func (c *Channel) SetHangupCause(v local.HangupCause) {
	c.mu.Lock()
	c.hangupCause = v
	c.mu.Unlock()
}

// Hungup implements the hangup-check predicate local.Endpoint requires
// (§3): whether the switch has independently marked this channel for
// teardown.
func (c *Channel) Hungup() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hungup
}

// SetHungup lets a test (or a real switch's softhangup path) mark this
// channel as mid-teardown, exercised by the optimize-away splice's
// neither-side-hungup gate in internal/local/optimize.go.
func (c *Channel) SetHungup(v bool) {
	c.mu.Lock()
	c.hungup = v
	c.mu.Unlock()
}

func (c *Channel) AnsweredElsewhere() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answeredElsewhere
}
func (c *Channel) SetAnsweredElsewhere(v bool) {
	c.mu.Lock()
	c.answeredElsewhere = v
	c.mu.Unlock()
}

func (c *Channel) QueryOption(opt local.QueryOption) (string, error) {
	if opt != local.QueryOptionT38State {
		return "", local.ErrUnsupportedOption
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.t38State == "" {
		return "", local.ErrUnsupportedOption
	}
	return c.t38State, nil
}

// SetT38State lets a test configure this channel's canned T38 answer.
func (c *Channel) SetT38State(state string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t38State = state
}

func (c *Channel) SetJitterBuffer(cfg local.JitterBufferConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jb = cfg
}

// JitterBuffer returns the jb_conf applied via SetJitterBuffer, for test
// assertions.
func (c *Channel) JitterBuffer() local.JitterBufferConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jb
}
