// Package local implements the Local Proxy Channel driver: a virtual
// channel that materializes as a pair of back-to-back endpoints sharing
// one private state record, with frame forwarding, glare-safe hangup, and
// an optimize-away splice that removes the pair from the call graph once
// both sides are bridged to concrete peers.
//
// The surrounding switch — channel allocation, the bridging core, the
// dialplan execution engine, jitter buffer, music-on-hold, audio hooks,
// CDR, CLI/management transport — is an external collaborator. This
// package consumes it through the Endpoint and Switch interfaces below and
// never reaches past them.
package local

import (
	"context"
	"time"
)

// ChannelState mirrors the switch's channel state machine as far as the
// Local driver needs to observe or set it.
type ChannelState int

const (
	StateDown ChannelState = iota
	StateRing
	StateRinging
	StateUp
	StateBusy
)

// HangupCause carries a switch-defined reason code for a hangup.
type HangupCause int

// QueryOption enumerates the channel options query_option understands.
// Only T38State is honored per the spec; all others return
// ErrUnsupportedOption.
type QueryOption int

const (
	QueryOptionUnknown QueryOption = iota
	QueryOptionT38State
)

// Generator reports whether an endpoint currently has an audio generator
// (e.g. tone or announcement playback) attached — used by the forwarder's
// "both sides generating" drop rule.
type Generator interface {
	Attached() bool
}

// Endpoint is the opaque channel handle supplied by the switch for one
// side of the pair. Implementations are expected to be safe for
// concurrent use by multiple goroutines, consistent with the switch
// driving the adapter from many OS threads.
type Endpoint interface {
	// Name returns the channel name, e.g. "Local/1000@internal-a1b2;1".
	Name() string

	State() ChannelState
	SetState(ChannelState)

	// BridgePartner returns the channel this endpoint is bridged to one
	// hop away, or nil if unbridged.
	BridgePartner() Endpoint

	// TryLock attempts to acquire this endpoint's lock without blocking.
	TryLock() bool
	Lock()
	Unlock()

	// Backoff implements the switch's "release my lock briefly, yield,
	// reacquire" deadlock-avoidance primitive used when self_locked is
	// true during the forwarder's back-off.
	Backoff()

	// QueueFrame delivers a frame onto this endpoint's inbound read
	// queue. ReadQueueLen reports how many frames are pending, used by
	// the optimize-away eligibility check (A's read queue must be
	// empty).
	QueueFrame(Frame) error
	ReadQueueLen() int

	Generator() Generator

	CallerParty() PartyInfo
	SetCallerParty(PartyInfo)
	ConnectedParty() PartyInfo
	SetConnectedParty(PartyInfo)
	RedirectingParty() PartyInfo
	SetRedirectingParty(PartyInfo)
	DialedParty() PartyInfo
	SetDialedParty(PartyInfo)

	MonitorSlot() any
	SetMonitorSlot(any)
	AudioHooks() []any
	SetAudioHooks([]any)
	GroupMemberships() []string
	SetGroupMemberships([]string)

	Variables() map[string]string
	SetVariable(key, value string)

	Context() string
	Extension() string
	SetContextExtension(context, extension string)

	Language() string
	SetLanguage(string)
	AccountCode() string
	SetAccountCode(string)
	MusicClass() string
	SetMusicClass(string)
	LinkedID() string
	SetLinkedID(string)

	HangupCause() HangupCause
	AnsweredElsewhere() bool
	SetAnsweredElsewhere(bool)

	// Hungup is the hangup-check predicate §3 requires on every endpoint
	// handle: it reports whether the switch has independently marked this
	// channel for teardown, regardless of whether the pair has noticed
	// yet. The Optimize-Away Engine consults it after acquiring both
	// splice locks (§4.4: "with both locks held and neither side
	// hungup") since a concurrent hangup can land in the gap between the
	// eligibility check and the TryLocks succeeding.
	Hungup() bool

	// QueryOption asks this endpoint to answer a query_option request
	// directly (no pair involvement) — used as the far side of the
	// "see-through" resolution in §4.2.
	QueryOption(QueryOption) (string, error)

	// SetJitterBuffer applies jb_conf to this endpoint. Only called on A
	// at request() time.
	SetJitterBuffer(JitterBufferConfig)
}

// Switch is everything the driver needs from the hosting channel core
// beyond an Endpoint's own accessors.
type Switch interface {
	// NewEndpoint allocates a concrete channel in the given initial
	// state, bound to the given name. The A side is created DOWN, the B
	// side RING, per §4.5.
	NewEndpoint(name string, initial ChannelState) (Endpoint, error)

	// ReleaseEndpoint tears down an endpoint created by NewEndpoint that
	// never made it into service — the request() unwind path on
	// allocation failure (§7).
	ReleaseEndpoint(ep Endpoint) error

	// Masquerade atomically retargets into's identity to become what
	// from's bridge peer currently is. This is the primitive the
	// optimize-away splice depends on; everything else in §4.4 is
	// sequencing around this one call.
	Masquerade(ctx context.Context, into, from Endpoint) error

	// PBXStart begins dialplan execution on ep as if it were a freshly
	// arrived inbound call.
	PBXStart(ctx context.Context, ep Endpoint) error

	// DatastoreInherit copies the datastore chain from src to dst.
	DatastoreInherit(dst, src Endpoint)

	// GroupUpdate notifies the switch's channel-group bookkeeping that
	// ep's group memberships changed.
	GroupUpdate(ep Endpoint)

	// BestCodec negotiates a shared media format between two requested
	// format sets. Nothing in this package calls it; no media processing
	// happens in this package.
	BestCodec(requested, available uint64) uint64
}

// BackoffTick is the scheduling-tick duration used by the non-self-locked
// back-off path in the forwarder and lock dances (§5, "sleep a tick").
const BackoffTick = time.Millisecond
