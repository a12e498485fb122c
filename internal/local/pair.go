package local

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Flag is a bit in the pair's flag set (§3).
type Flag uint16

const (
	FlagGlareDetect Flag = 1 << iota
	FlagCancelQueue
	FlagAlreadyMasqed
	FlagLaunchedPBX
	FlagNoOptimization
	FlagBridgeReport
	FlagMOHPassthru
)

// Direction identifies which side of a pair an endpoint occupies.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionA
	DirectionB
)

func (d Direction) String() string {
	switch d {
	case DirectionA:
		return "A"
	case DirectionB:
		return "B"
	default:
		return "none"
	}
}

// JitterBufferConfig is opaque jb_conf, owned by the surrounding switch but
// threaded through the pair so request() can apply it to A.
type JitterBufferConfig struct {
	Enabled bool
	MaxMs   int
}

// ModuleRef is an opaque token keeping the containing module pinned while
// an endpoint exists (§3 module_refs, invariant 6: released exactly as
// many times as acquired).
type ModuleRef struct {
	released bool
}

func (r *ModuleRef) release() {
	r.released = true
}

// Pair is the shared private state record for one Local channel instance:
// two endpoint handles, coordination flags, the parsed dialplan target,
// and the mutex covering all of it.
//
// The pair owns neither endpoint — both are owned by the switch — it
// holds plain references and a module-reference token per side, released
// at that side's hangup. fixup rebinds the references on channel swaps.
type Pair struct {
	ID string

	mu *trylock

	aHandle Endpoint
	bHandle Endpoint

	flags Flag

	context   string
	extension string

	reqFormat uint64
	jbConf    JitterBufferConfig

	aModuleRef *ModuleRef
	bModuleRef *ModuleRef
}

// ParsedDestination is the result of parsing a destination string of shape
// EXTEN[/OPTS][@CONTEXT] (§4.1, §6).
type ParsedDestination struct {
	Extension string
	Context   string
	Options   string
	Flags     Flag
}

// ParseDestination parses dest per the grammar in §6. Options are stripped
// before '@' is sought (the source's ordering requirement noted in §9's
// open question: '/' must appear before '@').
func ParseDestination(dest, defaultContext string) (ParsedDestination, error) {
	if dest == "" {
		return ParsedDestination{}, &DestinationError{Raw: dest, Reason: "empty destination"}
	}

	var extension, opts, context string

	slash := strings.IndexByte(dest, '/')
	at := strings.IndexByte(dest, '@')
	if slash >= 0 && (at < 0 || slash < at) {
		extension = dest[:slash]
		optsAndCtx := dest[slash+1:]
		if at := strings.IndexByte(optsAndCtx, '@'); at >= 0 {
			opts = optsAndCtx[:at]
			context = optsAndCtx[at+1:]
		} else {
			opts = optsAndCtx
		}
	} else if at >= 0 {
		extension = dest[:at]
		context = dest[at+1:]
	} else {
		extension = dest
	}

	if extension == "" {
		return ParsedDestination{}, &DestinationError{Raw: dest, Reason: "missing extension"}
	}
	if context == "" {
		context = defaultContext
	}

	var flags Flag
	for _, r := range opts {
		switch r {
		case 'n':
			flags |= FlagNoOptimization
		case 'j':
			// jb enablement depends on 'n' also being present; newPair
			// resolves that from the returned Options string.
		case 'b':
			flags |= FlagBridgeReport
		case 'm':
			flags |= FlagMOHPassthru
		}
	}

	return ParsedDestination{
		Extension: extension,
		Context:   context,
		Options:   opts,
		Flags:     flags,
	}, nil
}

// String re-emits EXT[/OPTS]@CTX for the round-trip property (§8.7).
func (p ParsedDestination) String() string {
	if p.Options != "" {
		return fmt.Sprintf("%s/%s@%s", p.Extension, p.Options, p.Context)
	}
	return fmt.Sprintf("%s@%s", p.Extension, p.Context)
}

// randomTag produces the random 16-bit hex tag used in channel names
// (§6): "Local/EXT@CTX-XXXX;1" / ";2". crypto/rand matches the spec's bit
// width requirement exactly, independent of the uuid.NewString() used for
// the pair's own registry ID.
func randomTag() (string, error) {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return fmt.Sprintf("%02x%02x", b[0], b[1]), nil
}

// newPair allocates Pair state for a parsed destination. It does not yet
// create endpoints or touch the registry — request() in lifecycle.go
// sequences that.
func newPair(dest ParsedDestination, reqFormat uint64, jbConf JitterBufferConfig, logWarn func(string, ...any)) *Pair {
	flags := dest.Flags

	if strings.ContainsRune(dest.Options, 'j') {
		if flags&FlagNoOptimization != 0 {
			jbConf.Enabled = true
		} else if logWarn != nil {
			logWarn("jitter buffer option 'j' requires 'n'; ignoring", "destination", dest.String())
		}
	}

	return &Pair{
		ID:        uuid.NewString(),
		mu:        newTrylock(),
		context:   dest.Context,
		extension: dest.Extension,
		reqFormat: reqFormat,
		jbConf:    jbConf,
		flags:     flags,
	}
}

func (p *Pair) Lock()   { p.mu.Lock() }
func (p *Pair) Unlock() { p.mu.Unlock() }

// TryLock attempts to acquire the pair mutex without blocking, reporting
// whether it succeeded. The registry takes the pair mutex with Lock.
func (p *Pair) TryLock() bool { return p.mu.TryLock() }

func (p *Pair) hasFlag(f Flag) bool { return p.flags&f != 0 }
func (p *Pair) setFlag(f Flag)      { p.flags |= f }
func (p *Pair) clearFlag(f Flag)    { p.flags &^= f }

// DirectionOf reports which side h occupies, or DirectionNone. Caller
// must hold p.mu.
func (p *Pair) DirectionOf(h Endpoint) Direction {
	switch {
	case h != nil && h == p.aHandle:
		return DirectionA
	case h != nil && h == p.bHandle:
		return DirectionB
	default:
		return DirectionNone
	}
}

// PartnerOf returns the handle on the other side of d, or nil. Caller
// must hold p.mu.
func (p *Pair) PartnerOf(d Direction) Endpoint {
	switch d {
	case DirectionA:
		return p.bHandle
	case DirectionB:
		return p.aHandle
	default:
		return nil
	}
}

// HandleOf returns the handle for d, or nil.
func (p *Pair) HandleOf(d Direction) Endpoint {
	switch d {
	case DirectionA:
		return p.aHandle
	case DirectionB:
		return p.bHandle
	default:
		return nil
	}
}

// bothNull reports whether both endpoint slots are currently nil. Caller
// must hold p.mu.
func (p *Pair) bothNull() bool {
	return p.aHandle == nil && p.bHandle == nil
}
