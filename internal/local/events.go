package local

import (
	"time"

	"github.com/sebas/localswitch/internal/events"
)

func baseEvent(p *Pair, t events.EventType) events.BaseEvent {
	return events.BaseEvent{
		EventType: t,
		EventTime: time.Now(),
		ID:        p.ID,
		Extension: p.extension,
		Context:   p.context,
	}
}

func newPairRequestedEvent(p *Pair, aName, bName string) *events.PairRequestedEvent {
	var flagNames []string
	for flag, name := range flagLabels {
		if p.flags&flag != 0 {
			flagNames = append(flagNames, name)
		}
	}
	return &events.PairRequestedEvent{
		BaseEvent: baseEvent(p, events.PairRequested),
		AName:     aName,
		BName:     bName,
		Flags:     flagNames,
	}
}

func newPairCalledEvent(p *Pair) *events.PairCalledEvent {
	return &events.PairCalledEvent{BaseEvent: baseEvent(p, events.PairCalled)}
}

func newPairOptimizedAwayEvent(p *Pair, farPeerName string) *events.PairOptimizedAwayEvent {
	return &events.PairOptimizedAwayEvent{
		BaseEvent:   baseEvent(p, events.PairOptimizedAway),
		FarPeerName: farPeerName,
	}
}

func newPairDestroyedEvent(p *Pair, reason events.DestroyReason) *events.PairDestroyedEvent {
	return &events.PairDestroyedEvent{
		BaseEvent: baseEvent(p, events.PairDestroyed),
		Reason:    reason,
	}
}

var flagLabels = map[Flag]string{
	FlagGlareDetect:    "glare_detect",
	FlagCancelQueue:    "cancel_queue",
	FlagAlreadyMasqed:  "already_masqed",
	FlagLaunchedPBX:    "launched_pbx",
	FlagNoOptimization: "no_optimization",
	FlagBridgeReport:   "bridge_report",
	FlagMOHPassthru:    "moh_passthru",
}
