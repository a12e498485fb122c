package events

import (
	"context"
	"errors"
	"sync"

	"github.com/sebas/localswitch/internal/logger"
)

// Publisher is the interface for publishing pair lifecycle events.
// Implementations may be no-op, logging, in-memory (for testing), NATS
// (production), or fan out to several of those at once.
type Publisher interface {
	// Publish sends an event, blocking until accepted or ctx is done.
	// Returns error only for transport failures, not for invalid events
	// (those should be caught at construction).
	Publish(ctx context.Context, event Event) error

	// PublishAsync sends an event without waiting for confirmation. For
	// the hot paths in internal/local (forwarder, optimize-away,
	// lifecycle), where some loss under load is acceptable but blocking
	// on an observer is not.
	PublishAsync(event Event)

	// Flush ensures all pending events have left this publisher's own
	// buffering. Call before shutdown to avoid event loss.
	Flush(ctx context.Context) error

	// Close releases resources. Calls Flush internally.
	Close() error
}

// NoopPublisher discards all events. Use when no observer is configured.
type NoopPublisher struct{}

// NewNoopPublisher creates a publisher that silently discards events.
func NewNoopPublisher() *NoopPublisher { return &NoopPublisher{} }

func (p *NoopPublisher) Publish(ctx context.Context, event Event) error { return nil }
func (p *NoopPublisher) PublishAsync(event Event)                      {}
func (p *NoopPublisher) Flush(ctx context.Context) error               { return nil }
func (p *NoopPublisher) Close() error                                  { return nil }

// LoggingPublisher logs events at debug level through a component logger
// (logger.For("events") by default).
type LoggingPublisher struct {
	log logSink
}

// logSink is the minimal logging surface LoggingPublisher needs; letting
// it be an interface instead of a concrete *slog.Logger keeps a nil
// constructor argument cheap to default without importing log/slog here
// just for the zero-value check.
type logSink interface {
	Debug(msg string, args ...any)
}

// NewLoggingPublisher creates a publisher that logs events through
// logger.For("events"), or l if given.
func NewLoggingPublisher(l logSink) *LoggingPublisher {
	if l == nil {
		l = logger.For("events")
	}
	return &LoggingPublisher{log: l}
}

func (p *LoggingPublisher) Publish(ctx context.Context, event Event) error {
	p.log.Debug("event published", eventFields(event)...)
	return nil
}

func (p *LoggingPublisher) PublishAsync(event Event) {
	p.log.Debug("event published (async)", eventFields(event)...)
}

func (p *LoggingPublisher) Flush(ctx context.Context) error { return nil }
func (p *LoggingPublisher) Close() error                    { return nil }

func eventFields(event Event) []any {
	return []any{"subject", event.Subject(), "type", event.Type(), "pair_id", event.PairID()}
}

// ChannelPublisher publishes to an in-memory channel: used by tests to
// assert on emitted events, and as the admin surface's live feed.
//
// Unlike a typical work queue, a live admin feed cares about recency, not
// completeness: a consumer that fell behind should see the newest pair
// activity, not get stuck behind history it'll never catch up on. So a
// full buffer evicts the oldest queued event to make room for the
// incoming one, rather than dropping the incoming one.
type ChannelPublisher struct {
	mu        sync.Mutex
	ch        chan Event
	closed    bool
	dropCount int64
}

// NewChannelPublisher creates a publisher backed by a buffered channel of
// the given capacity (default 1000 if non-positive).
func NewChannelPublisher(bufferSize int) *ChannelPublisher {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &ChannelPublisher{ch: make(chan Event, bufferSize)}
}

func (p *ChannelPublisher) Publish(ctx context.Context, event Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	p.enqueue(event)
	return nil
}

func (p *ChannelPublisher) PublishAsync(event Event) {
	p.enqueue(event)
}

// enqueue is the single insertion path both Publish and PublishAsync
// funnel through, so the oldest-eviction policy only needs implementing
// once.
func (p *ChannelPublisher) enqueue(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	select {
	case p.ch <- event:
		return
	default:
	}

	select {
	case <-p.ch:
		p.dropCount++
	default:
	}

	select {
	case p.ch <- event:
	default:
		// Another goroutine refilled the slot between our drain and our
		// send; count this one as dropped rather than spin.
		p.dropCount++
	}
}

func (p *ChannelPublisher) Flush(ctx context.Context) error { return nil }

func (p *ChannelPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
	return nil
}

// Events returns the channel for consuming events.
func (p *ChannelPublisher) Events() <-chan Event { return p.ch }

// DroppedCount returns the number of events evicted to make room for a
// newer one. Events published after Close are discarded without being
// counted.
func (p *ChannelPublisher) DroppedCount() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropCount
}

// MultiPublisher fans out events to multiple publishers, e.g. a
// LoggingPublisher for the operator's console plus a NATSPublisher for
// downstream consumers.
type MultiPublisher struct {
	publishers []Publisher
}

// NewMultiPublisher creates a publisher that sends to all provided
// publishers.
func NewMultiPublisher(publishers ...Publisher) *MultiPublisher {
	return &MultiPublisher{publishers: publishers}
}

func (p *MultiPublisher) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, pub := range p.publishers {
		if err := pub.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *MultiPublisher) PublishAsync(event Event) {
	for _, pub := range p.publishers {
		pub.PublishAsync(event)
	}
}

func (p *MultiPublisher) Flush(ctx context.Context) error {
	var errs []error
	for _, pub := range p.publishers {
		if err := pub.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *MultiPublisher) Close() error {
	var errs []error
	for _, pub := range p.publishers {
		if err := pub.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
