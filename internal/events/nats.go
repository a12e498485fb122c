package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSConfig configures the NATS-backed publisher. It covers core NATS
// pub/sub only — no JetStream stream or consumer setup — because pair
// lifecycle events are fire-and-forget telemetry for whatever's watching
// right now, not a system of record that needs replay or exactly-once
// delivery.
type NATSConfig struct {
	// URL is the NATS server URL, e.g. "nats://localhost:4222".
	URL string
	// ConnectTimeout bounds the initial dial.
	ConnectTimeout time.Duration
	// MaxReconnects is the reconnect attempt budget; -1 means unlimited.
	MaxReconnects int
	// ReconnectWait is the delay between reconnect attempts.
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns sensible defaults for a single-node
// deployment.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:            nats.DefaultURL,
		ConnectTimeout: 5 * time.Second,
		MaxReconnects:  -1,
		ReconnectWait:  2 * time.Second,
	}
}

// NATSPublisher publishes pair lifecycle events to NATS subjects derived
// from each event's Subject() (the "local.pairs.<id>.<suffix>" hierarchy
// in types.go), so a downstream consumer can subscribe to
// "local.pairs.*.optimized_away" and similar wildcard patterns without
// this package needing to know who's listening.
type NATSPublisher struct {
	conn *nats.Conn
	log  *slog.Logger

	mu        sync.Mutex
	published int64
	errored   int64
}

// NewNATSPublisher dials the NATS server described by cfg.
func NewNATSPublisher(cfg NATSConfig, log *slog.Logger) (*NATSPublisher, error) {
	if log == nil {
		log = slog.Default()
	}

	opts := []nats.Option{
		nats.Name("localswitchd"),
		nats.Timeout(cfg.ConnectTimeout),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", cfg.URL, err)
	}

	return &NATSPublisher{conn: conn, log: log}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := event.Subject()
	if err := p.conn.Publish(subject, data); err != nil {
		p.mu.Lock()
		p.errored++
		p.mu.Unlock()
		return fmt.Errorf("publish to %s: %w", subject, err)
	}

	p.mu.Lock()
	p.published++
	p.mu.Unlock()
	return nil
}

func (p *NATSPublisher) PublishAsync(event Event) {
	if err := p.Publish(context.Background(), event); err != nil {
		p.log.Warn("async publish failed", "error", err, "type", event.Type(), "pair_id", event.PairID())
	}
}

func (p *NATSPublisher) Flush(ctx context.Context) error {
	if deadline, ok := ctx.Deadline(); ok {
		return p.conn.FlushTimeout(time.Until(deadline))
	}
	return p.conn.Flush()
}

func (p *NATSPublisher) Close() error {
	if err := p.conn.FlushTimeout(2 * time.Second); err != nil {
		p.log.Warn("flush failed during close", "error", err)
	}
	p.conn.Close()
	return nil
}

// Stats reports lifetime publish counters. The admin surface's health
// endpoint does not include them.
func (p *NATSPublisher) Stats() (published, errored int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published, p.errored
}
