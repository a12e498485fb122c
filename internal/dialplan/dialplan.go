// Package dialplan answers one question for the local-channel driver: does
// a given extension exist within a given context. It does not execute
// dialplan scripts; that engine lives outside this module's scope.
package dialplan

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"
)

// Config is the on-disk JSON shape of the route table.
type Config struct {
	Version string  `json:"version"`
	Routes  []Route `json:"routes"`
}

// snapshot is one fully-loaded, immutable generation of the route table.
// ExtensionExists never scans the whole route list: routes are bucketed
// by context up front, at load time, since every real lookup already
// knows its context and a devicestate/call storm under load shouldn't
// pay for comparing against routes that could never match anyway.
type snapshot struct {
	version   string
	byContext map[string]RouteList
	total     int
	loadedAt  time.Time
}

// Dialplan provides thread-safe, lock-free lookups over a route table,
// reloadable from disk without blocking readers.
type Dialplan struct {
	current atomic.Pointer[snapshot]
	path    string
	logger  *slog.Logger
}

// New creates a Dialplan from a JSON route file at path.
func New(path string, logger *slog.Logger) (*Dialplan, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dialplan{path: path, logger: logger}
	if err := d.Reload(); err != nil {
		return nil, fmt.Errorf("initial load: %w", err)
	}
	return d, nil
}

// ExtensionExists reports whether extension is reachable in context. This
// is the lookup devicestate and call consult before trusting a
// destination string.
func (d *Dialplan) ExtensionExists(context, extension string) bool {
	snap := d.current.Load()
	if snap == nil {
		return false
	}
	bucket, ok := snap.byContext[context]
	if !ok {
		return false
	}
	_, found := bucket.Match(context, extension)
	return found
}

// Reload re-reads the route file, validates and re-buckets every route by
// context, and atomically swaps the result in. Readers never observe a
// partially-built snapshot: a bad file leaves the previous generation in
// place and returns an error.
func (d *Dialplan) Reload() error {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	byContext := make(map[string]RouteList)
	for i := range cfg.Routes {
		route := &cfg.Routes[i]
		if err := route.Validate(); err != nil {
			return fmt.Errorf("route %d (%s): %w", i, route.ID, err)
		}
		byContext[route.Context] = append(byContext[route.Context], route)
	}
	for ctx, bucket := range byContext {
		bucket.Sort()
		byContext[ctx] = bucket
	}

	next := &snapshot{
		version:   cfg.Version,
		byContext: byContext,
		total:     len(cfg.Routes),
		loadedAt:  time.Now(),
	}

	prev := d.current.Swap(next)
	fields := []any{"path", d.path, "count", next.total, "contexts", len(byContext), "version", cfg.Version}
	if prev != nil {
		fields = append(fields, "previous_version", prev.version, "previous_count", prev.total)
	}
	d.logger.Info("loaded dialplan routes", fields...)
	return nil
}

// RouteCount returns the number of loaded routes.
func (d *Dialplan) RouteCount() int {
	snap := d.current.Load()
	if snap == nil {
		return 0
	}
	return snap.total
}

// Version reports the version string of the most recently loaded route
// file, or "" before any successful load.
func (d *Dialplan) Version() string {
	snap := d.current.Load()
	if snap == nil {
		return ""
	}
	return snap.version
}

// LoadedAt reports when the current snapshot was swapped in.
func (d *Dialplan) LoadedAt() time.Time {
	snap := d.current.Load()
	if snap == nil {
		return time.Time{}
	}
	return snap.loadedAt
}
