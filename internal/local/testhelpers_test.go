package local_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebas/localswitch/internal/dialplan"
	"github.com/sebas/localswitch/internal/events"
	"github.com/sebas/localswitch/internal/fakepbx"
	"github.com/sebas/localswitch/internal/local"
)

// newTestDialplan writes routes to a temporary file and loads them through
// the real dialplan package, rather than faking that collaborator too.
func newTestDialplan(t *testing.T, routes ...dialplan.Route) *dialplan.Dialplan {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dialplan.json")
	cfg := dialplan.Config{Version: "1", Routes: routes}
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal dialplan config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write dialplan file: %v", err)
	}
	dp, err := dialplan.New(path, nil)
	if err != nil {
		t.Fatalf("load dialplan: %v", err)
	}
	return dp
}

func route(id, ctx, extension string) dialplan.Route {
	return dialplan.Route{ID: id, Context: ctx, Extension: extension, Priority: 10, Enabled: true}
}

// harness bundles a Driver with the fake switch and event sink backing it,
// so scenario tests can reach into both the driver's public API and the
// fake switch's introspection helpers.
type harness struct {
	driver *local.Driver
	sw     *fakepbx.PBX
	pub    *events.ChannelPublisher
}

func newHarness(t *testing.T, defaultContext string, routes ...dialplan.Route) *harness {
	t.Helper()
	dp := newTestDialplan(t, routes...)
	sw := fakepbx.NewPBX()
	pub := events.NewChannelPublisher(64)
	driver := local.NewDriver(sw, dp, pub, defaultContext, local.JitterBufferConfig{})
	return &harness{driver: driver, sw: sw, pub: pub}
}

// bFor derives B's channel from A's returned name (the driver hands tests
// only A, per request()'s contract) and looks it up in the fake switch's
// channel directory.
func (h *harness) bFor(t *testing.T, aName string) *fakepbx.Channel {
	t.Helper()
	bName := strings.Replace(aName, ";1", ";2", 1)
	ch, ok := h.sw.Channel(bName)
	if !ok {
		t.Fatalf("no B channel registered for %s (looked for %s)", aName, bName)
	}
	return ch
}

func (h *harness) aFor(t *testing.T, aName string) *fakepbx.Channel {
	t.Helper()
	ch, ok := h.sw.Channel(aName)
	if !ok {
		t.Fatalf("no A channel registered for %s", aName)
	}
	return ch
}

// drainEventTypes empties the harness's event channel and returns the
// observed event types in order, without blocking past what's queued.
func (h *harness) drainEventTypes() []events.EventType {
	var out []events.EventType
	for {
		select {
		case e := <-h.pub.Events():
			out = append(out, e.Type())
		default:
			return out
		}
	}
}

func containsEvent(types []events.EventType, want events.EventType) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}
