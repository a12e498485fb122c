package dialplan_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebas/localswitch/internal/dialplan"
)

func writeDialplan(t *testing.T, cfg dialplan.Config) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dialplan.json")
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func TestExactMatch(t *testing.T) {
	path := writeDialplan(t, dialplan.Config{
		Version: "1",
		Routes: []dialplan.Route{
			{ID: "sales", Context: "internal", Extension: "1000", Priority: 10, Enabled: true},
		},
	})
	dp, err := dialplan.New(path, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !dp.ExtensionExists("internal", "1000") {
		t.Error("expected 1000@internal to exist")
	}
	if dp.ExtensionExists("internal", "1001") {
		t.Error("expected 1001@internal not to exist")
	}
	if dp.ExtensionExists("other", "1000") {
		t.Error("expected 1000@other not to exist (wrong context)")
	}
}

func TestPrefixMatch(t *testing.T) {
	path := writeDialplan(t, dialplan.Config{
		Version: "1",
		Routes: []dialplan.Route{
			{ID: "fourxxx", Context: "internal", Extension: "4*", Priority: 10, Enabled: true},
		},
	})
	dp, err := dialplan.New(path, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !dp.ExtensionExists("internal", "4001") {
		t.Error("expected 4001 to match the 4* prefix route")
	}
	if dp.ExtensionExists("internal", "5001") {
		t.Error("expected 5001 not to match the 4* prefix route")
	}
}

func TestDefaultCatchAll(t *testing.T) {
	path := writeDialplan(t, dialplan.Config{
		Version: "1",
		Routes: []dialplan.Route{
			{ID: "default", Context: "internal", Extension: "*", Priority: 100, Enabled: true},
		},
	})
	dp, err := dialplan.New(path, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !dp.ExtensionExists("internal", "anything") {
		t.Error("expected the '*' route to catch any extension")
	}
}

func TestDisabledRouteNeverMatches(t *testing.T) {
	path := writeDialplan(t, dialplan.Config{
		Version: "1",
		Routes: []dialplan.Route{
			{ID: "off", Context: "internal", Extension: "1000", Priority: 10, Enabled: false},
		},
	})
	dp, err := dialplan.New(path, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if dp.ExtensionExists("internal", "1000") {
		t.Error("expected a disabled route never to match")
	}
}

func TestPriorityOrderingPrefersExactOverPrefix(t *testing.T) {
	path := writeDialplan(t, dialplan.Config{
		Version: "1",
		Routes: []dialplan.Route{
			// Declared out of priority order on purpose; Sort must fix it.
			{ID: "catchall", Context: "internal", Extension: "*", Priority: 100, Enabled: true},
			{ID: "exact", Context: "internal", Extension: "1000", Priority: 10, Enabled: true},
		},
	})
	dp, err := dialplan.New(path, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if dp.RouteCount() != 2 {
		t.Fatalf("RouteCount = %d, want 2", dp.RouteCount())
	}
	if !dp.ExtensionExists("internal", "1000") {
		t.Error("expected 1000@internal to match via either route")
	}

	routes := dialplan.RouteList{
		{ID: "catchall", Context: "internal", Extension: "*", Priority: 100, Enabled: true},
		{ID: "exact", Context: "internal", Extension: "1000", Priority: 10, Enabled: true},
	}
	for _, r := range routes {
		if err := r.Validate(); err != nil {
			t.Fatalf("Validate: %v", err)
		}
	}
	routes.Sort()
	if r, ok := routes.Match("internal", "1000"); !ok || r.ID != "exact" {
		t.Errorf("Match = %v, want the exact route ahead of the catch-all", r)
	}
}

func TestValidateRejectsMissingFields(t *testing.T) {
	r := &dialplan.Route{Context: "internal", Extension: "1000"}
	if err := r.Validate(); err == nil {
		t.Error("expected Validate to reject a route with no ID")
	}
	r = &dialplan.Route{ID: "x", Extension: "1000"}
	if err := r.Validate(); err == nil {
		t.Error("expected Validate to reject a route with no context")
	}
	r = &dialplan.Route{ID: "x", Context: "internal"}
	if err := r.Validate(); err == nil {
		t.Error("expected Validate to reject a route with no extension pattern")
	}
}

func TestReloadPicksUpChanges(t *testing.T) {
	path := writeDialplan(t, dialplan.Config{
		Version: "1",
		Routes: []dialplan.Route{
			{ID: "sales", Context: "internal", Extension: "1000", Priority: 10, Enabled: true},
		},
	})
	dp, err := dialplan.New(path, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if dp.ExtensionExists("internal", "2000") {
		t.Fatal("2000 should not exist before reload")
	}

	data, err := json.Marshal(dialplan.Config{
		Version: "2",
		Routes: []dialplan.Route{
			{ID: "sales", Context: "internal", Extension: "1000", Priority: 10, Enabled: true},
			{ID: "support", Context: "internal", Extension: "2000", Priority: 10, Enabled: true},
		},
	})
	if err != nil {
		t.Fatalf("marshal updated config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("rewrite dialplan file: %v", err)
	}

	if err := dp.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if !dp.ExtensionExists("internal", "2000") {
		t.Error("expected 2000 to exist after reload")
	}
}

func TestVersionReflectsMostRecentLoad(t *testing.T) {
	path := writeDialplan(t, dialplan.Config{
		Version: "1",
		Routes: []dialplan.Route{
			{ID: "sales", Context: "internal", Extension: "1000", Priority: 10, Enabled: true},
		},
	})
	dp, err := dialplan.New(path, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if dp.Version() != "1" {
		t.Fatalf("Version() = %q, want %q", dp.Version(), "1")
	}

	data, err := json.Marshal(dialplan.Config{
		Version: "2",
		Routes: []dialplan.Route{
			{ID: "sales", Context: "internal", Extension: "1000", Priority: 10, Enabled: true},
		},
	})
	if err != nil {
		t.Fatalf("marshal updated config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("rewrite dialplan file: %v", err)
	}
	if err := dp.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if dp.Version() != "2" {
		t.Fatalf("Version() after reload = %q, want %q", dp.Version(), "2")
	}
}

func TestExtensionExistsIsolatesUnknownContext(t *testing.T) {
	path := writeDialplan(t, dialplan.Config{
		Version: "1",
		Routes: []dialplan.Route{
			{ID: "sales", Context: "internal", Extension: "1000", Priority: 10, Enabled: true},
		},
	})
	dp, err := dialplan.New(path, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if dp.ExtensionExists("nonexistent-context", "1000") {
		t.Error("expected a context with no bucket to never match")
	}
}

func TestNewRejectsInvalidRoute(t *testing.T) {
	path := writeDialplan(t, dialplan.Config{
		Version: "1",
		Routes: []dialplan.Route{
			{Context: "internal", Extension: "1000", Priority: 10, Enabled: true}, // missing ID
		},
	})
	if _, err := dialplan.New(path, nil); err == nil {
		t.Error("expected New to reject a route missing its ID")
	}
}
