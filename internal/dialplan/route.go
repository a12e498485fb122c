package dialplan

import (
	"fmt"
	"sort"
	"strings"
)

// Route declares that a given extension is reachable within a context, or
// that a whole context accepts any extension via a prefix/default pattern.
type Route struct {
	ID        string `json:"id"`
	Context   string `json:"context"`
	Extension string `json:"extension"` // exact match, "prefix*" for prefix, or "*" for any extension in context
	Priority  int    `json:"priority"`  // lower = higher priority
	Enabled   bool   `json:"enabled"`

	isDefault bool
	isPrefix  bool
	prefix    string
	exact     string
}

// Validate checks the route configuration and compiles the extension pattern.
func (r *Route) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("route ID required")
	}
	if r.Context == "" {
		return fmt.Errorf("route %s: context required", r.ID)
	}
	if r.Extension == "" {
		return fmt.Errorf("route %s: extension pattern required", r.ID)
	}

	switch {
	case r.Extension == "*":
		r.isDefault = true
	case strings.HasSuffix(r.Extension, "*"):
		r.isPrefix = true
		r.prefix = strings.TrimSuffix(r.Extension, "*")
	default:
		r.exact = r.Extension
	}
	return nil
}

// Match reports whether the route covers (context, extension).
func (r *Route) Match(context, extension string) bool {
	if !r.Enabled || r.Context != context {
		return false
	}
	switch {
	case r.isDefault:
		return true
	case r.isPrefix:
		return strings.HasPrefix(extension, r.prefix)
	default:
		return extension == r.exact
	}
}

// RouteList is a sortable list of routes by priority.
type RouteList []*Route

func (r RouteList) Len() int           { return len(r) }
func (r RouteList) Less(i, j int) bool { return r[i].Priority < r[j].Priority }
func (r RouteList) Swap(i, j int)      { r[i], r[j] = r[j], r[i] }

// Sort sorts routes by priority (lower = higher priority).
func (r RouteList) Sort() { sort.Sort(r) }

// Match reports whether any route in the list covers (context, extension).
func (r RouteList) Match(context, extension string) (*Route, bool) {
	for _, route := range r {
		if route.Match(context, extension) {
			return route, true
		}
	}
	return nil, false
}
