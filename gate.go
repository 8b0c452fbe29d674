package claims

import (
	"sort"
	"strings"
)

// Decision is the outcome of an authorization check.
type Decision string

const (
	// DecisionAllow admits the action.
	DecisionAllow Decision = "allow"
	// DecisionRedirectUnauthenticated sends the caller to a login entry point.
	DecisionRedirectUnauthenticated Decision = "redirect_unauthenticated"
	// DecisionRedirectForbidden sends an authenticated-but-wrong-role caller
	// to the public entry point, never an error page.
	DecisionRedirectForbidden Decision = "redirect_forbidden"
)

// Decide maps (session, required role set) to a decision. It is the single
// authorization function every protected screen and action calls; call sites
// differ only in the required set they pass.
//
// A loading session (token held, Principal not yet hydrated) is a caller
// precondition: guards must render a waiting state instead of deciding. When
// called anyway, Decide answers RedirectUnauthenticated as the safe default.
func Decide(session *Session, required ...Role) Decision {
	if !session.IsAuthenticated() {
		return DecisionRedirectUnauthenticated
	}

	if len(required) == 0 {
		return DecisionAllow
	}

	if session.Role().HasAny(required...) {
		return DecisionAllow
	}

	return DecisionRedirectForbidden
}

// RouteTable maps protected path prefixes to required role sets. Longest
// matching prefix wins; unlisted paths are public.
type RouteTable struct {
	prefixes []routeRule
}

type routeRule struct {
	prefix   string
	required []Role
}

// NewRouteTable builds a table from prefix → required roles.
func NewRouteTable(rules map[string][]Role) *RouteTable {
	table := &RouteTable{}
	for prefix, required := range rules {
		table.prefixes = append(table.prefixes, routeRule{
			prefix:   strings.TrimSuffix(prefix, "/"),
			required: required,
		})
	}

	// longest prefix first
	sort.Slice(table.prefixes, func(i, j int) bool {
		return len(table.prefixes[i].prefix) > len(table.prefixes[j].prefix)
	})

	return table
}

// DefaultRouteTable covers the portal's authorization-relevant surface:
// farmer, admin, and service-provider subtrees. SUPER_ADMIN reaches the
// admin subtree through role inheritance, not through an extra entry.
func DefaultRouteTable() *RouteTable {
	return NewRouteTable(map[string][]Role{
		"/farmer":           {RoleFarmer},
		"/admin":            {RoleAdmin},
		"/service-provider": {RoleServiceProvider},
	})
}

// RequiredFor returns the required role set for a path and whether the path
// is protected at all.
func (t *RouteTable) RequiredFor(path string) ([]Role, bool) {
	if t == nil {
		return nil, false
	}

	for _, rule := range t.prefixes {
		if path == rule.prefix || strings.HasPrefix(path, rule.prefix+"/") {
			return rule.required, true
		}
	}

	return nil, false
}

// DecideRoute applies the table to a path: public paths always allow.
func (t *RouteTable) DecideRoute(session *Session, path string) Decision {
	required, protected := t.RequiredFor(path)
	if !protected {
		return DecisionAllow
	}
	return Decide(session, required...)
}
