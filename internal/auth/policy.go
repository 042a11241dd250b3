package auth

import (
	"net/http"
	"strings"
)

type routeRule struct {
	path   string
	prefix bool
	role   Role
}

// tollRoutes is matched in order; the first hit wins.
var tollRoutes = []routeRule{
	{path: "/api/v1/toll/rules/refresh", role: RoleAdmin},
	{path: "/api/v1/toll/rules", role: RoleViewer},
	{path: "/api/v1/toll/reports/export.", prefix: true, role: RoleViewer},
	{path: "/api/v1/toll/reports", role: RoleViewer},
}

// Policy maps requests to the role they require.
type Policy struct {
	ExemptPaths    map[string]struct{}
	ExemptPrefixes []string
}

// NewDefaultPolicy builds the toll API policy with the given exemptions.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{ExemptPaths: set, ExemptPrefixes: exemptPrefixes}
}

// IsExempt reports whether the request skips authentication.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	if _, ok := p.ExemptPaths[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range p.ExemptPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// RequiredRole resolves the role a request needs. Unlisted /api/ routes
// need viewer for reads and operator for writes; anything else is open.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	if r == nil {
		return "", false
	}
	path := r.URL.Path
	for _, rule := range tollRoutes {
		if path == rule.path || (rule.prefix && strings.HasPrefix(path, rule.path)) {
			return rule.role, true
		}
	}
	if !strings.HasPrefix(path, "/api/") {
		return "", false
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return RoleViewer, true
	default:
		return RoleOperator, true
	}
}
