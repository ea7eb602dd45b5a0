// Package authz decides whether a role may navigate to a path and where it
// lands by default. Policies are static configuration, immutable after
// construction; the engine holds no mutable state and is safe for
// concurrent reads.
package authz

import "strings"

// Policy describes what one role may reach. All authorized paths must live
// under RoutePrefix. With a non-empty AllowedBasePaths list, a path is
// authorized iff it equals a base path or extends it past a "/" boundary.
// With an empty list the policy denies everything unless
// AllowAllUnderPrefix is set: the historic allow-everything fallback is an
// explicit opt-in, never a silent default.
type Policy struct {
	RoutePrefix         string
	DefaultDashboard    string
	AllowedBasePaths    []string
	AllowAllUnderPrefix bool
	// ManagementAPI grants access to the practice-side management
	// endpoints, which are role-scoped rather than path-scoped.
	ManagementAPI bool
}

// Engine answers (role, path) authorization queries against a fixed policy
// table.
type Engine struct {
	policies  map[string]Policy
	loginPath string
}

// NewEngine builds an engine over the given table. Role keys are matched
// case-insensitively. loginPath is the landing page for unknown roles.
func NewEngine(policies map[string]Policy, loginPath string) *Engine {
	table := make(map[string]Policy, len(policies))
	for role, p := range policies {
		table[normalizeRole(role)] = p
	}
	return &Engine{policies: table, loginPath: loginPath}
}

// DefaultEngine returns the built-in policy table for the practice portal.
func DefaultEngine() *Engine {
	return NewEngine(map[string]Policy{
		"admin": {
			RoutePrefix:         "/admin",
			DefaultDashboard:    "/admin/dashboard",
			AllowAllUnderPrefix: true,
			ManagementAPI:       true,
		},
		"comptable": {
			RoutePrefix:      "/comptable",
			DefaultDashboard: "/comptable/dashboard",
			ManagementAPI:    true,
			AllowedBasePaths: []string{
				"/comptable/dashboard",
				"/comptable/clients",
				"/comptable/formulaires",
				"/comptable/documents",
				"/comptable/profil",
			},
		},
		"client": {
			RoutePrefix:      "/client",
			DefaultDashboard: "/client/dashboard",
			AllowedBasePaths: []string{
				"/client/dashboard",
				"/client/documents",
				"/client/profil",
			},
		},
	}, "/login")
}

// IsAuthorized reports whether role may navigate to path. Unknown roles
// are never authorized.
func (e *Engine) IsAuthorized(role, path string) bool {
	p, ok := e.policies[normalizeRole(role)]
	if !ok {
		return false
	}
	// Prefix containment is checked before any base-path comparison.
	if !strings.HasPrefix(path, p.RoutePrefix) {
		return false
	}
	if len(p.AllowedBasePaths) == 0 {
		return p.AllowAllUnderPrefix
	}
	for _, base := range p.AllowedBasePaths {
		if pathUnder(path, base) {
			return true
		}
	}
	return false
}

// DefaultDashboard returns the role's landing page, or the login entry
// point when the role has no policy.
func (e *Engine) DefaultDashboard(role string) string {
	if p, ok := e.policies[normalizeRole(role)]; ok {
		return p.DefaultDashboard
	}
	return e.loginPath
}

// LoginPath is where unauthenticated or unrecognized users are sent.
func (e *Engine) LoginPath() string { return e.loginPath }

// CanManage reports whether role may call the management API. Unknown
// roles may not.
func (e *Engine) CanManage(role string) bool {
	p, ok := e.policies[normalizeRole(role)]
	return ok && p.ManagementAPI
}

// KnownRole reports whether a policy exists for role.
func (e *Engine) KnownRole(role string) bool {
	_, ok := e.policies[normalizeRole(role)]
	return ok
}

// pathUnder matches on segment boundaries: base authorizes itself and its
// sub-paths, so "/comptable/clients" covers "/comptable/clients/42" but
// not "/comptable/client-x".
func pathUnder(path, base string) bool {
	return path == base || strings.HasPrefix(path, base+"/")
}

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
