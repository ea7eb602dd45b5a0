package middleware

import (
	"net/http"

	"github.com/dhia123zeiri/crm-app1-sub001/internal/authz"
)

// PageGuard protects server-rendered page routes. The requested content is
// never written on denial, not even transiently: unresolved users are sent
// to the login entry point and authenticated users outside their area are
// sent to their role's default dashboard.
func PageGuard(engine *authz.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := RoleFromContext(r.Context())
			if !ok {
				http.Redirect(w, r, engine.LoginPath(), http.StatusSeeOther)
				return
			}
			if !engine.IsAuthorized(role, r.URL.Path) {
				http.Redirect(w, r, engine.DefaultDashboard(role), http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole is the JSON-API counterpart of PageGuard: 401 without
// claims, 403 when the role may not reach the requested path.
func RequireRole(engine *authz.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := RoleFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !engine.IsAuthorized(role, r.URL.Path) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
