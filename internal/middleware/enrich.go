package middleware

import (
	"net/http"

	"github.com/rolegate/rolegate/internal/enrich"
)

// Enrichment runs the role pipeline once per authenticated request and
// applies the decision to the request principal. This is the single point
// where the pipeline's pure result mutates identity state; handlers only
// ever see the finished principal.
func Enrichment(pipeline *enrich.Pipeline) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			res := pipeline.Run(r.Context(), enrich.Identity{
				Name:          p.Name,
				Authenticated: p.Authenticated,
				Roles:         p.Roles,
				GroupIDs:      p.Groups,
				GroupsErr:     p.GroupsErr,
			})

			p.Account = res.Account
			p.Roles = res.Roles
			p.Disabled = res.Disabled
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole guards a route subtree: anonymous callers get 401, principals
// without the role get 403.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok || !p.Authenticated {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			if !p.HasRole(role) {
				http.Error(w, "insufficient role", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
