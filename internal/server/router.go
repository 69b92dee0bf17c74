// Package server assembles the HTTP surface: the admin API over the grant
// and override stores, the whoami endpoint, health, and metrics. Role
// enrichment runs as middleware, so every handler sees a finished principal.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rolegate/rolegate/internal/enrich"
	"github.com/rolegate/rolegate/internal/middleware"
	"github.com/rolegate/rolegate/internal/overrides"
	"github.com/rolegate/rolegate/internal/roles"
)

// RouterOptions controls the construction of the HTTP router.
// The zero value is valid; sensible defaults are applied where fields are not set.
type RouterOptions struct {
	Roles     roles.Store
	Overrides *overrides.Store
	Pipeline  *enrich.Pipeline

	// Authenticator validates bearer tokens. Nil disables authentication;
	// every request is then anonymous and the admin API is unreachable.
	Authenticator *middleware.Authenticator

	// PurgeRetentionDays is the retention window applied when a purge
	// request names no ?days. Zero falls back to 30.
	PurgeRetentionDays int

	CORSOptions   *cors.Options
	Middleware    []func(http.Handler) http.Handler
	HealthHandler http.HandlerFunc
	ExtraRoutes   func(chi.Router)
}

// DefaultCORSOptions returns the shared development CORS policy.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://127.0.0.1:5173",
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// NewRouter assembles a chi.Router with shared middleware, CORS policy, and
// the rolegate handlers mounted. The router can be tailored via RouterOptions
// for CLI usage, tests, or other entrypoints.
func NewRouter(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	// Baseline middleware shared across entrypoints.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics())

	corsCfg := DefaultCORSOptions()
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	if opts.Authenticator != nil {
		r.Use(opts.Authenticator.Middleware)
	}
	if opts.Pipeline != nil {
		r.Use(middleware.Enrichment(opts.Pipeline))
	}

	// Apply custom middleware passed from the caller.
	for _, mw := range opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	healthHandler := opts.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}
	r.Get("/healthz", healthHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/whoami", handleWhoAmI())

		// Administrative surface over the grant and override stores.
		api.Group(func(admin chi.Router) {
			admin.Use(middleware.RequireRole(roles.RoleAdmin))

			if opts.Roles != nil {
				admin.Get("/roles", handleListRoles(opts.Roles))
				admin.Post("/roles/purge", handlePurge(opts.Roles, opts.PurgeRetentionDays))
				admin.Get("/users", handleListUsers(opts.Roles))
				admin.Get("/users/{user}/roles", handleGetUserRoles(opts.Roles))
				admin.Post("/users/{user}/roles/{role}", handleGrantRole(opts.Roles))
				admin.Delete("/users/{user}/roles/{role}", handleRevokeRole(opts.Roles))
				admin.Post("/users/{user}/roles/{role}/restore", handleRestoreRole(opts.Roles))
				admin.Delete("/users/{user}", handleRemoveUser(opts.Roles))
			}

			if opts.Overrides != nil {
				admin.Get("/overrides", handleListOverrides(opts.Overrides))
				admin.Put("/overrides/{user}", handleSetOverride(opts.Overrides))
				admin.Delete("/overrides/{user}", handleRemoveOverride(opts.Overrides))
			}
		})
	})

	if opts.ExtraRoutes != nil {
		opts.ExtraRoutes(r)
	}

	return r
}
