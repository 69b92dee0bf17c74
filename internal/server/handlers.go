package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rolegate/rolegate/internal/middleware"
	"github.com/rolegate/rolegate/internal/overrides"
	"github.com/rolegate/rolegate/internal/roles"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// actorFrom names the principal performing an administrative mutation for
// the audit trail.
func actorFrom(r *http.Request) string {
	if p, ok := middleware.PrincipalFromContext(r.Context()); ok && p.Account != "" {
		return p.Account
	}
	return "unknown"
}

// handleWhoAmI handles GET /api/v1/whoami. It reports the caller's resolved
// account and final role set, mainly for debugging token and enrichment
// configuration.
func handleWhoAmI() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := middleware.PrincipalFromContext(r.Context())
		if !ok || !p.Authenticated {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		rolesOut := p.Roles
		if rolesOut == nil {
			rolesOut = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"name":     p.Name,
			"account":  p.Account,
			"roles":    rolesOut,
			"disabled": p.Disabled,
		})
	}
}

// handleListRoles handles GET /api/v1/roles.
func handleListRoles(store roles.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"users": store.Snapshot()})
	}
}

// handleListUsers handles GET /api/v1/users. Includes users whose every
// grant is soft-deleted.
func handleListUsers(store roles.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := store.GetAllUsers(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list users failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": users})
	}
}

// handleGetUserRoles handles GET /api/v1/users/{user}/roles.
func handleGetUserRoles(store roles.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := chi.URLParam(r, "user")
		deleted, err := store.GetDeletedRoles(r.Context(), user)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "read roles failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"user":    user,
			"roles":   store.GetRoles(user),
			"deleted": deleted,
		})
	}
}

// handleGrantRole handles POST /api/v1/users/{user}/roles/{role}.
func handleGrantRole(store roles.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := chi.URLParam(r, "user")
		role := chi.URLParam(r, "role")

		err := store.AddToRole(r.Context(), user, role, actorFrom(r))
		switch {
		case errors.Is(err, roles.ErrDirectoryAccountNotFound):
			writeError(w, http.StatusUnprocessableEntity, "account not found in directory")
		case err != nil:
			writeError(w, http.StatusInternalServerError, "grant failed")
		default:
			writeJSON(w, http.StatusOK, map[string]any{"user": user, "roles": store.GetRoles(user)})
		}
	}
}

// handleRevokeRole handles DELETE /api/v1/users/{user}/roles/{role}.
func handleRevokeRole(store roles.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := chi.URLParam(r, "user")
		role := chi.URLParam(r, "role")

		ok, err := store.RemoveFromRole(r.Context(), user, role, actorFrom(r))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "revoke failed")
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "no active grant for that user and role")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": user, "roles": store.GetRoles(user)})
	}
}

// handleRestoreRole handles POST /api/v1/users/{user}/roles/{role}/restore.
func handleRestoreRole(store roles.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := chi.URLParam(r, "user")
		role := chi.URLParam(r, "role")

		ok, err := store.RestoreRole(r.Context(), user, role, actorFrom(r))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "restore failed")
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "no soft-deleted grant for that user and role")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": user, "roles": store.GetRoles(user)})
	}
}

// handleRemoveUser handles DELETE /api/v1/users/{user}.
func handleRemoveUser(store roles.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := chi.URLParam(r, "user")

		ok, err := store.RemoveUser(r.Context(), user, actorFrom(r))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "remove user failed")
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "user has no active grants")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": user})
	}
}

// handlePurge handles POST /api/v1/roles/purge?days=N. Without ?days the
// configured retention window applies.
func handlePurge(store roles.Store, defaultDays int) http.HandlerFunc {
	if defaultDays <= 0 {
		defaultDays = 30
	}
	return func(w http.ResponseWriter, r *http.Request) {
		days := defaultDays
		if raw := r.URL.Query().Get("days"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				writeError(w, http.StatusBadRequest, "days must be a positive integer")
				return
			}
			days = parsed
		}

		n, err := store.PurgeDeleted(r.Context(), time.Duration(days)*24*time.Hour, actorFrom(r))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "purge failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"purged": n, "days": days})
	}
}

// overrideRequest is the PUT /api/v1/overrides/{user} body.
type overrideRequest struct {
	ExtraRoles []string `json:"extraRoles"`
	Disabled   bool     `json:"disabled"`
}

// handleListOverrides handles GET /api/v1/overrides.
func handleListOverrides(store *overrides.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"overrides": store.Snapshot()})
	}
}

// handleSetOverride handles PUT /api/v1/overrides/{user}.
func handleSetOverride(store *overrides.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := chi.URLParam(r, "user")

		var req overrideRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := store.Upsert(user, req.ExtraRoles, req.Disabled, actorFrom(r)); err != nil {
			writeError(w, http.StatusInternalServerError, "save override failed")
			return
		}
		o, _ := store.Get(user)
		writeJSON(w, http.StatusOK, o)
	}
}

// handleRemoveOverride handles DELETE /api/v1/overrides/{user}.
func handleRemoveOverride(store *overrides.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := chi.URLParam(r, "user")

		ok, err := store.Remove(user, actorFrom(r))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "remove override failed")
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "no override for that user")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": user})
	}
}
