package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rolegate/rolegate/internal/enrich"
	"github.com/rolegate/rolegate/internal/middleware"
	"github.com/rolegate/rolegate/internal/overrides"
	"github.com/rolegate/rolegate/internal/pattern"
	"github.com/rolegate/rolegate/internal/roles"
)

var testSecret = []byte("router-test-secret")

type testEnv struct {
	router http.Handler
	store  roles.Store
}

func newTestEnv(t *testing.T, tailor ...func(*RouterOptions)) *testEnv {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	store, err := roles.NewFileStore(filepath.Join(dir, "roles.json"), roles.StoreOptions{})
	require.NoError(t, err)
	require.NoError(t, store.AddToRole(ctx, "alice", roles.RoleAdmin, roles.SeedActor))

	ovr, err := overrides.NewStore(filepath.Join(dir, "overrides.json"), nil)
	require.NoError(t, err)

	pipeline := enrich.New(enrich.Options{
		Roles:                store,
		Overrides:            ovr,
		AdminPatterns:        pattern.NewSet([]string{"svc-*"}),
		AutoAssignUser:       true,
		ImplicitAdminEnabled: true,
	})

	authn, err := middleware.NewAuthenticator(middleware.AuthenticatorOptions{
		Secret: testSecret,
		Issuer: "rolegate-test",
	})
	require.NoError(t, err)

	opts := RouterOptions{
		Roles:         store,
		Overrides:     ovr,
		Pipeline:      pipeline,
		Authenticator: authn,
	}
	for _, fn := range tailor {
		fn(&opts)
	}
	return &testEnv{router: NewRouter(opts), store: store}
}

func token(t *testing.T, name string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "rolegate-test",
		"sub": name,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

func (e *testEnv) request(t *testing.T, method, path, as, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if as != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, as))
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestRouter_HealthAndMetricsArePublic(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusOK, env.request(t, http.MethodGet, "/healthz", "", "").Code)
	assert.Equal(t, http.StatusOK, env.request(t, http.MethodGet, "/metrics", "", "").Code)
}

func TestRouter_AdminAPIAccessControl(t *testing.T) {
	env := newTestEnv(t)

	t.Run("anonymous gets 401", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, env.request(t, http.MethodGet, "/api/v1/roles", "", "").Code)
	})

	t.Run("plain user gets 403", func(t *testing.T) {
		// bob holds no grants; auto-assignment gives him only User.
		assert.Equal(t, http.StatusForbidden, env.request(t, http.MethodGet, "/api/v1/roles", "bob", "").Code)
	})

	t.Run("admin passes", func(t *testing.T) {
		rr := env.request(t, http.MethodGet, "/api/v1/roles", "alice", "")
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("pattern-elevated service account passes", func(t *testing.T) {
		rr := env.request(t, http.MethodGet, "/api/v1/roles", "svc-backup", "")
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestRouter_WhoAmI(t *testing.T) {
	env := newTestEnv(t)

	t.Run("requires authentication", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, env.request(t, http.MethodGet, "/api/v1/whoami", "", "").Code)
	})

	t.Run("reflects enrichment", func(t *testing.T) {
		rr := env.request(t, http.MethodGet, "/api/v1/whoami", "bob@EXAMPLE.COM", "")
		require.Equal(t, http.StatusOK, rr.Code)

		body := decode(t, rr)
		assert.Equal(t, "bob", body["account"])
		assert.Equal(t, []any{"User"}, body["roles"])
	})
}

func TestRouter_GrantLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rr := env.request(t, http.MethodPost, "/api/v1/users/carol/roles/User", "alice", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"User"}, env.store.GetRoles("carol"))

	rr = env.request(t, http.MethodDelete, "/api/v1/users/carol/roles/User", "alice", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, env.store.GetRoles("carol"))

	rr = env.request(t, http.MethodGet, "/api/v1/users/carol/roles", "alice", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, []any{"User"}, body["deleted"])

	rr = env.request(t, http.MethodPost, "/api/v1/users/carol/roles/User/restore", "alice", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"User"}, env.store.GetRoles("carol"))

	t.Run("revoking a missing grant is 404", func(t *testing.T) {
		rr := env.request(t, http.MethodDelete, "/api/v1/users/carol/roles/Admin", "alice", "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("restoring an active grant is 404", func(t *testing.T) {
		rr := env.request(t, http.MethodPost, "/api/v1/users/carol/roles/User/restore", "alice", "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("remove user revokes everything", func(t *testing.T) {
		rr := env.request(t, http.MethodDelete, "/api/v1/users/carol", "alice", "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, env.store.GetRoles("carol"))
	})
}

func TestRouter_Purge(t *testing.T) {
	env := newTestEnv(t)

	t.Run("rejects bad retention", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, env.request(t, http.MethodPost, "/api/v1/roles/purge?days=0", "alice", "").Code)
		assert.Equal(t, http.StatusBadRequest, env.request(t, http.MethodPost, "/api/v1/roles/purge?days=x", "alice", "").Code)
	})

	t.Run("fresh deletions survive the default window", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, env.store.AddToRole(ctx, "dave", "User", "root"))
		_, err := env.store.RemoveFromRole(ctx, "dave", "User", "root")
		require.NoError(t, err)

		rr := env.request(t, http.MethodPost, "/api/v1/roles/purge", "alice", "")
		require.Equal(t, http.StatusOK, rr.Code)
		body := decode(t, rr)
		assert.Equal(t, float64(0), body["purged"])

		deleted, err := env.store.GetDeletedRoles(ctx, "dave")
		require.NoError(t, err)
		assert.Equal(t, []string{"User"}, deleted)
	})

	t.Run("configured retention is the default window", func(t *testing.T) {
		env := newTestEnv(t, func(o *RouterOptions) { o.PurgeRetentionDays = 90 })

		rr := env.request(t, http.MethodPost, "/api/v1/roles/purge", "alice", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, float64(90), decode(t, rr)["days"])

		// An explicit ?days still overrides the configured window.
		rr = env.request(t, http.MethodPost, "/api/v1/roles/purge?days=7", "alice", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, float64(7), decode(t, rr)["days"])
	})
}

func TestRouter_Overrides(t *testing.T) {
	env := newTestEnv(t)

	rr := env.request(t, http.MethodPut, "/api/v1/overrides/bob", "alice",
		`{"extraRoles":["Auditor"],"disabled":false}`)
	require.Equal(t, http.StatusOK, rr.Code)

	// The override takes effect on bob's next request.
	rr = env.request(t, http.MethodGet, "/api/v1/whoami", "bob", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.ElementsMatch(t, []any{"Auditor", "User"}, decode(t, rr)["roles"])

	// Disable bob entirely.
	rr = env.request(t, http.MethodPut, "/api/v1/overrides/bob", "alice",
		`{"disabled":true}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.request(t, http.MethodGet, "/api/v1/whoami", "bob", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, true, body["disabled"])
	assert.Empty(t, body["roles"])

	t.Run("list and remove", func(t *testing.T) {
		rr := env.request(t, http.MethodGet, "/api/v1/overrides", "alice", "")
		require.Equal(t, http.StatusOK, rr.Code)

		rr = env.request(t, http.MethodDelete, "/api/v1/overrides/bob", "alice", "")
		assert.Equal(t, http.StatusOK, rr.Code)

		rr = env.request(t, http.MethodDelete, "/api/v1/overrides/bob", "alice", "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		rr := env.request(t, http.MethodPut, "/api/v1/overrides/bob", "alice", `{broken`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
