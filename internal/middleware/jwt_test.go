package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

// capturePrincipal runs a request through the authenticator and returns the
// principal the downstream handler observed.
func capturePrincipal(t *testing.T, a *Authenticator, authorization string) (*Principal, *httptest.ResponseRecorder) {
	t.Helper()

	var got *Principal
	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return got, rr
}

func newTestAuthenticator(t *testing.T, opts AuthenticatorOptions) *Authenticator {
	t.Helper()
	if opts.Secret == nil {
		opts.Secret = testSecret
	}
	a, err := NewAuthenticator(opts)
	require.NoError(t, err)
	return a
}

func TestAuthenticator_ValidToken(t *testing.T) {
	a := newTestAuthenticator(t, AuthenticatorOptions{Issuer: "rolegate"})
	token := signToken(t, testSecret, jwt.MapClaims{
		"iss":                "rolegate",
		"sub":                "alice@EXAMPLE.COM",
		"preferred_username": `EXAMPLE\alice`,
		"groups":             []any{"S-1-5-32-544", "ops"},
	})

	p, rr := capturePrincipal(t, a, bearerPrefix+token)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, p)
	assert.True(t, p.Authenticated)
	assert.Equal(t, `EXAMPLE\alice`, p.Name, "preferred_username wins over sub")
	assert.Equal(t, []string{"S-1-5-32-544", "ops"}, p.Groups)
	assert.NoError(t, p.GroupsErr)
}

func TestAuthenticator_SubjectFallback(t *testing.T) {
	a := newTestAuthenticator(t, AuthenticatorOptions{})
	token := signToken(t, testSecret, jwt.MapClaims{"sub": "alice"})

	p, _ := capturePrincipal(t, a, bearerPrefix+token)
	require.NotNil(t, p)
	assert.Equal(t, "alice", p.Name)
}

func TestAuthenticator_NoCredentialsPassesThrough(t *testing.T) {
	a := newTestAuthenticator(t, AuthenticatorOptions{})

	p, rr := capturePrincipal(t, a, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, p, "anonymous request carries no principal")
}

func TestAuthenticator_Rejections(t *testing.T) {
	a := newTestAuthenticator(t, AuthenticatorOptions{Issuer: "rolegate"})

	tests := []struct {
		name          string
		authorization string
	}{
		{"wrong signature", bearerPrefix + signToken(t, []byte("other-secret"), jwt.MapClaims{"iss": "rolegate", "sub": "alice"})},
		{"wrong issuer", bearerPrefix + signToken(t, testSecret, jwt.MapClaims{"iss": "someone-else", "sub": "alice"})},
		{"expired", bearerPrefix + signToken(t, testSecret, jwt.MapClaims{"iss": "rolegate", "sub": "alice", "exp": time.Now().Add(-time.Hour).Unix()})},
		{"missing expiry", bearerPrefix + mustSignNoExp(t, jwt.MapClaims{"iss": "rolegate", "sub": "alice"})},
		{"no subject", bearerPrefix + signToken(t, testSecret, jwt.MapClaims{"iss": "rolegate"})},
		{"not a bearer scheme", "Basic YWxpY2U6cHc="},
		{"empty bearer", bearerPrefix + "  "},
		{"garbage", bearerPrefix + "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, rr := capturePrincipal(t, a, tt.authorization)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Nil(t, p)
		})
	}
}

func mustSignNoExp(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return token
}

func TestAuthenticator_NestedGroups(t *testing.T) {
	a := newTestAuthenticator(t, AuthenticatorOptions{GroupsClaimPath: "id"})
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": "alice",
		"groups": []any{
			map[string]any{"id": "S-1-5-32-544", "type": "builtin"},
			map[string]any{"id": "ops"},
		},
	})

	p, _ := capturePrincipal(t, a, bearerPrefix+token)
	require.NotNil(t, p)
	assert.Equal(t, []string{"S-1-5-32-544", "ops"}, p.Groups)
}

func TestAuthenticator_MalformedGroupsDoNotFailAuth(t *testing.T) {
	a := newTestAuthenticator(t, AuthenticatorOptions{})
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":    "alice",
		"groups": "not-an-array",
	})

	p, rr := capturePrincipal(t, a, bearerPrefix+token)
	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, p)
	assert.True(t, p.Authenticated)
	assert.Error(t, p.GroupsErr, "extraction failure is carried for the enrichment stage to log")
	assert.Empty(t, p.Groups)
}

func TestAuthenticator_RequiresSecret(t *testing.T) {
	_, err := NewAuthenticator(AuthenticatorOptions{})
	assert.Error(t, err)
}
