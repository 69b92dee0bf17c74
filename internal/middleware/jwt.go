package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const bearerPrefix = "Bearer "

// AuthenticatorOptions configures bearer-token authentication.
type AuthenticatorOptions struct {
	// Secret is the HMAC signing key. Required.
	Secret []byte
	// Issuer and Audience are enforced when non-empty.
	Issuer   string
	Audience string

	// GroupsClaimField names the claim carrying group identifiers, default
	// "groups". GroupsClaimPath selects a field inside object-shaped
	// entries.
	GroupsClaimField string
	GroupsClaimPath  string

	Logger *slog.Logger
}

// Authenticator validates bearer tokens and attaches the resulting principal
// to the request context. Requests without credentials pass through
// anonymously; role guards downstream decide what anonymous callers may do.
type Authenticator struct {
	secret      []byte
	parser      *jwt.Parser
	groupsField string
	groupsPath  string
	logger      *slog.Logger
}

func NewAuthenticator(opts AuthenticatorOptions) (*Authenticator, error) {
	if len(opts.Secret) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	groupsField := opts.GroupsClaimField
	if groupsField == "" {
		groupsField = "groups"
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}
	if opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(opts.Audience))
	}

	return &Authenticator{
		secret:      opts.Secret,
		parser:      jwt.NewParser(parserOpts...),
		groupsField: groupsField,
		groupsPath:  opts.GroupsClaimPath,
		logger:      logger.With("component", "authn"),
	}, nil
}

// Middleware authenticates the request. Invalid credentials are rejected
// with 401; absent credentials continue anonymously.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		if !strings.HasPrefix(header, bearerPrefix) {
			http.Error(w, "unsupported authorization scheme", http.StatusUnauthorized)
			return
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
		if tokenString == "" {
			http.Error(w, "empty bearer token", http.StatusUnauthorized)
			return
		}

		principal, err := a.authenticate(tokenString)
		if err != nil {
			a.logger.Info("token rejected", "path", r.URL.Path, "error", err)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

func (a *Authenticator) authenticate(tokenString string) (*Principal, error) {
	claims := jwt.MapClaims{}
	_, err := a.parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}

	name := extractClaimString(claims, "preferred_username")
	if name == "" {
		name = extractClaimString(claims, "sub")
	}
	if name == "" {
		return nil, errors.New("token carries no usable principal name")
	}

	principal := &Principal{
		Name:          name,
		Authenticated: true,
	}

	// A malformed groups claim must not fail authentication; the
	// enrichment stage logs it and proceeds without elevation.
	groups, err := ExtractGroups(claims, a.groupsField, a.groupsPath)
	if err != nil {
		principal.GroupsErr = err
	} else {
		principal.Groups = groups
	}
	return principal, nil
}
