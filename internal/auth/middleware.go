// Package auth resolves the calling user from a bearer token. Quotes do
// not require authentication; when a valid token is present its subject
// is recorded as the quote author.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/valeo-erp/pricing-service/internal/common"
)

var errNoToken = errors.New("auth: token missing")

// Middleware wires caller identity into HTTP handlers.
type Middleware struct {
	Secret    []byte
	Algorithm jwa.SignatureAlgorithm
}

// New builds a Middleware verifying HS256 tokens with the given secret.
// An empty secret disables token parsing entirely.
func New(secret string) Middleware {
	return Middleware{Secret: []byte(secret), Algorithm: jwa.HS256}
}

// Identify attaches the token subject to the request context when a valid
// token is present. Requests without a token pass through unchanged.
func (m Middleware) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.resolve(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Require rejects requests that do not carry a valid token.
func (m Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.resolve(r)
		if err != nil {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m Middleware) resolve(r *http.Request) (context.Context, error) {
	if len(m.Secret) == 0 {
		return r.Context(), errNoToken
	}
	token := extractToken(r)
	if token == "" {
		return r.Context(), errNoToken
	}
	parsed, err := jwt.ParseString(token, jwt.WithKey(m.Algorithm, m.Secret))
	if err != nil {
		return r.Context(), err
	}
	subject := strings.TrimSpace(parsed.Subject())
	if subject == "" {
		return r.Context(), errors.New("auth: token has no subject")
	}
	return common.WithCallerID(r.Context(), subject), nil
}

func extractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
