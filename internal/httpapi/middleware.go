// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Finman Contributors

package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/finman/finman/internal/account"
	"github.com/finman/finman/internal/token"
)

// AuthTokenValidator validates bearer tokens presented by clients.
// *token.Service satisfies it.
type AuthTokenValidator interface {
	ValidateAuth(tokenString string) (*token.Claims, error)
}

type contextKey struct{ name string }

var identityKey = contextKey{name: "caller-identity"}

// IdentityFrom returns the authenticated caller attached by RequireAuth.
func IdentityFrom(ctx context.Context) (account.CallerIdentity, bool) {
	id, ok := ctx.Value(identityKey).(account.CallerIdentity)
	return id, ok
}

func withIdentity(ctx context.Context, id account.CallerIdentity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// RequireAuth rejects requests without a valid bearer token and attaches the
// caller's identity to the request context.
func RequireAuth(tokens AuthTokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenString == "" {
				writeErrorCode(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
				return
			}

			claims, err := tokens.ValidateAuth(tokenString)
			if err != nil {
				writeErrorCode(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
				return
			}

			identity, err := account.IdentityFromClaims(claims)
			if err != nil {
				writeErrorCode(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token subject")
				return
			}

			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
		})
	}
}
