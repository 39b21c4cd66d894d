package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/jirayus/identity-api/internal/token"
)

type contextKey struct{}

var claimsKey = contextKey{}

// RequireAuth validates the bearer token and stores its claims on the request
// context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			h.respondError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			h.respondError(w, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		claims, err := h.codec.Verify(parts[1])
		if err != nil {
			h.respondError(w, http.StatusUnauthorized, "invalid access token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFromContext returns the access token claims stored by RequireAuth.
func ClaimsFromContext(ctx context.Context) (*token.AccessClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*token.AccessClaims)
	return claims, ok
}
