package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/milhas/loyalty-engine/loyalty"
)

// Principal is the authenticated caller.
type Principal struct {
	Email string
	Role  loyalty.Role
}

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the caller stored by Middleware.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// Middleware rejects requests without a valid bearer token.
func (m *TokenManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			deny(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := m.Verify(strings.TrimSpace(raw))
		if err != nil {
			deny(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := WithPrincipal(r.Context(), Principal{Email: claims.Email(), Role: claims.Role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole allows only principals with the given role.
func RequireRole(role loyalty.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				deny(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			if p.Role != role {
				deny(w, http.StatusForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func deny(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
