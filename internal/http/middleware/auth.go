package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/wolfman30/healthvoice-triage/internal/accounts"
)

// TokenParser verifies a bearer token.
type TokenParser interface {
	Parse(token string) (*accounts.Identity, error)
}

// Authenticate requires a valid bearer token and stores the caller's
// identity on the request context. Websocket clients, which cannot set
// headers, may pass the token as the access_token query parameter.
func Authenticate(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if parser == nil {
				writeError(w, http.StatusUnauthorized, "auth disabled")
				return
			}
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}
			id, err := parser.Parse(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(accounts.WithIdentity(r.Context(), id)))
		})
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if r.Header.Get("Upgrade") != "" {
		return strings.TrimSpace(r.URL.Query().Get("access_token"))
	}
	return ""
}

// RequireRole rejects callers whose role is not listed. Must run after
// Authenticate.
func RequireRole(roles ...accounts.Role) func(http.Handler) http.Handler {
	allowed := make(map[accounts.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := accounts.IdentityFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if _, ok := allowed[id.Role]; !ok {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
