package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wolfman30/healthvoice-triage/internal/accounts"
)

func issuer(t *testing.T, secret string) *accounts.TokenIssuer {
	t.Helper()
	iss, err := accounts.NewTokenIssuer(secret, time.Hour)
	if err != nil {
		t.Fatalf("token issuer: %v", err)
	}
	return iss
}

func token(t *testing.T, iss *accounts.TokenIssuer, role accounts.Role) string {
	t.Helper()
	tok, _, err := iss.Issue(&accounts.User{ID: "u1", Name: "John Doe", Role: role})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return tok
}

func TestAuthenticate(t *testing.T) {
	iss := issuer(t, "secret")

	tests := []struct {
		name   string
		header string
		query  string
		ws     bool
		want   int
	}{
		{"missing header", "", "", false, http.StatusUnauthorized},
		{"wrong secret", "Bearer " + token(t, issuer(t, "wrong"), accounts.RolePatient), "", false, http.StatusUnauthorized},
		{"valid", "Bearer " + token(t, iss, accounts.RolePatient), "", false, http.StatusOK},
		{"websocket query token", "", token(t, iss, accounts.RoleDoctor), true, http.StatusOK},
		{"query token ignored for plain requests", "", token(t, iss, accounts.RoleDoctor), false, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/sessions"
			if tt.query != "" {
				target += "?access_token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.ws {
				req.Header.Set("Upgrade", "websocket")
			}
			rec := httptest.NewRecorder()
			Authenticate(iss)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if _, ok := accounts.IdentityFromContext(r.Context()); !ok {
					t.Fatalf("expected identity in context")
				}
			})).ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestAuthenticateWithoutParser(t *testing.T) {
	rec := httptest.NewRecorder()
	Authenticate(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	iss := issuer(t, "secret")
	chain := func(role accounts.Role) int {
		req := httptest.NewRequest(http.MethodGet, "/doctor/queue", nil)
		req.Header.Set("Authorization", "Bearer "+token(t, iss, role))
		rec := httptest.NewRecorder()
		Authenticate(iss)(RequireRole(accounts.RoleDoctor, accounts.RoleAdmin)(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
		)).ServeHTTP(rec, req)
		return rec.Code
	}
	if got := chain(accounts.RoleDoctor); got != http.StatusOK {
		t.Fatalf("doctor: expected 200, got %d", got)
	}
	if got := chain(accounts.RoleAdmin); got != http.StatusOK {
		t.Fatalf("admin: expected 200, got %d", got)
	}
	if got := chain(accounts.RolePatient); got != http.StatusForbidden {
		t.Fatalf("patient: expected 403, got %d", got)
	}

	rec := httptest.NewRecorder()
	RequireRole(accounts.RoleDoctor)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no identity: expected 401, got %d", rec.Code)
	}
}
