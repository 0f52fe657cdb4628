package accounts

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/healthvoice-triage/pkg/logging"
)

// SessionEnder closes every triage session a user holds. Called on logout.
type SessionEnder interface {
	EndForUser(userID string) int
}

// Handler serves signup, login and logout.
type Handler struct {
	store    Store
	tokens   *TokenIssuer
	sessions SessionEnder
	logger   *logging.Logger
}

func NewHandler(store Store, tokens *TokenIssuer, sessions SessionEnder, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, tokens: tokens, sessions: sessions, logger: logger}
}

// PublicRoutes are reachable without a token.
func (h *Handler) PublicRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/signup", h.Signup)
	r.Post("/login", h.Login)
	return r
}

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

// Signup registers an account and logs it in.
// POST /auth/signup
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, err := h.store.Signup(r.Context(), req)
	switch {
	case errors.Is(err, ErrDuplicateAccount):
		writeError(w, http.StatusConflict, ErrDuplicateAccount.Error())
		return
	case errors.Is(err, ErrInvalidSignup):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Error("signup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.respondWithToken(w, http.StatusCreated, user)
}

// Login exchanges credentials for a token.
// POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	user, err := h.store.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Error("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	h.respondWithToken(w, http.StatusOK, user)
}

// Logout ends the caller's open triage sessions. Tokens are stateless and
// simply expire.
// POST /auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	who, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	ended := 0
	if h.sessions != nil {
		ended = h.sessions.EndForUser(who.UserID)
	}
	h.logger.Info("user logged out", "user_id", who.UserID, "sessions_ended", ended)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondWithToken(w http.ResponseWriter, status int, user *User) {
	token, expires, err := h.tokens.Issue(user)
	if err != nil {
		h.logger.Error("token issue failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, status, AuthResponse{Token: token, ExpiresAt: expires, User: user})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
