package triage

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/healthvoice-triage/internal/accounts"
	"github.com/wolfman30/healthvoice-triage/internal/conversation"
	"github.com/wolfman30/healthvoice-triage/pkg/logging"
)

// maxAudioBytes caps a decoded voice message.
const maxAudioBytes = 10 << 20

// Handler exposes the patient triage flow over HTTP.
type Handler struct {
	registry *Registry
	logger   *logging.Logger
}

func NewHandler(registry *Registry, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{registry: registry, logger: logger}
}

// Routes returns the session routes. Callers mount them behind auth.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.StartSession)
	r.Route("/{sessionID}", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Delete("/", h.EndSession)
		r.Post("/messages", h.SubmitMessage)
		r.Post("/booking", h.Book)
	})
	return r
}

type startSessionRequest struct {
	Language string `json:"language"`
}

// StartSession opens a session with the greeting in the chosen language.
// POST /sessions
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	who, ok := accounts.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req startSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	lang, err := conversation.ParseLanguage(req.Language)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctrl := h.registry.Start(who.UserID, lang)
	writeJSON(w, http.StatusCreated, ctrl.State())
}

// GetSession returns the session state.
// GET /sessions/{sessionID}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ctrl.State())
}

// EndSession discards the session.
// DELETE /sessions/{sessionID}
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	who, _ := accounts.IdentityFromContext(r.Context())
	if who == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.registry.End(chi.URLParam(r, "sessionID"), who.UserID); err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type submitMessageRequest struct {
	Text          string `json:"text"`
	AudioBase64   string `json:"audio_base64"`
	AudioMIMEType string `json:"audio_mime_type"`
}

// SubmitMessage sends one patient turn and returns both recorded messages.
// POST /sessions/{sessionID}/messages
func (h *Handler) SubmitMessage(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	var req submitMessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAudioBytes*2)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	var audio []byte
	if encoded := strings.TrimSpace(req.AudioBase64); encoded != "" {
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			writeError(w, http.StatusBadRequest, "audio_base64 is not valid base64")
			return
		}
		if len(decoded) > maxAudioBytes {
			writeError(w, http.StatusRequestEntityTooLarge, "audio too large")
			return
		}
		audio = decoded
	}

	result, err := ctrl.SubmitInput(r.Context(), Input{
		Audio:         audio,
		AudioMIMEType: req.AudioMIMEType,
		Text:          req.Text,
	})
	switch {
	case errors.Is(err, ErrInputMissing):
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, ErrSubmissionInFlight):
		writeError(w, http.StatusConflict, "a message is already being processed")
	case errors.Is(err, ErrNoActiveSession):
		writeError(w, http.StatusGone, "session ended")
	case err != nil:
		h.logger.Error("submit failed", "session_id", ctrl.SessionID(), "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

// Book turns the conversation into an appointment.
// POST /sessions/{sessionID}/booking
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	who, _ := accounts.IdentityFromContext(r.Context())
	appt, err := ctrl.BookAppointment(r.Context(), who)
	if err != nil {
		writeError(w, http.StatusBadGateway, "could not book appointment")
		return
	}
	if appt == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

func (h *Handler) controller(w http.ResponseWriter, r *http.Request) (*Controller, bool) {
	who, ok := accounts.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	ctrl, err := h.registry.Get(chi.URLParam(r, "sessionID"), who.UserID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return ctrl, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
