package clinic

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/wolfman30/healthvoice-triage/internal/appointments"
	"github.com/wolfman30/healthvoice-triage/pkg/logging"
)

// Handler exposes the doctor dashboard over HTTP.
type Handler struct {
	ctrl     *Controller
	upgrader websocket.Upgrader
	logger   *logging.Logger
}

// NewHandler creates the doctor dashboard handler. allowedOrigins limits
// websocket upgrades; empty allows any origin.
func NewHandler(ctrl *Controller, allowedOrigins []string, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		ctrl:   ctrl,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// Routes returns the doctor routes. Callers mount them behind auth.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/queue", h.GetQueue)
	r.Post("/queue/refresh", h.RefreshQueue)
	r.Post("/queue/next", h.CallNext)
	r.Get("/queue/stream", h.StreamQueue)
	r.Post("/appointments/{appointmentID}/start", h.StartConsultation)
	r.Post("/consultation/complete", h.CompleteConsultation)
	r.Post("/patients", h.AddPatient)
	r.Get("/records", h.SearchRecords)
	return r
}

// GetQueue returns the cached queue.
// GET /doctor/queue
func (h *Handler) GetQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Queue())
}

// RefreshQueue reloads the queue from the store.
// POST /doctor/queue/refresh
func (h *Handler) RefreshQueue(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Refresh(r.Context()); err != nil {
		h.logger.Error("queue refresh failed", "error", err)
		writeError(w, http.StatusBadGateway, "could not refresh queue")
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.Queue())
}

// CallNext opens a consultation with the next waiting patient.
// POST /doctor/queue/next
func (h *Handler) CallNext(w http.ResponseWriter, r *http.Request) {
	appt, err := h.ctrl.CallNextPatient(r.Context())
	if err != nil {
		h.writeControllerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// StartConsultation opens or resumes a specific appointment.
// POST /doctor/appointments/{appointmentID}/start
func (h *Handler) StartConsultation(w http.ResponseWriter, r *http.Request) {
	appt, err := h.ctrl.StartConsultation(r.Context(), chi.URLParam(r, "appointmentID"))
	if err != nil {
		h.writeControllerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

type completeRequest struct {
	Notes string `json:"notes"`
}

// CompleteConsultation closes the open consultation.
// POST /doctor/consultation/complete
func (h *Handler) CompleteConsultation(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	appt, err := h.ctrl.CompleteConsultation(r.Context(), req.Notes)
	if err != nil {
		h.writeControllerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

type addPatientRequest struct {
	Name     string `json:"name"`
	Symptoms string `json:"symptoms"`
}

// AddPatient records a walk-in.
// POST /doctor/patients
func (h *Handler) AddPatient(w http.ResponseWriter, r *http.Request) {
	var req addPatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	appt, err := h.ctrl.AddPatient(r.Context(), req.Name, req.Symptoms)
	if err != nil {
		h.writeControllerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

// SearchRecords filters the cached appointments.
// GET /doctor/records?q=
func (h *Handler) SearchRecords(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.SearchRecords(r.URL.Query().Get("q")))
}

func (h *Handler) writeControllerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrQueueEmpty):
		writeError(w, http.StatusNotFound, "queue empty")
	case errors.Is(err, appointments.ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment not found")
	case errors.Is(err, ErrConsultationInProgress):
		writeError(w, http.StatusConflict, "another consultation is in progress")
	case errors.Is(err, appointments.ErrConflict):
		writeError(w, http.StatusConflict, "appointment changed, queue refreshed")
	case errors.Is(err, ErrNoActiveConsultation):
		writeError(w, http.StatusConflict, "no active consultation")
	case errors.Is(err, appointments.ErrInvalidTransition):
		writeError(w, http.StatusUnprocessableEntity, "appointment cannot move to that status")
	case errors.Is(err, ErrPatientNameRequired), errors.Is(err, appointments.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("doctor action failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
