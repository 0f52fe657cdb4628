package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wolfman30/healthvoice-triage/internal/accounts"
	"github.com/wolfman30/healthvoice-triage/internal/appointments"
	"github.com/wolfman30/healthvoice-triage/internal/clinic"
	"github.com/wolfman30/healthvoice-triage/internal/conversation"
	"github.com/wolfman30/healthvoice-triage/internal/events"
	"github.com/wolfman30/healthvoice-triage/internal/triage"
	"github.com/wolfman30/healthvoice-triage/pkg/logging"
)

type testStack struct {
	router http.Handler
	ctrl   *clinic.Controller
}

func newTestRouter(t *testing.T) testStack {
	t.Helper()
	logger := logging.Default()

	users := accounts.NewInMemoryStore()
	if err := users.SeedDemo(); err != nil {
		t.Fatalf("seed accounts: %v", err)
	}
	tokens, err := accounts.NewTokenIssuer("router-secret", time.Hour)
	if err != nil {
		t.Fatalf("token issuer: %v", err)
	}

	bus := events.NewBus(logger)
	t.Cleanup(func() { _ = bus.Close() })
	store := appointments.WithEvents(appointments.NewInMemoryRepository(), bus, logger)

	registry := triage.NewRegistry(time.Hour, triage.Deps{
		Inference: conversation.NewStubInferenceClient(),
		Store:     store,
		Logger:    logger,
	})
	ctrl := clinic.NewController(store, appointments.DefaultDoctorID, clinic.Options{Logger: logger})

	cfg := &Config{
		Logger:         logger,
		AuthHandler:    accounts.NewHandler(users, tokens, registry, logger),
		Tokens:         tokens,
		TriageHandler:  triage.NewHandler(registry, logger),
		ClinicHandler:  clinic.NewHandler(ctrl, nil, logger),
		RateLimitRPS:   100,
		RateLimitBurst: 100,
	}
	return testStack{router: New(cfg), ctrl: ctrl}
}

func request(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func login(t *testing.T, h http.Handler, email string) string {
	t.Helper()
	rr := request(t, h, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": "123"})
	if rr.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", email, rr.Code, rr.Body.String())
	}
	var resp accounts.AuthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return resp.Token
}

func TestRouterHealthEndpoint(t *testing.T) {
	stack := newTestRouter(t)
	rr := request(t, stack.router, http.MethodGet, "/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterRoleGates(t *testing.T) {
	stack := newTestRouter(t)
	patientToken := login(t, stack.router, "patient@demo.com")
	doctorToken := login(t, stack.router, "doctor@demo.com")

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"sessions without token", http.MethodPost, "/sessions", "", http.StatusUnauthorized},
		{"doctor queue as patient", http.MethodGet, "/doctor/queue", patientToken, http.StatusForbidden},
		{"sessions as doctor", http.MethodPost, "/sessions", doctorToken, http.StatusForbidden},
		{"doctor queue as doctor", http.MethodGet, "/doctor/queue", doctorToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := request(t, stack.router, tt.method, tt.path, tt.token, nil)
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d (%s)", tt.want, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestRouterPatientToDoctorFlow(t *testing.T) {
	stack := newTestRouter(t)
	h := stack.router
	patientToken := login(t, h, "patient@demo.com")
	doctorToken := login(t, h, "doctor@demo.com")

	rr := request(t, h, http.MethodPost, "/sessions", patientToken, map[string]string{"language": "en"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("start session: %d %s", rr.Code, rr.Body.String())
	}
	var state triage.State
	if err := json.NewDecoder(rr.Body).Decode(&state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	sessionPath := "/sessions/" + state.Session.ID

	rr = request(t, h, http.MethodPost, sessionPath+"/messages", patientToken, map[string]string{"text": "I am Sarah and I have a fever"})
	if rr.Code != http.StatusOK {
		t.Fatalf("submit: %d %s", rr.Code, rr.Body.String())
	}

	rr = request(t, h, http.MethodPost, sessionPath+"/booking", patientToken, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("book: %d %s", rr.Code, rr.Body.String())
	}
	var booked appointments.Appointment
	if err := json.NewDecoder(rr.Body).Decode(&booked); err != nil {
		t.Fatalf("decode appointment: %v", err)
	}
	if booked.PatientName != "Sarah" || booked.SymptomsSummary != "Fever" {
		t.Fatalf("unexpected booking %+v", booked)
	}

	if err := stack.ctrl.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	rr = request(t, h, http.MethodPost, "/doctor/queue/next", doctorToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("call next: %d %s", rr.Code, rr.Body.String())
	}
	rr = request(t, h, http.MethodPost, "/doctor/consultation/complete", doctorToken, map[string]string{"notes": "Paracetamol"})
	if rr.Code != http.StatusOK {
		t.Fatalf("complete: %d %s", rr.Code, rr.Body.String())
	}

	rr = request(t, h, http.MethodPost, "/auth/logout", patientToken, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("logout: %d", rr.Code)
	}
	rr = request(t, h, http.MethodGet, sessionPath, patientToken, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("session should end on logout, got %d", rr.Code)
	}
}
