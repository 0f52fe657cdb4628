package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/healthvoice-triage/internal/accounts"
	"github.com/wolfman30/healthvoice-triage/internal/clinic"
	httpmiddleware "github.com/wolfman30/healthvoice-triage/internal/http/middleware"
	"github.com/wolfman30/healthvoice-triage/internal/triage"
	"github.com/wolfman30/healthvoice-triage/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	AuthHandler        *accounts.Handler
	Tokens             httpmiddleware.TokenParser
	TriageHandler      *triage.Handler
	ClinicHandler      *clinic.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	if cfg.RateLimitRPS > 0 {
		r.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.AuthHandler != nil {
			public.Post("/auth/signup", cfg.AuthHandler.Signup)
			public.Post("/auth/login", cfg.AuthHandler.Login)
		}
	})

	// Authenticated endpoints
	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.Authenticate(cfg.Tokens))

		if cfg.AuthHandler != nil {
			private.Post("/auth/logout", cfg.AuthHandler.Logout)
		}
		if cfg.TriageHandler != nil {
			private.With(httpmiddleware.RequireRole(accounts.RolePatient)).
				Mount("/sessions", cfg.TriageHandler.Routes())
		}
		if cfg.ClinicHandler != nil {
			private.With(httpmiddleware.RequireRole(accounts.RoleDoctor, accounts.RoleAdmin)).
				Mount("/doctor", cfg.ClinicHandler.Routes())
		}
	})

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
