package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/healthvoice-triage/cmd/mainconfig"
	"github.com/wolfman30/healthvoice-triage/internal/accounts"
	"github.com/wolfman30/healthvoice-triage/internal/api/router"
	"github.com/wolfman30/healthvoice-triage/internal/appointments"
	"github.com/wolfman30/healthvoice-triage/internal/clinic"
	appconfig "github.com/wolfman30/healthvoice-triage/internal/config"
	"github.com/wolfman30/healthvoice-triage/internal/conversation"
	"github.com/wolfman30/healthvoice-triage/internal/events"
	"github.com/wolfman30/healthvoice-triage/internal/notify"
	"github.com/wolfman30/healthvoice-triage/internal/observability/metrics"
	"github.com/wolfman30/healthvoice-triage/internal/triage"
	"github.com/wolfman30/healthvoice-triage/pkg/logging"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting healthvoice API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"appointment_store", cfg.AppointmentStore,
		"account_store", cfg.AccountStore,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if strings.TrimSpace(cfg.JWTSecret) == "" {
		logger.Error("JWT_SECRET is required")
		os.Exit(1)
	}
	tokens, err := accounts.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		logger.Error("failed to build token issuer", "error", err)
		os.Exit(1)
	}

	// Storage
	baseStore, closeStore, err := setupAppointmentStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize appointment store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	accountStore, closeAccounts, err := setupAccountStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize account store", "error", err)
		os.Exit(1)
	}
	defer closeAccounts()

	bus := events.NewBus(logger)
	defer func() { _ = bus.Close() }()
	store := appointments.WithEvents(baseStore, bus, logger)

	// Metrics
	metricsHandler, triageMetrics, queueMetrics := setupMetrics()

	// Inference
	inference, closeInference := setupInference(ctx, cfg, logger)
	defer closeInference()

	// Notifications
	notifier := notify.NewBookingNotifier(setupEmail(ctx, cfg, logger), logger)

	// Patient triage sessions
	sessions := triage.NewRegistry(cfg.SessionIdleTTL, triage.Deps{
		Inference:        inference,
		Store:            store,
		Speaker:          triage.NewLogSpeaker(logger),
		Notifier:         notifier,
		Metrics:          triageMetrics,
		Logger:           logger,
		InferenceTimeout: cfg.InferenceTimeout,
	})

	// Doctor dashboard
	dashboard, poller, err := setupDashboard(ctx, cfg, store, bus, queueMetrics, logger)
	if err != nil {
		logger.Error("failed to start doctor dashboard", "error", err)
		os.Exit(1)
	}
	defer poller.Stop()

	// Initialize handlers
	authHandler := accounts.NewHandler(accountStore, tokens, sessions, logger)
	triageHandler := triage.NewHandler(sessions, logger)
	clinicHandler := clinic.NewHandler(dashboard, cfg.CORSAllowedOrigins, logger)

	// Setup router
	r := router.New(&router.Config{
		Logger:             logger,
		AuthHandler:        authHandler,
		Tokens:             tokens,
		TriageHandler:      triageHandler,
		ClinicHandler:      clinicHandler,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       float64(cfg.RateLimitRPS),
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	// Create HTTP server. WriteTimeout must outlast a slow inference call;
	// the queue stream hijacks its connection and is not bound by it.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.InferenceTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	cancel()

	logger.Info("server exited")
}

// setupAppointmentStore picks the queue backend named by APPOINTMENT_STORE.
// The returned close func is always safe to call.
func setupAppointmentStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (appointments.Repository, func(), error) {
	opts := []appointments.Option{
		appointments.WithDefaultDoctor(cfg.DefaultDoctorID),
		appointments.WithDoctorFilter(cfg.FilterAppointmentsByDoctor),
		appointments.WithLocation(cfg.Location()),
	}

	switch cfg.AppointmentStore {
	case "", "memory":
		repo := appointments.NewInMemoryRepository(opts...)
		if cfg.SeedDemoAccounts {
			today := time.Now().In(cfg.Location()).Format(appointments.DateLayout)
			repo.Seed(appointments.DemoAppointments(today, cfg.DefaultDoctorID)...)
		}
		return repo, func() {}, nil
	case "postgres":
		pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
		if pool == nil {
			return nil, nil, fmt.Errorf("postgres appointment store needs a reachable DATABASE_URL")
		}
		return appointments.NewPostgresRepository(pool, opts...), pool.Close, nil
	case "redis":
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return nil, nil, fmt.Errorf("redis appointment store needs REDIS_ADDR")
		}
		client := newRedisClient(cfg)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return appointments.NewRedisRepository(client, opts...), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown APPOINTMENT_STORE %q", cfg.AppointmentStore)
	}
}

func newRedisClient(cfg *appconfig.Config) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		options.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return redis.NewClient(options)
}

// connectPostgresPool returns nil when the URL is empty or the database
// cannot be reached.
func connectPostgresPool(ctx context.Context, url string, logger *logging.Logger) *pgxpool.Pool {
	if strings.TrimSpace(url) == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Error("failed to ping postgres", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

func setupAccountStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (accounts.Store, func(), error) {
	switch cfg.AccountStore {
	case "", "memory":
		store := accounts.NewInMemoryStore()
		if cfg.SeedDemoAccounts {
			if err := store.SeedDemo(); err != nil {
				return nil, nil, fmt.Errorf("seed demo accounts: %w", err)
			}
			logger.Info("seeded demo accounts", "count", len(accounts.DemoAccounts))
		}
		return store, func() {}, nil
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, nil, fmt.Errorf("postgres account store needs DATABASE_URL")
		}
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open accounts db: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ping accounts db: %w", err)
		}
		store := accounts.NewPostgresStore(db)
		if cfg.SeedDemoAccounts {
			if err := store.SeedDemo(ctx); err != nil {
				_ = db.Close()
				return nil, nil, fmt.Errorf("seed demo accounts: %w", err)
			}
		}
		return store, func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown ACCOUNT_STORE %q", cfg.AccountStore)
	}
}

// setupInference prefers Gemini, which understands audio, and falls back to
// Bedrock for text turns when a model id is configured. Without either the
// offline stub answers.
func setupInference(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (conversation.InferenceClient, func()) {
	if cfg.UseStubInference {
		logger.Warn("using stub inference client")
		return conversation.NewStubInferenceClient(), func() {}
	}

	var primary conversation.InferenceClient
	closer := func() {}
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		gemini, err := conversation.NewGeminiInferenceClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("failed to create gemini client", "error", err)
		} else {
			primary = gemini
			closer = func() { _ = gemini.Close() }
		}
	}

	var fallback conversation.InferenceClient
	if strings.TrimSpace(cfg.BedrockModelID) != "" {
		client, err := mainconfig.NewBedrockClient(ctx, cfg)
		if err != nil {
			logger.Error("failed to create bedrock client", "error", err)
		} else {
			fallback = conversation.NewBedrockInferenceClient(client, cfg.BedrockModelID)
		}
	}

	switch {
	case primary != nil && fallback != nil:
		return conversation.NewFallbackInferenceClient(primary, fallback, logger), closer
	case primary != nil:
		return primary, closer
	case fallback != nil:
		return fallback, closer
	default:
		logger.Warn("no inference provider configured; using stub inference client")
		return conversation.NewStubInferenceClient(), closer
	}
}

// setupEmail picks the booking mailer named by EMAIL_PROVIDER. A nil
// sender makes the notifier log confirmations instead.
func setupEmail(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "ses":
		client, err := mainconfig.NewSESClient(ctx, cfg)
		if err != nil {
			logger.Warn("SES client unavailable; booking confirmations are logged only", "error", err)
			return nil
		}
		sender := notify.NewSESSender(client, notify.SESConfig{
			FromEmail:        cfg.SESFromEmail,
			FromName:         cfg.SESFromName,
			ConfigurationSet: cfg.SESConfigurationSet,
		}, logger)
		if sender == nil {
			logger.Warn("SES_FROM_EMAIL not set; booking confirmations are logged only")
			return nil
		}
		logger.Info("booking e-mail via SES", "region", cfg.AWSRegion)
		return sender
	case "", "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if sender == nil {
			logger.Warn("SENDGRID_API_KEY not set; booking confirmations are logged only")
			return nil
		}
		return sender
	default:
		logger.Warn("unknown EMAIL_PROVIDER; booking confirmations are logged only", "provider", cfg.EmailProvider)
		return nil
	}
}

// setupDashboard builds the doctor controller, loads the queue once and
// keeps it fresh from the poll schedule and from appointment events.
func setupDashboard(ctx context.Context, cfg *appconfig.Config, store appointments.Repository, bus *events.Bus, queueMetrics *metrics.QueueMetrics, logger *logging.Logger) (*clinic.Controller, *clinic.Poller, error) {
	dashboard := clinic.NewController(store, cfg.DefaultDoctorID, clinic.Options{
		Metrics: queueMetrics,
		Logger:  logger,
	})
	if err := dashboard.Refresh(ctx); err != nil {
		logger.Warn("initial queue refresh failed", "error", err)
	}
	poller, err := clinic.NewPoller(dashboard, cfg.QueuePollInterval, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("schedule queue refresh: %w", err)
	}
	envs, err := bus.Subscribe(ctx, events.TopicAppointmentCreated, events.TopicAppointmentUpdated)
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe to appointment events: %w", err)
	}
	poller.Start()
	go poller.Watch(ctx, envs)
	return dashboard, poller, nil
}

func setupMetrics() (http.Handler, *metrics.TriageMetrics, *metrics.QueueMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return handler, metrics.NewTriageMetrics(reg), metrics.NewQueueMetrics(reg)
}
