package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	CORSAllowedOrigins []string
	RateLimitRPS       int
	RateLimitBurst     int

	// Storage
	DatabaseURL      string
	AppointmentStore string // memory | postgres | redis
	AccountStore     string // memory | postgres
	RedisAddr        string
	RedisPassword    string
	RedisTLS         bool

	// Inference Service
	GeminiAPIKey       string
	GeminiModelID      string
	BedrockModelID     string
	BedrockEndpointURL string
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	InferenceTimeout   time.Duration
	UseStubInference   bool

	// Clinic queue
	DefaultDoctorID            string
	FilterAppointmentsByDoctor bool
	QueuePollInterval          time.Duration
	ClinicTimezone             string

	// Sessions & accounts
	SessionIdleTTL   time.Duration
	JWTSecret        string
	TokenTTL         time.Duration
	SeedDemoAccounts bool

	// SendGrid Email Configuration
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	// EmailProvider selects the booking mailer: sendgrid, ses or empty
	// to use SendGrid when a key is present.
	EmailProvider       string
	SESFromEmail        string
	SESFromName         string
	SESConfigurationSet string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitRPS:       getEnvAsInt("RATE_LIMIT_RPS", 20),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 40),

		DatabaseURL:      getEnv("DATABASE_URL", ""),
		AppointmentStore: strings.ToLower(strings.TrimSpace(getEnv("APPOINTMENT_STORE", "memory"))),
		AccountStore:     strings.ToLower(strings.TrimSpace(getEnv("ACCOUNT_STORE", "memory"))),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisTLS:         getEnvAsBool("REDIS_TLS", false),

		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:      getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		BedrockModelID:     getEnv("BEDROCK_MODEL_ID", ""),
		BedrockEndpointURL: getEnv("BEDROCK_ENDPOINT_URL", ""),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		InferenceTimeout:   getEnvAsDuration("INFERENCE_TIMEOUT", 45*time.Second),
		UseStubInference:   getEnvAsBool("USE_STUB_INFERENCE", false),

		DefaultDoctorID:            getEnv("DEFAULT_DOCTOR_ID", "d1"),
		FilterAppointmentsByDoctor: getEnvAsBool("FILTER_APPOINTMENTS_BY_DOCTOR", false),
		QueuePollInterval:          getEnvAsDuration("QUEUE_POLL_INTERVAL", 5*time.Second),
		ClinicTimezone:             getEnv("CLINIC_TIMEZONE", "UTC"),

		SessionIdleTTL:   getEnvAsDuration("SESSION_IDLE_TTL", time.Hour),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		TokenTTL:         getEnvAsDuration("TOKEN_TTL", 12*time.Hour),
		SeedDemoAccounts: getEnvAsBool("SEED_DEMO_ACCOUNTS", false),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "HealthVoice"),

		EmailProvider:       strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", ""))),
		SESFromEmail:        getEnv("SES_FROM_EMAIL", ""),
		SESFromName:         getEnv("SES_FROM_NAME", "HealthVoice"),
		SESConfigurationSet: getEnv("SES_CONFIGURATION_SET", ""),
	}
}

// Location resolves ClinicTimezone, falling back to UTC for unknown zones.
func (c *Config) Location() *time.Location {
	if c == nil || strings.TrimSpace(c.ClinicTimezone) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
