package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv                string
	Port                  string
	DatabaseURL           string
	EverArtAPIKey         string
	EverArtBaseURL        string
	EverArtModelID        string
	EverArtRequestTimeout time.Duration
	PollMaxAttempts       int
	PollInterval          time.Duration
	AbortOnRemoteFailure  bool
	CORSAllowedOrigins    []string
	MaxRequestBodyBytes   int64
	DocsEnabled           bool
	HTTPReadTimeout       time.Duration
	HTTPWriteTimeout      time.Duration
	HTTPIdleTimeout       time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
// A missing EverArt API key is not an error here: it is reported per request.
func LoadConfig() (*Config, error) {
	appEnv := getEnv("APP_ENV", "development")
	cfg := &Config{
		AppEnv:                appEnv,
		Port:                  getEnv("PORT", "8080"),
		DatabaseURL:           strings.TrimSpace(os.Getenv("DATABASE_URL")),
		EverArtAPIKey:         strings.TrimSpace(os.Getenv("EVERART_API_KEY")),
		EverArtBaseURL:        getEnv("EVERART_BASE_URL", "https://api.everart.ai/v1"),
		EverArtModelID:        getEnv("EVERART_MODEL_ID", "266497667515949056"),
		EverArtRequestTimeout: time.Second * time.Duration(getEnvInt("EVERART_REQUEST_TIMEOUT_SECONDS", 30)),
		PollMaxAttempts:       getEnvInt("GENERATION_POLL_MAX_ATTEMPTS", 30),
		PollInterval:          time.Millisecond * time.Duration(getEnvInt("GENERATION_POLL_INTERVAL_MS", 2000)),
		AbortOnRemoteFailure:  getEnvBool("GENERATION_ABORT_ON_REMOTE_FAILURE", false),
		CORSAllowedOrigins:    splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		MaxRequestBodyBytes:   int64(getEnvInt("MAX_REQUEST_BODY_BYTES", 1<<20)),
		DocsEnabled:           getEnvBool("DOCS_ENABLED", appEnv == "development"),
		HTTPReadTimeout:       time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:      time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:       time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.PollMaxAttempts <= 0 {
		return nil, fmt.Errorf("GENERATION_POLL_MAX_ATTEMPTS must be positive")
	}
	if cfg.PollInterval < 0 {
		return nil, fmt.Errorf("GENERATION_POLL_INTERVAL_MS must not be negative")
	}
	if cfg.EverArtRequestTimeout <= 0 {
		return nil, fmt.Errorf("EVERART_REQUEST_TIMEOUT_SECONDS must be positive")
	}
	if cfg.MaxRequestBodyBytes <= 0 {
		return nil, fmt.Errorf("MAX_REQUEST_BODY_BYTES must be positive")
	}

	// The response of a generation request is written only after the poll
	// loop resolves, so the write deadline must outlast the whole budget.
	if budget := cfg.GenerationBudget() + 10*time.Second; cfg.HTTPWriteTimeout < budget {
		cfg.HTTPWriteTimeout = budget
	}

	return cfg, nil
}

// GenerationBudget is the worst-case time one request can spend submitting
// and polling.
func (c *Config) GenerationBudget() time.Duration {
	perPoll := c.PollInterval + c.EverArtRequestTimeout
	return c.EverArtRequestTimeout + time.Duration(c.PollMaxAttempts)*perPoll
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if item := strings.TrimSpace(part); item != "" {
			out = append(out, item)
		}
	}
	return out
}
