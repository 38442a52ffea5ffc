// Package server hosts the textmill HTTP API: output creation and
// retrieval, account auth, and Stripe billing endpoints.
package server

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvProduction is the TM_ENV value under which tier gating is strictly
// enforced. Any other value treats every request as privileged.
const EnvProduction = "production"

// Config holds all configuration for the textmill service.
type Config struct {
	DataDir             string
	BindAddress         string
	Port                int
	Env                 string // "production" or anything else (dev, staging, test)
	AdminKey            string
	BaseURL             string
	StripeAPIKey        string
	StripeWebhookSecret string
	StripePriceID       string
	PublicMetrics       bool
	LogLevel            string
	LogFormat           string
}

// OutputsDir returns the directory where the output store database lives.
func (c *Config) OutputsDir() string {
	return filepath.Join(c.DataDir, "outputs")
}

// UsersDir returns the directory for the user registry database.
func (c *Config) UsersDir() string {
	return filepath.Join(c.DataDir, "users")
}

// SessionsDir returns the directory for the login session database.
func (c *Config) SessionsDir() string {
	return filepath.Join(c.DataDir, "sessions")
}

// Production reports whether tier gating is enforced for unprivileged
// requests.
func (c *Config) Production() bool {
	return c.Env == EnvProduction
}

// LoadConfig loads service configuration from environment variables.
// A .env file is loaded if present but not required.
func LoadConfig() (*Config, error) {
	// Best-effort .env loading (not required)
	_ = godotenv.Load()

	port, err := envOrDefaultInt("TM_PORT", 8080)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:             envOrDefault("TM_DATA_DIR", "/data"),
		BindAddress:         envOrDefault("TM_BIND_ADDRESS", "0.0.0.0"),
		Port:                port,
		Env:                 strings.ToLower(envOrDefault("TM_ENV", EnvProduction)),
		AdminKey:            strings.TrimSpace(os.Getenv("TM_ADMIN_KEY")),
		BaseURL:             strings.TrimSpace(os.Getenv("TM_BASE_URL")),
		StripeAPIKey:        strings.TrimSpace(os.Getenv("STRIPE_API_KEY")),
		StripeWebhookSecret: strings.TrimSpace(os.Getenv("STRIPE_WEBHOOK_SECRET")),
		StripePriceID:       strings.TrimSpace(os.Getenv("STRIPE_PRICE_ID")),
		PublicMetrics:       envOrDefaultBool("TM_PUBLIC_METRICS", false),
		LogLevel:            envOrDefault("TM_LOG_LEVEL", "info"),
		LogFormat:           envOrDefault("TM_LOG_FORMAT", "auto"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.BaseURL == "" {
		missing = append(missing, "TM_BASE_URL")
	}
	if c.Production() && c.StripeWebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("TM_PORT must be between 1 and 65535, got %d", c.Port)
	}

	parsedBaseURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("TM_BASE_URL must be a valid URL: %w", err)
	}
	if parsedBaseURL.Scheme != "http" && parsedBaseURL.Scheme != "https" {
		return fmt.Errorf("TM_BASE_URL must use http or https scheme")
	}
	if parsedBaseURL.Host == "" {
		return fmt.Errorf("TM_BASE_URL must include a host")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) (int, error) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
		}
		return n, nil
	}
	return fallback, nil
}

func envOrDefaultBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
