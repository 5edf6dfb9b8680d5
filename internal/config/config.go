// Package config loads all externally supplied settings from the
// environment. Nothing else in the codebase reads os.Getenv directly.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

var ErrSigningSecretRequired = errors.New("EXPORTDESK_SIGNING_SECRET is required")

// Config holds the runtime configuration of the server.
type Config struct {
	ListenAddr   string
	DatabasePath string
	LogPath      string // empty means stderr only

	// SigningSecret keys all HMAC-signed tokens (sessions, claims, magic-link
	// claim follow-ups).
	SigningSecret string

	// FrontendBaseURL is used to build the magic-link URLs embedded in
	// outgoing signature-request emails.
	FrontendBaseURL string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	MagicLinkTTL    time.Duration

	// MaterialsPath optionally points to a JSON file replacing the built-in
	// material master catalog.
	MaterialsPath string

	SMTP SMTPConfig
}

// SMTPConfig is the mail transport configuration. An empty Host disables
// outbound mail; signature requests are then logged instead of delivered.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Load reads configuration from the environment, applying defaults for
// everything except the signing secret.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:      getEnv("EXPORTDESK_LISTEN_ADDR", ":8080"),
		DatabasePath:    getEnv("EXPORTDESK_DB_PATH", "exportdesk.db"),
		LogPath:         os.Getenv("EXPORTDESK_LOG_PATH"),
		SigningSecret:   os.Getenv("EXPORTDESK_SIGNING_SECRET"),
		FrontendBaseURL: getEnv("EXPORTDESK_FRONTEND_URL", "http://localhost:5173"),
		AccessTokenTTL:  getEnvDuration("EXPORTDESK_ACCESS_TTL", 8*time.Hour),
		RefreshTokenTTL: getEnvDuration("EXPORTDESK_REFRESH_TTL", 30*24*time.Hour),
		MagicLinkTTL:    getEnvDuration("EXPORTDESK_MAGIC_LINK_TTL", 7*24*time.Hour),
		MaterialsPath:   os.Getenv("EXPORTDESK_MATERIALS_PATH"),
		SMTP: SMTPConfig{
			Host:     os.Getenv("EXPORTDESK_SMTP_HOST"),
			Port:     getEnvInt("EXPORTDESK_SMTP_PORT", 587),
			Username: os.Getenv("EXPORTDESK_SMTP_USER"),
			Password: os.Getenv("EXPORTDESK_SMTP_PASSWORD"),
			From:     getEnv("EXPORTDESK_SMTP_FROM", "noreply@exportdesk.local"),
		},
	}

	if cfg.SigningSecret == "" {
		return Config{}, ErrSigningSecretRequired
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
