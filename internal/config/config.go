// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultListenAddr = "127.0.0.1:8080"

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	SecretKey  []byte

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	APIBaseURL         string
	AuthURL            string
	TokenURL           string

	Location      *time.Location
	SyncInterval  time.Duration
	BackfillDelay time.Duration
	HTTPTimeout   time.Duration
	AuthStateTTL  time.Duration

	ProviderRate  float64
	ProviderBurst int

	LogLevel    slog.Level
	SentryDSN   string
	Environment string
}

// HasGoogleCredentials returns true when the OAuth client id and secret are
// both set. Without them stored credentials cannot be refreshed and no new
// user can be authorized.
func (c *Config) HasGoogleCredentials() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// Load reads configuration from environment variables and returns a validated
// Config. Variables already present in the environment win over values from
// an optional .env file in the working directory.
//
// FITSYNC_SECRET_KEY is required: 64 hex characters (32 bytes) used to
// encrypt stored credentials. Everything else has a default or is optional.
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	secretKey, err := parseSecretKey(os.Getenv("FITSYNC_SECRET_KEY"))
	if err != nil {
		return nil, err
	}

	loc := time.UTC
	if v, ok := os.LookupEnv("FITSYNC_TIMEZONE"); ok && v != "" {
		loc, err = time.LoadLocation(v)
		if err != nil {
			return nil, fmt.Errorf("FITSYNC_TIMEZONE has invalid location %q: %w", v, err)
		}
	}

	syncInterval, err := durationEnv("FITSYNC_SYNC_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}
	backfillDelay, err := durationEnv("FITSYNC_BACKFILL_DELAY", time.Second)
	if err != nil {
		return nil, err
	}
	httpTimeout, err := durationEnv("FITSYNC_HTTP_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	authStateTTL, err := durationEnv("FITSYNC_AUTH_STATE_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	providerRate, err := floatEnv("FITSYNC_PROVIDER_RATE", 10)
	if err != nil {
		return nil, err
	}
	providerBurst, err := intEnv("FITSYNC_PROVIDER_BURST", 10)
	if err != nil {
		return nil, err
	}
	if providerBurst < 1 {
		return nil, fmt.Errorf("FITSYNC_PROVIDER_BURST must be at least 1, got %d", providerBurst)
	}

	logLevel := slog.LevelInfo
	if v, ok := os.LookupEnv("FITSYNC_LOG_LEVEL"); ok && v != "" {
		if err := logLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("FITSYNC_LOG_LEVEL has invalid level %q: %w", v, err)
		}
	}

	return &Config{
		ListenAddr:         stringEnv("FITSYNC_LISTEN_ADDR", defaultListenAddr),
		DBPath:             stringEnv("FITSYNC_DB_PATH", "fitsync.db"),
		SecretKey:          secretKey,
		GoogleClientID:     os.Getenv("FITSYNC_GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("FITSYNC_GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  os.Getenv("FITSYNC_GOOGLE_REDIRECT_URL"),
		APIBaseURL:         os.Getenv("FITSYNC_API_BASE_URL"),
		AuthURL:            os.Getenv("FITSYNC_AUTH_URL"),
		TokenURL:           os.Getenv("FITSYNC_TOKEN_URL"),
		Location:           loc,
		SyncInterval:       syncInterval,
		BackfillDelay:      backfillDelay,
		HTTPTimeout:        httpTimeout,
		AuthStateTTL:       authStateTTL,
		ProviderRate:       providerRate,
		ProviderBurst:      providerBurst,
		LogLevel:           logLevel,
		SentryDSN:          os.Getenv("FITSYNC_SENTRY_DSN"),
		Environment:        stringEnv("FITSYNC_ENVIRONMENT", "development"),
	}, nil
}

// ListenAddr resolves only FITSYNC_LISTEN_ADDR, with the same .env and
// default handling as Load. It needs no secret key.
func ListenAddr() (string, error) {
	if err := loadDotEnv(".env"); err != nil {
		return "", err
	}
	return stringEnv("FITSYNC_LISTEN_ADDR", defaultListenAddr), nil
}

// loadDotEnv reads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func parseSecretKey(v string) ([]byte, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, errors.New("FITSYNC_SECRET_KEY is required (64 hex characters)")
	}
	if len(v) != 64 {
		return nil, fmt.Errorf("FITSYNC_SECRET_KEY must be 64 hex characters, got %d", len(v))
	}
	key, err := hex.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("FITSYNC_SECRET_KEY is not valid hex: %w", err)
	}
	return key, nil
}

func stringEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %s", key, v)
	}
	return parsed, nil
}

func intEnv(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid integer %q: %w", key, v, err)
	}
	return parsed, nil
}

// floatEnv parses a non-negative number.
func floatEnv(key string, fallback float64) (float64, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid number %q: %w", key, v, err)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %s", key, v)
	}
	return parsed, nil
}
