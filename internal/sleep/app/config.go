package app

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer   string // Issuer claim for access tokens (default: somnus-sleep)
	Audience string // Audience claim for access tokens (default: somnus-api)

	JWTKeyFile   string // Optional: path to an Ed25519 PEM key; empty generates an ephemeral key
	DatabaseFile string // Path to SQLite database file (default: ./sleep.db)
	TokenSecret  string // Operator secret for provider token encryption; empty enables insecure passthrough

	OuraClientID       string        // Provider OAuth client id
	OuraClientSecret   string        // Provider OAuth client secret
	OuraRedirectURI    string        // Redirect URI registered with the provider
	OuraSafetyMargin   time.Duration // Early-expiry buffer for provider tokens (default: 5m)
	OuraLookbackMonths int           // How far back a sync may reach (default: 6)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:   getEnvOrDefault("SLEEP_ISSUER", "somnus-sleep"),
		Audience: getEnvOrDefault("SLEEP_AUDIENCE", "somnus-api"),

		JWTKeyFile:   os.Getenv("SLEEP_JWT_KEY_FILE"), // Optional
		DatabaseFile: getEnvOrDefault("SLEEP_DATABASE_FILE", "sleep.db"),
		TokenSecret:  os.Getenv("SLEEP_TOKEN_SECRET"), // Required in prod

		OuraClientID:       os.Getenv("OURA_CLIENT_ID"),
		OuraClientSecret:   os.Getenv("OURA_CLIENT_SECRET"),
		OuraRedirectURI:    os.Getenv("OURA_REDIRECT_URI"),
		OuraSafetyMargin:   getEnvDurationOrDefault("OURA_SAFETY_MARGIN", 5*time.Minute),
		OuraLookbackMonths: getEnvIntOrDefault("OURA_SYNC_LOOKBACK_MONTHS", 6),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	return cfg
}

// Validate rejects configurations that must not reach production. A missing
// token secret silently downgrades provider tokens to plaintext at rest,
// which is acceptable only in development.
func (cfg Config) Validate() error {
	if cfg.Env == "prod" && cfg.TokenSecret == "" {
		return fmt.Errorf("SLEEP_TOKEN_SECRET is required when ENV=prod")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
