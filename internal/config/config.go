// Package config resolves process configuration from an optional .env
// file and LOGFERRY_* environment variables. Command-line flags take
// precedence; the CLI overwrites whatever Load returns.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultPort is the well-known server port. Flags and LOGFERRY_PORT
// override it.
const DefaultPort = 12345

// Config carries everything the server and client need at startup.
type Config struct {
	Host         string
	Port         int
	Strategy     string
	Workers      int
	DrainTimeout time.Duration
	HistoryFile  string
	Debug        bool
}

// Load reads .env (if present) and the environment, falling back to
// defaults for anything unset.
func Load() Config {
	// Missing .env is fine; the environment still applies.
	_ = godotenv.Load()

	cfg := Config{
		Host:         envString("LOGFERRY_HOST", "localhost"),
		Port:         envInt("LOGFERRY_PORT", DefaultPort),
		Strategy:     envString("LOGFERRY_STRATEGY", "threaded"),
		Workers:      envInt("LOGFERRY_WORKERS", 10),
		DrainTimeout: envDuration("LOGFERRY_DRAIN_TIMEOUT", 5*time.Second),
		HistoryFile:  envString("LOGFERRY_HISTORY_FILE", "query_history.txt"),
		Debug:        envBool("LOGFERRY_DEBUG", false),
	}
	return cfg
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
