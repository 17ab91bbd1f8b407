// Package config loads client settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tekst-client/state"
)

type Config struct {
	APIURL       string
	// WebURL is the web client root; search result links point below it.
	WebURL       string
	PollInterval time.Duration
	Locale       string
	DownloadDir  string
	State        state.Options
	LogLevel     slog.Level
	LogFormat    string
	MetricsAddr  string
}

// Load reads envFile (if it exists) and then the environment. Variables
// already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("load %s: %w", envFile, err)
			}
			slog.Warn("env file not found, using environment only", "file", envFile)
		}
	}

	interval, err := time.ParseDuration(getEnv("TEKST_POLL_INTERVAL", "5s"))
	if err != nil {
		return nil, fmt.Errorf("TEKST_POLL_INTERVAL: %w", err)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("TEKST_POLL_INTERVAL must be positive, got %s", interval)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	format := strings.ToLower(getEnv("LOG_FORMAT", "text"))
	if format != "text" && format != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be text or json, got %q", format)
	}

	cfg := &Config{
		APIURL:       strings.TrimRight(getEnv("TEKST_API_URL", "http://localhost:8000/api"), "/"),
		WebURL:       strings.TrimRight(getEnv("TEKST_WEB_URL", "http://localhost:8000"), "/"),
		PollInterval: interval,
		Locale:       getEnv("TEKST_LOCALE", "en"),
		DownloadDir:  getEnv("TEKST_DOWNLOAD_DIR", "."),
		State: state.Options{
			Backend:     strings.ToLower(getEnv("STATE_BACKEND", state.BackendMemory)),
			RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
			DatabaseURL: getEnv("DATABASE_URL", ""),
		},
		LogLevel:    level,
		LogFormat:   format,
		MetricsAddr: getEnv("METRICS_ADDR", ""),
	}

	for name, raw := range map[string]string{"TEKST_API_URL": cfg.APIURL, "TEKST_WEB_URL": cfg.WebURL} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("%s must be an absolute http(s) URL, got %q", name, raw)
		}
	}

	switch cfg.State.Backend {
	case state.BackendMemory, state.BackendRedis:
	case state.BackendPostgres:
		if cfg.State.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres state backend")
		}
	default:
		return nil, fmt.Errorf("STATE_BACKEND must be memory, redis or postgres, got %q", cfg.State.Backend)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
