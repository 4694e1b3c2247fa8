package main

import (
	"log/slog"
	"os"
	"path/filepath"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	HTTPAddr   string     // "127.0.0.1:8080"
	DBDSN      string     // sqlite file path
	ConfigFile string     // path to deepsearchd.yaml
	APIKey     string     // generator API key
	LogLevel   slog.Level // slog level
}

// defaultDataPath returns ~/.deepsearchd/<filename>, falling back to
// a CWD-relative path if the home directory can't be resolved.
func defaultDataPath(filename string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filename
	}
	return filepath.Join(home, ".deepsearchd", filename)
}

func loadConfig() (*Config, error) {
	cfg := &Config{
		HTTPAddr:   envOr("DEEPSEARCH_HTTP_ADDR", "127.0.0.1:8080"),
		DBDSN:      envOr("DEEPSEARCH_DB_DSN", defaultDataPath("deepsearch.db")),
		ConfigFile: envOr("DEEPSEARCH_CONFIG", defaultDataPath("deepsearchd.yaml")),
		APIKey:     envOr("DEEPSEARCH_OPENAI_API_KEY", os.Getenv("OPENAI_API_KEY")),
		LogLevel:   parseLogLevel(envOr("DEEPSEARCH_LOG_LEVEL", "info")),
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
