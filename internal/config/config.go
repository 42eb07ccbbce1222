// Package config reads server settings from the environment.
//
// A .env file in the working directory is loaded first if present; real
// environment variables always win over it.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      int
	DBPath    string
	JWTSecret string
	UploadDir string
	TokenTTL  time.Duration
	LogLevel  slog.Level
	LogFormat string // "text" or "json"
}

// Load reads .env (if any) and then the environment.
func Load() (*Config, error) {
	// A missing .env is normal in production.
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("config: invalid PORT %q", os.Getenv("PORT"))
	}

	ttl, err := time.ParseDuration(getEnv("TOKEN_TTL", "480h"))
	if err != nil {
		return nil, fmt.Errorf("config: invalid TOKEN_TTL: %w", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("config: invalid LOG_LEVEL: %w", err)
	}

	format := strings.ToLower(getEnv("LOG_FORMAT", "text"))
	if format != "text" && format != "json" {
		return nil, fmt.Errorf("config: LOG_FORMAT must be text or json, got %q", format)
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("config: JWT_SECRET is required")
	}

	return &Config{
		Port:      port,
		DBPath:    getEnv("DB_PATH", "data/socialgraph.db"),
		JWTSecret: secret,
		UploadDir: getEnv("UPLOAD_DIR", "uploads"),
		TokenTTL:  ttl,
		LogLevel:  level,
		LogFormat: format,
	}, nil
}

// NewLogger builds the process logger described by c.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
