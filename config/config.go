package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server  ServerConfig
	Session SessionConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// SessionConfig holds session lifetime and presence settings.
type SessionConfig struct {
	EstimationTTL        time.Duration // estimation sessions live this long from creation
	DefaultRetentionDays int           // retro retention when the caller picks none
	MaxRetentionDays     int           // retro retention upper bound
	SweepInterval        time.Duration // how often expired sessions are purged
	HeartbeatInterval    time.Duration // how often stale connections are swept
	HeartbeatTimeout     time.Duration // how long a retro connection may stay silent
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001"),
		},
		Session: SessionConfig{
			EstimationTTL:        getEnvDuration("ESTIMATION_SESSION_TTL", 3*time.Hour),
			DefaultRetentionDays: getEnvInt("RETRO_RETENTION_DAYS_DEFAULT", 7),
			MaxRetentionDays:     getEnvInt("RETRO_RETENTION_DAYS_MAX", 30),
			SweepInterval:        getEnvDuration("SESSION_SWEEP_INTERVAL", time.Minute),
			HeartbeatInterval:    getEnvDuration("HEARTBEAT_SWEEP_INTERVAL", 10*time.Second),
			HeartbeatTimeout:     getEnvDuration("HEARTBEAT_TIMEOUT", 35*time.Second),
		},
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
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
