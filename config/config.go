package config

import (
	"os"
	"strconv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// HTTP / WebSocket listen address for the gateway
	ListenAddr string

	// Metrics + health endpoint address
	MetricsAddr string

	// Infrastructure
	SQLitePath    string // empty = in-memory store (nothing survives a restart)
	RedisAddr     string // empty = no Redis relay
	RedisPassword string

	// Simulation
	UpdateFrequencyMs int
	AutoStart         bool

	// Admin TOTP secret; empty disables the control-plane guard
	AdminTOTPSecret string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		ListenAddr:  getEnv("LISTEN_ADDR", ":8080"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),

		SQLitePath:    getEnv("SQLITE_PATH", "data/marketsim.db"),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		UpdateFrequencyMs: getEnvInt("UPDATE_FREQUENCY_MS", 5000),
		AutoStart:         getEnvBool("AUTO_START", true),

		AdminTOTPSecret: getEnv("ADMIN_TOTP_SECRET", ""),
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
