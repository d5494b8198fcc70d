package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Store backends
const (
	StoreFile  = "file"
	StoreRedis = "redis"
)

// Config holds all configuration for the application
type Config struct {
	Skylight SkylightConfig
	Server   ServerConfig
	Store    StoreConfig
	Redis    RedisConfig
	Refresh  RefreshConfig
	LogLevel string
}

// SkylightConfig holds settings for the remote Skylight API
type SkylightConfig struct {
	BaseURL  string
	Timeout  int    // per-request timeout in seconds
	Timezone string // IANA zone sent with event queries; empty means UTC
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port         int
	ReadTimeout  int
	WriteTimeout int
	CORSOrigins  []string
}

// StoreConfig selects where config entries are persisted
type StoreConfig struct {
	Backend string
	Path    string // YAML file for the file backend
}

// RedisConfig holds Redis-related configuration
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	ConsumerGroup string
	ConsumerName  string
}

// RefreshConfig controls the periodic calendar refresh
type RefreshConfig struct {
	Cron    string
	Workers int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (optional)
	_ = godotenv.Load()

	cfg := &Config{
		Skylight: SkylightConfig{
			BaseURL:  strings.TrimRight(getEnv("SKYLIGHT_BASE_URL", "https://app.ourskylight.com/api"), "/"),
			Timeout:  getEnvAsInt("SKYLIGHT_TIMEOUT", 10),
			Timezone: getEnv("TIMEZONE", ""),
		},
		Server: ServerConfig{
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 30),
			CORSOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS"),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(getEnv("STORE_BACKEND", StoreFile)),
			Path:    getEnv("STORE_PATH", "./var/entries.yaml"),
		},
		Redis: RedisConfig{
			Addr:          getRedisAddr(),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getEnvAsInt("REDIS_DB", 0),
			ConsumerGroup: getEnv("REDIS_CONSUMER_GROUP", "skylight-calendar"),
			ConsumerName:  getEnv("REDIS_CONSUMER_NAME", ""),
		},
		Refresh: RefreshConfig{
			Cron:    getEnv("REFRESH_CRON", "*/15 * * * *"),
			Workers: getEnvAsInt("REFRESH_WORKERS", 4),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings the service cannot run with
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreFile:
		if c.Store.Path == "" {
			return fmt.Errorf("STORE_PATH is required for the file store")
		}
	case StoreRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown store backend: %s", c.Store.Backend)
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Skylight.Timezone, err)
	}

	if _, err := cron.ParseStandard(c.Refresh.Cron); err != nil {
		return fmt.Errorf("invalid REFRESH_CRON %q: %w", c.Refresh.Cron, err)
	}

	if c.Skylight.Timeout <= 0 {
		return fmt.Errorf("SKYLIGHT_TIMEOUT must be positive")
	}

	return nil
}

// Location returns the configured display zone, UTC when unset
func (c *Config) Location() (*time.Location, error) {
	if c.Skylight.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Skylight.Timezone)
}

// RequestTimeout returns the Skylight per-request timeout
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Skylight.Timeout) * time.Second
}

// getRedisAddr resolves the Redis address from REDIS_URL or REDIS_ADDR
func getRedisAddr() string {
	if url := os.Getenv("REDIS_URL"); url != "" {
		return strings.TrimPrefix(url, "redis://")
	}
	return getEnv("REDIS_ADDR", "localhost:6379")
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as int or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blanks
func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
