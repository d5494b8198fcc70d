package config

import (
	"testing"
	"time"
)

var configKeys = []string{
	"SKYLIGHT_BASE_URL", "SKYLIGHT_TIMEOUT", "TIMEZONE",
	"SERVER_PORT", "SERVER_READ_TIMEOUT", "SERVER_WRITE_TIMEOUT", "CORS_ALLOWED_ORIGINS",
	"STORE_BACKEND", "STORE_PATH",
	"REDIS_URL", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "REDIS_CONSUMER_GROUP", "REDIS_CONSUMER_NAME",
	"REFRESH_CRON", "REFRESH_WORKERS", "LOG_LEVEL",
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "skylight overrides",
			env:  map[string]string{"SKYLIGHT_TIMEOUT": "25", "TIMEZONE": "Europe/Berlin"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.RequestTimeout() != 25*time.Second {
					t.Errorf("RequestTimeout = %v, want 25s", cfg.RequestTimeout())
				}
				if cfg.Skylight.Timezone != "Europe/Berlin" {
					t.Errorf("Timezone = %q", cfg.Skylight.Timezone)
				}
			},
		},
		{
			name: "non-numeric timeout keeps default",
			env:  map[string]string{"SKYLIGHT_TIMEOUT": "ten"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Skylight.Timeout != 10 {
					t.Errorf("Timeout = %d, want 10", cfg.Skylight.Timeout)
				}
			},
		},
		{
			name: "backend name is case-insensitive",
			env:  map[string]string{"STORE_BACKEND": "Redis"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Store.Backend != StoreRedis {
					t.Errorf("Store.Backend = %q, want redis", cfg.Store.Backend)
				}
			},
		},
		{
			name: "redis url scheme is stripped",
			env:  map[string]string{"REDIS_URL": "redis://cache:6380", "REDIS_ADDR": "ignored:1"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Redis.Addr != "cache:6380" {
					t.Errorf("Redis.Addr = %q, want cache:6380", cfg.Redis.Addr)
				}
			},
		},
		{
			name: "redis addr without url",
			env:  map[string]string{"REDIS_ADDR": "cache:6379", "REDIS_DB": "3"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Redis.Addr != "cache:6379" || cfg.Redis.DB != 3 {
					t.Errorf("Redis = %+v", cfg.Redis)
				}
				if cfg.Redis.ConsumerGroup != "skylight-calendar" {
					t.Errorf("ConsumerGroup = %q", cfg.Redis.ConsumerGroup)
				}
			},
		},
		{
			name: "cors origins drop blanks",
			env:  map[string]string{"CORS_ALLOWED_ORIGINS": " https://a.example , ,https://b.example"},
			check: func(t *testing.T, cfg *Config) {
				got := cfg.Server.CORSOrigins
				if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
					t.Errorf("CORSOrigins = %v", got)
				}
			},
		},
		{
			name: "refresh settings",
			env:  map[string]string{"REFRESH_CRON": "@every 5m", "REFRESH_WORKERS": "2"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Refresh.Cron != "@every 5m" || cfg.Refresh.Workers != 2 {
					t.Errorf("Refresh = %+v", cfg.Refresh)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			for key, value := range tt.env {
				t.Setenv(key, value)
			}

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("REFRESH_CRON", "every minute")

	if _, err := Load(); err == nil {
		t.Error("expected Load to fail on a bad cron expression")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Skylight.BaseURL != "https://app.ourskylight.com/api" {
		t.Errorf("BaseURL = %q", cfg.Skylight.BaseURL)
	}
	if cfg.RequestTimeout() != 10*time.Second {
		t.Errorf("RequestTimeout = %v, want 10s", cfg.RequestTimeout())
	}
	if cfg.Store.Backend != StoreFile {
		t.Errorf("Store.Backend = %q, want file", cfg.Store.Backend)
	}
	if cfg.Refresh.Cron != "*/15 * * * *" {
		t.Errorf("Refresh.Cron = %q", cfg.Refresh.Cron)
	}

	loc, err := cfg.Location()
	if err != nil || loc != time.UTC {
		t.Errorf("Location() = %v, %v; want UTC", loc, err)
	}
}

func TestLoadTrimsBaseURL(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("SKYLIGHT_BASE_URL", "http://localhost:9000/api/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Skylight.BaseURL != "http://localhost:9000/api" {
		t.Errorf("BaseURL = %q", cfg.Skylight.BaseURL)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Skylight: SkylightConfig{BaseURL: "http://x", Timeout: 10},
			Store:    StoreConfig{Backend: StoreFile, Path: "entries.yaml"},
			Redis:    RedisConfig{Addr: "localhost:6379"},
			Refresh:  RefreshConfig{Cron: "*/15 * * * *", Workers: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"redis backend", func(c *Config) { c.Store.Backend = StoreRedis }, false},
		{"unknown backend", func(c *Config) { c.Store.Backend = "etcd" }, true},
		{"missing path", func(c *Config) { c.Store.Path = "" }, true},
		{"bad timezone", func(c *Config) { c.Skylight.Timezone = "Mars/Olympus" }, true},
		{"good timezone", func(c *Config) { c.Skylight.Timezone = "Europe/Berlin" }, false},
		{"bad cron", func(c *Config) { c.Refresh.Cron = "every minute" }, true},
		{"zero timeout", func(c *Config) { c.Skylight.Timeout = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
