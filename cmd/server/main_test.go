package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/koios/skylight-calendar/internal/config"
	"github.com/koios/skylight-calendar/internal/refresh"
	"go.uber.org/fx"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Skylight: config.SkylightConfig{BaseURL: "http://127.0.0.1:1", Timeout: 1},
		Server:   config.ServerConfig{Port: 0, ReadTimeout: 5, WriteTimeout: 5},
		Store:    config.StoreConfig{Backend: config.StoreFile, Path: filepath.Join(t.TempDir(), "entries.yaml")},
		Refresh:  config.RefreshConfig{Cron: refresh.DefaultSchedule, Workers: 1},
		LogLevel: "error",
	}
}

// TestAppGraphValidity verifies that the dependency graph is resolvable
func TestAppGraphValidity(t *testing.T) {
	if err := fx.ValidateApp(appOptions(testConfig(t))); err != nil {
		t.Errorf("Dependency graph is not valid: %v", err)
	}

	redisCfg := testConfig(t)
	redisCfg.Store.Backend = config.StoreRedis
	if err := fx.ValidateApp(appOptions(redisCfg)); err != nil {
		t.Errorf("Redis dependency graph is not valid: %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger(testConfig(t))
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	if logger == nil {
		t.Fatal("Logger should not be nil")
	}
	logger.Info("Test logger initialization")

	cfg := testConfig(t)
	cfg.LogLevel = "loud"
	if _, err := newLogger(cfg); err == nil {
		t.Error("expected error for invalid log level")
	}
}

func TestEndToEndStartup(t *testing.T) {
	app := fx.New(
		appOptions(testConfig(t)),
		fx.NopLogger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if err := app.Start(ctx); err != nil {
		t.Fatalf("App failed to start: %v", err)
	}
	if err := app.Stop(ctx); err != nil {
		t.Fatalf("App failed to stop: %v", err)
	}
}
