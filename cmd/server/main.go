package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/koios/skylight-calendar/internal/calendar"
	"github.com/koios/skylight-calendar/internal/config"
	"github.com/koios/skylight-calendar/internal/handlers"
	"github.com/koios/skylight-calendar/internal/integration"
	"github.com/koios/skylight-calendar/internal/redis"
	"github.com/koios/skylight-calendar/internal/refresh"
	"github.com/koios/skylight-calendar/internal/setup"
	"github.com/koios/skylight-calendar/internal/skylight"
	"github.com/koios/skylight-calendar/internal/store"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	flowTTL       = 30 * time.Minute
	flowPruneSpec = "@every 10m"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app := fx.New(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		appOptions(cfg),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		log.Fatalf("Failed to stop cleanly: %v", err)
	}
}

// appOptions builds the dependency graph for cfg
func appOptions(cfg *config.Config) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		fx.Provide(
			newLogger,
			newSkylightClient,
			newCalendarOptions,
			newHub,
			newFlowManager,
			newWorkerPool,
			newScheduler,
			newHTTPServer,
		),
		backendOptions(cfg),
		fx.Invoke(registerHooks),
	)
}

// backendOptions selects the entry store and the active-event notifier
func backendOptions(cfg *config.Config) fx.Option {
	if cfg.Store.Backend == config.StoreRedis {
		return fx.Options(
			fx.Provide(
				newRedisClient,
				func(c *redis.Client) store.Store { return c },
				func(c *redis.Client) refresh.Notifier { return c },
				func(c *redis.Client) handlers.HealthChecker { return c },
			),
			fx.Invoke(registerConsumer),
		)
	}

	return fx.Provide(
		newFileStore,
		func() refresh.Notifier { return refresh.NopNotifier{} },
		func() handlers.HealthChecker { return nil },
	)
}

// newLogger creates a production zap logger at the configured level
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

func newSkylightClient(cfg *config.Config, logger *zap.Logger) *skylight.Client {
	return skylight.NewClient(cfg.Skylight.BaseURL, cfg.RequestTimeout(), logger)
}

func newCalendarOptions(cfg *config.Config) (calendar.Options, error) {
	loc, err := cfg.Location()
	if err != nil {
		return calendar.Options{}, err
	}
	return calendar.Options{Location: loc, Timezone: cfg.Skylight.Timezone}, nil
}

func newFileStore(cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	st, err := store.NewFileStore(cfg.Store.Path, logger)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func newRedisClient(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*redis.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := redis.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newHub(client *skylight.Client, st store.Store, opts calendar.Options, logger *zap.Logger) *integration.Hub {
	return integration.NewHub(client, st, opts, logger)
}

func newFlowManager(client *skylight.Client, hub *integration.Hub, logger *zap.Logger) *setup.FlowManager {
	return setup.NewFlowManager(client, hub, logger)
}

func newWorkerPool(cfg *config.Config, logger *zap.Logger) *refresh.WorkerPool {
	return refresh.NewWorkerPool(cfg.Refresh.Workers, cfg.RequestTimeout()+5*time.Second, logger)
}

func newScheduler(cfg *config.Config, pool *refresh.WorkerPool, hub *integration.Hub, notifier refresh.Notifier, flows *setup.FlowManager, logger *zap.Logger) (*refresh.Scheduler, error) {
	scheduler, err := refresh.NewScheduler(cfg.Refresh.Cron, pool, hub, notifier, logger)
	if err != nil {
		return nil, err
	}

	err = scheduler.AddFunc(flowPruneSpec, func() {
		if removed := flows.Prune(time.Now().Add(-flowTTL)); removed > 0 {
			logger.Debug("Pruned abandoned setup flows", zap.Int("removed", removed))
		}
	})
	if err != nil {
		return nil, err
	}
	return scheduler, nil
}

func newHTTPServer(cfg *config.Config, hub *integration.Hub, flows *setup.FlowManager, scheduler *refresh.Scheduler, health handlers.HealthChecker, opts calendar.Options, logger *zap.Logger) *http.Server {
	flowHandler := handlers.NewFlowHandler(flows, hub, logger)
	calendarHandler := handlers.NewCalendarHandler(hub, scheduler, health, opts.Location, logger)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handlers.NewRouter(flowHandler, calendarHandler, cfg.Server.CORSOrigins),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}
}

// registerHooks loads stored entries, then starts refreshing and serving
func registerHooks(lc fx.Lifecycle, cfg *config.Config, hub *integration.Hub, pool *refresh.WorkerPool, scheduler *refresh.Scheduler, server *http.Server, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := hub.LoadAll(ctx); err != nil {
				return err
			}

			pool.Start()
			scheduler.Start()

			go func() {
				logger.Info("Starting HTTP server", zap.Int("port", cfg.Server.Port))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("HTTP server failed", zap.Error(err))
				}
			}()

			logger.Info("Server started",
				zap.Int("port", cfg.Server.Port),
				zap.String("store_backend", cfg.Store.Backend),
				zap.Int("entries", hub.EntryCount()))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down server...")

			if err := server.Shutdown(ctx); err != nil {
				logger.Error("HTTP server shutdown failed", zap.Error(err))
			}
			scheduler.Stop(ctx)
			pool.Stop()

			logger.Info("Server shutdown complete")
			_ = logger.Sync()
			return nil
		},
	})
}

// registerConsumer runs the Redis refresh-request consumer for the app lifetime
func registerConsumer(lc fx.Lifecycle, client *redis.Client, scheduler *refresh.Scheduler, logger *zap.Logger) {
	consumer := redis.NewConsumer(client, scheduler, logger)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := consumer.Start(); err != nil {
					logger.Error("Redis consumer exited", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			consumer.Stop()
			return nil
		},
	})
}
