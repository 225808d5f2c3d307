// Command authserver serves the goSession engine over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/delivery"
	"github.com/MrEthical07/goSession/directory"
	"github.com/MrEthical07/goSession/internal/config"
	"github.com/MrEthical07/goSession/internal/httpapi"
	"github.com/MrEthical07/goSession/internal/logging"
	otelexport "github.com/MrEthical07/goSession/metrics/export/otel"
	"github.com/MrEthical07/goSession/metrics/export/prometheus"
	"github.com/MrEthical07/goSession/pgstore"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
)

const pruneInterval = time.Hour

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "authserver: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	engineCfg, err := cfg.Engine()
	if err != nil {
		return fmt.Errorf("engine config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hasher, err := goSession.NewPasswordHasher(engineCfg.Password)
	if err != nil {
		return err
	}
	users, err := directory.Open(cfg.UserDatabaseURL, hasher, directory.Options{
		UpgradeOnLogin: engineCfg.Password.UpgradeOnLogin,
	})
	if err != nil {
		return err
	}
	defer closeLogged(logger, "user directory", users)

	sender, err := resetDelivery(cfg, logger)
	if err != nil {
		return err
	}
	if c, ok := sender.(io.Closer); ok {
		defer closeLogged(logger, "reset delivery", c)
	}

	builder := goSession.New().
		WithConfig(engineCfg).
		WithUserDirectory(users).
		WithResetDelivery(sender).
		WithAuditSink(goSession.NewSlogSink(logger.With("component", "audit")))

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := pgstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := pgstore.Migrate(ctx, pool); err != nil {
			return err
		}
		refreshStore := pgstore.NewRefreshStore(pool)
		resetStore := pgstore.NewResetStore(pool)
		builder = builder.WithRefreshStore(refreshStore).WithResetStore(resetStore)
		go pruneLoop(ctx, logger, refreshStore, resetStore, engineCfg.Session.RetentionTTL)
	default:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer closeLogged(logger, "redis", rdb)
		builder = builder.WithRedis(rdb)
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	deps := httpapi.Deps{
		Engine:   engine,
		Accounts: users,
		Logger:   logger,
	}
	if engineCfg.Metrics.Enabled {
		deps.Metrics = prometheus.NewExporter(engine).Handler()

		provider := otelexport.NewMeterProvider(otelexport.NewLogExporter(logger.With("component", "otel")), cfg.OTelInterval)
		otel.SetMeterProvider(provider)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				logger.Warn("otel provider shutdown failed", "error", err)
			}
		}()

		oexp, err := otelexport.NewExporter(otel.Meter("github.com/MrEthical07/goSession"), engine)
		if err != nil {
			return fmt.Errorf("otel exporter: %w", err)
		}
		defer closeLogged(logger, "otel exporter", oexp)
	}
	e := httpapi.New(deps)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Addr, "store", cfg.StoreBackend, "delivery", cfg.ResetDelivery)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
	return nil
}

func resetDelivery(cfg config.Config, logger *slog.Logger) (goSession.ResetDelivery, error) {
	switch cfg.ResetDelivery {
	case config.DeliveryAMQP:
		return delivery.DialAMQP(cfg.AMQPURL, cfg.AMQPQueue)
	case config.DeliveryKafka:
		return delivery.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
	default:
		return delivery.Log{Logger: logger.With("component", "reset")}, nil
	}
}

// pruneLoop removes expired postgres rows once they are past the retention
// window. Redis expires keys on its own.
func pruneLoop(ctx context.Context, logger *slog.Logger, refreshStore *pgstore.RefreshStore, resetStore *pgstore.ResetStore, retention time.Duration) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			horizon := now.Add(-retention)
			if n, err := refreshStore.Prune(ctx, horizon); err != nil {
				logger.Warn("refresh prune failed", "error", err)
			} else if n > 0 {
				logger.Info("refresh records pruned", "rows", n)
			}
			if n, err := resetStore.Prune(ctx, horizon); err != nil {
				logger.Warn("reset prune failed", "error", err)
			} else if n > 0 {
				logger.Info("reset records pruned", "rows", n)
			}
		}
	}
}

func closeLogged(logger *slog.Logger, what string, c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Error("close failed", "component", what, "error", err)
	}
}
