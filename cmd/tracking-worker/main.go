// Tracking Worker — записывает ping-события из RabbitMQ в журнал.
//
// Worker:
//   - Подключается к брокеру и объявляет топологию (повторы при сетевых сбоях)
//   - Получает сообщения с маршрутов *.ping.vehicle по одному
//   - Записывает ping в PostgreSQL, отсекая повторные доставки (Redis, опционально)
//   - Подтверждает сообщение только после успешной записи
//   - Периодически удаляет старые записи журнала (опционально)
//
// Каждый экземпляр получает копию сообщений через собственную очередь.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Tracking/internal/config"
	"github.com/shaiso/Tracking/internal/dedup"
	"github.com/shaiso/Tracking/internal/domain"
	"github.com/shaiso/Tracking/internal/ledger"
	"github.com/shaiso/Tracking/internal/mq"
	"github.com/shaiso/Tracking/internal/repo"
	"github.com/shaiso/Tracking/internal/scheduler"
	"github.com/shaiso/Tracking/internal/telemetry"
	"github.com/shaiso/Tracking/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tracking-worker:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Инициализируем structured logging
	logger, closeLog := telemetry.SetupLogger(cfg.Log.LogOptions("tracking-worker"))
	defer closeLog()
	logger.Info("starting tracking-worker")

	// Конфигурация брокера проверяется до любого I/O
	brokerCfg, err := cfg.Broker.BrokerConfig()
	if err != nil {
		logger.Error("invalid broker config", "error", err)
		return err
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Tracing.TracingOptions())
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	// DB pool
	pool, err := repo.NewPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return err
	}
	defer pool.Close()
	logger.Info("database connected")

	if cfg.Postgres.Migrate {
		if err := repo.Migrate(ctx, pool); err != nil {
			logger.Error("failed to apply migrations", "error", err)
			return err
		}
	}

	pingRepo := repo.NewPingRepo(pool)

	// Redis (опционально)
	var store dedup.Store = dedup.NopStore{}
	if cfg.Redis.Addr != "" {
		rs, err := dedup.NewRedisStore(ctx, dedup.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			logger.Warn("Redis not available, running without dedup", "error", err)
		} else {
			defer rs.Close()
			store = rs
			logger.Info("redis connected", "addr", cfg.Redis.Addr)
		}
	}

	svc := ledger.NewService(pingRepo, store, logger)

	consumer, err := mq.NewConsumer(mq.ConsumerConfig[domain.PingModel]{
		Broker:           brokerCfg,
		Callback:         svc.HandlePing,
		ConnectPolicy:    cfg.Broker.ConnectPolicy(),
		MessagePolicy:    cfg.Broker.MessagePolicy(),
		RequeueOnFailure: cfg.Broker.RequeueOnFailure,
		StopOnFailure:    cfg.Broker.StopOnFailure,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	retention, err := scheduler.NewRetention(scheduler.RetentionConfig{
		Pruner:   pingRepo,
		Keep:     cfg.Ledger.Retention,
		Schedule: cfg.Ledger.RetentionSchedule,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	w := worker.New(worker.Config{
		Consumer:  consumer,
		Retention: retention,
		Logger:    logger,
	})

	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           newMux(consumer),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения или фатальную ошибку потребителя
	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-w.Err():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", "error", err)
	}

	w.Stop()
	logger.Info("tracking-worker stopped", slog.Bool("failed", runErr != nil))

	return runErr
}

// newMux — /healthz (процесс жив), /readyz (потребитель получает сообщения), /metrics.
func newMux(consumer interface{ State() mq.State }) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		state := consumer.State()
		switch state {
		case mq.StateConsuming, mq.StateProcessing, mq.StateAcking, mq.StateSkipping:
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		w.Write([]byte(state.String()))
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
