package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Tracking/internal/telemetry"
)

// DefaultRetentionSchedule — очистка журнала раз в час.
const DefaultRetentionSchedule = "@hourly"

// Pruner удаляет записи журнала старше заданного времени.
type Pruner interface {
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// RetentionConfig — конфигурация Retention.
type RetentionConfig struct {
	Pruner Pruner

	// Keep — сколько хранить записи. 0 отключает очистку.
	Keep time.Duration

	// Schedule — cron-выражение (default: @hourly).
	Schedule string

	Logger *slog.Logger

	// now подменяется в тестах.
	now func() time.Time
}

// Retention периодически удаляет старые записи журнала.
type Retention struct {
	pruner   Pruner
	keep     time.Duration
	schedule string
	logger   *slog.Logger
	now      func() time.Time
}

// NewRetention создаёт Retention.
func NewRetention(cfg RetentionConfig) (*Retention, error) {
	if cfg.Keep > 0 && cfg.Pruner == nil {
		return nil, errors.New("retention: pruner is required")
	}

	schedule := cfg.Schedule
	if schedule == "" {
		schedule = DefaultRetentionSchedule
	}
	if err := ValidateCronExpr(schedule); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.now
	if now == nil {
		now = time.Now
	}

	return &Retention{
		pruner:   cfg.Pruner,
		keep:     cfg.Keep,
		schedule: schedule,
		logger:   logger,
		now:      now,
	}, nil
}

// Enabled сообщает, включена ли очистка.
func (r *Retention) Enabled() bool {
	return r.keep > 0
}

// Tick выполняет одну очистку.
func (r *Retention) Tick(ctx context.Context) (int64, error) {
	if !r.Enabled() {
		return 0, nil
	}

	before := r.now().Add(-r.keep)
	deleted, err := r.pruner.DeleteOlderThan(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("prune ledger: %w", err)
	}

	telemetry.RetentionDeleted.Add(float64(deleted))
	r.logger.Info("ledger retention completed",
		"before", before.UTC(),
		"deleted", deleted,
	)
	return deleted, nil
}

// Run запускает очистку по расписанию до отмены ctx.
// Если очистка отключена, просто ждёт отмены.
func (r *Retention) Run(ctx context.Context) error {
	if !r.Enabled() {
		r.logger.Info("ledger retention disabled")
		<-ctx.Done()
		return nil
	}

	r.logger.Info("ledger retention started", "schedule", r.schedule, "keep", r.keep)

	return Run(ctx, r.schedule, r.logger, func(ctx context.Context) {
		if _, err := r.Tick(ctx); err != nil {
			r.logger.Error("ledger retention failed", "error", err)
		}
	})
}
