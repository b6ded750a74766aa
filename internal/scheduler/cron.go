package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений (5 полей, без секунд).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateCronExpr проверяет валидность cron-выражения.
func ValidateCronExpr(cronExpr string) error {
	_, err := cronParser.Parse(cronExpr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return nil
}

// NextRun вычисляет следующее время по cron-выражению.
func NextRun(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from), nil
}

// Run выполняет job по расписанию до отмены ctx.
//
// Запуски не перекрываются: если предыдущий ещё идёт, очередной пропускается.
// После отмены ctx ждёт завершения текущего запуска.
func Run(ctx context.Context, cronExpr string, logger *slog.Logger, job func(ctx context.Context)) error {
	if logger == nil {
		logger = slog.Default()
	}

	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	_, err := c.AddFunc(cronExpr, func() { job(ctx) })
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}

	c.Start()
	logger.Debug("cron started", "expr", cronExpr)

	<-ctx.Done()

	<-c.Stop().Done()
	logger.Debug("cron stopped", "expr", cronExpr)
	return nil
}
