// Package scheduler выполняет периодические задачи по cron-расписанию.
//
// Структура:
//   - cron.go      — парсинг cron-выражений, Run для периодического запуска
//   - retention.go — Retention: удаление записей журнала старше Keep
//
// Использование:
//
//	ret, err := scheduler.NewRetention(scheduler.RetentionConfig{
//	    Pruner:   pingRepo,
//	    Keep:     30 * 24 * time.Hour,
//	    Schedule: "@daily",
//	    Logger:   logger,
//	})
//
//	go ret.Run(ctx)
package scheduler
