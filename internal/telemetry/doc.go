// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go — structured logging через slog (stdout + файл с ротацией)
//   - metrics.go — Prometheus метрики потребителя, публикации и журнала
//   - tracing.go — OpenTelemetry, экспорт OTLP/HTTP
//
// Все сервисы используют единый формат логирования
// и экспортируют метрики на /metrics endpoint.
package telemetry
