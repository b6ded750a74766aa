package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOptions — настройки логгера.
type LogOptions struct {
	// Level: DEBUG, INFO, WARN, ERROR. По умолчанию INFO.
	Level string

	// Format: "json" (по умолчанию) или "text".
	Format string

	// File — путь к файлу логов с ротацией (пустой — только stdout).
	File string

	// Component добавляется ко всем записям.
	Component string
}

// ParseLevel разбирает уровень логирования.
// Неизвестные значения дают INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger инициализирует глобальный логгер.
//
// Формат вывода:
//   - "json" (по умолчанию) — JSON формат для production
//   - "text" — человекочитаемый формат для разработки
//
// Если задан File, записи дублируются в файл с ротацией.
// Возвращаемая функция закрывает файл.
func SetupLogger(opts LogOptions) (*slog.Logger, func() error) {
	var (
		out     io.Writer = os.Stdout
		closeFn           = func() error { return nil }
	)

	if opts.File != "" {
		rot := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50, // MB
			MaxBackups: 3,
			MaxAge:     7, // days
		}
		out = io.MultiWriter(os.Stdout, rot)
		closeFn = rot.Close
	}

	logger := slog.New(newHandler(out, opts))
	if opts.Component != "" {
		logger = logger.With("component", opts.Component)
	}
	slog.SetDefault(logger)

	return logger, closeFn
}

func newHandler(w io.Writer, opts LogOptions) slog.Handler {
	level := ParseLevel(opts.Level)
	hopts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	if strings.EqualFold(opts.Format, "text") {
		return slog.NewTextHandler(w, hopts)
	}
	return slog.NewJSONHandler(w, hopts)
}

// Ключи контекста для передачи данных в логгер.
type ctxKey string

const (
	// CtxLogger — ключ для логгера в контексте.
	CtxLogger ctxKey = "logger"
)

// WithLogger добавляет логгер в контекст.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, CtxLogger, logger)
}

// FromContext извлекает логгер из контекста.
// Если логгер не найден, возвращает fallback, а при fallback == nil глобальный.
func FromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(CtxLogger).(*slog.Logger); ok && logger != nil {
		return logger
	}
	if fallback != nil {
		return fallback
	}
	return slog.Default()
}

// WithRoutingKey возвращает логгер с добавленным routing_key.
func WithRoutingKey(logger *slog.Logger, key string) *slog.Logger {
	return logger.With("routing_key", key)
}

// WithMessageID возвращает логгер с добавленным message_id.
func WithMessageID(logger *slog.Logger, id string) *slog.Logger {
	return logger.With("message_id", id)
}
