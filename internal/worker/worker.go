package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Runner — компонент, работающий до отмены ctx.
// mq.Consumer и scheduler.Retention реализуют этот интерфейс.
type Runner interface {
	Run(ctx context.Context) error
}

// Worker — хост потребителя сообщений.
//
// Запускает в фоне:
//   - Consumer: соединение, топология, обработка доставок
//   - Retention (опционально): периодическая очистка журнала
//
// Фатальная ошибка потребителя (исчерпаны попытки подключения,
// отказ в доступе, ошибка домена при StopOnFailure) доставляется через Err().
type Worker struct {
	consumer  Runner
	retention Runner
	logger    *slog.Logger

	// Lifecycle
	errCh      chan error
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	// Consumer — потребитель сообщений (обязателен).
	Consumer Runner

	// Retention — очистка журнала (опционально).
	Retention Runner

	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		consumer:  cfg.Consumer,
		retention: cfg.Retention,
		logger:    logger,
		errCh:     make(chan error, 1),
	}
}

// Start запускает Worker. Не блокирует.
func (w *Worker) Start(ctx context.Context) error {
	if w.consumer == nil {
		return ErrNoConsumer
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker", "retention", w.retention != nil)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		err := w.consumer.Run(ctx)
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}

		w.logger.Error("consumer failed", "error", err)
		w.errCh <- err
	}()

	if w.retention != nil {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.retention.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("retention error", "error", err)
			}
		}()
	}

	w.logger.Info("worker started")
	return nil
}

// Err возвращает канал фатальной ошибки потребителя.
// Канал не закрывается; после ошибки хост должен вызвать Stop.
func (w *Worker) Err() <-chan error {
	return w.errCh
}

// Stop останавливает Worker и ждёт завершения горутин.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}

	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}
