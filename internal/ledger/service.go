// Package ledger записывает ping-события из шины в журнал.
package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/Tracking/internal/dedup"
	"github.com/shaiso/Tracking/internal/domain"
	"github.com/shaiso/Tracking/internal/mq"
	"github.com/shaiso/Tracking/internal/repo"
	"github.com/shaiso/Tracking/internal/telemetry"
)

// Repository — хранилище журнала.
type Repository interface {
	Add(ctx context.Context, m *domain.PingModel) (bool, error)
}

var _ Repository = (*repo.PingRepo)(nil)

// Service — обработчик ping-сообщений.
type Service struct {
	repo   Repository
	store  dedup.Store
	logger *slog.Logger
}

// NewService создаёт Service. store == nil означает отсутствие дедупликации.
func NewService(r Repository, store dedup.Store, logger *slog.Logger) *Service {
	if store == nil {
		store = dedup.NopStore{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   r,
		store:  store,
		logger: logger,
	}
}

// HandlePing — mq.Callback для PingModel.
//
// Невалидный ping возвращается как ошибка формата.
// Недоступность БД возвращается как временная ошибка (повтор в пределах
// MessagePolicy). Сбои хранилища отметок не мешают записи.
func (s *Service) HandlePing(ctx context.Context, produce func() domain.PingModel) error {
	m := produce()
	if err := m.Validate(); err != nil {
		return mq.Malformed(fmt.Errorf("invalid ping: %w", err))
	}

	// Потребитель кладёт в ctx логгер доставки (routing key, delivery tag)
	id := m.Header.MessageID.String()
	logger := telemetry.FromContext(ctx, telemetry.WithMessageID(s.logger, id)).With(
		"correlation_id", m.Header.CorrelationID,
		"chassis_number", m.Body.ChassisNumber,
	)

	seen, err := s.store.Seen(ctx, id)
	switch {
	case err != nil:
		logger.Warn("dedup lookup failed", "error", err)
	case seen:
		telemetry.LedgerWrites.WithLabelValues("duplicate").Inc()
		logger.Info("ping already recorded, skipping")
		return nil
	}

	inserted, err := s.repo.Add(ctx, &m)
	if err != nil {
		telemetry.LedgerWrites.WithLabelValues("error").Inc()
		if repo.IsUnavailable(err) {
			return mq.Transient(err)
		}
		return fmt.Errorf("record ping: %w", err)
	}

	if inserted {
		telemetry.LedgerWrites.WithLabelValues("inserted").Inc()
	} else {
		telemetry.LedgerWrites.WithLabelValues("duplicate").Inc()
	}

	if err := s.store.Remember(ctx, id); err != nil {
		logger.Warn("failed to remember processed ping", "error", err)
	}

	logger.Info("ping recorded",
		"status", m.Body.Status,
		"sender", m.Footer.Sender,
		"route", m.PublisherRoute(),
		"inserted", inserted,
	)
	return nil
}
