package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shaiso/Tracking/internal/domain"
)

// PingRecord — запись журнала ping.
type PingRecord struct {
	Model      domain.PingModel
	ReceivedAt time.Time
}

// PingRepo — журнал ping-событий (append-only, event sourcing).
type PingRepo struct {
	db DB
}

// NewPingRepo создаёт новый PingRepo.
func NewPingRepo(db DB) *PingRepo {
	return &PingRepo{db: db}
}

// Add записывает ping в журнал.
//
// Повторная запись с тем же MessageID игнорируется:
// inserted = false означает, что сообщение уже было в журнале.
func (r *PingRepo) Add(ctx context.Context, m *domain.PingModel) (bool, error) {
	envelope, err := json.Marshal(m)
	if err != nil {
		return false, fmt.Errorf("marshal envelope: %w", err)
	}

	query := `
		INSERT INTO ping_ledger (message_id, correlation_id, chassis_number, status, message,
		                         pinged_at, sender, environment, route, envelope)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (message_id) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query,
		m.Header.MessageID,
		m.Header.CorrelationID,
		m.Body.ChassisNumber,
		string(m.Body.Status),
		m.Body.Message,
		m.Body.Timestamp,
		m.Footer.Sender,
		m.Footer.Environment,
		m.PublisherRoute(),
		envelope,
	)
	if err != nil {
		return false, fmt.Errorf("insert ping: %w", wrapErr(err))
	}
	return tag.RowsAffected() == 1, nil
}

// ListByChassis возвращает последние ping транспорта, новые первыми.
func (r *PingRepo) ListByChassis(ctx context.Context, chassis string, limit int) ([]PingRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT envelope, received_at
		FROM ping_ledger
		WHERE chassis_number = $1
		ORDER BY pinged_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, chassis, limit)
	if err != nil {
		return nil, fmt.Errorf("list pings: %w", wrapErr(err))
	}
	defer rows.Close()

	var records []PingRecord
	for rows.Next() {
		var (
			envelope []byte
			rec      PingRecord
		)
		if err := rows.Scan(&envelope, &rec.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan ping: %w", err)
		}
		if err := json.Unmarshal(envelope, &rec.Model); err != nil {
			return nil, fmt.Errorf("unmarshal envelope: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pings: %w", wrapErr(err))
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records, nil
}

// DeleteOlderThan удаляет записи, полученные раньше before.
// Возвращает число удалённых строк.
func (r *PingRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM ping_ledger WHERE received_at < $1`

	tag, err := r.db.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("delete pings: %w", wrapErr(err))
	}
	return tag.RowsAffected(), nil
}
