package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Tracking/internal/domain"
	"github.com/shaiso/Tracking/internal/mq"
	"github.com/shaiso/Tracking/internal/repo"
	"github.com/shaiso/Tracking/internal/telemetry"
)

type fakeRepo struct {
	added    []domain.PingModel
	inserted bool
	err      error
}

func (r *fakeRepo) Add(_ context.Context, m *domain.PingModel) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	r.added = append(r.added, *m)
	return r.inserted, nil
}

type fakeStore struct {
	seen       map[string]bool
	seenErr    error
	remembered []string
}

func (s *fakeStore) Seen(_ context.Context, id string) (bool, error) {
	if s.seenErr != nil {
		return false, s.seenErr
	}
	return s.seen[id], nil
}

func (s *fakeStore) Remember(_ context.Context, id string) error {
	s.remembered = append(s.remembered, id)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func producer(m domain.PingModel) func() domain.PingModel {
	return func() domain.PingModel { return m }
}

func TestHandlePing_Records(t *testing.T) {
	r := &fakeRepo{inserted: true}
	store := &fakeStore{}
	s := NewService(r, store, discardLogger())

	m := domain.NewPing("WVW123", domain.VehicleStatusOnline, "", uuid.Nil, domain.Footer{})
	require.NoError(t, s.HandlePing(context.Background(), producer(m)))

	require.Len(t, r.added, 1)
	assert.Equal(t, m.Header.MessageID, r.added[0].Header.MessageID)
	assert.Equal(t, []string{m.Header.MessageID.String()}, store.remembered)
}

func TestHandlePing_SkipsSeen(t *testing.T) {
	m := domain.NewPing("WVW123", domain.VehicleStatusOnline, "", uuid.Nil, domain.Footer{})
	r := &fakeRepo{inserted: true}
	store := &fakeStore{seen: map[string]bool{m.Header.MessageID.String(): true}}
	s := NewService(r, store, discardLogger())

	require.NoError(t, s.HandlePing(context.Background(), producer(m)))
	assert.Empty(t, r.added)
}

func TestHandlePing_StoreFailureNotFatal(t *testing.T) {
	r := &fakeRepo{inserted: true}
	store := &fakeStore{seenErr: errors.New("redis down")}
	s := NewService(r, store, discardLogger())

	m := domain.NewPing("WVW123", domain.VehicleStatusOnline, "", uuid.Nil, domain.Footer{})
	require.NoError(t, s.HandlePing(context.Background(), producer(m)))
	assert.Len(t, r.added, 1)
}

func TestHandlePing_InvalidIsMalformed(t *testing.T) {
	r := &fakeRepo{}
	s := NewService(r, nil, discardLogger())

	m := domain.NewPing("", domain.VehicleStatusOnline, "", uuid.Nil, domain.Footer{})
	err := s.HandlePing(context.Background(), producer(m))

	require.Error(t, err)
	assert.Equal(t, mq.KindFormatCast, mq.KindOf(err))
	assert.ErrorIs(t, err, domain.ErrMissingChassis)
	assert.Empty(t, r.added)
}

func TestHandlePing_ErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want mq.ErrorKind
	}{
		{
			name: "database unavailable is transient",
			err:  fmt.Errorf("insert ping: %w", fmt.Errorf("%w: conn reset", repo.ErrUnavailable)),
			want: mq.KindConnectivity,
		},
		{
			name: "other failures are domain errors",
			err:  errors.New("value too long"),
			want: mq.KindDomain,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewService(&fakeRepo{err: tt.err}, nil, discardLogger())
			m := domain.NewPing("WVW123", domain.VehicleStatusOnline, "", uuid.Nil, domain.Footer{})

			err := s.HandlePing(context.Background(), producer(m))
			require.Error(t, err)
			assert.Equal(t, tt.want, mq.KindOf(err))
		})
	}
}

func TestHandlePing_LogsWithDeliveryLogger(t *testing.T) {
	var own, delivery bytes.Buffer
	s := NewService(&fakeRepo{inserted: true}, nil, slog.New(slog.NewTextHandler(&own, nil)))

	ctx := telemetry.WithLogger(context.Background(),
		slog.New(slog.NewTextHandler(&delivery, nil)).With("delivery_tag", 7))

	m := domain.NewPing("WVW123", domain.VehicleStatusOnline, "", uuid.Nil, domain.Footer{})
	require.NoError(t, s.HandlePing(ctx, producer(m)))

	assert.Empty(t, own.String())
	assert.Contains(t, delivery.String(), "ping recorded")
	assert.Contains(t, delivery.String(), "delivery_tag=7")
	assert.Contains(t, delivery.String(), "chassis_number=WVW123")

	// Без логгера доставки используется собственный, с message_id
	own.Reset()
	m = domain.NewPing("WVW123", domain.VehicleStatusOnline, "", uuid.Nil, domain.Footer{})
	require.NoError(t, s.HandlePing(context.Background(), producer(m)))
	assert.Contains(t, own.String(), "message_id="+m.Header.MessageID.String())
}
