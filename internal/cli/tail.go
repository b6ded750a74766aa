package cli

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/shaiso/Tracking/internal/domain"
	"github.com/shaiso/Tracking/internal/mq"
)

// NewTailCmd создаёт команду, печатающую сообщения с привязанных маршрутов.
//
// Использует собственную exclusive-очередь: сообщения не забираются
// у воркеров, а копируются.
func NewTailCmd(deps Deps, outputFn func() *Output) *cobra.Command {
	deps = deps.withDefaults()
	var (
		routes []string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print messages arriving on the tracking exchange",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			b, cfg, err := deps.brokerConfig(routes)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			var seen atomic.Int64
			callback := func(_ context.Context, produce func() domain.Envelope[json.RawMessage]) error {
				m := produce()
				printEnvelope(out, m)

				if limit > 0 && seen.Add(1) >= int64(limit) {
					cancel()
				}
				return nil
			}

			consumer, err := mq.NewConsumer(mq.ConsumerConfig[domain.Envelope[json.RawMessage]]{
				Broker:        cfg,
				Dialer:        deps.Dialer,
				Callback:      callback,
				ConnectPolicy: b.ConnectPolicy(),
				MessagePolicy: b.MessagePolicy(),
				Logger:        deps.Logger,
			})
			if err != nil {
				return err
			}

			out.Success("Waiting for messages, Ctrl+C to stop")

			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&routes, "route", nil, "Routing key pattern (repeatable; overrides TRACKING_BROKER_ROUTES)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Exit after N messages (0 = unlimited)")

	return cmd
}

func printEnvelope(out *Output, m domain.Envelope[json.RawMessage]) {
	if out.JSONMode() {
		out.JSON(m)
		return
	}

	out.Line(
		m.Header.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		m.Header.MessageID.String(),
		valueOr(m.Footer.Sender, "-"),
		valueOr(m.PublisherRoute(), "-"),
		string(m.Body),
	)
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
