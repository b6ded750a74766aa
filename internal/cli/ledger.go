package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Tracking/internal/config"
	"github.com/shaiso/Tracking/internal/domain"
	"github.com/shaiso/Tracking/internal/repo"
)

// PingLister читает журнал ping.
type PingLister interface {
	ListByChassis(ctx context.Context, chassis string, limit int) ([]repo.PingRecord, error)
}

var _ PingLister = (*repo.PingRepo)(nil)

// openLedger подключается к журналу по настройкам TRACKING_POSTGRES_*.
func openLedger(ctx context.Context) (PingLister, func(), error) {
	pg, err := config.LoadPostgres()
	if err != nil {
		return nil, nil, err
	}

	pool, err := repo.NewPool(ctx, pg.DSN, pg.MaxConns)
	if err != nil {
		return nil, nil, err
	}
	return repo.NewPingRepo(pool), pool.Close, nil
}

// ledgerEntry — запись журнала в JSON-выводе.
type ledgerEntry struct {
	ReceivedAt time.Time        `json:"received_at"`
	Envelope   domain.PingModel `json:"envelope"`
}

// NewLedgerCmd создаёт группу команд журнала.
func NewLedgerCmd(deps Deps, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Query the ping ledger",
	}

	cmd.AddCommand(newLedgerListCmd(deps.withDefaults(), outputFn))

	return cmd
}

func newLedgerListCmd(deps Deps, outputFn func() *Output) *cobra.Command {
	var (
		chassis string
		limit   int
	)

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List recorded pings of a vehicle, newest first",
		Example: `  tracking ledger list --chassis WVW123 --limit 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			if limit < 0 {
				return fmt.Errorf("invalid limit %d", limit)
			}

			lister, closeFn, err := deps.OpenLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			records, err := lister.ListByChassis(cmd.Context(), chassis, limit)
			if errors.Is(err, repo.ErrNotFound) {
				if out.JSONMode() {
					out.JSON([]ledgerEntry{})
					return nil
				}
				out.Success(fmt.Sprintf("No pings recorded for %s", chassis))
				return nil
			}
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(records))
			entries := make([]ledgerEntry, 0, len(records))
			for _, rec := range records {
				m := rec.Model
				rows = append(rows, []string{
					m.Body.Timestamp.Format(time.RFC3339),
					m.Header.MessageID.String(),
					string(m.Body.Status),
					valueOr(m.Footer.Sender, "-"),
					valueOr(m.PublisherRoute(), "-"),
					valueOr(m.Body.Message, "-"),
				})
				entries = append(entries, ledgerEntry{ReceivedAt: rec.ReceivedAt, Envelope: m})
			}

			out.Print(
				[]string{"PINGED_AT", "MESSAGE_ID", "STATUS", "SENDER", "ROUTE", "MESSAGE"},
				rows,
				entries,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&chassis, "chassis", "", "Vehicle chassis number (required)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of pings (0 = 50)")
	cmd.MarkFlagRequired("chassis")

	return cmd
}
