package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Tracking/internal/domain"
	"github.com/shaiso/Tracking/internal/mq"
	"github.com/shaiso/Tracking/internal/scheduler"
)

// Sender — имя отправителя в footer сообщений CLI.
const Sender = "tracking-cli"

// NewPublishCmd создаёт группу команд публикации.
func NewPublishCmd(deps Deps, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish messages to the tracking exchange",
	}

	cmd.AddCommand(newPublishPingCmd(deps.withDefaults(), outputFn))

	return cmd
}

func newPublishPingCmd(deps Deps, outputFn func() *Output) *cobra.Command {
	var (
		chassis       string
		status        string
		message       string
		route         string
		correlationID string
		environment   string
		cronExpr      string
	)

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Publish a vehicle ping",
		Example: `  tracking publish ping --chassis WVW123 --status ONLINE
  tracking publish ping --chassis WVW123 --route eu.ping.vehicle --cron "*/1 * * * *"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			vs, err := domain.ParseVehicleStatus(status)
			if err != nil {
				return err
			}

			var corr uuid.UUID
			if correlationID != "" {
				if corr, err = uuid.Parse(correlationID); err != nil {
					return fmt.Errorf("invalid correlation id: %w", err)
				}
			}

			if cronExpr != "" {
				if err := scheduler.ValidateCronExpr(cronExpr); err != nil {
					return err
				}
			}

			b, cfg, err := deps.brokerConfig([]string{route})
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pub, err := mq.NewPublisher(ctx, deps.Dialer, cfg, b.ConnectPolicy(), deps.Logger)
			if err != nil {
				return err
			}
			defer pub.Close()

			send := func(ctx context.Context) error {
				ping := domain.NewPing(chassis, vs, message, corr, domain.Footer{
					Sender:      Sender,
					Assembly:    cmd.Root().Version,
					Environment: environment,
					Route:       map[string]string{domain.RouteKeyPublisher: route},
					Fingerprint: "cli:publish-ping",
				})

				id, err := pub.Publish(ctx, route, mq.Message{
					ID:            ping.Header.MessageID.String(),
					CorrelationID: ping.Header.CorrelationID.String(),
					Timestamp:     ping.Header.CreatedAt,
					Payload:       ping,
				})
				if err != nil {
					return err
				}

				out.Print(
					[]string{"MESSAGE_ID", "ROUTE", "CHASSIS", "STATUS"},
					[][]string{{id, route, ping.Body.ChassisNumber, string(vs)}},
					ping,
				)
				return nil
			}

			if cronExpr == "" {
				return send(ctx)
			}

			out.Success(fmt.Sprintf("Publishing ping on schedule %q, Ctrl+C to stop", cronExpr))
			return scheduler.Run(ctx, cronExpr, deps.Logger, func(ctx context.Context) {
				if err := send(ctx); err != nil {
					out.Error(err.Error())
				}
			})
		},
	}

	cmd.Flags().StringVar(&chassis, "chassis", "", "Vehicle chassis number (required)")
	cmd.Flags().StringVar(&status, "status", string(domain.VehicleStatusOnline), "Vehicle status (ONLINE, OFFLINE, UNKNOWN)")
	cmd.Flags().StringVar(&message, "message", "", "Free-form message")
	cmd.Flags().StringVar(&route, "route", domain.RoutePingSuffix, "Routing key")
	cmd.Flags().StringVar(&correlationID, "correlation-id", "", "Correlation ID (UUID; default: message ID)")
	cmd.Flags().StringVar(&environment, "env", "dev", "Sender environment")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "Publish periodically on a cron schedule")
	cmd.MarkFlagRequired("chassis")

	return cmd
}
