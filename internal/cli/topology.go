package cli

import (
	"github.com/spf13/cobra"

	"github.com/shaiso/Tracking/internal/mq"
)

// NewTopologyCmd создаёт команду, показывающую топологию потребителя.
// Соединение с брокером не открывается.
func NewTopologyCmd(deps Deps, outputFn func() *Output) *cobra.Command {
	deps = deps.withDefaults()
	var routes []string

	cmd := &cobra.Command{
		Use:   "topology",
		Short: "Show the exchange, queue and bindings the worker declares",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			_, cfg, err := deps.brokerConfig(routes)
			if err != nil {
				return err
			}

			topo := mq.PlannedTopology(cfg)
			if out.JSONMode() {
				out.JSON(map[string]any{
					"broker":   cfg.String(),
					"exchange": topo.Exchange,
					"kind":     mq.ExchangeKind,
					"prefetch": topo.Prefetch,
					"routes":   topo.Routes,
				})
				return nil
			}

			out.Text(topo.Describe())
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&routes, "route", nil, "Routing key (repeatable; overrides TRACKING_BROKER_ROUTES)")

	return cmd
}
