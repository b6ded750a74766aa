// Tracking CLI — инструмент командной строки для работы с шиной трекинга.
//
// Использование:
//
//	tracking [--json] <command> [flags]
//
// Команды:
//
//	publish ping  Публикация ping транспортного средства
//	topology      Топология, которую объявляет воркер
//	tail          Печать сообщений с маршрутов
//	ledger list   Ping транспорта из журнала
//
// Подключение к брокеру настраивается переменными TRACKING_BROKER_*,
// к журналу — TRACKING_POSTGRES_*.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/Tracking/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "tracking",
		Short:         "Tracking CLI — vehicle tracking message bus tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }
	deps := cli.Deps{}

	rootCmd.AddCommand(
		cli.NewPublishCmd(deps, outputFn),
		cli.NewTopologyCmd(deps, outputFn),
		cli.NewTailCmd(deps, outputFn),
		cli.NewLedgerCmd(deps, outputFn),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
}
