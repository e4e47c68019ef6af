package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/beacon/internal/cli"
	"github.com/example/beacon/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "beacon",
		Short:   "Beacon - game server presence tracking and chat notifications",
		Version: version.String(),
		Long: `Beacon probes game servers, keeps their liveness and player rosters in a
database, and notifies chat recipients when servers go down, come back, or
when players they follow join.`,
		SilenceUsage: true,
	}
	cli.BindGlobalFlags(rootCmd)

	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.MigrateCmd())
	rootCmd.AddCommand(cli.ServeCmd())

	// One-shot commands
	rootCmd.AddCommand(cli.TickCmd())
	rootCmd.AddCommand(cli.StatusCmd())
	rootCmd.AddCommand(cli.BroadcastCmd())
	rootCmd.AddCommand(cli.SendCmd())
	rootCmd.AddCommand(cli.RecipientsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
