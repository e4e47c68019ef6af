package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/beacon/internal/ctxutil"
	"github.com/example/beacon/internal/ports/primary"
	"github.com/example/beacon/internal/wire"
)

// TickCmd returns the tick command
func TickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tick [target...]",
		Short: "Probe targets once and apply the result",
		Long: `Probe every configured target (or only the named ones) once, persist the
observed state and deliver any resulting notifications before exiting.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := container(wire.ModeCLI)
			if err != nil {
				return err
			}
			defer c.Close()

			specs, err := selectTargets(c.Targets(), args)
			if err != nil {
				return err
			}

			ctx := ctxutil.WithActorID(cmd.Context(), ctxutil.ActorCLI)
			return c.PresenceAdapterWithOutput(cmd.OutOrStdout()).Tick(ctx, specs)
		},
	}
}

// StatusCmd returns the status command
func StatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the persisted state of every target",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := container(wire.ModeCLI)
			if err != nil {
				return err
			}
			defer c.Close()

			return c.PresenceAdapterWithOutput(cmd.OutOrStdout()).Status(cmd.Context())
		},
	}
}

// selectTargets keeps the configured targets named in names, in config order.
// No names selects every target.
func selectTargets(all []primary.TargetSpec, names []string) ([]primary.TargetSpec, error) {
	if len(names) == 0 {
		return all, nil
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	var specs []primary.TargetSpec
	for _, s := range all {
		if wanted[s.Name] {
			specs = append(specs, s)
			delete(wanted, s.Name)
		}
	}
	for n := range wanted {
		return nil, fmt.Errorf("unknown target: %s", n)
	}
	return specs, nil
}
