package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/beacon/internal/ctxutil"
	"github.com/example/beacon/internal/wire"
)

// BroadcastCmd returns the broadcast command
func BroadcastCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "broadcast [message]",
		Short: "Send a message to every recipient",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subscribedOnly, _ := cmd.Flags().GetBool("subscribed")

			c, err := container(wire.ModeCLI)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := ctxutil.WithActorID(cmd.Context(), ctxutil.ActorCLI)
			return c.NotificationAdapterWithOutput(cmd.OutOrStdout()).Broadcast(ctx, strings.Join(args, " "), subscribedOnly)
		},
	}
	cmd.Flags().Bool("subscribed", false, "Only send to recipients subscribed to broadcasts")
	return cmd
}

// SendCmd returns the send command
func SendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send [username] [message]",
		Short: "Send a message to one recipient by username",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := container(wire.ModeCLI)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := ctxutil.WithActorID(cmd.Context(), ctxutil.ActorCLI)
			return c.NotificationAdapterWithOutput(cmd.OutOrStdout()).Send(ctx, args[0], strings.Join(args[1:], " "))
		},
	}
}

// RecipientsCmd returns the recipients command
func RecipientsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipients",
		Short: "List chat recipients",
		RunE: func(cmd *cobra.Command, args []string) error {
			subscribed, _ := cmd.Flags().GetBool("subscribed")
			unsubscribed, _ := cmd.Flags().GetBool("unsubscribed")
			if subscribed && unsubscribed {
				return fmt.Errorf("--subscribed and --unsubscribed are mutually exclusive")
			}

			var filter *bool
			switch {
			case subscribed:
				filter = &subscribed
			case unsubscribed:
				no := false
				filter = &no
			}

			c, err := container(wire.ModeCLI)
			if err != nil {
				return err
			}
			defer c.Close()

			return c.NotificationAdapterWithOutput(cmd.OutOrStdout()).Recipients(cmd.Context(), filter)
		},
	}
	cmd.Flags().Bool("subscribed", false, "Only list subscribed recipients")
	cmd.Flags().Bool("unsubscribed", false, "Only list unsubscribed recipients")
	return cmd
}
