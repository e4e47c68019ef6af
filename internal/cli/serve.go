package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/beacon/internal/wire"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the tick loop, chat consumer and admin server",
		Long: `Run until interrupted: tick every target on the configured interval,
answer chat messages when a Telegram token is set, and serve the admin
HTTP endpoints when admin.listen is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := container(wire.ModeServe)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			type loop struct {
				name string
				run  func(context.Context) error
			}
			loops := []loop{{"ticker", c.Ticker().Run}}
			if consumer := c.Consumer(); consumer != nil {
				loops = append(loops, loop{"consumer", consumer.Run})
			}
			if admin := c.AdminServer(); admin != nil {
				listen := c.Config.Admin.Listen
				loops = append(loops, loop{"admin", func(ctx context.Context) error {
					return admin.ListenAndServe(ctx, listen)
				}})
			}

			c.Logger.Info("beacon serving", "targets", len(c.Config.Targets), "interval", c.Config.Engine.Interval, "loops", len(loops))

			// The first loop to stop takes the others down with it.
			errCh := make(chan error, len(loops))
			for _, l := range loops {
				go func(l loop) {
					err := l.run(ctx)
					if err != nil {
						err = fmt.Errorf("%s: %w", l.name, err)
					}
					cancel()
					errCh <- err
				}(l)
			}

			var errs []error
			for range loops {
				if err := <-errCh; err != nil {
					errs = append(errs, err)
				}
			}

			c.Logger.Info("beacon stopped")
			return errors.Join(errs...)
		},
	}
}
