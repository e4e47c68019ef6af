package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/beacon/internal/config"
	"github.com/example/beacon/internal/db"
)

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config and create the database",
		Long: `Write a default beacon.yaml (unless one exists) and create the database
it points at with the current schema.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			out := cmd.OutOrStdout()

			_, statErr := os.Stat(configPath)
			if statErr == nil && !force {
				fmt.Fprintf(out, "Config %s already exists, keeping it\n", configPath)
			} else {
				if err := config.SaveConfig(configPath, config.DefaultConfig()); err != nil {
					return err
				}
				fmt.Fprintf(out, "✓ Config written to %s\n", configPath)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			conn, _, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
			if err != nil {
				return err
			}
			defer conn.Close()

			fmt.Fprintf(out, "✓ Database initialized (%s)\n", cfg.Database.Driver)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Next steps:")
			fmt.Fprintf(out, "  edit %s (targets, telegram token)\n", configPath)
			fmt.Fprintln(out, "  beacon tick")
			fmt.Fprintln(out, "  beacon serve")

			return nil
		},
	}
	cmd.Flags().Bool("force", false, "Overwrite an existing config file")
	return cmd
}

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			conn, dialect, err := db.Connect(cfg.Database.Driver, cfg.Database.DSN)
			if err != nil {
				return err
			}
			defer conn.Close()

			current, err := db.CurrentVersion(conn)
			if err != nil {
				return err
			}
			if current == 0 {
				if err := db.InitSchema(conn, dialect); err != nil {
					return err
				}
				fmt.Fprintf(out, "✓ Schema created at version %d\n", db.LatestVersion())
				return nil
			}

			applied, err := db.RunMigrations(conn, dialect)
			for _, m := range applied {
				fmt.Fprintf(out, "✓ Applied migration %d: %s\n", m.Version, m.Name)
			}
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintf(out, "Schema is up to date (version %d)\n", current)
			}
			return nil
		},
	}
}
