// Package cli holds the beacon cobra commands.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/beacon/internal/config"
	"github.com/example/beacon/internal/wire"
)

var configPath string

// BindGlobalFlags registers flags shared by every command.
func BindGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the beacon config file")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config %s not found (run 'beacon init' first)", configPath)
	}
	return cfg, err
}

// container loads the config and wires the application for mode.
func container(mode wire.Mode) (*wire.Container, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return wire.Init(cfg, mode)
}
