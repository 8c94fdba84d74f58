package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/udisondev/idlemine/internal/config"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "idlemine",
		Short:         "Idle mining game server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
	root.PersistentFlags().String("config", "", "Path to YAML config (overrides IDLEMINE_CONFIG)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newXPTableCmd())
	return root
}

// loadConfig resolves --config, then IDLEMINE_CONFIG, then the default path.
func loadConfig(cmd *cobra.Command) (config.Server, error) {
	flagPath, _ := cmd.Flags().GetString("config")
	path := config.ResolvePath(flagPath)
	cfg, err := config.LoadServer(path)
	if err != nil {
		return config.Server{}, fmt.Errorf("loading config %s: %w", path, err)
	}
	return cfg, nil
}
