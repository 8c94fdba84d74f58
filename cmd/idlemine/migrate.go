package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			setupLogging(cfg.LogLevel)

			_, closeStore, err := openStorage(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			closeStore()
			slog.Info("migrations complete", "storage", cfg.Storage.Driver)
			return nil
		},
	}
}
