package main

import (
	"github.com/spf13/cobra"

	"imagepacks/internal/config"
	"imagepacks/internal/log"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the inbox table if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := log.New(cfg.Environment)

			d, err := openDeps(cmd.Context(), cfg, logger, false)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := d.inbox.EnsureSchema(cmd.Context()); err != nil {
				return err
			}
			logger.Info().Str("driver", cfg.Database.Driver).Msg("schema up to date")
			return nil
		},
	}
}
