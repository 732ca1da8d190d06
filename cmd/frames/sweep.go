package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"imagepacks/internal/config"
	"imagepacks/internal/log"
	"imagepacks/internal/service"
)

func newSweepCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove stored images that no pack refers to",
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

			sweeper := service.NewSweeper(d.inbox, d.blobs, cfg.Sweep.Grace, logger)
			report, err := sweeper.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "buckets=%d scanned=%d removed=%d failed=%d\n",
				report.Buckets, report.Scanned, report.Removed, report.Failed)
			return nil
		},
	}
}
