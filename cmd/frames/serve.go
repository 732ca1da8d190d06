package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"imagepacks/internal/config"
	"imagepacks/internal/events"
	"imagepacks/internal/handlers"
	"imagepacks/internal/jobs"
	"imagepacks/internal/log"
	"imagepacks/internal/server"
	"imagepacks/internal/service"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := log.New(cfg.Environment)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			d, err := openDeps(ctx, cfg, logger, true)
			if err != nil {
				logger.Error().Err(err).Msg("startup failed")
				return err
			}
			defer d.Close()

			if err := d.inbox.EnsureSchema(ctx); err != nil {
				logger.Error().Err(err).Msg("ensure schema failed")
				return err
			}

			loc, err := cfg.BucketLocation()
			if err != nil {
				return err
			}
			opts := []service.Option{service.WithLocation(loc)}
			if d.cache != nil {
				opts = append(opts, service.WithPublisher(events.NewStreamPublisher(d.cache, cfg.Redis.Stream)))
			}
			packs := service.NewPackService(d.inbox, d.blobs, logger, opts...)

			handlerSet := handlers.NewHandlerSet(logger, cfg, packs, d.inbox, d.cache)
			httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

			var scheduler *jobs.Scheduler
			if cfg.Sweep.Enabled {
				sweeper := service.NewSweeper(d.inbox, d.blobs, cfg.Sweep.Grace, logger)
				scheduler = jobs.NewScheduler(sweeper, logger)
				if err := scheduler.Start(cfg.Sweep.Schedule); err != nil {
					logger.Error().Err(err).Msg("scheduler start failed")
					return err
				}
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(httpServer.Start)
			g.Go(func() error {
				<-gctx.Done()
				logger.Info().Msg("shutdown signal received")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()

				if scheduler != nil {
					scheduler.Stop(shutdownCtx)
				}
				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					logger.Error().Err(err).Msg("graceful shutdown failed")
					return err
				}
				return nil
			})

			if err := g.Wait(); err != nil {
				logger.Error().Err(err).Msg("server stopped with error")
				return err
			}
			logger.Info().Msg("server exited cleanly")
			return nil
		},
	}
}
