package main

import (
	"github.com/spf13/cobra"

	"github.com/IshaanNene/NovelGoat/internal/api"
	"github.com/IshaanNene/NovelGoat/internal/media"
	"github.com/IshaanNene/NovelGoat/internal/observability"
	"github.com/IshaanNene/NovelGoat/internal/scraper"
)

// serveCmd creates the "serve" subcommand that runs the JSON API.
func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.API.Port = port
			}

			logger := setupLogger(cfg)
			ctx, cancel := signalContext(logger)
			defer cancel()

			metrics := observability.NewMetrics(logger)
			if cfg.Metrics.Enabled {
				if err := metrics.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
					return err
				}
			}

			sc := scraper.New(cfg, logger, scraper.WithMetrics(metrics))
			srv := api.NewServer(cfg, sc, logger,
				api.WithMetrics(metrics),
				api.WithCovers(media.NewDownloader(cfg.Fetcher, logger)),
			)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "API port (overrides api.port)")
	return cmd
}
