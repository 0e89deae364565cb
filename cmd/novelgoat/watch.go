package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/IshaanNene/NovelGoat/internal/config"
	"github.com/IshaanNene/NovelGoat/internal/monitor"
	"github.com/IshaanNene/NovelGoat/internal/scraper"
)

// watchCmd creates the "watch" subcommand that polls novels for new chapters.
func watchCmd() *cobra.Command {
	var (
		interval time.Duration
		schedule string
		webhook  string
		once     bool
	)

	cmd := &cobra.Command{
		Use:   "watch [url...]",
		Short: "Poll novels and report newly published chapters",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("interval") {
				if interval < time.Minute {
					return errors.New("--interval must be at least 1m")
				}
				cfg.Watch.Interval = interval
			}
			if webhook != "" {
				if err := config.ValidateURL(webhook); err != nil {
					return err
				}
				cfg.Watch.Webhook = webhook
			}
			if schedule != "" {
				cfg.Watch.Schedule = schedule
			}

			opts := []monitor.WatcherOption{monitor.WithPace(cfg.Watch.Pace)}
			if cfg.Watch.Schedule != "" {
				sched, err := cron.ParseStandard(cfg.Watch.Schedule)
				if err != nil {
					return err
				}
				opts = append(opts, monitor.WithSchedule(sched))
			}

			logger := setupLogger(cfg)
			ctx, cancel := signalContext(logger)
			defer cancel()

			detector, err := monitor.NewChangeDetector(cfg.Watch.SnapshotDir, logger)
			if err != nil {
				return err
			}
			notifier := monitor.NewNotifier(logger)
			notifier.AddChannel(&monitor.WriterChannel{W: os.Stdout})
			if cfg.Watch.Webhook != "" {
				notifier.AddChannel(&monitor.WebhookChannel{URL: cfg.Watch.Webhook})
			}

			w := monitor.NewWatcher(scraper.New(cfg, logger), detector, notifier, cfg.Watch.Interval, logger, opts...)
			if once {
				w.Check(ctx, args)
				return nil
			}
			if err := w.Run(ctx, args); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", time.Hour, "time between checks")
	cmd.Flags().StringVar(&schedule, "schedule", "", `cron schedule, e.g. "0 */6 * * *" (overrides --interval)`)
	cmd.Flags().StringVar(&webhook, "webhook", "", "URL to POST updates to")
	cmd.Flags().BoolVar(&once, "once", false, "check once and exit")
	return cmd
}
