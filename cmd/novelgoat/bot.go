package main

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"github.com/IshaanNene/NovelGoat/internal/bot"
	"github.com/IshaanNene/NovelGoat/internal/media"
	"github.com/IshaanNene/NovelGoat/internal/observability"
	"github.com/IshaanNene/NovelGoat/internal/scraper"
	"github.com/IshaanNene/NovelGoat/internal/storage"
)

// botCmd creates the "bot" subcommand that runs the Telegram front-end.
func botCmd() *cobra.Command {
	var (
		token   string
		ownerID int64
	)

	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if token != "" {
				cfg.Bot.Token = token
			}
			if ownerID != 0 {
				cfg.Bot.OwnerID = ownerID
			}
			if cfg.Bot.Token == "" {
				return errors.New("bot token is required (--token, bot.token or NOVELGOAT_BOT_TOKEN)")
			}

			logger := setupLogger(cfg)
			ctx, cancel := signalContext(logger)
			defer cancel()

			api, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
			if err != nil {
				return err
			}
			logger.Info("authorized", "bot", api.Self.UserName)

			store, err := storage.New(ctx, cfg.Storage, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			metrics := observability.NewMetrics(logger)
			if cfg.Metrics.Enabled {
				if err := metrics.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
					return err
				}
			}

			sc := scraper.New(cfg, logger, scraper.WithMetrics(metrics))
			b := bot.New(cfg, api, sc, store, logger,
				bot.WithMetrics(metrics),
				bot.WithCovers(media.NewDownloader(cfg.Fetcher, logger)),
			)

			u := tgbotapi.NewUpdate(0)
			u.Timeout = cfg.Bot.PollTimeout
			updates := api.GetUpdatesChan(u)

			go func() {
				<-ctx.Done()
				api.StopReceivingUpdates()
			}()

			logger.Info("bot started", "storage", store.Name())
			if err := b.Run(ctx, updates); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			logger.Info("bot stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Telegram bot token")
	cmd.Flags().Int64Var(&ownerID, "owner", 0, "Telegram user ID allowed to see /stats")
	return cmd
}
