package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/NovelGoat/internal/config"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "novelgoat",
		Short: "NovelGoat: web novel scraper, downloader and Telegram bot",
		Long: `NovelGoat scrapes web novels from aggregator sites.

Features:
  • Site family detection (Madara, NovelFull, NovelPub, MTLNovel, listed, generic)
  • Chapter lists from landing pages, or a next-link crawl from a chapter page
  • Boilerplate-free chapter text
  • Search across aggregator sites
  • TXT, EPUB, PDF and JSON downloads
  • Telegram bot front-end with per-user settings and progress
  • JSON HTTP API with background download jobs
  • Watching novels for new chapters`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(scrapeCmd())
	rootCmd.AddCommand(chapterCmd())
	rootCmd.AddCommand(downloadCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(botCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setupLogger creates a structured logger from the logging config.
func setupLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down...", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("NovelGoat %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	var asYAML bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if asYAML {
				return config.WriteYAML(os.Stdout, cfg)
			}
			fmt.Printf("Scraper:\n")
			fmt.Printf("  Max Crawl Hops:      %d\n", cfg.Scraper.MaxCrawlHops)
			fmt.Printf("  Chapter Delay:       %s\n", cfg.Scraper.ChapterDelay)
			fmt.Printf("  Description Limit:   %d\n", cfg.Scraper.DescriptionLimit)
			fmt.Printf("  Generic Min Links:   %d\n", cfg.Scraper.GenericMinLinks)
			fmt.Printf("  Readability:         %v\n", cfg.Scraper.ReadabilityFallback)
			fmt.Printf("  Max Per Download:    %d\n", cfg.Scraper.MaxChaptersPerDownload)
			fmt.Printf("\nFetcher:\n")
			fmt.Printf("  Request Timeout:     %s\n", cfg.Fetcher.RequestTimeout)
			fmt.Printf("  Follow Redirects:    %v\n", cfg.Fetcher.FollowRedirects)
			fmt.Printf("  Max Body Size:       %d bytes\n", cfg.Fetcher.MaxBodySize)
			fmt.Printf("  User Agents:         %d configured\n", len(cfg.Fetcher.UserAgents))
			fmt.Printf("\nSearch:\n")
			fmt.Printf("  Max Results:         %d\n", cfg.Search.MaxResults)
			for _, src := range cfg.Search.Sources {
				fmt.Printf("  Source:              %s\n", src.Name)
			}
			fmt.Printf("\nBot:\n")
			fmt.Printf("  Token Set:           %v\n", cfg.Bot.Token != "")
			fmt.Printf("  Owner ID:            %d\n", cfg.Bot.OwnerID)
			fmt.Printf("  Session Cache:       %d\n", cfg.Bot.SessionCacheSize)
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Type:                %s\n", cfg.Storage.Type)
			fmt.Printf("  Database:            %s\n", cfg.Storage.Database)
			fmt.Printf("  Path:                %s\n", cfg.Storage.Path)
			fmt.Printf("\nExport:\n")
			fmt.Printf("  Output Dir:          %s\n", cfg.Export.OutputDir)
			fmt.Printf("  Default Format:      %s\n", cfg.Export.DefaultFormat)
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:             %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Port:                %d\n", cfg.Metrics.Port)
			fmt.Printf("\nAPI:\n")
			fmt.Printf("  Port:                %d\n", cfg.API.Port)
			fmt.Printf("  Max Jobs:            %d\n", cfg.API.MaxJobs)
			fmt.Printf("\nWatch:\n")
			fmt.Printf("  Interval:            %s\n", cfg.Watch.Interval)
			fmt.Printf("  Pace:                %s\n", cfg.Watch.Pace)
			if cfg.Watch.Schedule != "" {
				fmt.Printf("  Schedule:            %s\n", cfg.Watch.Schedule)
			}
			fmt.Printf("  Snapshot Dir:        %s\n", cfg.Watch.SnapshotDir)
			fmt.Printf("  Webhook Set:         %v\n", cfg.Watch.Webhook != "")
			return nil
		},
	}

	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print the effective config as YAML (secrets redacted)")
	return cmd
}
