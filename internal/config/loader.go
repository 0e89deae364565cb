package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and defaults.
// Priority (highest to lowest): env vars > config file > defaults.
// CLI flag overrides are applied by the caller afterwards.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	// NOVELGOAT_BOT_TOKEN, NOVELGOAT_STORAGE_URI, ...
	v.SetEnvPrefix("NOVELGOAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("novelgoat")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".novelgoat"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper. Every key has to be
// registered for AutomaticEnv to pick up its environment variable.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("scraper.max_crawl_hops", cfg.Scraper.MaxCrawlHops)
	v.SetDefault("scraper.chapter_delay", cfg.Scraper.ChapterDelay)
	v.SetDefault("scraper.description_limit", cfg.Scraper.DescriptionLimit)
	v.SetDefault("scraper.generic_min_links", cfg.Scraper.GenericMinLinks)
	v.SetDefault("scraper.readability_fallback", cfg.Scraper.ReadabilityFallback)
	v.SetDefault("scraper.max_chapters_per_download", cfg.Scraper.MaxChaptersPerDownload)

	v.SetDefault("fetcher.request_timeout", cfg.Fetcher.RequestTimeout)
	v.SetDefault("fetcher.user_agents", cfg.Fetcher.UserAgents)
	v.SetDefault("fetcher.accept_language", cfg.Fetcher.AcceptLanguage)
	v.SetDefault("fetcher.follow_redirects", cfg.Fetcher.FollowRedirects)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)
	v.SetDefault("fetcher.max_idle_conns", cfg.Fetcher.MaxIdleConns)

	v.SetDefault("search.max_results", cfg.Search.MaxResults)
	v.SetDefault("search.per_source_limit", cfg.Search.PerSourceLimit)

	v.SetDefault("bot.token", cfg.Bot.Token)
	v.SetDefault("bot.owner_id", cfg.Bot.OwnerID)
	v.SetDefault("bot.poll_timeout", cfg.Bot.PollTimeout)
	v.SetDefault("bot.session_cache_size", cfg.Bot.SessionCacheSize)
	v.SetDefault("bot.message_limit", cfg.Bot.MessageLimit)
	v.SetDefault("bot.preview_limit", cfg.Bot.PreviewLimit)
	v.SetDefault("bot.chapters_per_page", cfg.Bot.ChaptersPerPage)

	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.uri", cfg.Storage.URI)
	v.SetDefault("storage.database", cfg.Storage.Database)
	v.SetDefault("storage.path", cfg.Storage.Path)

	v.SetDefault("export.output_dir", cfg.Export.OutputDir)
	v.SetDefault("export.default_format", cfg.Export.DefaultFormat)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)

	v.SetDefault("api.port", cfg.API.Port)
	v.SetDefault("api.max_jobs", cfg.API.MaxJobs)

	v.SetDefault("watch.interval", cfg.Watch.Interval)
	v.SetDefault("watch.pace", cfg.Watch.Pace)
	v.SetDefault("watch.schedule", cfg.Watch.Schedule)
	v.SetDefault("watch.snapshot_dir", cfg.Watch.SnapshotDir)
	v.SetDefault("watch.webhook", cfg.Watch.Webhook)
}
