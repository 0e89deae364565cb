package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Scraper.MaxCrawlHops < 1 {
		return fmt.Errorf("scraper.max_crawl_hops must be >= 1, got %d", cfg.Scraper.MaxCrawlHops)
	}
	if cfg.Scraper.ChapterDelay < 0 {
		return fmt.Errorf("scraper.chapter_delay must be >= 0")
	}
	if cfg.Scraper.DescriptionLimit < 0 {
		return fmt.Errorf("scraper.description_limit must be >= 0, got %d", cfg.Scraper.DescriptionLimit)
	}
	if cfg.Scraper.GenericMinLinks < 1 {
		return fmt.Errorf("scraper.generic_min_links must be >= 1, got %d", cfg.Scraper.GenericMinLinks)
	}
	if cfg.Scraper.MaxChaptersPerDownload < 1 {
		return fmt.Errorf("scraper.max_chapters_per_download must be >= 1, got %d", cfg.Scraper.MaxChaptersPerDownload)
	}

	if cfg.Fetcher.RequestTimeout <= 0 {
		return fmt.Errorf("fetcher.request_timeout must be > 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}

	if cfg.Search.MaxResults < 1 {
		return fmt.Errorf("search.max_results must be >= 1, got %d", cfg.Search.MaxResults)
	}
	if cfg.Search.PerSourceLimit < 1 {
		return fmt.Errorf("search.per_source_limit must be >= 1, got %d", cfg.Search.PerSourceLimit)
	}
	for i, src := range cfg.Search.Sources {
		if !strings.Contains(src.URLTemplate, "{query}") {
			return fmt.Errorf("search.sources[%d] (%s): url_template must contain {query}", i, src.Name)
		}
		if src.ResultSelector == "" {
			return fmt.Errorf("search.sources[%d] (%s): result_selector is required", i, src.Name)
		}
	}

	if cfg.Bot.MessageLimit < 100 || cfg.Bot.MessageLimit > 4096 {
		return fmt.Errorf("bot.message_limit must be 100-4096, got %d", cfg.Bot.MessageLimit)
	}
	if cfg.Bot.ChaptersPerPage < 1 {
		return fmt.Errorf("bot.chapters_per_page must be >= 1, got %d", cfg.Bot.ChaptersPerPage)
	}

	switch cfg.Storage.Type {
	case "memory":
	case "mongodb":
		if cfg.Storage.URI == "" {
			return fmt.Errorf("storage.uri is required for mongodb storage")
		}
	case "sqlite":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for sqlite storage")
		}
	default:
		return fmt.Errorf("storage.type %q is not supported (valid: memory, mongodb, sqlite)", cfg.Storage.Type)
	}

	validFormats := map[string]bool{
		"txt": true, "pdf": true, "epub": true, "json": true,
	}
	if !validFormats[cfg.Export.DefaultFormat] {
		return fmt.Errorf("export.default_format %q is not supported (valid: txt, pdf, epub, json)", cfg.Export.DefaultFormat)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	if cfg.API.Port < 1 || cfg.API.Port > 65535 {
		return fmt.Errorf("api.port must be 1-65535, got %d", cfg.API.Port)
	}
	if cfg.API.MaxJobs < 1 {
		return fmt.Errorf("api.max_jobs must be >= 1, got %d", cfg.API.MaxJobs)
	}

	if cfg.Watch.Interval < time.Minute {
		return fmt.Errorf("watch.interval must be at least 1m, got %s", cfg.Watch.Interval)
	}
	if cfg.Watch.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Watch.Schedule); err != nil {
			return fmt.Errorf("watch.schedule: %w", err)
		}
	}
	if cfg.Watch.Pace < 0 {
		return fmt.Errorf("watch.pace must not be negative, got %s", cfg.Watch.Pace)
	}
	if cfg.Watch.Webhook != "" {
		if err := ValidateURL(cfg.Watch.Webhook); err != nil {
			return fmt.Errorf("watch.webhook: %w", err)
		}
	}

	return nil
}

// ValidateURL checks if a URL string can be scraped.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
