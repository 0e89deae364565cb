package config

import (
	"os"
	"path/filepath"
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for NovelGoat.
type Config struct {
	Scraper ScraperConfig `mapstructure:"scraper" yaml:"scraper"`
	Fetcher FetcherConfig `mapstructure:"fetcher" yaml:"fetcher"`
	Search  SearchConfig  `mapstructure:"search"  yaml:"search"`
	Bot     BotConfig     `mapstructure:"bot"     yaml:"bot"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Export  ExportConfig  `mapstructure:"export"  yaml:"export"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	API     APIConfig     `mapstructure:"api"     yaml:"api"`
	Watch   WatchConfig   `mapstructure:"watch"   yaml:"watch"`
}

// ScraperConfig controls extraction, crawling and batch fetching.
type ScraperConfig struct {
	MaxCrawlHops           int           `mapstructure:"max_crawl_hops"            yaml:"max_crawl_hops"`
	ChapterDelay           time.Duration `mapstructure:"chapter_delay"             yaml:"chapter_delay"`
	DescriptionLimit       int           `mapstructure:"description_limit"         yaml:"description_limit"`
	GenericMinLinks        int           `mapstructure:"generic_min_links"         yaml:"generic_min_links"`
	ReadabilityFallback    bool          `mapstructure:"readability_fallback"      yaml:"readability_fallback"`
	MaxChaptersPerDownload int           `mapstructure:"max_chapters_per_download" yaml:"max_chapters_per_download"`
}

// FetcherConfig controls the HTTP fetcher.
type FetcherConfig struct {
	RequestTimeout  time.Duration `mapstructure:"request_timeout"   yaml:"request_timeout"`
	UserAgents      []string      `mapstructure:"user_agents"       yaml:"user_agents"`
	AcceptLanguage  string        `mapstructure:"accept_language"   yaml:"accept_language"`
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
}

// SearchConfig controls novel search across aggregator sites.
type SearchConfig struct {
	MaxResults     int            `mapstructure:"max_results"      yaml:"max_results"`
	PerSourceLimit int            `mapstructure:"per_source_limit" yaml:"per_source_limit"`
	Sources        []SearchSource `mapstructure:"sources"          yaml:"sources"`
}

// SearchSource describes one site's search page. URLTemplate contains a
// {query} placeholder.
type SearchSource struct {
	Name           string `mapstructure:"name"            yaml:"name"`
	URLTemplate    string `mapstructure:"url_template"    yaml:"url_template"`
	ResultSelector string `mapstructure:"result_selector" yaml:"result_selector"`
	ImageSelector  string `mapstructure:"image_selector"  yaml:"image_selector"`
}

// BotConfig controls the Telegram front-end.
type BotConfig struct {
	Token            string `mapstructure:"token"              yaml:"token"`
	OwnerID          int64  `mapstructure:"owner_id"           yaml:"owner_id"`
	PollTimeout      int    `mapstructure:"poll_timeout"       yaml:"poll_timeout"`
	SessionCacheSize int    `mapstructure:"session_cache_size" yaml:"session_cache_size"`
	MessageLimit     int    `mapstructure:"message_limit"      yaml:"message_limit"`
	PreviewLimit     int    `mapstructure:"preview_limit"      yaml:"preview_limit"`
	ChaptersPerPage  int    `mapstructure:"chapters_per_page"  yaml:"chapters_per_page"`
}

// StorageConfig controls the user/settings/stats store.
type StorageConfig struct {
	Type     string `mapstructure:"type"     yaml:"type"`
	URI      string `mapstructure:"uri"      yaml:"uri"`
	Database string `mapstructure:"database" yaml:"database"`
	// Path is the database file for sqlite storage.
	Path string `mapstructure:"path" yaml:"path"`
}

// ExportConfig controls file exports.
type ExportConfig struct {
	OutputDir     string `mapstructure:"output_dir"     yaml:"output_dir"`
	DefaultFormat string `mapstructure:"default_format" yaml:"default_format"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the metrics and health endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// APIConfig controls the JSON HTTP API.
type APIConfig struct {
	Port    int `mapstructure:"port"     yaml:"port"`
	MaxJobs int `mapstructure:"max_jobs" yaml:"max_jobs"`
}

// WatchConfig controls polling novels for new chapters.
type WatchConfig struct {
	Interval    time.Duration `mapstructure:"interval"     yaml:"interval"`
	Pace        time.Duration `mapstructure:"pace"         yaml:"pace"`
	Schedule    string        `mapstructure:"schedule"     yaml:"schedule"`
	SnapshotDir string        `mapstructure:"snapshot_dir" yaml:"snapshot_dir"`
	Webhook     string        `mapstructure:"webhook"      yaml:"webhook"`
}

// DefaultSearchSources are the aggregator search pages tried in order.
func DefaultSearchSources() []SearchSource {
	return []SearchSource{
		{
			Name:           "novelpub",
			URLTemplate:    "https://novelpub.com/search?keywords={query}",
			ResultSelector: ".novel-item",
			ImageSelector:  "img",
		},
		{
			Name:           "readnovelfull",
			URLTemplate:    "https://readnovelfull.com/novel-list/search?keyword={query}",
			ResultSelector: ".col-novel-main .list-novel .row",
			ImageSelector:  "img.cover",
		},
		{
			Name:           "mtlnovel",
			URLTemplate:    "https://www.mtlnovel.com/?s={query}",
			ResultSelector: "article.post",
			ImageSelector:  "img",
		},
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Scraper: ScraperConfig{
			MaxCrawlHops:           2000,
			ChapterDelay:           300 * time.Millisecond,
			DescriptionLimit:       1000,
			GenericMinLinks:        3,
			ReadabilityFallback:    false,
			MaxChaptersPerDownload: 500,
		},
		Fetcher: FetcherConfig{
			RequestTimeout: 30 * time.Second,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
			AcceptLanguage:  "en-US,en;q=0.9",
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    10,
		},
		Search: SearchConfig{
			MaxResults:     10,
			PerSourceLimit: 5,
			Sources:        DefaultSearchSources(),
		},
		Bot: BotConfig{
			PollTimeout:      60,
			SessionCacheSize: 256,
			MessageLimit:     4000,
			PreviewLimit:     3500,
			ChaptersPerPage:  10,
		},
		Storage: StorageConfig{
			Type:     "memory",
			Database: "NovelScraper",
			Path:     "novelgoat.db",
		},
		Export: ExportConfig{
			OutputDir:     filepath.Join(os.TempDir(), "novelgoat"),
			DefaultFormat: "txt",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    8080,
			Path:    "/metrics",
		},
		API: APIConfig{
			Port:    8090,
			MaxJobs: 100,
		},
		Watch: WatchConfig{
			Interval:    time.Hour,
			Pace:        2 * time.Second,
			SnapshotDir: filepath.Join(os.TempDir(), "novelgoat", "snapshots"),
		},
	}
}
