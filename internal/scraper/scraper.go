package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/NovelGoat/internal/config"
	"github.com/IshaanNene/NovelGoat/internal/fetcher"
	"github.com/IshaanNene/NovelGoat/internal/observability"
	"github.com/IshaanNene/NovelGoat/internal/types"
)

// Scraper is the entry point for novel scraping. It holds configuration
// only; every call opens its own fetcher session, so a Scraper is safe for
// concurrent use and never shares page state between calls.
type Scraper struct {
	cfg        *config.Config
	newFetcher fetcher.Factory
	cleaner    *Cleaner
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithFetcherFactory replaces the default HTTP fetcher factory.
func WithFetcherFactory(f fetcher.Factory) Option {
	return func(s *Scraper) { s.newFetcher = f }
}

// WithMetrics records scrape activity on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Scraper) { s.metrics = m }
}

// WithCleaner replaces the default boilerplate cleaner.
func WithCleaner(c *Cleaner) Option {
	return func(s *Scraper) { s.cleaner = c }
}

// New creates a Scraper.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Scraper {
	s := &Scraper{
		cfg:        cfg,
		newFetcher: fetcher.NewHTTPFactory(cfg, logger),
		cleaner:    NewCleaner(),
		logger:     logger.With("component", "scraper"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScrapeNovel fetches a novel's landing page and returns its metadata and
// chapter list. A nil Novel always comes with a non-nil error:
// types.ErrUnavailable when the page could not be fetched,
// types.ErrNoChapters when nothing was found, or the context's error.
func (s *Scraper) ScrapeNovel(ctx context.Context, rawURL string) (*types.Novel, error) {
	rawURL = strings.TrimSpace(rawURL)
	if err := config.ValidateURL(rawURL); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidURL, err)
	}

	sess, err := s.newFetcher()
	if err != nil {
		return nil, fmt.Errorf("open fetcher: %w", err)
	}
	defer sess.Close()

	body, pageURL := s.fetchPage(ctx, sess, rawURL)
	if body == "" {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, types.ErrUnavailable
	}

	doc, err := parseDocument(body)
	if err != nil {
		return nil, &types.ParseError{URL: rawURL, Err: err}
	}

	// Relative links resolve against the address the page was served from.
	family := DetectFamily(doc, pageURL)
	meta, chapters := Extract(doc, pageURL, family, s.extractOptions())
	crawled := false
	if len(chapters) == 0 {
		chapters = s.crawlForward(ctx, sess, doc, body, pageURL)
		crawled = true
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(chapters) == 0 {
		return nil, types.ErrNoChapters
	}

	novel := &types.Novel{
		Title:       meta.Title,
		URL:         rawURL,
		CoverURL:    meta.CoverURL,
		Description: meta.Description,
		Author:      meta.Author,
		Chapters:    chapters,
	}

	s.metrics.RecordNovel()
	s.logger.Info("novel scraped",
		"url", rawURL,
		"family", family.String(),
		"chapters", len(chapters),
		"crawled", crawled,
	)
	return novel, nil
}

// FetchChapter fills in ch's content. It is a no-op when content is already
// present. On failure the content stays empty.
func (s *Scraper) FetchChapter(ctx context.Context, ch *types.Chapter) *types.Chapter {
	if ch == nil || ch.HasContent() {
		return ch
	}

	sess, err := s.newFetcher()
	if err != nil {
		s.logger.Warn("open fetcher failed", "error", err)
		return ch
	}
	defer sess.Close()

	s.fillChapter(ctx, sess, ch)
	return ch
}

// fillChapter fetches ch.URL and stores its content. The page title only
// replaces a missing or placeholder title.
func (s *Scraper) fillChapter(ctx context.Context, sess fetcher.Fetcher, ch *types.Chapter) {
	body, pageURL := s.fetchPage(ctx, sess, ch.URL)
	if body == "" {
		return
	}
	doc, err := parseDocument(body)
	if err != nil {
		s.logger.Warn("parse failed", "url", ch.URL, "error", err)
		return
	}

	ch.Content = s.pageContent(doc, body, pageURL)
	if ch.NeedsTitle() {
		ch.Title = ExtractChapterTitle(doc)
	}
	if ch.HasContent() {
		s.metrics.RecordChapter()
	} else {
		s.logger.Debug("no content found", "url", ch.URL)
	}
}

// pageContent extracts a chapter body, falling back to readability when it
// is enabled and no known container matched.
func (s *Scraper) pageContent(doc *goquery.Document, body, pageURL string) string {
	content := ExtractContent(doc, s.cleaner)
	if content == "" && s.cfg.Scraper.ReadabilityFallback {
		content = readableContent(body, pageURL, s.cleaner)
	}
	return content
}

// fetchPage returns the page body and the URL it was served from after
// redirects. The body is "" on any failure.
func (s *Scraper) fetchPage(ctx context.Context, sess fetcher.Fetcher, rawURL string) (string, string) {
	page, err := sess.Fetch(ctx, rawURL)
	if err != nil {
		s.metrics.RecordFetch(0, err)
		var fe *types.FetchError
		retryable := errors.As(err, &fe) && fe.IsRetryable()
		s.logger.Warn("fetch failed", "url", rawURL, "retryable", retryable, "error", err)
		return "", rawURL
	}
	s.metrics.RecordFetch(page.Size, nil)
	if page.FinalURL == "" {
		return page.Body, rawURL
	}
	return page.Body, page.FinalURL
}

func (s *Scraper) extractOptions() ExtractOptions {
	return ExtractOptions{
		DescriptionLimit: s.cfg.Scraper.DescriptionLimit,
		GenericMinLinks:  s.cfg.Scraper.GenericMinLinks,
	}
}

func parseDocument(body string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(body))
}
