package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters for the scraper and bot. All record
// methods are safe on a nil *Metrics.
type Metrics struct {
	// Fetch metrics
	FetchesTotal    atomic.Int64
	FetchesFailed   atomic.Int64
	BytesDownloaded atomic.Int64

	// Scrape metrics
	NovelsScraped   atomic.Int64
	ChaptersFetched atomic.Int64
	Searches        atomic.Int64
	Exports         atomic.Int64

	// Bot metrics
	MessagesHandled  atomic.Int64
	CallbacksHandled atomic.Int64

	// API metrics
	APIRequests atomic.Int64

	startedAt time.Time
	logger    *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		startedAt: time.Now(),
		logger:    logger.With("component", "metrics"),
	}
}

// RecordFetch counts one fetch attempt.
func (m *Metrics) RecordFetch(size int, err error) {
	if m == nil {
		return
	}
	m.FetchesTotal.Add(1)
	if err != nil {
		m.FetchesFailed.Add(1)
		return
	}
	m.BytesDownloaded.Add(int64(size))
}

func (m *Metrics) RecordNovel() {
	if m != nil {
		m.NovelsScraped.Add(1)
	}
}

func (m *Metrics) RecordChapter() {
	if m != nil {
		m.ChaptersFetched.Add(1)
	}
}

func (m *Metrics) RecordSearch() {
	if m != nil {
		m.Searches.Add(1)
	}
}

func (m *Metrics) RecordExport() {
	if m != nil {
		m.Exports.Add(1)
	}
}

func (m *Metrics) RecordMessage() {
	if m != nil {
		m.MessagesHandled.Add(1)
	}
}

func (m *Metrics) RecordCallback() {
	if m != nil {
		m.CallbacksHandled.Add(1)
	}
}

func (m *Metrics) RecordAPIRequest() {
	if m != nil {
		m.APIRequests.Add(1)
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		value int64
	}{
		{"novelgoat_fetches_total", "Total page fetches", m.FetchesTotal.Load()},
		{"novelgoat_fetches_failed_total", "Total failed page fetches", m.FetchesFailed.Load()},
		{"novelgoat_bytes_downloaded_total", "Total bytes downloaded", m.BytesDownloaded.Load()},
		{"novelgoat_novels_scraped_total", "Total novels scraped", m.NovelsScraped.Load()},
		{"novelgoat_chapters_fetched_total", "Total chapters with content", m.ChaptersFetched.Load()},
		{"novelgoat_searches_total", "Total searches", m.Searches.Load()},
		{"novelgoat_exports_total", "Total export files written", m.Exports.Load()},
		{"novelgoat_messages_total", "Total bot messages handled", m.MessagesHandled.Load()},
		{"novelgoat_callbacks_total", "Total bot callbacks handled", m.CallbacksHandled.Load()},
		{"novelgoat_api_requests_total", "Total API requests", m.APIRequests.Load()},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", metric.name)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// Handler returns the HTTP handler for the metrics path plus "/" and
// "/health", which answer "ok" for uptime probes.
func (m *Metrics) Handler(path string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	health := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	}
	mux.HandleFunc("/health", health)
	mux.HandleFunc("/{$}", health)
	return mux
}

// StartServer serves Handler on port until ctx is done.
func (m *Metrics) StartServer(ctx context.Context, port int, path string) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           m.Handler(path),
		ReadHeaderTimeout: 10 * time.Second,
	}
	m.logger.Info("metrics server starting", "addr", srv.Addr, "path", path)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return nil
}

// Snapshot returns all metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"fetches_total":    m.FetchesTotal.Load(),
		"fetches_failed":   m.FetchesFailed.Load(),
		"bytes_downloaded": m.BytesDownloaded.Load(),
		"novels_scraped":   m.NovelsScraped.Load(),
		"chapters_fetched": m.ChaptersFetched.Load(),
		"searches":         m.Searches.Load(),
		"exports":          m.Exports.Load(),
		"messages":         m.MessagesHandled.Load(),
		"callbacks":        m.CallbacksHandled.Load(),
		"api_requests":     m.APIRequests.Load(),
		"uptime_seconds":   int64(time.Since(m.startedAt).Seconds()),
	}
}
