// Package monitor watches novels for newly published chapters.
package monitor

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/IshaanNene/NovelGoat/internal/types"
)

// Update describes the chapters that appeared since the last check.
type Update struct {
	NovelURL    string           `json:"novel_url"`
	Title       string           `json:"title"`
	First       bool             `json:"first"`
	Total       int              `json:"total"`
	NewChapters []*types.Chapter `json:"new_chapters,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
}

// HasNews reports whether a notification is warranted. The first check of
// a novel only records a baseline.
func (u Update) HasNews() bool {
	return !u.First && len(u.NewChapters) > 0
}

// snapshot is the stored chapter list of one novel.
type snapshot struct {
	Title     string    `json:"title"`
	URLs      []string  `json:"urls"`
	CheckedAt time.Time `json:"checked_at"`
}

// ChangeDetector compares scraped chapter lists against snapshots kept on
// disk, one JSON file per novel URL.
type ChangeDetector struct {
	snapshotDir string
	logger      *slog.Logger
	mu          sync.Mutex
	now         func() time.Time
}

// NewChangeDetector creates a new change detector.
func NewChangeDetector(snapshotDir string, logger *slog.Logger) (*ChangeDetector, error) {
	if err := os.MkdirAll(snapshotDir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &ChangeDetector{
		snapshotDir: snapshotDir,
		logger:      logger.With("component", "change_detector"),
		now:         time.Now,
	}, nil
}

// Detect compares novel against its last snapshot, stores the new
// snapshot and returns the chapters whose URLs were not seen before.
func (cd *ChangeDetector) Detect(novel *types.Novel) (Update, error) {
	cd.mu.Lock()
	defer cd.mu.Unlock()

	now := cd.now()
	up := Update{
		NovelURL:  novel.URL,
		Title:     novel.Title,
		Total:     len(novel.Chapters),
		Timestamp: now,
	}

	old, err := cd.loadSnapshot(novel.URL)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		up.First = true
	case err != nil:
		return up, err
	default:
		seen := make(map[string]struct{}, len(old.URLs))
		for _, u := range old.URLs {
			seen[u] = struct{}{}
		}
		for _, ch := range novel.Chapters {
			if _, ok := seen[ch.URL]; !ok {
				up.NewChapters = append(up.NewChapters, ch)
			}
		}
	}

	snap := snapshot{Title: novel.Title, CheckedAt: now}
	for _, ch := range novel.Chapters {
		snap.URLs = append(snap.URLs, ch.URL)
	}
	if err := cd.saveSnapshot(novel.URL, snap); err != nil {
		return up, err
	}

	cd.logger.Debug("novel checked", "url", novel.URL, "chapters", up.Total, "new", len(up.NewChapters), "first", up.First)
	return up, nil
}

func (cd *ChangeDetector) loadSnapshot(url string) (snapshot, error) {
	var snap snapshot
	data, err := os.ReadFile(cd.snapshotPath(url))
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("decode snapshot for %s: %w", url, err)
	}
	return snap, nil
}

func (cd *ChangeDetector) saveSnapshot(url string, snap snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return os.WriteFile(cd.snapshotPath(url), data, 0o644)
}

func (cd *ChangeDetector) snapshotPath(url string) string {
	hash := sha256.Sum256([]byte(url))
	return filepath.Join(cd.snapshotDir, hex.EncodeToString(hash[:])+".json")
}

// --- Scheduled Checks ---

// NovelSource scrapes a novel's landing page.
type NovelSource interface {
	ScrapeNovel(ctx context.Context, rawURL string) (*types.Novel, error)
}

// Watcher re-scrapes a set of novels on an interval and notifies about new
// chapters.
type Watcher struct {
	source   NovelSource
	detector *ChangeDetector
	notifier *Notifier
	interval time.Duration
	schedule cron.Schedule
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithPace spaces novel scrapes within one check at least gap apart.
func WithPace(gap time.Duration) WatcherOption {
	return func(w *Watcher) {
		if gap > 0 {
			w.limiter = rate.NewLimiter(rate.Every(gap), 1)
		}
	}
}

// WithSchedule runs checks on a cron schedule instead of a fixed interval.
func WithSchedule(s cron.Schedule) WatcherOption {
	return func(w *Watcher) { w.schedule = s }
}

// NewWatcher creates a Watcher.
func NewWatcher(source NovelSource, detector *ChangeDetector, notifier *Notifier, interval time.Duration, logger *slog.Logger, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		source:   source,
		detector: detector,
		notifier: notifier,
		interval: interval,
		logger:   logger.With("component", "watcher"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Check scrapes each URL once and returns the updates. A URL that fails to
// scrape is logged and skipped.
func (w *Watcher) Check(ctx context.Context, urls []string) []Update {
	var updates []Update
	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}
		if w.limiter != nil {
			if err := w.limiter.Wait(ctx); err != nil {
				break
			}
		}
		novel, err := w.source.ScrapeNovel(ctx, u)
		if err != nil {
			w.logger.Warn("check failed", "url", u, "error", err)
			continue
		}
		up, err := w.detector.Detect(novel)
		if err != nil {
			w.logger.Error("snapshot failed", "url", u, "error", err)
			continue
		}
		updates = append(updates, up)
	}

	var news []Update
	for _, up := range updates {
		if up.HasNews() {
			news = append(news, up)
		}
	}
	w.notifier.Notify(ctx, news)
	return updates
}

// Run checks immediately and then at every scheduled time until ctx is
// done. Checks never overlap.
func (w *Watcher) Run(ctx context.Context, urls []string) error {
	w.logger.Info("watching novels", "count", len(urls), "interval", w.interval, "scheduled", w.schedule != nil)
	w.Check(ctx, urls)
	for {
		now := time.Now()
		next := w.next(now)
		w.logger.Debug("next check", "at", next)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			w.Check(ctx, urls)
		}
	}
}

// next returns when the check after now is due.
func (w *Watcher) next(now time.Time) time.Time {
	if w.schedule != nil {
		return w.schedule.Next(now)
	}
	return now.Add(w.interval)
}

// --- Notification System ---

// NotificationChannel is an interface for notification delivery.
type NotificationChannel interface {
	Send(ctx context.Context, updates []Update) error
	Type() string
}

// Notifier sends updates to every registered channel.
type Notifier struct {
	channels []NotificationChannel
	logger   *slog.Logger
}

// NewNotifier creates a new notifier.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{
		logger: logger.With("component", "notifier"),
	}
}

// AddChannel registers a notification channel.
func (n *Notifier) AddChannel(ch NotificationChannel) {
	n.channels = append(n.channels, ch)
}

// Notify sends updates to all registered channels.
func (n *Notifier) Notify(ctx context.Context, updates []Update) {
	if len(updates) == 0 {
		return
	}
	for _, ch := range n.channels {
		if err := ch.Send(ctx, updates); err != nil {
			n.logger.Error("notification failed", "channel", ch.Type(), "error", err)
		}
	}
}

// WriterChannel prints a line per new chapter.
type WriterChannel struct {
	W io.Writer
}

func (c *WriterChannel) Type() string { return "writer" }

func (c *WriterChannel) Send(_ context.Context, updates []Update) error {
	for _, up := range updates {
		fmt.Fprintf(c.W, "%s: %d new chapter(s)\n", up.Title, len(up.NewChapters))
		for _, ch := range up.NewChapters {
			fmt.Fprintf(c.W, "  %5d. %s  %s\n", ch.Index+1, ch.Title, ch.URL)
		}
	}
	return nil
}

// WebhookChannel posts updates as JSON to a URL.
type WebhookChannel struct {
	URL    string
	Client *http.Client
}

func (w *WebhookChannel) Type() string { return "webhook" }

func (w *WebhookChannel) Send(ctx context.Context, updates []Update) error {
	data, err := json.Marshal(map[string]any{
		"updates":   updates,
		"count":     len(updates),
		"timestamp": time.Now(),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := w.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s returned status %d", w.URL, resp.StatusCode)
	}
	return nil
}
