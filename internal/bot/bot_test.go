package bot

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/IshaanNene/NovelGoat/internal/config"
	"github.com/IshaanNene/NovelGoat/internal/observability"
	"github.com/IshaanNene/NovelGoat/internal/scraper"
	"github.com/IshaanNene/NovelGoat/internal/storage"
	"github.com/IshaanNene/NovelGoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const (
	ownerID  = 1
	readerID = 42
	novelURL = "https://example.com/novel/tale"
)

type fakeSender struct {
	mu        sync.Mutex
	sent      []tgbotapi.Chattable
	requests  []tgbotapi.Chattable
	nextID    int
	failPhoto bool
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := c.(tgbotapi.PhotoConfig); ok && f.failPhoto {
		return tgbotapi.Message{}, errors.New("bad photo")
	}
	f.sent = append(f.sent, c)
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

// texts returns the visible text of every sent message, edit, photo or
// document caption in order.
func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, m.Text)
		case tgbotapi.PhotoConfig:
			out = append(out, m.Caption)
		case tgbotapi.DocumentConfig:
			out = append(out, m.Caption)
		}
	}
	return out
}

func (f *fakeSender) last() tgbotapi.Chattable {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeSender) answers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.requests {
		if cb, ok := c.(tgbotapi.CallbackConfig); ok {
			out = append(out, cb.Text)
		}
	}
	return out
}

func (f *fakeSender) documents() []tgbotapi.DocumentConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.DocumentConfig
	for _, c := range f.sent {
		if d, ok := c.(tgbotapi.DocumentConfig); ok {
			out = append(out, d)
		}
	}
	return out
}

func (f *fakeSender) contains(sub string) bool {
	for _, t := range f.texts() {
		if strings.Contains(t, sub) {
			return true
		}
	}
	return false
}

// fakeScraper serves a fixed novel and chapter bodies keyed by URL.
type fakeScraper struct {
	mu       sync.Mutex
	novels   map[string]*types.Novel
	contents map[string]string
	results  []types.SearchResult
	fetched  []string
}

func (f *fakeScraper) ScrapeNovel(_ context.Context, rawURL string) (*types.Novel, error) {
	n, ok := f.novels[rawURL]
	if !ok {
		return nil, types.ErrNoChapters
	}
	cp := *n
	cp.Chapters = make([]*types.Chapter, len(n.Chapters))
	for i, ch := range n.Chapters {
		c := *ch
		cp.Chapters[i] = &c
	}
	return &cp, nil
}

func (f *fakeScraper) FetchChapter(_ context.Context, ch *types.Chapter) *types.Chapter {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, ch.URL)
	ch.Content = f.contents[ch.URL]
	return ch
}

func (f *fakeScraper) FetchChapters(ctx context.Context, chapters []*types.Chapter, _ time.Duration, onProgress scraper.ProgressFunc) ([]*types.Chapter, error) {
	for i, ch := range chapters {
		if err := ctx.Err(); err != nil {
			return chapters, err
		}
		f.FetchChapter(ctx, ch)
		if onProgress != nil {
			onProgress(i+1, len(chapters))
		}
	}
	return chapters, nil
}

func (f *fakeScraper) Search(_ context.Context, _ string) ([]types.SearchResult, error) {
	return f.results, nil
}

func (f *fakeScraper) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetched)
}

func newFakeScraper() *fakeScraper {
	return &fakeScraper{
		novels: map[string]*types.Novel{
			novelURL: {
				Title:       "Tale of Ashes",
				URL:         novelURL,
				Author:      "A. Writer",
				Description: "A story.",
				CoverURL:    "https://example.com/cover.jpg",
				Chapters: []*types.Chapter{
					{Index: 0, Title: "Awakening", URL: novelURL + "/chapter-1"},
					{Index: 1, Title: "Storm", URL: novelURL + "/chapter-2"},
					{Index: 2, Title: "Ashes", URL: novelURL + "/chapter-3"},
				},
			},
		},
		contents: map[string]string{
			novelURL + "/chapter-1": "It began at dawn.\n\nThe fire spread.",
			novelURL + "/chapter-2": "Rain fell all night.",
			novelURL + "/chapter-3": "Only ashes remained.",
		},
	}
}

type harness struct {
	bot     *Bot
	sender  *fakeSender
	scraper *fakeScraper
	store   *storage.MemoryStore
	metrics *observability.Metrics
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Bot.OwnerID = ownerID
	cfg.Export.OutputDir = t.TempDir()
	cfg.Scraper.ChapterDelay = 0
	if mutate != nil {
		mutate(cfg)
	}

	h := &harness{
		sender:  &fakeSender{},
		scraper: newFakeScraper(),
		store:   storage.NewMemoryStore(),
		metrics: observability.NewMetrics(testLogger),
	}
	h.bot = New(cfg, h.sender, h.scraper, h.store, testLogger, WithMetrics(h.metrics))
	t.Cleanup(h.bot.Wait)
	return h
}

func (h *harness) message(userID int64, text string) {
	msg := &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userID, FirstName: "Reader"},
		Chat:      &tgbotapi.Chat{ID: userID},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		cmd, _, _ := strings.Cut(text, " ")
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	h.bot.HandleUpdate(context.Background(), tgbotapi.Update{Message: msg})
}

func (h *harness) callback(userID int64, data string) {
	cb := &tgbotapi.CallbackQuery{
		ID:   "cb",
		From: &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{
			MessageID: 99,
			Chat:      &tgbotapi.Chat{ID: userID},
			Text:      "card",
		},
		Data: data,
	}
	h.bot.HandleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: cb})
}

func TestStartRegistersUser(t *testing.T) {
	h := newHarness(t, nil)
	h.message(readerID, "/start")

	if _, err := h.store.GetUser(context.Background(), readerID); err != nil {
		t.Fatalf("user not registered: %v", err)
	}
	if !h.sender.contains("Hey, Reader!") {
		t.Errorf("missing welcome, got %q", h.sender.texts())
	}
	if h.metrics.MessagesHandled.Load() != 1 {
		t.Errorf("messages handled = %d", h.metrics.MessagesHandled.Load())
	}
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t, nil)
	h.message(readerID, "/frobnicate")
	if !h.sender.contains("Unknown command") {
		t.Errorf("got %q", h.sender.texts())
	}
}

func TestNovelURLShowsCard(t *testing.T) {
	h := newHarness(t, nil)
	h.message(readerID, "check this "+novelURL+" please")

	photo, ok := h.sender.last().(tgbotapi.PhotoConfig)
	if !ok {
		t.Fatalf("expected a cover photo, last sent %T", h.sender.last())
	}
	if !strings.Contains(photo.Caption, "Tale of Ashes") || !strings.Contains(photo.Caption, "Total Chapters:</b> 3") {
		t.Errorf("unexpected caption:\n%s", photo.Caption)
	}
	kb, ok := photo.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || len(kb.InlineKeyboard) != 3 {
		t.Fatalf("expected novel keyboard with downloads, got %#v", photo.ReplyMarkup)
	}
	if got := *kb.InlineKeyboard[0][1].CallbackData; got != "read:2" {
		t.Errorf("latest chapter button = %q, want read:2", got)
	}

	if _, ok := h.bot.novels.Get(readerID); !ok {
		t.Error("novel not cached in session")
	}
	url, ch, _ := h.store.Progress(context.Background(), readerID)
	if url != novelURL || ch != 0 {
		t.Errorf("progress = %q, %d", url, ch)
	}
	stats, _ := h.store.Stats(context.Background())
	if stats.NovelsScraped != 1 {
		t.Errorf("novels scraped = %d", stats.NovelsScraped)
	}
}

func TestNovelCardFallsBackToText(t *testing.T) {
	h := newHarness(t, nil)
	h.sender.failPhoto = true
	h.message(readerID, novelURL)

	edit, ok := h.sender.last().(tgbotapi.EditMessageTextConfig)
	if !ok {
		t.Fatalf("expected the wait message to be edited, last sent %T", h.sender.last())
	}
	if !strings.Contains(edit.Text, "Tale of Ashes") || edit.ReplyMarkup == nil {
		t.Errorf("unexpected edit: %+v", edit)
	}
}

func TestNovelURLFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.message(readerID, "https://example.com/nothing-here")
	if !h.sender.contains("Could not find any chapters") {
		t.Errorf("got %q", h.sender.texts())
	}
}

func TestPlainTextHint(t *testing.T) {
	h := newHarness(t, nil)
	h.message(readerID, "hello")
	if !h.sender.contains("Please send a novel URL") {
		t.Errorf("got %q", h.sender.texts())
	}
}

func TestReadChapter(t *testing.T) {
	h := newHarness(t, nil)
	h.store.UpdateSetting(context.Background(), readerID, storage.SettingAutoNext, false)
	h.message(readerID, novelURL)
	h.callback(readerID, "read:1")

	msg, ok := h.sender.last().(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("expected chapter message, last sent %T", h.sender.last())
	}
	if !strings.Contains(msg.Text, "Chapter 2: Storm") || !strings.Contains(msg.Text, "Rain fell all night.") {
		t.Errorf("unexpected chapter text:\n%s", msg.Text)
	}
	kb := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if row := kb.InlineKeyboard[0]; len(row) != 3 || *row[0].CallbackData != "read:0" || *row[2].CallbackData != "read:2" {
		t.Errorf("unexpected nav row %+v", row)
	}

	_, ch, _ := h.store.Progress(context.Background(), readerID)
	if ch != 1 {
		t.Errorf("progress chapter = %d, want 1", ch)
	}
	stats, _ := h.store.Stats(context.Background())
	if stats.ChaptersSent != 1 {
		t.Errorf("chapters sent = %d", stats.ChaptersSent)
	}

	// A second read is served from the session.
	h.callback(readerID, "read:1")
	if n := h.scraper.fetchCount(); n != 1 {
		t.Errorf("chapter fetched %d times, want 1", n)
	}
}

func TestReadChapterPrefetchesNext(t *testing.T) {
	h := newHarness(t, nil)
	h.message(readerID, novelURL)
	h.callback(readerID, "read:0")
	h.bot.Wait()

	novel, _ := h.bot.novels.Get(readerID)
	h.bot.mu.Lock()
	next := novel.Chapters[1]
	h.bot.mu.Unlock()
	if next.Content != "Rain fell all night." {
		t.Errorf("next chapter not prefetched, content %q", next.Content)
	}
}

func TestReadChapterSplitsLongContent(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.Bot.MessageLimit = 150 })
	h.scraper.contents[novelURL+"/chapter-1"] = strings.Repeat("long line here ", 10) + "\n\n" + strings.Repeat("second part ", 10)
	h.store.UpdateSetting(context.Background(), readerID, storage.SettingAutoNext, false)
	h.message(readerID, novelURL)

	before := len(h.sender.texts())
	h.callback(readerID, "read:0")
	texts := h.sender.texts()[before:]
	if len(texts) < 2 {
		t.Fatalf("expected several messages, got %d", len(texts))
	}
	if _, ok := h.sender.last().(tgbotapi.MessageConfig).ReplyMarkup.(tgbotapi.InlineKeyboardMarkup); !ok {
		t.Error("nav keyboard should be on the last part")
	}
}

func TestReadChapterFileMode(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.store.UpdateSetting(ctx, readerID, storage.SettingReadingMode, storage.ModeFile)
	h.store.UpdateSetting(ctx, readerID, storage.SettingAutoNext, false)
	h.message(readerID, novelURL)
	h.callback(readerID, "read:0")

	docs := h.sender.documents()
	if len(docs) != 1 {
		t.Fatalf("expected one document, got %d", len(docs))
	}
	file, ok := docs[0].File.(tgbotapi.FileBytes)
	if !ok {
		t.Fatalf("expected in-memory file, got %T", docs[0].File)
	}
	if file.Name != "Tale_of_Ashes_ch1.txt" || !strings.Contains(string(file.Bytes), "It began at dawn.") {
		t.Errorf("unexpected file %q:\n%s", file.Name, file.Bytes)
	}
}

func TestReadInvalidIndex(t *testing.T) {
	h := newHarness(t, nil)
	h.message(readerID, novelURL)
	h.callback(readerID, "read:7")

	answers := h.sender.answers()
	if len(answers) == 0 || answers[len(answers)-1] != "Invalid chapter index." {
		t.Errorf("answers = %q", answers)
	}
}

func TestReadReloadsNovelFromProgress(t *testing.T) {
	h := newHarness(t, nil)
	h.store.SaveProgress(context.Background(), readerID, novelURL, 2)
	h.store.UpdateSetting(context.Background(), readerID, storage.SettingAutoNext, false)

	h.callback(readerID, "read:2")
	if !h.sender.contains("Only ashes remained.") {
		t.Errorf("got %q", h.sender.texts())
	}
}

func TestChapterNumberMessage(t *testing.T) {
	h := newHarness(t, nil)
	h.store.UpdateSetting(context.Background(), readerID, storage.SettingAutoNext, false)
	h.message(readerID, novelURL)

	h.message(readerID, "3")
	if !h.sender.contains("Chapter 3: Ashes") {
		t.Errorf("got %q", h.sender.texts())
	}
	h.message(readerID, "9")
	if !h.sender.contains("Chapter out of range. Novel has 3 chapters.") {
		t.Errorf("got %q", h.sender.texts())
	}
}

func TestChapterPickerCallback(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.Bot.ChaptersPerPage = 2 })
	h.message(readerID, novelURL)
	h.callback(readerID, "page:1")

	edit, ok := h.sender.last().(tgbotapi.EditMessageTextConfig)
	if !ok {
		t.Fatalf("expected picker edit, got %T", h.sender.last())
	}
	if !strings.Contains(edit.Text, "Page 2 of 2") {
		t.Errorf("unexpected picker text %q", edit.Text)
	}
	if got := *edit.ReplyMarkup.InlineKeyboard[0][0].CallbackData; got != "read:2" {
		t.Errorf("first picker button = %q, want read:2", got)
	}
}

func TestDownload(t *testing.T) {
	h := newHarness(t, nil)
	h.message(readerID, novelURL)
	h.callback(readerID, "dl:txt")

	docs := h.sender.documents()
	if len(docs) != 1 {
		t.Fatalf("expected one document, got %d (texts %q)", len(docs), h.sender.texts())
	}
	path, ok := docs[0].File.(tgbotapi.FilePath)
	if !ok || !strings.HasSuffix(string(path), "Tale_of_Ashes_ch1-3.txt") {
		t.Errorf("unexpected document file %v", docs[0].File)
	}
	if !strings.Contains(docs[0].Caption, "3 chapters") {
		t.Errorf("caption = %q", docs[0].Caption)
	}
	if _, err := os.Stat(string(path)); !os.IsNotExist(err) {
		t.Error("export file should be removed after upload")
	}
	if !h.sender.contains("3/3") {
		t.Error("final progress update missing")
	}
	if h.metrics.Exports.Load() != 1 {
		t.Errorf("exports = %d", h.metrics.Exports.Load())
	}
}

func TestDownloadRespectsLimit(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.Scraper.MaxChaptersPerDownload = 2 })
	h.message(readerID, novelURL)
	h.callback(readerID, "dl:epub")

	docs := h.sender.documents()
	if len(docs) != 1 || !strings.Contains(docs[0].Caption, "2 chapters") {
		t.Fatalf("expected a 2 chapter epub, got %+v", docs)
	}
}

func TestDownloadNothingFetched(t *testing.T) {
	h := newHarness(t, nil)
	h.scraper.contents = map[string]string{}
	h.message(readerID, novelURL)
	h.callback(readerID, "dl:pdf")

	if len(h.sender.documents()) != 0 {
		t.Error("no document expected")
	}
	if !h.sender.contains("None of the chapters could be fetched.") {
		t.Errorf("got %q", h.sender.texts())
	}
}

func TestDownloadUnknownFormat(t *testing.T) {
	h := newHarness(t, nil)
	h.message(readerID, novelURL)
	h.callback(readerID, "dl:mobi")

	answers := h.sender.answers()
	if len(answers) == 0 || answers[len(answers)-1] != "Unknown format." {
		t.Errorf("answers = %q", answers)
	}
}

func TestSettingsToggle(t *testing.T) {
	h := newHarness(t, nil)
	h.message(readerID, "/settings")
	if !h.sender.contains("Settings") {
		t.Fatalf("settings message missing: %q", h.sender.texts())
	}

	h.callback(readerID, "set:send_cover")
	settings, _ := h.store.Settings(context.Background(), readerID)
	if settings.SendCover {
		t.Error("send_cover should be off")
	}
	edit, ok := h.sender.last().(tgbotapi.EditMessageReplyMarkupConfig)
	if !ok {
		t.Fatalf("expected keyboard edit, got %T", h.sender.last())
	}
	if label := edit.ReplyMarkup.InlineKeyboard[2][0].Text; !strings.Contains(label, "OFF") {
		t.Errorf("keyboard label = %q", label)
	}
	if answers := h.sender.answers(); answers[len(answers)-1] != "✅ Setting updated!" {
		t.Errorf("answers = %q", answers)
	}

	// With covers off the card is a text message.
	h.message(readerID, novelURL)
	if _, ok := h.sender.last().(tgbotapi.EditMessageTextConfig); !ok {
		t.Errorf("expected text card, got %T", h.sender.last())
	}
}

func TestDownloadButtonsSetting(t *testing.T) {
	h := newHarness(t, nil)
	h.store.UpdateSetting(context.Background(), readerID, storage.SettingDownloadButtons, false)
	h.message(readerID, novelURL)

	photo := h.sender.last().(tgbotapi.PhotoConfig)
	if kb := photo.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup); len(kb.InlineKeyboard) != 2 {
		t.Errorf("expected no download row, got %d rows", len(kb.InlineKeyboard))
	}
}

func TestStatsOwnerOnly(t *testing.T) {
	h := newHarness(t, nil)
	h.message(readerID, "/start")
	before := len(h.sender.texts())

	h.message(readerID, "/stats")
	if len(h.sender.texts()) != before {
		t.Error("non-owner should get no reply")
	}

	h.message(ownerID, "/stats")
	if !h.sender.contains("Total Users    :</b> 1") {
		t.Errorf("got %q", h.sender.texts())
	}
}

func TestSearchAndOpen(t *testing.T) {
	h := newHarness(t, nil)
	h.scraper.results = []types.SearchResult{
		{Title: "Other", URL: "https://example.com/novel/other", Source: "novelpub"},
		{Title: "Tale of Ashes", URL: novelURL, Source: "novelpub"},
	}

	h.message(readerID, "/search")
	if !h.sender.contains("Usage:") {
		t.Fatalf("expected usage, got %q", h.sender.texts())
	}

	h.message(readerID, "/search tale")
	edit, ok := h.sender.last().(tgbotapi.EditMessageTextConfig)
	if !ok || !strings.Contains(edit.Text, "2. <b>Tale of Ashes</b>") {
		t.Fatalf("unexpected results message %+v", h.sender.last())
	}
	if got := *edit.ReplyMarkup.InlineKeyboard[1][0].CallbackData; got != "novel:1" {
		t.Errorf("result button = %q", got)
	}

	h.callback(readerID, "novel:1")
	if _, ok := h.bot.novels.Get(readerID); !ok {
		t.Error("opening a result should scrape the novel")
	}

	h.callback(readerID, "novel:5")
	if answers := h.sender.answers(); answers[len(answers)-1] != "Search expired, please search again." {
		t.Errorf("answers = %q", answers)
	}
}

func TestSearchNoResults(t *testing.T) {
	h := newHarness(t, nil)
	h.message(readerID, "/search nothing")
	if !h.sender.contains("No results found for <b>nothing</b>") {
		t.Errorf("got %q", h.sender.texts())
	}
}

func TestCloseDeletesMessage(t *testing.T) {
	h := newHarness(t, nil)
	h.callback(readerID, "close")

	h.sender.mu.Lock()
	defer h.sender.mu.Unlock()
	var deleted bool
	for _, r := range h.sender.requests {
		if d, ok := r.(tgbotapi.DeleteMessageConfig); ok && d.MessageID == 99 {
			deleted = true
		}
	}
	if !deleted {
		t.Error("close should delete the message")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t, nil)
	updates := make(chan tgbotapi.Update, 1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- h.bot.Run(ctx, updates) }()

	updates <- tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: readerID},
		Chat: &tgbotapi.Chat{ID: readerID},
		Text: "hi",
	}}
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	if !h.sender.contains("Please send a novel URL") {
		t.Error("update was not handled")
	}
}
