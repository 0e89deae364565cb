// Package bot is the Telegram front-end: it turns messages and button
// presses into scrape, read, search and download operations.
package bot

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/IshaanNene/NovelGoat/internal/config"
	"github.com/IshaanNene/NovelGoat/internal/export"
	"github.com/IshaanNene/NovelGoat/internal/observability"
	"github.com/IshaanNene/NovelGoat/internal/scraper"
	"github.com/IshaanNene/NovelGoat/internal/session"
	"github.com/IshaanNene/NovelGoat/internal/storage"
	"github.com/IshaanNene/NovelGoat/internal/types"
)

// Sender is the part of *tgbotapi.BotAPI the handlers use.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Scraper is the scraping core as seen by the bot.
type Scraper interface {
	ScrapeNovel(ctx context.Context, rawURL string) (*types.Novel, error)
	FetchChapter(ctx context.Context, ch *types.Chapter) *types.Chapter
	FetchChapters(ctx context.Context, chapters []*types.Chapter, delay time.Duration, onProgress scraper.ProgressFunc) ([]*types.Chapter, error)
	Search(ctx context.Context, query string) ([]types.SearchResult, error)
}

var urlPattern = regexp.MustCompile(`(?i)https?://\S+`)

// progressInterval throttles edits of the download progress message.
const progressInterval = 2 * time.Second

// Bot dispatches Telegram updates.
type Bot struct {
	sender  Sender
	scraper Scraper
	store   storage.Store

	// outputDir holds one temporary directory per download.
	outputDir string
	covers    export.CoverSource

	novels   *session.Cache[*types.Novel]
	searches *session.Cache[[]types.SearchResult]

	// mu guards chapter slots of cached novels.
	mu sync.Mutex
	wg sync.WaitGroup

	cfg      config.BotConfig
	scrape   config.ScraperConfig
	storeTyp string
	metrics  *observability.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Bot.
type Option func(*Bot)

// WithMetrics records handled updates on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(b *Bot) { b.metrics = m }
}

// WithCovers embeds cover images from src in EPUB and PDF downloads.
func WithCovers(src export.CoverSource) Option {
	return func(b *Bot) { b.covers = src }
}

// New creates a Bot.
func New(cfg *config.Config, sender Sender, sc Scraper, store storage.Store, logger *slog.Logger, opts ...Option) *Bot {
	logger = logger.With("component", "bot")
	b := &Bot{
		sender:    sender,
		scraper:   sc,
		store:     store,
		outputDir: cfg.Export.OutputDir,
		novels:    session.New[*types.Novel](cfg.Bot.SessionCacheSize),
		searches:  session.New[[]types.SearchResult](cfg.Bot.SessionCacheSize),
		cfg:       cfg.Bot,
		scrape:    cfg.Scraper,
		storeTyp:  store.Name(),
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run handles updates until ctx is done or the channel closes, then waits
// for in-flight handlers.
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) error {
	b.logger.Info("bot started")
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("bot stopping")
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.HandleUpdate(ctx, upd)
			}()
		}
	}
}

// Wait blocks until background work such as chapter prefetches is done.
func (b *Bot) Wait() {
	b.wg.Wait()
}

// HandleUpdate processes a single update synchronously.
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.Message != nil:
		b.metrics.RecordMessage()
		b.handleMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil:
		b.metrics.RecordCallback()
		b.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	chatID, userID := msg.Chat.ID, msg.From.ID

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	if err := b.store.TouchUser(ctx, userID); err != nil {
		b.logger.Warn("touch user failed", "user_id", userID, "error", err)
	}

	text := strings.TrimSpace(msg.Text)
	if u := urlPattern.FindString(text); u != "" {
		b.showNovel(ctx, chatID, userID, u)
		return
	}
	if n, err := strconv.Atoi(text); err == nil {
		if novel, ok := b.novelFor(ctx, userID); ok {
			if n < 1 || n > len(novel.Chapters) {
				b.sendText(chatID, "❌ Chapter out of range. Novel has "+strconv.Itoa(len(novel.Chapters))+" chapters.")
				return
			}
			b.sendChapter(ctx, chatID, userID, novel, n-1)
			return
		}
	}
	b.sendText(chatID, "Please send a novel URL or use /search <name>.")
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		b.answer(cb.ID, "")
		return
	}
	chatID, userID := cb.Message.Chat.ID, cb.From.ID
	action, arg := parseCallback(cb.Data)

	switch action {
	case cbRead:
		b.onRead(ctx, cb, chatID, userID, arg)
	case cbPage:
		b.onPage(ctx, cb, chatID, userID, arg)
	case cbDownload:
		b.onDownload(ctx, cb, chatID, userID, arg)
	case cbSetting:
		b.onSetting(ctx, cb, chatID, userID, arg)
	case cbNovel:
		b.onNovel(ctx, cb, chatID, userID, arg)
	case cbClose:
		b.answer(cb.ID, "")
		b.deleteMessage(chatID, cb.Message.MessageID)
	default:
		b.answer(cb.ID, "")
		b.logger.Debug("unknown callback", "data", cb.Data)
	}
}

// --- Telegram helpers ---

func (b *Bot) send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m, err := b.sender.Send(c)
	if err != nil {
		b.logger.Warn("telegram send failed", "error", err)
	}
	return m, err
}

func (b *Bot) sendText(chatID int64, text string) {
	b.sendHTML(chatID, escape(text), nil)
}

func (b *Bot) sendHTML(chatID int64, text string, markup any) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	return b.send(msg)
}

func (b *Bot) editHTML(chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.DisableWebPagePreview = true
	edit.ReplyMarkup = markup
	_, err := b.send(edit)
	return err
}

func (b *Bot) deleteMessage(chatID int64, messageID int) {
	if _, err := b.sender.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		b.logger.Debug("delete message failed", "error", err)
	}
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.sender.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.logger.Debug("answer callback failed", "error", err)
	}
}

func (b *Bot) alert(callbackID, text string) {
	if _, err := b.sender.Request(tgbotapi.NewCallbackWithAlert(callbackID, text)); err != nil {
		b.logger.Debug("answer callback failed", "error", err)
	}
}
