package bot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/IshaanNene/NovelGoat/internal/export"
	"github.com/IshaanNene/NovelGoat/internal/storage"
	"github.com/IshaanNene/NovelGoat/internal/types"
)

// showNovel scrapes rawURL and replies with the novel card.
func (b *Bot) showNovel(ctx context.Context, chatID, userID int64, rawURL string) {
	wait, err := b.sendHTML(chatID, "🔍 Analyzing novel URL, please wait…", nil)
	if err != nil {
		return
	}

	novel, err := b.scraper.ScrapeNovel(ctx, rawURL)
	if err != nil {
		b.logger.Info("scrape failed", "url", rawURL, "error", err)
		b.editHTML(chatID, wait.MessageID, "❌ Could not find any chapters at that URL. Try another link.", nil)
		return
	}

	b.novels.Put(userID, novel)
	if err := b.store.SaveProgress(ctx, userID, rawURL, 0); err != nil {
		b.logger.Warn("save progress failed", "user_id", userID, "error", err)
	}
	if err := b.store.IncrStat(ctx, storage.StatNovelsScraped, 1); err != nil {
		b.logger.Warn("increment stat failed", "error", err)
	}

	settings := b.settings(ctx, userID)
	caption := novelCard(novel)
	kb := novelKeyboard(len(novel.Chapters), settings.DownloadButtons)

	if settings.SendCover && novel.CoverURL != "" {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(novel.CoverURL))
		photo.Caption = caption
		photo.ParseMode = tgbotapi.ModeHTML
		photo.ReplyMarkup = kb
		if _, err := b.send(photo); err == nil {
			b.deleteMessage(chatID, wait.MessageID)
			return
		}
	}
	b.editHTML(chatID, wait.MessageID, caption, &kb)
}

// novelFor returns the user's current novel, re-scraping the last novel URL
// from their saved progress when the session entry has been evicted.
func (b *Bot) novelFor(ctx context.Context, userID int64) (*types.Novel, bool) {
	if n, ok := b.novels.Get(userID); ok {
		return n, true
	}

	rawURL, _, err := b.store.Progress(ctx, userID)
	if err != nil || rawURL == "" {
		return nil, false
	}
	n, err := b.scraper.ScrapeNovel(ctx, rawURL)
	if err != nil {
		b.logger.Info("reload novel failed", "url", rawURL, "error", err)
		return nil, false
	}
	b.novels.Put(userID, n)
	return n, true
}

func (b *Bot) settings(ctx context.Context, userID int64) storage.Settings {
	s, err := b.store.Settings(ctx, userID)
	if err != nil {
		b.logger.Warn("load settings failed", "user_id", userID, "error", err)
		return storage.DefaultSettings()
	}
	return s
}

func (b *Bot) onNovel(ctx context.Context, cb *tgbotapi.CallbackQuery, chatID, userID int64, arg string) {
	results, _ := b.searches.Get(userID)
	i, err := strconv.Atoi(arg)
	if err != nil || i < 0 || i >= len(results) {
		b.alert(cb.ID, "Search expired, please search again.")
		return
	}
	b.answer(cb.ID, "")
	b.showNovel(ctx, chatID, userID, results[i].URL)
}

func (b *Bot) onRead(ctx context.Context, cb *tgbotapi.CallbackQuery, chatID, userID int64, arg string) {
	novel, ok := b.novelFor(ctx, userID)
	if !ok {
		b.alert(cb.ID, "❌ Could not load novel. Send the link again.")
		return
	}
	idx, err := strconv.Atoi(arg)
	if err != nil || idx < 0 || idx >= len(novel.Chapters) {
		b.alert(cb.ID, "Invalid chapter index.")
		return
	}
	b.answer(cb.ID, "")
	b.sendChapter(ctx, chatID, userID, novel, idx)
}

// chapter returns chapter idx of novel with content, fetching it if
// needed. Cached chapters are replaced, never mutated.
func (b *Bot) chapter(ctx context.Context, novel *types.Novel, idx int) *types.Chapter {
	b.mu.Lock()
	ch := novel.Chapters[idx]
	b.mu.Unlock()
	if ch.HasContent() {
		return ch
	}

	cp := *ch
	fetched := b.scraper.FetchChapter(ctx, &cp)
	if fetched.HasContent() {
		b.mu.Lock()
		novel.Chapters[idx] = fetched
		b.mu.Unlock()
	}
	return fetched
}

func (b *Bot) sendChapter(ctx context.Context, chatID, userID int64, novel *types.Novel, idx int) {
	ch := b.chapter(ctx, novel, idx)
	settings := b.settings(ctx, userID)

	if err := b.store.SaveProgress(ctx, userID, novel.URL, idx); err != nil {
		b.logger.Warn("save progress failed", "user_id", userID, "error", err)
	}
	if err := b.store.IncrStat(ctx, storage.StatChaptersSent, 1); err != nil {
		b.logger.Warn("increment stat failed", "error", err)
	}

	nav := chapterNavKeyboard(idx, len(novel.Chapters))

	if settings.ReadingMode == storage.ModeFile && ch.HasContent() {
		name := fmt.Sprintf("%s_ch%d.txt", export.SafeFilename(novel.Title), idx+1)
		body := fmt.Sprintf("%s\nChapter %d: %s\n\n%s\n", novel.Title, idx+1, ch.Title, ch.Content)
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: []byte(body)})
		doc.Caption = fmt.Sprintf("<b>Chapter %d: %s</b>", idx+1, escape(ch.Title))
		doc.ParseMode = tgbotapi.ModeHTML
		doc.ReplyMarkup = nav
		b.send(doc)
	} else {
		msgs := chapterMessages(novel, ch, b.cfg.MessageLimit, b.cfg.PreviewLimit)
		for i, text := range msgs {
			if i == len(msgs)-1 {
				b.sendHTML(chatID, text, nav)
			} else {
				b.sendHTML(chatID, text, nil)
			}
		}
	}

	if settings.AutoNext && idx+1 < len(novel.Chapters) {
		b.prefetch(ctx, novel, idx+1)
	}
}

// prefetch loads the next chapter in the background so the Next button
// answers from the session.
func (b *Bot) prefetch(ctx context.Context, novel *types.Novel, idx int) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.chapter(context.WithoutCancel(ctx), novel, idx)
	}()
}

func (b *Bot) onPage(ctx context.Context, cb *tgbotapi.CallbackQuery, chatID, userID int64, arg string) {
	novel, ok := b.novelFor(ctx, userID)
	if !ok {
		b.alert(cb.ID, "❌ Could not load novel. Send the link again.")
		return
	}
	b.answer(cb.ID, "")

	perPage := max(b.cfg.ChaptersPerPage, 1)
	pages := pageCount(len(novel.Chapters), perPage)
	page, _ := strconv.Atoi(arg)
	page = min(max(page, 0), pages-1)

	text := pickerText(novel, page, pages)
	kb := chapterPickerKeyboard(novel.Chapters, page, perPage)

	// Photo cards have no text to edit.
	if cb.Message.Text != "" && cb.Message.Photo == nil {
		if err := b.editHTML(chatID, cb.Message.MessageID, text, &kb); err == nil {
			return
		}
	}
	b.sendHTML(chatID, text, kb)
}

func (b *Bot) onDownload(ctx context.Context, cb *tgbotapi.CallbackQuery, chatID, userID int64, format string) {
	if _, err := export.New(format); err != nil {
		b.alert(cb.ID, "Unknown format.")
		return
	}
	novel, ok := b.novelFor(ctx, userID)
	if !ok {
		b.alert(cb.ID, "❌ Failed to load novel. Send the link again.")
		return
	}
	b.answer(cb.ID, "")

	progress, err := b.sendHTML(chatID, "📚 Fetching Chapters…", nil)
	if err != nil {
		return
	}

	limit := len(novel.Chapters)
	if b.scrape.MaxChaptersPerDownload > 0 {
		limit = min(limit, b.scrape.MaxChaptersPerDownload)
	}
	b.mu.Lock()
	chapters := make([]*types.Chapter, limit)
	for i, ch := range novel.Chapters[:limit] {
		cp := *ch
		chapters[i] = &cp
	}
	b.mu.Unlock()

	start := b.now()
	var lastEdit time.Time
	onProgress := func(done, total int) {
		now := b.now()
		if done < total && now.Sub(lastEdit) < progressInterval {
			return
		}
		lastEdit = now
		b.editHTML(chatID, progress.MessageID, formatProgress(done, total, now.Sub(start)), nil)
	}

	chapters, err = b.scraper.FetchChapters(ctx, chapters, b.scrape.ChapterDelay, onProgress)
	if err != nil {
		b.logger.Info("download interrupted", "url", novel.URL, "error", err)
		b.editHTML(chatID, progress.MessageID, "❌ Download cancelled.", nil)
		return
	}

	b.editHTML(chatID, progress.MessageID, fmt.Sprintf("📦 Building %s file…", escape(format)), nil)

	dir, err := b.downloadDir()
	if err != nil {
		b.logger.Warn("create download dir failed", "error", err)
		b.editHTML(chatID, progress.MessageID, "❌ Export failed.", nil)
		return
	}
	defer os.RemoveAll(dir)

	cover := export.LoadCover(ctx, b.covers, format, novel, b.logger)
	path, err := export.NewWriter(dir, b.logger).Write(format, novel, chapters, export.WithCover(cover))
	if err != nil {
		b.logger.Warn("export failed", "format", format, "error", err)
		msg := "❌ Export failed: " + err.Error()
		if errors.Is(err, types.ErrNoContent) {
			msg = "❌ None of the chapters could be fetched."
		}
		b.editHTML(chatID, progress.MessageID, escape(msg), nil)
		return
	}
	b.metrics.RecordExport()

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = fmt.Sprintf("📚 <b>%s</b>\n%d chapters", escape(novel.Title), len(chapters))
	doc.ParseMode = tgbotapi.ModeHTML
	if _, err := b.send(doc); err != nil {
		b.editHTML(chatID, progress.MessageID, "❌ Could not upload the file.", nil)
		return
	}
	b.deleteMessage(chatID, progress.MessageID)
}

// downloadDir creates a private directory for one export so concurrent
// downloads of the same novel never share a file.
func (b *Bot) downloadDir() (string, error) {
	if err := os.MkdirAll(b.outputDir, 0o755); err != nil {
		return "", err
	}
	return os.MkdirTemp(b.outputDir, "dl-")
}
