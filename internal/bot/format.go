package bot

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/IshaanNene/NovelGoat/internal/storage"
	"github.com/IshaanNene/NovelGoat/internal/types"
)

const (
	startText = `<b>Hey, %s!</b>

<b>I am a Web Novel Scraper Bot 📚</b>
<b>Send me a novel link or type /search to find novels.</b>`

	helpText = `<b>How to use</b>

Send a novel link and I fetch its chapters.
/search name finds novels by title.
Downloads come as TXT, PDF or EPUB.
/settings changes how chapters are delivered.

Large novels with thousands of chapters are supported.`

	aboutText = `<b>NovelGoat</b>

Library : telegram-bot-api
Language : Go
Storage : %s`

	settingsText = `<b>⚙️ Settings</b>

Configure your reading preferences below.`

	statsText = `<b>📊 Bot Statistics</b>

<b>Total Users    :</b> %d
<b>Active Today   :</b> %d
<b>Novels Scraped :</b> %d
<b>Chapters Sent  :</b> %d`

	progressText = `<b>📚 Fetching Chapters...</b>

%s

<b>📥 Chapters Collected :</b> %d/%d
<b>⚡ Progress           :</b> %d%%
<b>⏳ Est. Time Left    :</b> %s`

	chapterRule        = "━━━━━━━━━━━━━━━━━━━━━"
	unavailableContent = "<i>(content unavailable)</i>"
	cardDescription    = 300
	progressWidth      = 20
)

// escape prepares text for an HTML parse-mode message.
func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeHTML, s)
}

// truncate cuts s to limit runes, appending an ellipsis when it cut.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "…"
}

// progressBar renders a width-wide bar of █ and ░.
func progressBar(done, total, width int) string {
	filled := 0
	if total > 0 {
		filled = width * done / total
	}
	filled = min(max(filled, 0), width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// formatETA estimates the remaining time from the average per-chapter
// time so far.
func formatETA(done, total int, elapsed time.Duration) string {
	secs := 0
	if done > 0 {
		secs = int(elapsed.Seconds() / float64(done) * float64(total-done))
	}
	if secs >= 60 {
		return fmt.Sprintf("%dm %ds", secs/60, secs%60)
	}
	return fmt.Sprintf("%ds", secs)
}

func formatProgress(done, total int, elapsed time.Duration) string {
	pct := 0
	if total > 0 {
		pct = done * 100 / total
	}
	return fmt.Sprintf(progressText, progressBar(done, total, progressWidth), done, total, pct, formatETA(done, total, elapsed))
}

// splitText breaks text into parts of at most limit runes, preferring
// paragraph breaks.
func splitText(text string, limit int) []string {
	if limit <= 0 {
		return []string{text}
	}
	var parts []string
	for utf8.RuneCountInString(text) > limit {
		runes := []rune(text)
		head := string(runes[:limit])
		cut := strings.LastIndex(head, "\n\n")
		if cut <= 0 {
			cut = len(head)
		}
		parts = append(parts, strings.TrimRight(text[:cut], "\n"))
		text = strings.TrimLeft(text[cut:], " \n")
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}

// novelCard is the caption shown after a novel is scraped.
func novelCard(n *types.Novel) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>📚 %s</b>\n\n", escape(n.Title))
	fmt.Fprintf(&b, "<b>📑 Total Chapters:</b> %d\n", len(n.Chapters))
	if n.Author != "" {
		fmt.Fprintf(&b, "<b>✍️ Author:</b> %s\n", escape(n.Author))
	}
	if n.Description != "" {
		b.WriteString("\n")
		b.WriteString(escape(truncate(n.Description, cardDescription)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func chapterHeader(n *types.Novel, ch *types.Chapter) string {
	return fmt.Sprintf("<b>📖 %s</b>\n<b>Chapter %d: %s</b>\n%s\n", escape(n.Title), ch.Index+1, escape(ch.Title), chapterRule)
}

// chapterMessages renders a chapter as one or more HTML messages of at most
// limit runes, each carrying at most partLimit runes of chapter text.
func chapterMessages(n *types.Novel, ch *types.Chapter, limit, partLimit int) []string {
	header := chapterHeader(n, ch)
	footer := "\n" + chapterRule

	if !ch.HasContent() {
		return []string{header + unavailableContent + footer}
	}

	budget := limit - utf8.RuneCountInString(header) - utf8.RuneCountInString(footer)
	if partLimit > 0 {
		budget = min(budget, partLimit)
	}
	parts := splitText(ch.Content, budget)
	msgs := make([]string, len(parts))
	for i, p := range parts {
		text := escape(p)
		if i == 0 {
			text = header + text
		}
		if i == len(parts)-1 {
			text += footer
		}
		msgs[i] = text
	}
	return msgs
}

func searchText(query string, results []types.SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>🔎 Results for: %s</b>\n\n", escape(query))
	for i, r := range results {
		fmt.Fprintf(&b, "%d. <b>%s</b>", i+1, escape(r.Title))
		if r.Source != "" {
			fmt.Fprintf(&b, " <i>(%s)</i>", escape(r.Source))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatStats(s storage.Stats) string {
	return fmt.Sprintf(statsText, s.TotalUsers, s.ActiveToday, s.NovelsScraped, s.ChaptersSent)
}

func pickerText(n *types.Novel, page, pages int) string {
	return fmt.Sprintf("<b>📑 %s</b>\nPage %d of %d. Tap a chapter or send its number.", escape(n.Title), page+1, pages)
}
