package bot

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/IshaanNene/NovelGoat/internal/storage"
	"github.com/IshaanNene/NovelGoat/internal/types"
)

// Callback data prefixes. Telegram caps callback data at 64 bytes, so
// buttons carry indexes into the user's session rather than URLs.
const (
	cbRead     = "read"
	cbPage     = "page"
	cbDownload = "dl"
	cbSetting  = "set"
	cbNovel    = "novel"
	cbClose    = "close"
)

func callbackData(action string, arg any) string {
	return fmt.Sprintf("%s:%v", action, arg)
}

// parseCallback splits "action:arg".
func parseCallback(data string) (action, arg string) {
	action, arg, _ = strings.Cut(data, ":")
	return action, arg
}

func closeButton() tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData("❌ Close", cbClose)
}

func novelKeyboard(total int, downloads bool) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📖 First Chapter", callbackData(cbRead, 0)),
			tgbotapi.NewInlineKeyboardButtonData("📖 Latest Chapter", callbackData(cbRead, total-1)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔢 Choose Chapter", callbackData(cbPage, 0)),
		),
	}
	if downloads {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📄 TXT", callbackData(cbDownload, "txt")),
			tgbotapi.NewInlineKeyboardButtonData("📕 PDF", callbackData(cbDownload, "pdf")),
			tgbotapi.NewInlineKeyboardButtonData("📚 EPUB", callbackData(cbDownload, "epub")),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func chapterNavKeyboard(current, total int) tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	if current > 0 {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("⬅️ Prev", callbackData(cbRead, current-1)))
	}
	row = append(row, closeButton())
	if current < total-1 {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("Next ➡️", callbackData(cbRead, current+1)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

// pageCount returns how many picker pages total chapters need.
func pageCount(total, perPage int) int {
	if total <= 0 {
		return 1
	}
	return (total + perPage - 1) / perPage
}

func chapterPickerKeyboard(chapters []*types.Chapter, page, perPage int) tgbotapi.InlineKeyboardMarkup {
	pages := pageCount(len(chapters), perPage)
	page = min(max(page, 0), pages-1)

	var rows [][]tgbotapi.InlineKeyboardButton
	start := page * perPage
	end := min(start+perPage, len(chapters))
	for i := start; i < end; i++ {
		label := strconv.Itoa(i+1) + ". " + truncate(chapters[i].Title, 30)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, callbackData(cbRead, i)),
		))
	}

	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️", callbackData(cbPage, page-1)))
	}
	nav = append(nav, closeButton())
	if page < pages-1 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("➡️", callbackData(cbPage, page+1)))
	}
	rows = append(rows, nav)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func onOff(v bool) string {
	if v {
		return "✅ ON"
	}
	return "❌ OFF"
}

func settingsKeyboard(s storage.Settings) tgbotapi.InlineKeyboardMarkup {
	mode := "📱 Telegram"
	if s.ReadingMode == storage.ModeFile {
		mode = "📁 File"
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📖 Reading Mode: "+mode, callbackData(cbSetting, storage.SettingReadingMode))),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⏭ Auto Next: "+onOff(s.AutoNext), callbackData(cbSetting, storage.SettingAutoNext))),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🖼 Send Cover: "+onOff(s.SendCover), callbackData(cbSetting, storage.SettingSendCover))),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⬇️ DL Buttons: "+onOff(s.DownloadButtons), callbackData(cbSetting, storage.SettingDownloadButtons))),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✅ Done", cbClose)),
	)
}

func searchKeyboard(results []types.SearchResult) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(results))
	for i, r := range results {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📚 "+truncate(r.Title, 35), callbackData(cbNovel, i)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
