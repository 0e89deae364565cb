package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID, user := msg.Chat.ID, msg.From

	switch msg.Command() {
	case "start":
		if _, err := b.store.AddUser(ctx, user.ID, user.FirstName); err != nil {
			b.logger.Warn("add user failed", "user_id", user.ID, "error", err)
		}
		b.sendHTML(chatID, fmt.Sprintf(startText, escape(user.FirstName)), nil)
	case "help":
		b.sendHTML(chatID, helpText, nil)
	case "about":
		b.sendHTML(chatID, fmt.Sprintf(aboutText, escape(b.storeTyp)), nil)
	case "search":
		if _, err := b.store.AddUser(ctx, user.ID, user.FirstName); err != nil {
			b.logger.Warn("add user failed", "user_id", user.ID, "error", err)
		}
		b.search(ctx, chatID, user.ID, strings.TrimSpace(msg.CommandArguments()))
	case "settings":
		settings, err := b.store.Settings(ctx, user.ID)
		if err != nil {
			b.logger.Warn("load settings failed", "user_id", user.ID, "error", err)
			b.sendText(chatID, "❌ Could not load your settings.")
			return
		}
		b.sendHTML(chatID, settingsText, settingsKeyboard(settings))
	case "stats":
		if b.cfg.OwnerID == 0 || user.ID != b.cfg.OwnerID {
			return
		}
		stats, err := b.store.Stats(ctx)
		if err != nil {
			b.logger.Warn("load stats failed", "error", err)
			b.sendText(chatID, "❌ Could not load stats.")
			return
		}
		b.sendHTML(chatID, formatStats(stats), nil)
	default:
		b.sendText(chatID, "Unknown command. Try /help.")
	}
}

func (b *Bot) search(ctx context.Context, chatID, userID int64, query string) {
	if query == "" {
		b.sendHTML(chatID, "Usage: <code>/search novel name</code>", nil)
		return
	}

	wait, err := b.sendHTML(chatID, "🔍 Searching for: <b>"+escape(query)+"</b>…", nil)
	if err != nil {
		return
	}

	results, err := b.scraper.Search(ctx, query)
	if err != nil {
		b.logger.Warn("search failed", "query", query, "error", err)
	}
	if len(results) == 0 {
		b.editHTML(chatID, wait.MessageID, "❌ No results found for <b>"+escape(query)+"</b>.\nTry a different keyword or paste a direct link.", nil)
		return
	}

	b.searches.Put(userID, results)
	kb := searchKeyboard(results)
	b.editHTML(chatID, wait.MessageID, searchText(query, results), &kb)
}
