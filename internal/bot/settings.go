package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) onSetting(ctx context.Context, cb *tgbotapi.CallbackQuery, chatID, userID int64, key string) {
	settings, err := b.store.Settings(ctx, userID)
	if err != nil {
		b.logger.Warn("load settings failed", "user_id", userID, "error", err)
		b.alert(cb.ID, "❌ Could not load your settings.")
		return
	}

	value, err := settings.Toggled(key)
	if err != nil {
		b.alert(cb.ID, "Unknown setting.")
		return
	}
	if err := b.store.UpdateSetting(ctx, userID, key, value); err != nil {
		b.logger.Warn("update setting failed", "user_id", userID, "key", key, "error", err)
		b.alert(cb.ID, "❌ Could not save the setting.")
		return
	}
	settings.Set(key, value)

	b.answer(cb.ID, "✅ Setting updated!")
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, cb.Message.MessageID, settingsKeyboard(settings))
	b.send(edit)
}
