// Package messaging implements the outbound signal channel named in §6: a
// venue-agnostic Notifier interface with a Telegram Bot API implementation,
// so a future non-Telegram backend can be substituted without touching the
// signal emitter.
package messaging

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Button is one inline keyboard button rendered under a notification.
type Button struct {
	Text string
	URL  string
}

// Notification is the channel-agnostic message the signal emitter sends.
type Notification struct {
	Text    string
	Buttons []Button // rendered as a single-row inline keyboard when non-empty
}

// Notifier is the venue-agnostic outbound messaging contract (§6). Send
// returns the provider's message id on success, or nil with a non-nil error
// on failure the caller should treat as transient (retried on the next
// tick, within the signal's existing cooldown window).
type Notifier interface {
	Send(ctx context.Context, n Notification) (*int64, error)
}

// TelegramNotifier sends notifications to a single configured chat via the
// Telegram Bot API.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramNotifier wraps an authenticated bot API client.
func NewTelegramNotifier(bot *tgbotapi.BotAPI, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatID: chatID}
}

// Send renders n as a tgbotapi.MessageConfig, optionally attaching a
// single-row inline keyboard built from n.Buttons, and returns the
// resulting message_id.
func (t *TelegramNotifier) Send(ctx context.Context, n Notification) (*int64, error) {
	msg := tgbotapi.NewMessage(t.chatID, n.Text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if len(n.Buttons) > 0 {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(n.Buttons))
		for _, b := range n.Buttons {
			if b.URL == "" {
				continue
			}
			row = append(row, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
		}
		if len(row) > 0 {
			msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(row)
		}
	}

	sent, err := t.bot.Send(msg)
	if err != nil {
		return nil, fmt.Errorf("messaging: telegram send: %w", err)
	}
	id := int64(sent.MessageID)
	return &id, nil
}
