// Package telegram relays SMS parts into a Telegram chat, one message per part.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rg/smsrelay/internal/messaging"
)

// MaxMessageLength is Telegram's limit for a single text message.
const MaxMessageLength = 4096

type Client struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewClient(token string, chatID int64) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return newClient(bot, chatID), nil
}

// NewClientWithEndpoint talks to a non-default Bot API server. The endpoint
// is a format string taking the token and the method name.
func NewClientWithEndpoint(token, endpoint string, chatID int64, httpClient tgbotapi.HTTPClient) (*Client, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return newClient(bot, chatID), nil
}

func newClient(bot *tgbotapi.BotAPI, chatID int64) *Client {
	bot.Debug = false
	slog.Info("Authorized on Telegram account", "username", bot.Self.UserName, "chat_id", chatID)

	return &Client{
		bot:    bot,
		chatID: chatID,
	}
}

func (c *Client) Send(ctx context.Context, part *messaging.OutgoingPart) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Plain text only: SMS content must reach the chat byte for byte.
	msg := tgbotapi.NewMessage(c.chatID, formatPart(part))
	msg.DisableWebPagePreview = true

	sent, err := c.bot.Send(msg)
	if err != nil {
		return fmt.Errorf("failed to send part %d of %d: %w", part.Index, part.Total, err)
	}

	slog.Debug("Part relayed to Telegram",
		"sms_id", part.SmsID,
		"part", part.Index,
		"total", part.Total,
		"message_id", sent.MessageID)
	return nil
}

func (c *Client) Name() string {
	return "telegram"
}

// formatPart prefixes the part with its routing header. The header is
// dropped when both would not fit in one Telegram message.
func formatPart(part *messaging.OutgoingPart) string {
	header := fmt.Sprintf("SMS %s -> %s [%d/%d]", part.From, part.To, part.Index, part.Total)
	text := header + "\n" + part.Text
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return part.Text
	}
	return text
}
