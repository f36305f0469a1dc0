package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"pdf-chat-bot/internal/constant"
)

// Button is one inline keyboard button: Label is shown, Data comes back in
// the callback query.
type Button struct {
	Label string
	Data  string
}

// Client wraps the Telegram Bot API with the small surface the chatbot
// needs. All outbound text goes through message splitting so nothing ever
// exceeds Telegram's length limit.
type Client struct {
	api *tgbotapi.BotAPI
}

func NewClient(token string) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	return &Client{api: api}, nil
}

func (c *Client) Username() string {
	return c.api.Self.UserName
}

// SendMessage sends text to the chat, splitting into multiple messages when
// it exceeds the Telegram limit.
func (c *Client) SendMessage(chatId int64, text string) error {
	for _, part := range SplitMessage(text, constant.TelegramMessageLimit) {
		msg := tgbotapi.NewMessage(chatId, part)
		if _, err := c.api.Send(msg); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

// SendKeyboard sends text with an inline keyboard, one button per row.
func (c *Client) SendKeyboard(chatId int64, text string, buttons []Button) error {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data),
		))
	}

	msg := tgbotapi.NewMessage(chatId, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("send keyboard: %w", err)
	}
	return nil
}

// AnswerCallback acknowledges a callback query so the client stops showing
// a spinner on the pressed button.
func (c *Client) AnswerCallback(callbackId string) error {
	_, err := c.api.Request(tgbotapi.NewCallback(callbackId, ""))
	if err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

// SendTyping shows the "typing..." chat action. Failures are ignored, the
// action is cosmetic.
func (c *Client) SendTyping(chatId int64) {
	action := tgbotapi.NewChatAction(chatId, tgbotapi.ChatTyping)
	_, _ = c.api.Request(action)
}

// SetWebhook registers url as the update webhook. The secret is embedded in
// the path by the caller; Telegram has no other shared-secret mechanism on
// this API version.
func (c *Client) SetWebhook(url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("build webhook config: %w", err)
	}
	if _, err := c.api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}

func (c *Client) DeleteWebhook() error {
	_, err := c.api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: false})
	if err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}

// Updates starts long polling and returns the update channel. The channel
// closes when ctx is cancelled.
func (c *Client) Updates(ctx context.Context) tgbotapi.UpdatesChannel {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30

	ch := c.api.GetUpdatesChan(cfg)
	go func() {
		<-ctx.Done()
		c.api.StopReceivingUpdates()
	}()
	return ch
}

// SplitMessage cuts text into pieces of at most limit runes, preferring to
// break at a newline, then at a space, before cutting mid-word.
func SplitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var parts []string
	for len(runes) > limit {
		cut := limit
		window := string(runes[:limit])
		if i := strings.LastIndexByte(window, '\n'); i > 0 {
			cut = len([]rune(window[:i]))
		} else if i := strings.LastIndexByte(window, ' '); i > 0 {
			cut = len([]rune(window[:i]))
		}
		parts = append(parts, strings.TrimSpace(string(runes[:cut])))
		runes = runes[cut:]
	}
	if trimmed := strings.TrimSpace(string(runes)); trimmed != "" {
		parts = append(parts, trimmed)
	}
	return parts
}
