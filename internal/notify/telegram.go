package notify

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gemex-ace/internal/interfaces"
	"gemex-ace/internal/logger"
)

// MaxMessageLen keeps messages under Telegram's 4096 character limit.
const MaxMessageLen = 4000

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends messages to one chat. The bot connection is opened on the
// first message.
type Telegram struct {
	token     string
	chatID    int64
	parseMode string

	once    sync.Once
	bot     sender
	initErr error
}

var _ interfaces.Notifier = (*Telegram)(nil)

func NewTelegram(token, chatID, parseMode string) (*Telegram, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", chatID, err)
	}
	return &Telegram{token: token, chatID: id, parseMode: parseMode}, nil
}

func (t *Telegram) connect(ctx context.Context) error {
	t.once.Do(func() {
		if t.bot != nil {
			return
		}
		bot, err := tgbotapi.NewBotAPI(t.token)
		if err != nil {
			t.initErr = fmt.Errorf("telegram connect: %w", err)
			return
		}
		bot.Debug = false
		logger.Info(ctx, "Telegram connected", "bot", bot.Self.UserName)
		t.bot = bot
	})
	return t.initErr
}

// Notify sends text, split into numbered parts when it is too long. A part that
// Telegram rejects as Markdown is resent as plain text.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	if err := t.connect(ctx); err != nil {
		return err
	}
	parts := Split(text, MaxMessageLen)
	for i, part := range parts {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(t.chatID, part)
		msg.ParseMode = t.parseMode
		msg.DisableWebPagePreview = true
		if _, err := t.bot.Send(msg); err != nil {
			if t.parseMode == "" {
				return fmt.Errorf("telegram send part %d/%d: %w", i+1, len(parts), err)
			}
			logger.Warn(ctx, "Telegram rejected formatted message, retrying as plain text", "part", i+1, "error", err)
			msg.ParseMode = ""
			if _, err := t.bot.Send(msg); err != nil {
				return fmt.Errorf("telegram send part %d/%d: %w", i+1, len(parts), err)
			}
		}
	}
	logger.Debug(ctx, "Telegram message sent", "parts", len(parts), "chars", len(text))
	return nil
}

// Noop drops every message. It is used when Telegram is not configured.
type Noop struct{}

var _ interfaces.Notifier = Noop{}

func (Noop) Notify(ctx context.Context, text string) error {
	logger.Debug(ctx, "Notification skipped, no notifier configured", "chars", len(text))
	return nil
}
