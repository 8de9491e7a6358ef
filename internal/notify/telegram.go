package notify

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/fentz26/pacer/internal/apperr"
)

// TelegramBot is the part of the bot API the relay needs.
type TelegramBot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// BotFactory creates a TelegramBot. Swapped out in tests.
type BotFactory func(token, apiEndpoint string, client *http.Client) (TelegramBot, error)

var defaultBotFactory BotFactory = func(token, apiEndpoint string, client *http.Client) (TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, apiEndpoint, client)
	if err != nil {
		return nil, err
	}
	log.Printf("[telegram] authorized as @%s", bot.Self.UserName)
	return bot, nil
}

// TelegramRelay sends notifications as bot messages to one chat. The bot is
// created on first send so a daemon can start while Telegram is unreachable.
type TelegramRelay struct {
	token   string
	chatID  int64
	client  *http.Client
	factory BotFactory

	mu  sync.Mutex
	bot TelegramBot
}

// NewTelegramRelay creates a relay for chatID.
func NewTelegramRelay(token string, chatID int64, client *http.Client) (*TelegramRelay, error) {
	return NewTelegramRelayWithFactory(token, chatID, client, defaultBotFactory)
}

// NewTelegramRelayWithFactory creates a relay with a custom bot factory.
func NewTelegramRelayWithFactory(token string, chatID int64, client *http.Client, factory BotFactory) (*TelegramRelay, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegram chat id is required")
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &TelegramRelay{token: token, chatID: chatID, client: client, factory: factory}, nil
}

func (r *TelegramRelay) Name() string { return RelayTelegram }

func (r *TelegramRelay) Send(ctx context.Context, m Message) error {
	const op = "telegram send"
	if err := ctx.Err(); err != nil {
		return apperr.Relay(op, err)
	}
	bot, err := r.getBot()
	if err != nil {
		return apperr.Relay(op, err)
	}

	msg := tgbotapi.NewMessage(r.chatID, formatTelegram(m))
	msg.DisableNotification = m.Priority > 0 && m.Priority <= 2
	if _, err := bot.Send(msg); err != nil {
		return apperr.Relay(op, err)
	}
	return nil
}

func (r *TelegramRelay) getBot() (TelegramBot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bot != nil {
		return r.bot, nil
	}
	bot, err := r.factory(r.token, tgbotapi.APIEndpoint, r.client)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	r.bot = bot
	return bot, nil
}

func formatTelegram(m Message) string {
	if m.Title == "" {
		return m.Body
	}
	if m.Body == "" {
		return m.Title
	}
	return m.Title + "\n\n" + m.Body
}
