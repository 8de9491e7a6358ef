// Package notify decides when to nudge the user about pace and delivers the
// nudge through a relay.
package notify

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

// Message is one notification.
type Message struct {
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Priority int      `json:"priority"`
	Tags     []string `json:"tags,omitempty"`
}

// Relay delivers a message with a single attempt.
type Relay interface {
	Name() string
	Send(ctx context.Context, m Message) error
}

// Relay kinds.
const (
	RelayLog      = "log"
	RelayNtfy     = "ntfy"
	RelayTelegram = "telegram"
)

// RelayConfig selects and configures a relay.
type RelayConfig struct {
	Kind           string
	NtfyServer     string
	NtfyTopic      string
	NtfyToken      string
	TelegramToken  string
	TelegramChatID int64
	Timeout        time.Duration
}

// NewRelay builds the relay named by cfg.Kind. An empty kind logs only.
func NewRelay(cfg RelayConfig) (Relay, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	switch strings.ToLower(cfg.Kind) {
	case "", RelayLog:
		return LogRelay{}, nil
	case RelayNtfy:
		return NewNtfyRelay(cfg.NtfyServer, cfg.NtfyTopic, cfg.NtfyToken, client)
	case RelayTelegram:
		return NewTelegramRelay(cfg.TelegramToken, cfg.TelegramChatID, client)
	default:
		return nil, fmt.Errorf("unknown relay kind %q", cfg.Kind)
	}
}

// LogRelay writes notifications to the process log.
type LogRelay struct{}

func (LogRelay) Name() string { return RelayLog }

func (LogRelay) Send(_ context.Context, m Message) error {
	log.Printf("[urgency] %s (priority %d): %s", m.Title, m.Priority, m.Body)
	return nil
}
