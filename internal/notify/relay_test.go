package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fentz26/pacer/internal/apperr"
)

func TestNtfyRelaySend(t *testing.T) {
	var got *http.Request
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got, body = r, string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	relay, err := NewNtfyRelay(srv.URL+"/", "pacer-alerts", "tk_secret", srv.Client())
	require.NoError(t, err)

	err = relay.Send(context.Background(), Message{
		Title:    "Behind pace",
		Body:     "6 points behind",
		Priority: 4,
		Tags:     []string{"pacer", "warning"},
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/pacer-alerts", got.URL.Path)
	assert.Equal(t, "Behind pace", got.Header.Get("Title"))
	assert.Equal(t, "4", got.Header.Get("Priority"))
	assert.Equal(t, "pacer,warning", got.Header.Get("Tags"))
	assert.Equal(t, "Bearer tk_secret", got.Header.Get("Authorization"))
	assert.Equal(t, "6 points behind", body)
}

func TestNtfyRelayErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic limit reached", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	relay, err := NewNtfyRelay(srv.URL, "t", "", srv.Client())
	require.NoError(t, err)

	err = relay.Send(context.Background(), Message{Body: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrRelayUnavailable))
	assert.Contains(t, err.Error(), "429")
}

func TestNtfyRelayUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	relay, err := NewNtfyRelay(url, "t", "", nil)
	require.NoError(t, err)
	err = relay.Send(context.Background(), Message{Body: "x"})
	assert.True(t, errors.Is(err, apperr.ErrRelayUnavailable))
}

func TestNewNtfyRelayRequiresTopic(t *testing.T) {
	_, err := NewNtfyRelay("https://ntfy.sh", "", "", nil)
	assert.Error(t, err)
}

type mockBot struct {
	sent []tgbotapi.Chattable
	err  error
}

func (m *mockBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.sent = append(m.sent, c)
	return tgbotapi.Message{}, m.err
}

func TestTelegramRelaySend(t *testing.T) {
	bot := &mockBot{}
	calls := 0
	factory := func(token, endpoint string, client *http.Client) (TelegramBot, error) {
		calls++
		assert.Equal(t, "fake-token", token)
		return bot, nil
	}

	relay, err := NewTelegramRelayWithFactory("fake-token", 456, nil, factory)
	require.NoError(t, err)
	assert.Equal(t, 0, calls, "bot must be created lazily")

	ctx := context.Background()
	require.NoError(t, relay.Send(ctx, Message{Title: "Pace check", Body: "3 points behind", Priority: 3}))
	require.NoError(t, relay.Send(ctx, Message{Body: "again", Priority: 1}))
	assert.Equal(t, 1, calls)

	require.Len(t, bot.sent, 2)
	first, ok := bot.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(456), first.ChatID)
	assert.Equal(t, "Pace check\n\n3 points behind", first.Text)
	assert.False(t, first.DisableNotification)

	second := bot.sent[1].(tgbotapi.MessageConfig)
	assert.Equal(t, "again", second.Text)
	assert.True(t, second.DisableNotification)
}

func TestTelegramRelayErrors(t *testing.T) {
	_, err := NewTelegramRelay("", 1, nil)
	assert.Error(t, err)
	_, err = NewTelegramRelay("token", 0, nil)
	assert.Error(t, err)

	failing := func(token, endpoint string, client *http.Client) (TelegramBot, error) {
		return nil, errors.New("unauthorized")
	}
	relay, err := NewTelegramRelayWithFactory("token", 1, nil, failing)
	require.NoError(t, err)
	err = relay.Send(context.Background(), Message{Body: "x"})
	assert.True(t, errors.Is(err, apperr.ErrRelayUnavailable))

	bot := &mockBot{err: errors.New("chat not found")}
	relay, err = NewTelegramRelayWithFactory("token", 1, nil, func(string, string, *http.Client) (TelegramBot, error) {
		return bot, nil
	})
	require.NoError(t, err)
	err = relay.Send(context.Background(), Message{Body: "x"})
	assert.True(t, errors.Is(err, apperr.ErrRelayUnavailable))
}

func TestNewRelay(t *testing.T) {
	r, err := NewRelay(RelayConfig{})
	require.NoError(t, err)
	assert.Equal(t, RelayLog, r.Name())
	assert.NoError(t, r.Send(context.Background(), Message{Title: "t"}))

	r, err = NewRelay(RelayConfig{Kind: "ntfy", NtfyTopic: "alerts"})
	require.NoError(t, err)
	assert.Equal(t, RelayNtfy, r.Name())

	r, err = NewRelay(RelayConfig{Kind: "Telegram", TelegramToken: "x", TelegramChatID: 9})
	require.NoError(t, err)
	assert.Equal(t, RelayTelegram, r.Name())

	_, err = NewRelay(RelayConfig{Kind: "pigeon"})
	assert.Error(t, err)
}
