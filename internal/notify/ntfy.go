package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/fentz26/pacer/internal/apperr"
)

// NtfyRelay publishes to an ntfy topic.
type NtfyRelay struct {
	url    string
	token  string
	client *http.Client
}

// NewNtfyRelay creates a relay posting to {server}/{topic}.
func NewNtfyRelay(server, topic, token string, client *http.Client) (*NtfyRelay, error) {
	if server == "" {
		server = "https://ntfy.sh"
	}
	if topic == "" {
		return nil, fmt.Errorf("ntfy topic is required")
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &NtfyRelay{
		url:    strings.TrimRight(server, "/") + "/" + strings.TrimLeft(topic, "/"),
		token:  token,
		client: client,
	}, nil
}

func (r *NtfyRelay) Name() string { return RelayNtfy }

func (r *NtfyRelay) Send(ctx context.Context, m Message) error {
	const op = "ntfy send"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, strings.NewReader(m.Body))
	if err != nil {
		return apperr.Relay(op, err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if m.Title != "" {
		req.Header.Set("Title", m.Title)
	}
	if m.Priority > 0 {
		req.Header.Set("Priority", strconv.Itoa(m.Priority))
	}
	if len(m.Tags) > 0 {
		req.Header.Set("Tags", strings.Join(m.Tags, ","))
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return apperr.Relay(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperr.Relay(op, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
