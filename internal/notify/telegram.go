// Package notify delivers approval and error notices over the Telegram
// Bot API. Delivery failures are logged and swallowed; notifications must
// never fail a sync pass.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/door-schedule-sync/backend/internal/config"
	"github.com/door-schedule-sync/backend/internal/gate"
)

// Telegram sends plain-text messages to a set of chat IDs. A client with
// no token or no chat IDs is disabled and no-ops silently.
type Telegram struct {
	token      string
	chatIDs    []string
	httpClient *http.Client
	baseURL    string
}

// NewTelegram creates a notifier from config.
func NewTelegram(cfg config.TelegramConfig) *Telegram {
	var chatIDs []string
	for _, id := range strings.Split(cfg.ChatIDs, ",") {
		if id = strings.TrimSpace(id); id != "" {
			chatIDs = append(chatIDs, id)
		}
	}
	return &Telegram{
		token:      strings.TrimSpace(cfg.BotToken),
		chatIDs:    chatIDs,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    "https://api.telegram.org",
	}
}

// Enabled reports whether the notifier is configured to deliver anything.
func (t *Telegram) Enabled() bool {
	return t.token != "" && len(t.chatIDs) > 0
}

// Send delivers a plain-text message to all configured chats. Errors are
// logged per chat and never returned.
func (t *Telegram) Send(ctx context.Context, text string) {
	if !t.Enabled() {
		return
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	for _, chatID := range t.chatIDs {
		body, err := json.Marshal(map[string]string{"chat_id": chatID, "text": text})
		if err != nil {
			continue
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			continue
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := t.httpClient.Do(req)
		if err != nil {
			log.Printf("Telegram send failed for chat %s: %v", chatID, err)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			log.Printf("Telegram send failed for chat %s: HTTP %d", chatID, resp.StatusCode)
		}
	}
}

// NotifyFlagged announces newly flagged pending approvals.
func (t *Telegram) NotifyFlagged(ctx context.Context, flagged []gate.PendingApproval) {
	if len(flagged) == 0 || !t.Enabled() {
		return
	}
	lines := []string{"⚠️ Door schedule approval required", ""}
	for _, item := range flagged {
		name := item.Name
		if name == "" {
			name = "(unknown)"
		}
		lines = append(lines, "• "+name)
		if item.Reason != "" {
			lines = append(lines, "  "+item.Reason)
		}
	}
	lines = append(lines, "", "Review and approve at the dashboard.")
	t.Send(ctx, strings.Join(lines, "\n"))
}

// NotifySyncError announces a failed sync pass.
func (t *Telegram) NotifySyncError(ctx context.Context, errMsg string) {
	t.Send(ctx, "❌ Door schedule sync error:\n"+errMsg)
}
