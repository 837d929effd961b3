// Package notifier is the HTTP contract client for the out-of-scope bot
// collaborator (spec.md §4.8, SPEC_FULL.md §4.7 ADDED): it delivers
// user-facing notifications (ready-for-approval prompts, reminders,
// escalations, completion/cancellation confirmations) into the chat the
// case originated from.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Notification is the POST {BOT_URL}/notify request body.
type Notification struct {
	CaseID   string            `json:"caseId"`
	ChatID   string            `json:"chatId"`
	Template string            `json:"template"`
	Params   map[string]string `json:"params,omitempty"`
}

// Client is the bot service's HTTP client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a Client against baseURL (spec.md §6 BOT_URL).
func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, httpClient: &http.Client{Timeout: 15 * time.Second}}
}

// Notify delivers one notification in a single attempt. The NotifyUser
// activity wraps it in workflowengine.NotifyUserPolicy; the escalation and
// outbox adapters and the saga's compensation call it directly.
func (c *Client) Notify(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/notify", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notification request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("notifier returned status %d: %s", resp.StatusCode, string(raw))
	}
	return nil
}
