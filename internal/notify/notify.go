// Package notify posts a chat-style alert for a pull request in BAD state
// (once per reconciliation pass while it stays BAD), so a human notices a
// broken approval/CI signal without
// having to watch the snapshot page. The payload is a colored
// Slack-compatible attachment, posted to a generic incoming webhook URL
// rather than any specific chat platform's API.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/landbot/landbot/internal/pr"
)

const badColor = "#D24B4E"

// Attachment mirrors the Slack/Mattermost incoming-webhook attachment
// shape: title, link, colored bar, body text.
type Attachment struct {
	Color     string `json:"color"`
	Title     string `json:"title"`
	TitleLink string `json:"title_link,omitempty"`
	Text      string `json:"text,omitempty"`
}

type payload struct {
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments"`
}

// Webhook posts BAD-state alerts to a single incoming webhook URL.
type Webhook struct {
	URL    string
	Client *http.Client
}

// New builds a Webhook with a bounded-timeout HTTP client.
func New(url string) *Webhook {
	return &Webhook{URL: url, Client: &http.Client{Timeout: 10 * time.Second}}
}

// NotifyBad implements reconcile.Notifier.
func (w *Webhook) NotifyBad(ctx context.Context, repo string, p *pr.PR) error {
	if w.URL == "" {
		return nil
	}

	body := p.Describe()
	attachment := Attachment{
		Color: badColor,
		Title: fmt.Sprintf("%s: PR #%d is blocked", repo, p.Number),
		Text:  body,
	}
	if url := p.Rules().CommitURL(p.HeadSHA); url != "" {
		attachment.TitleLink = url
	}

	buf, err := json.Marshal(payload{
		Text:        fmt.Sprintf("%s needs attention", p.Short()),
		Attachments: []Attachment{attachment},
	})
	if err != nil {
		return fmt.Errorf("notify: encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("notify: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: posting webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
