// Package notify posts the run summary to an operations webhook. The
// notification is fire-and-forget: a delivery failure is surfaced as a
// warning, never as a run failure.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/orderops/unshipped/internal/util"
)

// Embed colors for the summary card.
const (
	ColorOK      = 0x00FF00
	ColorWarning = 0xFFA500
)

// Webhook posts Discord-style embeds. A Webhook with an empty URL is valid
// and silently drops every send, so callers need no nil checks.
type Webhook struct {
	url  string
	http *http.Client
}

func New(url string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Webhook{
		url:  strings.TrimSpace(url),
		http: &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether a webhook URL is configured.
func (w *Webhook) Enabled() bool {
	return w != nil && w.url != ""
}

type embed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

type payload struct {
	Embeds []embed `json:"embeds"`
}

// Send posts one embed. Errors never echo the webhook URL: it embeds the
// auth token.
func (w *Webhook) Send(ctx context.Context, title, description string, color int) error {
	if !w.Enabled() {
		return nil
	}

	body, err := json.Marshal(payload{Embeds: []embed{{
		Title:       title,
		Description: description,
		Color:       color,
	}}})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook request: %s", util.RedactSecrets(err.Error()))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.http.Do(req)
	if err != nil {
		return fmt.Errorf("webhook post: %s", util.RedactSecrets(err.Error()))
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("webhook post: unexpected status %s", resp.Status)
	}
	return nil
}
