// Package httpapi is the HTTP JSON transport for the attribute service.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/orderops/unshipped/internal/enrich"
	"github.com/orderops/unshipped/internal/util"
	"github.com/orderops/unshipped/internal/worker"
)

// Transport posts SKU batches to the attribute service and decodes the
// per-SKU attribute bags.
type Transport struct {
	baseURL *url.URL
	apiKey  string
	http    *http.Client
}

// New constructs a transport for the service base URL. Accepts a full URL or
// a bare hostname (defaults to https).
func New(baseURL, apiKey string) (*Transport, error) {
	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		return nil, fmt.Errorf("attribute service URL is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse attribute service URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("attribute service URL must include a host (got %q)", baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/")

	return &Transport{
		baseURL: u,
		apiKey:  strings.TrimSpace(apiKey),
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

type fetchRequest struct {
	SKUs []string `json:"skus"`
}

type fetchResponse struct {
	Status bool                           `json:"status"`
	Data   map[string]enrich.AttributeBag `json:"data"`
}

// FetchBatch implements enrich.Transport. Transport and 429/5xx failures
// come back wrapped as transient so the caller's retry policy applies;
// payloads without the expected shape are permanent for the batch.
func (t *Transport) FetchBatch(ctx context.Context, skus []string) (map[string]enrich.AttributeBag, error) {
	body, err := json.Marshal(fetchRequest{SKUs: skus})
	if err != nil {
		return nil, err
	}

	u := t.baseURL.ResolveReference(&url.URL{Path: t.baseURL.Path + "/v1/attributes"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.http.Do(req)
	if err != nil {
		// The http client surfaces timeouts and connection failures here.
		return nil, &worker.TransientError{Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &worker.TransientError{Err: err}
	}
	if resp.StatusCode/100 != 2 {
		herr := newHTTPError("fetchAttributes", resp, rb)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode/100 == 5 {
			return nil, &worker.TransientError{Err: herr}
		}
		return nil, herr
	}

	var out fetchResponse
	if err := json.Unmarshal(rb, &out); err != nil {
		return nil, &enrich.DataShapeError{Reason: "response is not valid JSON"}
	}
	if !out.Status {
		return nil, fmt.Errorf("attribute service reported failure for batch of %d SKUs", len(skus))
	}
	if out.Data == nil {
		return nil, &enrich.DataShapeError{Reason: "response has no data object"}
	}
	return out.Data, nil
}

// HTTPError is a sanitized summary of a non-2xx attribute service response.
//
// Important: do not include raw response bodies here (can leak tokens).
type HTTPError struct {
	Op         string
	StatusCode int
	Status     string

	// Snippet is a redacted, truncated hint from the body.
	Snippet string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "attribute service http error"
	}
	msg := fmt.Sprintf("attribute service error: op=%s status=%s", strings.TrimSpace(e.Op), strings.TrimSpace(e.Status))
	if strings.TrimSpace(e.Snippet) != "" {
		msg += " body=" + strings.TrimSpace(e.Snippet)
	}
	return msg
}

func newHTTPError(op string, resp *http.Response, body []byte) *HTTPError {
	h := &HTTPError{Op: op}
	if resp != nil {
		h.StatusCode = resp.StatusCode
		h.Status = resp.Status
	}
	h.Snippet = redactAndTruncate(body)
	return h
}

func redactAndTruncate(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	// Keep this small: response bodies can contain sensitive data.
	const max = 256
	b := body
	if len(b) > max {
		b = b[:max]
	}
	s := util.RedactSecrets(string(b))
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(body) > max {
		return s + "..."
	}
	return s
}
