// Package gemini sources SKU attributes from the Gemini API instead of the
// HTTP attribute service. Useful when no catalog service is provisioned and
// approximate attributes are acceptable.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"google.golang.org/genai"

	"github.com/orderops/unshipped/internal/enrich"
	"github.com/orderops/unshipped/internal/worker"
)

type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL string
}

// Transport implements enrich.Transport on top of structured Gemini output.
type Transport struct {
	client *genai.Client
	model  string
}

func New(ctx context.Context, cfg Config) (*Transport, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("gemini model is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	return &Transport{
		client: client,
		model:  strings.TrimSpace(cfg.Model),
	}, nil
}

// No ResponseSchema here: the data object is keyed by the SKUs themselves,
// which a static schema cannot express. The JSON MIME type plus the prompt
// contract is enough; malformed answers surface as DataShapeError.
type responseSchema struct {
	Data map[string]map[string]string `json:"data"`
}

// FetchBatch asks the model for one attribute bag per SKU in the batch.
func (t *Transport) FetchBatch(ctx context.Context, skus []string) (map[string]enrich.AttributeBag, error) {
	if len(skus) == 0 {
		return map[string]enrich.AttributeBag{}, nil
	}

	resp, err := t.client.Models.GenerateContent(
		ctx,
		t.model,
		genai.Text(buildPrompt(skus)),
		&genai.GenerateContentConfig{
			CandidateCount:   1,
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		return nil, classifyErr(err)
	}

	var parsed responseSchema
	if err := json.Unmarshal([]byte(resp.Text()), &parsed); err != nil {
		return nil, &enrich.DataShapeError{Reason: "gemini response is not the expected JSON object"}
	}
	if parsed.Data == nil {
		return nil, &enrich.DataShapeError{Reason: "gemini response has no data object"}
	}

	out := make(map[string]enrich.AttributeBag, len(parsed.Data))
	for sku, bag := range parsed.Data {
		out[strings.TrimSpace(sku)] = bag
	}
	return out, nil
}

func buildPrompt(skus []string) string {
	// Keep this prompt public-safe: SKUs are internal identifiers, nothing
	// else about the order leaves the process.
	return strings.TrimSpace(`
You are a product catalog assistant. For each SKU below, infer whatever
attributes the SKU encodes (vendor token, product family, size, color,
variant) from its structure.

Return ONLY a single JSON object of the form:
{"data": {"<sku>": {"<attribute>": "<value>", ...}, ...}}

Rules:
- Include every SKU exactly as given as a key under "data".
- Attribute values are strings; use "" when unknown.
- Do not include extra top-level keys.

SKUs:
` + strings.Join(skus, "\n"))
}

func classifyErr(err error) error {
	// Wrap transient failures so the batch dispatcher retries with its
	// fixed delay.
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code/100 == 5 {
			return &worker.TransientError{Err: err}
		}
		return err
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &worker.TransientError{Err: err}
	}
	return err
}
