package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/orderops/unshipped/internal/worker"
)

// Options tunes the batched fetch.
type Options struct {
	// BatchSize is the fixed number of SKUs per transport call.
	BatchSize int
	// MaxRetries bounds retries per batch for transient failures.
	MaxRetries int
	// RetryDelay is the fixed inter-attempt delay.
	RetryDelay time.Duration
	// Concurrency bounds batches in flight at once.
	Concurrency int
	// RequestTimeout bounds one transport call.
	RequestTimeout time.Duration
	// RateLimitRPS is a global request rate limit; <=0 disables.
	RateLimitRPS float64
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 20
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 2 * time.Second
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	return o
}

// Client dispatches attribute fetches through a transport with
// partial-failure isolation: a batch that exhausts its retries is dropped
// and reported, never fatal.
type Client struct {
	transport Transport
	logger    zerolog.Logger
}

func NewClient(transport Transport, logger zerolog.Logger) *Client {
	return &Client{
		transport: transport,
		logger:    logger.With().Str("component", "enrich").Logger(),
	}
}

// Fetch resolves attribute bags for the given SKUs. Input SKUs are
// deduplicated, split into fixed-size batches and dispatched concurrently.
// The returned warnings name each dropped batch; requested SKUs without a
// successful batch simply have no entry in the result.
func (c *Client) Fetch(ctx context.Context, skus []string, opts Options) (map[string]AttributeBag, []string, error) {
	opts = opts.withDefaults()

	deduped := dedupe(skus)
	if len(deduped) == 0 {
		return map[string]AttributeBag{}, nil, nil
	}
	batches := split(deduped, opts.BatchSize)
	c.logger.Info().Int("skus", len(deduped)).Int("batches", len(batches)).Msg("fetching attributes")

	results, err := worker.Run(ctx, batches, func(ctx context.Context, batch []string) (map[string]AttributeBag, error) {
		return c.fetchBatch(ctx, batch)
	}, worker.Options{
		Workers:        opts.Concurrency,
		MaxRetries:     opts.MaxRetries,
		RequestTimeout: opts.RequestTimeout,
		RateLimitRPS:   opts.RateLimitRPS,
		FailurePolicy:  worker.FailurePolicyPartialOutput,
		// Fixed inter-attempt delay.
		BackoffInitial:    opts.RetryDelay,
		BackoffMax:        opts.RetryDelay,
		BackoffJitterFrac: 0,
	})
	if err != nil {
		return nil, nil, err
	}

	out := make(map[string]AttributeBag, len(deduped))
	var warnings []string
	for i, res := range results {
		if res.Err != nil {
			warnings = append(warnings, fmt.Sprintf("enrichment batch %d/%d dropped (%d SKUs): %v", i+1, len(batches), len(res.Input), res.Err))
			c.logger.Warn().Int("batch", i+1).Int("skus", len(res.Input)).Err(res.Err).Msg("enrichment batch dropped")
			continue
		}
		for sku, bag := range res.Output {
			out[sku] = bag
		}
	}
	return out, warnings, nil
}

// fetchBatch wraps one transport call, discarding response keys that were
// never requested.
func (c *Client) fetchBatch(ctx context.Context, batch []string) (map[string]AttributeBag, error) {
	got, err := c.transport.FetchBatch(ctx, batch)
	if err != nil {
		return nil, err
	}
	requested := make(map[string]struct{}, len(batch))
	for _, sku := range batch {
		requested[sku] = struct{}{}
	}
	out := make(map[string]AttributeBag, len(got))
	for sku, bag := range got {
		if _, ok := requested[sku]; !ok {
			continue
		}
		out[sku] = bag
	}
	return out, nil
}

func dedupe(skus []string) []string {
	seen := make(map[string]struct{}, len(skus))
	out := make([]string, 0, len(skus))
	for _, sku := range skus {
		if sku == "" {
			continue
		}
		if _, ok := seen[sku]; ok {
			continue
		}
		seen[sku] = struct{}{}
		out = append(out, sku)
	}
	return out
}

func split(skus []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(skus); start += size {
		end := start + size
		if end > len(skus) {
			end = len(skus)
		}
		out = append(out, skus[start:end])
	}
	return out
}
