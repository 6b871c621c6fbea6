// Package enrich fetches auxiliary SKU attributes from a remote service in
// bounded, retried batches and merges them back onto the reconciled
// partitions.
package enrich

import (
	"context"
	"fmt"
)

// AttributeBag is the open attribute set fetched for one SKU.
type AttributeBag = map[string]string

// Transport performs one batch call against the attribute service. A call
// either returns a bag per (subset of the) requested SKUs or fails as a
// whole.
type Transport interface {
	FetchBatch(ctx context.Context, skus []string) (map[string]AttributeBag, error)
}

// DataShapeError marks a response whose payload did not carry the expected
// per-SKU keying. Shape failures are never retried: the same request would
// produce the same malformed answer.
type DataShapeError struct {
	Reason string
}

func (e *DataShapeError) Error() string {
	if e == nil || e.Reason == "" {
		return "unexpected enrichment response shape"
	}
	return fmt.Sprintf("unexpected enrichment response shape: %s", e.Reason)
}
