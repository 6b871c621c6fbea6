// Package kb builds the read-only knowledge base a run reconciles against:
// per label type, the union of known order identifiers and known SKUs from
// the old and new reference sources.
package kb

import (
	"sort"

	"github.com/orderops/unshipped/internal/ingest"
	"github.com/orderops/unshipped/internal/order"
)

// Sets holds the known identifiers for one label type.
type Sets struct {
	OrderIDs map[string]struct{}
	SKUs     map[string]struct{}
}

// KnowledgeBase is an immutable snapshot shared by all vendor workers.
// It is never written after Build returns, so concurrent reads need no
// locking.
type KnowledgeBase struct {
	byLabel map[order.LabelType]Sets
}

// Build unions the old and new reference sources per label type. A label
// present in only one source still yields that source's sets.
func Build(oldSrc, newSrc ingest.Source) *KnowledgeBase {
	byLabel := make(map[order.LabelType]Sets)

	merge := func(src ingest.Source) {
		for label, sheet := range src {
			sets, ok := byLabel[label]
			if !ok {
				sets = Sets{
					OrderIDs: make(map[string]struct{}, len(sheet.OrderIDs)),
					SKUs:     make(map[string]struct{}, len(sheet.SKUs)),
				}
			}
			for id := range sheet.OrderIDs {
				sets.OrderIDs[id] = struct{}{}
			}
			for sku := range sheet.SKUs {
				sets.SKUs[sku] = struct{}{}
			}
			byLabel[label] = sets
		}
	}
	merge(oldSrc)
	merge(newSrc)

	return &KnowledgeBase{byLabel: byLabel}
}

// KnownOrders returns the known order-identifier set for a label type.
// Labels with no reference presence yield an empty set.
func (k *KnowledgeBase) KnownOrders(label order.LabelType) map[string]struct{} {
	if k == nil {
		return nil
	}
	return k.byLabel[label].OrderIDs
}

// KnownSKUs returns the known SKU set for a label type.
func (k *KnowledgeBase) KnownSKUs(label order.LabelType) map[string]struct{} {
	if k == nil {
		return nil
	}
	return k.byLabel[label].SKUs
}

// HasLabel reports whether either source carried a sheet for the label.
func (k *KnowledgeBase) HasLabel(label order.LabelType) bool {
	if k == nil {
		return false
	}
	_, ok := k.byLabel[label]
	return ok
}

// Labels lists the label types present in either source, sorted for stable
// logging.
func (k *KnowledgeBase) Labels() []order.LabelType {
	if k == nil {
		return nil
	}
	out := make([]order.LabelType, 0, len(k.byLabel))
	for label := range k.byLabel {
		out = append(out, label)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
