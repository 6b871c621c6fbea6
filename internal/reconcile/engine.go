// Package reconcile implements the per-vendor reconciliation engine and the
// partition aggregator.
package reconcile

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/orderops/unshipped/internal/kb"
	"github.com/orderops/unshipped/internal/order"
	"github.com/orderops/unshipped/internal/vendor"
	"github.com/orderops/unshipped/internal/worker"
)

const qtyColumn = "quantity_purchased"

// Options tunes one reconciliation pass.
type Options struct {
	// Workers sizes the vendor fan-out pool. Zero picks the worker default.
	Workers int

	// BulkBuyThreshold flags surviving orders with at least this many units.
	// Zero disables the check.
	BulkBuyThreshold int
}

// CleanResult is the batch after pre-reconciliation cleanup.
type CleanResult struct {
	Kept    []order.Record
	Removed []order.Record

	// DuplicatesDropped counts intra-batch rows collapsed by order_id.
	DuplicatesDropped int
}

// Clean drops return/inventory-adjustment rows (kept aside for reporting)
// and collapses intra-batch duplicates: the first row per order_id wins.
func Clean(records []order.Record, matcher *order.RemovedMatcher) CleanResult {
	out := CleanResult{}
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if matcher.Match(rec.SKU) {
			out.Removed = append(out.Removed, rec)
			continue
		}
		if _, dup := seen[rec.OrderID]; dup {
			out.DuplicatesDropped++
			continue
		}
		seen[rec.OrderID] = struct{}{}
		out.Kept = append(out.Kept, rec)
	}
	return out
}

// VendorResult is one vendor's labeled partition slice.
type VendorResult struct {
	Vendor string
	Label  order.LabelType
	Orders []order.Record

	// Degraded marks a vendor whose unit failed: its orders pass through
	// with no deduplication and no new-SKU detection.
	Degraded bool
}

// Engine reconciles batch orders against the knowledge base. The knowledge
// base and registry are read-only snapshots, so vendor units share them
// without coordination.
type Engine struct {
	kb       *kb.KnowledgeBase
	registry *vendor.Registry
	logger   zerolog.Logger
}

func NewEngine(knowledge *kb.KnowledgeBase, registry *vendor.Registry, logger zerolog.Logger) *Engine {
	return &Engine{
		kb:       knowledge,
		registry: registry,
		logger:   logger.With().Str("component", "reconcile").Logger(),
	}
}

type vendorUnit struct {
	name    string
	records []order.Record
}

// Reconcile fans the batch out per vendor prefix and collects labeled
// results in first-seen-vendor order. A failing vendor unit degrades to a
// pass-through result with a warning; it never stops the other vendors.
func (e *Engine) Reconcile(ctx context.Context, records []order.Record, opts Options) ([]VendorResult, []string, error) {
	units := groupByVendor(records)
	if len(units) == 0 {
		return nil, nil, nil
	}

	results, err := worker.Run(ctx, units, func(_ context.Context, u vendorUnit) (res VendorResult, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("vendor %s: %v", u.name, r)
			}
		}()
		return e.processVendor(u, opts.BulkBuyThreshold), nil
	}, worker.Options{
		Workers:       opts.Workers,
		FailurePolicy: worker.FailurePolicyPartialOutput,
	})
	if err != nil {
		return nil, nil, err
	}

	out := make([]VendorResult, 0, len(results))
	var warnings []string
	for _, r := range results {
		if r.Err != nil {
			// Zero dedup, zero new-SKU detection: wrong filtering would be
			// silent data loss, passing through is visible and recoverable.
			warnings = append(warnings, fmt.Sprintf("vendor %s degraded, orders pass through unfiltered: %v", r.Input.name, r.Err))
			e.logger.Warn().Str("vendor", r.Input.name).Err(r.Err).Msg("vendor unit failed, degrading to pass-through")
			out = append(out, VendorResult{
				Vendor:   r.Input.name,
				Label:    e.registry.Classify(r.Input.name),
				Orders:   r.Input.records,
				Degraded: true,
			})
			continue
		}
		out = append(out, r.Output)
	}
	return out, warnings, nil
}

// processVendor runs the reconciliation contract for a single vendor:
// classify, suppress orders already known to either reference source, flag
// unseen SKUs. Unknown vendors skip both checks.
func (e *Engine) processVendor(u vendorUnit, bulkThreshold int) VendorResult {
	if len(u.records) == 0 {
		e.logger.Debug().Str("vendor", u.name).Msg("no orders for vendor")
		return VendorResult{Vendor: u.name, Label: order.Unknown}
	}

	label := e.registry.Classify(u.name)
	kept := u.records

	if label != order.Unknown {
		knownOrders := e.kb.KnownOrders(label)
		if len(knownOrders) > 0 {
			filtered := kept[:0:0]
			for _, rec := range kept {
				if _, known := knownOrders[rec.OrderID]; known {
					continue
				}
				filtered = append(filtered, rec)
			}
			kept = filtered
		}

		knownSKUs := e.kb.KnownSKUs(label)
		for i := range kept {
			_, seen := knownSKUs[kept[i].SKU]
			kept[i].NewSKU = !seen
		}
	}

	if bulkThreshold > 0 {
		for i := range kept {
			kept[i].BulkBuy = quantityOf(kept[i]) >= bulkThreshold
		}
	}

	e.logger.Debug().
		Str("vendor", u.name).
		Str("label", string(label)).
		Int("in", len(u.records)).
		Int("out", len(kept)).
		Msg("vendor reconciled")
	return VendorResult{Vendor: u.name, Label: label, Orders: kept}
}

// groupByVendor splits records by SKU prefix, preserving input order both
// across first-seen vendors and within each vendor's selection.
func groupByVendor(records []order.Record) []vendorUnit {
	idx := make(map[string]int)
	var units []vendorUnit
	for _, rec := range records {
		name := rec.VendorPrefix()
		i, ok := idx[name]
		if !ok {
			i = len(units)
			idx[name] = i
			units = append(units, vendorUnit{name: name})
		}
		units[i].records = append(units[i].records, rec)
	}
	return units
}

func quantityOf(rec order.Record) int {
	v := strings.TrimSpace(rec.Attrs[qtyColumn])
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
