// Package app wires one reconciliation run end to end: load inputs, clean,
// reconcile, aggregate, enrich, report, notify.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/orderops/unshipped/internal/config"
	"github.com/orderops/unshipped/internal/enrich"
	"github.com/orderops/unshipped/internal/ingest"
	"github.com/orderops/unshipped/internal/kb"
	"github.com/orderops/unshipped/internal/notify"
	"github.com/orderops/unshipped/internal/order"
	"github.com/orderops/unshipped/internal/reconcile"
	"github.com/orderops/unshipped/internal/report"
	"github.com/orderops/unshipped/internal/vendor"
)

// Result is what one run produced, for callers and tests.
type Result struct {
	Summary   *reconcile.Summary
	Clean     reconcile.CleanResult
	BatchPath string

	// Warnings are every non-fatal degradation of the run, in occurrence
	// order: degraded reference sheets, degraded vendors, dropped
	// enrichment batches, failed notification.
	Warnings []string
}

// Run executes the full pipeline. transport may be nil when enrichment is
// disabled; it is constructed by the caller so the app layer stays free of
// backend credentials.
func Run(ctx context.Context, cfg config.Config, transport enrich.Transport, logger zerolog.Logger) (*Result, error) {
	runStart := time.Now()
	logger.Info().Msg("starting unshipped orders run")

	matcher, err := order.NewRemovedMatcher(cfg.Rules.RemovedRowPattern)
	if err != nil {
		return nil, err
	}

	// Input loads are independent file reads; fan them out.
	var (
		batch         order.Batch
		batchPath     string
		oldSrc        ingest.Source
		newSrc        ingest.Source
		oldWarnings   []string
		newWarnings   []string
		registryTable map[string]order.LabelType
	)
	var g errgroup.Group
	g.Go(func() error {
		var err error
		batch, batchPath, err = ingest.LoadBatch(cfg.Inputs.BatchFile, cfg.Inputs.BatchDir)
		return err
	})
	g.Go(func() error {
		var err error
		oldSrc, oldWarnings, err = loadSource(cfg.Inputs.OldReferenceDir)
		return err
	})
	g.Go(func() error {
		var err error
		newSrc, newWarnings, err = loadSource(cfg.Inputs.NewReferenceDir)
		return err
	})
	g.Go(func() error {
		var err error
		registryTable, err = ingest.LoadRegistry(cfg.Inputs.RegistryFile)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{BatchPath: batchPath}
	res.Warnings = append(res.Warnings, oldWarnings...)
	res.Warnings = append(res.Warnings, newWarnings...)

	knowledge := kb.Build(oldSrc, newSrc)
	registry := vendor.NewRegistry(registryTable)
	logger.Info().
		Str("batch", batchPath).
		Int("rows", len(batch.Records)).
		Int("reference_labels", len(knowledge.Labels())).
		Int("registered_vendors", registry.Len()).
		Msg("inputs loaded")

	res.Clean = reconcile.Clean(batch.Records, matcher)
	logger.Info().
		Int("kept", len(res.Clean.Kept)).
		Int("removed", len(res.Clean.Removed)).
		Int("duplicates", res.Clean.DuplicatesDropped).
		Msg("batch cleaned")

	engine := reconcile.NewEngine(knowledge, registry, logger)
	bulkThreshold := 0
	if cfg.Rules.EnableBulkBuyCheck {
		bulkThreshold = cfg.Rules.BulkBuyThreshold
	}
	vendorResults, engineWarnings, err := engine.Reconcile(ctx, res.Clean.Kept, reconcile.Options{
		Workers:          cfg.Workers,
		BulkBuyThreshold: bulkThreshold,
	})
	if err != nil {
		return nil, err
	}
	res.Warnings = append(res.Warnings, engineWarnings...)

	res.Summary = reconcile.Combine(vendorResults)
	logger.Info().
		Int("label_orders", res.Summary.LabelOrderCount).
		Int("non_label_orders", res.Summary.NonLabelOrderCount).
		Int("unknown_rows", len(res.Summary.Partitions.Unknown)).
		Int("new_skus", len(res.Summary.NewSKUOrders)).
		Msg("reconciliation complete")

	if cfg.Enrichment.Enabled && transport != nil {
		client := enrich.NewClient(transport, logger)
		bags, enrichWarnings, err := client.Fetch(ctx, res.Summary.SKUUniverse(), enrich.Options{
			BatchSize:      cfg.Enrichment.BatchSize,
			MaxRetries:     cfg.Enrichment.MaxRetries,
			RetryDelay:     cfg.Enrichment.RetryDelay.Std(),
			Concurrency:    cfg.Enrichment.Concurrency,
			RequestTimeout: cfg.Enrichment.RequestTimeout.Std(),
			RateLimitRPS:   cfg.Enrichment.RateLimitRPS,
		})
		if err != nil {
			return nil, err
		}
		res.Warnings = append(res.Warnings, enrichWarnings...)
		res.Summary.AttachAttributes(bags)
		logger.Info().Int("enriched_skus", len(bags)).Msg("enrichment merged")
	}

	if err := report.Write(batch, res.Summary, res.Clean.Removed, report.Options{
		OutputDir:      cfg.Report.OutputDir,
		DropColumns:    cfg.Report.DropColumns,
		IncludeBulkBuy: cfg.Rules.EnableBulkBuyCheck,
	}); err != nil {
		return nil, err
	}
	logger.Info().Str("dir", cfg.Report.OutputDir).Msg("reports written")

	summary := SummaryText(res, stamp(cfg.Report), cfg.Rules.EnableBulkBuyCheck)
	webhook := notify.New(cfg.Notify.WebhookURL, cfg.Notify.Timeout.Std())
	if webhook.Enabled() {
		color := notify.ColorOK
		if len(res.Warnings) > 0 {
			color = notify.ColorWarning
		}
		if err := webhook.Send(ctx, "Unshipped Orders Summary", summary, color); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("summary notification failed: %v", err))
			logger.Warn().Err(err).Msg("summary notification failed")
		}
	}

	for _, w := range res.Warnings {
		logger.Warn().Msg(w)
	}
	logger.Info().
		Dur("duration", time.Since(runStart).Round(time.Millisecond)).
		Int("warnings", len(res.Warnings)).
		Msg("run complete")
	return res, nil
}

// loadSource treats an unset directory as an intentionally empty reference
// source, not an error.
func loadSource(dir string) (ingest.Source, []string, error) {
	if strings.TrimSpace(dir) == "" {
		return ingest.Source{}, nil, nil
	}
	return ingest.LoadReferenceDir(dir)
}

// stamp renders the run timestamp, honoring the timezone annotation switch.
func stamp(cfg config.ReportConfig) string {
	now := time.Now()
	if cfg.EnableTimezoneAnnotation {
		if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
			return now.In(loc).Format("2006-01-02 15:04:05 MST")
		}
	}
	return now.UTC().Format("2006-01-02 15:04:05")
}

// SummaryText formats the operator summary posted to the webhook and logged
// at the end of the run.
func SummaryText(res *Result, timestamp string, bulkEnabled bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Timestamp:** %s\n", timestamp)
	fmt.Fprintf(&b, "**Total Label Vendors Orders:** %d\n", res.Summary.LabelOrderCount)
	fmt.Fprintf(&b, "**Total Non-Label Vendors Orders:** %d\n", res.Summary.NonLabelOrderCount)
	fmt.Fprintf(&b, "**Total Orders:** %d\n", res.Summary.TotalOrderCount)
	fmt.Fprintf(&b, "**New SKUs Found:** %d\n", len(res.Summary.NewSKUOrders))
	fmt.Fprintf(&b, "**Removed Orders:** %d", len(res.Clean.Removed))
	if bulkEnabled {
		fmt.Fprintf(&b, "\n**Bulk-Buy Flags:** %d", len(res.Summary.BulkBuyOrders))
	}
	if len(res.Warnings) > 0 {
		fmt.Fprintf(&b, "\n**Warnings:** %d", len(res.Warnings))
	}
	return b.String()
}
