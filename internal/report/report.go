// Package report writes the run's CSV reports: the three partitions, the
// aggregate counts, the new-SKU report and the removed rows.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/orderops/unshipped/internal/order"
	"github.com/orderops/unshipped/internal/reconcile"
)

// DefaultDropColumns are the cosmetic extract columns removed from the
// Label/Non-Label partition reports. Operators can override the list in the
// run configuration.
var DefaultDropColumns = []string{
	"order_item_id",
	"payments_date",
	"reporting_date",
	"days_past_promise",
	"buyer_email",
	"buyer_name",
	"payment_method_details",
	"cpf",
	"quantity_shipped",
	"quantity_to_ship",
	"ship_service_level",
	"ship_service_name",
	"ship_address_3",
	"gift_wrap_type",
	"gift_message_text",
	"payment_method",
	"cod_collectible_amount",
	"already_paid",
	"payment_method_fee",
	"customized_url",
	"customized_page",
	"purchase_order_number",
	"price_designation",
	"is_prime",
	"fulfilled_by",
	"is_premium_order",
	"buyer_company_name",
	"licensee_name",
	"license_number",
	"license_state",
	"license_expiration_date",
	"is_exchange_order",
	"original_order_id",
	"is_transparency",
	"default_ship_from_address_name",
	"default_ship_from_address_field_1",
	"default_ship_from_address_field_2",
	"default_ship_from_address_field_3",
	"default_ship_from_city",
	"default_ship_from_state",
	"default_ship_from_country",
	"default_ship_from_postal_code",
	"is_ispu_order",
	"store_chain_store_id",
	"buyer_requested_cancel_reason",
	"ioss_number",
	"is_shipping_settings_automation_enabled",
	"ssa_carrier",
	"ssa_ship_method",
	"tax_collection_model",
	"tax_collection_responsible_party",
	"verge_of_cancellation",
	"verge_of_lateshipment",
	"signature_confirmation_recommended",
}

// File names inside the output directory.
const (
	FileLabelOrders    = "label_vendors_orders.csv"
	FileNonLabelOrders = "non_label_vendors_orders.csv"
	FileUnknownOrders  = "unknown_vendors_report.csv"
	FileSKUCounts      = "sku_counts_report.csv"
	FileVendorCounts   = "vendor_order_counts.csv"
	FileNewSKUs        = "new_sku_report.csv"
	FileRemovedOrders  = "removed_orders.csv"
)

type Options struct {
	OutputDir string

	// DropColumns overrides DefaultDropColumns when non-empty.
	DropColumns []string

	// IncludeBulkBuy adds the bulk_buy column to partition reports.
	IncludeBulkBuy bool
}

// Write emits every report file. The output directory is created if absent.
func Write(batch order.Batch, s *reconcile.Summary, removed []order.Record, opts Options) error {
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	drop := opts.DropColumns
	if len(drop) == 0 {
		drop = DefaultDropColumns
	}
	dropSet := make(map[string]struct{}, len(drop))
	for _, col := range drop {
		dropSet[order.NormalizeColumn(col)] = struct{}{}
	}

	baseCols := make([]string, 0, len(batch.Columns))
	for _, col := range batch.Columns {
		if _, gone := dropSet[col]; gone {
			continue
		}
		baseCols = append(baseCols, col)
	}
	attrCols := s.AttributeColumns()

	partitionHeader := append([]string{}, baseCols...)
	partitionHeader = append(partitionHeader, "vendor_name", "new_sku")
	if opts.IncludeBulkBuy {
		partitionHeader = append(partitionHeader, "bulk_buy")
	}
	partitionHeader = append(partitionHeader, attrCols...)

	partitionRow := func(row reconcile.Row) []string {
		rec := make([]string, 0, len(partitionHeader))
		for _, col := range baseCols {
			rec = append(rec, row.Attrs[col])
		}
		rec = append(rec, row.Vendor, strconv.FormatBool(row.NewSKU))
		if opts.IncludeBulkBuy {
			rec = append(rec, strconv.FormatBool(row.BulkBuy))
		}
		for _, col := range attrCols {
			rec = append(rec, row.Enriched[col])
		}
		return rec
	}

	if err := writeCSV(filepath.Join(opts.OutputDir, FileLabelOrders), partitionHeader, rowsOf(s.Partitions.Label, partitionRow)); err != nil {
		return err
	}
	if err := writeCSV(filepath.Join(opts.OutputDir, FileNonLabelOrders), partitionHeader, rowsOf(s.Partitions.NonLabel, partitionRow)); err != nil {
		return err
	}
	if err := writeCSV(filepath.Join(opts.OutputDir, FileNewSKUs), partitionHeader, rowsOf(s.NewSKUOrders, partitionRow)); err != nil {
		return err
	}

	// The Unknown report keeps every input column: these rows exist to be
	// inspected, not summarized, and the resolved label is data here.
	unknownHeader := append([]string{}, batch.Columns...)
	unknownHeader = append(unknownHeader, "vendor_name", "label_type")
	unknownRows := rowsOf(s.Partitions.Unknown, func(row reconcile.Row) []string {
		rec := make([]string, 0, len(unknownHeader))
		for _, col := range batch.Columns {
			rec = append(rec, row.Attrs[col])
		}
		return append(rec, row.Vendor, string(row.Label))
	})
	if err := writeCSV(filepath.Join(opts.OutputDir, FileUnknownOrders), unknownHeader, unknownRows); err != nil {
		return err
	}

	skuRows := make([][]string, 0, len(s.SKUCounts))
	for _, c := range s.SKUCounts {
		skuRows = append(skuRows, []string{c.SKU, strconv.Itoa(c.Orders)})
	}
	if err := writeCSV(filepath.Join(opts.OutputDir, FileSKUCounts), []string{"sku", "unshipped_orders"}, skuRows); err != nil {
		return err
	}

	vendorRows := make([][]string, 0, len(s.VendorOrderCounts))
	for _, c := range s.VendorOrderCounts {
		vendorRows = append(vendorRows, []string{c.Vendor, strconv.Itoa(c.Orders)})
	}
	if err := writeCSV(filepath.Join(opts.OutputDir, FileVendorCounts), []string{"vendor", "order_count"}, vendorRows); err != nil {
		return err
	}

	removedRows := make([][]string, 0, len(removed))
	for _, rec := range removed {
		row := make([]string, 0, len(batch.Columns))
		for _, col := range batch.Columns {
			row = append(row, rec.Attrs[col])
		}
		removedRows = append(removedRows, row)
	}
	return writeCSV(filepath.Join(opts.OutputDir, FileRemovedOrders), batch.Columns, removedRows)
}

func rowsOf(rows []reconcile.Row, render func(reconcile.Row) []string) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, render(row))
	}
	return out
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report %s: %w", path, err)
	}
	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		_ = f.Close()
		return err
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			_ = f.Close()
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
