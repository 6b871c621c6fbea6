package report_test

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/orderops/unshipped/internal/order"
	"github.com/orderops/unshipped/internal/reconcile"
	"github.com/orderops/unshipped/internal/report"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rows
}

func testSummary() (order.Batch, *reconcile.Summary, []order.Record) {
	mk := func(id, sku, buyer string) order.Record {
		return order.Record{OrderID: id, SKU: sku, Attrs: map[string]string{
			"order_id":   id,
			"sku":        sku,
			"buyer_name": buyer,
		}}
	}
	batch := order.Batch{Columns: []string{"order_id", "sku", "buyer_name"}}

	fresh := mk("3", "ABC-555", "C")
	fresh.NewSKU = true
	s := reconcile.Combine([]reconcile.VendorResult{
		{Vendor: "ABC", Label: order.LabelVendors, Orders: []order.Record{mk("1", "ABC-123", "A"), fresh}},
		{Vendor: "XYZ", Label: order.NonLabelVendors, Orders: []order.Record{mk("4", "XYZ-1", "D")}},
		{Vendor: "MYST", Label: order.Unknown, Orders: []order.Record{mk("5", "MYST-1", "E")}},
	})
	s.AttachAttributes(map[string]map[string]string{"ABC-123": {"weight": "2kg"}})

	removed := []order.Record{mk("2", "XYZ-RET-9", "B")}
	return batch, s, removed
}

func TestWrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	batch, s, removed := testSummary()

	err := report.Write(batch, s, removed, report.Options{
		OutputDir:   dir,
		DropColumns: []string{"buyer_name"},
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	for _, name := range []string{
		report.FileLabelOrders,
		report.FileNonLabelOrders,
		report.FileUnknownOrders,
		report.FileSKUCounts,
		report.FileVendorCounts,
		report.FileNewSKUs,
		report.FileRemovedOrders,
	} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing report %s: %v", name, err)
		}
	}

	label := readCSV(t, filepath.Join(dir, report.FileLabelOrders))
	wantHeader := []string{"order_id", "sku", "vendor_name", "new_sku", "weight"}
	if len(label[0]) != len(wantHeader) {
		t.Fatalf("label header = %v, want %v", label[0], wantHeader)
	}
	for i := range wantHeader {
		if label[0][i] != wantHeader[i] {
			t.Fatalf("label header = %v, want %v", label[0], wantHeader)
		}
	}
	if len(label) != 3 {
		t.Fatalf("label rows = %v", label)
	}
	if label[1][4] != "2kg" {
		t.Fatalf("enriched cell = %q", label[1][4])
	}
	if label[2][3] != "true" || label[2][4] != "" {
		t.Fatalf("new-sku row = %v", label[2])
	}

	unknown := readCSV(t, filepath.Join(dir, report.FileUnknownOrders))
	if got := unknown[0][len(unknown[0])-1]; got != "label_type" {
		t.Fatalf("unknown header = %v", unknown[0])
	}
	// The unknown report keeps the dropped columns.
	if unknown[0][2] != "buyer_name" {
		t.Fatalf("unknown header = %v", unknown[0])
	}
	if unknown[1][4] != string(order.Unknown) {
		t.Fatalf("unknown row = %v", unknown[1])
	}

	skuCounts := readCSV(t, filepath.Join(dir, report.FileSKUCounts))
	if len(skuCounts) != 4 {
		t.Fatalf("sku counts = %v", skuCounts)
	}
	if skuCounts[1][0] != "ABC-123" || skuCounts[1][1] != "1" {
		t.Fatalf("first sku count = %v", skuCounts[1])
	}

	removedRows := readCSV(t, filepath.Join(dir, report.FileRemovedOrders))
	if len(removedRows) != 2 || removedRows[1][0] != "2" {
		t.Fatalf("removed rows = %v", removedRows)
	}
}

func TestWrite_BulkBuyColumn(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	batch, s, removed := testSummary()

	err := report.Write(batch, s, removed, report.Options{
		OutputDir:      dir,
		DropColumns:    []string{"buyer_name"},
		IncludeBulkBuy: true,
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	label := readCSV(t, filepath.Join(dir, report.FileLabelOrders))
	if label[0][4] != "bulk_buy" {
		t.Fatalf("header = %v", label[0])
	}
	if label[1][4] != "false" {
		t.Fatalf("row = %v", label[1])
	}
}

func TestWrite_DefaultDropColumns(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	batch := order.Batch{Columns: []string{"order_id", "sku", "buyer_email"}}
	s := reconcile.Combine([]reconcile.VendorResult{
		{Vendor: "ABC", Label: order.LabelVendors, Orders: []order.Record{
			{OrderID: "1", SKU: "ABC-1", Attrs: map[string]string{"order_id": "1", "sku": "ABC-1", "buyer_email": "x@y"}},
		}},
	})

	if err := report.Write(batch, s, nil, report.Options{OutputDir: dir}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	label := readCSV(t, filepath.Join(dir, report.FileLabelOrders))
	for _, col := range label[0] {
		if col == "buyer_email" {
			t.Fatalf("buyer_email must be dropped by default: %v", label[0])
		}
	}
}
