package ingest_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/orderops/unshipped/internal/ingest"
	"github.com/orderops/unshipped/internal/order"
)

func TestReadSheet(t *testing.T) {
	t.Parallel()

	in := strings.Join([]string{
		"Order ID,SKU,Extra",
		"111-0001,ABC-123,x",
		"111-0002,ABC-555,y",
		",EMPTY-ID,z",
	}, "\n")

	sheet, err := ingest.ReadSheet(strings.NewReader(in), order.LabelVendors)
	if err != nil {
		t.Fatalf("ReadSheet: %v", err)
	}
	if sheet.Label != order.LabelVendors {
		t.Fatalf("label = %q", sheet.Label)
	}
	if sheet.MissingOrderID || sheet.MissingSKU {
		t.Fatalf("unexpected missing-column flags: %#v", sheet)
	}
	if len(sheet.OrderIDs) != 2 {
		t.Fatalf("expected 2 order IDs, got %d", len(sheet.OrderIDs))
	}
	if _, ok := sheet.SKUs["EMPTY-ID"]; !ok {
		t.Fatal("SKU of a row with empty order_id must still be recorded")
	}
}

func TestReadSheet_MissingColumnsDegrade(t *testing.T) {
	t.Parallel()

	sheet, err := ingest.ReadSheet(strings.NewReader("sku\nABC-1\n"), order.NonLabelVendors)
	if err != nil {
		t.Fatalf("ReadSheet: %v", err)
	}
	if !sheet.MissingOrderID {
		t.Fatal("expected MissingOrderID")
	}
	if sheet.MissingSKU {
		t.Fatal("sku column is present")
	}
	if len(sheet.OrderIDs) != 0 || len(sheet.SKUs) != 1 {
		t.Fatalf("unexpected sets: %#v", sheet)
	}
}

func TestLoadReferenceDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("Label Vendors.csv", "order_id,sku\n111,ABC-1\n")
	write("Non-Label Vendors.csv", "order_id,sku\n222,XYZ-1\n")
	write("notes.md", "not a sheet")

	src, warnings, err := ingest.LoadReferenceDir(dir)
	if err != nil {
		t.Fatalf("LoadReferenceDir: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(src) != 2 {
		t.Fatalf("expected 2 sheets, got %d", len(src))
	}
	sheet, ok := src[order.LabelVendors]
	if !ok {
		t.Fatalf("missing %q sheet; got labels %v", order.LabelVendors, src)
	}
	if _, ok := sheet.OrderIDs["111"]; !ok {
		t.Fatalf("missing order id: %#v", sheet)
	}
}

func TestLoadReferenceDir_UnreadableSheetWarnsAndContinues(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Label Vendors.csv"), []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Non-Label Vendors.csv"), []byte("order_id,sku\n222,XYZ-1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	src, warnings, err := ingest.LoadReferenceDir(dir)
	if err != nil {
		t.Fatalf("LoadReferenceDir: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning for the empty sheet, got %v", warnings)
	}
	empty := src[order.LabelVendors]
	if len(empty.OrderIDs) != 0 || len(empty.SKUs) != 0 {
		t.Fatalf("unreadable sheet must degrade to empty sets: %#v", empty)
	}
	if len(src[order.NonLabelVendors].OrderIDs) != 1 {
		t.Fatal("healthy sheet must still load")
	}
}

func TestLoadReferenceDir_MissingDirFatal(t *testing.T) {
	t.Parallel()

	if _, _, err := ingest.LoadReferenceDir(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
