package ingest_test

import (
	"strings"
	"testing"

	"github.com/orderops/unshipped/internal/ingest"
	"github.com/orderops/unshipped/internal/order"
)

func TestReadRegistry(t *testing.T) {
	t.Parallel()

	in := strings.Join([]string{
		"Prefix,Label",
		"ABC,Label Vendors",
		"XYZ,Non-Label Vendors",
		",Label Vendors",
		"ABC,Non-Label Vendors",
	}, "\n")

	reg, err := ingest.ReadRegistry(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadRegistry: %v", err)
	}
	if len(reg) != 2 {
		t.Fatalf("expected 2 mappings, got %d: %v", len(reg), reg)
	}
	if reg["ABC"] != order.LabelVendors {
		t.Fatalf("duplicate prefix must keep the first mapping, got %q", reg["ABC"])
	}
	if reg["XYZ"] != order.NonLabelVendors {
		t.Fatalf("XYZ = %q", reg["XYZ"])
	}
}

func TestReadRegistry_MissingColumns(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
	}{
		{"no prefix", "label\nLabel Vendors"},
		{"no label", "prefix\nABC"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := ingest.ReadRegistry(strings.NewReader(tc.in)); err == nil {
				t.Fatal("expected schema error")
			}
		})
	}
}

func TestReadRegistry_OperatorDefinedLabels(t *testing.T) {
	t.Parallel()

	reg, err := ingest.ReadRegistry(strings.NewReader("prefix,label\nQQQ,Consignment\n"))
	if err != nil {
		t.Fatalf("ReadRegistry: %v", err)
	}
	if reg["QQQ"] != order.LabelType("Consignment") {
		t.Fatalf("QQQ = %q", reg["QQQ"])
	}
}
