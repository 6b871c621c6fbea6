package order_test

import (
	"testing"

	"github.com/orderops/unshipped/internal/order"
)

func TestVendorPrefix(t *testing.T) {
	t.Parallel()

	cases := []struct {
		sku  string
		want string
	}{
		{"ABC-123", "ABC"},
		{"ABC-123-XL", "ABC"},
		{"PLAIN", "PLAIN"},
		{"", ""},
		{"-LEADING", ""},
	}
	for _, tc := range cases {
		if got := order.VendorPrefix(tc.sku); got != tc.want {
			t.Errorf("VendorPrefix(%q) = %q, want %q", tc.sku, got, tc.want)
		}
	}
}

func TestNormalizeColumn(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"Order ID", "order_id"},
		{"  order-id ", "order_id"},
		{"SKU", "sku"},
		{"quantity_purchased", "quantity_purchased"},
		{"Ship-Service Level", "ship_service_level"},
	}
	for _, tc := range cases {
		if got := order.NormalizeColumn(tc.in); got != tc.want {
			t.Errorf("NormalizeColumn(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRemovedMatcher(t *testing.T) {
	t.Parallel()

	m, err := order.NewRemovedMatcher("RET|INV")
	if err != nil {
		t.Fatalf("NewRemovedMatcher: %v", err)
	}

	cases := []struct {
		sku  string
		want bool
	}{
		{"XYZ-RET-9", true},
		{"INV-ADJ-1", true},
		{"ABC-123", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := m.Match(tc.sku); got != tc.want {
			t.Errorf("Match(%q) = %t, want %t", tc.sku, got, tc.want)
		}
	}
}

func TestRemovedMatcher_EmptyPatternMatchesNothing(t *testing.T) {
	t.Parallel()

	m, err := order.NewRemovedMatcher("  ")
	if err != nil {
		t.Fatalf("NewRemovedMatcher: %v", err)
	}
	if m.Match("RET-1") {
		t.Fatal("empty pattern must match nothing")
	}
}

func TestRemovedMatcher_InvalidPattern(t *testing.T) {
	t.Parallel()

	if _, err := order.NewRemovedMatcher("("); err == nil {
		t.Fatal("expected compile error for invalid pattern")
	}
}

func TestRemovedMatcher_NilSafe(t *testing.T) {
	t.Parallel()

	var m *order.RemovedMatcher
	if m.Match("RET") {
		t.Fatal("nil matcher must match nothing")
	}
}
