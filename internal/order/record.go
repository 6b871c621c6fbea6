package order

import (
	"fmt"
	"regexp"
	"strings"
)

// LabelType partitions vendors for reporting. The registry may carry
// additional operator-defined types; anything it does not know is Unknown.
type LabelType string

const (
	LabelVendors    LabelType = "Label Vendors"
	NonLabelVendors LabelType = "Non-Label Vendors"
	Unknown         LabelType = "Unknown"
)

// Record is one unshipped-order row after schema validation.
//
// OrderID and SKU are the only columns the pipeline interprets; everything
// else rides along in Attrs keyed by normalized column name.
type Record struct {
	OrderID string
	SKU     string
	Attrs   map[string]string

	// NewSKU is set during reconciliation for orders whose SKU is absent
	// from all known reference SKU sets for the vendor's label type.
	NewSKU bool

	// BulkBuy is set when the bulk-buy check is enabled and the order
	// quantity meets the configured threshold.
	BulkBuy bool
}

// VendorPrefix returns the vendor token of the record's SKU: the first
// "-"-delimited segment, or the whole SKU when it has no separator.
func (r Record) VendorPrefix() string {
	return VendorPrefix(r.SKU)
}

// VendorPrefix derives the vendor token from a SKU.
func VendorPrefix(sku string) string {
	if i := strings.IndexByte(sku, '-'); i >= 0 {
		return sku[:i]
	}
	return sku
}

// Batch is the day's unshipped-order extract: validated records plus the
// normalized input column order, preserved for report output.
type Batch struct {
	Columns []string
	Records []Record
}

// RemovedMatcher decides which rows are return/inventory-adjustment markers
// and must be excluded from reconciliation.
type RemovedMatcher struct {
	re *regexp.Regexp
}

// NewRemovedMatcher compiles the removed-row pattern. An empty pattern
// matches nothing.
func NewRemovedMatcher(pattern string) (*RemovedMatcher, error) {
	if strings.TrimSpace(pattern) == "" {
		return &RemovedMatcher{}, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile removed-row pattern %q: %w", pattern, err)
	}
	return &RemovedMatcher{re: re}, nil
}

// Match reports whether the SKU carries a removed-row marker.
func (m *RemovedMatcher) Match(sku string) bool {
	if m == nil || m.re == nil {
		return false
	}
	return m.re.MatchString(sku)
}

// NormalizeColumn canonicalizes a header cell so cosmetic variation in the
// source files (case, stray spaces, space vs underscore vs dash) cannot break
// column lookup.
func NormalizeColumn(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return s
}
