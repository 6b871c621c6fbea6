package reconcile

import (
	"sort"

	"github.com/orderops/unshipped/internal/order"
)

// Row is one partitioned order. Label is the resolved label type, which for
// folded rows in the Unknown partition may differ from the partition itself.
type Row struct {
	order.Record
	Vendor string
	Label  order.LabelType

	// Enriched carries externally fetched attributes after the enrichment
	// merge; nil when the SKU had no successful enrichment.
	Enriched map[string]string
}

// Partitions are the exactly-three reporting buckets.
type Partitions struct {
	Label    []Row
	NonLabel []Row
	Unknown  []Row
}

// VendorCount is the distinct-order count for one vendor.
type VendorCount struct {
	Vendor string
	Orders int
}

// SKUCount is the distinct-order count for one SKU across the two known
// partitions.
type SKUCount struct {
	SKU    string
	Orders int
}

// Summary is the merged result of all vendor units.
type Summary struct {
	Partitions Partitions

	// VendorOrderCounts and SKUCounts preserve first-seen order; Unknown
	// vendors are excluded from both.
	VendorOrderCounts []VendorCount
	SKUCounts         []SKUCount

	NewSKUOrders  []Row
	BulkBuyOrders []Row

	LabelOrderCount    int
	NonLabelOrderCount int
	TotalOrderCount    int
}

// Combine merges per-vendor results into the three partitions and computes
// the report aggregates. Vendor results are unioned in slice order
// (first-seen-vendor order from the engine); any label type outside the two
// known ones folds into the Unknown partition with its resolved label kept
// on the row.
func Combine(results []VendorResult) *Summary {
	s := &Summary{}

	vendorIdx := make(map[string]int)
	skuIdx := make(map[string]int)
	vendorOrders := make(map[string]map[string]struct{})
	skuOrders := make(map[string]map[string]struct{})
	labelIDs := make(map[string]struct{})
	nonLabelIDs := make(map[string]struct{})

	for _, res := range results {
		for _, rec := range res.Orders {
			row := Row{Record: rec, Vendor: res.Vendor, Label: res.Label}

			switch res.Label {
			case order.LabelVendors:
				s.Partitions.Label = append(s.Partitions.Label, row)
				labelIDs[rec.OrderID] = struct{}{}
			case order.NonLabelVendors:
				s.Partitions.NonLabel = append(s.Partitions.NonLabel, row)
				nonLabelIDs[rec.OrderID] = struct{}{}
			default:
				s.Partitions.Unknown = append(s.Partitions.Unknown, row)
				continue
			}

			// Aggregates below cover the two known partitions only.
			if _, ok := vendorIdx[res.Vendor]; !ok {
				vendorIdx[res.Vendor] = len(s.VendorOrderCounts)
				s.VendorOrderCounts = append(s.VendorOrderCounts, VendorCount{Vendor: res.Vendor})
				vendorOrders[res.Vendor] = make(map[string]struct{})
			}
			vendorOrders[res.Vendor][rec.OrderID] = struct{}{}

			if _, ok := skuIdx[rec.SKU]; !ok {
				skuIdx[rec.SKU] = len(s.SKUCounts)
				s.SKUCounts = append(s.SKUCounts, SKUCount{SKU: rec.SKU})
				skuOrders[rec.SKU] = make(map[string]struct{})
			}
			skuOrders[rec.SKU][rec.OrderID] = struct{}{}

			if rec.NewSKU {
				s.NewSKUOrders = append(s.NewSKUOrders, row)
			}
			if rec.BulkBuy {
				s.BulkBuyOrders = append(s.BulkBuyOrders, row)
			}
		}
	}

	for i := range s.VendorOrderCounts {
		s.VendorOrderCounts[i].Orders = len(vendorOrders[s.VendorOrderCounts[i].Vendor])
	}
	for i := range s.SKUCounts {
		s.SKUCounts[i].Orders = len(skuOrders[s.SKUCounts[i].SKU])
	}

	s.LabelOrderCount = len(labelIDs)
	s.NonLabelOrderCount = len(nonLabelIDs)
	total := make(map[string]struct{}, len(labelIDs)+len(nonLabelIDs))
	for id := range labelIDs {
		total[id] = struct{}{}
	}
	for id := range nonLabelIDs {
		total[id] = struct{}{}
	}
	s.TotalOrderCount = len(total)

	return s
}

// SKUUniverse lists the distinct SKUs of the two known partitions in
// first-seen order. This is the enrichment input set.
func (s *Summary) SKUUniverse() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, part := range [][]Row{s.Partitions.Label, s.Partitions.NonLabel} {
		for _, row := range part {
			if _, ok := seen[row.SKU]; ok {
				continue
			}
			seen[row.SKU] = struct{}{}
			out = append(out, row.SKU)
		}
	}
	return out
}

// AttachAttributes left-joins fetched attribute bags onto the two known
// partitions by SKU. Every row is preserved; rows whose SKU has no bag keep
// a nil Enriched map.
func (s *Summary) AttachAttributes(bags map[string]map[string]string) {
	join := func(rows []Row) {
		for i := range rows {
			if bag, ok := bags[rows[i].SKU]; ok {
				rows[i].Enriched = bag
			}
		}
	}
	join(s.Partitions.Label)
	join(s.Partitions.NonLabel)
}

// AttributeColumns returns the sorted union of enriched attribute keys, for
// a stable report header.
func (s *Summary) AttributeColumns() []string {
	seen := make(map[string]struct{})
	for _, part := range [][]Row{s.Partitions.Label, s.Partitions.NonLabel} {
		for _, row := range part {
			for k := range row.Enriched {
				seen[k] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
