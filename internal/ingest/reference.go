package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/orderops/unshipped/internal/order"
)

// Sheet is one label type's slice of a reference source: the identifiers and
// SKUs already seen for that partition.
type Sheet struct {
	Label    order.LabelType
	OrderIDs map[string]struct{}
	SKUs     map[string]struct{}

	// MissingOrderID / MissingSKU record that the source sheet had no such
	// column. The affected axis degrades to the empty set; the run goes on.
	MissingOrderID bool
	MissingSKU     bool
}

// Source is a full reference source (old or new), keyed by label type.
type Source map[order.LabelType]Sheet

// LoadReferenceDir reads every CSV in dir as one reference sheet; the file
// stem is the label type. A missing directory is a fatal setup error, but a
// sheet that cannot be parsed degrades to empty sets and is reported in
// warnings rather than failing the run.
func LoadReferenceDir(dir string) (Source, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("scan reference dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	src := make(Source, len(names))
	var warnings []string
	for _, name := range names {
		label := order.LabelType(strings.TrimSuffix(name, filepath.Ext(name)))
		path := filepath.Join(dir, name)

		sheet, err := readSheet(path, label)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("reference sheet %s unreadable, treated as empty: %v", path, err))
			src[label] = Sheet{
				Label:          label,
				OrderIDs:       map[string]struct{}{},
				SKUs:           map[string]struct{}{},
				MissingOrderID: true,
				MissingSKU:     true,
			}
			continue
		}
		if sheet.MissingOrderID {
			warnings = append(warnings, fmt.Sprintf("reference sheet %s has no %s column; order dedup disabled for %q", path, colOrderID, label))
		}
		if sheet.MissingSKU {
			warnings = append(warnings, fmt.Sprintf("reference sheet %s has no %s column; new-SKU detection weakened for %q", path, colSKU, label))
		}
		src[label] = sheet
	}
	return src, warnings, nil
}

func readSheet(path string, label order.LabelType) (Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return Sheet{}, err
	}
	defer func() {
		_ = f.Close()
	}()
	return ReadSheet(f, label)
}

// ReadSheet parses one reference sheet. Only the order_id and sku columns
// are consulted; either may be absent.
func ReadSheet(r io.Reader, label order.LabelType) (Sheet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return Sheet{}, fmt.Errorf("read sheet header: %w", err)
	}
	idIdx, skuIdx := -1, -1
	for i, col := range header {
		switch order.NormalizeColumn(col) {
		case colOrderID:
			if idIdx < 0 {
				idIdx = i
			}
		case colSKU:
			if skuIdx < 0 {
				skuIdx = i
			}
		}
	}

	sheet := Sheet{
		Label:          label,
		OrderIDs:       map[string]struct{}{},
		SKUs:           map[string]struct{}{},
		MissingOrderID: idIdx < 0,
		MissingSKU:     skuIdx < 0,
	}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return sheet, nil
		}
		if err != nil {
			return Sheet{}, fmt.Errorf("read sheet row: %w", err)
		}
		if idIdx >= 0 && idIdx < len(rec) {
			if v := strings.TrimSpace(rec[idIdx]); v != "" {
				sheet.OrderIDs[v] = struct{}{}
			}
		}
		if skuIdx >= 0 && skuIdx < len(rec) {
			if v := strings.TrimSpace(rec[skuIdx]); v != "" {
				sheet.SKUs[v] = struct{}{}
			}
		}
	}
}
