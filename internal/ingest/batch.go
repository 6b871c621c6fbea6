// Package ingest loads the pipeline inputs: the daily unshipped-order TSV
// extract, the old/new reference sources, and the vendor registry. All
// readers key columns by normalized header name so cosmetic header variation
// in the upstream exports cannot break the run.
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

const (
	colOrderID = "order_id"
	colSKU     = "sku"
)

// FindBatchFile locates the day's extract: the lexically first .txt file in
// dir. Missing file is a fatal setup error.
func FindBatchFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("scan batch dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".txt") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no .txt batch file found in %s", dir)
	}
	sort.Strings(names)
	return filepath.Join(dir, names[0]), nil
}

// ReadBatch parses the tab-separated extract and validates its schema. The
// order_id and sku columns are mandatory; a data row with an empty order_id
// is a fatal input error.
func ReadBatch(r io.Reader) (order.Batch, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return order.Batch{}, fmt.Errorf("read batch header: %w", err)
	}

	columns := make([]string, len(header))
	for i, col := range header {
		columns[i] = order.NormalizeColumn(col)
	}
	index := columnIndex(columns)
	if _, ok := index[colOrderID]; !ok {
		return order.Batch{}, fmt.Errorf("batch is missing required column %q", colOrderID)
	}
	if _, ok := index[colSKU]; !ok {
		return order.Batch{}, fmt.Errorf("batch is missing required column %q", colSKU)
	}

	batch := order.Batch{Columns: columns}
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return order.Batch{}, fmt.Errorf("read batch row: %w", err)
		}
		line++

		attrs := make(map[string]string, len(columns))
		for i, col := range columns {
			if i < len(rec) {
				attrs[col] = rec[i]
			}
		}
		id := strings.TrimSpace(attrs[colOrderID])
		if id == "" {
			return order.Batch{}, fmt.Errorf("batch row %d has no order_id", line)
		}
		batch.Records = append(batch.Records, order.Record{
			OrderID: id,
			SKU:     strings.TrimSpace(attrs[colSKU]),
			Attrs:   attrs,
		})
	}
	return batch, nil
}

// LoadBatch resolves the extract location from cfg-style inputs and reads it.
// An explicit file path wins over directory discovery.
func LoadBatch(batchFile, batchDir string) (order.Batch, string, error) {
	path := strings.TrimSpace(batchFile)
	if path == "" {
		found, err := FindBatchFile(batchDir)
		if err != nil {
			return order.Batch{}, "", err
		}
		path = found
	}
	f, err := os.Open(path)
	if err != nil {
		return order.Batch{}, "", fmt.Errorf("open batch file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	batch, err := ReadBatch(f)
	if err != nil {
		return order.Batch{}, "", fmt.Errorf("%s: %w", path, err)
	}
	return batch, path, nil
}

func columnIndex(columns []string) map[string]int {
	index := make(map[string]int, len(columns))
	for i, col := range columns {
		if _, ok := index[col]; !ok {
			index[col] = i
		}
	}
	return index
}
