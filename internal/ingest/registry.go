package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/orderops/unshipped/internal/order"
)

const (
	colPrefix = "prefix"
	colLabel  = "label"
)

// LoadRegistry reads the vendor registry CSV mapping SKU prefixes to label
// types. A missing file or missing prefix/label column is a fatal setup
// error: without the registry no vendor can be classified.
func LoadRegistry(path string) (map[string]order.LabelType, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vendor registry: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	reg, err := ReadRegistry(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// ReadRegistry parses registry rows. Duplicate prefixes keep the first
// mapping; rows with an empty prefix are skipped.
func ReadRegistry(r io.Reader) (map[string]order.LabelType, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read registry header: %w", err)
	}
	prefixIdx, labelIdx := -1, -1
	for i, col := range header {
		switch order.NormalizeColumn(col) {
		case colPrefix:
			if prefixIdx < 0 {
				prefixIdx = i
			}
		case colLabel:
			if labelIdx < 0 {
				labelIdx = i
			}
		}
	}
	if prefixIdx < 0 {
		return nil, fmt.Errorf("registry is missing required column %q", colPrefix)
	}
	if labelIdx < 0 {
		return nil, fmt.Errorf("registry is missing required column %q", colLabel)
	}

	reg := make(map[string]order.LabelType)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return reg, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read registry row: %w", err)
		}
		if prefixIdx >= len(rec) || labelIdx >= len(rec) {
			continue
		}
		prefix := strings.TrimSpace(rec[prefixIdx])
		label := strings.TrimSpace(rec[labelIdx])
		if prefix == "" || label == "" {
			continue
		}
		if _, ok := reg[prefix]; !ok {
			reg[prefix] = order.LabelType(label)
		}
	}
}
