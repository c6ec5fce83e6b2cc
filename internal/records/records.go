// Package records loads the authoritative marketplace order export into an
// index keyed by normalized order key.
package records

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/jackzampolin/labelsplit/internal/marketplace"
	"github.com/jackzampolin/labelsplit/internal/order"
)

var (
	// ErrMissingColumn is returned when the export lacks a required column.
	ErrMissingColumn = errors.New("required column not found")
	// ErrUnsupportedFormat is returned for file extensions we cannot read.
	ErrUnsupportedFormat = errors.New("unsupported record file format")
)

// Record is the normalized projection of one export row. Quantity is kept
// raw; the resolver decides whether it is usable.
type Record struct {
	OrderKey   string
	SKU        string
	Quantity   string
	TrackingID string
	Row        int // 1-based row in the source file, header is row 1
}

// Index maps normalized order keys to their export rows.
// It is built once and read-only afterwards.
type Index struct {
	byKey map[string][]Record
	keys  []string
	rows  int
}

// Empty returns an index with no records.
func Empty() *Index {
	return &Index{byKey: make(map[string][]Record)}
}

// Lookup returns the records for a normalized order key.
func (ix *Index) Lookup(key string) []Record {
	if ix == nil {
		return nil
	}
	return ix.byKey[key]
}

// Len returns the number of distinct order keys.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.keys)
}

// Rows returns the number of records indexed.
func (ix *Index) Rows() int {
	if ix == nil {
		return 0
	}
	return ix.rows
}

// Keys returns the order keys in first-seen order.
func (ix *Index) Keys() []string {
	out := make([]string, len(ix.keys))
	copy(out, ix.keys)
	return out
}

func (ix *Index) add(rec Record) {
	if _, ok := ix.byKey[rec.OrderKey]; !ok {
		ix.keys = append(ix.keys, rec.OrderKey)
	}
	ix.byKey[rec.OrderKey] = append(ix.byKey[rec.OrderKey], rec)
	ix.rows++
}

// Load reads a delimited text file or spreadsheet and projects it through
// the marketplace column aliases.
func Load(path string, cols marketplace.Columns, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	ix, err := Build(rows, cols)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	logger.Info("record index loaded", "file", filepath.Base(path), "orders", ix.Len(), "rows", ix.Rows())
	return ix, nil
}

// Build indexes already-read rows; rows[0] is the header.
func Build(rows [][]string, cols marketplace.Columns) (*Index, error) {
	ix := Empty()
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: file has no header row", ErrMissingColumn)
	}

	header := rows[0]
	keyCol, err := findColumn(header, "order key", cols.OrderKey, true)
	if err != nil {
		return nil, err
	}
	skuCol, err := findColumn(header, "sku", cols.SKU, true)
	if err != nil {
		return nil, err
	}
	qtyCol, err := findColumn(header, "quantity", cols.Quantity, true)
	if err != nil {
		return nil, err
	}
	trackCol, _ := findColumn(header, "tracking id", cols.TrackingID, false)

	for i, row := range rows[1:] {
		key := normalizeRecordKey(cell(row, keyCol), cols.KeyDelimiter)
		if key == "" {
			continue
		}
		ix.add(Record{
			OrderKey:   key,
			SKU:        strings.TrimSpace(cell(row, skuCol)),
			Quantity:   strings.TrimSpace(cell(row, qtyCol)),
			TrackingID: strings.TrimSpace(cell(row, trackCol)),
			Row:        i + 2,
		})
	}
	return ix, nil
}

// normalizeRecordKey strips embedded newlines, cuts at the delimiter and
// applies the shared key normalization.
func normalizeRecordKey(raw, delimiter string) string {
	raw = strings.NewReplacer("\r", "", "\n", "").Replace(raw)
	if delimiter != "" {
		if before, _, found := strings.Cut(raw, delimiter); found {
			raw = before
		}
	}
	return order.NormalizeKey(raw)
}

func findColumn(header []string, field string, aliases []string, required bool) (int, error) {
	for _, alias := range aliases {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(alias)) {
				return i, nil
			}
		}
	}
	if required {
		return -1, fmt.Errorf("%w: %s (tried %q)", ErrMissingColumn, field, aliases)
	}
	return -1, nil
}

func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

func readRows(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readDelimited(path, ',')
	case ".tsv", ".txt":
		return readDelimited(path, '\t')
	case ".xlsx", ".xlsm":
		return readSpreadsheet(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func readDelimited(path string, comma rune) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open record file: %w", err)
	}
	defer f.Close()
	return parseDelimited(f, comma)
}

func parseDelimited(r io.Reader, comma rune) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	// marketplace exports leave quotes unbalanced inside product titles
	cr.LazyQuotes = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse record file: %w", err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return rows, nil
}

func readSpreadsheet(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}
