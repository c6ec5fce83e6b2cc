// Package report writes the flat verification report (order key x line item)
// and the per-run progress log.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/jackzampolin/labelsplit/internal/order"
)

// Header is the column layout shared by the CSV and XLSX reports.
var Header = []string{"order_key", "pages", "sku", "quantity", "tracking_id", "source", "output"}

// Row is one report line. Orders without items get a single row with
// HasItem false.
type Row struct {
	OrderKey   string
	Pages      string // 1-based page numbers in bucket order
	SKU        string
	Quantity   int
	HasItem    bool
	TrackingID string
	Source     string
	Output     string
}

// Cells renders the row in Header order.
func (r Row) Cells() []string {
	qty := ""
	if r.HasItem {
		qty = strconv.Itoa(r.Quantity)
	}
	return []string{r.OrderKey, r.Pages, r.SKU, qty, r.TrackingID, r.Source, r.Output}
}

// Rows flattens the mapping in bucket order.
func Rows(m *order.Mapping) []Row {
	var rows []Row
	for _, b := range m.Buckets() {
		base := Row{
			OrderKey: b.Key,
			Pages:    PageList(b.Pages),
			Output:   b.OutputPath,
		}
		if len(b.Items) == 0 {
			base.TrackingID = strings.Join(b.AuxKeys, " ")
			rows = append(rows, base)
			continue
		}
		for _, it := range b.Items {
			r := base
			r.SKU = it.SKU
			r.Quantity = it.Quantity
			r.HasItem = true
			r.TrackingID = it.TrackingID
			r.Source = it.Source.String()
			rows = append(rows, r)
		}
	}
	return rows
}

// PageList renders 0-based page indices as 1-based numbers.
func PageList(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p + 1)
	}
	return strings.Join(parts, " ")
}

// WriteCSV writes the report as CSV.
func WriteCSV(w io.Writer, m *order.Mapping) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range Rows(m) {
		if err := cw.Write(r.Cells()); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes the report as a single-sheet workbook.
func WriteXLSX(path string, m *order.Mapping) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Orders"
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	for i, h := range Header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, r := range Rows(m) {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, r.OrderKey)
		write(2, r.Pages)
		write(3, r.SKU)
		if r.HasItem {
			write(4, r.Quantity)
		}
		write(5, r.TrackingID)
		write(6, r.Source)
		write(7, r.Output)
	}

	_ = f.SetColWidth(sheet, "A", "A", 24) // order key
	_ = f.SetColWidth(sheet, "B", "B", 12) // pages
	_ = f.SetColWidth(sheet, "C", "C", 28) // sku
	_ = f.SetColWidth(sheet, "E", "E", 20) // tracking
	_ = f.SetColWidth(sheet, "G", "G", 60) // output path

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
