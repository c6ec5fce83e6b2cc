// Package lineitem resolves the line items of an order: authoritative
// export records first, then a column heuristic over the page table.
package lineitem

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackzampolin/labelsplit/internal/marketplace"
	"github.com/jackzampolin/labelsplit/internal/order"
	"github.com/jackzampolin/labelsplit/internal/records"
)

var reSpaces = regexp.MustCompile(`\s+`)

// Resolution is the outcome of one lookup. An empty Items slice is not an
// error; Warnings carry excluded rows.
type Resolution struct {
	Items    []order.LineItem
	Source   order.Source
	Warnings []string
}

// Resolver looks up line items for an order key.
type Resolver struct {
	index *records.Index
	set   *marketplace.PatternSet
}

// NewResolver creates a resolver. index may be nil when no export is loaded.
func NewResolver(index *records.Index, set *marketplace.PatternSet) *Resolver {
	return &Resolver{index: index, set: set}
}

// Resolve returns the items for key. Records in the index always win; the
// table heuristic runs only when the index has no entry for key.
func (r *Resolver) Resolve(key, auxKey string, page order.Page) Resolution {
	if recs := r.index.Lookup(key); len(recs) > 0 {
		return fromRecords(key, recs)
	}
	if len(page.Table) > 0 {
		return r.fromTable(key, auxKey, page)
	}
	return Resolution{Source: order.SourceNone}
}

func fromRecords(key string, recs []records.Record) Resolution {
	res := Resolution{Source: order.SourceRecords}
	for _, rec := range recs {
		qty, ok := ParseQuantity(rec.Quantity)
		if !ok {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("order %s: record row %d has non-numeric quantity %q, item excluded", key, rec.Row, rec.Quantity))
			continue
		}
		res.Items = append(res.Items, order.LineItem{
			SKU:        rec.SKU,
			Quantity:   qty,
			TrackingID: rec.TrackingID,
			Source:     order.SourceRecords,
		})
	}
	return res
}

func (r *Resolver) fromTable(key, auxKey string, page order.Page) Resolution {
	res := Resolution{Source: order.SourceTable}
	hints := r.set.Table

	headerRow, descCol, qtyCol, skuCol := locateHeader(page.Table, hints)
	if headerRow < 0 {
		return Resolution{Source: order.SourceNone}
	}

	rows := page.Table[headerRow+1:]
	if marker := strings.ToLower(hints.TotalMarker); marker != "" {
		for i, row := range rows {
			if rowContains(row, marker) {
				rows = rows[:i]
				break
			}
		}
	}

	for i, row := range rows {
		desc := collapse(cellAt(row, descCol))
		qtyRaw := collapse(cellAt(row, qtyCol))
		if desc == "" && qtyRaw == "" {
			continue
		}

		qty, ok := ParseQuantity(qtyRaw)
		if !ok {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("order %s: page %d table row %d has non-numeric quantity %q, item excluded",
					key, page.Index+1, headerRow+i+2, qtyRaw))
			continue
		}

		res.Items = append(res.Items, order.LineItem{
			SKU:        r.sku(row, desc, skuCol),
			Quantity:   qty,
			TrackingID: auxKey,
			Source:     order.SourceTable,
		})
	}
	return res
}

// sku prefers a dedicated SKU column, then the marketplace SKU pattern over
// the description, then the description itself.
func (r *Resolver) sku(row []string, desc string, skuCol int) string {
	if skuCol >= 0 {
		if s := collapse(cellAt(row, skuCol)); s != "" {
			return s
		}
	}
	if r.set.SKU != nil {
		if m := r.set.SKU.FindStringSubmatch(desc); len(m) > 1 {
			return collapse(m[1])
		}
	}
	return desc
}

// locateHeader finds the first row naming both a description and a quantity
// column. It returns -1 when the table has no such row.
func locateHeader(t order.Table, hints marketplace.TableHints) (row, desc, qty, sku int) {
	for i, cells := range t {
		desc = matchColumn(cells, hints.DescriptionHeaders)
		qty = matchColumn(cells, hints.QuantityHeaders)
		if desc >= 0 && qty >= 0 && desc != qty {
			return i, desc, qty, matchColumn(cells, hints.SKUHeaders)
		}
	}
	return -1, -1, -1, -1
}

func matchColumn(cells []string, aliases []string) int {
	for _, alias := range aliases {
		alias = strings.ToLower(alias)
		for i, c := range cells {
			if strings.Contains(strings.ToLower(collapse(c)), alias) {
				return i
			}
		}
	}
	return -1
}

func rowContains(row []string, marker string) bool {
	for _, c := range row {
		if strings.Contains(strings.ToLower(c), marker) {
			return true
		}
	}
	return false
}

func cellAt(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

func collapse(s string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
}

// ParseQuantity parses an integer quantity. Integral floats ("2.0", as
// spreadsheets export them) are accepted; anything else is malformed.
func ParseQuantity(s string) (int, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, false
		}
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
