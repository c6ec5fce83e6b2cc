package extract

import (
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/jackzampolin/labelsplit/internal/order"
)

// rowTolerance is the vertical distance, in points, within which two glyph
// runs are treated as the same row.
const rowTolerance = 2.0

type row struct {
	y     float64
	texts []pdf.Text
}

// BuildTable groups positioned text into rows (top of page first) and merges
// each row into cells. A horizontal gap wider than cellGap starts a new cell;
// whitespace glyphs and smaller gaps separate words.
func BuildTable(texts []pdf.Text, cellGap float64) order.Table {
	var rows []*row
	for _, t := range texts {
		if t.S == "" {
			continue
		}
		placed := false
		for _, r := range rows {
			if math.Abs(r.y-t.Y) < rowTolerance {
				r.texts = append(r.texts, t)
				placed = true
				break
			}
		}
		if !placed {
			rows = append(rows, &row{y: t.Y, texts: []pdf.Text{t}})
		}
	}

	// PDF y grows upward
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].y > rows[j].y })

	var table order.Table
	for _, r := range rows {
		if cells := mergeCells(r.texts, cellGap); len(cells) > 0 {
			table = append(table, cells)
		}
	}
	return table
}

func mergeCells(texts []pdf.Text, cellGap float64) []string {
	sort.SliceStable(texts, func(i, j int) bool { return texts[i].X < texts[j].X })

	var (
		cells []string
		cur   strings.Builder
		end   float64
		space bool
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			cells = append(cells, s)
		}
		cur.Reset()
		space = false
	}

	for i, t := range texts {
		if i > 0 {
			gap := t.X - end
			switch {
			case gap > cellGap:
				flush()
			case gap > spaceWidth(t):
				space = true
			}
		}
		if strings.TrimSpace(t.S) == "" {
			space = true
		} else {
			if space && cur.Len() > 0 {
				cur.WriteByte(' ')
			}
			space = false
			cur.WriteString(t.S)
		}
		end = advance(t, end)
	}
	flush()
	return cells
}

// advance returns where a glyph ends. Fonts without a /Widths array report
// zero width and the reader stacks their glyphs at one X, so the advance is
// estimated from the font size.
func advance(t pdf.Text, end float64) float64 {
	if t.W > 0 {
		return t.X + t.W
	}
	return math.Max(t.X, end) + t.FontSize*0.5
}

// TableText flattens a table into page text: cells joined by a space, rows
// by a newline.
func TableText(table order.Table) string {
	lines := make([]string, len(table))
	for i, cells := range table {
		lines[i] = strings.Join(cells, " ")
	}
	return strings.Join(lines, "\n")
}

// spaceWidth estimates the gap that separates two words at the glyph's size.
func spaceWidth(t pdf.Text) float64 {
	if t.FontSize <= 0 {
		return 1
	}
	return t.FontSize * 0.2
}
