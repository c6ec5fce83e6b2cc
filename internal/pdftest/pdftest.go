// Package pdftest writes small text-only PDFs for tests.
//
// Pages use the standard-14 Helvetica font with no /Widths array, the way
// most generated shipping labels do.
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"testing"
)

// FontSize is the size every line is drawn at.
const FontSize = 10

// Line is one run of text drawn at X, Y (points, origin bottom left).
type Line struct {
	X, Y float64
	Text string
}

// Page is one page of the document.
type Page struct {
	Width, Height float64
	Lines         []Line
}

// Lines lays out texts as one line each, top to bottom from y, 20pt apart.
func Lines(x, y float64, texts ...string) []Line {
	lines := make([]Line, len(texts))
	for i, s := range texts {
		lines[i] = Line{X: x, Y: y - float64(20*i), Text: s}
	}
	return lines
}

// Write writes pages to path and fails the test on error.
func Write(t testing.TB, path string, pages ...Page) {
	t.Helper()
	if err := os.WriteFile(path, Build(pages...), 0o644); err != nil {
		t.Fatalf("failed to write test PDF: %v", err)
	}
}

// Build renders pages into a complete PDF with a classic xref table.
func Build(pages ...Page) []byte {
	// 1 catalog, 2 page tree, 3 font, then a page and a content object per page
	n := 3 + 2*len(pages)
	objs := make([]string, n+1)

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objs[1] = "<< /Type /Catalog /Pages 2 0 R >>"
	objs[2] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages))
	objs[3] = "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>"

	for i, p := range pages {
		pageObj, contentObj := 4+2*i, 5+2*i
		objs[pageObj] = fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %g %g] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			p.Width, p.Height, contentObj)

		var content strings.Builder
		for _, l := range p.Lines {
			fmt.Fprintf(&content, "BT /F1 %d Tf %g %g Td (%s) Tj ET\n", FontSize, l.X, l.Y, escape(l.Text))
		}
		objs[contentObj] = fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String())
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, n+1)
	for i := 1; i <= n; i++ {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i, objs[i])
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", n+1)
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", n+1, xref)
	return buf.Bytes()
}

var escaper = strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)

func escape(s string) string { return escaper.Replace(s) }
