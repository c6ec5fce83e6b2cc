package extract

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ledongthuc/pdf"

	"github.com/jackzampolin/labelsplit/internal/classify"
	"github.com/jackzampolin/labelsplit/internal/marketplace"
	"github.com/jackzampolin/labelsplit/internal/order"
	"github.com/jackzampolin/labelsplit/internal/pdftest"
)

type call struct {
	name string
	args []string
}

type fakeRunner struct {
	calls   []call
	outputs map[string][]byte
	fail    map[string]int // remaining failures per command
}

func (f *fakeRunner) Run(ctx context.Context, name string, logger *slog.Logger, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, call{name: name, args: args})
	if f.fail[name] > 0 {
		f.fail[name]--
		return nil, []byte("boom"), errors.New("exit status 1")
	}
	return f.outputs[name], nil, nil
}

func (f *fakeRunner) count(name string) int {
	n := 0
	for _, c := range f.calls {
		if c.name == name {
			n++
		}
	}
	return n
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.OCR.Delay = 0
	return cfg
}

func TestBuildTable(t *testing.T) {
	texts := []pdf.Text{
		// header row, y=700
		{X: 200, Y: 700, W: 20, FontSize: 10, S: "Qty"},
		{X: 50, Y: 700, W: 60, FontSize: 10, S: "Description"},
		// data row split into words, y=680.5 (within tolerance of 680)
		{X: 50, Y: 680, W: 30, FontSize: 10, S: "Cotton"},
		{X: 83, Y: 680.5, W: 20, FontSize: 10, S: "Tee"},
		{X: 200, Y: 680, W: 5, FontSize: 10, S: "2"},
		// glyph-by-glyph text with no gaps
		{X: 50, Y: 660, W: 5, FontSize: 10, S: "T"},
		{X: 55, Y: 660, W: 5, FontSize: 10, S: "O"},
		{X: 60, Y: 660, W: 5, FontSize: 10, S: "T"},
		{X: 200, Y: 660, W: 5, FontSize: 10, S: "2"},
		{X: 300, Y: 640, W: 5, FontSize: 10, S: " "},
	}

	got := BuildTable(texts, 8)
	want := order.Table{
		{"Description", "Qty"},
		{"Cotton Tee", "2"},
		{"TOT", "2"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBuildTableEmpty(t *testing.T) {
	if got := BuildTable(nil, 8); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}

func TestOCRArgs(t *testing.T) {
	r := &fakeRunner{outputs: map[string][]byte{"tesseract": []byte("Order Id: 1\n")}}
	e := New(testConfig(), r, nil)

	text, err := e.ocr(context.Background(), "in.pdf", 4)
	if err != nil {
		t.Fatalf("ocr failed: %v", err)
	}
	if text != "Order Id: 1\n" {
		t.Errorf("text = %q", text)
	}
	if len(r.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(r.calls))
	}

	pp := strings.Join(r.calls[0].args, " ")
	if !strings.HasPrefix(pp, "-f 5 -l 5 -r 300 -png -singlefile in.pdf ") {
		t.Errorf("pdftoppm args = %q", pp)
	}
	tess := r.calls[1].args
	if !strings.HasSuffix(tess[0], "page.png") || tess[1] != "stdout" {
		t.Errorf("tesseract args = %q", tess)
	}
	if got := strings.Join(tess[2:], " "); got != "-l eng --oem 3 --psm 6" {
		t.Errorf("tesseract options = %q", got)
	}
}

func TestOCRRetries(t *testing.T) {
	r := &fakeRunner{
		outputs: map[string][]byte{"tesseract": []byte("text")},
		fail:    map[string]int{"tesseract": 1},
	}
	e := New(testConfig(), r, nil)

	if _, err := e.ocr(context.Background(), "in.pdf", 0); err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	if r.count("tesseract") != 2 {
		t.Errorf("tesseract ran %d times, want 2", r.count("tesseract"))
	}
}

func TestOCRGivesUp(t *testing.T) {
	r := &fakeRunner{fail: map[string]int{"pdftoppm": 10}}
	e := New(testConfig(), r, nil)

	_, err := e.ocr(context.Background(), "in.pdf", 0)
	if err == nil || !strings.Contains(err.Error(), "pdftoppm") {
		t.Errorf("got %v, want pdftoppm error", err)
	}
	if r.count("pdftoppm") != 2 {
		t.Errorf("pdftoppm ran %d times, want 2", r.count("pdftoppm"))
	}
}

func TestOCRBlankResult(t *testing.T) {
	r := &fakeRunner{outputs: map[string][]byte{"tesseract": []byte("  \n")}}
	e := New(testConfig(), r, nil)
	if _, err := e.ocr(context.Background(), "in.pdf", 0); err == nil {
		t.Error("expected error for blank OCR output")
	}
}

func TestOpenErrors(t *testing.T) {
	e := New(testConfig(), &fakeRunner{}, nil)

	if _, err := e.Open(filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.pdf")
	if err := os.WriteFile(bad, []byte("not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Open(bad); err == nil {
		t.Error("expected error for invalid PDF")
	}
}

func TestNewDefaults(t *testing.T) {
	e := New(Config{}, nil, nil)
	if e.cfg.OCR.Pdftoppm != "pdftoppm" || e.cfg.OCR.Tesseract != "tesseract" {
		t.Errorf("binaries not defaulted: %+v", e.cfg.OCR)
	}
	if e.cfg.OCR.DPI != 300 || e.cfg.OCR.Attempts != 2 || e.cfg.CellGap != 8 {
		t.Errorf("numbers not defaulted: %+v", e.cfg)
	}
	if _, ok := e.runner.(ExecRunner); !ok {
		t.Errorf("runner = %T, want ExecRunner", e.runner)
	}
}

func TestDocumentPage(t *testing.T) {
	label := pdftest.Page{Width: 600, Height: 800}
	label.Lines = append(pdftest.Lines(50, 760,
		"VL0123456789",
		"Product Details",
		"Purchase Order No.",
		"123456789",
		"Invoice No. ABC1",
	),
		pdftest.Line{X: 50, Y: 600, Text: "SKU"},
		pdftest.Line{X: 200, Y: 600, Text: "Qty"},
		pdftest.Line{X: 50, Y: 580, Text: "KURTI XL"},
		pdftest.Line{X: 200, Y: 580, Text: "2"},
	)
	path := filepath.Join(t.TempDir(), "meesho.pdf")
	pdftest.Write(t, path, label, pdftest.Page{Width: 600, Height: 800})

	cfg := testConfig()
	cfg.OCR.Enabled = false
	runner := &fakeRunner{}
	doc, err := New(cfg, runner, nil).Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer doc.Close()

	if doc.NumPages() != 2 {
		t.Fatalf("NumPages = %d, want 2", doc.NumPages())
	}

	page, warnings := doc.Page(context.Background(), 0)
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	wantTable := order.Table{
		{"VL0123456789"},
		{"Product Details"},
		{"Purchase Order No."},
		{"123456789"},
		{"Invoice No. ABC1"},
		{"SKU", "Qty"},
		{"KURTI XL", "2"},
	}
	if !reflect.DeepEqual(page.Table, wantTable) {
		t.Errorf("table = %q, want %q", page.Table, wantTable)
	}
	wantText := "VL0123456789\nProduct Details\nPurchase Order No.\n123456789\nInvoice No. ABC1\nSKU Qty\nKURTI XL 2"
	if page.Text != wantText {
		t.Errorf("text = %q, want %q", page.Text, wantText)
	}

	def, _ := marketplace.Builtin(marketplace.Meesho)
	set, err := marketplace.Compile(def)
	if err != nil {
		t.Fatal(err)
	}
	got := classify.New(set).Classify(page.Text)
	want := order.Classification{Kind: order.OrderStart, OrderKey: "123456789", AuxKey: "VL0123456789"}
	if got != want {
		t.Errorf("Classify = %+v, want %+v", got, want)
	}

	blank, warnings := doc.Page(context.Background(), 1)
	if blank.Text != "" || len(blank.Table) != 0 || blank.OCR || len(warnings) != 0 {
		t.Errorf("blank page = %+v, warnings %v", blank, warnings)
	}
	if len(runner.calls) != 0 {
		t.Errorf("OCR should not run when disabled, got %v", runner.calls)
	}
}

func TestBuildTableZeroWidthGlyphs(t *testing.T) {
	// glyphs of one show-text operation stacked at one X, as the reader
	// reports them for fonts without widths
	var texts []pdf.Text
	for _, r := range "Item Name" {
		texts = append(texts, pdf.Text{X: 50, Y: 700, FontSize: 10, S: string(r)})
	}
	texts = append(texts, pdf.Text{X: 200, Y: 700, FontSize: 10, S: "Qty"})

	got := BuildTable(texts, 8)
	want := order.Table{{"Item Name", "Qty"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestTableText(t *testing.T) {
	got := TableText(order.Table{{"Order No :", "FC1"}, {"Item"}})
	if got != "Order No : FC1\nItem" {
		t.Errorf("got %q", got)
	}
	if TableText(nil) != "" {
		t.Error("expected empty text for empty table")
	}
}
