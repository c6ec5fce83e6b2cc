package records

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/jackzampolin/labelsplit/internal/marketplace"
)

func columns(t *testing.T, name string) marketplace.Columns {
	t.Helper()
	def, ok := marketplace.Builtin(name)
	if !ok {
		t.Fatalf("no builtin %q", name)
	}
	return def.Columns
}

func TestLoadTSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "amazon.txt")
	content := "order-id\tsku\tquantity-purchased\tproduct-name\n" +
		"408-1234567-7654321\tTSHIRT-RED-M\t2\tRed \"Cotton tee\n" +
		"408-1234567-7654321\tTSHIRT-BLU-L\tN/A\tBlue tee\n" +
		"171-0000000-0000001\tMUG-01\t1\tMug\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	ix, err := Load(path, columns(t, marketplace.Amazon), nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if ix.Len() != 2 {
		t.Errorf("expected 2 orders, got %d", ix.Len())
	}
	if ix.Rows() != 3 {
		t.Errorf("expected 3 rows, got %d", ix.Rows())
	}

	recs := ix.Lookup("408-1234567-7654321")
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].SKU != "TSHIRT-RED-M" || recs[0].Quantity != "2" {
		t.Errorf("unexpected first record: %+v", recs[0])
	}
	if recs[1].Quantity != "N/A" {
		t.Errorf("raw quantity should be preserved, got %q", recs[1].Quantity)
	}
	if recs[1].Row != 3 {
		t.Errorf("row = %d, want 3", recs[1].Row)
	}
}

func TestLoadCSVMeeshoKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meesho.csv")
	content := "Sub Order No.,SKU,Qty.,AWB\n" +
		"\"123456789_1\",KURTI-XL,1,VL0123456789\n" +
		"\"1234\n56789_2\",KURTI-L,3,VL0123456789\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	ix, err := Load(path, columns(t, marketplace.Meesho), nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	recs := ix.Lookup("123456789")
	if len(recs) != 2 {
		t.Fatalf("expected both sub-orders under one key, got %d", len(recs))
	}
	if recs[1].TrackingID != "VL0123456789" {
		t.Errorf("tracking id = %q", recs[1].TrackingID)
	}
}

func TestLoadCSVByteOrderMark(t *testing.T) {
	path := filepath.Join(t.TempDir(), "amazon.csv")
	content := "\ufefforder-id,sku,quantity-purchased\n" +
		"408-1234567-7654321,MUG-01,1\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	ix, err := Load(path, columns(t, marketplace.Amazon), nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if recs := ix.Lookup("408-1234567-7654321"); len(recs) != 1 || recs[0].SKU != "MUG-01" {
		t.Errorf("unexpected records: %+v", recs)
	}
}

func TestLoadXLSX(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "firstcry.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Order ID", "Vendor Style Code", "Total Items", "Total Qty", "AWB No"},
		{"FC12345", "STYLE-9", 1, 4, "AWB77"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	f.Close()

	ix, err := Load(path, columns(t, marketplace.FirstCry), nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	recs := ix.Lookup("FC12345")
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].SKU != "STYLE-9" || recs[0].Quantity != "4" || recs[0].TrackingID != "AWB77" {
		t.Errorf("unexpected record: %+v", recs[0])
	}
}

func TestBuildMissingColumn(t *testing.T) {
	rows := [][]string{{"order-id", "sku"}, {"1", "A"}}
	_, err := Build(rows, columns(t, marketplace.Amazon))
	if !errors.Is(err, ErrMissingColumn) {
		t.Errorf("got %v, want ErrMissingColumn", err)
	}
}

func TestLoadUnsupported(t *testing.T) {
	_, err := Load("orders.xls", columns(t, marketplace.Amazon), nil)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("got %v, want ErrUnsupportedFormat", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.csv"), columns(t, marketplace.Flipkart), nil)
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestEmptyIndex(t *testing.T) {
	var ix *Index
	if got := ix.Lookup("X"); got != nil {
		t.Errorf("nil index lookup = %v", got)
	}
	if Empty().Len() != 0 {
		t.Error("expected empty index")
	}
}
