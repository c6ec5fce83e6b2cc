package assemble

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Writer produces output PDFs from a source PDF.
type Writer interface {
	// Collect writes the given 0-based pages of src to dst, in the given order.
	Collect(src, dst string, pages []int) error
	// Halve writes each page of src to dst twice: first the top part down to
	// ratio of the page height, then the rest.
	Halve(src, dst string, ratio float64) error
}

// PDFWriter implements Writer with pdfcpu.
type PDFWriter struct {
	conf *model.Configuration
}

// NewPDFWriter creates a pdfcpu backed writer with relaxed validation,
// since marketplace label PDFs are often slightly malformed.
func NewPDFWriter() *PDFWriter {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFWriter{conf: conf}
}

func (w *PDFWriter) Collect(src, dst string, pages []int) error {
	sel := make([]string, len(pages))
	for i, p := range pages {
		sel[i] = strconv.Itoa(p + 1)
	}
	if err := api.CollectFile(src, dst, sel, w.conf); err != nil {
		return fmt.Errorf("failed to collect pages %v: %w", sel, err)
	}
	return nil
}

type cropKey struct {
	w, h float64
	top  bool
}

func (w *PDFWriter) Halve(src, dst string, ratio float64) error {
	dims, err := api.PageDimsFile(src)
	if err != nil {
		return fmt.Errorf("failed to read page dimensions: %w", err)
	}

	// every page twice, top part then bottom part
	sel := make([]string, 0, 2*len(dims))
	for i := range dims {
		n := strconv.Itoa(i + 1)
		sel = append(sel, n, n)
	}
	if err := api.CollectFile(src, dst, sel, w.conf); err != nil {
		return fmt.Errorf("failed to duplicate pages: %w", err)
	}

	// one crop per page size and half
	groups := map[cropKey][]string{}
	var order []cropKey
	for i, d := range dims {
		for half := 0; half < 2; half++ {
			k := cropKey{w: d.Width, h: d.Height, top: half == 0}
			if _, ok := groups[k]; !ok {
				order = append(order, k)
			}
			groups[k] = append(groups[k], strconv.Itoa(2*i+half+1))
		}
	}

	for _, k := range order {
		box, err := api.Box(cropBox(k, ratio), types.POINTS)
		if err != nil {
			return fmt.Errorf("failed to parse crop box: %w", err)
		}
		tmp := dst + ".crop"
		if err := api.CropFile(dst, tmp, groups[k], box, w.conf); err != nil {
			os.Remove(tmp)
			return fmt.Errorf("failed to crop pages %v: %w", groups[k], err)
		}
		if err := os.Rename(tmp, dst); err != nil {
			return fmt.Errorf("failed to replace %s: %w", dst, err)
		}
	}
	return nil
}

// cropBox returns a "[llx lly urx ury]" rectangle. PDF y grows upward, so
// the top part spans from the cut line to the page height.
func cropBox(k cropKey, ratio float64) string {
	cut := k.h * (1 - ratio)
	if k.top {
		return fmt.Sprintf("[0 %.2f %.2f %.2f]", cut, k.w, k.h)
	}
	return fmt.Sprintf("[0 0 %.2f %.2f]", k.w, cut)
}

// Decrypt writes an unencrypted copy of src to dst. It reports false when src
// is not encrypted or cannot be decrypted without a password.
func (w *PDFWriter) Decrypt(src, dst string) bool {
	if err := api.DecryptFile(src, dst, w.conf); err != nil {
		os.Remove(dst)
		return false
	}
	return true
}
