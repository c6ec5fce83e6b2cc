// Package extract reads page text and tables from a source PDF, with an
// OCR fallback for image-only pages.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ledongthuc/pdf"

	"github.com/jackzampolin/labelsplit/internal/order"
)

// OCRConfig configures the pdftoppm + tesseract fallback.
type OCRConfig struct {
	Enabled   bool
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"
	Lang      string // default "eng"
	DPI       int    // default 300
	PSM       int    // 6 = uniform block of text
	OEM       int    // 3 = default engine
	Attempts  uint   // default 2
	Delay     time.Duration
}

// Config configures an Extractor.
type Config struct {
	OCR     OCRConfig
	CellGap float64 // horizontal gap in points that separates table cells
}

// DefaultConfig returns the settings the label layouts were tuned with.
func DefaultConfig() Config {
	return Config{
		OCR: OCRConfig{
			Enabled:   true,
			Pdftoppm:  "pdftoppm",
			Tesseract: "tesseract",
			Lang:      "eng",
			DPI:       300,
			PSM:       6,
			OEM:       3,
			Attempts:  2,
			Delay:     200 * time.Millisecond,
		},
		CellGap: 8,
	}
}

// Extractor opens documents for page extraction.
type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

// New creates an Extractor. runner may be nil to use ExecRunner.
func New(cfg Config, runner Runner, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	def := DefaultConfig()
	if cfg.OCR.Pdftoppm == "" {
		cfg.OCR.Pdftoppm = def.OCR.Pdftoppm
	}
	if cfg.OCR.Tesseract == "" {
		cfg.OCR.Tesseract = def.OCR.Tesseract
	}
	if cfg.OCR.Lang == "" {
		cfg.OCR.Lang = def.OCR.Lang
	}
	if cfg.OCR.DPI <= 0 {
		cfg.OCR.DPI = def.OCR.DPI
	}
	if cfg.OCR.Attempts == 0 {
		cfg.OCR.Attempts = def.OCR.Attempts
	}
	if cfg.CellGap <= 0 {
		cfg.CellGap = def.CellGap
	}
	return &Extractor{cfg: cfg, runner: runner, logger: logger.With("component", "extract")}
}

// Document is an open source PDF.
type Document struct {
	path   string
	file   *os.File
	reader *pdf.Reader
	ex     *Extractor
}

// Open opens path. Failure here is fatal for a run.
func (e *Extractor) Open(path string) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to open PDF %s: %v", path, r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		if f != nil {
			_ = f.Close()
		}
		return nil, fmt.Errorf("failed to open PDF %s: %w", path, err)
	}
	return &Document{path: path, file: f, reader: r, ex: e}, nil
}

// Path returns the source path.
func (d *Document) Path() string { return d.path }

// NumPages returns the page count.
func (d *Document) NumPages() int { return d.reader.NumPage() }

// Close releases the underlying file.
func (d *Document) Close() error { return d.file.Close() }

// Page extracts page index (0-based). It never fails: extraction problems
// degrade the page to empty text and are returned as warnings.
func (d *Document) Page(ctx context.Context, index int) (order.Page, []string) {
	page := order.Page{Index: index}
	var warnings []string

	text, table, err := d.read(index)
	if err != nil {
		warnings = append(warnings, err.Error())
	}
	page.Text = text
	page.Table = table

	if strings.TrimSpace(text) != "" || !d.ex.cfg.OCR.Enabled {
		return page, warnings
	}

	ocrText, err := d.ex.ocr(ctx, d.path, index)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("page %d: OCR failed: %v", index+1, err))
		return page, warnings
	}
	page.Text = ocrText
	page.OCR = true
	return page, warnings
}

// read rebuilds the page text layer from positioned glyphs. Text comes from
// the rows so that separately positioned labels never run together. The
// reader panics on some malformed content streams, so panics are turned into
// errors.
func (d *Document) read(index int) (text string, table order.Table, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, table = "", nil
			err = fmt.Errorf("page %d: pdf reader panic: %v", index+1, r)
		}
	}()

	p := d.reader.Page(index + 1)
	if p.V.IsNull() {
		return "", nil, nil
	}
	table = BuildTable(p.Content().Text, d.ex.cfg.CellGap)
	return TableText(table), table, nil
}

// ocr renders one page with pdftoppm and reads it with tesseract.
func (e *Extractor) ocr(ctx context.Context, path string, index int) (string, error) {
	tmpDir, err := os.MkdirTemp("", "labelsplit-ocr-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("failed to remove temp dir", "path", tmpDir, "error", err)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	img := prefix + ".png"
	n := strconv.Itoa(index + 1)
	cfg := e.cfg.OCR

	var text string
	err = retry.Do(
		func() error {
			// pdftoppm -f n -l n -r 300 -png -singlefile <in.pdf> <tmp/page>
			_, errb, err := e.runner.Run(ctx, cfg.Pdftoppm, e.logger,
				"-f", n, "-l", n, "-r", strconv.Itoa(cfg.DPI), "-png", "-singlefile", path, prefix)
			if err != nil {
				return fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(string(errb)))
			}

			args := []string{img, "stdout", "-l", cfg.Lang}
			if cfg.OEM > 0 {
				args = append(args, "--oem", strconv.Itoa(cfg.OEM))
			}
			if cfg.PSM > 0 {
				args = append(args, "--psm", strconv.Itoa(cfg.PSM))
			}
			out, errb, err := e.runner.Run(ctx, cfg.Tesseract, e.logger, args...)
			if err != nil {
				return fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(string(errb)))
			}
			text = string(out)
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(cfg.Attempts),
		retry.Delay(cfg.Delay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no text recognized")
	}
	e.logger.Debug("ocr fallback used", "page", index+1, "chars", len(text))
	return text, nil
}
