// Package split runs one label PDF through the full pipeline: record index,
// page extraction, order assignment, per-order PDFs, report and history.
package split

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/labelsplit/internal/assemble"
	"github.com/jackzampolin/labelsplit/internal/assign"
	"github.com/jackzampolin/labelsplit/internal/classify"
	"github.com/jackzampolin/labelsplit/internal/extract"
	"github.com/jackzampolin/labelsplit/internal/history"
	"github.com/jackzampolin/labelsplit/internal/lineitem"
	"github.com/jackzampolin/labelsplit/internal/marketplace"
	"github.com/jackzampolin/labelsplit/internal/order"
	"github.com/jackzampolin/labelsplit/internal/records"
	"github.com/jackzampolin/labelsplit/internal/report"
)

var (
	// ErrNoPages is returned when the source PDF has no pages.
	ErrNoPages = errors.New("source PDF has no pages")
	// ErrReportFormat is returned for a report format other than csv, xlsx or none.
	ErrReportFormat = errors.New("unknown report format")
)

// Report formats.
const (
	ReportCSV  = "csv"
	ReportXLSX = "xlsx"
	ReportNone = "none"
)

// ReportBaseName is the report file name without extension.
const ReportBaseName = "order_pages"

// Document is an opened source PDF.
type Document interface {
	NumPages() int
	Page(ctx context.Context, index int) (order.Page, []string)
	Close() error
}

// OpenFunc opens a source PDF.
type OpenFunc func(path string) (Document, error)

// ExtractorOpener adapts an extractor to OpenFunc.
func ExtractorOpener(ex *extract.Extractor) OpenFunc {
	return func(path string) (Document, error) {
		doc, err := ex.Open(path)
		if err != nil {
			return nil, err
		}
		return doc, nil
	}
}

// Decrypter strips permission-only encryption from a PDF.
type Decrypter interface {
	Decrypt(src, dst string) bool
}

// Ledger records runs and answers which orders were already split.
type Ledger interface {
	SeenOrders(ctx context.Context, marketplace string, keys []string) (map[string]string, error)
	RecordRun(ctx context.Context, run history.Run, orders []history.Order) error
}

// Deps are the collaborators of a run. Decrypter and History are optional.
type Deps struct {
	Registry  *marketplace.Registry
	Open      OpenFunc
	Writer    assemble.Writer
	Decrypter Decrypter
	History   Ledger
	Logger    *slog.Logger
}

// Request describes one split.
type Request struct {
	Source      string // label PDF
	Marketplace string
	RecordsPath string // optional order export (csv, tsv, xlsx)
	OutputDir   string // per-order PDFs and the report are written here
	Report      string // csv, xlsx or none; empty means csv
	LogPath     string // optional progress log
	RunID       string // generated when empty
}

// Result summarizes a finished run.
type Result struct {
	RunID       string   `json:"run_id" yaml:"run_id"`
	Marketplace string   `json:"marketplace" yaml:"marketplace"`
	Source      string   `json:"source" yaml:"source"`
	Pages       int      `json:"pages" yaml:"pages"`
	Orders      int      `json:"orders" yaml:"orders"`
	Unassigned  []int    `json:"unassigned,omitempty" yaml:"unassigned,omitempty"` // 1-based page numbers
	Items       int      `json:"items" yaml:"items"`
	Warnings    []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Outputs     []string `json:"outputs" yaml:"outputs"`
	Report      string   `json:"report,omitempty" yaml:"report,omitempty"`
	Log         string   `json:"log,omitempty" yaml:"log,omitempty"`

	Mapping *order.Mapping `json:"-" yaml:"-"`
}

// Header implements output.Tabular.
func (r *Result) Header() []string { return report.Header }

// Rows implements output.Tabular.
func (r *Result) Rows() [][]string {
	if r.Mapping == nil {
		return nil
	}
	var rows [][]string
	for _, row := range report.Rows(r.Mapping) {
		rows = append(rows, row.Cells())
	}
	return rows
}

// Run splits req.Source into one PDF per order.
//
// Missing inputs are fatal: an unknown marketplace, an unreadable record
// file, or a source PDF that cannot be opened. Everything that goes wrong on
// a single page is a warning and the run continues.
func Run(ctx context.Context, deps Deps, req Request) (*Result, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if req.Source == "" {
		return nil, fmt.Errorf("source PDF is required")
	}
	if req.OutputDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	format, err := reportFormat(req.Report)
	if err != nil {
		return nil, err
	}

	set, err := deps.Registry.Get(req.Marketplace)
	if err != nil {
		return nil, err
	}
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger = logger.With("run_id", runID, "marketplace", set.Name)

	// The record index is built once and read-only for the rest of the run.
	index := records.Empty()
	if req.RecordsPath != "" {
		index, err = records.Load(req.RecordsPath, set.Columns, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to load order export: %w", err)
		}
	}

	src := req.Source
	if deps.Decrypter != nil {
		tmp, err := os.MkdirTemp("", "labelsplit-")
		if err != nil {
			return nil, fmt.Errorf("failed to create temp dir: %w", err)
		}
		defer os.RemoveAll(tmp)
		decrypted := filepath.Join(tmp, filepath.Base(src))
		if deps.Decrypter.Decrypt(src, decrypted) {
			logger.Debug("using decrypted copy", "source", src)
			src = decrypted
		}
	}

	doc, err := deps.Open(src)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	n := doc.NumPages()
	if n == 0 {
		return nil, fmt.Errorf("%s: %w", req.Source, ErrNoPages)
	}

	progress := report.NewProgressLog(io.Discard)
	if req.LogPath != "" {
		progress, err = report.OpenProgressLog(req.LogPath)
		if err != nil {
			return nil, err
		}
	}
	defer progress.Close()

	res := &Result{
		RunID:       runID,
		Marketplace: set.Name,
		Source:      req.Source,
		Pages:       n,
		Log:         req.LogPath,
	}
	collect := assign.ObserverFunc(func(ev assign.Event) {
		if ev.Type == assign.Warning {
			res.Warnings = append(res.Warnings, ev.Message)
		}
	})

	started := time.Now()
	logger.Info("split started", "source", req.Source, "pages", n, "records", index.Len())

	engine := assign.NewEngine(classify.New(set), lineitem.NewResolver(index, set), progress, collect)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("split cancelled at page %d: %w", i+1, err)
		}
		page, warnings := doc.Page(ctx, i)
		for _, w := range warnings {
			progress.Warn("extraction failed", "page", i+1, "error", w)
			logger.Warn("extraction failed", "page", i+1, "error", w)
			res.Warnings = append(res.Warnings, w)
		}
		if _, err := engine.Process(page); err != nil {
			return nil, err
		}
	}
	m := engine.Finish()
	res.Mapping = m

	if u := m.Unassigned(); u != nil {
		for _, p := range u.Pages {
			res.Unassigned = append(res.Unassigned, p+1)
		}
		logger.Warn("pages could not be assigned to an order", "pages", report.PageList(u.Pages))
	}

	keys := orderKeys(m)
	if deps.History != nil && len(keys) > 0 {
		seen, err := deps.History.SeenOrders(ctx, set.Name, keys)
		if err != nil {
			logger.Warn("failed to check history", "error", err)
		}
		for _, k := range keys {
			if prev, ok := seen[k]; ok {
				msg := fmt.Sprintf("order %s was already split by run %s", k, prev)
				progress.Warn(msg, "order", k)
				logger.Warn(msg)
				res.Warnings = append(res.Warnings, msg)
			}
		}
	}

	asm := assemble.New(deps.Writer, req.OutputDir, logger)
	asm.OnWarning(func(msg string) {
		progress.Warn(msg)
		res.Warnings = append(res.Warnings, msg)
	})
	outputs, err := asm.Assemble(ctx, src, m, set.SplitRatio, progress.Saved)
	if err != nil {
		return nil, err
	}
	res.Outputs = outputs
	res.Orders = len(keys)
	for _, b := range m.Buckets() {
		res.Items += len(b.Items)
	}

	if res.Report, err = writeReport(format, req.OutputDir, m); err != nil {
		return nil, err
	}

	if deps.History != nil {
		run := history.Run{
			ID:          runID,
			Marketplace: set.Name,
			Source:      req.Source,
			Pages:       n,
			Orders:      res.Orders,
			Unassigned:  len(res.Unassigned),
			Warnings:    len(res.Warnings),
			StartedAt:   started,
			FinishedAt:  time.Now(),
		}
		if err := deps.History.RecordRun(ctx, run, ledgerOrders(m)); err != nil {
			logger.Warn("failed to record run", "error", err)
		}
	}

	logger.Info("split finished",
		"orders", res.Orders,
		"unassigned", len(res.Unassigned),
		"warnings", len(res.Warnings),
		"duration", time.Since(started).Round(time.Millisecond),
	)
	return res, nil
}

func reportFormat(s string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case "":
		return ReportCSV, nil
	case ReportCSV, ReportXLSX, ReportNone:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrReportFormat, s)
	}
}

func writeReport(format, dir string, m *order.Mapping) (string, error) {
	switch format {
	case ReportCSV:
		path := filepath.Join(dir, ReportBaseName+".csv")
		f, err := os.Create(path)
		if err != nil {
			return "", fmt.Errorf("failed to create report: %w", err)
		}
		if err := report.WriteCSV(f, m); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to write report: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to close report: %w", err)
		}
		return path, nil
	case ReportXLSX:
		path := filepath.Join(dir, ReportBaseName+".xlsx")
		if err := report.WriteXLSX(path, m); err != nil {
			return "", err
		}
		return path, nil
	default:
		return "", nil
	}
}

// orderKeys returns the keys of real orders, skipping the unassigned bucket.
func orderKeys(m *order.Mapping) []string {
	var keys []string
	for _, b := range m.Buckets() {
		if !b.Unassigned {
			keys = append(keys, b.Key)
		}
	}
	return keys
}

func ledgerOrders(m *order.Mapping) []history.Order {
	var out []history.Order
	for _, b := range m.Buckets() {
		if b.Unassigned {
			continue
		}
		out = append(out, history.Order{
			Key:    b.Key,
			Pages:  len(b.Pages),
			Items:  len(b.Items),
			Output: b.OutputPath,
		})
	}
	return out
}
