package report

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jackzampolin/labelsplit/internal/assign"
	"github.com/jackzampolin/labelsplit/internal/order"
)

// ProgressLog is an engine observer that writes one line-oriented record per
// page processed and per PDF saved.
type ProgressLog struct {
	logger *slog.Logger
	closer io.Closer
}

// NewProgressLog writes records to w.
func NewProgressLog(w io.Writer) *ProgressLog {
	return &ProgressLog{logger: slog.New(slog.NewTextHandler(w, nil))}
}

// OpenProgressLog appends to the log file at path, creating its directory.
func OpenProgressLog(path string) (*ProgressLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open progress log: %w", err)
	}
	p := NewProgressLog(f)
	p.closer = f
	return p, nil
}

// Observe implements assign.Observer.
func (p *ProgressLog) Observe(ev assign.Event) {
	switch ev.Type {
	case assign.PageProcessed:
		p.logger.Info("page processed",
			"page", ev.PageIndex+1,
			"kind", ev.Classification.Kind.String(),
			"state", ev.State.String(),
			"order", ev.OrderKey,
			"aux", ev.Classification.AuxKey,
			"items", ev.ItemCount,
			"ocr", ev.OCR,
		)
	case assign.BufferFlushed:
		p.logger.Info("buffer flushed",
			"order", ev.OrderKey,
			"pages", PageList(ev.Pages),
			"reason", ev.Message,
		)
	case assign.OrderResolved:
		p.logger.Info("order resolved",
			"page", ev.PageIndex+1,
			"order", ev.OrderKey,
			"items", ev.ItemCount,
			"source", ev.Source.String(),
		)
	case assign.Warning:
		attrs := []any{"order", ev.OrderKey}
		if ev.PageIndex >= 0 {
			attrs = append(attrs, "page", ev.PageIndex+1)
		}
		p.logger.Warn(ev.Message, attrs...)
	case assign.BucketClosed:
		p.logger.Info("order closed",
			"order", ev.OrderKey,
			"pages", PageList(ev.Pages),
			"items", ev.ItemCount,
		)
	}
}

// Saved records a written order PDF.
func (p *ProgressLog) Saved(b *order.Bucket) {
	p.logger.Info("pdf saved", "order", b.Key, "pages", len(b.Pages), "path", b.OutputPath)
}

// Warn records a warning raised outside the engine, such as an extraction
// failure.
func (p *ProgressLog) Warn(msg string, args ...any) {
	p.logger.Warn(msg, args...)
}

// Close closes the underlying file, if any.
func (p *ProgressLog) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}
