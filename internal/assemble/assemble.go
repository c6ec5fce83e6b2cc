// Package assemble writes one PDF per order bucket.
package assemble

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jackzampolin/labelsplit/internal/order"
)

var reUnsafe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeKey makes an order key safe for use in a file name.
func SanitizeKey(key string) string {
	s := reUnsafe.ReplaceAllString(key, "_")
	if s == "" || s == "." || s == ".." {
		return "unknown"
	}
	return s
}

// FileName returns the output file name for an order key.
func FileName(key string) string {
	return "Order_" + SanitizeKey(key) + ".pdf"
}

// uniqueName returns key's file name, suffixed with _2, _3, ... when an
// earlier key of the run already took it. Names compare case-insensitively.
func uniqueName(key string, used map[string]bool) (name string, renamed bool) {
	base := strings.TrimSuffix(FileName(key), ".pdf")
	name = base + ".pdf"
	for n := 2; used[strings.ToLower(name)]; n++ {
		name = fmt.Sprintf("%s_%d.pdf", base, n)
		renamed = true
	}
	used[strings.ToLower(name)] = true
	return name, renamed
}

// SavedFunc is called after each bucket's PDF is written.
type SavedFunc func(b *order.Bucket)

// Assembler writes bucket PDFs into an output directory.
type Assembler struct {
	writer Writer
	outDir string
	warn   func(msg string)
	logger *slog.Logger
}

// New creates an Assembler.
func New(writer Writer, outDir string, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{writer: writer, outDir: outDir, logger: logger.With("component", "assemble")}
}

// OnWarning registers a callback for problems that do not stop assembly.
func (a *Assembler) OnWarning(fn func(msg string)) {
	a.warn = fn
}

// Assemble writes every non-empty bucket of m, preserving each bucket's page
// order. With ratio > 0 every page is split into a top and a bottom part.
// It sets Bucket.OutputPath and returns the written paths in bucket order.
func (a *Assembler) Assemble(ctx context.Context, src string, m *order.Mapping, ratio float64, saved SavedFunc) ([]string, error) {
	if err := os.MkdirAll(a.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if ratio < 0 || ratio >= 1 {
		return nil, fmt.Errorf("split ratio %v out of range [0, 1)", ratio)
	}

	var paths []string
	used := map[string]bool{}
	for _, b := range m.Buckets() {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		if len(b.Pages) == 0 {
			continue
		}

		name, renamed := uniqueName(b.Key, used)
		if renamed {
			msg := fmt.Sprintf("order %s shares a file name with an earlier order, saved as %s", b.Key, name)
			a.logger.Warn(msg, "order", b.Key)
			if a.warn != nil {
				a.warn(msg)
			}
		}
		path := filepath.Join(a.outDir, name)
		if err := a.write(src, path, b.Pages, ratio); err != nil {
			return paths, fmt.Errorf("failed to write order %s: %w", b.Key, err)
		}

		b.OutputPath = path
		paths = append(paths, path)
		a.logger.Debug("saved order pdf", "order", b.Key, "pages", len(b.Pages), "path", path)
		if saved != nil {
			saved(b)
		}
	}
	return paths, nil
}

func (a *Assembler) write(src, dst string, pages []int, ratio float64) error {
	if ratio == 0 {
		return a.writer.Collect(src, dst, pages)
	}
	tmp := dst + ".pages"
	defer os.Remove(tmp)
	if err := a.writer.Collect(src, tmp, pages); err != nil {
		return err
	}
	return a.writer.Halve(tmp, dst, ratio)
}
