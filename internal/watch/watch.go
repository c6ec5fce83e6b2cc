// Package watch emits label PDFs dropped into an inbox directory.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period used when Config.Debounce is zero.
const DefaultDebounce = 1500 * time.Millisecond

// Config configures an inbox watcher.
type Config struct {
	Dir         string
	Debounce    time.Duration // quiet period after the last write before a file is emitted
	InitialScan bool          // emit PDFs already in Dir at start
}

// Watcher reports PDFs created or rewritten in a directory.
type Watcher struct {
	cfg    Config
	fsw    *fsnotify.Watcher
	files  chan string
	logger *slog.Logger
}

// New starts watching cfg.Dir. Call Run to begin emitting files.
func New(cfg Config, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dir == "" {
		return nil, errors.New("watch directory is required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat watch directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", cfg.Dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(cfg.Dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", cfg.Dir, err)
	}

	return &Watcher{
		cfg:    cfg,
		fsw:    fsw,
		files:  make(chan string, 16),
		logger: logger.With("component", "watch", "dir", cfg.Dir),
	}, nil
}

// Files returns the channel of settled PDF paths. It is closed when Run returns.
func (w *Watcher) Files() <-chan string {
	return w.files
}

// Run emits files until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.files)
	defer w.fsw.Close()

	if w.cfg.InitialScan {
		existing, err := scan(w.cfg.Dir)
		if err != nil {
			return err
		}
		for _, p := range existing {
			if !w.send(ctx, p) {
				return nil
			}
		}
	}

	w.logger.Info("watching for label PDFs", "debounce", w.cfg.Debounce)

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.cfg.Debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !isPDF(ev.Name) || !(ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write)) {
				continue
			}
			w.logger.Debug("inbox event", "file", filepath.Base(ev.Name), "op", ev.Op.String())
			pending[ev.Name] = struct{}{}
			timer.Reset(w.cfg.Debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)

		case <-timer.C:
			for _, p := range settled(pending) {
				if !w.send(ctx, p) {
					return nil
				}
			}
			clear(pending)
		}
	}
}

func (w *Watcher) send(ctx context.Context, path string) bool {
	select {
	case w.files <- path:
		return true
	case <-ctx.Done():
		return false
	}
}

// settled returns the pending paths that still exist, sorted.
func settled(pending map[string]struct{}) []string {
	var out []string
	for p := range pending {
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func scan(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && isPDF(e.Name()) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}
