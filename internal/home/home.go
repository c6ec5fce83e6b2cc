package home

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultDirName is the default name for the labelsplit home directory.
	DefaultDirName = ".labelsplit"

	// OutputsDirName is the subdirectory for split order PDFs.
	OutputsDirName = "outputs"

	// LogsDirName is the subdirectory for per-run progress logs.
	LogsDirName = "logs"

	// InboxDirName is the directory watched for incoming label PDFs.
	InboxDirName = "inbox"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// HistoryFileName is the run ledger database.
	HistoryFileName = "history.db"
)

// Dir represents the labelsplit home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.labelsplit).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// HistoryPath returns the path to the run ledger.
func (d *Dir) HistoryPath() string {
	return filepath.Join(d.path, HistoryFileName)
}

// OutputsDir returns the root of all split outputs.
func (d *Dir) OutputsDir() string {
	return filepath.Join(d.path, OutputsDirName)
}

// RunOutputDir returns the output directory for one source PDF, named after
// the source file and the marketplace.
func (d *Dir) RunOutputDir(marketplace, source string) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return filepath.Join(d.OutputsDir(), marketplace, base)
}

// LogsDir returns the directory for progress logs.
func (d *Dir) LogsDir() string {
	return filepath.Join(d.path, LogsDirName)
}

// LogPath returns the progress log path for a run.
func (d *Dir) LogPath(marketplace, runID string) string {
	return filepath.Join(d.LogsDir(), fmt.Sprintf("%s_%s.log", marketplace, runID))
}

// InboxDir returns the watched inbox directory.
func (d *Dir) InboxDir() string {
	return filepath.Join(d.path, InboxDirName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, dir := range []string{d.OutputsDir(), d.LogsDir(), d.InboxDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
