package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackzampolin/labelsplit/internal/marketplace"
)

// ErrNoDefault is returned when no default value exists for a config key.
var ErrNoDefault = errors.New("no default exists")

// DefaultEntries returns the default configuration entries.
// These seed viper's defaults and document every settable key.
func DefaultEntries() []Entry {
	return []Entry{
		// ===================
		// Split defaults
		// ===================
		{
			Key:         "defaults.marketplace",
			Value:       marketplace.Amazon,
			Description: "Marketplace used when --marketplace is not given",
		},
		{
			Key:         "defaults.output_dir",
			Value:       "",
			Description: "Root output directory (empty = {home}/outputs)",
		},
		{
			Key:         "defaults.report",
			Value:       "csv",
			Description: "Verification report format: csv, xlsx or none",
		},

		// ===================
		// OCR fallback
		// ===================
		{
			Key:         "ocr.enabled",
			Value:       true,
			Description: "Run OCR on pages without a text layer",
		},
		{
			Key:         "ocr.pdftoppm",
			Value:       "pdftoppm",
			Description: "pdftoppm binary (supports ${ENV_VAR})",
		},
		{
			Key:         "ocr.tesseract",
			Value:       "tesseract",
			Description: "tesseract binary (supports ${ENV_VAR})",
		},
		{
			Key:         "ocr.lang",
			Value:       "eng",
			Description: "Tesseract language",
		},
		{
			Key:         "ocr.dpi",
			Value:       300,
			Description: "Rasterization DPI for OCR",
		},
		{
			Key:         "ocr.psm",
			Value:       6,
			Description: "Tesseract page segmentation mode",
		},
		{
			Key:         "ocr.oem",
			Value:       3,
			Description: "Tesseract OCR engine mode",
		},
		{
			Key:         "ocr.attempts",
			Value:       2,
			Description: "OCR attempts per page before the page is left empty",
		},
		{
			Key:         "ocr.delay_ms",
			Value:       200,
			Description: "Delay between OCR attempts in milliseconds",
		},

		// ===================
		// Extraction
		// ===================
		{
			Key:         "extract.cell_gap",
			Value:       8.0,
			Description: "Horizontal gap in points that separates table cells",
		},

		// ===================
		// History
		// ===================
		{
			Key:         "history.enabled",
			Value:       true,
			Description: "Record runs and flag orders split by an earlier run",
		},
		{
			Key:         "history.path",
			Value:       "",
			Description: "Run ledger path (empty = {home}/history.db)",
		},

		// ===================
		// Watch
		// ===================
		{
			Key:         "watch.dir",
			Value:       "",
			Description: "Inbox directory (empty = {home}/inbox)",
		},
		{
			Key:         "watch.debounce_ms",
			Value:       1500,
			Description: "Quiet period before a new PDF in the inbox is split",
		},
	}
}

// DefaultConfig returns configuration with the default values.
func DefaultConfig() *Config {
	return &Config{
		Defaults: DefaultsCfg{
			Marketplace: marketplace.Amazon,
			Report:      "csv",
		},
		OCR: OCRCfg{
			Enabled:   true,
			Pdftoppm:  "pdftoppm",
			Tesseract: "tesseract",
			Lang:      "eng",
			DPI:       300,
			PSM:       6,
			OEM:       3,
			Attempts:  2,
			DelayMS:   200,
		},
		Extract: ExtractCfg{CellGap: 8},
		History: HistoryCfg{Enabled: true},
		Watch:   WatchCfg{DebounceMS: 1500},
	}
}

// SeedDefaults writes every default entry missing from store.
func SeedDefaults(ctx context.Context, store Store, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	defaults := DefaultEntries()
	seeded := 0
	skipped := 0

	for _, entry := range defaults {
		existing, err := store.Get(ctx, entry.Key)
		if err != nil {
			return fmt.Errorf("failed to check key %q: %w", entry.Key, err)
		}

		if existing != nil {
			skipped++
			continue
		}

		if err := store.Set(ctx, entry.Key, entry.Value, entry.Description); err != nil {
			return fmt.Errorf("failed to seed key %q: %w", entry.Key, err)
		}
		seeded++
	}

	if seeded > 0 {
		logger.Info("seeded default config entries", "seeded", seeded, "skipped", skipped)
	}
	return nil
}

// GetDefault returns the default value for a config key.
// Returns nil if no default exists for the key.
func GetDefault(key string) *Entry {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry
		}
	}
	return nil
}

// ResetToDefault resets a config key to its default value.
// Returns ErrNoDefault if no default exists for the key.
func ResetToDefault(ctx context.Context, store Store, key string) error {
	def := GetDefault(key)
	if def == nil {
		return fmt.Errorf("%w for key %q", ErrNoDefault, key)
	}
	return store.Set(ctx, key, def.Value, def.Description)
}
