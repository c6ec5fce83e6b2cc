package config

import "github.com/jackzampolin/labelsplit/internal/marketplace"

// Config holds labelsplit configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Defaults     DefaultsCfg                       `mapstructure:"defaults" yaml:"defaults"`
	OCR          OCRCfg                            `mapstructure:"ocr" yaml:"ocr"`
	Extract      ExtractCfg                        `mapstructure:"extract" yaml:"extract"`
	History      HistoryCfg                        `mapstructure:"history" yaml:"history"`
	Watch        WatchCfg                          `mapstructure:"watch" yaml:"watch"`
	Marketplaces map[string]marketplace.Definition `mapstructure:"marketplaces" yaml:"marketplaces,omitempty"`
}

// DefaultsCfg holds defaults for the split command.
type DefaultsCfg struct {
	Marketplace string `mapstructure:"marketplace" yaml:"marketplace"`
	OutputDir   string `mapstructure:"output_dir" yaml:"output_dir"` // empty = {home}/outputs
	Report      string `mapstructure:"report" yaml:"report"`         // "csv", "xlsx" or "none"
}

// OCRCfg configures the pdftoppm + tesseract fallback for image-only pages.
type OCRCfg struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Pdftoppm  string `mapstructure:"pdftoppm" yaml:"pdftoppm"`   // binary path (supports ${ENV_VAR} syntax)
	Tesseract string `mapstructure:"tesseract" yaml:"tesseract"` // binary path (supports ${ENV_VAR} syntax)
	Lang      string `mapstructure:"lang" yaml:"lang"`
	DPI       int    `mapstructure:"dpi" yaml:"dpi"`
	PSM       int    `mapstructure:"psm" yaml:"psm"`
	OEM       int    `mapstructure:"oem" yaml:"oem"`
	Attempts  int    `mapstructure:"attempts" yaml:"attempts"`
	DelayMS   int    `mapstructure:"delay_ms" yaml:"delay_ms"` // pause between attempts
}

// ExtractCfg tunes table reconstruction from positioned text.
type ExtractCfg struct {
	CellGap float64 `mapstructure:"cell_gap" yaml:"cell_gap"` // points between words that start a new cell
}

// HistoryCfg configures the run ledger.
type HistoryCfg struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"` // empty = {home}/history.db
}

// WatchCfg configures the inbox watcher.
type WatchCfg struct {
	Dir        string `mapstructure:"dir" yaml:"dir"` // empty = {home}/inbox
	DebounceMS int    `mapstructure:"debounce_ms" yaml:"debounce_ms"`
}
