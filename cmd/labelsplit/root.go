package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/labelsplit/internal/assemble"
	"github.com/jackzampolin/labelsplit/internal/config"
	"github.com/jackzampolin/labelsplit/internal/extract"
	"github.com/jackzampolin/labelsplit/internal/history"
	"github.com/jackzampolin/labelsplit/internal/home"
	"github.com/jackzampolin/labelsplit/internal/marketplace"
	"github.com/jackzampolin/labelsplit/internal/output"
	"github.com/jackzampolin/labelsplit/internal/split"
	"github.com/jackzampolin/labelsplit/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	debug        bool
)

var rootCmd = &cobra.Command{
	Use:   "labelsplit",
	Short: "Split multi-order marketplace shipping-label PDFs into one PDF per order",
	Long: `labelsplit takes the bulk shipping-label PDF a marketplace hands out for a
shipment batch and writes one PDF per order, together with the order's line
items (SKU, quantity, tracking/AWB).

Line items come from the marketplace order export when one is given
(--records) and are scraped from the invoice table otherwise.

Supported marketplaces: amazon, flipkart, meesho, firstcry. Patterns can be
overridden or new marketplaces added in the config file.`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.labelsplit/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "labelsplit home directory (default: ~/.labelsplit)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml, json or table",
	)
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	// Set output format and logging before any command runs
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if _, err := output.ParseFormat(outputFormat); err != nil {
			return err
		}
		output.SetFormat(outputFormat)

		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	}

	rootCmd.AddCommand(versionCmd)
}

// getHome returns the home directory manager.
func getHome() (*home.Dir, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, fmt.Errorf("failed to create home directory: %w", err)
	}
	return h, nil
}

// configPath is --config, else the home config file if it exists.
func configPath(h *home.Dir) string {
	if cfgFile != "" {
		return cfgFile
	}
	if h.ConfigExists() {
		return h.ConfigPath()
	}
	return ""
}

// loadConfig creates the config manager for h.
func loadConfig(h *home.Dir) (*config.Manager, error) {
	mgr, err := config.NewManager(configPath(h))
	if err != nil {
		return nil, err
	}
	if f := mgr.ConfigFile(); f != "" {
		slog.Debug("loaded config", "file", f)
	}
	return mgr, nil
}

// splitFlags are shared by the split and watch commands.
type splitFlags struct {
	marketplace string
	records     string
	outDir      string
	report      string
}

func (f *splitFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.marketplace, "marketplace", "m", "", "marketplace (default: defaults.marketplace)")
	cmd.Flags().StringVarP(&f.records, "records", "r", "", "order export (csv, tsv or xlsx) with authoritative line items")
	cmd.Flags().StringVar(&f.outDir, "out", "", "output root (default: defaults.output_dir or ~/.labelsplit/outputs)")
	cmd.Flags().StringVar(&f.report, "report", "", "report format: csv, xlsx or none (default: defaults.report)")
}

// session holds the collaborators shared by every split in one command.
type session struct {
	cfg     *config.Config
	home    *home.Dir
	history *history.Store
	logger  *slog.Logger
}

func openSession(ctx context.Context, cfg *config.Config, h *home.Dir, logger *slog.Logger) (*session, error) {
	s := &session{cfg: cfg, home: h, logger: logger}
	if cfg.History.Enabled {
		path := cfg.History.Path
		if path == "" {
			path = h.HistoryPath()
		}
		store, err := history.Open(ctx, config.ResolveEnvVars(path), logger)
		if err != nil {
			return nil, err
		}
		s.history = store
	}
	return s, nil
}

func (s *session) Close() error {
	if s.history == nil {
		return nil
	}
	return s.history.Close()
}

// deps builds split dependencies from cfg, which may differ from s.cfg after
// a config reload.
func (s *session) deps(cfg *config.Config) split.Deps {
	writer := assemble.NewPDFWriter()
	deps := split.Deps{
		Registry:  marketplace.NewRegistry(cfg.Marketplaces),
		Open:      split.ExtractorOpener(extract.New(cfg.ToExtractConfig(), nil, s.logger)),
		Writer:    writer,
		Decrypter: writer,
		Logger:    s.logger,
	}
	if s.history != nil {
		deps.History = s.history
	}
	return deps
}

// request resolves flags against cfg for one source PDF.
func (s *session) request(cfg *config.Config, flags splitFlags, source, runID string) split.Request {
	mp := strings.ToLower(firstNonEmpty(flags.marketplace, cfg.Defaults.Marketplace))
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))

	outDir := s.home.RunOutputDir(mp, source)
	if root := firstNonEmpty(flags.outDir, config.ResolveEnvVars(cfg.Defaults.OutputDir)); root != "" {
		outDir = filepath.Join(root, mp, stem)
	}

	return split.Request{
		Source:      source,
		Marketplace: mp,
		RecordsPath: flags.records,
		OutputDir:   outDir,
		Report:      firstNonEmpty(flags.report, cfg.Defaults.Report),
		LogPath:     s.home.LogPath(mp, runID),
		RunID:       runID,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
