package main

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/labelsplit/internal/output"
	"github.com/jackzampolin/labelsplit/internal/split"
)

var splitOpts splitFlags

var splitCmd = &cobra.Command{
	Use:   "split <pdf|dir>...",
	Short: "Split label PDFs into one PDF per order",
	Long: `Split one or more shipping-label PDFs into one PDF per order.

Each source PDF is processed on its own, in page order. Directories
contribute their .pdf files; multi-part batches (labels-1.pdf,
labels-2.pdf, ...) run in numeric order.

Output goes to <out>/<marketplace>/<source name>/Order_<key>.pdf together
with an order_pages report. Pages that cannot be tied to any order are
written to Order_UNASSIGNED.pdf and listed in the run summary.

Examples:
  labelsplit split labels.pdf -m amazon
  labelsplit split labels.pdf -m meesho -r orders.csv
  labelsplit split ./batch -m flipkart --report xlsx -o json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := slog.Default()

		h, err := getHome()
		if err != nil {
			return err
		}
		mgr, err := loadConfig(h)
		if err != nil {
			return err
		}
		cfg := mgr.Get()

		inputs, err := split.ExpandInputs(args)
		if err != nil {
			return err
		}
		if len(inputs) == 0 {
			return fmt.Errorf("no PDF files found in %v", args)
		}

		s, err := openSession(ctx, cfg, h, logger)
		if err != nil {
			return err
		}
		defer s.Close()

		deps := s.deps(cfg)
		for _, src := range inputs {
			req := s.request(cfg, splitOpts, src, uuid.NewString())
			res, err := split.Run(ctx, deps, req)
			if err != nil {
				return fmt.Errorf("failed to split %s: %w", src, err)
			}
			if err := output.Print(res); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	splitOpts.register(splitCmd)
	rootCmd.AddCommand(splitCmd)
}
