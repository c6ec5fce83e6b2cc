package main

import (
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/labelsplit/internal/history"
	"github.com/jackzampolin/labelsplit/internal/output"
)

var historyLimit int

type runList []history.Run

func (l runList) Header() []string {
	return []string{"id", "marketplace", "source", "pages", "orders", "unassigned", "warnings", "started"}
}

func (l runList) Rows() [][]string {
	rows := make([][]string, len(l))
	for i, r := range l {
		rows[i] = []string{
			r.ID,
			r.Marketplace,
			r.Source,
			strconv.Itoa(r.Pages),
			strconv.Itoa(r.Orders),
			strconv.Itoa(r.Unassigned),
			strconv.Itoa(r.Warnings),
			r.StartedAt.Local().Format(time.DateTime),
		}
	}
	return rows
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent split runs",
	Long: `List recent split runs from the run ledger, newest first.

The ledger is also used to warn when an order in a new batch was already
split by an earlier run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, err := getHome()
		if err != nil {
			return err
		}
		mgr, err := loadConfig(h)
		if err != nil {
			return err
		}
		cfg := mgr.Get()
		if !cfg.History.Enabled {
			return errors.New("history is disabled (history.enabled = false)")
		}

		s, err := openSession(ctx, cfg, h, slog.Default())
		if err != nil {
			return err
		}
		defer s.Close()

		runs, err := s.history.ListRuns(ctx, historyLimit)
		if err != nil {
			return err
		}
		return output.Print(runList(runs))
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show")
	rootCmd.AddCommand(historyCmd)
}
