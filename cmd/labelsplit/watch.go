package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/labelsplit/internal/config"
	"github.com/jackzampolin/labelsplit/internal/output"
	"github.com/jackzampolin/labelsplit/internal/split"
	"github.com/jackzampolin/labelsplit/internal/watch"
)

var (
	watchOpts watchFlags
)

type watchFlags struct {
	splitFlags
	dir      string
	existing bool
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Split label PDFs as they are dropped into the inbox",
	Long: `Watch the inbox directory and split every PDF that lands in it.

A file is picked up once it has not been written to for watch.debounce_ms.
The config file is reloaded on change; the next file uses the new settings.

Examples:
  labelsplit watch -m amazon
  labelsplit watch --dir /srv/labels -m meesho -r /srv/labels/orders.csv
  labelsplit watch --existing          # also split PDFs already in the inbox`,
	Args: cobra.NoArgs,
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

		var mu sync.Mutex
		current := mgr.Get()
		if mgr.ConfigFile() != "" {
			mgr.OnChange(func(cfg *config.Config) {
				mu.Lock()
				current = cfg
				mu.Unlock()
				logger.Info("config reloaded", "file", mgr.ConfigFile())
			})
			mgr.WatchConfig()
		}
		snapshot := func() *config.Config {
			mu.Lock()
			defer mu.Unlock()
			return current
		}

		cfg := snapshot()
		dir := firstNonEmpty(watchOpts.dir, config.ResolveEnvVars(cfg.Watch.Dir), h.InboxDir())

		s, err := openSession(ctx, cfg, h, logger)
		if err != nil {
			return err
		}
		defer s.Close()

		w, err := watch.New(watch.Config{
			Dir:         dir,
			Debounce:    time.Duration(cfg.Watch.DebounceMS) * time.Millisecond,
			InitialScan: watchOpts.existing,
		}, logger)
		if err != nil {
			return err
		}

		return serveInbox(ctx, w, func(ctx context.Context, src string) error {
			cfg := snapshot()
			req := s.request(cfg, watchOpts.splitFlags, src, uuid.NewString())
			res, err := split.Run(ctx, s.deps(cfg), req)
			if err != nil {
				logger.Error("split failed", "source", src, "error", err)
				return nil
			}
			return output.Print(res)
		})
	},
}

type inbox interface {
	Run(ctx context.Context) error
	Files() <-chan string
}

// serveInbox runs w and hands every settled file to handle. An error from
// handle stops the watcher and is returned once it has exited.
func serveInbox(ctx context.Context, w inbox, handle func(ctx context.Context, src string) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	for src := range w.Files() {
		if err := handle(ctx, src); err != nil {
			cancel()
			<-errCh
			return err
		}
	}
	return <-errCh
}

func init() {
	watchOpts.register(watchCmd)
	watchCmd.Flags().StringVar(&watchOpts.dir, "dir", "", "inbox directory (default: watch.dir or ~/.labelsplit/inbox)")
	watchCmd.Flags().BoolVar(&watchOpts.existing, "existing", false, "split PDFs already in the inbox at start")
	rootCmd.AddCommand(watchCmd)
}
