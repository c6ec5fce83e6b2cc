// Package history keeps a local ledger of split runs so that orders already
// split by an earlier batch can be flagged.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	marketplace  TEXT NOT NULL,
	source       TEXT NOT NULL,
	pages        INTEGER NOT NULL,
	orders       INTEGER NOT NULL,
	unassigned   INTEGER NOT NULL,
	warnings     INTEGER NOT NULL,
	started_at   TIMESTAMP NOT NULL,
	finished_at  TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS orders (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	order_key   TEXT NOT NULL,
	marketplace TEXT NOT NULL,
	pages       INTEGER NOT NULL,
	items       INTEGER NOT NULL,
	output      TEXT NOT NULL,
	PRIMARY KEY (run_id, order_key)
);
CREATE INDEX IF NOT EXISTS orders_key ON orders (marketplace, order_key);
`

// Run is one recorded split run.
type Run struct {
	ID          string    `json:"id" yaml:"id"`
	Marketplace string    `json:"marketplace" yaml:"marketplace"`
	Source      string    `json:"source" yaml:"source"`
	Pages       int       `json:"pages" yaml:"pages"`
	Orders      int       `json:"orders" yaml:"orders"`
	Unassigned  int       `json:"unassigned" yaml:"unassigned"`
	Warnings    int       `json:"warnings" yaml:"warnings"`
	StartedAt   time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time `json:"finished_at" yaml:"finished_at"`
}

// Order is one order written by a run.
type Order struct {
	Key    string
	Pages  int
	Items  int
	Output string
}

// Store is the sqlite-backed ledger.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens or creates the ledger at path.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate history db: %w", err)
	}

	logger.Debug("history db opened", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun stores a run and its orders in one transaction.
func (s *Store) RecordRun(ctx context.Context, run Run, orders []Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, marketplace, source, pages, orders, unassigned, warnings, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Marketplace, run.Source, run.Pages, run.Orders, run.Unassigned, run.Warnings,
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO orders (run_id, order_key, marketplace, pages, items, output) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare order insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range orders {
		if _, err := stmt.ExecContext(ctx, run.ID, o.Key, run.Marketplace, o.Pages, o.Items, o.Output); err != nil {
			return fmt.Errorf("failed to insert order %s: %w", o.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	s.logger.Debug("run recorded", "run_id", run.ID, "orders", len(orders))
	return nil
}

// SeenOrders returns, for each of keys already split by an earlier run of the
// marketplace, the id of the most recent such run.
func (s *Store) SeenOrders(ctx context.Context, marketplace string, keys []string) (map[string]string, error) {
	seen := make(map[string]string)
	if len(keys) == 0 {
		return seen, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, 0, len(keys)+1)
	args = append(args, marketplace)
	for _, k := range keys {
		args = append(args, k)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT o.order_key, o.run_id FROM orders o JOIN runs r ON r.id = o.run_id
		 WHERE o.marketplace = ? AND o.order_key IN (`+placeholders+`)
		 ORDER BY r.finished_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, runID string
		if err := rows.Scan(&key, &runID); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		seen[key] = runID
	}
	return seen, rows.Err()
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, marketplace, source, pages, orders, unassigned, warnings, started_at, finished_at
		FROM runs ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Marketplace, &r.Source, &r.Pages, &r.Orders, &r.Unassigned,
			&r.Warnings, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
