package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "sub", "history.db"), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func run(id, marketplace string, at time.Time) Run {
	return Run{
		ID:          id,
		Marketplace: marketplace,
		Source:      "/in/" + id + ".pdf",
		Pages:       4,
		Orders:      2,
		StartedAt:   at,
		FinishedAt:  at.Add(time.Second),
	}
}

func TestRecordAndList(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := s.RecordRun(ctx, run("r1", "amazon", base), []Order{{Key: "A", Pages: 2, Items: 1, Output: "/out/Order_A.pdf"}}); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	if err := s.RecordRun(ctx, run("r2", "amazon", base.Add(time.Hour)), nil); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != "r2" || runs[1].ID != "r1" {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	if !runs[1].StartedAt.Equal(base) {
		t.Errorf("started_at = %v, want %v", runs[1].StartedAt, base)
	}

	limited, err := s.ListRuns(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Errorf("expected 1 run, got %d", len(limited))
	}
}

func TestSeenOrders(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := s.RecordRun(ctx, run("r1", "amazon", base), []Order{{Key: "A"}, {Key: "B"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordRun(ctx, run("r2", "amazon", base.Add(time.Hour)), []Order{{Key: "B"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordRun(ctx, run("r3", "flipkart", base), []Order{{Key: "C"}}); err != nil {
		t.Fatal(err)
	}

	seen, err := s.SeenOrders(ctx, "amazon", []string{"A", "B", "C", "D"})
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != 2 {
		t.Fatalf("expected 2 seen orders, got %v", seen)
	}
	if seen["A"] != "r1" || seen["B"] != "r2" {
		t.Errorf("unexpected runs: %v", seen)
	}

	empty, err := s.SeenOrders(ctx, "amazon", nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("got %v, %v for no keys", empty, err)
	}
}

func TestDuplicateRunRejected(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	r := run("r1", "amazon", time.Now())

	if err := s.RecordRun(ctx, r, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordRun(ctx, r, nil); err == nil {
		t.Error("expected error for duplicate run id")
	}
}
