package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	t.Cleanup(func() { store.Close(context.Background()) })
	return store
}

func sampleRun(kind RunKind, start time.Time) RunSummary {
	return RunSummary{
		ID:             NewRunID(kind, start),
		Kind:           kind,
		Roots:          []string{"/scan"},
		StartedAt:      start,
		FinishedAt:     start.Add(time.Minute),
		FilesProcessed: 10,
		FilesSkipped:   1,
	}
}

func TestBoltStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := sampleRun(RunScan, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	run.Partial = true
	if err := store.AddRun(ctx, run); err != nil {
		t.Fatalf("AddRun: %v", err)
	}

	got, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Kind != RunScan || got.FilesProcessed != 10 || !got.Partial {
		t.Errorf("round-tripped summary = %+v", got)
	}
	if !got.StartedAt.Equal(run.StartedAt) {
		t.Errorf("StartedAt = %s, want %s", got.StartedAt, run.StartedAt)
	}
}

func TestBoltStoreGetRunNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.GetRun(context.Background(), "nope"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestBoltStoreLoadRunsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := store.AddRun(ctx, sampleRun(RunScan, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("AddRun %d: %v", i, err)
		}
	}

	runs, err := store.LoadRuns(ctx)
	if err != nil {
		t.Fatalf("LoadRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	for i := 1; i < len(runs); i++ {
		if runs[i].StartedAt.After(runs[i-1].StartedAt) {
			t.Errorf("runs not newest first: %s before %s", runs[i-1].StartedAt, runs[i].StartedAt)
		}
	}
}

func TestBoltStorePaginationAndFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	kinds := []RunKind{RunScan, RunVerify, RunScan, RunLookup, RunScan}
	for i, kind := range kinds {
		if err := store.AddRun(ctx, sampleRun(kind, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("AddRun %d: %v", i, err)
		}
	}

	scan := RunScan
	page, total, err := store.LoadRunsPaginated(ctx, 1, 2, &scan)
	if err != nil {
		t.Fatalf("LoadRunsPaginated: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3 scan runs", total)
	}
	if len(page) != 2 {
		t.Errorf("page size = %d, want 2", len(page))
	}
	for _, run := range page {
		if run.Kind != RunScan {
			t.Errorf("filtered page contains kind %s", run.Kind)
		}
	}

	page2, _, err := store.LoadRunsPaginated(ctx, 2, 2, &scan)
	if err != nil {
		t.Fatalf("LoadRunsPaginated page 2: %v", err)
	}
	if len(page2) != 1 {
		t.Errorf("page 2 size = %d, want 1", len(page2))
	}

	empty, _, err := store.LoadRunsPaginated(ctx, 9, 2, &scan)
	if err != nil {
		t.Fatalf("LoadRunsPaginated page 9: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("out-of-range page should be empty, got %d", len(empty))
	}
}

func TestBoltStoreStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	scan := sampleRun(RunScan, base)
	verify := sampleRun(RunVerify, base.Add(time.Hour))
	verify.Mismatched = 2
	for _, run := range []RunSummary{scan, verify} {
		if err := store.AddRun(ctx, run); err != nil {
			t.Fatalf("AddRun: %v", err)
		}
	}

	stats, err := store.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.TotalRuns != 2 {
		t.Errorf("TotalRuns = %d, want 2", stats.TotalRuns)
	}
	if stats.RunsByKind[RunScan] != 1 || stats.RunsByKind[RunVerify] != 1 {
		t.Errorf("RunsByKind = %v", stats.RunsByKind)
	}
	if stats.TotalProcessed != 20 {
		t.Errorf("TotalProcessed = %d, want 20", stats.TotalProcessed)
	}
	if stats.TotalMismatched != 2 {
		t.Errorf("TotalMismatched = %d, want 2", stats.TotalMismatched)
	}
	if !stats.LastRunAt.Equal(verify.FinishedAt) {
		t.Errorf("LastRunAt = %s, want %s", stats.LastRunAt, verify.FinishedAt)
	}
}

func TestLoadConfigDisabledWhenUnset(t *testing.T) {
	t.Setenv("HISTORY_TYPE", "")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg != nil {
		t.Errorf("expected nil config when HISTORY_TYPE is unset, got %+v", cfg)
	}
}

func TestLoadConfigBoltRequiresPath(t *testing.T) {
	t.Setenv("HISTORY_TYPE", "bolt")
	t.Setenv("HISTORY_PATH", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected an error when HISTORY_PATH is missing")
	}

	t.Setenv("HISTORY_PATH", "/tmp/history.db")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Type != "bolt" || cfg.Path != "/tmp/history.db" {
		t.Errorf("config = %+v", cfg)
	}
}
