// Package history persists per-run accounting summaries. Summaries
// carry counters and timing only, never digests or per-file records,
// so enabling history does not turn the tool into a signature
// database.
package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// RunKind identifies which pipeline produced a run summary.
type RunKind string

const (
	RunScan   RunKind = "scan"
	RunVerify RunKind = "verify"
	RunLookup RunKind = "lookup"
)

// RunSummary is the persisted accounting of one completed run.
type RunSummary struct {
	ID             string    `json:"id"`
	Kind           RunKind   `json:"kind"`
	Roots          []string  `json:"roots,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	FilesProcessed int       `json:"files_processed"`
	FilesSkipped   int       `json:"files_skipped"`
	// Verification counters; zero for plain scans.
	Matched    int  `json:"matched"`
	Mismatched int  `json:"mismatched"`
	Missing    int  `json:"missing"`
	Partial    bool `json:"partial"`
}

// Stats aggregates the whole run history for dashboards.
type Stats struct {
	TotalRuns       int             `json:"total_runs"`
	RunsByKind      map[RunKind]int `json:"runs_by_kind"`
	LastRunAt       time.Time       `json:"last_run_at"`
	TotalProcessed  int             `json:"total_files_processed"`
	TotalMismatched int             `json:"total_mismatched"`
}

// Store defines the methods required for run summary storage.
type Store interface {
	// Initialize sets up the necessary buckets or structures.
	Initialize(ctx context.Context) error

	Close(ctx context.Context) error

	// AddRun persists a new run summary.
	AddRun(ctx context.Context, summary RunSummary) error

	// GetRun retrieves one summary by ID.
	GetRun(ctx context.Context, id string) (RunSummary, error)

	// LoadRuns retrieves all summaries, newest first.
	LoadRuns(ctx context.Context) ([]RunSummary, error)

	// LoadRunsPaginated retrieves one page of summaries and the total
	// count. A nil kind applies no filtering.
	LoadRunsPaginated(ctx context.Context, page, perPage int, kind *RunKind) ([]RunSummary, int, error)

	// GetStats aggregates the stored history.
	GetStats(ctx context.Context) (Stats, error)
}

var ErrRunNotFound = errors.New("run not found")

// NewStore builds the store selected by the configuration.
func NewStore(cfg *Config) (Store, error) {
	switch cfg.Type {
	case "bolt":
		return NewBoltStore(cfg.Path)
	case "redis":
		return NewRedisStore(cfg)
	default:
		return nil, fmt.Errorf("unsupported HISTORY_TYPE: %s", cfg.Type)
	}
}

// NewRunID derives a sortable identifier from the run's start time, so
// byte-ordered iteration comes out chronological.
func NewRunID(kind RunKind, startedAt time.Time) string {
	return fmt.Sprintf("%s-%s", startedAt.UTC().Format("20060102-150405.000000000"), kind)
}

// sortRuns orders summaries newest first.
func sortRuns(runs []RunSummary) {
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
}

// paginate slices one page out of an already sorted summary list.
func paginate(runs []RunSummary, page, perPage int) []RunSummary {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	start := (page - 1) * perPage
	if start >= len(runs) {
		return nil
	}
	end := start + perPage
	if end > len(runs) {
		end = len(runs)
	}
	return runs[start:end]
}

// filterByKind keeps only summaries of the given kind; nil keeps all.
func filterByKind(runs []RunSummary, kind *RunKind) []RunSummary {
	if kind == nil {
		return runs
	}
	filtered := make([]RunSummary, 0, len(runs))
	for _, run := range runs {
		if run.Kind == *kind {
			filtered = append(filtered, run)
		}
	}
	return filtered
}

// aggregate folds summaries into Stats.
func aggregate(runs []RunSummary) Stats {
	stats := Stats{RunsByKind: make(map[RunKind]int)}
	for _, run := range runs {
		stats.TotalRuns++
		stats.RunsByKind[run.Kind]++
		stats.TotalProcessed += run.FilesProcessed
		stats.TotalMismatched += run.Mismatched
		if run.FinishedAt.After(stats.LastRunAt) {
			stats.LastRunAt = run.FinishedAt
		}
	}
	return stats
}
