package scanner

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/y0ug/hashscan/internal/models"
)

// DefaultConcurrency bounds the hashing worker pool when the caller
// does not size it explicitly.
const DefaultConcurrency = 4

// ScanOptions mirrors the flags of the signature computation entry
// point.
type ScanOptions struct {
	Recurse                bool
	IncludeHidden          bool
	IncludeVersionData     bool
	IncludeCertificateData bool
	// IncludeRootPath populates SignatureRecord.FullPath. Disabled by
	// default so exported rows cannot disclose the search root.
	IncludeRootPath bool
}

// RunStats is the end-of-run accounting snapshot for one invocation.
type RunStats struct {
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	FilesProcessed int       `json:"files_processed"`
	FilesSkipped   int       `json:"files_skipped"`
}

// Elapsed returns the wall-clock duration of the run.
func (s RunStats) Elapsed() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// AveragePerFile returns the mean hashing duration per processed file,
// zero when nothing was processed.
func (s RunStats) AveragePerFile() time.Duration {
	if s.FilesProcessed == 0 {
		return 0
	}
	return s.Elapsed() / time.Duration(s.FilesProcessed)
}

// ScanResult is what one ComputeSignatures invocation produced.
// Partial is set when cancellation stopped the run before every
// enumerated file was hashed; Records then holds everything finished
// up to that point.
type ScanResult struct {
	Records []models.SignatureRecord `json:"records"`
	Stats   RunStats                 `json:"stats"`
	Partial bool                     `json:"partial"`
}

// runCounters is the run-scoped mutable state shared by hashing
// workers. It replaces ambient globals: one instance per invocation,
// folded into the RunStats snapshot at the end.
type runCounters struct {
	mu        sync.Mutex
	processed int
	skipped   int
}

func (c *runCounters) fileProcessed() {
	c.mu.Lock()
	c.processed++
	c.mu.Unlock()
}

func (c *runCounters) fileSkipped() {
	c.mu.Lock()
	c.skipped++
	c.mu.Unlock()
}

func (c *runCounters) snapshot() (processed, skipped int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processed, c.skipped
}

// Scanner computes file signatures under search roots.
type Scanner struct {
	Enumerator   Enumerator
	Versions     VersionProvider
	Certificates CertificateProvider
	Logger       *logrus.Logger
	// Progress receives per-root completion updates; nil logs them at
	// debug level.
	Progress ProgressFunc

	sem *semaphore.Weighted
}

// NewScanner initializes a Scanner with a bounded hashing pool.
func NewScanner(enumerator Enumerator, logger *logrus.Logger, maxConcurrency int64) *Scanner {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if enumerator == nil {
		enumerator = NewWalker(logger)
	}
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultConcurrency
	}
	return &Scanner{
		Enumerator:   enumerator,
		Versions:     noopMetadata{},
		Certificates: noopMetadata{},
		Logger:       logger,
		sem:          semaphore.NewWeighted(maxConcurrency),
	}
}

// ComputeSignatures hashes every eligible file under the given paths
// through all supported algorithms in a single read pass per file.
// Unreadable and zero-length entries are skipped with a logged
// warning. Only configuration-level problems (no valid path at all)
// return an error; cancellation yields a partial result instead.
func (s *Scanner) ComputeSignatures(ctx context.Context, paths []string, opts ScanOptions) (*ScanResult, error) {
	result := &ScanResult{}
	result.Stats.StartedAt = time.Now().UTC()
	counters := &runCounters{}

	enumOpts := EnumerateOptions{Recurse: opts.Recurse, IncludeHidden: opts.IncludeHidden}

	validPaths := 0
	for _, root := range paths {
		if ctx.Err() != nil {
			result.Partial = true
			break
		}

		entries, err := s.Enumerator.Enumerate(ctx, root, enumOpts)
		if err != nil {
			if ctx.Err() != nil {
				result.Partial = true
				break
			}
			s.Logger.WithError(err).WithField("path", root).Warn("Skipping path that failed the existence check")
			continue
		}
		validPaths++

		records := s.scanRoot(ctx, root, entries, opts, counters)
		result.Records = append(result.Records, records...)
		if ctx.Err() != nil {
			result.Partial = true
			break
		}
	}

	if validPaths == 0 && !result.Partial {
		return nil, fmt.Errorf("no valid paths to scan")
	}

	result.Stats.FinishedAt = time.Now().UTC()
	result.Stats.FilesProcessed, result.Stats.FilesSkipped = counters.snapshot()

	s.Logger.WithFields(logrus.Fields{
		"files_processed": result.Stats.FilesProcessed,
		"files_skipped":   result.Stats.FilesSkipped,
		"elapsed":         result.Stats.Elapsed().String(),
		"avg_per_file":    result.Stats.AveragePerFile().String(),
		"partial":         result.Partial,
	}).Info("Signature computation finished")

	return result, nil
}

// scanRoot hashes one root's entries through the worker pool, feeding
// a single collector so record assembly needs no further locking.
func (s *Scanner) scanRoot(ctx context.Context, root string, entries []FileEntry, opts ScanOptions, counters *runCounters) []models.SignatureRecord {
	hashable := make([]FileEntry, 0, len(entries))
	var totalBytes uint64
	for _, entry := range entries {
		if entry.IsDir {
			continue
		}
		if entry.SizeBytes == 0 {
			s.Logger.WithField("path", entry.FullPath).Warn("Skipping zero-length file")
			counters.fileSkipped()
			continue
		}
		hashable = append(hashable, entry)
		totalBytes += entry.SizeBytes
	}

	estimator := NewProgressEstimator(root, totalBytes, s.progressSink())

	results := make(chan models.SignatureRecord)
	collected := make(chan []models.SignatureRecord)
	go func() {
		var records []models.SignatureRecord
		for record := range results {
			records = append(records, record)
		}
		collected <- records
	}()

	var wg sync.WaitGroup
	for _, entry := range hashable {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			// Cancellation: stop launching new reads, let in-flight
			// workers finish cleanly.
			break
		}
		wg.Add(1)
		go func(entry FileEntry) {
			defer wg.Done()
			defer s.sem.Release(1)
			if record, ok := s.processFile(entry, root, opts, estimator, counters); ok {
				results <- record
			}
		}(entry)
	}
	wg.Wait()
	close(results)
	return <-collected
}

// processFile is the per-file pipeline: open, digest in one pass,
// assemble the record, attach optional metadata blocks.
func (s *Scanner) processFile(entry FileEntry, root string, opts ScanOptions, estimator *ProgressEstimator, counters *runCounters) (models.SignatureRecord, bool) {
	file, err := os.Open(entry.FullPath)
	if err != nil {
		s.Logger.WithError(err).WithField("path", entry.FullPath).Warn("Skipping unreadable file")
		counters.fileSkipped()
		estimator.FileSkipped(entry.SizeBytes)
		return models.SignatureRecord{}, false
	}

	digests, err := ComputeDigests(file, models.Algorithms)
	file.Close()
	if err != nil {
		s.Logger.WithError(err).WithField("path", entry.FullPath).Warn("Hash computation failed, skipping file")
		counters.fileSkipped()
		estimator.FileSkipped(entry.SizeBytes)
		return models.SignatureRecord{}, false
	}
	estimator.DigestPhase(entry.SizeBytes, len(models.Algorithms))

	record := s.buildRecord(entry, root, digests, opts)
	estimator.MetadataPhase(entry.SizeBytes)
	counters.fileProcessed()
	return record, true
}

// buildRecord assembles a SignatureRecord from file attributes, the
// digest set, and optional metadata blocks from external providers.
func (s *Scanner) buildRecord(entry FileEntry, root string, digests map[models.Algorithm]string, opts ScanOptions) models.SignatureRecord {
	record := models.SignatureRecord{
		Filename:       strings.ToLower(entry.Name),
		RelativePath:   RelativeToRoot(entry.FullPath, root),
		SizeBytes:      entry.SizeBytes,
		CreatedUTC:     entry.CreatedUTC,
		ModifiedUTC:    entry.ModifiedUTC,
		Digests:        digests,
		EntryTimestamp: time.Now().UTC(),
	}
	if opts.IncludeRootPath {
		record.FullPath = entry.FullPath
	}

	if opts.IncludeVersionData && s.Versions != nil {
		version, err := s.Versions.VersionInfo(entry.FullPath)
		if err != nil {
			s.Logger.WithError(err).WithField("path", entry.FullPath).Warn("Version data unavailable")
		} else {
			record.Version = version
		}
	}
	if opts.IncludeCertificateData && s.Certificates != nil {
		certificate, err := s.Certificates.CertificateInfo(entry.FullPath)
		if err != nil {
			s.Logger.WithError(err).WithField("path", entry.FullPath).Warn("Certificate data unavailable")
		} else {
			record.Certificate = certificate
		}
	}
	return record
}

func (s *Scanner) progressSink() ProgressFunc {
	if s.Progress != nil {
		return s.Progress
	}
	return func(root string, percent float64) {
		s.Logger.WithFields(logrus.Fields{
			"root":    root,
			"percent": fmt.Sprintf("%.1f", percent),
		}).Debug("Scan progress")
	}
}
