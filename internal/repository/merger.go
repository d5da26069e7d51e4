package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/y0ug/hashscan/internal/models"
)

// LookupOptions selects which digests of each signature are sent to
// the repository. An empty algorithm list falls back to the default
// set.
type LookupOptions struct {
	Algorithms []models.Algorithm
}

// LookupResult is the merged outcome of one repository run. Records
// holds the matched rows first, then the no-match rows, each group in
// input order. Partial is set when cancellation prevented some pairs
// from being queried.
type LookupResult struct {
	Records []models.MergedRecord `json:"records"`
	Partial bool                  `json:"partial"`
}

// lookupPair is one (signature, algorithm) unit of repository work.
type lookupPair struct {
	signature models.SignatureRecord
	algorithm models.Algorithm
	digest    string
}

// Merger runs repository lookups for signature sets and merges the
// responses into one row stream.
type Merger struct {
	Fetcher Fetcher
	Logger  *logrus.Logger

	sem *semaphore.Weighted
}

// NewMerger initializes a Merger with a bounded request pool.
func NewMerger(fetcher Fetcher, logger *logrus.Logger, maxConcurrency int64) *Merger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	return &Merger{
		Fetcher: fetcher,
		Logger:  logger,
		sem:     semaphore.NewWeighted(maxConcurrency),
	}
}

// Lookup queries the repository once per (signature, algorithm) pair
// that carries a digest and merges the responses. Each queried pair
// contributes either one row per repository match or a single
// no-match row; pairs without a digest contribute nothing. Lookup
// failures degrade to no-match rows and never abort the run.
func (m *Merger) Lookup(ctx context.Context, signatures []models.SignatureRecord, opts LookupOptions) (*LookupResult, error) {
	if m.Fetcher == nil {
		return nil, fmt.Errorf("no repository client configured")
	}
	algorithms := opts.Algorithms
	if len(algorithms) == 0 {
		algorithms = DefaultAlgorithms()
	}

	var pairs []lookupPair
	for _, signature := range signatures {
		for _, algo := range algorithms {
			digest := signature.Digest(algo)
			if digest == "" {
				m.Logger.WithFields(logrus.Fields{
					"filename":  signature.Filename,
					"algorithm": algo,
				}).Debug("No digest for repository lookup, skipping pair")
				continue
			}
			pairs = append(pairs, lookupPair{signature: signature, algorithm: algo, digest: digest})
		}
	}

	result := &LookupResult{}

	// Slot per pair keeps response handling lock-free and the final
	// ordering independent of request completion order.
	rows := make([][]models.MergedRecord, len(pairs))
	var wg sync.WaitGroup
	for i, pair := range pairs {
		if err := m.sem.Acquire(ctx, 1); err != nil {
			result.Partial = true
			break
		}
		wg.Add(1)
		go func(i int, pair lookupPair) {
			defer wg.Done()
			defer m.sem.Release(1)
			rows[i] = m.lookupPair(ctx, pair)
		}(i, pair)
	}
	wg.Wait()

	var matched, unmatched []models.MergedRecord
	for _, pairRows := range rows {
		for _, row := range pairRows {
			if row.Matched {
				matched = append(matched, row)
			} else {
				unmatched = append(unmatched, row)
			}
		}
	}
	result.Records = append(matched, unmatched...)

	m.Logger.WithFields(logrus.Fields{
		"pairs":    len(pairs),
		"matched":  len(matched),
		"no_match": len(unmatched),
		"partial":  result.Partial,
	}).Info("Repository lookup finished")

	return result, nil
}

// lookupPair resolves a single pair into its merged rows.
func (m *Merger) lookupPair(ctx context.Context, pair lookupPair) []models.MergedRecord {
	matches, err := m.Fetcher.FetchMatches(ctx, pair.digest)
	if err != nil {
		m.Logger.WithError(err).WithFields(logrus.Fields{
			"filename":  pair.signature.Filename,
			"algorithm": pair.algorithm,
		}).Warn("Repository lookup failed, recording a no-match row")
		return []models.MergedRecord{noMatchRow(pair)}
	}
	if len(matches) == 0 {
		return []models.MergedRecord{noMatchRow(pair)}
	}

	merged := make([]models.MergedRecord, 0, len(matches))
	for _, attributes := range matches {
		merged = append(merged, models.MergedRecord{
			Signature:  pair.signature,
			Algorithm:  pair.algorithm,
			Matched:    true,
			Repository: attributes,
		})
	}
	return merged
}

func noMatchRow(pair lookupPair) models.MergedRecord {
	return models.MergedRecord{
		Signature: pair.signature,
		Algorithm: pair.algorithm,
		Matched:   false,
	}
}
