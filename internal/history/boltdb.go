package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"go.etcd.io/bbolt"
)

const runsBucket = "Runs"

// BoltStore implements the Store interface using bbolt.
type BoltStore struct {
	db   *bbolt.DB
	path string
	mu   sync.RWMutex
}

// NewBoltStore opens (or creates) the history database file.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}

	store := &BoltStore{
		db:   db,
		path: path,
	}

	if err := store.Initialize(context.Background()); err != nil {
		return nil, err
	}

	return store, nil
}

// Initialize sets up the necessary buckets.
func (b *BoltStore) Initialize(ctx context.Context) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(runsBucket)); err != nil {
			return fmt.Errorf("create %s bucket: %v", runsBucket, err)
		}
		return nil
	})
}

// Close releases the underlying database file.
func (b *BoltStore) Close(ctx context.Context) error {
	return b.db.Close()
}

// AddRun persists a new run summary keyed by its ID.
func (b *BoltStore) AddRun(ctx context.Context, summary RunSummary) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal RunSummary: %w", err)
	}

	err = b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(runsBucket))
		if bucket == nil {
			return fmt.Errorf("%s bucket does not exist", runsBucket)
		}
		return bucket.Put([]byte(summary.ID), data)
	})
	if err != nil {
		return fmt.Errorf("failed to add run to BoltDB: %w", err)
	}

	return nil
}

// GetRun retrieves one summary by ID.
func (b *BoltStore) GetRun(ctx context.Context, id string) (RunSummary, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var summary RunSummary
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(runsBucket))
		if bucket == nil {
			return fmt.Errorf("%s bucket does not exist", runsBucket)
		}
		data := bucket.Get([]byte(id))
		if data == nil {
			return ErrRunNotFound
		}
		return json.Unmarshal(data, &summary)
	})
	if err != nil {
		return RunSummary{}, err
	}
	return summary, nil
}

// LoadRuns retrieves all summaries, newest first.
func (b *BoltStore) LoadRuns(ctx context.Context) ([]RunSummary, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var runs []RunSummary
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(runsBucket))
		if bucket == nil {
			return fmt.Errorf("%s bucket does not exist", runsBucket)
		}
		return bucket.ForEach(func(k, v []byte) error {
			var summary RunSummary
			if err := json.Unmarshal(v, &summary); err != nil {
				logrus.WithError(err).Warnf("Failed to unmarshal run summary %s", string(k))
				return nil // Skip invalid records
			}
			runs = append(runs, summary)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sortRuns(runs)
	return runs, nil
}

// LoadRunsPaginated retrieves one page of summaries and the total
// count after filtering.
func (b *BoltStore) LoadRunsPaginated(ctx context.Context, page, perPage int, kind *RunKind) ([]RunSummary, int, error) {
	runs, err := b.LoadRuns(ctx)
	if err != nil {
		return nil, 0, err
	}
	filtered := filterByKind(runs, kind)
	return paginate(filtered, page, perPage), len(filtered), nil
}

// GetStats aggregates the stored history.
func (b *BoltStore) GetStats(ctx context.Context) (Stats, error) {
	runs, err := b.LoadRuns(ctx)
	if err != nil {
		return Stats{}, err
	}
	return aggregate(runs), nil
}
