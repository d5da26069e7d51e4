package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const runKeyPrefix = "hashscan:run:"

// RedisStore implements the Store interface using Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore initializes a new RedisStore instance and verifies
// connectivity with a ping.
func NewRedisStore(cfg *Config) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		return nil, err
	}

	return &RedisStore{client: rdb}, nil
}

// Initialize sets up necessary Redis structures if needed.
func (r *RedisStore) Initialize(ctx context.Context) error {
	// Redis is schema-less; nothing to create up front.
	return nil
}

// Close releases the client connection pool.
func (r *RedisStore) Close(ctx context.Context) error {
	return r.client.Close()
}

// AddRun persists a new run summary.
func (r *RedisStore) AddRun(ctx context.Context, summary RunSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal RunSummary: %w", err)
	}
	return r.client.Set(ctx, runKeyPrefix+summary.ID, data, 0).Err()
}

// GetRun retrieves one summary by ID.
func (r *RedisStore) GetRun(ctx context.Context, id string) (RunSummary, error) {
	val, err := r.client.Get(ctx, runKeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return RunSummary{}, ErrRunNotFound
	}
	if err != nil {
		return RunSummary{}, err
	}

	var summary RunSummary
	if err := json.Unmarshal([]byte(val), &summary); err != nil {
		return RunSummary{}, fmt.Errorf("failed to unmarshal run summary: %w", err)
	}
	return summary, nil
}

// LoadRuns retrieves all summaries, newest first.
func (r *RedisStore) LoadRuns(ctx context.Context) ([]RunSummary, error) {
	var runs []RunSummary

	iter := r.client.Scan(ctx, 0, runKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		val, err := r.client.Get(ctx, iter.Val()).Result()
		if err != nil {
			continue
		}
		var summary RunSummary
		if err := json.Unmarshal([]byte(val), &summary); err != nil {
			continue
		}
		runs = append(runs, summary)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	sortRuns(runs)
	return runs, nil
}

// LoadRunsPaginated retrieves one page of summaries and the total
// count after filtering.
func (r *RedisStore) LoadRunsPaginated(ctx context.Context, page, perPage int, kind *RunKind) ([]RunSummary, int, error) {
	runs, err := r.LoadRuns(ctx)
	if err != nil {
		return nil, 0, err
	}
	filtered := filterByKind(runs, kind)
	return paginate(filtered, page, perPage), len(filtered), nil
}

// GetStats aggregates the stored history.
func (r *RedisStore) GetStats(ctx context.Context) (Stats, error) {
	runs, err := r.LoadRuns(ctx)
	if err != nil {
		return Stats{}, err
	}
	return aggregate(runs), nil
}
