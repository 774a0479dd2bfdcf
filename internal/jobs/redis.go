package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/visionaid/internal/conversion"
)

const (
	jobKeyPrefix = "visionaid:job:"
	maxTxRetries = 10
)

// RedisTracker keeps jobs in Redis so the API and the queue worker share
// them. Every record expires after the TTL.
type RedisTracker struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisTracker(client *redis.Client, ttl time.Duration) *RedisTracker {
	return &RedisTracker{client: client, ttl: ttl, now: time.Now}
}

func jobKey(id string) string { return jobKeyPrefix + id }

func (r *RedisTracker) Submit(ctx context.Context, id string) error {
	data, err := json.Marshal(newJob(id, r.now()))
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	ok, err := r.client.SetNX(ctx, jobKey(id), data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("submit %s: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("submit %s: %w", id, ErrDuplicateJob)
	}
	return nil
}

func (r *RedisTracker) Advance(ctx context.Context, id string, progress int) error {
	return r.update(ctx, id, func(j *Job) error {
		return j.advance(progress, r.now())
	})
}

func (r *RedisTracker) Complete(ctx context.Context, id string, result conversion.Result) error {
	return r.update(ctx, id, func(j *Job) error {
		return j.complete(result, r.now())
	})
}

func (r *RedisTracker) Get(ctx context.Context, id string) (*Job, error) {
	return r.load(ctx, r.client, id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *RedisTracker) load(ctx context.Context, c getter, id string) (*Job, error) {
	data, err := c.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

// update applies fn inside an optimistic WATCH/MULTI transaction, retrying
// when another writer touched the key in between.
func (r *RedisTracker) update(ctx context.Context, id string, fn func(*Job) error) error {
	key := jobKey(id)
	txf := func(tx *redis.Tx) error {
		job, err := r.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(job); err != nil {
			return err
		}
		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("marshal job: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update %s: too much contention", id)
}
