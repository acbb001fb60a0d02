package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jeffreymoya/photoeditor-sub011/internal/repository"
)

var _ repository.DedupeStore = (*redisDedupe)(nil)

const (
	lockKeyPrefix = "photoeditor:lock:"
	lockTTL       = 10 * time.Minute
)

type redisDedupe struct {
	client *goredis.Client
}

// NewRedisDedupeStore creates a Redis-backed delivery dedupe store using SETNX.
func NewRedisDedupeStore(client *goredis.Client) repository.DedupeStore {
	return &redisDedupe{client: client}
}

// Acquire uses Redis SETNX to atomically take the processing lock.
func (r *redisDedupe) Acquire(ctx context.Context, jobID uuid.UUID) (bool, error) {
	key := lockKeyPrefix + jobID.String()
	ok, err := r.client.SetNX(ctx, key, time.Now().Unix(), lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis: acquire lock: %w", err)
	}
	return ok, nil
}

// Release refreshes the TTL so the lock blocks late duplicates and then
// expires on its own.
func (r *redisDedupe) Release(ctx context.Context, jobID uuid.UUID) error {
	key := lockKeyPrefix + jobID.String()
	return r.client.Expire(ctx, key, lockTTL).Err()
}

// Forget deletes the lock so a redelivery can take another run at the job.
func (r *redisDedupe) Forget(ctx context.Context, jobID uuid.UUID) error {
	key := lockKeyPrefix + jobID.String()
	return r.client.Del(ctx, key).Err()
}
