package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*Lock)(nil)

const lockPrefix = "docqa:lock:"

func lockKey(name string) string {
	return lockPrefix + name
}

// Lock lets docqa instances that share a Redis take turns at periodic
// work such as task cleanup. The key holds the owner ID so an instance
// never releases a lock another one re-acquired after expiry.
type Lock struct {
	client *redis.Client
	owner  string
}

// NewLock creates a lock handle owned by this process
func NewLock(client *redis.Client) *Lock {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "unknown"
	}
	return &Lock{
		client: client,
		owner:  fmt.Sprintf("docqa/%s/%d/%s", hostname, os.Getpid(), ulid.Make()),
	}
}

// Acquire takes the named lock for ttl. It returns false without error
// when another owner holds it.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, fmt.Errorf("%w: lock ttl must be positive", domain.ErrInvalidInput)
	}
	err := l.client.SetArgs(ctx, lockKey(name), l.owner, redis.SetArgs{Mode: "NX", TTL: ttl}).Err()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	return true, nil
}

// Release deletes the lock if this owner still holds it. Releasing an
// expired or foreign lock is a no-op.
func (l *Lock) Release(ctx context.Context, name string) error {
	key := lockKey(name)
	err := l.client.Watch(ctx, func(tx *redis.Tx) error {
		holder, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if holder != l.owner {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}, key)

	// the key changed under WATCH, so it is no longer ours
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

// OwnerID identifies this process in lock values
func (l *Lock) OwnerID() string {
	return l.owner
}
