package driven

import (
	"context"
	"time"
)

// DistributedLock coordinates periodic work across service instances
// sharing one task store.
type DistributedLock interface {
	// Acquire takes the named lock for ttl. Returns false if another holder has it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)

	// Release drops the lock if this instance holds it.
	Release(ctx context.Context, name string) error
}
