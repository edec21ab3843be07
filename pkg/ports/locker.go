package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker defines the interface for distributed concurrency control.
// It lets the session manager serialize commands on one session across replicas.
type DistributedLocker interface {
	// Lock acquires the lock for key (a session ID). It blocks until the lock is
	// held or ctx is done. The returned UnlockFunc MUST be called to release it;
	// the lock expires on its own after ttl.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
