package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker coordinates access to a session across processes, so two
// replicas never tick the same agent concurrently.
type DistributedLocker interface {
	// Lock acquires the lock for key (a session ID), waiting until it is free
	// or ctx is done. The lock expires after ttl if it is never released.
	// The returned UnlockFunc must be called to release it.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
