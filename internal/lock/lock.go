// Package lock provides the named critical section the availability sweep
// runs in. The local implementation serializes sweeps inside one process;
// the Redis implementation serializes them across instances.
package lock

import (
	"context"
	"errors"
)

// ErrLockNotAcquired is returned when the context ends before the lock is
// obtained.
var ErrLockNotAcquired = errors.New("lock not acquired")

// Lock represents an acquired lock.
type Lock interface {
	// Unlock releases the lock. Releasing a lock that already expired is not
	// an error.
	Unlock(ctx context.Context) error
}

// Locker acquires named locks. Lock blocks until the lock is held or ctx is
// done, in which case it returns an error wrapping ErrLockNotAcquired.
type Locker interface {
	Lock(ctx context.Context, name string) (Lock, error)
}
