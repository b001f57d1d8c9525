package lockmgr

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dShard/lib/executor"
	"sync"
	"time"
)

var ErrLockHeld = errors.New("lockmgr: lock is held by another owner")

// JobLock is a first unit callback for the executor. It acquires a lock before the very
// first unit of an execution runs and then delegates to the wrapped callback. The lock is
// held until Release is called.
type JobLock[C, T any] struct {
	mgr     ILockManager
	key     string
	timeout time.Duration
	next    executor.Callback[C, T]

	mu      sync.Mutex
	ownerID string
}

// NewJobLock creates a job lock for key wrapping next
func NewJobLock[C, T any](mgr ILockManager, key string, timeout time.Duration, next executor.Callback[C, T]) *JobLock[C, T] {
	return &JobLock[C, T]{
		mgr:     mgr,
		key:     key,
		timeout: timeout,
		next:    next,
	}
}

// Execute acquires the lock and runs unit with the wrapped callback.
// If the lock is held, ErrLockHeld is returned and the unit does not run.
func (l *JobLock[C, T]) Execute(ctx context.Context, unit executor.ExecutionUnit, conn C) (T, error) {
	var zero T

	l.mu.Lock()
	if l.ownerID == "" {
		ok, ownerID, err := l.mgr.AcquireLock(l.key, l.timeout)
		if err != nil {
			l.mu.Unlock()
			return zero, err
		}
		if !ok {
			l.mu.Unlock()
			return zero, fmt.Errorf("%w: %s", ErrLockHeld, l.key)
		}
		l.ownerID = ownerID
	}
	l.mu.Unlock()

	return l.next.Execute(ctx, unit, conn)
}

// Held returns true while the lock is held by this job
func (l *JobLock[C, T]) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ownerID != ""
}

// Release releases the lock. Releasing a lock that was never acquired has no effect.
func (l *JobLock[C, T]) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ownerID == "" {
		return nil
	}

	ok, err := l.mgr.ReleaseLock(l.key, l.ownerID)
	if err != nil {
		return err
	}
	if !ok {
		Logger.Warningf("lock %s was taken over before it was released", l.key)
	}
	l.ownerID = ""
	return nil
}
