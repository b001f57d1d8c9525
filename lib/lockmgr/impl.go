package lockmgr

import (
	"fmt"
	"github.com/lni/dragonboat/v4/logger"
	"time"
)

var Logger = logger.GetLogger("lockmgr")

type lockMgrImpl struct {
	store LockStore
}

func NewLockManager(store LockStore) ILockManager {
	return &lockMgrImpl{
		store: store,
	}
}

func (lm *lockMgrImpl) AcquireLock(key string, timeout time.Duration) (bool, string, error) {
	// Generate owner id (256 bit random value)
	ownerID, err := generateOwnerID()
	if err != nil {
		return false, "", fmt.Errorf("failed to generate owner id: %w", err)
	}

	// Try to acquire the lock (by setting the value only if it doesn't exist)
	lm.store.SetIfUnset(key, ownerID, timeout)

	// Check if the lock was acquired
	value, found := lm.store.Get(key)

	// Return true if lock was acquired BY US
	if found && value == ownerID {
		Logger.Debugf("acquired lock %s", key)
		return true, ownerID, nil
	}
	// Return false if lock is held BY SOMEONE ELSE
	return false, "", nil
}

func (lm *lockMgrImpl) ReleaseLock(key string, ownerID string) (bool, error) {
	// Check if the lock exists
	value, ok := lm.store.Get(key)
	if !ok {
		return true, nil
	}

	// Check if the lock is owned by us
	if value != ownerID {
		return false, nil
	}

	// Release the lock, fails if the owner changed in the meantime
	released := lm.store.CompareAndDelete(key, ownerID)
	if released {
		Logger.Debugf("released lock %s", key)
	}
	return released, nil
}
