package lockmgr

import "time"

// ILockManager defines the interface for a lock provider.
type ILockManager interface {
	// AcquireLock acquires a lock for the given key with an optional timeout (0 = no timeout).
	// Return a boolean indicating whether the lock was acquired, an owner ID, and an error if any.
	AcquireLock(key string, timeout time.Duration) (ok bool, ownerID string, err error)

	// ReleaseLock releases the lock for the given key.
	// Return a boolean indicating whether the lock was released, and an error if any.
	// The method will also return true if the lock did not exist.
	ReleaseLock(key string, ownerID string) (ok bool, err error)
}

// LockStore is the storage a lock manager works on. memstore.Store implements it.
type LockStore interface {
	Get(key string) (string, bool)
	SetIfUnset(key, value string, ttl time.Duration) bool
	CompareAndDelete(key, value string) bool
}
