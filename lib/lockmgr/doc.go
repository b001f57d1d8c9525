// Package lockmgr implements a locking mechanism on top of a key value store
// implementing the LockStore interface (e.g. memstore.Store).
//
// The lock manager only ever stores in the provided LockStore and has no other internal
// state. Therefore it is safe to be created multiple times on the same store. As long as
// the same store is used every time, all locks will work as expected.
//
// Implementation Approach:
//
//   - Lock Acquisition: Attempts to create the key using SetIfUnset, which guarantees that
//     only one requester can create the key. The value is a randomly generated owner ID.
//
//   - Lock Verification: SetIfUnset is followed by a Get to check that the stored value
//     matches the owner ID.
//
//   - Timeouts: A lock can be acquired with a timeout after which it expires, so a crashed
//     job does not block the key forever.
//
//   - Safe Release: ReleaseLock only deletes the key if it still holds the owner ID
//     (CompareAndDelete).
//
// Job Locks:
//
//	JobLock is a first unit callback for the executor. Passed as first callback to
//	executor.Execute it takes the lock exactly once before any other unit runs. If the
//	lock is held by someone else the first unit fails and nothing else is dispatched.
//
// Usage Example:
//
//	mgr := lockmgr.NewLockManager(store)
//	jobLock := lockmgr.NewJobLock[*memstore.Conn, memstore.Result](mgr, "job:exec-1", 30*time.Second, memstore.Callback)
//	defer jobLock.Release()
//
//	results, err := executor.Execute[*memstore.Conn, memstore.Result](ctx, engine, groupCtx, jobLock, memstore.Callback, true)
package lockmgr
