package memstore

import (
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"sort"
	"time"
)

var Logger = logger.GetLogger("memstore")

// entry is one value of the store with an optional expiry
type entry struct {
	value     string
	expiresAt time.Time // zero = never
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// --------------------------------------------------------------------------
// Store
// --------------------------------------------------------------------------

// Store is an in-process key value store shared by any number of connections.
// All operations are atomic per key. Expired entries are removed lazily on access.
type Store struct {
	data *xsync.MapOf[string, entry]
	now  func() time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		data: xsync.NewMapOf[string, entry](),
		now:  time.Now,
	}
}

// Get returns the value for key
func (s *Store) Get(key string) (string, bool) {
	e, ok := s.data.Load(key)
	if !ok {
		return "", false
	}
	if e.expired(s.now()) {
		s.expire(key)
		return "", false
	}
	return e.value, true
}

// Set stores value for key without expiry
func (s *Store) Set(key, value string) {
	s.data.Store(key, entry{value: value})
}

// SetIfUnset stores value for key only if the key does not exist (or is expired).
// A ttl > 0 lets the entry expire after ttl. Returns true if the value was stored.
func (s *Store) SetIfUnset(key, value string, ttl time.Duration) bool {
	now := s.now()
	stored := false
	s.data.Compute(key, func(old entry, loaded bool) (entry, bool) {
		if loaded && !old.expired(now) {
			return old, false
		}
		stored = true
		e := entry{value: value}
		if ttl > 0 {
			e.expiresAt = now.Add(ttl)
		}
		return e, false
	})
	return stored
}

// Delete removes key and returns true if it existed
func (s *Store) Delete(key string) bool {
	e, ok := s.data.LoadAndDelete(key)
	return ok && !e.expired(s.now())
}

// CompareAndDelete removes key only if its current value equals value
func (s *Store) CompareAndDelete(key, value string) bool {
	now := s.now()
	deleted := false
	s.data.Compute(key, func(old entry, loaded bool) (entry, bool) {
		if !loaded {
			return old, true
		}
		if old.expired(now) {
			return old, true
		}
		if old.value != value {
			return old, false
		}
		deleted = true
		return old, true
	})
	return deleted
}

// expire removes key if it is still expired
func (s *Store) expire(key string) {
	now := s.now()
	s.data.Compute(key, func(old entry, loaded bool) (entry, bool) {
		return old, !loaded || old.expired(now)
	})
}

// Len returns the number of entries including not yet removed expired ones
func (s *Store) Len() int {
	return s.data.Size()
}

// Snapshot returns a copy of all live entries
func (s *Store) Snapshot() map[string]string {
	now := s.now()
	out := make(map[string]string, s.data.Size())
	s.data.Range(func(key string, e entry) bool {
		if !e.expired(now) {
			out[key] = e.value
		}
		return true
	})
	return out
}

// Keys returns the sorted keys of all live entries
func (s *Store) Keys() []string {
	snapshot := s.Snapshot()
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
