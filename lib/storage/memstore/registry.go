package memstore

import (
	"github.com/puzpuzpuz/xsync/v3"
	"sort"
	"time"
)

// Registry hands out one connection per data source id. All connections share one Store.
type Registry struct {
	store   *Store
	latency time.Duration
	conns   *xsync.MapOf[string, *Conn]
}

// NewRegistry creates a registry on store. latency is passed to every new connection.
func NewRegistry(store *Store, latency time.Duration) *Registry {
	return &Registry{
		store:   store,
		latency: latency,
		conns:   xsync.NewMapOf[string, *Conn](),
	}
}

// Conn returns the connection for id, creating it on first use
func (r *Registry) Conn(id string) *Conn {
	conn, loaded := r.conns.LoadOrCompute(id, func() *Conn {
		return NewConn(id, r.store, r.latency)
	})
	if !loaded {
		Logger.Debugf("opened connection %s", id)
	}
	return conn
}

// Store returns the store shared by all connections
func (r *Registry) Store() *Store { return r.store }

// IDs returns the sorted ids of all opened connections
func (r *Registry) IDs() []string {
	ids := make([]string, 0, r.conns.Size())
	r.conns.Range(func(id string, _ *Conn) bool {
		ids = append(ids, id)
		return true
	})
	sort.Strings(ids)
	return ids
}

// Close closes and forgets all connections
func (r *Registry) Close() error {
	r.conns.Range(func(id string, conn *Conn) bool {
		_ = conn.Close()
		r.conns.Delete(id)
		return true
	})
	return nil
}
