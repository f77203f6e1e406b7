package peer

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// Registry tracks the live and pending-disconnect peers of one listener.
//
// Add, MarkDead, Reap and Drain are called only from the owning loop. Count and
// Each may be called from any goroutine.
type Registry struct {
	live    *xsync.MapOf[string, Conn]
	pending []Conn
	marked  map[string]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		live:   xsync.NewMapOf[string, Conn](),
		marked: make(map[string]struct{}),
	}
}

// Add registers a newly accepted peer.
func (r *Registry) Add(conn Conn) {
	r.live.Store(conn.RemoteAddr(), conn)
}

// MarkDead queues a peer for removal on the next Reap. The peer stays live
// until then so bytes already read in the current pass are still delivered.
func (r *Registry) MarkDead(conn Conn) {
	key := conn.RemoteAddr()
	if _, ok := r.marked[key]; ok {
		return
	}
	r.marked[key] = struct{}{}
	r.pending = append(r.pending, conn)
}

// IsMarked reports whether a peer is waiting to be reaped.
func (r *Registry) IsMarked(conn Conn) bool {
	_, ok := r.marked[conn.RemoteAddr()]
	return ok
}

// Reap removes every peer queued by MarkDead and returns them in the order
// they were marked.
func (r *Registry) Reap() []Conn {
	if len(r.pending) == 0 {
		return nil
	}
	reaped := r.pending
	r.pending = nil
	for _, conn := range reaped {
		r.live.Delete(conn.RemoteAddr())
		delete(r.marked, conn.RemoteAddr())
	}
	return reaped
}

// Drain removes every peer, live or pending, and returns them.
func (r *Registry) Drain() []Conn {
	var all []Conn
	r.live.Range(func(_ string, conn Conn) bool {
		all = append(all, conn)
		return true
	})
	for _, conn := range all {
		r.live.Delete(conn.RemoteAddr())
	}
	r.pending = nil
	r.marked = make(map[string]struct{})
	return all
}

// Snapshot returns the live peers.
func (r *Registry) Snapshot() []Conn {
	conns := make([]Conn, 0, r.live.Size())
	r.live.Range(func(_ string, conn Conn) bool {
		conns = append(conns, conn)
		return true
	})
	return conns
}

// Each calls fn for every live peer until fn returns false.
func (r *Registry) Each(fn func(Conn) bool) {
	r.live.Range(func(_ string, conn Conn) bool {
		return fn(conn)
	})
}

// Count returns the number of live peers.
func (r *Registry) Count() int {
	return r.live.Size()
}
