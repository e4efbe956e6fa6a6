package ws

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"friendchat/internal/domain"
)

// Conn is a live transport session able to push named events.
// Send must not block; implementations queue or fail fast.
type Conn interface {
	Send(event string, payload any) error
}

// Lease identifies one registration of a connection. Unregister only
// removes the mapping while the lease is still current, so a late
// disconnect of a replaced connection cannot evict its successor.
type Lease struct {
	UserID string
	gen    uint64
}

// PresenceObserver is told about users going online or offline. It is
// called under the registry lock, so calls arrive in mutation order. It
// must not block or call back into the registry.
type PresenceObserver interface {
	UserOnline(userID string)
	UserOffline(userID string)
}

type entry struct {
	conn Conn
	gen  uint64
}

// Registry maps each user to at most one live connection. A new
// connection for the same user replaces the previous mapping (last
// connect wins); the replaced connection is not closed.
//
// Every mutation rebroadcasts the full online set to all registered
// connections while the lock is held, so snapshots reach clients in
// mutation order.
type Registry struct {
	mu      sync.RWMutex
	conns   map[string]entry
	nextGen uint64

	observer PresenceObserver
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		conns: make(map[string]entry),
		log:   log,
	}
}

// SetObserver installs a presence observer. Call before serving traffic.
func (r *Registry) SetObserver(o PresenceObserver) {
	r.observer = o
}

// Register records conn as userID's connection, overwriting any previous one.
func (r *Registry) Register(userID string, conn Conn) Lease {
	r.mu.Lock()
	r.nextGen++
	gen := r.nextGen
	_, replaced := r.conns[userID]
	r.conns[userID] = entry{conn: conn, gen: gen}
	r.broadcastPresenceLocked()
	if r.observer != nil {
		r.observer.UserOnline(userID)
	}
	r.mu.Unlock()

	r.log.Debug("connection registered",
		zap.String("user_id", userID), zap.Uint64("gen", gen), zap.Bool("replaced", replaced))
	return Lease{UserID: userID, gen: gen}
}

// Unregister removes the lease's mapping if it is still current. It
// reports whether anything was removed.
func (r *Registry) Unregister(l Lease) bool {
	r.mu.Lock()
	cur, ok := r.conns[l.UserID]
	if !ok || cur.gen != l.gen {
		r.mu.Unlock()
		r.log.Debug("stale unregister ignored", zap.String("user_id", l.UserID), zap.Uint64("gen", l.gen))
		return false
	}
	delete(r.conns, l.UserID)
	r.broadcastPresenceLocked()
	if r.observer != nil {
		r.observer.UserOffline(l.UserID)
	}
	r.mu.Unlock()

	r.log.Debug("connection unregistered", zap.String("user_id", l.UserID), zap.Uint64("gen", l.gen))
	return true
}

// Resolve returns the user's current connection, if any.
func (r *Registry) Resolve(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[userID]
	if !ok {
		return nil, false
	}
	return e.conn, true
}

// Online returns the ids of all connected users, sorted.
func (r *Registry) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.onlineLocked()
}

// BroadcastPresence pushes the current online set to every connection.
func (r *Registry) BroadcastPresence() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.broadcastPresenceLocked()
}

func (r *Registry) onlineLocked() []string {
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// broadcastPresenceLocked sends a full snapshot, not a delta. This is
// O(users) per mutation; fine at the scale of a single instance.
func (r *Registry) broadcastPresenceLocked() {
	online := r.onlineLocked()
	for id, e := range r.conns {
		if err := e.conn.Send(domain.EventOnlineUsers, online); err != nil {
			r.log.Debug("presence push failed", zap.String("user_id", id), zap.Error(err))
		}
	}
}
