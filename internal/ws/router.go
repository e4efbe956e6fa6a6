package ws

import (
	"go.uber.org/zap"
)

// Relay forwards deliveries for users not connected to this instance.
type Relay interface {
	Forward(userID, event string, payload any)
}

// Router delivers events to a single user through the Registry.
// Delivery is best-effort: the caller has already persisted the fact
// being announced, so a miss is dropped without error or retry.
type Router struct {
	reg   *Registry
	relay Relay
	log   *zap.Logger
}

type RouterOption func(*Router)

// WithRelay sends local misses to another instance through relay.
func WithRelay(relay Relay) RouterOption {
	return func(r *Router) { r.relay = relay }
}

func NewRouter(reg *Registry, log *zap.Logger, opts ...RouterOption) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Router{reg: reg, log: log}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Deliver pushes (event, payload) to the user's connection. It never
// blocks and never fails; a user with no connection is a no-op.
func (r *Router) Deliver(userID, event string, payload any) {
	if r.DeliverLocal(userID, event, payload) {
		return
	}
	if r.relay != nil {
		r.relay.Forward(userID, event, payload)
	}
}

// DeliverLocal delivers only through this instance's registry and
// reports whether the user had a connection here.
func (r *Router) DeliverLocal(userID, event string, payload any) bool {
	conn, ok := r.reg.Resolve(userID)
	if !ok {
		r.log.Debug("deliver: user offline, dropped", zap.String("user_id", userID), zap.String("event", event))
		return false
	}
	if err := conn.Send(event, payload); err != nil {
		r.log.Debug("deliver: send failed", zap.String("user_id", userID), zap.String("event", event), zap.Error(err))
	}
	return true
}
