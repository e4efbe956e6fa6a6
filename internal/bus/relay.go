package bus

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// SubjectPrefix is prepended to the target user id on every relayed delivery.
const SubjectPrefix = "friendchat.deliver."

// LocalDeliverer delivers an event to a user connected to this instance.
type LocalDeliverer interface {
	DeliverLocal(userID, event string, payload any) bool
}

// Publisher is the subset of *nats.Conn the relay publishes through.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Envelope is the NATS message body of a relayed delivery.
type Envelope struct {
	Origin string          `json:"origin"`
	UserID string          `json:"userId"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
}

type Config struct {
	URL           string
	Name          string
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// Relay carries router misses to the other server instances. Each
// instance delivers relayed events only to its own connections, so a
// user connected nowhere still sees the event dropped.
type Relay struct {
	nodeID string
	pub    Publisher
	nc     *nats.Conn
	sub    *nats.Subscription
	log    *zap.Logger
}

// Connect dials NATS with reconnect options.
func Connect(cfg Config) (*nats.Conn, error) {
	if cfg.URL == "" {
		return nil, errors.New("nats url missing")
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	return nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
	)
}

// NewRelay returns a relay publishing through nc.
func NewRelay(nc *nats.Conn, nodeID string, log *zap.Logger) *Relay {
	r := newRelay(nc, nodeID, log)
	r.nc = nc
	return r
}

func newRelay(pub Publisher, nodeID string, log *zap.Logger) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{nodeID: nodeID, pub: pub, log: log}
}

// Forward publishes a delivery for a user not connected here. Errors are
// logged; delivery stays best-effort.
func (r *Relay) Forward(userID, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		r.log.Warn("relay: marshal payload", zap.String("event", event), zap.Error(err))
		return
	}
	body, err := json.Marshal(Envelope{Origin: r.nodeID, UserID: userID, Event: event, Data: data})
	if err != nil {
		r.log.Warn("relay: marshal envelope", zap.Error(err))
		return
	}
	if err := r.pub.Publish(SubjectPrefix+userID, body); err != nil {
		r.log.Warn("relay: publish", zap.String("user_id", userID), zap.Error(err))
	}
}

// Subscribe starts consuming deliveries relayed by other instances.
func (r *Relay) Subscribe(local LocalDeliverer) error {
	if r.nc == nil {
		return errors.New("relay has no nats connection")
	}
	sub, err := r.nc.Subscribe(SubjectPrefix+"*", func(m *nats.Msg) {
		r.handle(local, m.Subject, m.Data)
	})
	if err != nil {
		return err
	}
	r.sub = sub
	return nil
}

func (r *Relay) handle(local LocalDeliverer, subject string, body []byte) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		r.log.Warn("relay: bad envelope", zap.String("subject", subject), zap.Error(err))
		return
	}
	if env.Origin == r.nodeID {
		return
	}
	if env.UserID == "" {
		env.UserID = strings.TrimPrefix(subject, SubjectPrefix)
	}
	local.DeliverLocal(env.UserID, env.Event, env.Data)
}

// Close drains the subscription and the connection.
func (r *Relay) Close() error {
	if r.sub != nil {
		_ = r.sub.Drain()
	}
	if r.nc != nil {
		return r.nc.Drain()
	}
	return nil
}
