package redis

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// PresenceKey is the hash of online users: field = user id, value = node id.
const PresenceKey = "friendchat:presence"

// Removes the user's field only while it still names this node, so a
// reconnect on another instance is not erased by a late disconnect here.
// KEYS[1] = presence hash
// ARGV[1] = user id
// ARGV[2] = node id
// returns 1 when removed, 0 otherwise
const luaOfflineIfOwner = `
if redis.call("HGET", KEYS[1], ARGV[1]) == ARGV[2] then
  return redis.call("HDEL", KEYS[1], ARGV[1])
end
return 0
`

type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// Open connects and pings Redis.
func Open(ctx context.Context, c Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
		PoolSize: c.PoolSize,
	})
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// PresenceMirror copies this instance's online transitions into Redis so
// every instance can answer "who is online" for the whole deployment.
// Transitions are queued without blocking and written by a single worker
// in the order they were reported.
type PresenceMirror struct {
	rdb     redis.Cmdable
	nodeID  string
	timeout time.Duration
	offline *redis.Script
	log     *zap.Logger

	mu      sync.Mutex
	queue   []transition
	closed  bool
	wake    chan struct{}
	stopped chan struct{}
}

type transition struct {
	userID string
	online bool
}

// NewPresenceMirror starts the write worker. Close stops it.
func NewPresenceMirror(rdb redis.Cmdable, nodeID string, log *zap.Logger) *PresenceMirror {
	if log == nil {
		log = zap.NewNop()
	}
	m := &PresenceMirror{
		rdb:     rdb,
		nodeID:  nodeID,
		timeout: 2 * time.Second,
		offline: redis.NewScript(luaOfflineIfOwner),
		log:     log,
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *PresenceMirror) UserOnline(userID string)  { m.enqueue(transition{userID: userID, online: true}) }
func (m *PresenceMirror) UserOffline(userID string) { m.enqueue(transition{userID: userID}) }

func (m *PresenceMirror) enqueue(t transition) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.queue = append(m.queue, t)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Close writes whatever is still queued and stops the worker.
func (m *PresenceMirror) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		<-m.stopped
		return
	}
	m.closed = true
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
	<-m.stopped
}

func (m *PresenceMirror) run() {
	defer close(m.stopped)
	for range m.wake {
		m.mu.Lock()
		batch := m.queue
		m.queue = nil
		closed := m.closed
		m.mu.Unlock()

		for _, t := range batch {
			m.write(t)
		}
		if closed {
			return
		}
	}
}

func (m *PresenceMirror) write(t transition) {
	ctx := context.Background()
	if t.online {
		if err := m.MarkOnline(ctx, t.userID); err != nil {
			m.log.Warn("presence mirror: online", zap.String("user_id", t.userID), zap.Error(err))
		}
		return
	}
	if _, err := m.MarkOffline(ctx, t.userID); err != nil {
		m.log.Warn("presence mirror: offline", zap.String("user_id", t.userID), zap.Error(err))
	}
}

// MarkOnline records userID as connected to this node.
func (m *PresenceMirror) MarkOnline(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.rdb.HSet(ctx, PresenceKey, userID, m.nodeID).Err()
}

// MarkOffline clears userID if this node still owns the entry.
func (m *PresenceMirror) MarkOffline(ctx context.Context, userID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	n, err := m.offline.Run(ctx, m.rdb, []string{PresenceKey}, userID, m.nodeID).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Online returns every user id recorded as connected, sorted.
func (m *PresenceMirror) Online(ctx context.Context) ([]string, error) {
	ids, err := m.rdb.HKeys(ctx, PresenceKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// Reset drops every entry owned by this node. Called at startup, since
// connections do not survive a restart.
func (m *PresenceMirror) Reset(ctx context.Context) error {
	all, err := m.rdb.HGetAll(ctx, PresenceKey).Result()
	if err != nil {
		return err
	}
	var mine []string
	for user, node := range all {
		if node == m.nodeID {
			mine = append(mine, user)
		}
	}
	if len(mine) == 0 {
		return nil
	}
	return m.rdb.HDel(ctx, PresenceKey, mine...).Err()
}
