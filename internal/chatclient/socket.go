package chatclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"friendchat/internal/domain"
)

// EventSink receives decoded server pushes. *Store implements it.
type EventSink interface {
	ReceivePushedMessage(msg domain.Message)
	ReceiveFriendRequest(from domain.UserSummary)
	FriendRequestAccepted(friend domain.UserSummary)
	SetOnlineUsers(ids []string)
}

var _ EventSink = (*Store)(nil)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Socket is the client end of the realtime connection.
type Socket struct {
	conn    *websocket.Conn
	sink    EventSink
	onEvent func(event string)
	log     *zap.Logger

	done chan struct{}
	once sync.Once
	err  error
}

type SocketOption func(*Socket)

// WithEventHook is called after each event has been applied to the sink.
func WithEventHook(fn func(event string)) SocketOption {
	return func(s *Socket) { s.onEvent = fn }
}

// SocketURL turns an http(s) base URL into the websocket endpoint for userID.
func SocketURL(baseURL, userID string) (string, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += "/socket"
	u.RawQuery = url.Values{"userId": {userID}}.Encode()
	return u.String(), nil
}

// Dial connects as userID and starts dispatching pushes into sink.
func Dial(ctx context.Context, baseURL, userID string, sink EventSink, log *zap.Logger, opts ...SocketOption) (*Socket, error) {
	if log == nil {
		log = zap.NewNop()
	}
	endpoint, err := SocketURL(baseURL, userID)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	s := &Socket{
		conn: conn,
		sink: sink,
		log:  log,
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.readLoop()
	return s, nil
}

func (s *Socket) readLoop() {
	defer s.finish(nil)
	for {
		var f frame
		if err := s.conn.ReadJSON(&f); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.finish(err)
			}
			return
		}
		if err := s.dispatch(f); err != nil {
			s.log.Warn("socket: bad frame", zap.String("event", f.Event), zap.Error(err))
			continue
		}
		if s.onEvent != nil {
			s.onEvent(f.Event)
		}
	}
}

func (s *Socket) dispatch(f frame) error {
	switch f.Event {
	case domain.EventNewMessage:
		var m domain.Message
		if err := json.Unmarshal(f.Data, &m); err != nil {
			return err
		}
		s.sink.ReceivePushedMessage(m)
	case domain.EventReceiveFriendRequest:
		var u domain.UserSummary
		if err := json.Unmarshal(f.Data, &u); err != nil {
			return err
		}
		s.sink.ReceiveFriendRequest(u)
	case domain.EventFriendRequestAccepted:
		var u domain.UserSummary
		if err := json.Unmarshal(f.Data, &u); err != nil {
			return err
		}
		s.sink.FriendRequestAccepted(u)
	case domain.EventOnlineUsers:
		var ids []string
		if err := json.Unmarshal(f.Data, &ids); err != nil {
			return err
		}
		s.sink.SetOnlineUsers(ids)
	default:
		s.log.Debug("socket: unknown event", zap.String("event", f.Event))
	}
	return nil
}

func (s *Socket) finish(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)
	})
}

// Done is closed when the connection ends.
func (s *Socket) Done() <-chan struct{} { return s.done }

// Err reports why the connection ended; nil after a clean close.
func (s *Socket) Err() error {
	<-s.done
	return s.err
}

// Close sends a close frame and tears the connection down.
func (s *Socket) Close() error {
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.finish(nil)
	return s.conn.Close()
}
