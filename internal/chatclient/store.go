// Package chatclient is the client half of friendchat: a local store that
// applies optimistic changes and reconciles them with server responses and
// pushed events, plus the HTTP and websocket plumbing that feeds it.
package chatclient

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"friendchat/internal/domain"
)

// TempIDPrefix marks ids generated locally for messages not yet confirmed.
const TempIDPrefix = "temp-"

var ErrNoConversation = errors.New("no conversation is open")

// API is the server surface the store talks to.
type API interface {
	Users(ctx context.Context) ([]domain.User, error)
	Messages(ctx context.Context, userID string) ([]domain.Message, error)
	SendMessage(ctx context.Context, receiverID string, p MessagePayload) (domain.Message, error)
	ClearChat(ctx context.Context, userID string) error
	SendFriendRequest(ctx context.Context, userID string) error
	AcceptFriendRequest(ctx context.Context, userID string) (domain.UserSummary, error)
	RejectFriendRequest(ctx context.Context, userID string) error
}

// Notifier shows transient, toast-style feedback.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

type MessagePayload struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

// PendingState tracks one optimistic send.
type PendingState int

const (
	Pending PendingState = iota
	Confirmed
	RolledBack
)

func (s PendingState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	case RolledBack:
		return "rolled-back"
	default:
		return "unknown"
	}
}

// PendingSend is the record of an optimistic send keyed by its temp id.
type PendingSend struct {
	TempID     string
	ReceiverID string
	State      PendingState
	ServerID   string
	Err        error
}

// Contact is a user as shown in the sidebar.
type Contact struct {
	domain.User
	Online bool `json:"online"`
	Unread int  `json:"unread"`
}

// Store is the client-side cache. All methods are safe for concurrent use;
// network calls are made without holding the lock.
type Store struct {
	api      API
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time

	mu             sync.Mutex
	self           domain.UserSummary
	users          []domain.User
	unread         map[string]int
	online         []string
	onlineSet      map[string]struct{}
	messages       []domain.Message
	selected       string
	friends        []domain.UserSummary
	friendRequests []domain.UserSummary
	pending        map[string]*PendingSend
	search         string
}

func NewStore(api API, self domain.User, notifier Notifier, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	if notifier == nil {
		notifier = NewLogNotifier(log)
	}
	return &Store{
		api:            api,
		notifier:       notifier,
		log:            log,
		now:            time.Now,
		self:           self.Summary(),
		unread:         make(map[string]int),
		onlineSet:      make(map[string]struct{}),
		pending:        make(map[string]*PendingSend),
		friends:        cloneSummaries(self.Friends),
		friendRequests: cloneSummaries(self.FriendRequests),
	}
}

// LoadUsers replaces the sidebar list with the server's. Unread counters
// are kept for users still present.
func (s *Store) LoadUsers(ctx context.Context) error {
	users, err := s.api.Users(ctx)
	if err != nil {
		s.notifier.Error(errorMessage(err))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = users
	keep := make(map[string]int, len(users))
	for _, u := range users {
		if n, ok := s.unread[u.ID]; ok {
			keep[u.ID] = n
		}
	}
	s.unread = keep
	return nil
}

// OpenConversation selects userID and replaces the message list with the
// server's history. The contact's preview is refreshed from the last
// history message. A response for a conversation that is no longer
// selected is discarded.
func (s *Store) OpenConversation(ctx context.Context, userID string) error {
	s.mu.Lock()
	s.selected = userID
	s.messages = nil
	delete(s.unread, userID)
	s.mu.Unlock()

	history, err := s.api.Messages(ctx, userID)
	if err != nil {
		s.notifier.Error(errorMessage(err))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(history) > 0 {
		s.touchPreviewLocked(userID, history[len(history)-1])
	}
	if s.selected != userID {
		return nil
	}
	s.messages = history
	return nil
}

// CloseConversation clears the selection.
func (s *Store) CloseConversation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = ""
	s.messages = nil
}

// SendMessage appends a provisional message and previews it at once, then
// persists it. Success swaps the provisional entry and preview for the
// server's copy; failure removes the entry, restores the previous preview
// and raises an error toast. There is no retry.
func (s *Store) SendMessage(ctx context.Context, p MessagePayload) (domain.Message, error) {
	s.mu.Lock()
	receiver := s.selected
	if receiver == "" {
		s.mu.Unlock()
		return domain.Message{}, ErrNoConversation
	}
	tempID := TempIDPrefix + uuid.NewString()
	provisional := domain.Message{
		ID:         tempID,
		SenderID:   s.self.ID,
		ReceiverID: receiver,
		Text:       p.Text,
		Image:      p.Image,
		CreatedAt:  s.now().UTC(),
	}
	s.messages = append(s.messages, provisional)
	prevAt, prevText := s.previewLocked(receiver)
	s.touchPreviewLocked(receiver, provisional)
	rec := &PendingSend{TempID: tempID, ReceiverID: receiver, State: Pending}
	s.pending[tempID] = rec
	s.mu.Unlock()

	msg, err := s.api.SendMessage(ctx, receiver, p)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.removeMessageLocked(tempID)
		s.restorePreviewLocked(receiver, provisional.CreatedAt, prevAt, prevText)
		rec.State = RolledBack
		rec.Err = err
		s.log.Debug("send rolled back", zap.String("temp_id", tempID), zap.Error(err))
		s.notifier.Error(errorMessage(err))
		return domain.Message{}, err
	}

	s.replaceMessageLocked(tempID, msg)
	rec.State = Confirmed
	rec.ServerID = msg.ID
	s.touchPreviewLocked(receiver, msg)
	return msg, nil
}

// ReceivePushedMessage merges a message pushed by the server. It is
// appended when its sender's conversation is open; otherwise the sender's
// unread counter goes up by one.
func (s *Store) ReceivePushedMessage(msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected != "" && msg.SenderID == s.selected {
		s.messages = append(s.messages, msg)
	} else {
		s.unread[msg.SenderID]++
	}
	s.touchPreviewLocked(msg.SenderID, msg)
}

// SetOnlineUsers replaces the presence snapshot.
func (s *Store) SetOnlineUsers(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = append([]string(nil), ids...)
	s.onlineSet = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s.onlineSet[id] = struct{}{}
	}
}

// ReceiveFriendRequest records an incoming request once per requester.
func (s *Store) ReceiveFriendRequest(from domain.UserSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.friendRequests = addSummary(s.friendRequests, from)
}

// FriendRequestAccepted records the new friend and drops any pending
// request from them.
func (s *Store) FriendRequestAccepted(friend domain.UserSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.friends = addSummary(s.friends, friend)
	s.friendRequests = removeSummary(s.friendRequests, friend.ID)
}

func (s *Store) SendFriendRequest(ctx context.Context, userID string) error {
	if err := s.api.SendFriendRequest(ctx, userID); err != nil {
		s.notifier.Error(errorMessage(err))
		return err
	}
	s.notifier.Success("Friend request sent")
	return nil
}

// AcceptFriendRequest updates local state only after the server confirms,
// using the friend record it returns.
func (s *Store) AcceptFriendRequest(ctx context.Context, requesterID string) error {
	friend, err := s.api.AcceptFriendRequest(ctx, requesterID)
	if err != nil {
		s.notifier.Error(errorMessage(err))
		return err
	}

	s.mu.Lock()
	s.friends = addSummary(s.friends, friend)
	s.friendRequests = removeSummary(s.friendRequests, requesterID)
	s.mu.Unlock()

	s.notifier.Success("Friend request accepted")
	return nil
}

// RejectFriendRequest drops the request locally before the server call.
// A failed call is reported but the request is not restored.
func (s *Store) RejectFriendRequest(ctx context.Context, requesterID string) error {
	s.mu.Lock()
	s.friendRequests = removeSummary(s.friendRequests, requesterID)
	s.mu.Unlock()

	if err := s.api.RejectFriendRequest(ctx, requesterID); err != nil {
		s.notifier.Error(errorMessage(err))
		return err
	}
	return nil
}

// ClearChat deletes the open conversation's history on the server, then
// locally.
func (s *Store) ClearChat(ctx context.Context) error {
	s.mu.Lock()
	userID := s.selected
	s.mu.Unlock()
	if userID == "" {
		return ErrNoConversation
	}

	if err := s.api.ClearChat(ctx, userID); err != nil {
		s.notifier.Error(errorMessage(err))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == userID {
		s.messages = nil
	}
	for i := range s.users {
		if s.users[i].ID == userID {
			s.users[i].LastMessageText = ""
			s.users[i].LastMessagedAt = nil
		}
	}
	s.notifier.Success("Chat cleared")
	return nil
}

func (s *Store) SetSearchQuery(q string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.search = q
}

// FilteredUsers returns the sidebar: users whose name contains the search
// query (case-insensitive), most recent activity first. Users with no
// activity follow, alphabetically. Equal timestamps keep list order.
func (s *Store) FilteredUsers() []Contact {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := strings.ToLower(strings.TrimSpace(s.search))
	res := make([]Contact, 0, len(s.users))
	for _, u := range s.users {
		if q != "" && !strings.Contains(strings.ToLower(u.FullName), q) {
			continue
		}
		_, online := s.onlineSet[u.ID]
		res = append(res, Contact{User: u, Online: online, Unread: s.unread[u.ID]})
	}

	sort.SliceStable(res, func(i, j int) bool {
		a, b := res[i].LastMessagedAt, res[j].LastMessagedAt
		switch {
		case a != nil && b != nil:
			return a.After(*b)
		case a != nil:
			return true
		case b != nil:
			return false
		default:
			return strings.ToLower(res[i].FullName) < strings.ToLower(res[j].FullName)
		}
	})
	return res
}

// ── snapshots ────────────────────────────────────────────────────────────────

func (s *Store) Self() domain.UserSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.self
}

func (s *Store) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.messages...)
}

func (s *Store) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

func (s *Store) OnlineUsers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.online...)
}

func (s *Store) IsOnline(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.onlineSet[userID]
	return ok
}

func (s *Store) Unread(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread[userID]
}

func (s *Store) Friends() []domain.UserSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSummaries(s.friends)
}

func (s *Store) FriendRequests() []domain.UserSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSummaries(s.friendRequests)
}

// Pending reports the state of an optimistic send by temp id.
func (s *Store) Pending(tempID string) (PendingSend, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.pending[tempID]
	if !ok {
		return PendingSend{}, false
	}
	return *rec, true
}

// PendingSends lists every optimistic send made by this store.
func (s *Store) PendingSends() []PendingSend {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]PendingSend, 0, len(s.pending))
	for _, rec := range s.pending {
		res = append(res, *rec)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].TempID < res[j].TempID })
	return res
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (s *Store) removeMessageLocked(id string) {
	for i, m := range s.messages {
		if m.ID == id {
			s.messages = append(s.messages[:i:i], s.messages[i+1:]...)
			return
		}
	}
}

// replaceMessageLocked swaps the provisional entry for the confirmed one.
// If the conversation was reopened meanwhile the entry is gone and the
// history fetch already carries the truth.
func (s *Store) replaceMessageLocked(tempID string, msg domain.Message) {
	for i, m := range s.messages {
		if m.ID == tempID {
			s.messages[i] = msg
			return
		}
	}
}

func (s *Store) previewLocked(userID string) (*time.Time, string) {
	for _, u := range s.users {
		if u.ID == userID {
			return u.LastMessagedAt, u.LastMessageText
		}
	}
	return nil, ""
}

// restorePreviewLocked puts back a preview replaced by a provisional send,
// unless something newer has touched it since.
func (s *Store) restorePreviewLocked(userID string, provisionalAt time.Time, at *time.Time, text string) {
	for i := range s.users {
		if s.users[i].ID != userID {
			continue
		}
		cur := s.users[i].LastMessagedAt
		if cur == nil || !cur.Equal(provisionalAt) {
			return
		}
		s.users[i].LastMessagedAt = at
		s.users[i].LastMessageText = text
		return
	}
}

func (s *Store) touchPreviewLocked(userID string, msg domain.Message) {
	for i := range s.users {
		if s.users[i].ID != userID {
			continue
		}
		at := msg.CreatedAt
		s.users[i].LastMessagedAt = &at
		s.users[i].LastMessageText = msg.Preview()
		return
	}
}

func addSummary(list []domain.UserSummary, s domain.UserSummary) []domain.UserSummary {
	for _, e := range list {
		if e.ID == s.ID {
			return list
		}
	}
	return append(list, s)
}

func removeSummary(list []domain.UserSummary, id string) []domain.UserSummary {
	out := list[:0:0]
	for _, e := range list {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}

func cloneSummaries(list []domain.UserSummary) []domain.UserSummary {
	return append([]domain.UserSummary(nil), list...)
}

func errorMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
