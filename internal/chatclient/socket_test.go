package chatclient

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"friendchat/internal/domain"
	"friendchat/internal/ws"
)

func newRealtimeServer(t *testing.T) (*httptest.Server, *ws.Router) {
	t.Helper()
	reg := ws.NewRegistry(zap.NewNop())
	router := ws.NewRouter(reg, zap.NewNop())
	srv := httptest.NewServer(ws.MakeHandler(reg, nil, 16, zap.NewNop()))
	t.Cleanup(srv.Close)
	return srv, router
}

func dialStore(t *testing.T, srv *httptest.Server, self domain.User) (*Store, *Socket) {
	t.Helper()
	store := NewStore(&fakeAPI{users: []domain.User{}}, self, &toasts{}, zap.NewNop())
	// The test server serves the socket handler at every path.
	sock, err := Dial(context.Background(), srv.URL, self.ID, store, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sock.Close() })
	return store, sock
}

func TestSocketURL(t *testing.T) {
	u, err := SocketURL("https://chat.example.com/", "u 1")
	require.NoError(t, err)
	assert.Equal(t, "wss://chat.example.com/socket?userId=u+1", u)

	_, err = SocketURL("ftp://x", "u")
	assert.Error(t, err)
}

func TestSocket_PresenceAndDisconnect(t *testing.T) {
	srv, _ := newRealtimeServer(t)

	storeB, _ := dialStore(t, srv, domain.User{ID: "b"})
	_, sockA := dialStore(t, srv, domain.User{ID: "a"})

	require.Eventually(t, func() bool {
		return storeB.IsOnline("a") && storeB.IsOnline("b")
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, sockA.Close())

	require.Eventually(t, func() bool {
		return !storeB.IsOnline("a") && storeB.IsOnline("b")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSocket_DispatchesRoutedEvents(t *testing.T) {
	srv, router := newRealtimeServer(t)
	storeB, _ := dialStore(t, srv, domain.User{ID: "b"})

	require.Eventually(t, func() bool { return storeB.IsOnline("b") }, 2*time.Second, 10*time.Millisecond)

	alice := domain.UserSummary{ID: "a", FullName: "Alice"}
	router.Deliver("b", domain.EventReceiveFriendRequest, alice)
	router.Deliver("b", domain.EventReceiveFriendRequest, alice)
	router.Deliver("b", domain.EventNewMessage, domain.Message{ID: "m1", SenderID: "a", ReceiverID: "b", Text: "hi"})

	require.Eventually(t, func() bool { return storeB.Unread("a") == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []domain.UserSummary{alice}, storeB.FriendRequests(), "duplicate push is applied once")

	router.Deliver("b", domain.EventFriendRequestAccepted, alice)
	require.Eventually(t, func() bool { return len(storeB.Friends()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, storeB.FriendRequests())
}

func TestSocket_EventHookAndDone(t *testing.T) {
	srv, router := newRealtimeServer(t)
	store := NewStore(&fakeAPI{}, domain.User{ID: "b"}, &toasts{}, zap.NewNop())

	events := make(chan string, 8)
	sock, err := Dial(context.Background(), srv.URL, "b", store, zap.NewNop(),
		WithEventHook(func(e string) { events <- e }))
	require.NoError(t, err)

	select {
	case e := <-events:
		assert.Equal(t, domain.EventOnlineUsers, e)
	case <-time.After(2 * time.Second):
		t.Fatal("no presence event")
	}

	router.Deliver("b", domain.EventNewMessage, domain.Message{ID: "m1", SenderID: "a"})
	select {
	case e := <-events:
		assert.Equal(t, domain.EventNewMessage, e)
	case <-time.After(2 * time.Second):
		t.Fatal("no message event")
	}

	require.NoError(t, sock.Close())
	<-sock.Done()
	assert.NoError(t, sock.Err())
}
