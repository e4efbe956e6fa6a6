package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"friendchat/internal/domain"
)

type wireFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func dial(t *testing.T, srv *httptest.Server, userID string, header http.Header) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/socket?userId=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(u, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitPresence reads frames until a presence snapshot satisfies ok.
func waitPresence(t *testing.T, conn *websocket.Conn, ok func([]string) bool) []string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var f wireFrame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Event != domain.EventOnlineUsers {
			continue
		}
		var ids []string
		require.NoError(t, json.Unmarshal(f.Data, &ids))
		if ok(ids) {
			return ids
		}
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *Registry, *Router) {
	reg := NewRegistry(zap.NewNop())
	router := NewRouter(reg, zap.NewNop())
	mux := http.NewServeMux()
	mux.Handle("/socket", MakeHandler(reg, []string{"http://localhost:5173"}, 16, zap.NewNop()))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, reg, router
}

func TestHandlerPresenceLifecycle(t *testing.T) {
	srv, reg, _ := newTestServer(t)

	a := dial(t, srv, "A", nil)
	waitPresence(t, a, func(ids []string) bool { return assert.ObjectsAreEqual([]string{"A"}, ids) })

	b := dial(t, srv, "B", nil)
	waitPresence(t, b, func(ids []string) bool { return len(ids) == 2 })
	waitPresence(t, a, func(ids []string) bool { return len(ids) == 2 })

	require.NoError(t, a.Close())
	ids := waitPresence(t, b, func(ids []string) bool { return len(ids) == 1 })
	assert.Equal(t, []string{"B"}, ids)

	require.Eventually(t, func() bool {
		_, ok := reg.Resolve("A")
		return !ok
	}, 3*time.Second, 10*time.Millisecond)
}

func TestHandlerDeliversRoutedEvents(t *testing.T) {
	srv, reg, router := newTestServer(t)

	b := dial(t, srv, "B", nil)
	require.Eventually(t, func() bool {
		_, ok := reg.Resolve("B")
		return ok
	}, 3*time.Second, 10*time.Millisecond)

	router.Deliver("B", domain.EventReceiveFriendRequest, domain.UserSummary{ID: "A", FullName: "Alice"})

	require.NoError(t, b.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var f wireFrame
		require.NoError(t, b.ReadJSON(&f))
		if f.Event != domain.EventReceiveFriendRequest {
			continue
		}
		var s domain.UserSummary
		require.NoError(t, json.Unmarshal(f.Data, &s))
		assert.Equal(t, "A", s.ID)
		assert.Equal(t, "Alice", s.FullName)
		return
	}
}

func TestHandlerRejects(t *testing.T) {
	srv, _, _ := newTestServer(t)
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/socket"

	t.Run("MissingUserID", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(base, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("ForeignOrigin", func(t *testing.T) {
		h := http.Header{"Origin": []string{"http://evil.test"}}
		_, resp, err := websocket.DefaultDialer.Dial(base+"?userId=A", h)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("AllowedOrigin", func(t *testing.T) {
		h := http.Header{"Origin": []string{"http://localhost:5173"}}
		dial(t, srv, "A", h)
	})
}
