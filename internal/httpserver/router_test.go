package httpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"friendchat/internal/domain"
	"friendchat/internal/media"
	"friendchat/internal/security"
	"friendchat/internal/service"
	"friendchat/internal/store/sqlite"
)

type delivery struct {
	userID  string
	event   string
	payload any
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []delivery
}

func (n *recordingNotifier) Deliver(userID, event string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, delivery{userID, event, payload})
}

func (n *recordingNotifier) events(event string) []delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	var res []delivery
	for _, d := range n.got {
		if d.event == event {
			res = append(res, d)
		}
	}
	return res
}

type testEnv struct {
	srv      *httptest.Server
	notifier *recordingNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zap.NewNop()

	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, sqlite.Migrate(db))
	t.Cleanup(func() { db.Close() })

	users := sqlite.NewUserRepo(db)
	messages := sqlite.NewMessageRepo(db)
	friends := sqlite.NewFriendRepo(db)

	dir := t.TempDir()
	uploader, err := media.NewUploader(dir, "", log)
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	tokens := security.NewTokenService("test-secret", time.Hour)
	hasher := security.NewPasswordHasher(4)

	srv := httptest.NewServer(NewRouter(Deps{
		Auth:      service.NewAuthService(users, friends, tokens, hasher, uploader, log),
		Messages:  service.NewMessageService(users, messages, uploader, notifier, log),
		Friends:   service.NewFriendService(users, friends, notifier, log),
		Presence:  func(context.Context) ([]string, error) { return []string{"someone"}, nil },
		UploadDir: dir,
		Log:       log,
	}))
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, notifier: notifier}
}

type apiClient struct {
	t    *testing.T
	base string
	http *http.Client
}

func (e *testEnv) client(t *testing.T) *apiClient {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &apiClient{t: t, base: e.srv.URL, http: &http.Client{Jar: jar}}
}

func (c *apiClient) do(method, path string, body, out any) int {
	c.t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, c.base+path, rdr)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (c *apiClient) signup(name, email string) domain.User {
	c.t.Helper()
	var u domain.User
	status := c.do(http.MethodPost, "/api/auth/signup", map[string]string{
		"fullName": name, "email": email, "password": "secret1",
	}, &u)
	require.Equal(c.t, http.StatusCreated, status)
	return u
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	var msg map[string]string
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/api/auth/check", nil, &msg))

	alice := c.signup("Alice", "alice@example.com")
	assert.NotEmpty(t, alice.ID)
	assert.Equal(t, "Alice", alice.FullName)

	var me domain.User
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/auth/check", nil, &me))
	assert.Equal(t, alice.ID, me.ID)

	other := env.client(t)
	assert.Equal(t, http.StatusBadRequest, other.do(http.MethodPost, "/api/auth/signup", map[string]string{
		"fullName": "Again", "email": "alice@example.com", "password": "secret1",
	}, &msg))
	assert.Equal(t, service.ErrEmailTaken.Error(), msg["message"])

	assert.Equal(t, http.StatusBadRequest, other.do(http.MethodPost, "/api/auth/login", map[string]string{
		"email": "alice@example.com", "password": "wrong-pass",
	}, &msg))
	assert.Equal(t, service.ErrInvalidCredentials.Error(), msg["message"])

	require.Equal(t, http.StatusOK, other.do(http.MethodPost, "/api/auth/login", map[string]string{
		"email": "alice@example.com", "password": "secret1",
	}, &me))

	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/auth/logout", nil, &msg))
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/api/auth/check", nil, &msg))
}

func TestBearerToken(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	alice := c.signup("Alice", "alice@example.com")

	tokens := security.NewTokenService("test-secret", time.Hour)
	token, err := tokens.Issue(alice.ID)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/api/auth/check", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMessagesFlow(t *testing.T) {
	env := newTestEnv(t)
	a := env.client(t)
	b := env.client(t)
	alice := a.signup("Alice", "alice@example.com")
	bob := b.signup("Bob", "bob@example.com")

	var sent domain.Message
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/api/messages/send/"+bob.ID, map[string]string{"text": "hi"}, &sent))
	assert.Equal(t, alice.ID, sent.SenderID)
	assert.Equal(t, "hi", sent.Text)

	img := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png"))
	var withImage domain.Message
	require.Equal(t, http.StatusCreated, b.do(http.MethodPost, "/api/messages/send/"+alice.ID, map[string]string{"image": img}, &withImage))
	require.True(t, strings.HasPrefix(withImage.Image, media.RoutePrefix), withImage.Image)

	resp, err := http.Get(env.srv.URL + withImage.Image)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	pushed := env.notifier.events(domain.EventNewMessage)
	require.Len(t, pushed, 2)
	assert.Equal(t, bob.ID, pushed[0].userID)
	assert.Equal(t, alice.ID, pushed[1].userID)

	var history []domain.Message
	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "/api/messages/"+alice.ID, nil, &history))
	require.Len(t, history, 2)
	assert.Equal(t, sent.ID, history[0].ID)
	assert.Equal(t, withImage.ID, history[1].ID)

	var sidebar []domain.User
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/messages/users", nil, &sidebar))
	require.Len(t, sidebar, 1)
	assert.Equal(t, domain.ImagePreview, sidebar[0].LastMessageText)
	assert.NotNil(t, sidebar[0].LastMessagedAt)

	var msg map[string]string
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/api/messages/send/"+bob.ID, map[string]string{}, &msg))
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodPost, "/api/messages/send/nobody", map[string]string{"text": "x"}, &msg))
	assert.Len(t, env.notifier.events(domain.EventNewMessage), 2)

	require.Equal(t, http.StatusOK, a.do(http.MethodDelete, "/api/messages/clear/"+bob.ID, nil, &msg))
	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "/api/messages/"+alice.ID, nil, &history))
	assert.Empty(t, history)
}

func TestFriendsFlow(t *testing.T) {
	env := newTestEnv(t)
	a := env.client(t)
	b := env.client(t)
	alice := a.signup("Alice", "alice@example.com")
	bob := b.signup("Bob", "bob@example.com")

	var msg map[string]string
	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/api/friends/request/"+bob.ID, nil, &msg))
	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/api/friends/request/"+bob.ID, nil, &msg))
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/api/friends/request/"+alice.ID, nil, &msg))
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodPost, "/api/friends/request/nobody", nil, &msg))

	reqs := env.notifier.events(domain.EventReceiveFriendRequest)
	require.Len(t, reqs, 1, "duplicate request is not re-announced")
	assert.Equal(t, bob.ID, reqs[0].userID)
	assert.Equal(t, alice.ID, reqs[0].payload.(domain.UserSummary).ID)

	var me domain.User
	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "/api/auth/check", nil, &me))
	require.Len(t, me.FriendRequests, 1)
	assert.Equal(t, alice.ID, me.FriendRequests[0].ID)

	assert.Equal(t, http.StatusNotFound, a.do(http.MethodPost, "/api/friends/accept/"+bob.ID, nil, &msg))

	var requester domain.UserSummary
	require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/api/friends/accept/"+alice.ID, nil, &requester))
	assert.Equal(t, alice.ID, requester.ID)

	accepted := env.notifier.events(domain.EventFriendRequestAccepted)
	require.Len(t, accepted, 1)
	assert.Equal(t, alice.ID, accepted[0].userID)
	assert.Equal(t, bob.ID, accepted[0].payload.(domain.UserSummary).ID)

	assert.Equal(t, http.StatusConflict, a.do(http.MethodPost, "/api/friends/request/"+bob.ID, nil, &msg))

	var all []domain.User
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/friends/all", nil, &all))
	require.Len(t, all, 1)
	require.Len(t, all[0].Friends, 1)
	assert.Equal(t, alice.ID, all[0].Friends[0].ID)
	assert.Empty(t, all[0].FriendRequests)

	require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/api/friends/reject/"+alice.ID, nil, &msg))
}

func TestPresenceAndUploads(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	c.signup("Alice", "alice@example.com")

	var ids []string
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/presence", nil, &ids))
	assert.Equal(t, []string{"someone"}, ids)

	resp, err := http.Get(env.srv.URL + "/api/uploads/missing.png")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(env.srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
