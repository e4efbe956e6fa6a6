package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"friendchat/internal/domain"
)

// Requires a replica set, e.g. TEST_MONGO_URI=mongodb://localhost:27017/?replicaSet=rs0
func openTestStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, Config{URI: uri, Database: "friendchat_test_" + uuid.NewString()[:8], Timeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Drop(ctx)
		_ = s.Close(ctx)
	})
	return s
}

func TestMongo_UsersAndMessages(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	users, msgs := s.Users(), s.Messages()

	a := &domain.User{FullName: "A", Email: "a@example.com", HashedPassword: "h"}
	b := &domain.User{FullName: "B", Email: "b@example.com", HashedPassword: "h"}
	require.NoError(t, users.Create(ctx, a))
	require.NoError(t, users.Create(ctx, b))
	assert.ErrorIs(t, users.Create(ctx, &domain.User{FullName: "X", Email: "a@example.com"}), domain.ErrConflict)

	_, err := users.GetByID(ctx, "not-hex")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, msgs.Create(ctx, &domain.Message{SenderID: a.ID, ReceiverID: b.ID, Text: "hi"}))
	require.NoError(t, msgs.Create(ctx, &domain.Message{SenderID: b.ID, ReceiverID: a.ID, Image: "http://img"}))
	require.NoError(t, users.TouchLastMessage(ctx, []string{a.ID, b.ID}, time.Now(), domain.ImagePreview))

	list, err := msgs.ListBetween(ctx, a.ID, b.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "hi", list[0].Text)
	assert.Equal(t, "http://img", list[1].Image)

	others, err := users.ListOthers(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.Equal(t, domain.ImagePreview, others[0].LastMessageText)
}

func TestMongo_FriendFlow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	users, friends := s.Users(), s.Friends()

	a := &domain.User{FullName: "A", Email: "a@example.com", HashedPassword: "h"}
	b := &domain.User{FullName: "B", Email: "b@example.com", HashedPassword: "h"}
	require.NoError(t, users.Create(ctx, a))
	require.NoError(t, users.Create(ctx, b))

	created, err := friends.CreateRequest(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = friends.CreateRequest(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, created)

	reqs, err := friends.ListRequests(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "A", reqs[0].FullName)

	require.NoError(t, friends.Accept(ctx, a.ID, b.ID))
	assert.ErrorIs(t, friends.Accept(ctx, a.ID, b.ID), domain.ErrNotFound)

	ok, err := friends.AreFriends(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	list, err := friends.ListFriends(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)
}
