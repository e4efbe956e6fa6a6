package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"friendchat/internal/domain"
	"friendchat/internal/security"
	"friendchat/internal/service"
)

func newAuthService(users *MockUserRepo, friends *MockFriendRepo, images *MockImageStore) (*service.AuthService, *security.TokenService, *security.PasswordHasher) {
	tokens := security.NewTokenService("secret", time.Hour)
	hasher := security.NewPasswordHasher(4) // low cost for tests
	return service.NewAuthService(users, friends, tokens, hasher, images, zap.NewNop()), tokens, hasher
}

func TestSignup(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		users := new(MockUserRepo)
		svc, tokens, _ := newAuthService(users, new(MockFriendRepo), new(MockImageStore))

		users.On("GetByEmail", mock.Anything, "new@example.com").Return(nil, domain.ErrNotFound)
		users.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
			return u.FullName == "New User" && u.HashedPassword != "secret1"
		})).Run(func(args mock.Arguments) {
			args.Get(1).(*domain.User).ID = "u1"
		}).Return(nil)

		sess, err := svc.Signup(context.Background(), service.SignupInput{
			FullName: " New User ",
			Email:    "New@Example.com",
			Password: "secret1",
		})
		require.NoError(t, err)
		assert.Equal(t, "u1", sess.User.ID)
		assert.Equal(t, "new@example.com", sess.User.Email)
		assert.NotNil(t, sess.User.Friends)

		sub, err := tokens.Subject(sess.Token)
		require.NoError(t, err)
		assert.Equal(t, "u1", sub)
		users.AssertExpectations(t)
	})

	t.Run("MissingFields", func(t *testing.T) {
		svc, _, _ := newAuthService(new(MockUserRepo), new(MockFriendRepo), new(MockImageStore))
		_, err := svc.Signup(context.Background(), service.SignupInput{Email: "a@b.c", Password: "secret1"})
		assert.ErrorIs(t, err, service.ErrMissingFields)
	})

	t.Run("EmailTaken", func(t *testing.T) {
		users := new(MockUserRepo)
		svc, _, _ := newAuthService(users, new(MockFriendRepo), new(MockImageStore))
		users.On("GetByEmail", mock.Anything, "taken@example.com").Return(&domain.User{ID: "x"}, nil)

		_, err := svc.Signup(context.Background(), service.SignupInput{
			FullName: "Someone", Email: "taken@example.com", Password: "secret1",
		})
		assert.ErrorIs(t, err, service.ErrEmailTaken)
		users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("ShortPassword", func(t *testing.T) {
		users := new(MockUserRepo)
		svc, _, _ := newAuthService(users, new(MockFriendRepo), new(MockImageStore))
		users.On("GetByEmail", mock.Anything, "short@example.com").Return(nil, domain.ErrNotFound)

		_, err := svc.Signup(context.Background(), service.SignupInput{
			FullName: "Short", Email: "short@example.com", Password: "12345",
		})
		assert.ErrorIs(t, err, security.ErrPasswordTooShort)
	})
}

func TestLogin(t *testing.T) {
	users := new(MockUserRepo)
	friends := new(MockFriendRepo)
	svc, _, hasher := newAuthService(users, friends, new(MockImageStore))

	hashed, err := hasher.Hash("secret1")
	require.NoError(t, err)
	stored := &domain.User{ID: "u1", FullName: "Alice", Email: "alice@example.com", HashedPassword: hashed}

	users.On("GetByEmail", mock.Anything, "alice@example.com").Return(stored, nil)
	users.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, domain.ErrNotFound)
	friends.On("ListFriends", mock.Anything, "u1").Return([]domain.UserSummary{{ID: "u2", FullName: "Bob"}}, nil)
	friends.On("ListRequests", mock.Anything, "u1").Return([]domain.UserSummary{}, nil)

	t.Run("Success", func(t *testing.T) {
		sess, err := svc.Login(context.Background(), service.LoginInput{Email: "alice@example.com", Password: "secret1"})
		require.NoError(t, err)
		assert.NotEmpty(t, sess.Token)
		require.Len(t, sess.User.Friends, 1)
		assert.Equal(t, "Bob", sess.User.Friends[0].FullName)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		_, err := svc.Login(context.Background(), service.LoginInput{Email: "alice@example.com", Password: "nope123"})
		assert.ErrorIs(t, err, service.ErrInvalidCredentials)
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		_, err := svc.Login(context.Background(), service.LoginInput{Email: "ghost@example.com", Password: "secret1"})
		assert.ErrorIs(t, err, service.ErrInvalidCredentials)
	})
}

func TestAuthenticate(t *testing.T) {
	users := new(MockUserRepo)
	svc, tokens, _ := newAuthService(users, new(MockFriendRepo), new(MockImageStore))

	token, err := tokens.Issue("u1")
	require.NoError(t, err)
	gone, err := tokens.Issue("gone")
	require.NoError(t, err)

	users.On("GetByID", mock.Anything, "u1").Return(&domain.User{ID: "u1"}, nil)
	users.On("GetByID", mock.Anything, "gone").Return(nil, domain.ErrNotFound)

	u, err := svc.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	_, err = svc.Authenticate(context.Background(), "garbage")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.Authenticate(context.Background(), gone)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestUpdateProfilePic(t *testing.T) {
	users := new(MockUserRepo)
	friends := new(MockFriendRepo)
	images := new(MockImageStore)
	svc, _, _ := newAuthService(users, friends, images)

	_, err := svc.UpdateProfilePic(context.Background(), "u1", "")
	assert.ErrorIs(t, err, service.ErrProfilePicRequired)

	images.On("Upload", mock.Anything, "data:image/png;base64,AAAA").Return("http://host/api/uploads/p.png", nil)
	users.On("UpdateProfilePic", mock.Anything, "u1", "http://host/api/uploads/p.png").Return(nil)
	users.On("GetByID", mock.Anything, "u1").Return(&domain.User{ID: "u1", ProfilePic: "http://host/api/uploads/p.png"}, nil)
	friends.On("ListFriends", mock.Anything, "u1").Return([]domain.UserSummary{}, nil)
	friends.On("ListRequests", mock.Anything, "u1").Return([]domain.UserSummary{}, nil)

	u, err := svc.UpdateProfilePic(context.Background(), "u1", "data:image/png;base64,AAAA")
	require.NoError(t, err)
	assert.Equal(t, "http://host/api/uploads/p.png", u.ProfilePic)
	users.AssertExpectations(t)
}
