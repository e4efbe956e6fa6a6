package service_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"friendchat/internal/domain"
)

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) ListOthers(ctx context.Context, excludeID string) ([]*domain.User, error) {
	args := m.Called(ctx, excludeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

func (m *MockUserRepo) UpdateProfilePic(ctx context.Context, id, profilePic string) error {
	args := m.Called(ctx, id, profilePic)
	return args.Error(0)
}

func (m *MockUserRepo) TouchLastMessage(ctx context.Context, ids []string, at time.Time, text string) error {
	args := m.Called(ctx, ids, at, text)
	return args.Error(0)
}

type MockMessageRepo struct {
	mock.Mock
}

func (m *MockMessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepo) ListBetween(ctx context.Context, userA, userB string) ([]*domain.Message, error) {
	args := m.Called(ctx, userA, userB)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

func (m *MockMessageRepo) DeleteBetween(ctx context.Context, userA, userB string) error {
	args := m.Called(ctx, userA, userB)
	return args.Error(0)
}

type MockFriendRepo struct {
	mock.Mock
}

func (m *MockFriendRepo) CreateRequest(ctx context.Context, requesterID, targetID string) (bool, error) {
	args := m.Called(ctx, requesterID, targetID)
	return args.Bool(0), args.Error(1)
}

func (m *MockFriendRepo) DeleteRequest(ctx context.Context, requesterID, targetID string) error {
	args := m.Called(ctx, requesterID, targetID)
	return args.Error(0)
}

func (m *MockFriendRepo) Accept(ctx context.Context, requesterID, targetID string) error {
	args := m.Called(ctx, requesterID, targetID)
	return args.Error(0)
}

func (m *MockFriendRepo) AreFriends(ctx context.Context, userA, userB string) (bool, error) {
	args := m.Called(ctx, userA, userB)
	return args.Bool(0), args.Error(1)
}

func (m *MockFriendRepo) ListFriends(ctx context.Context, userID string) ([]domain.UserSummary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.UserSummary), args.Error(1)
}

func (m *MockFriendRepo) ListRequests(ctx context.Context, userID string) ([]domain.UserSummary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.UserSummary), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Deliver(userID, event string, payload any) {
	m.Called(userID, event, payload)
}

type MockImageStore struct {
	mock.Mock
}

func (m *MockImageStore) Upload(ctx context.Context, dataURL string) (string, error) {
	args := m.Called(ctx, dataURL)
	return args.String(0), args.Error(1)
}
