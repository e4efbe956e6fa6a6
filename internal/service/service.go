package service

import (
	"context"
	"errors"
	"fmt"

	"friendchat/internal/domain"
)

// Sentinel errors used by handlers to map to HTTP status codes.
var (
	ErrMissingFields      = errors.New("all fields are required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already exists")
	ErrProfilePicRequired = errors.New("profile pic is required")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmptyMessage       = errors.New("message must contain text or an image")
	ErrSelfRequest        = errors.New("cannot send a friend request to yourself")
	ErrAlreadyFriends     = errors.New("already friends")
	ErrNoPendingRequest   = errors.New("no pending friend request from this user")
)

// Notifier pushes a best-effort live event to one user.
type Notifier interface {
	Deliver(userID, event string, payload any)
}

// ImageStore turns an inline image into a hosted URL.
type ImageStore interface {
	Upload(ctx context.Context, dataURL string) (string, error)
}

// populateFriends fills the friend and pending-request lists on u.
func populateFriends(ctx context.Context, friends domain.FriendRepository, u *domain.User) error {
	fs, err := friends.ListFriends(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("list friends: %w", err)
	}
	reqs, err := friends.ListRequests(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("list friend requests: %w", err)
	}
	u.Friends = fs
	u.FriendRequests = reqs
	return nil
}

// lookupUser maps a missing user to ErrUserNotFound.
func lookupUser(ctx context.Context, users domain.UserRepository, id string) (*domain.User, error) {
	u, err := users.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}
