package domain

import (
	"context"
	"time"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// ListOthers returns every user except excludeID, most recent conversation first.
	ListOthers(ctx context.Context, excludeID string) ([]*User, error)
	UpdateProfilePic(ctx context.Context, id, profilePic string) error
	// TouchLastMessage records the latest message preview on the given users.
	TouchLastMessage(ctx context.Context, ids []string, at time.Time, text string) error
}

// MessageRepository defines persistence operations for direct messages.
type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	// ListBetween returns the pair's history in ascending creation order.
	ListBetween(ctx context.Context, userA, userB string) ([]*Message, error)
	DeleteBetween(ctx context.Context, userA, userB string) error
}

// FriendRepository persists friend requests and the symmetric friend relation.
type FriendRepository interface {
	// CreateRequest records a pending request. created is false when the
	// same request was already pending.
	CreateRequest(ctx context.Context, requesterID, targetID string) (created bool, err error)
	// DeleteRequest removes a pending request; missing requests are not an error.
	DeleteRequest(ctx context.Context, requesterID, targetID string) error
	// Accept removes the pending request and creates both friend edges in one
	// unit of work. Returns ErrNotFound when no such request is pending.
	Accept(ctx context.Context, requesterID, targetID string) error
	AreFriends(ctx context.Context, userA, userB string) (bool, error)
	ListFriends(ctx context.Context, userID string) ([]UserSummary, error)
	// ListRequests returns the users with a pending request to userID.
	ListRequests(ctx context.Context, userID string) ([]UserSummary, error)
}
