package domain

import "time"

// User represents an application user.
type User struct {
	ID              string     `bson:"_id" json:"_id"`
	FullName        string     `bson:"fullName" json:"fullName"`
	Email           string     `bson:"email" json:"email"`
	HashedPassword  string     `bson:"password" json:"-"`
	ProfilePic      string     `bson:"profilePic" json:"profilePic"`
	LastMessagedAt  *time.Time `bson:"lastMessagedAt,omitempty" json:"lastMessagedAt,omitempty"`
	LastMessageText string     `bson:"lastMessageText" json:"lastMessageText"`
	CreatedAt       time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time  `bson:"updatedAt" json:"updatedAt"`

	// Populated by services, not stored on the user row.
	Friends        []UserSummary `bson:"-" json:"friends"`
	FriendRequests []UserSummary `bson:"-" json:"friendRequests"`
}

// Summary returns the public card used in friend payloads.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, FullName: u.FullName, ProfilePic: u.ProfilePic}
}

// UserSummary is the {id, displayName, avatarRef} triple pushed with friend events.
type UserSummary struct {
	ID         string `bson:"_id" json:"_id"`
	FullName   string `bson:"fullName" json:"fullName"`
	ProfilePic string `bson:"profilePic" json:"profilePic"`
}

// Message is a direct message between two users. Immutable once stored.
type Message struct {
	ID         string    `bson:"_id" json:"_id"`
	SenderID   string    `bson:"senderId" json:"senderId"`
	ReceiverID string    `bson:"receiverId" json:"receiverId"`
	Text       string    `bson:"text,omitempty" json:"text,omitempty"`
	Image      string    `bson:"image,omitempty" json:"image,omitempty"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
}

// ImagePreview is shown in conversation previews for image-only messages.
const ImagePreview = "📷 Image"

// Preview returns the conversation preview text for the message.
func (m *Message) Preview() string {
	if m.Text != "" {
		return m.Text
	}
	if m.Image != "" {
		return ImagePreview
	}
	return ""
}

// Event names pushed over the realtime transport.
const (
	EventNewMessage            = "newMessage"
	EventReceiveFriendRequest  = "receive_friend_request"
	EventFriendRequestAccepted = "friend_request_accepted"
	EventOnlineUsers           = "getOnlineUsers"
)
