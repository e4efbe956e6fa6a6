package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"friendchat/internal/domain"
)

// MessageService persists direct messages and announces them live.
// Persistence always happens first; a failed write is never announced.
type MessageService struct {
	users    domain.UserRepository
	messages domain.MessageRepository
	images   ImageStore
	notifier Notifier
	log      *zap.Logger
}

func NewMessageService(
	users domain.UserRepository,
	messages domain.MessageRepository,
	images ImageStore,
	notifier Notifier,
	log *zap.Logger,
) *MessageService {
	return &MessageService{
		users:    users,
		messages: messages,
		images:   images,
		notifier: notifier,
		log:      log,
	}
}

type SendInput struct {
	SenderID   string
	ReceiverID string
	Text       string
	Image      string // data URL, uploaded before the message is stored
}

// SidebarUsers lists every other user, most recent conversation first.
func (s *MessageService) SidebarUsers(ctx context.Context, userID string) ([]*domain.User, error) {
	users, err := s.users.ListOthers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if users == nil {
		users = []*domain.User{}
	}
	return users, nil
}

func (s *MessageService) History(ctx context.Context, userID, otherID string) ([]*domain.Message, error) {
	msgs, err := s.messages.ListBetween(ctx, userID, otherID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if msgs == nil {
		msgs = []*domain.Message{}
	}
	return msgs, nil
}

func (s *MessageService) Send(ctx context.Context, in SendInput) (*domain.Message, error) {
	if in.Text == "" && in.Image == "" {
		return nil, ErrEmptyMessage
	}
	if _, err := lookupUser(ctx, s.users, in.ReceiverID); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		Text:       in.Text,
	}
	if in.Image != "" {
		url, err := s.images.Upload(ctx, in.Image)
		if err != nil {
			return nil, fmt.Errorf("upload image: %w", err)
		}
		msg.Image = url
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	// The message is stored; a stale sidebar preview is not worth failing the send.
	if err := s.users.TouchLastMessage(ctx, []string{in.SenderID, in.ReceiverID}, msg.CreatedAt, msg.Preview()); err != nil {
		s.log.Warn("update last message preview", zap.String("message_id", msg.ID), zap.Error(err))
	}

	s.notifier.Deliver(in.ReceiverID, domain.EventNewMessage, msg)
	return msg, nil
}

// Clear deletes the whole history between the two users.
func (s *MessageService) Clear(ctx context.Context, userID, otherID string) error {
	if err := s.messages.DeleteBetween(ctx, userID, otherID); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	s.log.Info("chat cleared", zap.String("user_id", userID), zap.String("other_id", otherID))
	return nil
}
