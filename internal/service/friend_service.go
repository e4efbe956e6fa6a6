package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"friendchat/internal/domain"
)

// FriendService manages friend requests and the friend relation.
type FriendService struct {
	users    domain.UserRepository
	friends  domain.FriendRepository
	notifier Notifier
	log      *zap.Logger
}

func NewFriendService(
	users domain.UserRepository,
	friends domain.FriendRepository,
	notifier Notifier,
	log *zap.Logger,
) *FriendService {
	return &FriendService{
		users:    users,
		friends:  friends,
		notifier: notifier,
		log:      log,
	}
}

// All lists every other user with friends and pending requests populated.
func (s *FriendService) All(ctx context.Context, userID string) ([]*domain.User, error) {
	users, err := s.users.ListOthers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	for _, u := range users {
		if err := populateFriends(ctx, s.friends, u); err != nil {
			return nil, err
		}
	}
	if users == nil {
		users = []*domain.User{}
	}
	return users, nil
}

// Request records a pending request from userID to targetID. The target
// is notified only when the request is new.
func (s *FriendService) Request(ctx context.Context, userID, targetID string) (created bool, err error) {
	if userID == targetID {
		return false, ErrSelfRequest
	}
	if _, err := lookupUser(ctx, s.users, targetID); err != nil {
		return false, err
	}
	me, err := lookupUser(ctx, s.users, userID)
	if err != nil {
		return false, err
	}

	already, err := s.friends.AreFriends(ctx, userID, targetID)
	if err != nil {
		return false, fmt.Errorf("check friendship: %w", err)
	}
	if already {
		return false, ErrAlreadyFriends
	}

	created, err = s.friends.CreateRequest(ctx, userID, targetID)
	if err != nil {
		return false, fmt.Errorf("create friend request: %w", err)
	}
	if created {
		s.notifier.Deliver(targetID, domain.EventReceiveFriendRequest, me.Summary())
	}
	return created, nil
}

// Accept turns the pending request from requesterID into a friendship and
// returns the requester's summary.
func (s *FriendService) Accept(ctx context.Context, userID, requesterID string) (domain.UserSummary, error) {
	requester, err := lookupUser(ctx, s.users, requesterID)
	if err != nil {
		return domain.UserSummary{}, err
	}
	me, err := lookupUser(ctx, s.users, userID)
	if err != nil {
		return domain.UserSummary{}, err
	}

	if err := s.friends.Accept(ctx, requesterID, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.UserSummary{}, ErrNoPendingRequest
		}
		return domain.UserSummary{}, fmt.Errorf("accept friend request: %w", err)
	}

	s.log.Info("friend request accepted", zap.String("user_id", userID), zap.String("requester_id", requesterID))
	s.notifier.Deliver(requesterID, domain.EventFriendRequestAccepted, me.Summary())
	return requester.Summary(), nil
}

// Reject drops the pending request from requesterID, if any.
func (s *FriendService) Reject(ctx context.Context, userID, requesterID string) error {
	if err := s.friends.DeleteRequest(ctx, requesterID, userID); err != nil {
		return fmt.Errorf("reject friend request: %w", err)
	}
	return nil
}
