package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"friendchat/internal/domain"
	"friendchat/internal/security"
)

// AuthService handles signup, login, session checks and profile updates.
type AuthService struct {
	users   domain.UserRepository
	friends domain.FriendRepository
	tokens  *security.TokenService
	hash    *security.PasswordHasher
	images  ImageStore
	log     *zap.Logger
}

func NewAuthService(
	users domain.UserRepository,
	friends domain.FriendRepository,
	tokens *security.TokenService,
	hash *security.PasswordHasher,
	images ImageStore,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		users:   users,
		friends: friends,
		tokens:  tokens,
		hash:    hash,
		images:  images,
		log:     log,
	}
}

type SignupInput struct {
	FullName string
	Email    string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

// Session is a user together with a freshly issued token.
type Session struct {
	Token string
	User  *domain.User
}

func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.FullName == "" || in.Email == "" || in.Password == "" {
		return nil, ErrMissingFields
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	hashed, err := s.hash.Hash(in.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return nil, err
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		FullName:       in.FullName,
		Email:          in.Email,
		HashedPassword: hashed,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	user.Friends = []domain.UserSummary{}
	user.FriendRequests = []domain.UserSummary{}

	s.log.Info("user signed up", zap.String("user_id", user.ID))
	return s.session(user)
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if err := s.hash.Verify(in.Password, user.HashedPassword); err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := populateFriends(ctx, s.friends, user); err != nil {
		return nil, err
	}
	return s.session(user)
}

// Authenticate resolves a session token to its user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	sub, err := s.tokens.Subject(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	user, err := s.users.GetByID(ctx, sub)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: user no longer exists", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// Profile returns the user with friends and pending requests populated.
func (s *AuthService) Profile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := lookupUser(ctx, s.users, userID)
	if err != nil {
		return nil, err
	}
	if err := populateFriends(ctx, s.friends, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) UpdateProfilePic(ctx context.Context, userID, image string) (*domain.User, error) {
	if image == "" {
		return nil, ErrProfilePicRequired
	}
	url, err := s.images.Upload(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("upload profile pic: %w", err)
	}
	if err := s.users.UpdateProfilePic(ctx, userID, url); err != nil {
		return nil, fmt.Errorf("update profile pic: %w", err)
	}
	return s.Profile(ctx, userID)
}

func (s *AuthService) session(user *domain.User) (*Session, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{Token: token, User: user}, nil
}

// TokenTTL is the lifetime of issued session tokens.
func (s *AuthService) TokenTTL() time.Duration {
	return s.tokens.TTL()
}
