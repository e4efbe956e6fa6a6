package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"friendchat/internal/domain"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// HTTPAPI talks to the REST endpoints. The session cookie set by signup or
// login is kept in a cookie jar and sent on every later call.
type HTTPAPI struct {
	base   string
	client *http.Client
}

var _ API = (*HTTPAPI)(nil)

func NewHTTPAPI(baseURL string) (*HTTPAPI, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	return &HTTPAPI{
		base:   strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{Jar: jar, Timeout: 30 * time.Second},
	}, nil
}

func (a *HTTPAPI) BaseURL() string { return a.base }

func (a *HTTPAPI) Signup(ctx context.Context, fullName, email, password string) (domain.User, error) {
	var u domain.User
	err := a.do(ctx, http.MethodPost, "/api/auth/signup", map[string]string{
		"fullName": fullName, "email": email, "password": password,
	}, &u)
	return u, err
}

func (a *HTTPAPI) Login(ctx context.Context, email, password string) (domain.User, error) {
	var u domain.User
	err := a.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"email": email, "password": password,
	}, &u)
	return u, err
}

func (a *HTTPAPI) Logout(ctx context.Context) error {
	return a.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// Check returns the session's user, or an *APIError with status 401.
func (a *HTTPAPI) Check(ctx context.Context) (domain.User, error) {
	var u domain.User
	err := a.do(ctx, http.MethodGet, "/api/auth/check", nil, &u)
	return u, err
}

func (a *HTTPAPI) UpdateProfilePic(ctx context.Context, dataURL string) (domain.User, error) {
	var u domain.User
	err := a.do(ctx, http.MethodPut, "/api/auth/update-profile", map[string]string{"profilePic": dataURL}, &u)
	return u, err
}

func (a *HTTPAPI) Users(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	err := a.do(ctx, http.MethodGet, "/api/messages/users", nil, &users)
	return users, err
}

func (a *HTTPAPI) AllUsers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	err := a.do(ctx, http.MethodGet, "/api/friends/all", nil, &users)
	return users, err
}

func (a *HTTPAPI) Presence(ctx context.Context) ([]string, error) {
	var ids []string
	err := a.do(ctx, http.MethodGet, "/api/presence", nil, &ids)
	return ids, err
}

func (a *HTTPAPI) Messages(ctx context.Context, userID string) ([]domain.Message, error) {
	var msgs []domain.Message
	err := a.do(ctx, http.MethodGet, "/api/messages/"+url.PathEscape(userID), nil, &msgs)
	return msgs, err
}

func (a *HTTPAPI) SendMessage(ctx context.Context, receiverID string, p MessagePayload) (domain.Message, error) {
	var m domain.Message
	err := a.do(ctx, http.MethodPost, "/api/messages/send/"+url.PathEscape(receiverID), p, &m)
	return m, err
}

func (a *HTTPAPI) ClearChat(ctx context.Context, userID string) error {
	return a.do(ctx, http.MethodDelete, "/api/messages/clear/"+url.PathEscape(userID), nil, nil)
}

func (a *HTTPAPI) SendFriendRequest(ctx context.Context, userID string) error {
	return a.do(ctx, http.MethodPost, "/api/friends/request/"+url.PathEscape(userID), nil, nil)
}

func (a *HTTPAPI) AcceptFriendRequest(ctx context.Context, userID string) (domain.UserSummary, error) {
	var s domain.UserSummary
	err := a.do(ctx, http.MethodPost, "/api/friends/accept/"+url.PathEscape(userID), nil, &s)
	return s, err
}

func (a *HTTPAPI) RejectFriendRequest(ctx context.Context, userID string) error {
	return a.do(ctx, http.MethodPost, "/api/friends/reject/"+url.PathEscape(userID), nil, nil)
}

func (a *HTTPAPI) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.base+path, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Message == "" {
			e.Message = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Message}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
