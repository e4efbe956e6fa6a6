package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"friendchat/internal/domain"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

var _ domain.UserRepository = (*UserRepo)(nil)

const userColumns = `id, full_name, email, hashed_password, profile_pic, last_messaged_at, last_message_text, created_at, updated_at`

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	ts := now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, full_name, email, hashed_password, profile_pic, last_message_text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, '', ?, ?)
	`, u.ID, u.FullName, u.Email, u.HashedPassword, u.ProfilePic, toMillis(ts), toMillis(ts))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	u.CreatedAt, u.UpdatedAt = ts, ts
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

func (r *UserRepo) ListOthers(ctx context.Context, excludeID string) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id != ?
		ORDER BY last_messaged_at IS NULL, last_messaged_at DESC, full_name ASC
	`, excludeID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepo) UpdateProfilePic(ctx context.Context, id, profilePic string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET profile_pic = ?, updated_at = ? WHERE id = ?`,
		profilePic, toMillis(now()), id)
	if err != nil {
		return fmt.Errorf("update profile pic: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserRepo) TouchLastMessage(ctx context.Context, ids []string, at time.Time, text string) error {
	if len(ids) == 0 {
		return nil
	}
	args := []any{toMillis(at), text, toMillis(now())}
	marks := make([]string, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args = append(args, id)
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET last_messaged_at = ?, last_message_text = ?, updated_at = ?
		WHERE id IN (`+strings.Join(marks, ",")+`)
	`, args...)
	if err != nil {
		return fmt.Errorf("touch last message: %w", err)
	}
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *UserRepo) scanUser(row rowScanner) (*domain.User, error) {
	var (
		u                    domain.User
		lastAt               sql.NullInt64
		createdAt, updatedAt int64
	)
	err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.HashedPassword, &u.ProfilePic,
		&lastAt, &u.LastMessageText, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if lastAt.Valid {
		t := fromMillis(lastAt.Int64)
		u.LastMessagedAt = &t
	}
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return &u, nil
}
