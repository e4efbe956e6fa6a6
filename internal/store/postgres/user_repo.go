package postgres

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
	query := `
		INSERT INTO users (id, full_name, email, hashed_password, profile_pic, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		u.ID, u.FullName, u.Email, u.HashedPassword, u.ProfilePic,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *UserRepo) ListOthers(ctx context.Context, excludeID string) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id <> $1
		ORDER BY last_messaged_at DESC NULLS LAST, full_name ASC
	`, excludeID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return r.scanUsers(rows)
}

func (r *UserRepo) UpdateProfilePic(ctx context.Context, id, profilePic string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET profile_pic = $1, updated_at = NOW() WHERE id = $2`,
		profilePic, id,
	)
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
	args := []any{at, text}
	marks := make([]string, len(ids))
	for i, id := range ids {
		args = append(args, id)
		marks[i] = fmt.Sprintf("$%d", len(args))
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET last_messaged_at = $1, last_message_text = $2, updated_at = NOW()
		WHERE id IN (`+strings.Join(marks, ", ")+`)
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

func scanInto(row rowScanner) (*domain.User, error) {
	u := &domain.User{}
	var lastAt sql.NullTime
	if err := row.Scan(
		&u.ID, &u.FullName, &u.Email, &u.HashedPassword, &u.ProfilePic,
		&lastAt, &u.LastMessageText, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if lastAt.Valid {
		t := lastAt.Time
		u.LastMessagedAt = &t
	}
	return u, nil
}

func (r *UserRepo) scanUser(ctx context.Context, query string, args ...any) (*domain.User, error) {
	u, err := scanInto(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func (r *UserRepo) scanUsers(rows *sql.Rows) ([]*domain.User, error) {
	defer rows.Close()
	var users []*domain.User
	for rows.Next() {
		u, err := scanInto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
