package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"friendchat/internal/domain"
)

type FriendRepo struct {
	db *sql.DB
}

func NewFriendRepo(db *sql.DB) *FriendRepo {
	return &FriendRepo{db: db}
}

var _ domain.FriendRepository = (*FriendRepo)(nil)

func (r *FriendRepo) CreateRequest(ctx context.Context, requesterID, targetID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO friend_requests (requester_id, target_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (requester_id, target_id) DO NOTHING
	`, requesterID, targetID)
	if err != nil {
		return false, fmt.Errorf("insert friend request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *FriendRepo) DeleteRequest(ctx context.Context, requesterID, targetID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM friend_requests WHERE requester_id = $1 AND target_id = $2`,
		requesterID, targetID,
	)
	if err != nil {
		return fmt.Errorf("delete friend request: %w", err)
	}
	return nil
}

func (r *FriendRepo) Accept(ctx context.Context, requesterID, targetID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin accept tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`DELETE FROM friend_requests WHERE requester_id = $1 AND target_id = $2`,
		requesterID, targetID,
	)
	if err != nil {
		return fmt.Errorf("delete friend request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	// A crossing request in the other direction is settled too.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM friend_requests WHERE requester_id = $1 AND target_id = $2`,
		targetID, requesterID,
	); err != nil {
		return fmt.Errorf("delete reverse friend request: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO friendships (user_id, friend_id, created_at)
		VALUES ($1, $2, NOW()), ($2, $1, NOW())
		ON CONFLICT (user_id, friend_id) DO NOTHING
	`, requesterID, targetID); err != nil {
		return fmt.Errorf("insert friendship: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit accept tx: %w", err)
	}
	return nil
}

func (r *FriendRepo) AreFriends(ctx context.Context, userA, userB string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM friendships WHERE user_id = $1 AND friend_id = $2)`,
		userA, userB,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check friendship: %w", err)
	}
	return exists, nil
}

func (r *FriendRepo) ListFriends(ctx context.Context, userID string) ([]domain.UserSummary, error) {
	return r.listSummaries(ctx, `
		SELECT u.id, u.full_name, u.profile_pic
		FROM friendships f JOIN users u ON u.id = f.friend_id
		WHERE f.user_id = $1
		ORDER BY f.created_at ASC, u.full_name ASC
	`, userID)
}

func (r *FriendRepo) ListRequests(ctx context.Context, userID string) ([]domain.UserSummary, error) {
	return r.listSummaries(ctx, `
		SELECT u.id, u.full_name, u.profile_pic
		FROM friend_requests fr JOIN users u ON u.id = fr.requester_id
		WHERE fr.target_id = $1
		ORDER BY fr.created_at ASC, u.full_name ASC
	`, userID)
}

func (r *FriendRepo) listSummaries(ctx context.Context, query string, args ...any) ([]domain.UserSummary, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	res := []domain.UserSummary{}
	for rows.Next() {
		var s domain.UserSummary
		if err := rows.Scan(&s.ID, &s.FullName, &s.ProfilePic); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
