package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open opens a PostgreSQL database using the pgx stdlib driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate runs idempotent DDL migrations for the friendchat schema on PostgreSQL.
func Migrate(db *sql.DB) error {
	stmts := []string{
		// Users
		`CREATE TABLE IF NOT EXISTS users (
			id                TEXT         PRIMARY KEY,
			full_name         VARCHAR(100) NOT NULL,
			email             VARCHAR(255) UNIQUE NOT NULL,
			hashed_password   VARCHAR(255) NOT NULL,
			profile_pic       TEXT         NOT NULL DEFAULT '',
			last_messaged_at  TIMESTAMPTZ,
			last_message_text TEXT         NOT NULL DEFAULT '',
			created_at        TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			updated_at        TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		// Direct messages
		`CREATE TABLE IF NOT EXISTS messages (
			id          TEXT        PRIMARY KEY,
			seq         BIGSERIAL,
			sender_id   TEXT        NOT NULL REFERENCES users(id),
			receiver_id TEXT        NOT NULL REFERENCES users(id),
			text        TEXT        NOT NULL DEFAULT '',
			image       TEXT        NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Pending friend requests
		`CREATE TABLE IF NOT EXISTS friend_requests (
			requester_id TEXT        NOT NULL REFERENCES users(id),
			target_id    TEXT        NOT NULL REFERENCES users(id),
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (requester_id, target_id)
		)`,

		// Friend edges, one row per direction
		`CREATE TABLE IF NOT EXISTS friendships (
			user_id    TEXT        NOT NULL REFERENCES users(id),
			friend_id  TEXT        NOT NULL REFERENCES users(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, friend_id)
		)`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_users_last_messaged ON users(last_messaged_at DESC NULLS LAST)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, receiver_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_friend_requests_target ON friend_requests(target_id)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w\nSQL: %s", err, stmt)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
