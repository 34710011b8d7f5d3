package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/v2t/web/internal/auth"
	"github.com/v2t/web/internal/db"
	"github.com/v2t/web/internal/models"
)

// PostgresSessionStore is the durable session mirror backed by PostgreSQL.
type PostgresSessionStore struct {
	pool db.Pool
}

// NewPostgresSessionStore constructs a session store backed by PostgreSQL.
func NewPostgresSessionStore(pool db.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool}
}

// Save stores or replaces the session recorded under key.
func (s *PostgresSessionStore) Save(ctx context.Context, key string, session models.Session) error {
	userData, err := json.Marshal(session.User)
	if err != nil {
		return fmt.Errorf("encode session user: %w", err)
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO sessions (token_hash, user_data, expires_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (token_hash)
        DO UPDATE SET user_data = EXCLUDED.user_data, expires_at = EXCLUDED.expires_at
    `, key, userData, session.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	return nil
}

// Find loads the session recorded under key.
func (s *PostgresSessionStore) Find(ctx context.Context, key string) (models.Session, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return models.Session{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT user_data, expires_at
        FROM sessions
        WHERE token_hash = $1
    `, key)

	var (
		userData  []byte
		expiresAt time.Time
	)
	if err := row.Scan(&userData, &expiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, auth.ErrSessionNotFound
		}
		return models.Session{}, fmt.Errorf("select session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(userData, &session.User); err != nil {
		return models.Session{}, fmt.Errorf("decode session user: %w", err)
	}
	session.ExpiresAt = expiresAt.UTC()
	return session, nil
}

// Delete removes the session recorded under key.
func (s *PostgresSessionStore) Delete(ctx context.Context, key string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM sessions
        WHERE token_hash = $1
    `, key)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return auth.ErrSessionNotFound
	}

	return nil
}

// DeleteExpired removes every session that expired before now and reports how many went.
func (s *PostgresSessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
