package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/andressep95/notify-service/internal/domain"
	"github.com/andressep95/notify-service/internal/repository"
)

type sessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new PostgreSQL session repository
func NewSessionRepository(db *sqlx.DB) repository.SessionRepository {
	return &sessionRepository{db: db}
}

// GetByTokenHash retrieves an unexpired session by its token hash
func (r *sessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	query := `
		SELECT id, user_id, session_token_hash, user_agent,
			   ip_address, device_fingerprint, expires_at, created_at
		FROM sessions
		WHERE session_token_hash = $1 AND expires_at > $2`

	var session domain.Session
	err := r.db.GetContext(ctx, &session, query, tokenHash, time.Now())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session not found or expired: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get session by token: %w", err)
	}

	return &session, nil
}

// ListActiveByUserID retrieves all unexpired sessions for a user
func (r *sessionRepository) ListActiveByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Session, error) {
	query := `
		SELECT id, user_id, session_token_hash, user_agent,
			   ip_address, device_fingerprint, expires_at, created_at
		FROM sessions
		WHERE user_id = $1 AND expires_at > $2
		ORDER BY created_at DESC`

	var sessions []*domain.Session
	err := r.db.SelectContext(ctx, &sessions, query, userID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to get sessions by user ID: %w", err)
	}

	return sessions, nil
}

// UpdateDevice records the latest device metadata on the caller's session.
// The row is matched on user id and token hash in a single statement; a
// NULL fingerprint keeps the one already stored.
func (r *sessionRepository) UpdateDevice(ctx context.Context, update domain.DeviceUpdate) (int64, error) {
	query := `
		UPDATE sessions
		SET user_agent = :user_agent,
			ip_address = :ip_address,
			device_fingerprint = COALESCE(:device_fingerprint, device_fingerprint)
		WHERE user_id = :user_id
			AND session_token_hash = :session_token_hash
			AND expires_at > NOW()`

	result, err := r.db.NamedExecContext(ctx, query, update)
	if err != nil {
		return 0, fmt.Errorf("failed to update session device: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}
