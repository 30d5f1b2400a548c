package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/andressep95/notify-service/internal/domain"
)

type SessionRepository interface {
	// GetByTokenHash returns the unexpired session owning tokenHash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)
	// ListActiveByUserID returns the user's unexpired sessions, newest first.
	ListActiveByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Session, error)
	// UpdateDevice records device metadata on the session matching both the
	// user id and token hash of update, returning the number of rows changed.
	UpdateDevice(ctx context.Context, update domain.DeviceUpdate) (int64, error)
}
