package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/andressep95/notify-service/internal/domain"
)

type PushSubscriptionRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.PushSubscription, error)
	DeleteByEndpoint(ctx context.Context, userID uuid.UUID, endpoint string) error
}
