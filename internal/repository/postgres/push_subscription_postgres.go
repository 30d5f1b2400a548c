package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/andressep95/notify-service/internal/domain"
	"github.com/andressep95/notify-service/internal/repository"
)

type pushSubscriptionRepository struct {
	db *sqlx.DB
}

// NewPushSubscriptionRepository creates a new PostgreSQL push subscription repository
func NewPushSubscriptionRepository(db *sqlx.DB) repository.PushSubscriptionRepository {
	return &pushSubscriptionRepository{db: db}
}

// GetByUserID retrieves every push registration of a user
func (r *pushSubscriptionRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.PushSubscription, error) {
	query := `
		SELECT id, user_id, endpoint, p256dh, auth, user_agent, created_at
		FROM push_subscriptions
		WHERE user_id = $1
		ORDER BY created_at`

	subscriptions := []*domain.PushSubscription{}
	err := r.db.SelectContext(ctx, &subscriptions, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get push subscriptions by user id: %w", err)
	}

	return subscriptions, nil
}

// DeleteByEndpoint removes a user's registration for endpoint. Deleting an
// endpoint that is already gone is not an error.
func (r *pushSubscriptionRepository) DeleteByEndpoint(ctx context.Context, userID uuid.UUID, endpoint string) error {
	query := `DELETE FROM push_subscriptions WHERE user_id = $1 AND endpoint = $2`

	if _, err := r.db.ExecContext(ctx, query, userID, endpoint); err != nil {
		return fmt.Errorf("failed to delete push subscription: %w", err)
	}

	return nil
}
