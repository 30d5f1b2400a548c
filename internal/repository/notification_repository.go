package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/andressep95/notify-service/internal/domain"
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *domain.Notification) error
	ListByUserID(ctx context.Context, userID uuid.UUID, filter NotificationFilter) ([]*domain.Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) (int64, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

type NotificationFilter struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}
