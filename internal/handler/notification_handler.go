package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/andressep95/notify-service/internal/domain"
	"github.com/andressep95/notify-service/internal/service"
	"github.com/andressep95/notify-service/pkg/validator"
)

// Notifier is the notification surface the HTTP layer depends on.
type Notifier interface {
	Dispatch(ctx context.Context, userID uuid.UUID, payload domain.NotificationPayload) (*service.DispatchResult, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) (bool, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	List(ctx context.Context, userID uuid.UUID, req service.ListNotificationsRequest) ([]*domain.Notification, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
}

type NotificationHandler struct {
	notificationService Notifier
	validator           *validator.Validator
	logger              *zerolog.Logger
}

func NewNotificationHandler(notificationService Notifier, validator *validator.Validator, logger *zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		validator:           validator,
		logger:              logger,
	}
}

// List returns the caller's notifications, newest first
// GET /notifications
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	userID, _, ok := sessionFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req service.ListNotificationsRequest
	if err := c.QueryParser(&req); err != nil {
		return badRequest(c, "Invalid query parameters")
	}
	if err := h.validator.Validate(req); err != nil {
		return respondError(c, h.logger, err, "Failed to list notifications")
	}

	notifications, err := h.notificationService.List(c.UserContext(), userID, req)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to list notifications")
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"notifications": notifications,
		"count":         len(notifications),
	})
}

// UnreadCount returns how many notifications the caller has not read
// GET /notifications/unread-count
func (h *NotificationHandler) UnreadCount(c *fiber.Ctx) error {
	userID, _, ok := sessionFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	count, err := h.notificationService.UnreadCount(c.UserContext(), userID)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to count notifications")
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"unreadCount": count,
	})
}

// MarkRead flags one notification as read
// POST /notifications/:id/read
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	userID, _, ok := sessionFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	notificationID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid notification ID")
	}

	updated, err := h.notificationService.MarkRead(c.UserContext(), userID, notificationID)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to mark notification as read")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"updated": updated,
	})
}

// MarkAllRead flags every unread notification of the caller as read
// POST /notifications/mark-all-read
func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	userID, _, ok := sessionFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	count, err := h.notificationService.MarkAllRead(c.UserContext(), userID)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to mark notifications as read")
	}

	return c.JSON(fiber.Map{
		"success":      true,
		"updatedCount": count,
	})
}

// SendTest stores a fixed notification for the caller and pushes it to
// every registered endpoint
// POST /notifications/test
func (h *NotificationHandler) SendTest(c *fiber.Ctx) error {
	userID, _, ok := sessionFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	result, err := h.notificationService.Dispatch(c.UserContext(), userID, service.TestNotificationPayload)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to send test notification")
	}

	return c.JSON(fiber.Map{
		"success":      true,
		"message":      "Test notification sent",
		"notification": result,
	})
}
