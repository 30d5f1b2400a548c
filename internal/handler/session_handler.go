package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/andressep95/notify-service/internal/service"
)

// DeviceLister lists the devices bound to a user's active sessions.
type DeviceLister interface {
	ListDevices(ctx context.Context, userID uuid.UUID, currentTokenHash string) ([]service.DeviceSession, error)
}

type SessionHandler struct {
	devices DeviceLister
	logger  *zerolog.Logger
}

func NewSessionHandler(devices DeviceLister, logger *zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		devices: devices,
		logger:  logger,
	}
}

// GetMyDevices lists all active sessions of the current user with the device
// metadata recorded on each
// GET /devices
func (h *SessionHandler) GetMyDevices(c *fiber.Ctx) error {
	userID, tokenHash, ok := sessionFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	devices, err := h.devices.ListDevices(c.UserContext(), userID, tokenHash)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to retrieve devices")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"devices": devices,
		"count":   len(devices),
	})
}
