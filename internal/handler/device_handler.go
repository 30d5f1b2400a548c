package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/andressep95/notify-service/internal/service"
	"github.com/andressep95/notify-service/pkg/validator"
)

// DeviceTracker binds device metadata to the caller's session.
type DeviceTracker interface {
	TrackDevice(ctx context.Context, in service.TrackDeviceInput) error
}

type DeviceHandler struct {
	deviceService DeviceTracker
	validator     *validator.Validator
	logger        *zerolog.Logger
}

func NewDeviceHandler(deviceService DeviceTracker, validator *validator.Validator, logger *zerolog.Logger) *DeviceHandler {
	return &DeviceHandler{
		deviceService: deviceService,
		validator:     validator,
		logger:        logger,
	}
}

// TrackDevice records user agent, client IP and fingerprint on the session
// POST /track-device
func (h *DeviceHandler) TrackDevice(c *fiber.Ctx) error {
	userID, tokenHash, ok := sessionFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	// Both fields are optional, so an empty body is accepted
	var req service.TrackDeviceRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}

	if err := h.validator.Validate(req); err != nil {
		return respondError(c, h.logger, err, "Failed to track device")
	}

	err := h.deviceService.TrackDevice(c.UserContext(), service.TrackDeviceInput{
		UserID:           userID,
		SessionTokenHash: tokenHash,
		UserAgent:        c.Get(fiber.HeaderUserAgent),
		ClientIP:         clientIP(c),
		Request:          req,
	})
	if err != nil {
		return respondError(c, h.logger, err, "Failed to track device")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"tracked": true,
	})
}
