package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/andressep95/notify-service/internal/domain"
	"github.com/andressep95/notify-service/internal/handler/middleware"
	"github.com/andressep95/notify-service/pkg/validator"
)

// clientIP resolves the caller address from proxy headers.
// Priority: first X-Forwarded-For hop > X-Real-IP > "unknown"
func clientIP(c *fiber.Ctx) string {
	if forwarded := c.Get(fiber.HeaderXForwardedFor); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if first != "" {
			return first
		}
	}

	if realIP := strings.TrimSpace(c.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	return domain.UnknownIP
}

// sessionFromContext returns what SessionAuth stored for this request.
func sessionFromContext(c *fiber.Ctx) (uuid.UUID, string, bool) {
	userID, ok := c.Locals(middleware.LocalUserID).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, "", false
	}
	tokenHash, _ := c.Locals(middleware.LocalSessionTokenHash).(string)
	return userID, tokenHash, true
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"error":   "Unauthorized",
	})
}

func badRequest(c *fiber.Ctx, message string, details ...validator.FieldError) error {
	body := fiber.Map{
		"success": false,
		"error":   message,
	}
	if len(details) > 0 {
		body["details"] = details
	}
	return c.Status(fiber.StatusBadRequest).JSON(body)
}

// respondError maps service errors onto HTTP statuses. Store failures are
// reported with the caller-supplied message and never leak driver text.
func respondError(c *fiber.Ctx, logger *zerolog.Logger, err error, message string) error {
	var fieldErrs validator.Errors
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return unauthorized(c)
	case errors.As(err, &fieldErrs):
		return badRequest(c, "Validation failed", fieldErrs...)
	case errors.Is(err, domain.ErrValidation), errors.Is(err, validator.ErrInvalid):
		return badRequest(c, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "Not found",
		})
	}

	logger.Error().Err(err).Str("path", c.Path()).Msg(message)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}
