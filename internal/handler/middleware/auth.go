package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/andressep95/notify-service/internal/domain"
	"github.com/andressep95/notify-service/internal/repository"
)

// Keys under which SessionAuth stores the caller in fiber.Locals.
const (
	LocalUserID           = "user_id"
	LocalSessionTokenHash = "session_token_hash"
)

// RevocationChecker reports sessions revoked by the authentication subsystem.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenHash string) (bool, error)
	IsUserRevoked(ctx context.Context, userID string, createdAt time.Time) (bool, error)
}

// SessionAuth resolves the session cookie (or a Bearer token) to an active
// session and stores its owner in fiber.Locals for downstream handlers.
func SessionAuth(sessionRepo repository.SessionRepository, revocations RevocationChecker, cookieName string, logger *zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := sessionToken(c, cookieName)
		if token == "" {
			return unauthorized(c, "missing session")
		}

		tokenHash := HashToken(token)

		revoked, err := revocations.IsRevoked(c.UserContext(), tokenHash)
		if err != nil {
			logger.Error().Err(err).Msg("failed to check session revocation")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "failed to verify session status",
			})
		}
		if revoked {
			return unauthorized(c, "session has been revoked")
		}

		session, err := sessionRepo.GetByTokenHash(c.UserContext(), tokenHash)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return unauthorized(c, "invalid session")
			}
			logger.Error().Err(err).Msg("failed to load session")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "failed to verify session status",
			})
		}

		// Sessions created before a user-wide invalidation are rejected
		userRevoked, err := revocations.IsUserRevoked(c.UserContext(), session.UserID.String(), session.CreatedAt)
		if err != nil {
			logger.Error().Err(err).Msg("failed to check user revocation")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "failed to verify session status",
			})
		}
		if userRevoked {
			return unauthorized(c, "session has been revoked")
		}

		c.Locals(LocalUserID, session.UserID)
		c.Locals(LocalSessionTokenHash, tokenHash)

		return c.Next()
	}
}

// HashToken returns the hex SHA-256 digest under which session tokens are stored.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func sessionToken(c *fiber.Ctx, cookieName string) string {
	if token := strings.TrimSpace(c.Cookies(cookieName)); token != "" {
		return token
	}

	parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return strings.TrimSpace(parts[1])
	}

	return ""
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}
