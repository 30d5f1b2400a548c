package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/andressep95/notify-service/internal/config"
	"github.com/andressep95/notify-service/internal/domain"
	"github.com/andressep95/notify-service/internal/repository"
	"github.com/andressep95/notify-service/pkg/fingerprint"
)

type DeviceService struct {
	sessionRepo  repository.SessionRepository
	queryTimeout time.Duration
	logger       *zerolog.Logger
}

type TrackDeviceRequest struct {
	Fingerprint string             `json:"fingerprint" validate:"omitempty,max=256"`
	DeviceInfo  *domain.DeviceInfo `json:"deviceInfo"`
}

// TrackDeviceInput combines the request body with what the transport layer
// knows about the caller.
type TrackDeviceInput struct {
	UserID           uuid.UUID
	SessionTokenHash string
	UserAgent        string
	ClientIP         string
	Request          TrackDeviceRequest
}

func NewDeviceService(sessionRepo repository.SessionRepository, cfg *config.Config, logger *zerolog.Logger) *DeviceService {
	return &DeviceService{
		sessionRepo:  sessionRepo,
		queryTimeout: queryTimeout(cfg),
		logger:       logger,
	}
}

// TrackDevice records the caller's latest user agent, IP address and
// fingerprint on their current session. Repeating the call with the same
// input leaves the row unchanged.
func (s *DeviceService) TrackDevice(ctx context.Context, in TrackDeviceInput) error {
	if in.UserID == uuid.Nil || in.SessionTokenHash == "" {
		return domain.ErrUnauthorized
	}

	// Header values may carry bytes that are not valid UTF-8
	ip := strings.TrimSpace(strings.ToValidUTF8(in.ClientIP, ""))
	if ip == "" {
		ip = domain.UnknownIP
	}
	userAgent := strings.ToValidUTF8(in.UserAgent, string(utf8.RuneError))

	update := domain.DeviceUpdate{
		UserID:      in.UserID,
		TokenHash:   in.SessionTokenHash,
		UserAgent:   Truncate(userAgent, domain.MaxUserAgentLength),
		IPAddress:   Truncate(ip, domain.MaxIPAddressLength),
		Fingerprint: resolveFingerprint(in.Request),
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.sessionRepo.UpdateDevice(storeCtx, update)
	if err != nil {
		s.logger.Error().Err(err).
			Str("user_id", in.UserID.String()).
			Msg("failed to track device")
		return fmt.Errorf("%w: %w", domain.ErrStore, err)
	}

	if rows == 0 {
		s.logger.Warn().
			Str("user_id", in.UserID.String()).
			Msg("track device matched no active session")
	}

	return nil
}

// DeviceSession is one active session as shown to its owner. The token hash
// is never exposed.
type DeviceSession struct {
	ID          uuid.UUID `json:"id"`
	UserAgent   *string   `json:"userAgent,omitempty"`
	IPAddress   *string   `json:"ipAddress,omitempty"`
	Fingerprint *string   `json:"fingerprint,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt"`
	CreatedAt   time.Time `json:"createdAt"`
	IsCurrent   bool      `json:"isCurrent"`
}

// ListDevices returns the caller's active sessions with the device metadata
// recorded by TrackDevice, flagging the one making the request.
func (s *DeviceService) ListDevices(ctx context.Context, userID uuid.UUID, currentTokenHash string) ([]DeviceSession, error) {
	if userID == uuid.Nil {
		return nil, domain.ErrUnauthorized
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	sessions, err := s.sessionRepo.ListActiveByUserID(storeCtx, userID)
	if err != nil {
		s.logger.Error().Err(err).
			Str("user_id", userID.String()).
			Msg("failed to list devices")
		return nil, fmt.Errorf("%w: %w", domain.ErrStore, err)
	}

	devices := make([]DeviceSession, len(sessions))
	for i, session := range sessions {
		devices[i] = DeviceSession{
			ID:          session.ID,
			UserAgent:   session.UserAgent,
			IPAddress:   session.IPAddress,
			Fingerprint: session.DeviceFingerprint,
			ExpiresAt:   session.ExpiresAt,
			CreatedAt:   session.CreatedAt,
			IsCurrent:   currentTokenHash != "" && session.TokenHash == currentTokenHash,
		}
	}

	return devices, nil
}

// resolveFingerprint prefers the client's value and otherwise derives one
// from posted device signals. nil keeps whatever the session already holds.
func resolveFingerprint(req TrackDeviceRequest) *string {
	fp := strings.TrimSpace(req.Fingerprint)
	if fp == "" && req.DeviceInfo != nil {
		fp = fingerprint.Generate(signalsFromDeviceInfo(req.DeviceInfo))
	}
	if fp == "" {
		return nil
	}

	fp = Truncate(fp, domain.MaxFingerprintLength)
	return &fp
}

func signalsFromDeviceInfo(info *domain.DeviceInfo) fingerprint.Signals {
	canvas := info.Canvas
	return fingerprint.Signals{
		UserAgent:      info.UserAgent,
		Language:       info.Language,
		ScreenWidth:    info.ScreenWidth,
		ScreenHeight:   info.ScreenHeight,
		ColorDepth:     info.ColorDepth,
		TimezoneOffset: info.TimezoneOffset,
		Canvas: func() (string, error) {
			if canvas == "" {
				return "", fmt.Errorf("no canvas sample")
			}
			return canvas, nil
		},
	}
}

// Truncate shortens s to at most n characters without splitting a rune.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
