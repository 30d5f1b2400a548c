package domain

import (
	"time"

	"github.com/google/uuid"
)

// Column bounds of the device metadata kept on a session row.
const (
	MaxUserAgentLength   = 255
	MaxIPAddressLength   = 45
	MaxFingerprintLength = 64
)

// UnknownIP is recorded when no client address can be derived from the request.
const UnknownIP = "unknown"

type Session struct {
	ID                uuid.UUID `json:"id" db:"id"`
	UserID            uuid.UUID `json:"user_id" db:"user_id"`
	TokenHash         string    `json:"-" db:"session_token_hash"`
	UserAgent         *string   `json:"user_agent,omitempty" db:"user_agent"`
	IPAddress         *string   `json:"ip_address,omitempty" db:"ip_address"`
	DeviceFingerprint *string   `json:"device_fingerprint,omitempty" db:"device_fingerprint"`
	ExpiresAt         time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// DeviceUpdate is the device metadata recorded on the caller's session.
type DeviceUpdate struct {
	UserID      uuid.UUID `db:"user_id"`
	TokenHash   string    `db:"session_token_hash"`
	UserAgent   string    `db:"user_agent"`
	IPAddress   string    `db:"ip_address"`
	Fingerprint *string   `db:"device_fingerprint"`
}
