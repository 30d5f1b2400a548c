package blacklist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "blacklist:session:"
	userKeyPrefix    = "blacklist:user:"
)

// SessionBlacklist tracks revoked sessions in Redis. Entries are written by
// the authentication subsystem on logout; this service only reads them, and
// offers the write side for tooling and tests.
type SessionBlacklist struct {
	redis *redis.Client
}

// NewSessionBlacklist creates a new session blacklist
func NewSessionBlacklist(redisClient *redis.Client) *SessionBlacklist {
	return &SessionBlacklist{
		redis: redisClient,
	}
}

// Revoke blacklists a session token hash until ttl elapses
func (b *SessionBlacklist) Revoke(ctx context.Context, tokenHash string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	if err := b.redis.Set(ctx, sessionKeyPrefix+tokenHash, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	return nil
}

// IsRevoked checks if a session token hash is blacklisted
func (b *SessionBlacklist) IsRevoked(ctx context.Context, tokenHash string) (bool, error) {
	exists, err := b.redis.Exists(ctx, sessionKeyPrefix+tokenHash).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session blacklist: %w", err)
	}

	return exists > 0, nil
}

// RevokeUser invalidates every session of a user created before now.
// The marker expires after ttl (should outlive the longest session).
func (b *SessionBlacklist) RevokeUser(ctx context.Context, userID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	if err := b.redis.Set(ctx, userKeyPrefix+userID, time.Now().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke user sessions: %w", err)
	}

	return nil
}

// IsUserRevoked checks if a session created at createdAt predates the user's
// invalidation marker
func (b *SessionBlacklist) IsUserRevoked(ctx context.Context, userID string, createdAt time.Time) (bool, error) {
	timestamp, err := b.redis.Get(ctx, userKeyPrefix+userID).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check user blacklist: %w", err)
	}

	return createdAt.Before(time.Unix(timestamp, 0)), nil
}

// Ping verifies the Redis connection
func (b *SessionBlacklist) Ping(ctx context.Context) error {
	return b.redis.Ping(ctx).Err()
}
