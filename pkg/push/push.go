// Package push delivers notification payloads to browser push endpoints.
package push

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSubscriptionGone is returned when the push service reports the
	// registration as expired or unknown (HTTP 404 or 410).
	ErrSubscriptionGone = errors.New("push subscription is no longer valid")
	ErrInvalidConfig    = errors.New("invalid push configuration")
)

// Sender delivers one message to one endpoint.
type Sender interface {
	Send(ctx context.Context, sub Subscription, msg *Message) error
}

// Subscription is the addressing and key material of a Web Push registration.
type Subscription struct {
	Endpoint string
	P256dh   string
	Auth     string
}

// Message is the JSON document the service worker receives.
type Message struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	URL       string         `json:"url,omitempty"`
	Tag       string         `json:"tag,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// Config holds Web Push sender configuration
type Config struct {
	Subscriber      string        // mailto: or https: contact for the VAPID claim
	VAPIDPublicKey  string        // base64url encoded
	VAPIDPrivateKey string        // base64url encoded
	TTL             time.Duration // how long the push service may hold the message
	Urgency         string        // very-low, low, normal, high
	Timeout         time.Duration // HTTP request timeout
}

// StatusError reports a push service response that is neither success nor gone.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("push service returned status %d: %s", e.StatusCode, e.Body)
}
