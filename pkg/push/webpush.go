package push

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// Topic header values must be at most 32 URL-safe base64 characters.
var topicPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

// WebPushSender implements Sender using VAPID-authenticated Web Push
type WebPushSender struct {
	client webpush.HTTPClient
	config *Config
}

// NewWebPushSender creates a new Web Push sender
func NewWebPushSender(config *Config) (*WebPushSender, error) {
	if config.VAPIDPublicKey == "" || config.VAPIDPrivateKey == "" {
		return nil, fmt.Errorf("%w: VAPID key pair is required", ErrInvalidConfig)
	}

	if config.Subscriber == "" {
		return nil, fmt.Errorf("%w: VAPID subscriber is required", ErrInvalidConfig)
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &WebPushSender{
		client: &http.Client{Timeout: timeout},
		config: config,
	}, nil
}

// WithHTTPClient replaces the HTTP client used to reach push services.
func (s *WebPushSender) WithHTTPClient(client webpush.HTTPClient) *WebPushSender {
	s.client = client
	return s
}

// Send encrypts msg for sub and posts it to the subscription endpoint
func (s *WebPushSender) Send(ctx context.Context, sub Subscription, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal push message: %w", err)
	}

	opts := &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.config.Subscriber,
		VAPIDPublicKey:  s.config.VAPIDPublicKey,
		VAPIDPrivateKey: s.config.VAPIDPrivateKey,
		TTL:             int(s.config.TTL.Seconds()),
		Urgency:         urgency(s.config.Urgency),
	}
	if topicPattern.MatchString(msg.Tag) {
		opts.Topic = msg.Tag
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, opts)
	if err != nil {
		return fmt.Errorf("failed to send push notification: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return fmt.Errorf("%w: status %d", ErrSubscriptionGone, resp.StatusCode)
	default:
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
}

func urgency(value string) webpush.Urgency {
	switch webpush.Urgency(value) {
	case webpush.UrgencyVeryLow, webpush.UrgencyLow, webpush.UrgencyHigh:
		return webpush.Urgency(value)
	default:
		return webpush.UrgencyNormal
	}
}
