package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/andressep95/notify-service/internal/config"
	"github.com/andressep95/notify-service/internal/domain"
	"github.com/andressep95/notify-service/internal/repository"
	"github.com/andressep95/notify-service/pkg/push"
)

// TestNotificationPayload is sent by the self-test endpoint.
var TestNotificationPayload = domain.NotificationPayload{
	Title: "Test notification",
	Body:  "Push notifications are working on this device.",
	URL:   "/notifications",
	Tag:   "test",
}

type NotificationService struct {
	notificationRepo repository.NotificationRepository
	subscriptionRepo repository.PushSubscriptionRepository
	sender           push.Sender
	concurrency      int
	timeout          time.Duration
	pruneGone        bool
	queryTimeout     time.Duration
	logger           *zerolog.Logger
	now              func() time.Time
}

// DeliveryOutcome is the result of one endpoint delivery attempt.
type DeliveryOutcome struct {
	Endpoint string
	Err      error
	Pruned   bool
}

// DispatchResult summarizes one Dispatch call.
type DispatchResult struct {
	NotificationID uuid.UUID         `json:"notification_id"`
	Endpoints      int               `json:"endpoints"`
	Delivered      int               `json:"delivered"`
	Failed         int               `json:"failed"`
	Pruned         int               `json:"pruned"`
	Outcomes       []DeliveryOutcome `json:"-"`
}

type ListNotificationsRequest struct {
	UnreadOnly bool `query:"unread"`
	Limit      int  `query:"limit" validate:"gte=0,lte=100"`
	Offset     int  `query:"offset" validate:"gte=0"`
}

// NewNotificationService wires the dispatcher. sender may be nil, in which
// case notifications are stored but never pushed.
func NewNotificationService(
	notificationRepo repository.NotificationRepository,
	subscriptionRepo repository.PushSubscriptionRepository,
	sender push.Sender,
	cfg *config.Config,
	logger *zerolog.Logger,
) *NotificationService {
	concurrency := cfg.Push.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	timeout := cfg.Push.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &NotificationService{
		notificationRepo: notificationRepo,
		subscriptionRepo: subscriptionRepo,
		sender:           sender,
		concurrency:      concurrency,
		timeout:          timeout,
		pruneGone:        cfg.Push.PruneGone,
		queryTimeout:     queryTimeout(cfg),
		logger:           logger,
		now:              time.Now,
	}
}

// Dispatch stores one notification for userID and pushes it to every
// registered endpoint of that user. Only a failure to store the notification
// is returned; delivery failures are logged and reported in the result.
func (s *NotificationService) Dispatch(ctx context.Context, userID uuid.UUID, payload domain.NotificationPayload) (*DispatchResult, error) {
	if userID == uuid.Nil {
		return nil, domain.ErrUnauthorized
	}

	notification, err := s.newNotification(userID, payload)
	if err != nil {
		return nil, err
	}

	if err := s.withStore(ctx, func(ctx context.Context) error {
		return s.notificationRepo.Create(ctx, notification)
	}); err != nil {
		s.logger.Error().Err(err).
			Str("user_id", userID.String()).
			Msg("failed to store notification")
		return nil, fmt.Errorf("%w: %w", domain.ErrStore, err)
	}

	result := &DispatchResult{NotificationID: notification.ID}

	if s.sender == nil {
		s.logger.Debug().
			Str("notification_id", notification.ID.String()).
			Msg("push delivery disabled, notification stored only")
		return result, nil
	}

	var subs []*domain.PushSubscription
	err = s.withStore(ctx, func(ctx context.Context) (err error) {
		subs, err = s.subscriptionRepo.GetByUserID(ctx, userID)
		return err
	})
	if err != nil {
		s.logger.Warn().Err(err).
			Str("user_id", userID.String()).
			Str("notification_id", notification.ID.String()).
			Msg("failed to list push subscriptions, skipping delivery")
		return result, nil
	}

	result.Endpoints = len(subs)
	result.Outcomes = s.fanOut(ctx, notification, subs)
	for _, outcome := range result.Outcomes {
		if outcome.Err == nil {
			result.Delivered++
			continue
		}
		result.Failed++
		if outcome.Pruned {
			result.Pruned++
		}
	}

	s.logger.Info().
		Str("user_id", userID.String()).
		Str("notification_id", notification.ID.String()).
		Int("endpoints", result.Endpoints).
		Int("delivered", result.Delivered).
		Int("failed", result.Failed).
		Int("pruned", result.Pruned).
		Msg("notification dispatched")

	return result, nil
}

func (s *NotificationService) newNotification(userID uuid.UUID, payload domain.NotificationPayload) (*domain.Notification, error) {
	title := strings.TrimSpace(payload.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}

	metadata := types.JSONText(`{}`)
	if len(payload.Metadata) > 0 {
		raw, err := json.Marshal(payload.Metadata)
		if err != nil {
			return nil, fmt.Errorf("%w: metadata is not valid JSON: %v", domain.ErrValidation, err)
		}
		metadata = raw
	}

	return &domain.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     Truncate(title, domain.MaxTitleLength),
		Body:      payload.Body,
		URL:       optional(payload.URL),
		Tag:       optional(Truncate(payload.Tag, domain.MaxTagLength)),
		Metadata:  metadata,
		CreatedAt: s.now().UTC(),
	}, nil
}

// fanOut delivers to every subscription with bounded concurrency. Tasks never
// return an error, so one failing endpoint cannot cancel the others.
func (s *NotificationService) fanOut(ctx context.Context, n *domain.Notification, subs []*domain.PushSubscription) []DeliveryOutcome {
	outcomes := make([]DeliveryOutcome, len(subs))
	if len(subs) == 0 {
		return outcomes
	}

	msg := &push.Message{
		ID:        n.ID.String(),
		Title:     n.Title,
		Body:      n.Body,
		URL:       deref(n.URL),
		Tag:       deref(n.Tag),
		Timestamp: n.CreatedAt.UnixMilli(),
	}
	if len(n.Metadata) > 0 {
		var data map[string]any
		if err := n.Metadata.Unmarshal(&data); err == nil && len(data) > 0 {
			msg.Data = data
		}
	}

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, sub := range subs {
		g.Go(func() error {
			outcomes[i] = s.deliver(ctx, sub, msg)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (s *NotificationService) deliver(ctx context.Context, sub *domain.PushSubscription, msg *push.Message) (outcome DeliveryOutcome) {
	outcome.Endpoint = sub.Endpoint
	log := s.logger.With().
		Str("user_id", sub.UserID.String()).
		Str("notification_id", msg.ID).
		Str("push_host", endpointHost(sub.Endpoint)).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			outcome.Err = fmt.Errorf("push sender panicked: %v", r)
			log.Error().Err(outcome.Err).Msg("push delivery failed")
		}
	}()

	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.sender.Send(sendCtx, push.Subscription{
		Endpoint: sub.Endpoint,
		P256dh:   sub.P256dh,
		Auth:     sub.Auth,
	}, msg)
	if err == nil {
		log.Debug().Msg("push delivered")
		return outcome
	}

	outcome.Err = err
	log.Warn().Err(err).Msg("push delivery failed")

	if s.pruneGone && errors.Is(err, push.ErrSubscriptionGone) {
		delErr := s.withStore(ctx, func(ctx context.Context) error {
			return s.subscriptionRepo.DeleteByEndpoint(ctx, sub.UserID, sub.Endpoint)
		})
		if delErr != nil {
			log.Warn().Err(delErr).Msg("failed to prune expired push subscription")
		} else {
			outcome.Pruned = true
			log.Info().Msg("pruned expired push subscription")
		}
	}

	return outcome
}

// MarkRead flags one notification of userID as read. It reports false
// without error when the notification is missing or already read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) (bool, error) {
	if userID == uuid.Nil {
		return false, domain.ErrUnauthorized
	}

	var rows int64
	err := s.withStore(ctx, func(ctx context.Context) (err error) {
		rows, err = s.notificationRepo.MarkRead(ctx, userID, notificationID)
		return err
	})
	if err != nil {
		s.logger.Error().Err(err).
			Str("user_id", userID.String()).
			Str("notification_id", notificationID.String()).
			Msg("failed to mark notification read")
		return false, fmt.Errorf("%w: %w", domain.ErrStore, err)
	}

	return rows > 0, nil
}

// MarkAllRead flags every unread notification of userID as read and returns
// how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, domain.ErrUnauthorized
	}

	var rows int64
	err := s.withStore(ctx, func(ctx context.Context) (err error) {
		rows, err = s.notificationRepo.MarkAllRead(ctx, userID)
		return err
	})
	if err != nil {
		s.logger.Error().Err(err).
			Str("user_id", userID.String()).
			Msg("failed to mark all notifications read")
		return 0, fmt.Errorf("%w: %w", domain.ErrStore, err)
	}

	return rows, nil
}

func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, req ListNotificationsRequest) ([]*domain.Notification, error) {
	if userID == uuid.Nil {
		return nil, domain.ErrUnauthorized
	}

	var notifications []*domain.Notification
	err := s.withStore(ctx, func(ctx context.Context) (err error) {
		notifications, err = s.notificationRepo.ListByUserID(ctx, userID, repository.NotificationFilter{
			UnreadOnly: req.UnreadOnly,
			Limit:      req.Limit,
			Offset:     req.Offset,
		})
		return err
	})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to list notifications")
		return nil, fmt.Errorf("%w: %w", domain.ErrStore, err)
	}

	return notifications, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, domain.ErrUnauthorized
	}

	var count int64
	err := s.withStore(ctx, func(ctx context.Context) (err error) {
		count, err = s.notificationRepo.CountUnread(ctx, userID)
		return err
	})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to count unread notifications")
		return 0, fmt.Errorf("%w: %w", domain.ErrStore, err)
	}

	return count, nil
}

// withStore runs one repository call under the query deadline.
func (s *NotificationService) withStore(ctx context.Context, call func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	return call(ctx)
}

// queryTimeout bounds every repository call made by the services.
func queryTimeout(cfg *config.Config) time.Duration {
	if cfg == nil || cfg.Database.QueryTimeout <= 0 {
		return 5 * time.Second
	}
	return cfg.Database.QueryTimeout
}

// endpointHost reduces a push endpoint URL to its host for logging.
func endpointHost(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "invalid"
	}
	return u.Host
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
