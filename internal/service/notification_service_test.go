package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andressep95/notify-service/internal/config"
	"github.com/andressep95/notify-service/internal/domain"
	"github.com/andressep95/notify-service/pkg/push"
)

func testConfig() *config.Config {
	return &config.Config{
		Push: config.PushConfig{
			Enabled:     true,
			Concurrency: 4,
			Timeout:     200 * time.Millisecond,
			PruneGone:   true,
		},
	}
}

func subscriptionsFor(userID uuid.UUID, endpoints ...string) []*domain.PushSubscription {
	subs := make([]*domain.PushSubscription, 0, len(endpoints))
	for _, ep := range endpoints {
		subs = append(subs, &domain.PushSubscription{
			ID:       uuid.New(),
			UserID:   userID,
			Endpoint: ep,
			P256dh:   "p256dh",
			Auth:     "auth",
		})
	}
	return subs
}

func TestDispatch_CreatesExactlyOneRow(t *testing.T) {
	tests := []struct {
		name      string
		endpoints []string
		failures  map[string]error
		delivered int
		failed    int
	}{
		{name: "no endpoints"},
		{name: "one endpoint", endpoints: []string{"https://a.push/1"}, delivered: 1},
		{
			name:      "many endpoints",
			endpoints: []string{"https://a.push/1", "https://b.push/2", "https://c.push/3"},
			delivered: 3,
		},
		{
			name:      "every delivery fails",
			endpoints: []string{"https://a.push/1", "https://b.push/2"},
			failures: map[string]error{
				"https://a.push/1": errors.New("connection refused"),
				"https://b.push/2": &push.StatusError{StatusCode: 500},
			},
			failed: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userID := uuid.New()
			notifications := &memNotificationRepo{}
			subs := &memSubscriptionRepo{subs: subscriptionsFor(userID, tt.endpoints...)}
			sender := &fakeSender{failures: tt.failures}
			svc := NewNotificationService(notifications, subs, sender, testConfig(), nopLogger())

			result, err := svc.Dispatch(context.Background(), userID, domain.NotificationPayload{Title: "Test", Body: "hi"})
			require.NoError(t, err)

			rows := notifications.forUser(userID)
			require.Len(t, rows, 1)
			assert.Equal(t, result.NotificationID, rows[0].ID)
			assert.False(t, rows[0].Read)
			assert.Equal(t, len(tt.endpoints), result.Endpoints)
			assert.Equal(t, tt.delivered, result.Delivered)
			assert.Equal(t, tt.failed, result.Failed)
			assert.Len(t, sender.attempted(), len(tt.endpoints))
		})
	}
}

func TestDispatch_FailingEndpointDoesNotStopOthers(t *testing.T) {
	userID := uuid.New()
	endpoints := []string{"https://a.push/1", "https://b.push/2", "https://c.push/3", "https://d.push/4"}
	notifications := &memNotificationRepo{}
	subs := &memSubscriptionRepo{subs: subscriptionsFor(userID, endpoints...)}
	sender := &fakeSender{
		failures: map[string]error{"https://a.push/1": errors.New("tls handshake timeout")},
		panics:   map[string]bool{"https://b.push/2": true},
		block:    map[string]bool{"https://c.push/3": true},
	}

	cfg := testConfig()
	cfg.Push.Concurrency = 1
	svc := NewNotificationService(notifications, subs, sender, cfg, nopLogger())

	result, err := svc.Dispatch(context.Background(), userID, domain.NotificationPayload{Title: "Test"})
	require.NoError(t, err)

	assert.Equal(t, endpoints, sender.attempted())
	assert.Equal(t, 4, result.Endpoints)
	assert.Equal(t, 1, result.Delivered)
	assert.Equal(t, 3, result.Failed)
	assert.Len(t, notifications.forUser(userID), 1)

	byEndpoint := map[string]DeliveryOutcome{}
	for _, o := range result.Outcomes {
		byEndpoint[o.Endpoint] = o
	}
	assert.ErrorIs(t, byEndpoint["https://c.push/3"].Err, context.DeadlineExceeded)
	assert.ErrorContains(t, byEndpoint["https://b.push/2"].Err, "panicked")
	assert.NoError(t, byEndpoint["https://d.push/4"].Err)
}

func TestDispatch_PrunesGoneSubscriptions(t *testing.T) {
	userID := uuid.New()
	notifications := &memNotificationRepo{}
	subs := &memSubscriptionRepo{subs: subscriptionsFor(userID, "https://a.push/gone", "https://b.push/ok")}
	sender := &fakeSender{failures: map[string]error{
		"https://a.push/gone": fmt.Errorf("%w: status 410", push.ErrSubscriptionGone),
	}}
	svc := NewNotificationService(notifications, subs, sender, testConfig(), nopLogger())

	result, err := svc.Dispatch(context.Background(), userID, domain.NotificationPayload{Title: "Test"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Pruned)
	assert.Equal(t, []string{"https://a.push/gone"}, subs.deleted)

	remaining, err := subs.GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "https://b.push/ok", remaining[0].Endpoint)
}

func TestDispatch_PruneDisabledOrFailing(t *testing.T) {
	gone := fmt.Errorf("%w: status 404", push.ErrSubscriptionGone)

	t.Run("disabled", func(t *testing.T) {
		userID := uuid.New()
		subs := &memSubscriptionRepo{subs: subscriptionsFor(userID, "https://a.push/gone")}
		cfg := testConfig()
		cfg.Push.PruneGone = false
		svc := NewNotificationService(&memNotificationRepo{}, subs, &fakeSender{failures: map[string]error{"https://a.push/gone": gone}}, cfg, nopLogger())

		result, err := svc.Dispatch(context.Background(), userID, domain.NotificationPayload{Title: "Test"})
		require.NoError(t, err)
		assert.Zero(t, result.Pruned)
		assert.Empty(t, subs.deleted)
	})

	t.Run("delete fails", func(t *testing.T) {
		userID := uuid.New()
		subs := &memSubscriptionRepo{subs: subscriptionsFor(userID, "https://a.push/gone"), delErr: errors.New("db down")}
		svc := NewNotificationService(&memNotificationRepo{}, subs, &fakeSender{failures: map[string]error{"https://a.push/gone": gone}}, testConfig(), nopLogger())

		result, err := svc.Dispatch(context.Background(), userID, domain.NotificationPayload{Title: "Test"})
		require.NoError(t, err)
		assert.Zero(t, result.Pruned)
		assert.Equal(t, 1, result.Failed)
	})
}

func TestDispatch_StoreFailure(t *testing.T) {
	userID := uuid.New()
	notifications := &memNotificationRepo{createErr: errors.New("connection reset")}
	subs := &memSubscriptionRepo{subs: subscriptionsFor(userID, "https://a.push/1")}
	sender := &fakeSender{}
	svc := NewNotificationService(notifications, subs, sender, testConfig(), nopLogger())

	_, err := svc.Dispatch(context.Background(), userID, domain.NotificationPayload{Title: "Test"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStore)
	assert.Empty(t, sender.attempted(), "no delivery without a stored notification")
}

func TestDispatch_SubscriptionListFailureStillSucceeds(t *testing.T) {
	userID := uuid.New()
	notifications := &memNotificationRepo{}
	subs := &memSubscriptionRepo{listErr: errors.New("timeout")}
	svc := NewNotificationService(notifications, subs, &fakeSender{}, testConfig(), nopLogger())

	result, err := svc.Dispatch(context.Background(), userID, domain.NotificationPayload{Title: "Test"})
	require.NoError(t, err)
	assert.Zero(t, result.Endpoints)
	assert.Len(t, notifications.forUser(userID), 1)
}

func TestDispatch_NoSender(t *testing.T) {
	userID := uuid.New()
	notifications := &memNotificationRepo{}
	svc := NewNotificationService(notifications, &memSubscriptionRepo{}, nil, testConfig(), nopLogger())

	result, err := svc.Dispatch(context.Background(), userID, domain.NotificationPayload{Title: "Test"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, result.NotificationID)
	assert.Len(t, notifications.forUser(userID), 1)
}

func TestDispatch_Validation(t *testing.T) {
	notifications := &memNotificationRepo{}
	svc := NewNotificationService(notifications, &memSubscriptionRepo{}, &fakeSender{}, testConfig(), nopLogger())

	_, err := svc.Dispatch(context.Background(), uuid.New(), domain.NotificationPayload{Title: "   "})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Dispatch(context.Background(), uuid.New(), domain.NotificationPayload{
		Title:    "Test",
		Metadata: map[string]any{"bad": make(chan int)},
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Dispatch(context.Background(), uuid.Nil, domain.NotificationPayload{Title: "Test"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	assert.Zero(t, notifications.calls)
}

func TestDispatch_MessageContent(t *testing.T) {
	userID := uuid.New()
	notifications := &memNotificationRepo{}
	subs := &memSubscriptionRepo{subs: subscriptionsFor(userID, "https://a.push/1")}
	sender := &fakeSender{}
	svc := NewNotificationService(notifications, subs, sender, testConfig(), nopLogger())
	fixed := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	_, err := svc.Dispatch(context.Background(), userID, domain.NotificationPayload{
		Title:    "  New lesson  ",
		Body:     "Chapter 4 is live",
		URL:      "/courses/go/4",
		Tag:      "course-4",
		Metadata: map[string]any{"course": "go"},
	})
	require.NoError(t, err)

	stored := notifications.forUser(userID)[0]
	assert.Equal(t, "New lesson", stored.Title)
	require.NotNil(t, stored.URL)
	assert.Equal(t, "/courses/go/4", *stored.URL)
	assert.JSONEq(t, `{"course":"go"}`, string(stored.Metadata))
	assert.Equal(t, fixed, stored.CreatedAt)

	require.Len(t, sender.messages, 1)
	msg := sender.messages[0]
	assert.Equal(t, stored.ID.String(), msg.ID)
	assert.Equal(t, "course-4", msg.Tag)
	assert.Equal(t, "go", msg.Data["course"])
	assert.Equal(t, fixed.UnixMilli(), msg.Timestamp)
}

func TestMarkAllRead_Scenario(t *testing.T) {
	userID := uuid.New()
	notifications := &memNotificationRepo{}
	svc := NewNotificationService(notifications, &memSubscriptionRepo{}, &fakeSender{}, testConfig(), nopLogger())
	ctx := context.Background()

	_, err := svc.Dispatch(ctx, userID, domain.NotificationPayload{Title: "Test", Body: "hi"})
	require.NoError(t, err)

	unread, err := svc.UnreadCount(ctx, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)

	updated, err := svc.MarkAllRead(ctx, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, updated)

	updated, err = svc.MarkAllRead(ctx, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, updated)
}

func TestMarkAllRead_OnlyTouchesCaller(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()
	notifications := &memNotificationRepo{}
	svc := NewNotificationService(notifications, &memSubscriptionRepo{}, nil, testConfig(), nopLogger())
	ctx := context.Background()

	for _, u := range []uuid.UUID{alice, alice, bob} {
		_, err := svc.Dispatch(ctx, u, domain.NotificationPayload{Title: "Test"})
		require.NoError(t, err)
	}

	updated, err := svc.MarkAllRead(ctx, alice)
	require.NoError(t, err)
	assert.EqualValues(t, 2, updated)

	bobUnread, err := svc.UnreadCount(ctx, bob)
	require.NoError(t, err)
	assert.EqualValues(t, 1, bobUnread)
}

func TestMarkRead(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()
	notifications := &memNotificationRepo{}
	svc := NewNotificationService(notifications, &memSubscriptionRepo{}, nil, testConfig(), nopLogger())
	ctx := context.Background()

	result, err := svc.Dispatch(ctx, alice, domain.NotificationPayload{Title: "Test"})
	require.NoError(t, err)

	changed, err := svc.MarkRead(ctx, bob, result.NotificationID)
	require.NoError(t, err)
	assert.False(t, changed, "other users cannot acknowledge")

	changed, err = svc.MarkRead(ctx, alice, result.NotificationID)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = svc.MarkRead(ctx, alice, result.NotificationID)
	require.NoError(t, err)
	assert.False(t, changed, "already read is a no-op")

	changed, err = svc.MarkRead(ctx, alice, uuid.New())
	require.NoError(t, err)
	assert.False(t, changed, "missing is a no-op")
}

func TestReadState_Unauthenticated(t *testing.T) {
	notifications := &memNotificationRepo{}
	svc := NewNotificationService(notifications, &memSubscriptionRepo{}, nil, testConfig(), nopLogger())
	ctx := context.Background()

	_, err := svc.MarkRead(ctx, uuid.Nil, uuid.New())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.MarkAllRead(ctx, uuid.Nil)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.List(ctx, uuid.Nil, ListNotificationsRequest{})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.UnreadCount(ctx, uuid.Nil)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	assert.Zero(t, notifications.calls)
}

func TestReadState_StoreFailure(t *testing.T) {
	notifications := &memNotificationRepo{updateErr: errors.New("deadlock detected")}
	svc := NewNotificationService(notifications, &memSubscriptionRepo{}, nil, testConfig(), nopLogger())

	_, err := svc.MarkAllRead(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrStore)

	_, err = svc.MarkRead(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrStore)
}

func TestList_UnreadOnly(t *testing.T) {
	userID := uuid.New()
	notifications := &memNotificationRepo{}
	svc := NewNotificationService(notifications, &memSubscriptionRepo{}, nil, testConfig(), nopLogger())
	ctx := context.Background()

	first, err := svc.Dispatch(ctx, userID, domain.NotificationPayload{Title: "first"})
	require.NoError(t, err)
	_, err = svc.Dispatch(ctx, userID, domain.NotificationPayload{Title: "second"})
	require.NoError(t, err)

	_, err = svc.MarkRead(ctx, userID, first.NotificationID)
	require.NoError(t, err)

	all, err := svc.List(ctx, userID, ListNotificationsRequest{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	unread, err := svc.List(ctx, userID, ListNotificationsRequest{UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "second", unread[0].Title)
}

func TestStoreCallsHaveDeadline(t *testing.T) {
	userID := uuid.New()
	notifications := &memNotificationRepo{}
	subs := &memSubscriptionRepo{subs: subscriptionsFor(userID, "https://a.push/gone")}
	sender := &fakeSender{failures: map[string]error{"https://a.push/gone": push.ErrSubscriptionGone}}
	svc := NewNotificationService(notifications, subs, sender, testConfig(), nopLogger())
	ctx := context.Background()

	result, err := svc.Dispatch(ctx, userID, domain.NotificationPayload{Title: "Test"})
	require.NoError(t, err)
	require.Equal(t, 1, result.Pruned)

	_, err = svc.MarkRead(ctx, userID, result.NotificationID)
	require.NoError(t, err)
	_, err = svc.MarkAllRead(ctx, userID)
	require.NoError(t, err)
	_, err = svc.List(ctx, userID, ListNotificationsRequest{})
	require.NoError(t, err)
	_, err = svc.UnreadCount(ctx, userID)
	require.NoError(t, err)

	assert.Equal(t, []bool{true, true, true, true, true}, notifications.deadlines)
	assert.Equal(t, []bool{true, true}, subs.deadlines)
}

func TestQueryTimeout(t *testing.T) {
	assert.Equal(t, 5*time.Second, queryTimeout(nil))
	assert.Equal(t, 5*time.Second, queryTimeout(&config.Config{}))

	cfg := testConfig()
	cfg.Database.QueryTimeout = 750 * time.Millisecond
	assert.Equal(t, 750*time.Millisecond, queryTimeout(cfg))
}

func TestEndpointHost(t *testing.T) {
	assert.Equal(t, "fcm.googleapis.com", endpointHost("https://fcm.googleapis.com/fcm/send/abc"))
	assert.Equal(t, "invalid", endpointHost("::not a url"))
	assert.Equal(t, "invalid", endpointHost(""))
}
