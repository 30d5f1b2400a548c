package service

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/andressep95/notify-service/internal/domain"
	"github.com/andressep95/notify-service/internal/repository"
	"github.com/andressep95/notify-service/pkg/push"
)

func nopLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

type memNotificationRepo struct {
	mu        sync.Mutex
	rows      []*domain.Notification
	createErr error
	updateErr error
	calls     int
	deadlines []bool
}

func hasDeadline(ctx context.Context) bool {
	_, ok := ctx.Deadline()
	return ok
}

func (r *memNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.deadlines = append(r.deadlines, hasDeadline(ctx))
	if r.createErr != nil {
		return r.createErr
	}
	cp := *n
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *memNotificationRepo) ListByUserID(ctx context.Context, userID uuid.UUID, filter repository.NotificationFilter) ([]*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.deadlines = append(r.deadlines, hasDeadline(ctx))
	out := []*domain.Notification{}
	for _, n := range r.rows {
		if n.UserID == userID && (!filter.UnreadOnly || !n.Read) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memNotificationRepo) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.deadlines = append(r.deadlines, hasDeadline(ctx))
	var count int64
	for _, n := range r.rows {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (r *memNotificationRepo) MarkRead(ctx context.Context, userID, id uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.deadlines = append(r.deadlines, hasDeadline(ctx))
	if r.updateErr != nil {
		return 0, r.updateErr
	}
	for _, n := range r.rows {
		if n.ID == id && n.UserID == userID && !n.Read {
			n.Read = true
			return 1, nil
		}
	}
	return 0, nil
}

func (r *memNotificationRepo) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.deadlines = append(r.deadlines, hasDeadline(ctx))
	if r.updateErr != nil {
		return 0, r.updateErr
	}
	var changed int64
	for _, n := range r.rows {
		if n.UserID == userID && !n.Read {
			n.Read = true
			changed++
		}
	}
	return changed, nil
}

func (r *memNotificationRepo) forUser(userID uuid.UUID) []*domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Notification
	for _, n := range r.rows {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

type memSubscriptionRepo struct {
	mu        sync.Mutex
	subs      []*domain.PushSubscription
	listErr   error
	delErr    error
	deleted   []string
	deadlines []bool
}

func (r *memSubscriptionRepo) GetByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.PushSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deadlines = append(r.deadlines, hasDeadline(ctx))
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []*domain.PushSubscription
	for _, s := range r.subs {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memSubscriptionRepo) DeleteByEndpoint(ctx context.Context, userID uuid.UUID, endpoint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deadlines = append(r.deadlines, hasDeadline(ctx))
	if r.delErr != nil {
		return r.delErr
	}
	r.deleted = append(r.deleted, endpoint)
	kept := r.subs[:0]
	for _, s := range r.subs {
		if !(s.UserID == userID && s.Endpoint == endpoint) {
			kept = append(kept, s)
		}
	}
	r.subs = kept
	return nil
}

// fakeSender fails endpoints listed in failures and records every attempt.
type fakeSender struct {
	mu       sync.Mutex
	failures map[string]error
	panics   map[string]bool
	block    map[string]bool
	attempts []string
	messages []*push.Message
}

func (s *fakeSender) Send(ctx context.Context, sub push.Subscription, msg *push.Message) error {
	s.mu.Lock()
	s.attempts = append(s.attempts, sub.Endpoint)
	s.messages = append(s.messages, msg)
	fail := s.failures[sub.Endpoint]
	shouldPanic := s.panics[sub.Endpoint]
	shouldBlock := s.block[sub.Endpoint]
	s.mu.Unlock()

	if shouldPanic {
		panic("transport exploded")
	}
	if shouldBlock {
		<-ctx.Done()
		return ctx.Err()
	}
	return fail
}

func (s *fakeSender) attempted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.attempts...)
	sort.Strings(out)
	return out
}

type fakeSessionRepo struct {
	mu        sync.Mutex
	updates   []domain.DeviceUpdate
	sessions  []*domain.Session
	rows      int64
	err       error
	deadlines []bool
}

func (r *fakeSessionRepo) GetByTokenHash(context.Context, string) (*domain.Session, error) {
	return nil, domain.ErrNotFound
}

func (r *fakeSessionRepo) ListActiveByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deadlines = append(r.deadlines, hasDeadline(ctx))
	if r.err != nil {
		return nil, r.err
	}
	var out []*domain.Session
	for _, s := range r.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) UpdateDevice(ctx context.Context, update domain.DeviceUpdate) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deadlines = append(r.deadlines, hasDeadline(ctx))
	r.updates = append(r.updates, update)
	if r.err != nil {
		return 0, r.err
	}
	return r.rows, nil
}
