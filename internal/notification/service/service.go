// Package service implements the notification dispatcher: transactional
// creation alongside the triggering mutation, best-effort push after commit,
// and pull-based reconciliation for clients that missed frames.
package service

import (
	"context"
	"errors"
	"log/slog"

	"collecta/internal/notification/models"
	"collecta/internal/notification/push"
	id "collecta/pkg/domain"
	dErrors "collecta/pkg/domain-errors"
	"collecta/pkg/platform/sentinel"
	"collecta/pkg/requestcontext"
)

const defaultFeedLimit = 50

// Store is the notification persistence surface.
type Store interface {
	CreateBatch(ctx context.Context, notes []models.Notification) error
	ListForRecipient(ctx context.Context, recipientID id.AccountID, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, recipientID id.AccountID, notificationID id.NotificationID) error
	MarkAllRead(ctx context.Context, recipientID id.AccountID) (int, error)
	MarkReadBySource(ctx context.Context, recipientID id.AccountID, kind models.SourceKind) (int, error)
	UnreadCounts(ctx context.Context, recipientID id.AccountID) (models.PendingCounts, error)
	Find(ctx context.Context, notificationID id.NotificationID) (*models.Notification, error)
}

// Metrics is the subset of counters the dispatcher increments.
type Metrics interface {
	NotificationsEmitted(kind string, n int)
}

type Service struct {
	store   Store
	broker  push.Broker
	metrics Metrics
	logger  *slog.Logger
}

type Option func(*Service)

func WithBroker(b push.Broker) Option  { return func(s *Service) { s.broker = b } }
func WithMetrics(m Metrics) Option     { return func(s *Service) { s.metrics = m } }
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Notify fans a draft out to its recipients and persists the rows. It joins
// the transaction carried in ctx, so the notifications commit or roll back
// with the mutation that caused them. Push happens separately after commit.
func (s *Service) Notify(ctx context.Context, recipients []id.AccountID, draft models.Draft) ([]models.Notification, error) {
	if len(recipients) == 0 {
		return nil, nil
	}
	now := requestcontext.Now(ctx)
	notes := make([]models.Notification, 0, len(recipients))
	for _, r := range recipients {
		notes = append(notes, models.Notification{
			ID:          id.NewNotificationID(),
			RecipientID: r,
			Title:       draft.Title,
			Message:     draft.Message,
			Type:        draft.Type,
			SourceKind:  draft.SourceKind,
			SourceID:    draft.SourceID,
			CreatedAt:   now,
		})
	}
	if err := s.store.CreateBatch(ctx, notes); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create notifications")
	}
	if s.metrics != nil {
		s.metrics.NotificationsEmitted(string(draft.SourceKind), len(notes))
	}
	return notes, nil
}

// Push publishes insert frames for committed notifications. Failures are
// logged and swallowed: push is a hint, Refresh is the source of truth.
func (s *Service) Push(ctx context.Context, notes []models.Notification) {
	if s.broker == nil {
		return
	}
	for _, n := range notes {
		msg := push.Message{Op: push.OpInsert, Notification: n}
		if err := s.broker.Publish(ctx, n.RecipientID, msg); err != nil {
			s.logger.WarnContext(ctx, "push delivery failed",
				"notification_id", n.ID.String(),
				"recipient_id", n.RecipientID.String(),
				"error", err,
			)
		}
	}
}

// List returns the caller's feed, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]models.Notification, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	notes, err := s.store.ListForRecipient(ctx, actor.ID, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list notifications")
	}
	return notes, nil
}

// MarkRead acknowledges one notification of the caller. The flip is
// monotonic; repeats succeed without effect. An update frame is pushed so
// other open sessions of the same account converge.
func (s *Service) MarkRead(ctx context.Context, notificationID id.NotificationID) error {
	actor, err := requireActor(ctx)
	if err != nil {
		return err
	}
	if err := s.store.MarkRead(ctx, actor.ID, notificationID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "notification not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark notification read")
	}

	if s.broker != nil {
		if n, err := s.store.Find(ctx, notificationID); err == nil {
			msg := push.Message{Op: push.OpUpdate, Notification: *n}
			if err := s.broker.Publish(ctx, actor.ID, msg); err != nil {
				s.logger.WarnContext(ctx, "push delivery failed",
					"notification_id", notificationID.String(), "error", err)
			}
		}
	}
	return nil
}

// MarkAllRead resets the caller's unread set. No per-row push frames are
// sent; clients pick the reset up via Refresh.
func (s *Service) MarkAllRead(ctx context.Context) (int, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return 0, err
	}
	flipped, err := s.store.MarkAllRead(ctx, actor.ID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark notifications read")
	}
	return flipped, nil
}

// MarkReadBySource acknowledges the caller's unread set for one source kind.
// Idempotent: a second call finds nothing to flip and reports zero.
func (s *Service) MarkReadBySource(ctx context.Context, kind models.SourceKind) (int, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return 0, err
	}
	flipped, err := s.store.MarkReadBySource(ctx, actor.ID, kind)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark notifications read")
	}
	return flipped, nil
}

// PendingCounts buckets the caller's unread approval requests for the
// navigation badges.
func (s *Service) PendingCounts(ctx context.Context) (models.PendingCounts, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return models.PendingCounts{}, err
	}
	counts, err := s.store.UnreadCounts(ctx, actor.ID)
	if err != nil {
		return models.PendingCounts{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count notifications")
	}
	return counts, nil
}

// RefreshResult is the authoritative feed state: what a reconnecting client
// replaces its local inbox with.
type RefreshResult struct {
	Notifications []models.Notification `json:"notifications"`
	Counts        models.PendingCounts  `json:"pending_counts"`
}

// Refresh is the pull-based reconciliation fallback. The result wins over
// any optimistic local state.
func (s *Service) Refresh(ctx context.Context, limit int) (*RefreshResult, error) {
	notes, err := s.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	counts, err := s.PendingCounts(ctx)
	if err != nil {
		return nil, err
	}
	if notes == nil {
		notes = []models.Notification{}
	}
	return &RefreshResult{Notifications: notes, Counts: counts}, nil
}

func requireActor(ctx context.Context) (requestcontext.ActorInfo, error) {
	actor := requestcontext.Actor(ctx)
	if actor.ID.IsNil() {
		return requestcontext.ActorInfo{}, dErrors.New(dErrors.CodeUnauthorized, "missing actor")
	}
	return actor, nil
}
