// Package service implements the change-request broker: scope relocation for
// delegated admins, applied as one atomic cascade across the account, its
// profile and every unit it administers.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"collecta/internal/authz"
	"collecta/internal/changerequest/models"
	"collecta/internal/events"
	nmodels "collecta/internal/notification/models"
	id "collecta/pkg/domain"
	dErrors "collecta/pkg/domain-errors"
	"collecta/pkg/platform/sentinel"
	"collecta/pkg/requestcontext"
)

// Store is the change-request persistence surface.
type Store interface {
	Create(ctx context.Context, cr *models.ChangeRequest) error
	Find(ctx context.Context, requestID id.ChangeRequestID) (*models.ChangeRequest, error)
	ListPending(ctx context.Context) ([]models.ChangeRequest, error)
	Transition(ctx context.Context, requestID id.ChangeRequestID, to models.Status, reason string, resolvedBy id.AccountID, now time.Time) error
}

// Cascader applies the relocation to registration state. Both methods must
// join the transaction carried in ctx; the registration stores satisfy this.
type Cascader interface {
	UpdateAdminScope(ctx context.Context, accountID id.AccountID, city string, now time.Time) error
	ReassignUnits(ctx context.Context, adminID id.AccountID, city string, now time.Time) (int, error)
}

// Directory resolves the approver pool.
type Directory interface {
	GlobalAdmins(ctx context.Context) ([]id.AccountID, error)
}

// StoreTx provides the transaction boundary for multi-row writes.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier creates notifications inside the current transaction and pushes
// them after it commits.
type Notifier interface {
	Notify(ctx context.Context, recipients []id.AccountID, draft nmodels.Draft) ([]nmodels.Notification, error)
	Push(ctx context.Context, notes []nmodels.Notification)
}

// EventSink appends a domain event inside the current transaction.
type EventSink interface {
	Emit(ctx context.Context, event events.Event) error
}

// Metrics is the subset of counters the broker increments.
type Metrics interface {
	ChangeRequestSubmitted()
	ChangeRequestResolved(outcome string)
}

type Service struct {
	store     Store
	cascader  Cascader
	directory Directory
	tx        StoreTx
	notifier  Notifier
	sink      EventSink
	metrics   Metrics
	logger    *slog.Logger
}

type Option func(*Service)

func WithNotifier(n Notifier) Option   { return func(s *Service) { s.notifier = n } }
func WithEvents(sink EventSink) Option { return func(s *Service) { s.sink = sink } }
func WithMetrics(m Metrics) Option     { return func(s *Service) { s.metrics = m } }
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }
func WithStoreTx(txr StoreTx) Option   { return func(s *Service) { s.tx = txr } }

func New(store Store, cascader Cascader, directory Directory, opts ...Option) *Service {
	s := &Service{store: store, cascader: cascader, directory: directory, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = passthroughTx{}
	}
	return s
}

type passthroughTx struct{}

func (passthroughTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type SubmitRequest struct {
	ToCity string
	Reason string
}

// Submit opens a relocation request for the caller's own scope. A requester
// may hold only one pending request at a time.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*models.ChangeRequest, error) {
	actor := requestcontext.Actor(ctx)
	if err := authz.Require(actor, authz.OpSubmitChangeRequest); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	cr, err := models.NewChangeRequest(actor.ID, actor.Scope, req.ToCity, req.Reason, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid change request")
	}

	recipients, err := s.directory.GlobalAdmins(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve approvers")
	}

	var pushed []nmodels.Notification
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.Create(txCtx, cr); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "a pending change request already exists")
			}
			return translateStoreErr(err, "change request")
		}
		pushed, err = s.notify(txCtx, recipients, nmodels.Draft{
			Title:      "Scope change requested",
			Message:    "Relocation from " + cr.FromCity + " to " + cr.ToCity + " awaits review",
			Type:       nmodels.TypeApprovalRequest,
			SourceKind: nmodels.SourceChangeRequest,
			SourceID:   cr.ID.String(),
		})
		if err != nil {
			return err
		}
		return s.emit(txCtx, events.Event{
			Kind:      events.KindChangeRequestSubmitted,
			SubjectID: cr.ID.String(),
			ActorID:   actor.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.push(ctx, pushed)
	if s.metrics != nil {
		s.metrics.ChangeRequestSubmitted()
	}
	return cr, nil
}

// Approve resolves the request and applies the relocation in one transaction:
// the status flip, the account and profile move, and the reassignment of
// every unit the requester administers. The status flip is conditional on
// 'pending', so a racing resolution leaves exactly one winner and no cascade
// runs for the loser.
func (s *Service) Approve(ctx context.Context, requestID id.ChangeRequestID) error {
	actor := requestcontext.Actor(ctx)
	if err := authz.Require(actor, authz.OpResolveChangeRequest); err != nil {
		return err
	}

	cr, err := s.store.Find(ctx, requestID)
	if err != nil {
		return translateStoreErr(err, "change request")
	}

	now := requestcontext.Now(ctx)
	var pushed []nmodels.Notification
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.Transition(txCtx, requestID, models.StatusApproved, "", actor.ID, now); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "change request is already resolved")
			}
			return translateStoreErr(err, "change request")
		}
		if err := s.cascader.UpdateAdminScope(txCtx, cr.RequesterID, cr.ToCity, now); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.Wrap(err, dErrors.CodePartialFailure, "scope change would be partial")
			}
			return translateStoreErr(err, "admin scope")
		}
		moved, err := s.cascader.ReassignUnits(txCtx, cr.RequesterID, cr.ToCity, now)
		if err != nil {
			return translateStoreErr(err, "units")
		}
		s.logger.InfoContext(txCtx, "scope change applied",
			"change_request_id", cr.ID.String(),
			"requester_id", cr.RequesterID.String(),
			"to_city", cr.ToCity,
			"units_moved", moved,
		)
		pushed, err = s.notify(txCtx, []id.AccountID{cr.RequesterID}, nmodels.Draft{
			Title:      "Scope change approved",
			Message:    "Your scope moved to " + cr.ToCity,
			Type:       nmodels.TypeStatusUpdate,
			SourceKind: nmodels.SourceChangeRequest,
			SourceID:   cr.ID.String(),
		})
		if err != nil {
			return err
		}
		return s.emit(txCtx, events.Event{
			Kind:      events.KindChangeRequestApproved,
			SubjectID: cr.ID.String(),
			ActorID:   actor.ID.String(),
		})
	})
	if err != nil {
		return err
	}

	s.push(ctx, pushed)
	if s.metrics != nil {
		s.metrics.ChangeRequestResolved("approved")
	}
	return nil
}

// Reject resolves the request without touching registration state.
func (s *Service) Reject(ctx context.Context, requestID id.ChangeRequestID, reason string) error {
	actor := requestcontext.Actor(ctx)
	if err := authz.Require(actor, authz.OpResolveChangeRequest); err != nil {
		return err
	}

	cr, err := s.store.Find(ctx, requestID)
	if err != nil {
		return translateStoreErr(err, "change request")
	}

	now := requestcontext.Now(ctx)
	var pushed []nmodels.Notification
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.Transition(txCtx, requestID, models.StatusRejected, reason, actor.ID, now); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "change request is already resolved")
			}
			return translateStoreErr(err, "change request")
		}
		message := "Your scope change request was rejected"
		if reason != "" {
			message += ": " + reason
		}
		pushed, err = s.notify(txCtx, []id.AccountID{cr.RequesterID}, nmodels.Draft{
			Title:      "Scope change rejected",
			Message:    message,
			Type:       nmodels.TypeStatusUpdate,
			SourceKind: nmodels.SourceChangeRequest,
			SourceID:   cr.ID.String(),
		})
		if err != nil {
			return err
		}
		return s.emit(txCtx, events.Event{
			Kind:      events.KindChangeRequestRejected,
			SubjectID: cr.ID.String(),
			ActorID:   actor.ID.String(),
		})
	})
	if err != nil {
		return err
	}

	s.push(ctx, pushed)
	if s.metrics != nil {
		s.metrics.ChangeRequestResolved("rejected")
	}
	return nil
}

func (s *Service) Get(ctx context.Context, requestID id.ChangeRequestID) (*models.ChangeRequest, error) {
	cr, err := s.store.Find(ctx, requestID)
	if err != nil {
		return nil, translateStoreErr(err, "change request")
	}
	return cr, nil
}

// ListPending returns the review queue, oldest first.
func (s *Service) ListPending(ctx context.Context) ([]models.ChangeRequest, error) {
	actor := requestcontext.Actor(ctx)
	if err := authz.Require(actor, authz.OpResolveChangeRequest); err != nil {
		return nil, err
	}
	out, err := s.store.ListPending(ctx)
	if err != nil {
		return nil, translateStoreErr(err, "change requests")
	}
	return out, nil
}

func (s *Service) notify(ctx context.Context, recipients []id.AccountID, draft nmodels.Draft) ([]nmodels.Notification, error) {
	if s.notifier == nil || len(recipients) == 0 {
		return nil, nil
	}
	notes, err := s.notifier.Notify(ctx, recipients, draft)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create notifications")
	}
	return notes, nil
}

func (s *Service) push(ctx context.Context, notes []nmodels.Notification) {
	if s.notifier == nil || len(notes) == 0 {
		return
	}
	s.notifier.Push(ctx, notes)
}

func (s *Service) emit(ctx context.Context, event events.Event) error {
	if s.sink == nil {
		return nil
	}
	if err := s.sink.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append event")
	}
	return nil
}

func translateStoreErr(err error, entity string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, entity+" not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, entity+" already exists")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "store unreachable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "store failure on "+entity)
	}
}
