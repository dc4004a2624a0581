// Package service implements the registration gatekeeper: the pending→active
// lifecycle for households, units and delegated admin accounts.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"collecta/internal/authz"
	"collecta/internal/events"
	nmodels "collecta/internal/notification/models"
	"collecta/internal/registration/models"
	id "collecta/pkg/domain"
	dErrors "collecta/pkg/domain-errors"
	"collecta/pkg/email"
	"collecta/pkg/platform/sentinel"
	"collecta/pkg/requestcontext"
)

// Store is the persistence surface the gatekeeper needs. Both the Postgres
// and the in-memory implementation satisfy it.
type Store interface {
	CreateAccount(ctx context.Context, account *models.Account, profile *models.AdminProfile) error
	FindAccount(ctx context.Context, accountID id.AccountID) (*models.Account, error)
	ActivateAccount(ctx context.Context, accountID id.AccountID, role id.Role, now time.Time) error
	RejectAccount(ctx context.Context, accountID id.AccountID, reason string, now time.Time) error

	CreateUnit(ctx context.Context, unit *models.Unit) error
	FindUnit(ctx context.Context, unitID id.UnitID) (*models.Unit, error)
	ActivateUnit(ctx context.Context, unitID id.UnitID, now time.Time) error
	RejectUnit(ctx context.Context, unitID id.UnitID, reason string, now time.Time) error

	CreateHousehold(ctx context.Context, h *models.Household) error
	FindHousehold(ctx context.Context, householdID id.HouseholdID) (*models.Household, error)
	ActivateHousehold(ctx context.Context, householdID id.HouseholdID, now time.Time) error
	RejectHousehold(ctx context.Context, householdID id.HouseholdID, reason string, now time.Time) error

	UnitAdmin(ctx context.Context, unitID id.UnitID) (id.AccountID, error)
	RegionAdmins(ctx context.Context, city string) ([]id.AccountID, error)
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

// Metrics is the subset of counters the gatekeeper increments.
type Metrics interface {
	RegistrationSubmitted(kind string)
	RegistrationResolved(kind, outcome string)
}

type Service struct {
	store    Store
	tx       StoreTx
	notifier Notifier
	sink     EventSink
	metrics  Metrics
	logger   *slog.Logger
}

type Option func(*Service)

func WithNotifier(n Notifier) Option   { return func(s *Service) { s.notifier = n } }
func WithEvents(sink EventSink) Option { return func(s *Service) { s.sink = sink } }
func WithMetrics(m Metrics) Option     { return func(s *Service) { s.metrics = m } }
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }
func WithStoreTx(txr StoreTx) Option   { return func(s *Service) { s.tx = txr } }

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
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

// ---------------------------------------------------------------------------
// Households
// ---------------------------------------------------------------------------

type SubmitHouseholdRequest struct {
	UnitID   id.UnitID
	HeadName string
	Contact  string
	Annual   id.Cents
}

func (s *Service) SubmitHousehold(ctx context.Context, req SubmitHouseholdRequest) (*models.Household, error) {
	actor := requestcontext.Actor(ctx)
	if err := authz.Require(actor, authz.OpSubmitHousehold); err != nil {
		return nil, err
	}

	unit, err := s.store.FindUnit(ctx, req.UnitID)
	if err != nil {
		return nil, translateStoreErr(err, "unit")
	}
	if unit.Status != models.StatusActive {
		return nil, dErrors.New(dErrors.CodeValidation, "unit is not active")
	}

	now := requestcontext.Now(ctx)
	annual := req.Annual
	if annual == 0 {
		annual = unit.DefaultAnnual
	}
	headName := strings.TrimSpace(req.HeadName)
	if headName == "" {
		headName = email.DeriveDisplayName(req.Contact)
	}
	household, err := models.NewHousehold(id.NewHouseholdID(), req.UnitID, actor.ID, headName, req.Contact, annual, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid household")
	}

	var pushed []nmodels.Notification
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.CreateHousehold(txCtx, household); err != nil {
			return translateStoreErr(err, "household")
		}
		pushed, err = s.notify(txCtx, []id.AccountID{unit.AdminID}, nmodels.Draft{
			Title:      "New household registration",
			Message:    household.HeadName + " registered a household awaiting approval",
			Type:       nmodels.TypeApprovalRequest,
			SourceKind: nmodels.SourceHousehold,
			SourceID:   household.ID.String(),
		})
		if err != nil {
			return err
		}
		return s.emit(txCtx, events.Event{
			Kind:      events.KindHouseholdSubmitted,
			SubjectID: household.ID.String(),
			ActorID:   actor.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.push(ctx, pushed)
	s.countSubmitted("household")
	return household, nil
}

func (s *Service) ApproveHousehold(ctx context.Context, householdID id.HouseholdID) error {
	actor := requestcontext.Actor(ctx)
	if err := authz.Require(actor, authz.OpApproveHousehold); err != nil {
		return err
	}

	household, err := s.store.FindHousehold(ctx, householdID)
	if err != nil {
		return translateStoreErr(err, "household")
	}
	if err := s.requireUnitAuthority(ctx, actor, household.UnitID); err != nil {
		return err
	}

	now := requestcontext.Now(ctx)
	var pushed []nmodels.Notification
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.ActivateHousehold(txCtx, householdID, now); err != nil {
			return translateTransitionErr(err, "household")
		}
		pushed, err = s.notify(txCtx, []id.AccountID{household.AccountID}, nmodels.Draft{
			Title:      "Household approved",
			Message:    "Your household registration was approved",
			Type:       nmodels.TypeStatusUpdate,
			SourceKind: nmodels.SourceHousehold,
			SourceID:   householdID.String(),
		})
		if err != nil {
			return err
		}
		return s.emit(txCtx, events.Event{
			Kind:      events.KindHouseholdApproved,
			SubjectID: householdID.String(),
			ActorID:   actor.ID.String(),
		})
	})
	if err != nil {
		return err
	}

	s.push(ctx, pushed)
	s.countResolved("household", "approved")
	return nil
}

func (s *Service) RejectHousehold(ctx context.Context, householdID id.HouseholdID, reason string) error {
	actor := requestcontext.Actor(ctx)
	if err := authz.Require(actor, authz.OpRejectHousehold); err != nil {
		return err
	}

	household, err := s.store.FindHousehold(ctx, householdID)
	if err != nil {
		return translateStoreErr(err, "household")
	}
	if err := s.requireUnitAuthority(ctx, actor, household.UnitID); err != nil {
		return err
	}

	now := requestcontext.Now(ctx)
	var pushed []nmodels.Notification
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.RejectHousehold(txCtx, householdID, reason, now); err != nil {
			return translateTransitionErr(err, "household")
		}
		pushed, err = s.notify(txCtx, []id.AccountID{household.AccountID}, nmodels.Draft{
			Title:      "Household rejected",
			Message:    rejectionMessage("Your household registration was rejected", reason),
			Type:       nmodels.TypeStatusUpdate,
			SourceKind: nmodels.SourceHousehold,
			SourceID:   householdID.String(),
		})
		if err != nil {
			return err
		}
		return s.emit(txCtx, events.Event{
			Kind:      events.KindHouseholdRejected,
			SubjectID: householdID.String(),
			ActorID:   actor.ID.String(),
		})
	})
	if err != nil {
		return err
	}

	s.push(ctx, pushed)
	s.countResolved("household", "rejected")
	return nil
}

// ---------------------------------------------------------------------------
// Units
// ---------------------------------------------------------------------------

type SubmitUnitRequest struct {
	Name          string
	City          string
	DefaultAnnual id.Cents
}

func (s *Service) SubmitUnit(ctx context.Context, req SubmitUnitRequest) (*models.Unit, error) {
	actor := requestcontext.Actor(ctx)
	if err := authz.Require(actor, authz.OpSubmitUnit); err != nil {
		return nil, err
	}
	if err := authz.RequireScope(actor, req.City); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	unit, err := models.NewUnit(id.NewUnitID(), req.Name, req.City, actor.ID, req.DefaultAnnual, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid unit")
	}

	recipients, err := s.approverPool(ctx, req.City)
	if err != nil {
		return nil, err
	}

	var pushed []nmodels.Notification
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.CreateUnit(txCtx, unit); err != nil {
			return translateStoreErr(err, "unit")
		}
		pushed, err = s.notify(txCtx, recipients, nmodels.Draft{
			Title:      "New unit registration",
			Message:    "Unit " + unit.Name + " awaits approval",
			Type:       nmodels.TypeApprovalRequest,
			SourceKind: nmodels.SourceUnit,
			SourceID:   unit.ID.String(),
		})
		if err != nil {
			return err
		}
		return s.emit(txCtx, events.Event{
			Kind:      events.KindUnitSubmitted,
			SubjectID: unit.ID.String(),
			ActorID:   actor.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.push(ctx, pushed)
	s.countSubmitted("unit")
	return unit, nil
}

func (s *Service) ApproveUnit(ctx context.Context, unitID id.UnitID) error {
	return s.resolveUnit(ctx, unitID, true, "")
}

func (s *Service) RejectUnit(ctx context.Context, unitID id.UnitID, reason string) error {
	return s.resolveUnit(ctx, unitID, false, reason)
}

func (s *Service) resolveUnit(ctx context.Context, unitID id.UnitID, approve bool, reason string) error {
	actor := requestcontext.Actor(ctx)
	op := authz.OpApproveUnit
	if !approve {
		op = authz.OpRejectUnit
	}
	if err := authz.Require(actor, op); err != nil {
		return err
	}

	unit, err := s.store.FindUnit(ctx, unitID)
	if err != nil {
		return translateStoreErr(err, "unit")
	}
	if err := authz.RequireScope(actor, unit.City); err != nil {
		return err
	}

	now := requestcontext.Now(ctx)
	var pushed []nmodels.Notification
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var draft nmodels.Draft
		var kind events.Kind
		if approve {
			if err := s.store.ActivateUnit(txCtx, unitID, now); err != nil {
				return translateTransitionErr(err, "unit")
			}
			draft = nmodels.Draft{
				Title:      "Unit approved",
				Message:    "Unit " + unit.Name + " is now active",
				Type:       nmodels.TypeStatusUpdate,
				SourceKind: nmodels.SourceUnit,
				SourceID:   unitID.String(),
			}
			kind = events.KindUnitApproved
		} else {
			if err := s.store.RejectUnit(txCtx, unitID, reason, now); err != nil {
				return translateTransitionErr(err, "unit")
			}
			draft = nmodels.Draft{
				Title:      "Unit rejected",
				Message:    rejectionMessage("Unit "+unit.Name+" was rejected", reason),
				Type:       nmodels.TypeStatusUpdate,
				SourceKind: nmodels.SourceUnit,
				SourceID:   unitID.String(),
			}
			kind = events.KindUnitRejected
		}
		pushed, err = s.notify(txCtx, []id.AccountID{unit.AdminID}, draft)
		if err != nil {
			return err
		}
		return s.emit(txCtx, events.Event{
			Kind:      kind,
			SubjectID: unitID.String(),
			ActorID:   actor.ID.String(),
		})
	})
	if err != nil {
		return err
	}

	s.push(ctx, pushed)
	if approve {
		s.countResolved("unit", "approved")
	} else {
		s.countResolved("unit", "rejected")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Delegated admin accounts
// ---------------------------------------------------------------------------

type SubmitAdminRequest struct {
	Name    string
	Contact string
	City    string
	Role    id.Role
}

// SubmitAdmin registers a delegated admin: the generic account row plus the
// role-specific profile row, both pending.
func (s *Service) SubmitAdmin(ctx context.Context, req SubmitAdminRequest) (*models.Account, error) {
	actor := requestcontext.Actor(ctx)
	if err := authz.Require(actor, authz.OpSubmitAdmin); err != nil {
		return nil, err
	}
	if req.Role != id.RoleUnitAdmin && req.Role != id.RoleRegionAdmin {
		return nil, dErrors.New(dErrors.CodeValidation, "admin role must be unit_admin or region_admin")
	}

	now := requestcontext.Now(ctx)
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = email.DeriveDisplayName(req.Contact)
	}
	account, err := models.NewAccount(id.NewAccountID(), name, req.Contact, req.Role, req.City, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid account")
	}
	profile := &models.AdminProfile{
		AccountID: account.ID,
		City:      req.City,
		Status:    models.StatusPending,
		UpdatedAt: now,
	}

	recipients, err := s.store.GlobalAdmins(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve approvers")
	}

	var pushed []nmodels.Notification
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.CreateAccount(txCtx, account, profile); err != nil {
			return translateStoreErr(err, "account")
		}
		pushed, err = s.notify(txCtx, recipients, nmodels.Draft{
			Title:      "New admin registration",
			Message:    account.Name + " applied as " + string(req.Role) + " for " + req.City,
			Type:       nmodels.TypeApprovalRequest,
			SourceKind: nmodels.SourceAccount,
			SourceID:   account.ID.String(),
		})
		if err != nil {
			return err
		}
		return s.emit(txCtx, events.Event{
			Kind:      events.KindAdminSubmitted,
			SubjectID: account.ID.String(),
			ActorID:   actor.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.push(ctx, pushed)
	s.countSubmitted("admin")
	return account, nil
}

// ApproveAdmin activates the account row and the role profile row in one
// transaction. A profile row missing mid-flight is a partial-activation
// integrity failure: the transaction aborts and the error escalates.
func (s *Service) ApproveAdmin(ctx context.Context, accountID id.AccountID) error {
	actor := requestcontext.Actor(ctx)
	if err := authz.Require(actor, authz.OpApproveAdmin); err != nil {
		return err
	}

	account, err := s.store.FindAccount(ctx, accountID)
	if err != nil {
		return translateStoreErr(err, "account")
	}

	now := requestcontext.Now(ctx)
	var pushed []nmodels.Notification
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.ActivateAccount(txCtx, accountID, account.Role, now); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.Wrap(err, dErrors.CodePartialFailure, "account activation would be partial")
			}
			return translateTransitionErr(err, "account")
		}
		pushed, err = s.notify(txCtx, []id.AccountID{accountID}, nmodels.Draft{
			Title:      "Registration approved",
			Message:    "Your admin registration was approved",
			Type:       nmodels.TypeStatusUpdate,
			SourceKind: nmodels.SourceAccount,
			SourceID:   accountID.String(),
		})
		if err != nil {
			return err
		}
		return s.emit(txCtx, events.Event{
			Kind:      events.KindAdminApproved,
			SubjectID: accountID.String(),
			ActorID:   actor.ID.String(),
		})
	})
	if err != nil {
		return err
	}

	s.push(ctx, pushed)
	s.countResolved("admin", "approved")
	return nil
}

func (s *Service) RejectAdmin(ctx context.Context, accountID id.AccountID, reason string) error {
	actor := requestcontext.Actor(ctx)
	if err := authz.Require(actor, authz.OpRejectAdmin); err != nil {
		return err
	}

	now := requestcontext.Now(ctx)
	var pushed []nmodels.Notification
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.RejectAccount(txCtx, accountID, reason, now); err != nil {
			return translateTransitionErr(err, "account")
		}
		var err error
		pushed, err = s.notify(txCtx, []id.AccountID{accountID}, nmodels.Draft{
			Title:      "Registration rejected",
			Message:    rejectionMessage("Your admin registration was rejected", reason),
			Type:       nmodels.TypeStatusUpdate,
			SourceKind: nmodels.SourceAccount,
			SourceID:   accountID.String(),
		})
		if err != nil {
			return err
		}
		return s.emit(txCtx, events.Event{
			Kind:      events.KindAdminRejected,
			SubjectID: accountID.String(),
			ActorID:   actor.ID.String(),
		})
	})
	if err != nil {
		return err
	}

	s.push(ctx, pushed)
	s.countResolved("admin", "rejected")
	return nil
}

// ---------------------------------------------------------------------------
// Lookups
// ---------------------------------------------------------------------------

func (s *Service) GetHousehold(ctx context.Context, householdID id.HouseholdID) (*models.Household, error) {
	h, err := s.store.FindHousehold(ctx, householdID)
	if err != nil {
		return nil, translateStoreErr(err, "household")
	}
	return h, nil
}

func (s *Service) GetUnit(ctx context.Context, unitID id.UnitID) (*models.Unit, error) {
	u, err := s.store.FindUnit(ctx, unitID)
	if err != nil {
		return nil, translateStoreErr(err, "unit")
	}
	return u, nil
}

// ---------------------------------------------------------------------------
// Internal helpers
// ---------------------------------------------------------------------------

// requireUnitAuthority checks that the actor may act on entities of a unit: a
// unit admin must own the unit, region admins need covering scope.
func (s *Service) requireUnitAuthority(ctx context.Context, actor requestcontext.ActorInfo, unitID id.UnitID) error {
	unit, err := s.store.FindUnit(ctx, unitID)
	if err != nil {
		return translateStoreErr(err, "unit")
	}
	if actor.Role == id.RoleUnitAdmin {
		if unit.AdminID != actor.ID {
			return dErrors.New(dErrors.CodeForbidden, "unit is administered by another account")
		}
		return nil
	}
	return authz.RequireScope(actor, unit.City)
}

// approverPool returns the region admins for a city, falling back to global
// admins when the region has none.
func (s *Service) approverPool(ctx context.Context, city string) ([]id.AccountID, error) {
	recipients, err := s.store.RegionAdmins(ctx, city)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve approvers")
	}
	if len(recipients) == 0 {
		recipients, err = s.store.GlobalAdmins(ctx)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve approvers")
		}
	}
	return recipients, nil
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

func (s *Service) countSubmitted(kind string) {
	if s.metrics != nil {
		s.metrics.RegistrationSubmitted(kind)
	}
}

func (s *Service) countResolved(kind, outcome string) {
	if s.metrics != nil {
		s.metrics.RegistrationResolved(kind, outcome)
	}
}

func rejectionMessage(base, reason string) string {
	if reason == "" {
		return base
	}
	return base + ": " + reason
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

func translateTransitionErr(err error, entity string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, entity+" not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, entity+" registration is already resolved")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "store unreachable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "store failure on "+entity)
	}
}
