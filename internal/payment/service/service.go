// Package service implements the payment reconciliation engine: grouped
// contribution submissions, unit-admin verification with group-level cascade,
// manual entries and balance statements.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"collecta/internal/authz"
	"collecta/internal/events"
	nmodels "collecta/internal/notification/models"
	"collecta/internal/payment/models"
	rmodels "collecta/internal/registration/models"
	id "collecta/pkg/domain"
	dErrors "collecta/pkg/domain-errors"
	"collecta/pkg/platform/sentinel"
	platformstrings "collecta/pkg/platform/strings"
	"collecta/pkg/requestcontext"
)

// Store is the payment persistence surface.
type Store interface {
	CreateGroupWithPayments(ctx context.Context, group *models.PaymentGroup, payments []models.Payment) error
	FindGroup(ctx context.Context, groupID id.PaymentGroupID) (*models.PaymentGroup, error)
	ListGroupPayments(ctx context.Context, groupID id.PaymentGroupID) ([]models.Payment, error)
	ListHouseholdPayments(ctx context.Context, householdID id.HouseholdID) ([]models.Payment, error)
	ClaimedPeriods(ctx context.Context, householdID id.HouseholdID, periods []id.Period) ([]id.Period, error)
	TransitionGroup(ctx context.Context, groupID id.PaymentGroupID, to models.GroupStatus, reason string, now time.Time) error
	PaidTotal(ctx context.Context, householdID id.HouseholdID, year int) (id.Cents, error)
}

// Registry is the slice of the registration store the engine reads: it never
// mutates registration state, only resolves households, units and admins.
type Registry interface {
	FindHousehold(ctx context.Context, householdID id.HouseholdID) (*rmodels.Household, error)
	FindUnit(ctx context.Context, unitID id.UnitID) (*rmodels.Unit, error)
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

// Metrics is the subset of counters the engine increments.
type Metrics interface {
	PaymentGroupSubmitted(periods int)
	PaymentGroupResolved(outcome string)
	ManualEntryAdded()
}

type Service struct {
	store    Store
	registry Registry
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

func New(store Store, registry Registry, opts ...Option) *Service {
	s := &Service{store: store, registry: registry, logger: slog.Default()}
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
// Submission
// ---------------------------------------------------------------------------

type SubmitGroupRequest struct {
	HouseholdID id.HouseholdID
	// Periods in "YYYY-MM" form. Duplicates and surrounding whitespace are
	// tolerated; empty entries are dropped.
	Periods []string
	// AmountPerPeriod of zero means "use the household's monthly share".
	AmountPerPeriod id.Cents
	ReceiptRef      string
}

// Group bundles a payment group with its member payments for read paths.
type Group struct {
	models.PaymentGroup
	Payments []models.Payment `json:"payments"`
}

// SubmitGroup records a contribution covering one or more periods as a single
// pending group. All periods land or none do: a period already claimed by a
// live payment fails the whole submission with a conflict naming the periods.
func (s *Service) SubmitGroup(ctx context.Context, req SubmitGroupRequest) (*Group, error) {
	actor := requestcontext.Actor(ctx)
	if err := authz.Require(actor, authz.OpSubmitPaymentGroup); err != nil {
		return nil, err
	}

	household, err := s.registry.FindHousehold(ctx, req.HouseholdID)
	if err != nil {
		return nil, translateStoreErr(err, "household")
	}
	if household.Status != rmodels.StatusActive {
		return nil, dErrors.New(dErrors.CodeValidation, "household is not active")
	}
	if err := s.requirePaymentAuthority(ctx, actor, household); err != nil {
		return nil, err
	}

	periods, err := parsePeriods(req.Periods)
	if err != nil {
		return nil, err
	}
	amount := req.AmountPerPeriod
	if amount == 0 {
		amount = id.MonthlyShare(household.Annual)
	}

	claimed, err := s.store.ClaimedPeriods(ctx, req.HouseholdID, periods)
	if err != nil {
		return nil, translateStoreErr(err, "payments")
	}
	if len(claimed) > 0 {
		return nil, periodConflict(claimed)
	}

	now := requestcontext.Now(ctx)
	group, payments, err := models.NewGroup(req.HouseholdID, periods, amount, req.ReceiptRef, now)
	if err != nil {
		return nil, err
	}

	unit, err := s.registry.FindUnit(ctx, household.UnitID)
	if err != nil {
		return nil, translateStoreErr(err, "unit")
	}

	var pushed []nmodels.Notification
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.CreateGroupWithPayments(txCtx, group, payments); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				// A submission raced past the pre-check; the index caught it.
				return dErrors.Wrap(err, dErrors.CodeConflict, "period already covered by a pending or paid payment")
			}
			return translateStoreErr(err, "payment group")
		}
		pushed, err = s.notify(txCtx, []id.AccountID{unit.AdminID}, nmodels.Draft{
			Title:      "Payment awaiting verification",
			Message:    fmt.Sprintf("%s submitted a payment for %d period(s)", household.HeadName, len(payments)),
			Type:       nmodels.TypeApprovalRequest,
			SourceKind: nmodels.SourcePaymentGroup,
			SourceID:   group.ID.String(),
		})
		if err != nil {
			return err
		}
		return s.emit(txCtx, events.Event{
			Kind:      events.KindPaymentGroupSubmitted,
			SubjectID: group.ID.String(),
			ActorID:   actor.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.push(ctx, pushed)
	if s.metrics != nil {
		s.metrics.PaymentGroupSubmitted(len(payments))
	}
	return &Group{PaymentGroup: *group, Payments: payments}, nil
}

// ---------------------------------------------------------------------------
// Verification
// ---------------------------------------------------------------------------

// ApproveGroup flips a pending group to paid and cascades the status to every
// member payment in the same transaction. Of two racing resolutions exactly
// one wins; the other returns a conflict.
func (s *Service) ApproveGroup(ctx context.Context, groupID id.PaymentGroupID) error {
	return s.resolveGroup(ctx, groupID, models.GroupPaid, "")
}

// RejectGroup flips a pending group to rejected with a mandatory reason. The
// rejected periods become claimable again by resubmission.
func (s *Service) RejectGroup(ctx context.Context, groupID id.PaymentGroupID, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return dErrors.New(dErrors.CodeValidation, "a rejection reason is required")
	}
	return s.resolveGroup(ctx, groupID, models.GroupRejected, reason)
}

func (s *Service) resolveGroup(ctx context.Context, groupID id.PaymentGroupID, to models.GroupStatus, reason string) error {
	actor := requestcontext.Actor(ctx)
	if err := authz.Require(actor, authz.OpVerifyPaymentGroup); err != nil {
		return err
	}

	group, err := s.store.FindGroup(ctx, groupID)
	if err != nil {
		return translateStoreErr(err, "payment group")
	}
	household, err := s.registry.FindHousehold(ctx, group.HouseholdID)
	if err != nil {
		return translateStoreErr(err, "household")
	}
	if err := s.requireUnitAuthority(ctx, actor, household.UnitID); err != nil {
		return err
	}

	now := requestcontext.Now(ctx)
	var pushed []nmodels.Notification
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.TransitionGroup(txCtx, groupID, to, reason, now); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "payment group is already resolved")
			}
			return translateStoreErr(err, "payment group")
		}

		draft := nmodels.Draft{
			Title:      "Payment verified",
			Message:    "Your payment was verified",
			Type:       nmodels.TypeStatusUpdate,
			SourceKind: nmodels.SourcePaymentGroup,
			SourceID:   groupID.String(),
		}
		kind := events.KindPaymentGroupApproved
		if to == models.GroupRejected {
			draft.Title = "Payment rejected"
			draft.Message = "Your payment was rejected: " + reason
			kind = events.KindPaymentGroupRejected
		}
		pushed, err = s.notify(txCtx, []id.AccountID{household.AccountID}, draft)
		if err != nil {
			return err
		}
		return s.emit(txCtx, events.Event{
			Kind:      kind,
			SubjectID: groupID.String(),
			ActorID:   actor.ID.String(),
		})
	})
	if err != nil {
		return err
	}

	s.push(ctx, pushed)
	if s.metrics != nil {
		if to == models.GroupPaid {
			s.metrics.PaymentGroupResolved("approved")
		} else {
			s.metrics.PaymentGroupResolved("rejected")
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Manual entries
// ---------------------------------------------------------------------------

type ManualEntryRequest struct {
	HouseholdID id.HouseholdID
	Period      string
	// Amount of zero means "use the household's monthly share".
	Amount id.Cents
	Method string
}

// AddManualEntry records an offline payment (cash, bank counter) collected by
// a unit admin. The entry is born paid; no verification round-trip.
func (s *Service) AddManualEntry(ctx context.Context, req ManualEntryRequest) (*Group, error) {
	actor := requestcontext.Actor(ctx)
	if err := authz.Require(actor, authz.OpAddManualEntry); err != nil {
		return nil, err
	}

	household, err := s.registry.FindHousehold(ctx, req.HouseholdID)
	if err != nil {
		return nil, translateStoreErr(err, "household")
	}
	if household.Status != rmodels.StatusActive {
		return nil, dErrors.New(dErrors.CodeValidation, "household is not active")
	}
	if err := s.requireUnitAuthority(ctx, actor, household.UnitID); err != nil {
		return nil, err
	}

	period, err := id.ParsePeriod(strings.TrimSpace(req.Period))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid period")
	}
	amount := req.Amount
	if amount == 0 {
		amount = id.MonthlyShare(household.Annual)
	}

	claimed, err := s.store.ClaimedPeriods(ctx, req.HouseholdID, []id.Period{period})
	if err != nil {
		return nil, translateStoreErr(err, "payments")
	}
	if len(claimed) > 0 {
		return nil, periodConflict(claimed)
	}

	now := requestcontext.Now(ctx)
	group, payments, err := models.NewManualEntry(req.HouseholdID, period, amount, req.Method, now)
	if err != nil {
		return nil, err
	}

	var pushed []nmodels.Notification
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.CreateGroupWithPayments(txCtx, group, payments); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.Wrap(err, dErrors.CodeConflict, "period already covered by a pending or paid payment")
			}
			return translateStoreErr(err, "payment group")
		}
		pushed, err = s.notify(txCtx, []id.AccountID{household.AccountID}, nmodels.Draft{
			Title:      "Payment recorded",
			Message:    fmt.Sprintf("A %s payment for %s was recorded on your behalf", req.Method, period),
			Type:       nmodels.TypeStatusUpdate,
			SourceKind: nmodels.SourcePaymentGroup,
			SourceID:   group.ID.String(),
		})
		if err != nil {
			return err
		}
		return s.emit(txCtx, events.Event{
			Kind:      events.KindManualEntryAdded,
			SubjectID: group.ID.String(),
			ActorID:   actor.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.push(ctx, pushed)
	if s.metrics != nil {
		s.metrics.ManualEntryAdded()
	}
	return &Group{PaymentGroup: *group, Payments: payments}, nil
}

// ---------------------------------------------------------------------------
// Read paths
// ---------------------------------------------------------------------------

func (s *Service) GetGroup(ctx context.Context, groupID id.PaymentGroupID) (*Group, error) {
	group, err := s.store.FindGroup(ctx, groupID)
	if err != nil {
		return nil, translateStoreErr(err, "payment group")
	}
	payments, err := s.store.ListGroupPayments(ctx, groupID)
	if err != nil {
		return nil, translateStoreErr(err, "payments")
	}
	return &Group{PaymentGroup: *group, Payments: payments}, nil
}

func (s *Service) ListHouseholdPayments(ctx context.Context, householdID id.HouseholdID) ([]models.Payment, error) {
	payments, err := s.store.ListHouseholdPayments(ctx, householdID)
	if err != nil {
		return nil, translateStoreErr(err, "payments")
	}
	return payments, nil
}

// Balance reports expected vs. paid for one calendar year. Expected is twelve
// monthly shares; Outstanding never goes below zero even when a household
// overpays.
func (s *Service) Balance(ctx context.Context, householdID id.HouseholdID, year int) (*models.BalanceStatement, error) {
	household, err := s.registry.FindHousehold(ctx, householdID)
	if err != nil {
		return nil, translateStoreErr(err, "household")
	}
	paid, err := s.store.PaidTotal(ctx, householdID, year)
	if err != nil {
		return nil, translateStoreErr(err, "payments")
	}

	expected := id.MonthlyShare(household.Annual) * 12
	outstanding := expected - paid
	if outstanding < 0 {
		outstanding = 0
	}
	return &models.BalanceStatement{
		HouseholdID: householdID,
		Year:        year,
		Expected:    expected,
		Paid:        paid,
		Outstanding: outstanding,
	}, nil
}

// ---------------------------------------------------------------------------
// Internal helpers
// ---------------------------------------------------------------------------

// requirePaymentAuthority gates submission: a contributor may only pay for a
// household they head; admins need authority over the household's unit.
func (s *Service) requirePaymentAuthority(ctx context.Context, actor requestcontext.ActorInfo, household *rmodels.Household) error {
	if actor.Role == id.RoleContributor {
		if household.AccountID != actor.ID {
			return dErrors.New(dErrors.CodeForbidden, "household belongs to another account")
		}
		return nil
	}
	return s.requireUnitAuthority(ctx, actor, household.UnitID)
}

// requireUnitAuthority checks that the actor may act on entities of a unit: a
// unit admin must own the unit, region admins need covering scope.
func (s *Service) requireUnitAuthority(ctx context.Context, actor requestcontext.ActorInfo, unitID id.UnitID) error {
	unit, err := s.registry.FindUnit(ctx, unitID)
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

func parsePeriods(raw []string) ([]id.Period, error) {
	cleaned := platformstrings.DedupeAndTrim(raw)
	if len(cleaned) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one period is required")
	}
	periods := make([]id.Period, 0, len(cleaned))
	for _, v := range cleaned {
		p, err := id.ParsePeriod(v)
		if err != nil {
			return nil, dErrors.Wrapf(err, dErrors.CodeValidation, "invalid period %q", v)
		}
		periods = append(periods, p)
	}
	return periods, nil
}

func periodConflict(claimed []id.Period) error {
	labels := make([]string, 0, len(claimed))
	for _, p := range claimed {
		labels = append(labels, p.String())
	}
	return dErrors.Newf(dErrors.CodeConflict,
		"periods already covered by a pending or paid payment: %s", strings.Join(labels, ", "))
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
