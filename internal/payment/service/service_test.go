package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collecta/internal/events"
	nmodels "collecta/internal/notification/models"
	"collecta/internal/payment/models"
	paystore "collecta/internal/payment/store"
	rmodels "collecta/internal/registration/models"
	regstore "collecta/internal/registration/store"
	id "collecta/pkg/domain"
	dErrors "collecta/pkg/domain-errors"
	"collecta/pkg/requestcontext"
)

var testTime = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeNotifier struct {
	mu      sync.Mutex
	created []nmodels.Notification
	pushed  []nmodels.Notification
}

func (f *fakeNotifier) Notify(_ context.Context, recipients []id.AccountID, draft nmodels.Draft) ([]nmodels.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	notes := make([]nmodels.Notification, 0, len(recipients))
	for _, r := range recipients {
		notes = append(notes, nmodels.Notification{
			ID:          id.NewNotificationID(),
			RecipientID: r,
			Title:       draft.Title,
			Message:     draft.Message,
			Type:        draft.Type,
			SourceKind:  draft.SourceKind,
			SourceID:    draft.SourceID,
			CreatedAt:   testTime,
		})
	}
	f.created = append(f.created, notes...)
	return notes, nil
}

func (f *fakeNotifier) Push(_ context.Context, notes []nmodels.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushed = append(f.pushed, notes...)
}

type fixture struct {
	svc       *Service
	store     *paystore.MemoryStore
	registry  *regstore.MemoryStore
	notifier  *fakeNotifier
	recorder  *events.Recorder
	adminID   id.AccountID
	memberID  id.AccountID
	unit      *rmodels.Unit
	household *rmodels.Household
}

// newFixture seeds an active unit with one active household paying 12000
// cents a year, i.e. a monthly share of 1000.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	registry := regstore.NewMemory()
	ctx := context.Background()

	adminID := id.NewAccountID()
	memberID := id.NewAccountID()

	unit, err := rmodels.NewUnit(id.NewUnitID(), "North Unit", "springfield", adminID, 12000, testTime)
	require.NoError(t, err)
	require.NoError(t, registry.CreateUnit(ctx, unit))
	require.NoError(t, registry.ActivateUnit(ctx, unit.ID, testTime))
	unit.Status = rmodels.StatusActive

	household, err := rmodels.NewHousehold(id.NewHouseholdID(), unit.ID, memberID, "Jordan Lee", "jordan@example.com", 12000, testTime)
	require.NoError(t, err)
	require.NoError(t, registry.CreateHousehold(ctx, household))
	require.NoError(t, registry.ActivateHousehold(ctx, household.ID, testTime))
	household.Status = rmodels.StatusActive

	store := paystore.NewMemory()
	notifier := &fakeNotifier{}
	recorder := &events.Recorder{}
	svc := New(store, registry,
		WithNotifier(notifier),
		WithEvents(events.NewPublisher(recorder)),
	)
	return &fixture{
		svc:       svc,
		store:     store,
		registry:  registry,
		notifier:  notifier,
		recorder:  recorder,
		adminID:   adminID,
		memberID:  memberID,
		unit:      unit,
		household: household,
	}
}

func (f *fixture) asMember() context.Context {
	ctx := requestcontext.WithActor(context.Background(), requestcontext.ActorInfo{
		ID: f.memberID, Role: id.RoleContributor,
	})
	return requestcontext.WithTime(ctx, testTime)
}

func (f *fixture) asUnitAdmin() context.Context {
	ctx := requestcontext.WithActor(context.Background(), requestcontext.ActorInfo{
		ID: f.adminID, Role: id.RoleUnitAdmin, Scope: "springfield",
	})
	return requestcontext.WithTime(ctx, testTime)
}

func TestSubmitGroupDefaultsToMonthlyShare(t *testing.T) {
	f := newFixture(t)

	group, err := f.svc.SubmitGroup(f.asMember(), SubmitGroupRequest{
		HouseholdID: f.household.ID,
		Periods:     []string{"2026-01", " 2026-02 ", "2026-03", "2026-01"},
		ReceiptRef:  "receipts/abc.jpg",
	})
	require.NoError(t, err)

	assert.Equal(t, models.GroupPending, group.Status)
	assert.Len(t, group.Payments, 3)
	assert.Equal(t, id.Cents(3000), group.TotalAmount)
	for _, p := range group.Payments {
		assert.Equal(t, id.Cents(1000), p.Amount)
		assert.Equal(t, models.GroupPending, p.Status)
	}

	require.Len(t, f.notifier.pushed, 1)
	assert.Equal(t, f.adminID, f.notifier.pushed[0].RecipientID)
	assert.Equal(t, nmodels.TypeApprovalRequest, f.notifier.pushed[0].Type)
	assert.Equal(t, []events.Kind{events.KindPaymentGroupSubmitted}, f.recorder.Kinds())
}

func TestSubmitGroupRejectsClaimedPeriods(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SubmitGroup(f.asMember(), SubmitGroupRequest{
		HouseholdID: f.household.ID,
		Periods:     []string{"2026-01", "2026-02"},
	})
	require.NoError(t, err)

	_, err = f.svc.SubmitGroup(f.asMember(), SubmitGroupRequest{
		HouseholdID: f.household.ID,
		Periods:     []string{"2026-02", "2026-03"},
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	assert.Contains(t, err.Error(), "2026-02")

	// The conflicting submission must not leave a row for the free period.
	claimed, err := f.store.ClaimedPeriods(context.Background(), f.household.ID,
		[]id.Period{{Year: 2026, Month: time.March}})
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestSubmitGroupRequiresOwnership(t *testing.T) {
	f := newFixture(t)

	stranger := requestcontext.WithActor(context.Background(), requestcontext.ActorInfo{
		ID: id.NewAccountID(), Role: id.RoleContributor,
	})
	_, err := f.svc.SubmitGroup(stranger, SubmitGroupRequest{
		HouseholdID: f.household.ID,
		Periods:     []string{"2026-01"},
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
}

func TestApproveGroupCascadesToMembers(t *testing.T) {
	f := newFixture(t)

	group, err := f.svc.SubmitGroup(f.asMember(), SubmitGroupRequest{
		HouseholdID: f.household.ID,
		Periods:     []string{"2026-01", "2026-02"},
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.ApproveGroup(f.asUnitAdmin(), group.ID))

	got, err := f.svc.GetGroup(context.Background(), group.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GroupPaid, got.Status)
	for _, p := range got.Payments {
		assert.Equal(t, models.GroupPaid, p.Status)
	}

	balance, err := f.svc.Balance(context.Background(), f.household.ID, 2026)
	require.NoError(t, err)
	assert.Equal(t, id.Cents(12000), balance.Expected)
	assert.Equal(t, id.Cents(2000), balance.Paid)
	assert.Equal(t, id.Cents(10000), balance.Outstanding)
}

func TestRejectGroupRequiresReason(t *testing.T) {
	f := newFixture(t)

	group, err := f.svc.SubmitGroup(f.asMember(), SubmitGroupRequest{
		HouseholdID: f.household.ID,
		Periods:     []string{"2026-01"},
	})
	require.NoError(t, err)

	err = f.svc.RejectGroup(f.asUnitAdmin(), group.ID, "  ")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestRejectedPeriodsAreClaimableAgain(t *testing.T) {
	f := newFixture(t)

	first, err := f.svc.SubmitGroup(f.asMember(), SubmitGroupRequest{
		HouseholdID: f.household.ID,
		Periods:     []string{"2026-01", "2026-02"},
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.RejectGroup(f.asUnitAdmin(), first.ID, "unreadable receipt"))

	second, err := f.svc.SubmitGroup(f.asMember(), SubmitGroupRequest{
		HouseholdID: f.household.ID,
		Periods:     []string{"2026-01", "2026-02"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.GroupPending, second.Status)

	// Resubmission overwrites the rejected rows; the ledger holds one live
	// row per period, not a rejected/pending pair.
	live, err := f.svc.ListHouseholdPayments(context.Background(), f.household.ID)
	require.NoError(t, err)
	assert.Len(t, live, 2)
	for _, p := range live {
		assert.Equal(t, second.ID, p.GroupID)
		assert.Equal(t, models.GroupPending, p.Status)
	}
}

func TestConcurrentResolutionHasExactlyOneWinner(t *testing.T) {
	f := newFixture(t)

	group, err := f.svc.SubmitGroup(f.asMember(), SubmitGroupRequest{
		HouseholdID: f.household.ID,
		Periods:     []string{"2026-01"},
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		results <- f.svc.ApproveGroup(f.asUnitAdmin(), group.ID)
	}()
	go func() {
		defer wg.Done()
		results <- f.svc.RejectGroup(f.asUnitAdmin(), group.ID, "duplicate receipt")
	}()
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case dErrors.HasCode(err, dErrors.CodeConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, conflicts)

	got, err := f.svc.GetGroup(context.Background(), group.ID)
	require.NoError(t, err)
	assert.NotEqual(t, models.GroupPending, got.Status)
}

func TestManualEntryIsBornPaid(t *testing.T) {
	f := newFixture(t)

	group, err := f.svc.AddManualEntry(f.asUnitAdmin(), ManualEntryRequest{
		HouseholdID: f.household.ID,
		Period:      "2026-04",
		Method:      "cash",
	})
	require.NoError(t, err)

	assert.Equal(t, models.GroupPaid, group.Status)
	require.Len(t, group.Payments, 1)
	assert.Equal(t, id.Cents(1000), group.Payments[0].Amount)
	assert.Equal(t, models.GroupPaid, group.Payments[0].Status)

	balance, err := f.svc.Balance(context.Background(), f.household.ID, 2026)
	require.NoError(t, err)
	assert.Equal(t, id.Cents(1000), balance.Paid)

	// The recorded period is now claimed like any other live payment.
	_, err = f.svc.SubmitGroup(f.asMember(), SubmitGroupRequest{
		HouseholdID: f.household.ID,
		Periods:     []string{"2026-04"},
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestManualEntryRequiresUnitAuthority(t *testing.T) {
	f := newFixture(t)

	otherAdmin := requestcontext.WithActor(context.Background(), requestcontext.ActorInfo{
		ID: id.NewAccountID(), Role: id.RoleUnitAdmin, Scope: "springfield",
	})
	_, err := f.svc.AddManualEntry(otherAdmin, ManualEntryRequest{
		HouseholdID: f.household.ID,
		Period:      "2026-04",
		Method:      "cash",
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
}
