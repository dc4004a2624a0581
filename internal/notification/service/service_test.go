package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collecta/internal/notification/models"
	"collecta/internal/notification/push"
	"collecta/internal/notification/store"
	id "collecta/pkg/domain"
	dErrors "collecta/pkg/domain-errors"
	"collecta/pkg/requestcontext"
)

var testTime = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func asRecipient(recipientID id.AccountID) context.Context {
	ctx := requestcontext.WithActor(context.Background(), requestcontext.ActorInfo{
		ID: recipientID, Role: id.RoleUnitAdmin, Scope: "springfield",
	})
	return requestcontext.WithTime(ctx, testTime)
}

func seed(t *testing.T, svc *Service, recipientID id.AccountID, kind models.SourceKind, typ models.Type) models.Notification {
	t.Helper()
	notes, err := svc.Notify(asRecipient(recipientID), []id.AccountID{recipientID}, models.Draft{
		Title:      "title",
		Message:    "message",
		Type:       typ,
		SourceKind: kind,
		SourceID:   id.NewHouseholdID().String(),
	})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	return notes[0]
}

func TestNotifyFansOutPerRecipient(t *testing.T) {
	svc := New(store.NewMemory())
	a, b := id.NewAccountID(), id.NewAccountID()

	notes, err := svc.Notify(asRecipient(a), []id.AccountID{a, b}, models.Draft{
		Title:      "New household registration",
		Message:    "awaiting approval",
		Type:       models.TypeApprovalRequest,
		SourceKind: models.SourceHousehold,
		SourceID:   "h1",
	})
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.NotEqual(t, notes[0].ID, notes[1].ID)

	feed, err := svc.List(asRecipient(b), 0)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.False(t, feed[0].IsRead)
}

func TestMarkReadIsScopedAndMonotonic(t *testing.T) {
	broker := push.NewMemoryBroker()
	svc := New(store.NewMemory(), WithBroker(broker))
	owner, stranger := id.NewAccountID(), id.NewAccountID()
	note := seed(t, svc, owner, models.SourceHousehold, models.TypeApprovalRequest)

	msgs, cancel, err := broker.Subscribe(context.Background(), owner)
	require.NoError(t, err)
	defer cancel()

	err = svc.MarkRead(asRecipient(stranger), note.ID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	require.NoError(t, svc.MarkRead(asRecipient(owner), note.ID))
	// Repeat acknowledgement is a no-op, not an error.
	require.NoError(t, svc.MarkRead(asRecipient(owner), note.ID))

	feed, err := svc.List(asRecipient(owner), 0)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.True(t, feed[0].IsRead)

	// Other sessions of the owner receive a replace-by-id frame.
	select {
	case msg := <-msgs:
		assert.Equal(t, push.OpUpdate, msg.Op)
		assert.Equal(t, note.ID, msg.Notification.ID)
		assert.True(t, msg.Notification.IsRead)
	case <-time.After(time.Second):
		t.Fatal("expected an update frame")
	}
}

func TestPendingCountsBucketsApprovalRequests(t *testing.T) {
	svc := New(store.NewMemory())
	recipient := id.NewAccountID()

	seed(t, svc, recipient, models.SourceHousehold, models.TypeApprovalRequest)
	seed(t, svc, recipient, models.SourceHousehold, models.TypeApprovalRequest)
	seed(t, svc, recipient, models.SourcePaymentGroup, models.TypeApprovalRequest)
	seed(t, svc, recipient, models.SourceChangeRequest, models.TypeApprovalRequest)
	// Status updates never count toward badges.
	seed(t, svc, recipient, models.SourceHousehold, models.TypeStatusUpdate)

	counts, err := svc.PendingCounts(asRecipient(recipient))
	require.NoError(t, err)
	assert.Equal(t, 2, counts.HouseholdApprovals)
	assert.Equal(t, 1, counts.PaymentVerifications)
	assert.Equal(t, 1, counts.ScopeChangeRequests)
	assert.Equal(t, 0, counts.UnitRegistrations)
	assert.Equal(t, 4, counts.Total())
}

func TestMarkReadBySourceIsIdempotent(t *testing.T) {
	svc := New(store.NewMemory())
	recipient := id.NewAccountID()

	seed(t, svc, recipient, models.SourceHousehold, models.TypeApprovalRequest)
	seed(t, svc, recipient, models.SourceHousehold, models.TypeApprovalRequest)
	seed(t, svc, recipient, models.SourcePaymentGroup, models.TypeApprovalRequest)

	flipped, err := svc.MarkReadBySource(asRecipient(recipient), models.SourceHousehold)
	require.NoError(t, err)
	assert.Equal(t, 2, flipped)

	flipped, err = svc.MarkReadBySource(asRecipient(recipient), models.SourceHousehold)
	require.NoError(t, err)
	assert.Equal(t, 0, flipped)

	counts, err := svc.PendingCounts(asRecipient(recipient))
	require.NoError(t, err)
	assert.Equal(t, 0, counts.HouseholdApprovals)
	assert.Equal(t, 1, counts.PaymentVerifications)
}

func TestRefreshReturnsFeedAndCounts(t *testing.T) {
	svc := New(store.NewMemory())
	recipient := id.NewAccountID()

	seed(t, svc, recipient, models.SourceUnit, models.TypeApprovalRequest)

	result, err := svc.Refresh(asRecipient(recipient), 0)
	require.NoError(t, err)
	require.Len(t, result.Notifications, 1)
	assert.Equal(t, 1, result.Counts.UnitRegistrations)

	_, err = svc.MarkAllRead(asRecipient(recipient))
	require.NoError(t, err)

	result, err = svc.Refresh(asRecipient(recipient), 0)
	require.NoError(t, err)
	require.Len(t, result.Notifications, 1)
	assert.True(t, result.Notifications[0].IsRead)
	assert.True(t, result.Counts.IsZero())
}

func TestOperationsRequireActor(t *testing.T) {
	svc := New(store.NewMemory())

	_, err := svc.List(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	err = svc.MarkRead(context.Background(), id.NewNotificationID())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
