package badge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collecta/internal/notification/models"
	"collecta/internal/notification/service"
	"collecta/internal/notification/store"
	id "collecta/pkg/domain"
	dErrors "collecta/pkg/domain-errors"
	"collecta/pkg/requestcontext"
)

func seed(t *testing.T, svc *service.Service, ctx context.Context, recipientID id.AccountID, kind models.SourceKind) {
	t.Helper()
	_, err := svc.Notify(ctx, []id.AccountID{recipientID}, models.Draft{
		Title:      "title",
		Type:       models.TypeApprovalRequest,
		SourceKind: kind,
		SourceID:   "src",
	})
	require.NoError(t, err)
}

func TestClearForViewClearsOwnedKindsOnly(t *testing.T) {
	svc := service.New(store.NewMemory())
	clearer := NewClearer(svc)

	recipient := id.NewAccountID()
	ctx := requestcontext.WithActor(context.Background(), requestcontext.ActorInfo{
		ID: recipient, Role: id.RoleGlobalAdmin,
	})
	ctx = requestcontext.WithTime(ctx, time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC))

	seed(t, svc, ctx, recipient, models.SourceUnit)
	seed(t, svc, ctx, recipient, models.SourceAccount)
	seed(t, svc, ctx, recipient, models.SourcePaymentGroup)

	// The registrations view owns both unit and admin applications.
	result, err := clearer.ClearForView(ctx, ViewRegistrations)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Counts.UnitRegistrations)
	assert.Equal(t, 0, result.Counts.AdminRegistrations)
	assert.Equal(t, 1, result.Counts.PaymentVerifications, "foreign badges stay lit")

	// Reopening the view flips nothing and reports the same state.
	again, err := clearer.ClearForView(ctx, ViewRegistrations)
	require.NoError(t, err)
	assert.Equal(t, result.Counts, again.Counts)
}

func TestClearForViewRejectsUnknownView(t *testing.T) {
	svc := service.New(store.NewMemory())
	clearer := NewClearer(svc)

	ctx := requestcontext.WithActor(context.Background(), requestcontext.ActorInfo{
		ID: id.NewAccountID(), Role: id.RoleGlobalAdmin,
	})
	_, err := clearer.ClearForView(ctx, View("settings"))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
