// Package badge clears navigation badges when the user opens the view that
// owns them, then hands back the authoritative feed state.
package badge

import (
	"context"

	"collecta/internal/notification/models"
	"collecta/internal/notification/service"
	dErrors "collecta/pkg/domain-errors"
)

// View names a screen of the client that owns one or more badge buckets.
type View string

const (
	ViewHouseholds     View = "households"
	ViewPayments       View = "payments"
	ViewRegistrations  View = "registrations"
	ViewChangeRequests View = "change_requests"
)

// viewKinds maps each view to the source kinds whose badges it owns. The
// registrations view covers both unit and admin applications.
var viewKinds = map[View][]models.SourceKind{
	ViewHouseholds:     {models.SourceHousehold},
	ViewPayments:       {models.SourcePaymentGroup},
	ViewRegistrations:  {models.SourceUnit, models.SourceAccount},
	ViewChangeRequests: {models.SourceChangeRequest},
}

// Dispatcher is the slice of the notification service the clearer drives.
type Dispatcher interface {
	MarkReadBySource(ctx context.Context, kind models.SourceKind) (int, error)
	Refresh(ctx context.Context, limit int) (*service.RefreshResult, error)
}

type Clearer struct {
	dispatcher Dispatcher
}

func NewClearer(dispatcher Dispatcher) *Clearer {
	return &Clearer{dispatcher: dispatcher}
}

// ClearForView acknowledges every unread notification of the kinds the view
// owns and returns the refreshed feed. Opening a view twice is harmless: the
// second clear flips nothing and the refresh reports the same state.
func (c *Clearer) ClearForView(ctx context.Context, view View) (*service.RefreshResult, error) {
	kinds, ok := viewKinds[view]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown view %q", view)
	}
	for _, kind := range kinds {
		if _, err := c.dispatcher.MarkReadBySource(ctx, kind); err != nil {
			return nil, err
		}
	}
	return c.dispatcher.Refresh(ctx, 0)
}
