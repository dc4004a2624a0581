package models

import (
	"time"

	id "collecta/pkg/domain"
)

// SourceKind names the table a notification points back to. Badge counters
// and bulk per-view clearing are keyed by it.
type SourceKind string

const (
	SourceHousehold     SourceKind = "households"
	SourceUnit          SourceKind = "units"
	SourceAccount       SourceKind = "accounts"
	SourcePaymentGroup  SourceKind = "payment_groups"
	SourceChangeRequest SourceKind = "change_requests"
)

// Type distinguishes action-required notices from informational ones.
type Type string

const (
	TypeApprovalRequest Type = "approval_request"
	TypeStatusUpdate    Type = "status_update"
)

// Notification is one per-recipient notice. is_read moves false→true only,
// except through a recipient-wide bulk reset.
type Notification struct {
	ID          id.NotificationID `json:"id"`
	RecipientID id.AccountID      `json:"recipient_id"`
	Title       string            `json:"title"`
	Message     string            `json:"message"`
	Type        Type              `json:"type"`
	SourceKind  SourceKind        `json:"source_kind"`
	SourceID    string            `json:"source_id"`
	IsRead      bool              `json:"is_read"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Draft is a notification before it is addressed. Services build one per
// mutation; the dispatcher fans it out to the resolved recipients.
type Draft struct {
	Title      string
	Message    string
	Type       Type
	SourceKind SourceKind
	SourceID   string
}

// PendingCounts buckets the unread set into the named counters the
// navigation badges consume.
type PendingCounts struct {
	HouseholdApprovals   int `json:"household_approvals"`
	PaymentVerifications int `json:"payment_verifications"`
	UnitRegistrations    int `json:"unit_registrations"`
	AdminRegistrations   int `json:"admin_registrations"`
	ScopeChangeRequests  int `json:"scope_change_requests"`
}

func (c PendingCounts) Total() int {
	return c.HouseholdApprovals + c.PaymentVerifications + c.UnitRegistrations +
		c.AdminRegistrations + c.ScopeChangeRequests
}

func (c PendingCounts) IsZero() bool { return c.Total() == 0 }

// Add increments the bucket owning kind. Unknown kinds are ignored rather
// than misfiled.
func (c *PendingCounts) Add(kind SourceKind) { c.AddN(kind, 1) }

// AddN adds n to the bucket owning kind, for aggregated store queries.
func (c *PendingCounts) AddN(kind SourceKind, n int) {
	switch kind {
	case SourceHousehold:
		c.HouseholdApprovals += n
	case SourcePaymentGroup:
		c.PaymentVerifications += n
	case SourceUnit:
		c.UnitRegistrations += n
	case SourceAccount:
		c.AdminRegistrations += n
	case SourceChangeRequest:
		c.ScopeChangeRequests += n
	}
}
