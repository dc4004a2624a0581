package models

import (
	"time"

	id "collecta/pkg/domain"
	dErrors "collecta/pkg/domain-errors"
)

// GroupStatus is the verification state machine of a payment group. It is
// terminal at the group level: pending → paid | rejected, nothing after.
type GroupStatus string

const (
	GroupPending  GroupStatus = "pending"
	GroupPaid     GroupStatus = "paid"
	GroupRejected GroupStatus = "rejected"
)

func (s GroupStatus) CanTransitionTo(to GroupStatus) bool {
	return s == GroupPending && (to == GroupPaid || to == GroupRejected)
}

// PaymentGroup is one submission event covering one or more periods,
// approved or rejected as a unit.
//
// Invariant: TotalAmount == Σ member Payment.Amount.
type PaymentGroup struct {
	ID              id.PaymentGroupID `json:"id"`
	HouseholdID     id.HouseholdID    `json:"household_id"`
	TotalAmount     id.Cents          `json:"total_amount"`
	Status          GroupStatus       `json:"status"`
	RejectionReason string            `json:"rejection_reason,omitempty"`
	ReceiptRef      string            `json:"receipt_ref,omitempty"`
	Method          string            `json:"method,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Payment is one (household, period) ledger line. Its status mirrors the
// owning group after any group-level transition. A rejected period is not
// terminal: resubmission overwrites the rejected row in place, so at most one
// non-rejected row exists per (household, period).
type Payment struct {
	ID              id.PaymentID      `json:"id"`
	GroupID         id.PaymentGroupID `json:"group_id"`
	HouseholdID     id.HouseholdID    `json:"household_id"`
	Period          id.Period         `json:"period"`
	Amount          id.Cents          `json:"amount"`
	Status          GroupStatus       `json:"status"`
	RejectionReason string            `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// NewGroup builds a pending group with one payment per period. The group
// total is derived from the members, never passed in, so the sum invariant
// holds by construction.
func NewGroup(householdID id.HouseholdID, periods []id.Period, amountPerPeriod id.Cents, receiptRef string, now time.Time) (*PaymentGroup, []Payment, error) {
	if len(periods) == 0 {
		return nil, nil, dErrors.New(dErrors.CodeInvariantViolation, "a payment group needs at least one period")
	}
	if amountPerPeriod <= 0 {
		return nil, nil, dErrors.New(dErrors.CodeInvariantViolation, "amount per period must be positive")
	}
	seen := make(map[id.Period]struct{}, len(periods))
	for _, p := range periods {
		if _, dup := seen[p]; dup {
			return nil, nil, dErrors.Newf(dErrors.CodeInvariantViolation, "duplicate period %s in submission", p)
		}
		seen[p] = struct{}{}
	}

	group := &PaymentGroup{
		ID:          id.NewPaymentGroupID(),
		HouseholdID: householdID,
		TotalAmount: amountPerPeriod * id.Cents(len(periods)),
		Status:      GroupPending,
		ReceiptRef:  receiptRef,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	payments := make([]Payment, 0, len(periods))
	for _, p := range periods {
		payments = append(payments, Payment{
			ID:          id.NewPaymentID(),
			GroupID:     group.ID,
			HouseholdID: householdID,
			Period:      p,
			Amount:      amountPerPeriod,
			Status:      GroupPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return group, payments, nil
}

// NewManualEntry builds an already-paid group+payment pair for a cash or
// offline payment recorded by a unit admin, bypassing verification.
func NewManualEntry(householdID id.HouseholdID, period id.Period, amount id.Cents, method string, now time.Time) (*PaymentGroup, []Payment, error) {
	if amount <= 0 {
		return nil, nil, dErrors.New(dErrors.CodeInvariantViolation, "amount must be positive")
	}
	if method == "" {
		return nil, nil, dErrors.New(dErrors.CodeInvariantViolation, "manual entry needs a payment method")
	}
	group := &PaymentGroup{
		ID:          id.NewPaymentGroupID(),
		HouseholdID: householdID,
		TotalAmount: amount,
		Status:      GroupPaid,
		Method:      method,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	payment := Payment{
		ID:          id.NewPaymentID(),
		GroupID:     group.ID,
		HouseholdID: householdID,
		Period:      period,
		Amount:      amount,
		Status:      GroupPaid,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return group, []Payment{payment}, nil
}

// BalanceStatement reports a household's position for one year.
type BalanceStatement struct {
	HouseholdID id.HouseholdID `json:"household_id"`
	Year        int            `json:"year"`
	Expected    id.Cents       `json:"expected"`
	Paid        id.Cents       `json:"paid"`
	Outstanding id.Cents       `json:"outstanding"`
}
