package models

import (
	"strings"
	"time"

	id "collecta/pkg/domain"
	dErrors "collecta/pkg/domain-errors"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) CanTransitionTo(to Status) bool {
	return s == StatusPending && (to == StatusApproved || to == StatusRejected)
}

// ChangeRequest asks to relocate an admin's scope from one city to another.
// Approval moves the account, its profile and every unit the admin runs in
// one transaction; a requester holds at most one pending request at a time.
type ChangeRequest struct {
	ID              id.ChangeRequestID `json:"id"`
	RequesterID     id.AccountID       `json:"requester_id"`
	FromCity        string             `json:"from_city"`
	ToCity          string             `json:"to_city"`
	Reason          string             `json:"reason,omitempty"`
	Status          Status             `json:"status"`
	RejectionReason string             `json:"rejection_reason,omitempty"`
	ResolvedBy      id.AccountID       `json:"resolved_by,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

func NewChangeRequest(requesterID id.AccountID, fromCity, toCity, reason string, now time.Time) (*ChangeRequest, error) {
	toCity = strings.TrimSpace(toCity)
	if toCity == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "target city cannot be empty")
	}
	if fromCity == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "requester has no current scope")
	}
	if toCity == fromCity {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "target city equals the current scope")
	}
	return &ChangeRequest{
		ID:          id.NewChangeRequestID(),
		RequesterID: requesterID,
		FromCity:    fromCity,
		ToCity:      toCity,
		Reason:      strings.TrimSpace(reason),
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
