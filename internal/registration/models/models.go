package models

import (
	"strings"
	"time"

	id "collecta/pkg/domain"
	dErrors "collecta/pkg/domain-errors"
)

// Status is the registration lifecycle shared by accounts, units and
// households.
//
// Invariants:
//   - pending → active exactly once; no reverse transition
//   - pending → rejected is terminal
//   - active and rejected admit no further transitions
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusRejected Status = "rejected"
)

func (s Status) CanTransitionTo(to Status) bool {
	return s == StatusPending && (to == StatusActive || to == StatusRejected)
}

// Account is an identity with a role tag. The generic account row is paired
// with a role-specific profile row (AdminProfile) for admin roles; both rows
// activate in the same transaction or not at all.
type Account struct {
	ID              id.AccountID `json:"id"`
	Name            string       `json:"name"`
	Contact         string       `json:"contact"`
	Role            id.Role      `json:"role"`
	City            string       `json:"city"`
	Status          Status       `json:"status"`
	RejectionReason string       `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// AdminProfile is the role-specific row owned by exactly one admin account.
type AdminProfile struct {
	AccountID id.AccountID `json:"account_id"`
	City      string       `json:"city"`
	Status    Status       `json:"status"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Unit is a collection point administered by one admin account. Units are
// never deleted by the core; replacement is an explicit out-of-scope delete.
type Unit struct {
	ID              id.UnitID    `json:"id"`
	Name            string       `json:"name"`
	City            string       `json:"city"`
	AdminID         id.AccountID `json:"admin_id"`
	DefaultAnnual   id.Cents     `json:"default_annual"`
	Status          Status       `json:"status"`
	RejectionReason string       `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// Household is one contributing family, bound to exactly one unit.
type Household struct {
	ID              id.HouseholdID `json:"id"`
	UnitID          id.UnitID      `json:"unit_id"`
	AccountID       id.AccountID   `json:"account_id"`
	HeadName        string         `json:"head_name"`
	Contact         string         `json:"contact"`
	Annual          id.Cents       `json:"annual"`
	Status          Status         `json:"status"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func NewAccount(accountID id.AccountID, name, contact string, role id.Role, city string, now time.Time) (*Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "account name cannot be empty")
	}
	if city == "" && role != id.RoleGlobalAdmin {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "account city cannot be empty")
	}
	return &Account{
		ID:        accountID,
		Name:      name,
		Contact:   strings.TrimSpace(contact),
		Role:      role,
		City:      city,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func NewUnit(unitID id.UnitID, name, city string, adminID id.AccountID, defaultAnnual id.Cents, now time.Time) (*Unit, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unit name cannot be empty")
	}
	if city == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unit city cannot be empty")
	}
	if adminID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unit must have an admin")
	}
	if defaultAnnual <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unit default annual amount must be positive")
	}
	return &Unit{
		ID:            unitID,
		Name:          name,
		City:          city,
		AdminID:       adminID,
		DefaultAnnual: defaultAnnual,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func NewHousehold(householdID id.HouseholdID, unitID id.UnitID, accountID id.AccountID, headName, contact string, annual id.Cents, now time.Time) (*Household, error) {
	headName = strings.TrimSpace(headName)
	if headName == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "household head name cannot be empty")
	}
	if unitID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "household must belong to a unit")
	}
	if annual <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "household annual amount must be positive")
	}
	return &Household{
		ID:        householdID,
		UnitID:    unitID,
		AccountID: accountID,
		HeadName:  headName,
		Contact:   strings.TrimSpace(contact),
		Annual:    annual,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
