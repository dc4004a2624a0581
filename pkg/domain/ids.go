package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Typed ID wrappers around uuid.UUID. Keeping each aggregate's identifier a
// distinct type prevents cross-wiring (e.g. passing a household ID where a
// payment group ID is expected) at compile time.

type (
	AccountID       uuid.UUID
	UnitID          uuid.UUID
	HouseholdID     uuid.UUID
	PaymentGroupID  uuid.UUID
	PaymentID       uuid.UUID
	ChangeRequestID uuid.UUID
	NotificationID  uuid.UUID
)

func NewAccountID() AccountID             { return AccountID(uuid.New()) }
func NewUnitID() UnitID                   { return UnitID(uuid.New()) }
func NewHouseholdID() HouseholdID         { return HouseholdID(uuid.New()) }
func NewPaymentGroupID() PaymentGroupID   { return PaymentGroupID(uuid.New()) }
func NewPaymentID() PaymentID             { return PaymentID(uuid.New()) }
func NewChangeRequestID() ChangeRequestID { return ChangeRequestID(uuid.New()) }
func NewNotificationID() NotificationID   { return NotificationID(uuid.New()) }

func (id AccountID) String() string       { return uuid.UUID(id).String() }
func (id UnitID) String() string          { return uuid.UUID(id).String() }
func (id HouseholdID) String() string     { return uuid.UUID(id).String() }
func (id PaymentGroupID) String() string  { return uuid.UUID(id).String() }
func (id PaymentID) String() string       { return uuid.UUID(id).String() }
func (id ChangeRequestID) String() string { return uuid.UUID(id).String() }
func (id NotificationID) String() string  { return uuid.UUID(id).String() }

func (id AccountID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id UnitID) IsNil() bool          { return uuid.UUID(id) == uuid.Nil }
func (id HouseholdID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id PaymentGroupID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id PaymentID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id ChangeRequestID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id NotificationID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }

func ParseAccountID(s string) (AccountID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return AccountID{}, fmt.Errorf("invalid account id: %w", err)
	}
	return AccountID(u), nil
}

func ParseUnitID(s string) (UnitID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return UnitID{}, fmt.Errorf("invalid unit id: %w", err)
	}
	return UnitID(u), nil
}

func ParseHouseholdID(s string) (HouseholdID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return HouseholdID{}, fmt.Errorf("invalid household id: %w", err)
	}
	return HouseholdID(u), nil
}

func ParsePaymentGroupID(s string) (PaymentGroupID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return PaymentGroupID{}, fmt.Errorf("invalid payment group id: %w", err)
	}
	return PaymentGroupID(u), nil
}

func ParseChangeRequestID(s string) (ChangeRequestID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ChangeRequestID{}, fmt.Errorf("invalid change request id: %w", err)
	}
	return ChangeRequestID(u), nil
}

func ParseNotificationID(s string) (NotificationID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NotificationID{}, fmt.Errorf("invalid notification id: %w", err)
	}
	return NotificationID(u), nil
}

// Text marshalling keeps the wire and storage form the canonical hyphenated
// UUID string; named types do not inherit it from uuid.UUID.

func (id AccountID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id UnitID) MarshalText() ([]byte, error)          { return uuid.UUID(id).MarshalText() }
func (id HouseholdID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id PaymentGroupID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id PaymentID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id ChangeRequestID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id NotificationID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }

func (id *AccountID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *UnitID) UnmarshalText(b []byte) error          { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *HouseholdID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *PaymentGroupID) UnmarshalText(b []byte) error  { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *PaymentID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ChangeRequestID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *NotificationID) UnmarshalText(b []byte) error  { return (*uuid.UUID)(id).UnmarshalText(b) }
