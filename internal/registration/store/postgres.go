package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"collecta/internal/registration/models"
	id "collecta/pkg/domain"
	"collecta/pkg/platform/sentinel"
	txcontext "collecta/pkg/platform/tx"
)

// PostgresStore persists accounts, admin profiles, units and households.
// Status transitions are conditional updates guarded on status='pending' so a
// lost race surfaces as sentinel.ErrConflict instead of a double apply.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// ---------------------------------------------------------------------------
// Accounts
// ---------------------------------------------------------------------------

// CreateAccount inserts the generic account row and, when profile is non-nil,
// the role-specific profile row. Callers wrap both in one transaction.
func (s *PostgresStore) CreateAccount(ctx context.Context, account *models.Account, profile *models.AdminProfile) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO accounts (id, name, contact, role, city, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.UUID(account.ID), account.Name, account.Contact, string(account.Role),
		account.City, string(account.Status), account.CreatedAt, account.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert account: %w", err)
	}

	if profile == nil {
		return nil
	}
	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO admin_profiles (account_id, city, status, updated_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.UUID(profile.AccountID), profile.City, string(profile.Status), profile.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert admin profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindAccount(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, name, contact, role, city, status, COALESCE(rejection_reason, ''), created_at, updated_at
		FROM accounts WHERE id = $1
	`, uuid.UUID(accountID))
	return scanAccount(row)
}

// ActivateAccount flips the account row pending→active and, for admin roles,
// the profile row with it. Zero affected rows on the account is a lost race
// (ErrConflict); zero on the profile after the account succeeded is a
// data-integrity failure and must abort the surrounding transaction.
func (s *PostgresStore) ActivateAccount(ctx context.Context, accountID id.AccountID, role id.Role, now time.Time) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE accounts SET status = 'active', updated_at = $2
		WHERE id = $1 AND status = 'pending'
	`, uuid.UUID(accountID), now)
	if err != nil {
		return fmt.Errorf("activate account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrConflict
	}

	if role != id.RoleRegionAdmin && role != id.RoleUnitAdmin {
		return nil
	}
	res, err = s.execer(ctx).ExecContext(ctx, `
		UPDATE admin_profiles SET status = 'active', updated_at = $2
		WHERE account_id = $1 AND status = 'pending'
	`, uuid.UUID(accountID), now)
	if err != nil {
		return fmt.Errorf("activate admin profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("admin profile missing for account %s: %w", accountID, sentinel.ErrInvalidState)
	}
	return nil
}

// RejectAccount records a terminal rejection, guarded on status='pending'.
func (s *PostgresStore) RejectAccount(ctx context.Context, accountID id.AccountID, reason string, now time.Time) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE accounts SET status = 'rejected', rejection_reason = $2, updated_at = $3
		WHERE id = $1 AND status = 'pending'
	`, uuid.UUID(accountID), reason, now)
	if err != nil {
		return fmt.Errorf("reject account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

// ---------------------------------------------------------------------------
// Units
// ---------------------------------------------------------------------------

func (s *PostgresStore) CreateUnit(ctx context.Context, unit *models.Unit) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO units (id, name, city, admin_id, default_annual_cents, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.UUID(unit.ID), unit.Name, unit.City, uuid.UUID(unit.AdminID),
		int64(unit.DefaultAnnual), string(unit.Status), unit.CreatedAt, unit.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert unit: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindUnit(ctx context.Context, unitID id.UnitID) (*models.Unit, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, name, city, admin_id, default_annual_cents, status, COALESCE(rejection_reason, ''), created_at, updated_at
		FROM units WHERE id = $1
	`, uuid.UUID(unitID))
	return scanUnit(row)
}

func (s *PostgresStore) ActivateUnit(ctx context.Context, unitID id.UnitID, now time.Time) error {
	return s.transitionUnit(ctx, unitID, "active", "", now)
}

func (s *PostgresStore) RejectUnit(ctx context.Context, unitID id.UnitID, reason string, now time.Time) error {
	return s.transitionUnit(ctx, unitID, "rejected", reason, now)
}

func (s *PostgresStore) transitionUnit(ctx context.Context, unitID id.UnitID, status, reason string, now time.Time) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE units SET status = $2, rejection_reason = NULLIF($3, ''), updated_at = $4
		WHERE id = $1 AND status = 'pending'
	`, uuid.UUID(unitID), status, reason, now)
	if err != nil {
		return fmt.Errorf("transition unit: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

// ---------------------------------------------------------------------------
// Households
// ---------------------------------------------------------------------------

func (s *PostgresStore) CreateHousehold(ctx context.Context, h *models.Household) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO households (id, unit_id, account_id, head_name, contact, annual_cents, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.UUID(h.ID), uuid.UUID(h.UnitID), uuid.UUID(h.AccountID), h.HeadName,
		h.Contact, int64(h.Annual), string(h.Status), h.CreatedAt, h.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert household: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindHousehold(ctx context.Context, householdID id.HouseholdID) (*models.Household, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, unit_id, account_id, head_name, contact, annual_cents, status, COALESCE(rejection_reason, ''), created_at, updated_at
		FROM households WHERE id = $1
	`, uuid.UUID(householdID))
	return scanHousehold(row)
}

func (s *PostgresStore) ActivateHousehold(ctx context.Context, householdID id.HouseholdID, now time.Time) error {
	return s.transitionHousehold(ctx, householdID, "active", "", now)
}

func (s *PostgresStore) RejectHousehold(ctx context.Context, householdID id.HouseholdID, reason string, now time.Time) error {
	return s.transitionHousehold(ctx, householdID, "rejected", reason, now)
}

func (s *PostgresStore) transitionHousehold(ctx context.Context, householdID id.HouseholdID, status, reason string, now time.Time) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE households SET status = $2, rejection_reason = NULLIF($3, ''), updated_at = $4
		WHERE id = $1 AND status = 'pending'
	`, uuid.UUID(householdID), status, reason, now)
	if err != nil {
		return fmt.Errorf("transition household: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

// ---------------------------------------------------------------------------
// Scope relocation (driven by the change-request broker)
// ---------------------------------------------------------------------------

// UpdateAdminScope moves an admin account and its profile to a new city.
// Callers run it inside the change-request approval transaction.
func (s *PostgresStore) UpdateAdminScope(ctx context.Context, accountID id.AccountID, city string, now time.Time) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE accounts SET city = $2, updated_at = $3 WHERE id = $1
	`, uuid.UUID(accountID), city, now)
	if err != nil {
		return fmt.Errorf("update account city: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}

	res, err = s.execer(ctx).ExecContext(ctx, `
		UPDATE admin_profiles SET city = $2, updated_at = $3 WHERE account_id = $1
	`, uuid.UUID(accountID), city, now)
	if err != nil {
		return fmt.Errorf("update admin profile city: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("admin profile missing for account %s: %w", accountID, sentinel.ErrInvalidState)
	}
	return nil
}

// ReassignUnits moves every unit administered by adminID to a new city and
// reports how many rows moved.
func (s *PostgresStore) ReassignUnits(ctx context.Context, adminID id.AccountID, city string, now time.Time) (int, error) {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE units SET city = $2, updated_at = $3 WHERE admin_id = $1
	`, uuid.UUID(adminID), city, now)
	if err != nil {
		return 0, fmt.Errorf("reassign units: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ---------------------------------------------------------------------------
// Directory lookups (notification recipient resolution)
// ---------------------------------------------------------------------------

func (s *PostgresStore) UnitAdmin(ctx context.Context, unitID id.UnitID) (id.AccountID, error) {
	var adminID uuid.UUID
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT admin_id FROM units WHERE id = $1`, uuid.UUID(unitID)).Scan(&adminID)
	if errors.Is(err, sql.ErrNoRows) {
		return id.AccountID{}, sentinel.ErrNotFound
	}
	if err != nil {
		return id.AccountID{}, fmt.Errorf("query unit admin: %w", err)
	}
	return id.AccountID(adminID), nil
}

func (s *PostgresStore) RegionAdmins(ctx context.Context, city string) ([]id.AccountID, error) {
	return s.queryAccountIDs(ctx, `
		SELECT id FROM accounts WHERE role = 'region_admin' AND city = $1 AND status = 'active'
	`, city)
}

func (s *PostgresStore) GlobalAdmins(ctx context.Context) ([]id.AccountID, error) {
	return s.queryAccountIDs(ctx, `
		SELECT id FROM accounts WHERE role = 'global_admin' AND status = 'active'
	`)
}

func (s *PostgresStore) queryAccountIDs(ctx context.Context, query string, args ...any) ([]id.AccountID, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query account ids: %w", err)
	}
	defer rows.Close()

	var ids []id.AccountID
	for rows.Next() {
		var u uuid.UUID
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan account id: %w", err)
		}
		ids = append(ids, id.AccountID(u))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate account ids: %w", err)
	}
	return ids, nil
}

// ---------------------------------------------------------------------------
// Row scanning
// ---------------------------------------------------------------------------

func scanAccount(row *sql.Row) (*models.Account, error) {
	var (
		a       models.Account
		rowID   uuid.UUID
		roleStr string
		status  string
	)
	err := row.Scan(&rowID, &a.Name, &a.Contact, &roleStr, &a.City, &status,
		&a.RejectionReason, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	a.ID = id.AccountID(rowID)
	a.Role = id.Role(roleStr)
	a.Status = models.Status(status)
	return &a, nil
}

func scanUnit(row *sql.Row) (*models.Unit, error) {
	var (
		u       models.Unit
		rowID   uuid.UUID
		adminID uuid.UUID
		annual  int64
		status  string
	)
	err := row.Scan(&rowID, &u.Name, &u.City, &adminID, &annual, &status,
		&u.RejectionReason, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan unit: %w", err)
	}
	u.ID = id.UnitID(rowID)
	u.AdminID = id.AccountID(adminID)
	u.DefaultAnnual = id.Cents(annual)
	u.Status = models.Status(status)
	return &u, nil
}

func scanHousehold(row *sql.Row) (*models.Household, error) {
	var (
		h         models.Household
		rowID     uuid.UUID
		unitID    uuid.UUID
		accountID uuid.UUID
		annual    int64
		status    string
	)
	err := row.Scan(&rowID, &unitID, &accountID, &h.HeadName, &h.Contact, &annual,
		&status, &h.RejectionReason, &h.CreatedAt, &h.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan household: %w", err)
	}
	h.ID = id.HouseholdID(rowID)
	h.UnitID = id.UnitID(unitID)
	h.AccountID = id.AccountID(accountID)
	h.Annual = id.Cents(annual)
	h.Status = models.Status(status)
	return &h, nil
}
