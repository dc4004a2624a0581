package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"collecta/internal/payment/models"
	id "collecta/pkg/domain"
	"collecta/pkg/platform/sentinel"
	txcontext "collecta/pkg/platform/tx"
)

// PostgresStore persists payment groups and their member payments.
//
// Payments carry a partial unique index on (household_id, period) WHERE
// status <> 'rejected', so "at most one live claim per period" holds at the
// database even when two submissions race past the service-level pre-check.
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

// CreateGroupWithPayments inserts the group and every member payment.
// Callers wrap the call in one transaction, so a duplicate period rolls back
// the group and the already-inserted siblings together.
//
// A payment whose (household, period) slot holds a rejected row overwrites
// that row in place instead of inserting a duplicate.
func (s *PostgresStore) CreateGroupWithPayments(ctx context.Context, group *models.PaymentGroup, payments []models.Payment) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO payment_groups (id, household_id, total_amount_cents, status, receipt_ref, method, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8)
	`, uuid.UUID(group.ID), uuid.UUID(group.HouseholdID), int64(group.TotalAmount),
		string(group.Status), group.ReceiptRef, group.Method, group.CreatedAt, group.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert payment group: %w", err)
	}

	for _, p := range payments {
		res, err := s.execer(ctx).ExecContext(ctx, `
			UPDATE payments
			SET group_id = $3, amount_cents = $4, status = $5, rejection_reason = NULL, updated_at = $6
			WHERE household_id = $1 AND period = $2 AND status = 'rejected'
		`, uuid.UUID(p.HouseholdID), p.Period.String(), uuid.UUID(p.GroupID),
			int64(p.Amount), string(p.Status), p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("overwrite rejected payment: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			continue
		}

		_, err = s.execer(ctx).ExecContext(ctx, `
			INSERT INTO payments (id, group_id, household_id, period, amount_cents, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, uuid.UUID(p.ID), uuid.UUID(p.GroupID), uuid.UUID(p.HouseholdID), p.Period.String(),
			int64(p.Amount), string(p.Status), p.CreatedAt, p.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("period %s: %w", p.Period, sentinel.ErrConflict)
			}
			return fmt.Errorf("insert payment: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) FindGroup(ctx context.Context, groupID id.PaymentGroupID) (*models.PaymentGroup, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, household_id, total_amount_cents, status,
		       COALESCE(rejection_reason, ''), COALESCE(receipt_ref, ''), COALESCE(method, ''),
		       created_at, updated_at
		FROM payment_groups WHERE id = $1
	`, uuid.UUID(groupID))
	return scanGroup(row)
}

// ListGroupPayments returns the group's members ordered by period.
func (s *PostgresStore) ListGroupPayments(ctx context.Context, groupID id.PaymentGroupID) ([]models.Payment, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, group_id, household_id, period, amount_cents, status,
		       COALESCE(rejection_reason, ''), created_at, updated_at
		FROM payments WHERE group_id = $1
		ORDER BY period
	`, uuid.UUID(groupID))
	if err != nil {
		return nil, fmt.Errorf("query group payments: %w", err)
	}
	defer rows.Close()
	return collectPayments(rows)
}

// ListHouseholdPayments returns every non-rejected payment of a household,
// newest period first.
func (s *PostgresStore) ListHouseholdPayments(ctx context.Context, householdID id.HouseholdID) ([]models.Payment, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, group_id, household_id, period, amount_cents, status,
		       COALESCE(rejection_reason, ''), created_at, updated_at
		FROM payments WHERE household_id = $1 AND status <> 'rejected'
		ORDER BY period DESC
	`, uuid.UUID(householdID))
	if err != nil {
		return nil, fmt.Errorf("query household payments: %w", err)
	}
	defer rows.Close()
	return collectPayments(rows)
}

// ClaimedPeriods filters periods down to those a non-rejected payment already
// covers for the household. Used for a friendly pre-check; the unique index
// is the real guard.
func (s *PostgresStore) ClaimedPeriods(ctx context.Context, householdID id.HouseholdID, periods []id.Period) ([]id.Period, error) {
	if len(periods) == 0 {
		return nil, nil
	}
	wanted := make([]string, 0, len(periods))
	for _, p := range periods {
		wanted = append(wanted, p.String())
	}
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT period FROM payments
		WHERE household_id = $1 AND period = ANY($2) AND status <> 'rejected'
		ORDER BY period
	`, uuid.UUID(householdID), pq.Array(wanted))
	if err != nil {
		return nil, fmt.Errorf("query claimed periods: %w", err)
	}
	defer rows.Close()

	var claimed []id.Period
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan claimed period: %w", err)
		}
		p, err := id.ParsePeriod(raw)
		if err != nil {
			return nil, fmt.Errorf("stored period %q: %w", raw, err)
		}
		claimed = append(claimed, p)
	}
	return claimed, rows.Err()
}

// TransitionGroup flips the group pending→to and cascades the same status to
// every member payment. The conditional update makes concurrent approve and
// reject resolve to exactly one winner; the loser sees ErrConflict.
func (s *PostgresStore) TransitionGroup(ctx context.Context, groupID id.PaymentGroupID, to models.GroupStatus, reason string, now time.Time) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE payment_groups
		SET status = $2, rejection_reason = NULLIF($3, ''), updated_at = $4
		WHERE id = $1 AND status = 'pending'
	`, uuid.UUID(groupID), string(to), reason, now)
	if err != nil {
		return fmt.Errorf("transition payment group: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrConflict
	}

	_, err = s.execer(ctx).ExecContext(ctx, `
		UPDATE payments
		SET status = $2, rejection_reason = NULLIF($3, ''), updated_at = $4
		WHERE group_id = $1
	`, uuid.UUID(groupID), string(to), reason, now)
	if err != nil {
		return fmt.Errorf("cascade payment statuses: %w", err)
	}
	return nil
}

// PaidTotal sums the household's paid payments for one calendar year.
func (s *PostgresStore) PaidTotal(ctx context.Context, householdID id.HouseholdID, year int) (id.Cents, error) {
	var total int64
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM payments
		WHERE household_id = $1 AND status = 'paid' AND period LIKE $2
	`, uuid.UUID(householdID), fmt.Sprintf("%04d-%%", year)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum paid payments: %w", err)
	}
	return id.Cents(total), nil
}

func scanGroup(row *sql.Row) (*models.PaymentGroup, error) {
	var (
		g           models.PaymentGroup
		groupID     uuid.UUID
		householdID uuid.UUID
		total       int64
		status      string
	)
	err := row.Scan(&groupID, &householdID, &total, &status,
		&g.RejectionReason, &g.ReceiptRef, &g.Method, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan payment group: %w", err)
	}
	g.ID = id.PaymentGroupID(groupID)
	g.HouseholdID = id.HouseholdID(householdID)
	g.TotalAmount = id.Cents(total)
	g.Status = models.GroupStatus(status)
	return &g, nil
}

func collectPayments(rows *sql.Rows) ([]models.Payment, error) {
	var payments []models.Payment
	for rows.Next() {
		var (
			p           models.Payment
			paymentID   uuid.UUID
			groupID     uuid.UUID
			householdID uuid.UUID
			period      string
			amount      int64
			status      string
		)
		if err := rows.Scan(&paymentID, &groupID, &householdID, &period, &amount, &status,
			&p.RejectionReason, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		parsed, err := id.ParsePeriod(period)
		if err != nil {
			return nil, fmt.Errorf("stored period %q: %w", period, err)
		}
		p.ID = id.PaymentID(paymentID)
		p.GroupID = id.PaymentGroupID(groupID)
		p.HouseholdID = id.HouseholdID(householdID)
		p.Period = parsed
		p.Amount = id.Cents(amount)
		p.Status = models.GroupStatus(status)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
