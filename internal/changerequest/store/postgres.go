package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"collecta/internal/changerequest/models"
	id "collecta/pkg/domain"
	"collecta/pkg/platform/sentinel"
	txcontext "collecta/pkg/platform/tx"
)

// PostgresStore persists change requests. A partial unique index on
// requester_id WHERE status = 'pending' enforces the one-pending-per-requester
// rule at the database.
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

func (s *PostgresStore) Create(ctx context.Context, cr *models.ChangeRequest) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO change_requests (id, requester_id, from_city, to_city, reason, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)
	`, uuid.UUID(cr.ID), uuid.UUID(cr.RequesterID), cr.FromCity, cr.ToCity,
		cr.Reason, string(cr.Status), cr.CreatedAt, cr.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert change request: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, requestID id.ChangeRequestID) (*models.ChangeRequest, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, requester_id, from_city, to_city, COALESCE(reason, ''), status,
		       COALESCE(rejection_reason, ''), resolved_by, created_at, updated_at
		FROM change_requests WHERE id = $1
	`, uuid.UUID(requestID))
	return scanChangeRequest(row)
}

// ListPending returns open requests oldest first, for the review queue.
func (s *PostgresStore) ListPending(ctx context.Context) ([]models.ChangeRequest, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, requester_id, from_city, to_city, COALESCE(reason, ''), status,
		       COALESCE(rejection_reason, ''), resolved_by, created_at, updated_at
		FROM change_requests WHERE status = 'pending'
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("query pending change requests: %w", err)
	}
	defer rows.Close()

	var out []models.ChangeRequest
	for rows.Next() {
		cr, err := scanChangeRequestRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cr)
	}
	return out, rows.Err()
}

// Transition flips the request pending→to. Zero affected rows means another
// resolution won the race.
func (s *PostgresStore) Transition(ctx context.Context, requestID id.ChangeRequestID, to models.Status, reason string, resolvedBy id.AccountID, now time.Time) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE change_requests
		SET status = $2, rejection_reason = NULLIF($3, ''), resolved_by = $4, updated_at = $5
		WHERE id = $1 AND status = 'pending'
	`, uuid.UUID(requestID), string(to), reason, uuid.UUID(resolvedBy), now)
	if err != nil {
		return fmt.Errorf("transition change request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func scanChangeRequest(row *sql.Row) (*models.ChangeRequest, error) {
	var (
		cr          models.ChangeRequest
		rowID       uuid.UUID
		requesterID uuid.UUID
		status      string
		resolvedBy  uuid.NullUUID
	)
	err := row.Scan(&rowID, &requesterID, &cr.FromCity, &cr.ToCity, &cr.Reason, &status,
		&cr.RejectionReason, &resolvedBy, &cr.CreatedAt, &cr.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan change request: %w", err)
	}
	cr.ID = id.ChangeRequestID(rowID)
	cr.RequesterID = id.AccountID(requesterID)
	cr.Status = models.Status(status)
	if resolvedBy.Valid {
		cr.ResolvedBy = id.AccountID(resolvedBy.UUID)
	}
	return &cr, nil
}

func scanChangeRequestRows(rows *sql.Rows) (*models.ChangeRequest, error) {
	var (
		cr          models.ChangeRequest
		rowID       uuid.UUID
		requesterID uuid.UUID
		status      string
		resolvedBy  uuid.NullUUID
	)
	err := rows.Scan(&rowID, &requesterID, &cr.FromCity, &cr.ToCity, &cr.Reason, &status,
		&cr.RejectionReason, &resolvedBy, &cr.CreatedAt, &cr.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan change request: %w", err)
	}
	cr.ID = id.ChangeRequestID(rowID)
	cr.RequesterID = id.AccountID(requesterID)
	cr.Status = models.Status(status)
	if resolvedBy.Valid {
		cr.ResolvedBy = id.AccountID(resolvedBy.UUID)
	}
	return &cr, nil
}
