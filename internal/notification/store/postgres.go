package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"collecta/internal/notification/models"
	id "collecta/pkg/domain"
	"collecta/pkg/platform/sentinel"
	txcontext "collecta/pkg/platform/tx"
)

// PostgresStore persists per-recipient notifications. Creation joins the
// triggering mutation's transaction; read-state updates are standalone.
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

func (s *PostgresStore) CreateBatch(ctx context.Context, notes []models.Notification) error {
	for _, n := range notes {
		_, err := s.execer(ctx).ExecContext(ctx, `
			INSERT INTO notifications (id, recipient_id, title, message, type, source_kind, source_id, is_read, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, uuid.UUID(n.ID), uuid.UUID(n.RecipientID), n.Title, n.Message,
			string(n.Type), string(n.SourceKind), n.SourceID, n.IsRead, n.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
	}
	return nil
}

// ListForRecipient returns the newest notifications first.
func (s *PostgresStore) ListForRecipient(ctx context.Context, recipientID id.AccountID, limit int) ([]models.Notification, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, recipient_id, title, message, type, source_kind, source_id, is_read, created_at
		FROM notifications WHERE recipient_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, uuid.UUID(recipientID), limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var (
			n           models.Notification
			rowID       uuid.UUID
			recipient   uuid.UUID
			typeStr     string
			kindStr     string
		)
		if err := rows.Scan(&rowID, &recipient, &n.Title, &n.Message, &typeStr,
			&kindStr, &n.SourceID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.ID = id.NotificationID(rowID)
		n.RecipientID = id.AccountID(recipient)
		n.Type = models.Type(typeStr)
		n.SourceKind = models.SourceKind(kindStr)
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead flips one notification to read. The recipient guard stops one
// account acknowledging another's notices; repeats are harmless.
func (s *PostgresStore) MarkRead(ctx context.Context, recipientID id.AccountID, notificationID id.NotificationID) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE id = $1 AND recipient_id = $2
	`, uuid.UUID(notificationID), uuid.UUID(recipientID))
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// MarkAllRead resets the recipient's whole unread set and reports how many
// rows flipped.
func (s *PostgresStore) MarkAllRead(ctx context.Context, recipientID id.AccountID) (int, error) {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE recipient_id = $1 AND is_read = FALSE
	`, uuid.UUID(recipientID))
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// MarkReadBySource acknowledges every unread notification of one source kind.
// Zero affected rows is a valid outcome, not an error.
func (s *PostgresStore) MarkReadBySource(ctx context.Context, recipientID id.AccountID, kind models.SourceKind) (int, error) {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE recipient_id = $1 AND source_kind = $2 AND is_read = FALSE
	`, uuid.UUID(recipientID), string(kind))
	if err != nil {
		return 0, fmt.Errorf("mark notifications read by source: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// UnreadCounts buckets the unread approval requests by source kind.
func (s *PostgresStore) UnreadCounts(ctx context.Context, recipientID id.AccountID) (models.PendingCounts, error) {
	var counts models.PendingCounts
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT source_kind, COUNT(*) FROM notifications
		WHERE recipient_id = $1 AND is_read = FALSE AND type = $2
		GROUP BY source_kind
	`, uuid.UUID(recipientID), string(models.TypeApprovalRequest))
	if err != nil {
		return counts, fmt.Errorf("query unread counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return counts, fmt.Errorf("scan unread count: %w", err)
		}
		counts.AddN(models.SourceKind(kind), n)
	}
	return counts, rows.Err()
}

// Find returns one notification regardless of read state.
func (s *PostgresStore) Find(ctx context.Context, notificationID id.NotificationID) (*models.Notification, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, recipient_id, title, message, type, source_kind, source_id, is_read, created_at
		FROM notifications WHERE id = $1
	`, uuid.UUID(notificationID))

	var (
		n         models.Notification
		rowID     uuid.UUID
		recipient uuid.UUID
		typeStr   string
		kindStr   string
	)
	err := row.Scan(&rowID, &recipient, &n.Title, &n.Message, &typeStr,
		&kindStr, &n.SourceID, &n.IsRead, &n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan notification: %w", err)
	}
	n.ID = id.NotificationID(rowID)
	n.RecipientID = id.AccountID(recipient)
	n.Type = models.Type(typeStr)
	n.SourceKind = models.SourceKind(kindStr)
	return &n, nil
}

// DeleteOlderThan prunes read notifications past the retention window.
func (s *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.execer(ctx).ExecContext(ctx, `
		DELETE FROM notifications WHERE is_read = TRUE AND created_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune notifications: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
