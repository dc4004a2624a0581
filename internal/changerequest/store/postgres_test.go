package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collecta/internal/changerequest/models"
	id "collecta/pkg/domain"
	"collecta/pkg/platform/sentinel"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresStore) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock, NewPostgres(db)
}

func TestCreateMapsUniqueViolationToConflict(t *testing.T) {
	_, mock, store := setupMockDB(t)

	mock.ExpectExec(`INSERT INTO change_requests`).
		WillReturnError(&pq.Error{Code: "23505"})

	err := store.Create(context.Background(), &models.ChangeRequest{
		ID:          id.NewChangeRequestID(),
		RequesterID: id.NewAccountID(),
		FromCity:    "springfield",
		ToCity:      "shelbyville",
		Status:      models.StatusPending,
	})
	assert.ErrorIs(t, err, sentinel.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionZeroRowsMeansLostRace(t *testing.T) {
	_, mock, store := setupMockDB(t)

	mock.ExpectExec(`UPDATE change_requests`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Transition(context.Background(), id.NewChangeRequestID(), models.StatusApproved, "", id.NewAccountID(), time.Now())
	assert.ErrorIs(t, err, sentinel.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindTranslatesMissingRow(t *testing.T) {
	_, mock, store := setupMockDB(t)

	mock.ExpectQuery(`SELECT id, requester_id`).
		WillReturnError(sql.ErrNoRows)

	_, err := store.Find(context.Background(), id.NewChangeRequestID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPendingScansRows(t *testing.T) {
	_, mock, store := setupMockDB(t)

	requestID := id.NewChangeRequestID()
	requesterID := id.NewAccountID()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "requester_id", "from_city", "to_city", "reason", "status",
		"rejection_reason", "resolved_by", "created_at", "updated_at",
	}).AddRow(requestID.String(), requesterID.String(), "springfield", "shelbyville", "relocating", "pending", "", nil, now, now)

	mock.ExpectQuery(`SELECT id, requester_id`).WillReturnRows(rows)

	pending, err := store.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, requestID, pending[0].ID)
	assert.Equal(t, "shelbyville", pending[0].ToCity)
	assert.Equal(t, models.StatusPending, pending[0].Status)
	assert.True(t, pending[0].ResolvedBy == id.AccountID{})
	assert.NoError(t, mock.ExpectationsWereMet())
}
