package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/atinyakov/sharedpasswords/internal/models"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMock(t *testing.T) (*PostgresAuditRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresAuditRepository(db), mock
}

var auditColumns = []string{"id", "operation", "environment", "code", "subject", "duration_ms", "created_at"}

func TestRecord(t *testing.T) {
	repo, mock := setupMock(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event := models.AuditEvent{
		ID:             "ev-1",
		Operation:      "savePassword",
		Environment:    "native-bare",
		Code:           "OK",
		Subject:        "example.com",
		DurationMillis: 42,
		CreatedAt:      created,
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO audit_events`)).
		WithArgs("ev-1", "savePassword", "native-bare", "OK", "example.com", int64(42), created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Record(context.Background(), event))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecord_Error(t *testing.T) {
	repo, mock := setupMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO audit_events`)).
		WillReturnError(errors.New("insert fail"))

	err := repo.Record(context.Background(), models.AuditEvent{ID: "ev-1"})
	assert.ErrorContains(t, err, "record audit event: insert fail")
}

func TestListRecent(t *testing.T) {
	repo, mock := setupMock(t)
	t1 := time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC)
	t0 := t1.Add(-time.Second)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM audit_events ORDER BY created_at DESC LIMIT $1`)).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows(auditColumns).
			AddRow("ev-2", "createPasskey", "native-development-build", "CANCELLED", "example.com", int64(900), t1).
			AddRow("ev-1", "getPlatformSupport", "native-development-build", "OK", "", int64(1), t0))

	events, err := repo.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "ev-2", events[0].ID)
	assert.Equal(t, "CANCELLED", events[0].Code)
	assert.Equal(t, int64(900), events[0].DurationMillis)
	assert.Equal(t, t0, events[1].CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRecent_FilterAndClamp(t *testing.T) {
	repo, mock := setupMock(t)
	ops := []string{"savePassword", "deleteCredential"}

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE operation = ANY($1) ORDER BY created_at DESC LIMIT $2`)).
		WithArgs(pq.Array(ops), MaxListLimit).
		WillReturnRows(sqlmock.NewRows(auditColumns))

	events, err := repo.ListRecent(context.Background(), 10_000, ops...)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRecent_DefaultLimit(t *testing.T) {
	repo, mock := setupMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`LIMIT $1`)).
		WithArgs(DefaultListLimit).
		WillReturnRows(sqlmock.NewRows(auditColumns))

	_, err := repo.ListRecent(context.Background(), 0)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRecent_Errors(t *testing.T) {
	t.Run("query", func(t *testing.T) {
		repo, mock := setupMock(t)
		mock.ExpectQuery(regexp.QuoteMeta(`FROM audit_events`)).
			WillReturnError(errors.New("query fail"))

		_, err := repo.ListRecent(context.Background(), 5)
		assert.ErrorContains(t, err, "list audit events")
	})

	t.Run("scan", func(t *testing.T) {
		repo, mock := setupMock(t)
		mock.ExpectQuery(regexp.QuoteMeta(`FROM audit_events`)).
			WillReturnRows(sqlmock.NewRows(auditColumns).
				AddRow("ev-1", "savePassword", "native-bare", "OK", "", "not-a-number", time.Now()))

		_, err := repo.ListRecent(context.Background(), 5)
		assert.ErrorContains(t, err, "scan")
	})
}

func TestCountOutcomes(t *testing.T) {
	repo, mock := setupMock(t)
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`GROUP BY operation, code`)).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"operation", "code", "count"}).
			AddRow("savePassword", "OK", int64(7)).
			AddRow("savePassword", "FAILED", int64(1)))

	counts, err := repo.CountOutcomes(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, []OutcomeCount{
		{Operation: "savePassword", Code: "OK", Count: 7},
		{Operation: "savePassword", Code: "FAILED", Count: 1},
	}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
