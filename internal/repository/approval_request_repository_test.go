package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acadhub/timetable-api/internal/models"
)

func newApprovalRequestMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestApprovalRequestRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newApprovalRequestMock(t)
	defer cleanup()
	repo := NewApprovalRequestRepository(db)

	mock.ExpectExec("INSERT INTO approval_requests").
		WillReturnResult(sqlmock.NewResult(1, 1))

	day, start, end := 3, 600, 690
	request := &models.ApprovalRequest{
		EntryID:       "entry-1",
		FacultyID:     "fac-1",
		Kind:          models.RequestTimeChange,
		Details:       models.ChangeDetails{DayOfWeek: &day, StartMinute: &start, EndMinute: &end},
		Justification: "clinic duty",
		Status:        models.RequestStatusPending,
	}
	require.NoError(t, repo.Create(context.Background(), request))
	assert.NotEmpty(t, request.ID)
	assert.False(t, request.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRequestRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newApprovalRequestMock(t)
	defer cleanup()
	repo := NewApprovalRequestRepository(db)

	rows := sqlmock.NewRows([]string{
		"id", "entry_id", "faculty_id", "kind", "details", "justification",
		"status", "reviewed_by", "reviewed_at", "note", "created_at",
	}).AddRow("req-1", "entry-1", "fac-1", "TIME_CHANGE", []byte(`{"day_of_week":3,"start_minute":600,"end_minute":690}`),
		"clinic duty", "PENDING", nil, nil, nil, time.Now())

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, entry_id, faculty_id, kind, details, justification, status, reviewed_by, reviewed_at, note, created_at FROM approval_requests WHERE id = $1`)).
		WithArgs("req-1").
		WillReturnRows(rows)

	request, err := repo.FindByID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, models.RequestTimeChange, request.Kind)
	require.NotNil(t, request.Details.DayOfWeek)
	assert.Equal(t, 3, *request.Details.DayOfWeek)
	assert.Equal(t, 600, *request.Details.StartMinute)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRequestRepositoryUpdateResolution(t *testing.T) {
	db, mock, cleanup := newApprovalRequestMock(t)
	defer cleanup()
	repo := NewApprovalRequestRepository(db)

	mock.ExpectExec("UPDATE approval_requests SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))

	reviewer := "dean-1"
	now := time.Now().UTC()
	request := &models.ApprovalRequest{
		ID:         "req-1",
		Status:     models.RequestStatusApproved,
		ReviewedBy: &reviewer,
		ReviewedAt: &now,
	}
	require.NoError(t, repo.UpdateResolution(context.Background(), request))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRequestRepositoryUpdateResolutionNotFound(t *testing.T) {
	db, mock, cleanup := newApprovalRequestMock(t)
	defer cleanup()
	repo := NewApprovalRequestRepository(db)

	mock.ExpectExec("UPDATE approval_requests SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateResolution(context.Background(), &models.ApprovalRequest{ID: "missing", Status: models.RequestStatusRejected})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestApprovalRequestRepositoryList(t *testing.T) {
	db, mock, cleanup := newApprovalRequestMock(t)
	defer cleanup()
	repo := NewApprovalRequestRepository(db)

	rows := sqlmock.NewRows([]string{
		"id", "entry_id", "faculty_id", "kind", "details", "justification",
		"status", "reviewed_by", "reviewed_at", "note", "created_at",
	}).AddRow("req-1", "entry-1", "fac-1", "ROOM_CHANGE", []byte(`{"room_id":"room-2"}`),
		"bigger room", "PENDING", nil, nil, nil, time.Now())

	mock.ExpectQuery(`SELECT .+ FROM approval_requests WHERE 1=1 AND faculty_id = \$1 AND status = \$2 ORDER BY created_at DESC LIMIT 20 OFFSET 0`).
		WithArgs("fac-1", models.RequestStatusPending).
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM approval_requests WHERE 1=1 AND faculty_id = \$1 AND status = \$2`).
		WithArgs("fac-1", models.RequestStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	requests, total, err := repo.List(context.Background(), models.ApprovalRequestFilter{
		FacultyID: "fac-1",
		Status:    models.RequestStatusPending,
	})
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, 1, total)
	require.NotNil(t, requests[0].Details.RoomID)
	assert.Equal(t, "room-2", *requests[0].Details.RoomID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
