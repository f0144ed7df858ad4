package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/clinic-portal-api/internal/models"
)

func newAttendanceMock(t *testing.T) (*AttendancePasswordRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewAttendancePasswordRepository(sqlx.NewDb(db, "sqlmock")), mock
}

var passwordColumns = []string{"id", "semester_id", "week_number", "password_hash", "week_start", "week_end", "created_by", "created_at", "updated_at"}

func TestAttendancePasswordUpsertAndGet(t *testing.T) {
	repo, mock := newAttendanceMock(t)

	mock.ExpectExec("INSERT INTO attendance_passwords").
		WithArgs(sqlmock.AnyArg(), "fall-2025", 3, "hash", "2025-09-15", "2025-09-21", "dir-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	pw := &models.AttendancePassword{SemesterID: "fall-2025", WeekNumber: 3, PasswordHash: "hash", WeekStart: "2025-09-15", WeekEnd: "2025-09-21", CreatedBy: "dir-1"}
	require.NoError(t, repo.Upsert(context.Background(), pw))
	assert.NotEmpty(t, pw.ID)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_passwords WHERE semester_id = $1 AND week_number = $2")).
		WithArgs("fall-2025", 3).
		WillReturnRows(sqlmock.NewRows(passwordColumns).AddRow(pw.ID, "fall-2025", 3, "hash", "2025-09-15", "2025-09-21", "dir-1", now, now))

	got, err := repo.Get(context.Background(), "fall-2025", 3)
	require.NoError(t, err)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendancePasswordGetMissing(t *testing.T) {
	repo, mock := newAttendanceMock(t)
	mock.ExpectQuery("FROM attendance_passwords").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "fall-2025", 9)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestAttendancePasswordList(t *testing.T) {
	repo, mock := newAttendanceMock(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY week_number ASC")).
		WithArgs("fall-2025").
		WillReturnRows(sqlmock.NewRows(passwordColumns).
			AddRow("p1", "fall-2025", 1, "h1", "", "", "dir-1", now, now).
			AddRow("p2", "fall-2025", 2, "h2", "", "", "dir-1", now, now))

	items, err := repo.List(context.Background(), "fall-2025")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 2, items[1].WeekNumber)
}

func TestAttendanceSubmissionDuplicate(t *testing.T) {
	repo, mock := newAttendanceMock(t)

	mock.ExpectExec("INSERT INTO attendance_submissions").
		WithArgs(sqlmock.AnyArg(), "fall-2025", 3, "s1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO attendance_submissions").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})

	sub := &models.AttendanceSubmission{SemesterID: "fall-2025", WeekNumber: 3, StudentID: "s1"}
	require.NoError(t, repo.RecordSubmission(context.Background(), sub))
	assert.False(t, sub.SubmittedAt.IsZero())

	err := repo.RecordSubmission(context.Background(), &models.AttendanceSubmission{SemesterID: "fall-2025", WeekNumber: 3, StudentID: "s1"})
	assert.ErrorIs(t, err, ErrDuplicateSubmission)
	assert.NoError(t, mock.ExpectationsWereMet())
}
