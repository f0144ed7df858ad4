package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/clinic-portal-api/internal/models"
)

// ErrDuplicateSubmission is returned when a student already checked in for a week.
var ErrDuplicateSubmission = errors.New("attendance already submitted")

const uniqueViolation = "23505"

// AttendancePasswordRepository stores weekly check-in passwords and the
// submissions made against them.
type AttendancePasswordRepository struct {
	db *sqlx.DB
}

// NewAttendancePasswordRepository constructs the repository.
func NewAttendancePasswordRepository(db *sqlx.DB) *AttendancePasswordRepository {
	return &AttendancePasswordRepository{db: db}
}

// Upsert creates or replaces the password for a semester week.
func (r *AttendancePasswordRepository) Upsert(ctx context.Context, pw *models.AttendancePassword) error {
	if pw.ID == "" {
		pw.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if pw.CreatedAt.IsZero() {
		pw.CreatedAt = now
	}
	pw.UpdatedAt = now

	const query = `INSERT INTO attendance_passwords (id, semester_id, week_number, password_hash, week_start, week_end, created_by, created_at, updated_at)
		VALUES (:id, :semester_id, :week_number, :password_hash, :week_start, :week_end, :created_by, :created_at, :updated_at)
		ON CONFLICT (semester_id, week_number) DO UPDATE
		SET password_hash = EXCLUDED.password_hash,
		    week_start = EXCLUDED.week_start,
		    week_end = EXCLUDED.week_end,
		    created_by = EXCLUDED.created_by,
		    updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, pw); err != nil {
		return fmt.Errorf("upsert attendance password: %w", err)
	}
	return nil
}

// Get returns the password entry for a semester week. A missing entry yields
// sql.ErrNoRows.
func (r *AttendancePasswordRepository) Get(ctx context.Context, semesterID string, weekNumber int) (*models.AttendancePassword, error) {
	const query = `SELECT id, semester_id, week_number, password_hash, week_start, week_end, created_by, created_at, updated_at
		FROM attendance_passwords WHERE semester_id = $1 AND week_number = $2`
	var pw models.AttendancePassword
	if err := r.db.GetContext(ctx, &pw, query, semesterID, weekNumber); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get attendance password: %w", err)
	}
	return &pw, nil
}

// List returns every password entry of a semester ordered by week.
func (r *AttendancePasswordRepository) List(ctx context.Context, semesterID string) ([]models.AttendancePassword, error) {
	const query = `SELECT id, semester_id, week_number, password_hash, week_start, week_end, created_by, created_at, updated_at
		FROM attendance_passwords WHERE semester_id = $1 ORDER BY week_number ASC`
	items := []models.AttendancePassword{}
	if err := r.db.SelectContext(ctx, &items, query, semesterID); err != nil {
		return nil, fmt.Errorf("list attendance passwords: %w", err)
	}
	return items, nil
}

// RecordSubmission stores a student's check-in. A second check-in for the
// same week returns ErrDuplicateSubmission.
func (r *AttendancePasswordRepository) RecordSubmission(ctx context.Context, sub *models.AttendanceSubmission) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO attendance_submissions (id, semester_id, week_number, student_id, submitted_at)
		VALUES (:id, :semester_id, :week_number, :student_id, :submitted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, sub); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateSubmission
		}
		return fmt.Errorf("record attendance submission: %w", err)
	}
	return nil
}

// DeleteSubmission removes a check-in, used when the backend write fails.
func (r *AttendancePasswordRepository) DeleteSubmission(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM attendance_submissions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete attendance submission: %w", err)
	}
	return nil
}
