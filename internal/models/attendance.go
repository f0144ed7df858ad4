package models

import "time"

// AttendanceRecord is one class check-in row.
type AttendanceRecord struct {
	ID          string `json:"id"`
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
	WeekNumber  int    `json:"weekNumber"`
	WeekEnding  string `json:"weekEnding"`
	ClassDate   string `json:"classDate"`
	Clinic      string `json:"clinic"`
	Notes       string `json:"notes"`
	IsPresent   bool   `json:"isPresent"`
	Semester    string `json:"semester"`
}

// AttendancePassword gates student check-in for one class week.
type AttendancePassword struct {
	ID           string    `db:"id" json:"id"`
	SemesterID   string    `db:"semester_id" json:"semesterId"`
	WeekNumber   int       `db:"week_number" json:"weekNumber"`
	PasswordHash string    `db:"password_hash" json:"-"`
	WeekStart    string    `db:"week_start" json:"weekStart"`
	WeekEnd      string    `db:"week_end" json:"weekEnd"`
	CreatedBy    string    `db:"created_by" json:"createdBy"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// AttendanceSubmission records that a student already checked in for a week.
type AttendanceSubmission struct {
	ID          string    `db:"id" json:"id"`
	SemesterID  string    `db:"semester_id" json:"semesterId"`
	WeekNumber  int       `db:"week_number" json:"weekNumber"`
	StudentID   string    `db:"student_id" json:"studentId"`
	SubmittedAt time.Time `db:"submitted_at" json:"submittedAt"`
}
