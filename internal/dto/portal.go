package dto

import "time"

// CreateDebriefRequest is a student's weekly debrief submission.
type CreateDebriefRequest struct {
	StudentID    string  `json:"studentId"`
	StudentEmail string  `json:"studentEmail" validate:"omitempty,email"`
	ClientName   string  `json:"clientName" validate:"max=200"`
	Clinic       string  `json:"clinic" validate:"max=200"`
	HoursWorked  float64 `json:"hoursWorked" validate:"gte=0,lte=168"`
	WorkSummary  string  `json:"workSummary" validate:"required,min=3,max=5000"`
	Questions    string  `json:"questions" validate:"max=5000"`
	QuestionType string  `json:"questionType" validate:"omitempty,oneof=clinic client"`
	WeekEnding   string  `json:"weekEnding" validate:"omitempty,datetime=2006-01-02"`
	WeekNumber   int     `json:"weekNumber" validate:"gte=0"`
	SemesterID   string  `json:"semesterId"`
}

// ReviewDebriefRequest marks a debrief reviewed.
type ReviewDebriefRequest struct {
	Status string `json:"status" validate:"required,oneof=reviewed pending"`
}

// CreateAttendancePasswordRequest sets the check-in password for a week.
type CreateAttendancePasswordRequest struct {
	SemesterID string `json:"semesterId"`
	WeekNumber int    `json:"weekNumber" validate:"required,min=1"`
	Password   string `json:"password" validate:"required,min=4,max=72"`
	WeekStart  string `json:"weekStart" validate:"omitempty,datetime=2006-01-02"`
	WeekEnd    string `json:"weekEnd" validate:"omitempty,datetime=2006-01-02"`
}

// AttendanceCheckInRequest is a student's password-gated check-in.
type AttendanceCheckInRequest struct {
	SemesterID string `json:"semesterId"`
	WeekNumber int    `json:"weekNumber" validate:"required,min=1"`
	Password   string `json:"password" validate:"required"`
	ClassDate  string `json:"classDate" validate:"omitempty,datetime=2006-01-02"`
}

// AttendanceCheckInResponse confirms a check-in.
type AttendanceCheckInResponse struct {
	WeekNumber  int       `json:"weekNumber"`
	ClassDate   string    `json:"classDate"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// AttendancePasswordView is a password entry without its hash.
type AttendancePasswordView struct {
	ID         string    `json:"id"`
	SemesterID string    `json:"semesterId"`
	WeekNumber int       `json:"weekNumber"`
	WeekStart  string    `json:"weekStart"`
	WeekEnd    string    `json:"weekEnd"`
	CreatedBy  string    `json:"createdBy"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// UploadURLRequest asks for a signed upload slot.
type UploadURLRequest struct {
	FileName    string `json:"fileName" validate:"required,max=255"`
	ContentType string `json:"contentType" validate:"required"`
	Size        int64  `json:"size" validate:"required,gt=0"`
	ClientID    string `json:"clientId"`
	ClientName  string `json:"clientName"`
}

// UploadURLResponse returns the slot the client uploads to.
type UploadURLResponse struct {
	Token     string    `json:"token"`
	UploadURL string    `json:"uploadUrl"`
	FileURL   string    `json:"fileUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RegisterDocumentRequest records an uploaded file with the backend.
type RegisterDocumentRequest struct {
	Token       string `json:"token" validate:"required"`
	Description string `json:"description" validate:"max=1000"`
	ClientID    string `json:"clientId"`
	ClientName  string `json:"clientName"`
}

// ExportRequest selects the dashboard table to export.
type ExportRequest struct {
	DashboardQuery
	Format string `form:"format" json:"format" validate:"required,oneof=csv pdf"`
	Table  string `form:"table" json:"table" validate:"omitempty,oneof=clinics clients students missing"`
}
