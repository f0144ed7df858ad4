package models

// DebriefStatus is the review state of a weekly debrief.
type DebriefStatus string

const (
	DebriefPending   DebriefStatus = "pending"
	DebriefSubmitted DebriefStatus = "submitted"
	DebriefReviewed  DebriefStatus = "reviewed"
	DebriefDraft     DebriefStatus = "draft"
)

// ParseDebriefStatus maps raw backend values onto a known status. Anything
// unrecognised is treated as submitted.
func ParseDebriefStatus(raw string) DebriefStatus {
	switch DebriefStatus(raw) {
	case DebriefPending, DebriefSubmitted, DebriefReviewed, DebriefDraft:
		return DebriefStatus(raw)
	default:
		return DebriefSubmitted
	}
}

// CountsAsSubmitted reports whether the debrief has left the student's hands.
func (s DebriefStatus) CountsAsSubmitted() bool {
	return s == DebriefSubmitted || s == DebriefReviewed
}

// QuestionType routes a debrief question to the clinic or the client team.
type QuestionType string

const (
	QuestionClinic QuestionType = "clinic"
	QuestionClient QuestionType = "client"
)

// Debrief is a student's weekly work report.
type Debrief struct {
	ID           string        `json:"id"`
	StudentID    string        `json:"studentId"`
	StudentName  string        `json:"studentName"`
	StudentEmail string        `json:"studentEmail"`
	ClientID     string        `json:"clientId"`
	ClientName   string        `json:"clientName"`
	Clinic       string        `json:"clinic"`
	ClinicID     string        `json:"clinicId"`
	HoursWorked  float64       `json:"hoursWorked"`
	WorkSummary  string        `json:"workSummary"`
	Questions    string        `json:"questions,omitempty"`
	QuestionType QuestionType  `json:"questionType,omitempty"`
	WeekEnding   string        `json:"weekEnding"`
	WeekNumber   int           `json:"weekNumber"`
	Status       DebriefStatus `json:"status"`
	SemesterID   string        `json:"semesterId"`
	CreatedAt    string        `json:"createdAt,omitempty"`
}
