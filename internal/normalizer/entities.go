package normalizer

import (
	"strings"
	"time"

	"github.com/noah-isme/clinic-portal-api/internal/models"
)

// PresentNote is the attendance note written for a checked-in student.
const PresentNote = "Present"

// IsPresentNote reports whether an attendance note marks the student present.
// Comparison ignores case and surrounding whitespace.
func IsPresentNote(notes string) bool {
	return strings.EqualFold(strings.TrimSpace(notes), PresentNote)
}

// Debrief normalizes a raw debrief row.
func Debrief(r Record) models.Debrief {
	hours := r.Float("hoursWorked", "hours")
	if hours < 0 {
		hours = 0
	}
	weekNumber := r.Int("weekNumber", "week")
	if weekNumber < 0 {
		weekNumber = 0
	}
	questionType := models.QuestionType(strings.ToLower(r.String("questionType")))
	if questionType != models.QuestionClient {
		questionType = models.QuestionClinic
	}
	return models.Debrief{
		ID:           r.String("id"),
		StudentID:    r.String("studentId", "students.id"),
		StudentName:  r.String("studentName", "students.full_name"),
		StudentEmail: r.String("studentEmail", "students.email"),
		ClientID:     r.String("clientId", "clients.id"),
		ClientName:   r.String("clientName", "clients.name"),
		Clinic:       r.String("clinic", "student_clinic_name", "clinic_name"),
		ClinicID:     r.String("clinicId"),
		HoursWorked:  hours,
		WorkSummary:  r.String("workSummary"),
		Questions:    r.String("questions"),
		QuestionType: questionType,
		WeekEnding:   r.Date("weekEnding", "debrief_date"),
		WeekNumber:   weekNumber,
		Status:       models.ParseDebriefStatus(strings.ToLower(r.String("status"))),
		SemesterID:   r.String("semesterId"),
		CreatedAt:    r.String("createdAt"),
	}
}

// Attendance normalizes a raw attendance row. Presence is derived from the
// note when one exists, otherwise from an explicit flag.
func Attendance(r Record) models.AttendanceRecord {
	notes := r.String("notes", "status")
	present := r.Bool("isPresent")
	if notes != "" {
		present = IsPresentNote(notes)
	}
	weekNumber := r.Int("weekNumber")
	if weekNumber < 0 {
		weekNumber = 0
	}
	return models.AttendanceRecord{
		ID:          r.String("id"),
		StudentID:   r.String("studentId"),
		StudentName: r.String("studentName", "students.full_name"),
		WeekNumber:  weekNumber,
		WeekEnding:  r.Date("weekEnding"),
		ClassDate:   r.Date("classDate", "date", "created_at"),
		Clinic:      r.String("clinic", "clinic_name"),
		Notes:       notes,
		IsPresent:   present,
		Semester:    r.String("semester", "semester_id"),
	}
}

// Student normalizes a raw roster row.
func Student(r Record) models.Student {
	return models.Student{
		ID:              r.String("id", "student_id"),
		FullName:        r.String("fullName", "name", "student_name"),
		Email:           r.String("email", "student_email"),
		Clinic:          r.String("clinic", "clinic_name", "student_clinic_name"),
		ClinicID:        r.String("clinicId", "student_clinic_id"),
		ClientID:        r.String("clientId"),
		ClientName:      r.String("clientName"),
		IsTeamLeader:    r.Bool("isTeamLeader", "is_team_lead"),
		Semester:        r.String("semester", "semester_id"),
		TotalHours:      nonNegative(r.Float("totalHours")),
		AttendanceCount: r.Int("attendanceCount"),
	}
}

// Client normalizes a raw client row.
func Client(r Record) models.Client {
	return models.Client{
		ID:          r.String("id", "client_id"),
		Name:        r.String("name", "client_name"),
		ClinicID:    r.String("clinicId"),
		DirectorID:  r.String("directorId", "primary_director_id"),
		ContactName: r.String("contactName"),
		Email:       r.String("email"),
		Website:     r.String("website"),
		Status:      r.String("status"),
		Semester:    r.String("semester", "semester_id"),
	}
}

// Director normalizes a raw director row.
func Director(r Record) models.Director {
	return models.Director{
		ID:       r.String("id"),
		FullName: r.String("fullName", "name"),
		Email:    r.String("email"),
		Clinic:   r.String("clinic", "clinic_name", "clinics.name"),
		ClinicID: r.String("clinicId"),
		JobTitle: r.String("jobTitle"),
		Role:     r.String("role"),
	}
}

// SemesterWeek normalizes a raw schedule row. A missing end is derived as
// start plus six days.
func SemesterWeek(r Record) models.SemesterWeek {
	start := r.Date("weekStart")
	end := r.Date("weekEnd", "value")
	if end == "" && start != "" {
		if t, ok := ParseDate(start); ok {
			end = t.AddDate(0, 0, 6).Format(time.DateOnly)
		}
	}
	return models.SemesterWeek{
		ID:           r.String("id"),
		SemesterID:   r.String("semesterId"),
		WeekNumber:   r.Int("weekNumber"),
		WeekLabel:    r.String("weekLabel", "label"),
		WeekStart:    start,
		WeekEnd:      end,
		IsBreak:      r.Bool("isBreak"),
		SessionFocus: r.String("sessionFocus"),
	}
}

// Mapping normalizes a roster join row.
func Mapping(r Record) models.CompleteMapping {
	return models.CompleteMapping{
		StudentID:           r.String("studentId"),
		StudentName:         r.String("studentName"),
		StudentEmail:        r.String("studentEmail"),
		StudentClinicID:     r.String("studentClinicId"),
		StudentClinicName:   r.String("studentClinicName"),
		StudentRole:         r.String("studentRole"),
		ClientID:            r.String("clientId"),
		ClientName:          r.String("clientName"),
		ClientStatus:        r.String("clientStatus"),
		ClinicDirectorID:    r.String("clinicDirectorId"),
		ClinicDirectorName:  r.String("clinicDirectorName"),
		ClinicDirectorEmail: r.String("clinicDirectorEmail"),
		ClientDirectorID:    r.String("clientDirectorId"),
		ClientDirectorName:  r.String("clientDirectorName"),
		ClientDirectorEmail: r.String("clientDirectorEmail"),
		Semester:            r.String("semester"),
	}
}

// Document normalizes a stored document row.
func Document(r Record) models.Document {
	return models.Document{
		ID:          r.String("id"),
		StudentID:   r.String("studentId"),
		ClientID:    r.String("clientId"),
		ClientName:  r.String("clientName"),
		FileName:    r.String("fileName"),
		FileURL:     r.String("fileUrl", "file_url"),
		FileType:    r.String("fileType"),
		FileSize:    int64(r.Float("fileSize")),
		Description: r.String("description"),
		UploadedBy:  r.String("uploadedBy"),
		UploadedAt:  r.String("uploadedAt", "created_at"),
	}
}

// Debriefs normalizes a slice of rows.
func Debriefs(rows []Record) []models.Debrief { return mapAll(rows, Debrief) }

// AttendanceRecords normalizes a slice of rows.
func AttendanceRecords(rows []Record) []models.AttendanceRecord { return mapAll(rows, Attendance) }

// Students normalizes a slice of rows.
func Students(rows []Record) []models.Student { return mapAll(rows, Student) }

// Clients normalizes a slice of rows.
func Clients(rows []Record) []models.Client { return mapAll(rows, Client) }

// Directors normalizes a slice of rows.
func Directors(rows []Record) []models.Director { return mapAll(rows, Director) }

// SemesterWeeks normalizes a slice of rows.
func SemesterWeeks(rows []Record) []models.SemesterWeek { return mapAll(rows, SemesterWeek) }

// Mappings normalizes a slice of rows.
func Mappings(rows []Record) []models.CompleteMapping { return mapAll(rows, Mapping) }

// Documents normalizes a slice of rows.
func Documents(rows []Record) []models.Document { return mapAll(rows, Document) }

func mapAll[T any](rows []Record, fn func(Record) T) []T {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		out = append(out, fn(row))
	}
	return out
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
