package dto

import "time"

// DashboardQuery is the viewer's selection. It is bound from query strings on
// GET requests and from JSON on session updates.
type DashboardQuery struct {
	Weeks      []string `form:"weeks" json:"weeks"`
	DirectorID string   `form:"directorId" json:"directorId"`
	Clinic     string   `form:"clinic" json:"clinic"`
	Client     string   `form:"client" json:"client"`
	StudentID  string   `form:"studentId" json:"studentId"`
	SemesterID string   `form:"semesterId" json:"semesterId"`
	AsOf       string   `form:"asOf" json:"asOf" validate:"omitempty,datetime=2006-01-02"`
	SortBy     string   `form:"sortBy" json:"sortBy" validate:"omitempty,oneof=hours name students clients completion"`
	Desc       *bool    `form:"desc" json:"desc"`
	Limit      int      `form:"limit" json:"limit" validate:"gte=0,lte=100"`
}

// QuickStats is the headline card row.
type QuickStats struct {
	TotalHours          float64 `json:"totalHours"`
	ActiveStudents      int     `json:"activeStudents"`
	ActiveClients       int     `json:"activeClients"`
	DebriefsSubmitted   int     `json:"debriefsSubmitted"`
	PendingReviews      int     `json:"pendingReviews"`
	HoursChange         int     `json:"hoursChange"`
	HoursChangeLabel    string  `json:"hoursChangeLabel"`
	StudentsChange      int     `json:"studentsChange"`
	StudentsChangeLabel string  `json:"studentsChangeLabel"`
	CompletionRate      int     `json:"completionRate"`
	AvgHoursPerStudent  float64 `json:"avgHoursPerStudent"`
}

// ClinicSummary is one row of the clinic performance table.
type ClinicSummary struct {
	Name           string  `json:"name"`
	Hours          float64 `json:"hours"`
	Students       int     `json:"students"`
	Clients        int     `json:"clients"`
	Debriefs       int     `json:"debriefs"`
	CompletionRate int     `json:"completionRate"`
	TargetHours    float64 `json:"targetHours"`
	Progress       int     `json:"progress"`
	ProgressLabel  string  `json:"progressLabel"`
	Status         string  `json:"status"`
}

// ClientSummary is one row of the client leaderboard.
type ClientSummary struct {
	Name          string  `json:"name"`
	Hours         float64 `json:"hours"`
	Share         int     `json:"share"`
	ShareLabel    string  `json:"shareLabel"`
	TeamSize      int     `json:"teamSize"`
	DirectorName  string  `json:"directorName"`
	TargetHours   float64 `json:"targetHours"`
	Progress      int     `json:"progress"`
	ProgressLabel string  `json:"progressLabel"`
	Status        string  `json:"status"`
}

// StudentHours is one row of the per-student table.
type StudentHours struct {
	StudentID      string  `json:"studentId"`
	Name           string  `json:"name"`
	Clinic         string  `json:"clinic"`
	ClientName     string  `json:"clientName"`
	Hours          float64 `json:"hours"`
	Debriefs       int     `json:"debriefs"`
	ClassesPresent int     `json:"classesPresent"`
	AttendanceRate int     `json:"attendanceRate"`
}

// AttendanceWeek is one column of the attendance grid.
type AttendanceWeek struct {
	WeekNumber int    `json:"weekNumber"`
	Label      string `json:"label"`
	WeekStart  string `json:"weekStart"`
	WeekEnd    string `json:"weekEnd"`
	IsBreak    bool   `json:"isBreak"`
	Present    int    `json:"present"`
	Status     string `json:"status,omitempty"`
}

// AttendanceSummary reports attendance against elapsed classes.
type AttendanceSummary struct {
	Present   int              `json:"present"`
	Expected  int              `json:"expected"`
	Rate      int              `json:"rate"`
	RateLabel string           `json:"rateLabel"`
	Weeks     []AttendanceWeek `json:"weeks"`
}

// MissingDebrief lists weeks a student still owes.
type MissingDebrief struct {
	StudentID    string   `json:"studentId"`
	StudentName  string   `json:"studentName"`
	Clinic       string   `json:"clinic"`
	ClientName   string   `json:"clientName"`
	Expected     int      `json:"expected"`
	Submitted    int      `json:"submitted"`
	MissingWeeks []string `json:"missingWeeks"`
}

// WeekOption feeds the week selector.
type WeekOption struct {
	Value      string `json:"value"`
	Label      string `json:"label"`
	WeekNumber int    `json:"weekNumber"`
	IsBreak    bool   `json:"isBreak"`
	WeekStart  string `json:"weekStart"`
	WeekEnd    string `json:"weekEnd"`
}

// DashboardResponse is the assembled dashboard.
type DashboardResponse struct {
	Selection   DashboardQuery    `json:"selection"`
	CurrentWeek int               `json:"currentWeek"`
	QuickStats  QuickStats        `json:"quickStats"`
	Clinics     []ClinicSummary   `json:"clinics"`
	Clients     []ClientSummary   `json:"clients"`
	Students    []StudentHours    `json:"students"`
	Attendance  AttendanceSummary `json:"attendance"`
	Missing     []MissingDebrief  `json:"missingDebriefs"`
	Schedule    []WeekOption      `json:"schedule"`
	Degraded    []string          `json:"degraded,omitempty"`
	GeneratedAt time.Time         `json:"generatedAt"`
}

// WorkEntry is a single debrief line in the weekly summary.
type WorkEntry struct {
	StudentName string  `json:"studentName"`
	Clinic      string  `json:"clinic"`
	Hours       float64 `json:"hours"`
	Summary     string  `json:"summary"`
	WeekEnding  string  `json:"weekEnding"`
}

// ClientWorkSummary groups a week's work by client.
type ClientWorkSummary struct {
	ClientName   string      `json:"clientName"`
	DirectorName string      `json:"directorName"`
	TeamMembers  []string    `json:"teamMembers"`
	TotalHours   float64     `json:"totalHours"`
	Entries      []WorkEntry `json:"entries"`
}

// WeeklySummaryResponse is the weekly program summary.
type WeeklySummaryResponse struct {
	Selection  DashboardQuery      `json:"selection"`
	TotalHours float64             `json:"totalHours"`
	Clients    []ClientWorkSummary `json:"clients"`
}

// StudentProgress is the student portal overview.
type StudentProgress struct {
	StudentID    string            `json:"studentId"`
	Name         string            `json:"name"`
	Clinic       string            `json:"clinic"`
	ClientName   string            `json:"clientName"`
	TotalHours   float64           `json:"totalHours"`
	Debriefs     int               `json:"debriefs"`
	Expected     int               `json:"expected"`
	DebriefRate  int               `json:"debriefRate"`
	MissingWeeks []string          `json:"missingWeeks"`
	Attendance   AttendanceSummary `json:"attendance"`
	CurrentWeek  int               `json:"currentWeek"`
}

// AuditDirectors counts directors per clinic.
type AuditDirectors struct {
	Total    int            `json:"total"`
	ByClinic map[string]int `json:"byClinic"`
}

// AuditStudents summarises the student roster.
type AuditStudents struct {
	Total          int            `json:"total"`
	ByClinic       map[string]int `json:"byClinic"`
	WithClientTeam int            `json:"withClientTeam"`
	TeamLeaders    int            `json:"teamLeaders"`
}

// AuditClients summarises client coverage.
type AuditClients struct {
	Total        int `json:"total"`
	WithDirector int `json:"withDirector"`
	WithStudents int `json:"withStudents"`
}

// AuditAssignments summarises student-client pairings.
type AuditAssignments struct {
	Total    int            `json:"total"`
	ByClinic map[string]int `json:"byClinic"`
}

// AuditClientGap names clinics a client lacks.
type AuditClientGap struct {
	Client         string   `json:"client"`
	MissingClinics []string `json:"missingClinics"`
}

// AuditValidation lists roster inconsistencies.
type AuditValidation struct {
	ClientsWithAllClinics  []string         `json:"clientsWithAllClinics"`
	ClientsMissingStudents []AuditClientGap `json:"clientsMissingStudents"`
	OrphanedStudents       []string         `json:"orphanedStudents"`
}

// AuditResults is the stakeholder audit report.
type AuditResults struct {
	Directors         AuditDirectors       `json:"directors"`
	Students          AuditStudents        `json:"students"`
	Clients           AuditClients         `json:"clients"`
	ClientAssignments AuditAssignments     `json:"clientAssignments"`
	ClientDirectors   AuditClientDirectors `json:"clientDirectors"`
	Validation        AuditValidation      `json:"validation"`
}

// AuditClientDirectors counts directors attached to client engagements.
type AuditClientDirectors struct {
	Total int `json:"total"`
}

// DashboardSession is the latest committed state of a viewer session.
type DashboardSession struct {
	SessionID  string             `json:"sessionId"`
	Generation uint64             `json:"generation"`
	Selection  DashboardQuery     `json:"selection"`
	Status     string             `json:"status"`
	Dashboard  *DashboardResponse `json:"dashboard,omitempty"`
	Error      string             `json:"error,omitempty"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}
