package models

// Student is a roster entry for a clinic participant.
type Student struct {
	ID              string  `json:"id"`
	FullName        string  `json:"fullName"`
	Email           string  `json:"email"`
	Clinic          string  `json:"clinic"`
	ClinicID        string  `json:"clinicId"`
	ClientID        string  `json:"clientId"`
	ClientName      string  `json:"clientName"`
	IsTeamLeader    bool    `json:"isTeamLeader"`
	Semester        string  `json:"semester"`
	TotalHours      float64 `json:"totalHours"`
	AttendanceCount int     `json:"attendanceCount"`
}

// Client is an organisation served by a student team.
type Client struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ClinicID    string `json:"clinicId"`
	DirectorID  string `json:"directorId"`
	ContactName string `json:"contactName"`
	Email       string `json:"email"`
	Website     string `json:"website"`
	Status      string `json:"status"`
	Semester    string `json:"semester"`
}

// Director oversees a clinic or a client engagement.
type Director struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Clinic   string `json:"clinic"`
	ClinicID string `json:"clinicId"`
	JobTitle string `json:"jobTitle"`
	Role     string `json:"role"`
}
