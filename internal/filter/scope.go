package filter

import (
	"strings"

	"github.com/noah-isme/clinic-portal-api/internal/models"
)

// AllScope is the selector value meaning "no restriction".
const AllScope = "all"

// Scope restricts records to those a director is responsible for. It is
// built once per scope change and then consulted per record.
type Scope struct {
	all         bool
	studentIDs  map[string]struct{}
	clientNames map[string]struct{}
	clinic      string
}

// Everything returns a scope that matches every record.
func Everything() *Scope {
	return &Scope{all: true}
}

// BuildScope indexes the mapping rows in which directorID is the clinic or
// client director. When the director owns no rows the scope falls back to a
// case-insensitive clinic name match against fallbackClinic; with no clinic
// either, the scope matches nothing.
func BuildScope(mappings []models.CompleteMapping, directorID, fallbackClinic string) *Scope {
	directorID = strings.TrimSpace(directorID)
	if directorID == "" || strings.EqualFold(directorID, AllScope) {
		return Everything()
	}

	s := &Scope{
		studentIDs:  make(map[string]struct{}),
		clientNames: make(map[string]struct{}),
	}
	for _, m := range mappings {
		if m.ClinicDirectorID != directorID && m.ClientDirectorID != directorID {
			continue
		}
		if m.StudentID != "" {
			s.studentIDs[m.StudentID] = struct{}{}
		}
		if name := strings.TrimSpace(m.ClientName); name != "" {
			s.clientNames[name] = struct{}{}
		}
	}
	if !s.Indexed() {
		s.clinic = strings.ToLower(strings.TrimSpace(fallbackClinic))
	}
	return s
}

// ClinicScope matches records by clinic name only.
func ClinicScope(clinic string) *Scope {
	clinic = strings.TrimSpace(clinic)
	if clinic == "" || strings.EqualFold(clinic, AllScope) {
		return Everything()
	}
	return &Scope{clinic: strings.ToLower(clinic)}
}

// All reports whether the scope is unrestricted.
func (s *Scope) All() bool { return s == nil || s.all }

// Indexed reports whether the scope resolved any students or clients.
func (s *Scope) Indexed() bool {
	return s != nil && (len(s.studentIDs) > 0 || len(s.clientNames) > 0)
}

// HasClient reports whether the client name belongs to the scope.
func (s *Scope) HasClient(name string) bool {
	if s.All() {
		return true
	}
	_, ok := s.clientNames[strings.TrimSpace(name)]
	return ok
}

// Matches decides whether a record with the given ownership fields qualifies.
func (s *Scope) Matches(studentID, clientName, clinic string) bool {
	if s.All() {
		return true
	}
	if s.Indexed() {
		if _, ok := s.studentIDs[studentID]; ok && studentID != "" {
			return true
		}
		return s.HasClient(clientName)
	}
	return clinicMatches(s.clinic, clinic)
}

// Debriefs keeps debriefs within scope.
func (s *Scope) Debriefs(in []models.Debrief) []models.Debrief {
	if s.All() {
		return in
	}
	out := make([]models.Debrief, 0, len(in))
	for _, d := range in {
		if s.Matches(d.StudentID, d.ClientName, d.Clinic) {
			out = append(out, d)
		}
	}
	return out
}

// Attendance keeps attendance records within scope.
func (s *Scope) Attendance(in []models.AttendanceRecord) []models.AttendanceRecord {
	if s.All() {
		return in
	}
	out := make([]models.AttendanceRecord, 0, len(in))
	for _, a := range in {
		if s.Matches(a.StudentID, "", a.Clinic) {
			out = append(out, a)
		}
	}
	return out
}

// Students keeps roster entries within scope.
func (s *Scope) Students(in []models.Student) []models.Student {
	if s.All() {
		return in
	}
	out := make([]models.Student, 0, len(in))
	for _, st := range in {
		if s.Matches(st.ID, st.ClientName, st.Clinic) {
			out = append(out, st)
		}
	}
	return out
}

// Mappings keeps mapping rows within scope.
func (s *Scope) Mappings(in []models.CompleteMapping) []models.CompleteMapping {
	if s.All() {
		return in
	}
	out := make([]models.CompleteMapping, 0, len(in))
	for _, m := range in {
		if s.Matches(m.StudentID, m.ClientName, m.StudentClinicName) {
			out = append(out, m)
		}
	}
	return out
}

func clinicMatches(scopeClinic, recordClinic string) bool {
	if scopeClinic == "" {
		return false
	}
	rec := strings.ToLower(strings.TrimSpace(recordClinic))
	if rec == "" {
		return false
	}
	return strings.Contains(rec, scopeClinic) || strings.Contains(scopeClinic, rec)
}
