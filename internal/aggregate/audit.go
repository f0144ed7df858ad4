package aggregate

import (
	"fmt"
	"strings"

	"github.com/noah-isme/clinic-portal-api/internal/models"
)

// DefaultClinics are the clinics every client team should draw from.
var DefaultClinics = []string{"Accounting", "Consulting", "Marketing", "Resource Acquisition"}

// ClientGap names the clinics a client has no students from.
type ClientGap struct {
	Client         string
	MissingClinics []string
}

// Audit is a roster consistency report.
type Audit struct {
	DirectorsTotal       int
	DirectorsByClinic    map[string]int
	StudentsTotal        int
	StudentsByClinic     map[string]int
	StudentsWithClient   int
	TeamLeaders          int
	ClientsTotal         int
	ClientsWithDirector  int
	ClientsWithStudents  int
	AssignmentsTotal     int
	AssignmentsByClinic  map[string]int
	ClientDirectorsTotal int
	ClientsWithAllClinic []string
	ClientsMissing       []ClientGap
	OrphanedStudents     []string
}

// AuditRoster cross-checks directors, students, clients and the assignment
// rows (one mapping row per student-client pairing). Clients are identified
// by id when the mapping carries one, otherwise by name.
func AuditRoster(directors []models.Director, students []models.Student, clients []models.Client, mappings []models.CompleteMapping, clinics []string) Audit {
	if len(clinics) == 0 {
		clinics = DefaultClinics
	}
	a := Audit{
		DirectorsByClinic:    make(map[string]int),
		StudentsByClinic:     make(map[string]int),
		AssignmentsByClinic:  make(map[string]int),
		ClientsWithAllClinic: []string{},
		ClientsMissing:       []ClientGap{},
		OrphanedStudents:     []string{},
	}

	a.DirectorsTotal = len(directors)
	for _, d := range directors {
		a.DirectorsByClinic[orUnknown(d.Clinic)]++
	}

	a.StudentsTotal = len(students)
	for _, s := range students {
		a.StudentsByClinic[orUnknown(s.Clinic)]++
		if s.ClientID != "" || s.ClientName != "" {
			a.StudentsWithClient++
		}
		if s.IsTeamLeader {
			a.TeamLeaders++
		}
	}

	assigned := make(map[string]struct{})
	clientClinics := make(map[string]map[string]struct{})
	clientDirectors := make(map[string]struct{})
	for _, m := range mappings {
		if m.StudentID == "" || (m.ClientID == "" && m.ClientName == "") {
			continue
		}
		a.AssignmentsTotal++
		a.AssignmentsByClinic[orUnknown(m.StudentClinicName)]++
		assigned[m.StudentID] = struct{}{}
		for _, key := range clientKeys(m.ClientID, m.ClientName) {
			if clientClinics[key] == nil {
				clientClinics[key] = make(map[string]struct{})
			}
			clientClinics[key][strings.ToLower(strings.TrimSpace(m.StudentClinicName))] = struct{}{}
		}
		if m.ClientDirectorID != "" {
			clientDirectors[m.ClientDirectorID] = struct{}{}
		}
	}
	a.ClientDirectorsTotal = len(clientDirectors)

	a.ClientsTotal = len(clients)
	for _, c := range clients {
		if c.DirectorID != "" {
			a.ClientsWithDirector++
		}
		var seen map[string]struct{}
		for _, key := range clientKeys(c.ID, c.Name) {
			if set, ok := clientClinics[key]; ok {
				seen = set
				break
			}
		}
		if len(seen) > 0 {
			a.ClientsWithStudents++
		}
		missing := make([]string, 0)
		for _, clinic := range clinics {
			if _, ok := seen[strings.ToLower(clinic)]; !ok {
				missing = append(missing, clinic)
			}
		}
		switch {
		case len(missing) == 0:
			a.ClientsWithAllClinic = append(a.ClientsWithAllClinic, c.Name)
		case len(seen) > 0:
			a.ClientsMissing = append(a.ClientsMissing, ClientGap{Client: c.Name, MissingClinics: missing})
		}
	}

	for _, s := range students {
		if _, ok := assigned[s.ID]; !ok {
			a.OrphanedStudents = append(a.OrphanedStudents, fmt.Sprintf("%s (%s)", s.FullName, orUnknown(s.Clinic)))
		}
	}
	return a
}

func clientKeys(id, name string) []string {
	keys := make([]string, 0, 2)
	if id != "" {
		keys = append(keys, "id:"+id)
	}
	if name = strings.TrimSpace(name); name != "" {
		keys = append(keys, "name:"+strings.ToLower(name))
	}
	return keys
}
