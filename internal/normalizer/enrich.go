package normalizer

import (
	"strings"

	"github.com/noah-isme/clinic-portal-api/internal/models"
)

// EnrichDebriefs fills roster details missing from debriefs using the first
// mapping row seen for each student. Values already present on a debrief win.
// The input slice is not modified.
func EnrichDebriefs(debriefs []models.Debrief, mappings []models.CompleteMapping) []models.Debrief {
	byStudent := make(map[string]models.CompleteMapping, len(mappings))
	byEmail := make(map[string]models.CompleteMapping, len(mappings))
	for _, m := range mappings {
		if m.StudentID != "" {
			if _, seen := byStudent[m.StudentID]; !seen {
				byStudent[m.StudentID] = m
			}
		}
		if email := strings.ToLower(m.StudentEmail); email != "" {
			if _, seen := byEmail[email]; !seen {
				byEmail[email] = m
			}
		}
	}

	out := make([]models.Debrief, len(debriefs))
	for i, d := range debriefs {
		m, ok := byStudent[d.StudentID]
		if !ok {
			m, ok = byEmail[strings.ToLower(d.StudentEmail)]
		}
		if ok {
			d.StudentID = firstNonEmpty(d.StudentID, m.StudentID)
			d.StudentName = firstNonEmpty(d.StudentName, m.StudentName)
			d.StudentEmail = firstNonEmpty(d.StudentEmail, m.StudentEmail)
			d.ClientID = firstNonEmpty(d.ClientID, m.ClientID)
			d.ClientName = firstNonEmpty(d.ClientName, m.ClientName)
			d.Clinic = firstNonEmpty(d.Clinic, m.StudentClinicName)
			d.ClinicID = firstNonEmpty(d.ClinicID, m.StudentClinicID)
		}
		out[i] = d
	}
	return out
}

// StudentsFromMappings derives the distinct roster from mapping rows when the
// students endpoint returned nothing.
func StudentsFromMappings(mappings []models.CompleteMapping) []models.Student {
	seen := make(map[string]struct{}, len(mappings))
	out := make([]models.Student, 0, len(mappings))
	for _, m := range mappings {
		if m.StudentID == "" {
			continue
		}
		if _, dup := seen[m.StudentID]; dup {
			continue
		}
		seen[m.StudentID] = struct{}{}
		out = append(out, models.Student{
			ID:           m.StudentID,
			FullName:     m.StudentName,
			Email:        m.StudentEmail,
			Clinic:       m.StudentClinicName,
			ClinicID:     m.StudentClinicID,
			ClientID:     m.ClientID,
			ClientName:   m.ClientName,
			IsTeamLeader: m.StudentRole == "Team Leader" || m.StudentRole == "team_leader",
			Semester:     m.Semester,
		})
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
