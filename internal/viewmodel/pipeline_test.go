package viewmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/clinic-portal-api/internal/dto"
	"github.com/noah-isme/clinic-portal-api/internal/normalizer"
)

// rawDebriefRows mixes camelCase and snake_case rows across two weeks and
// two clinics, as the backend returns them.
func rawDebriefRows() []normalizer.Record {
	return []normalizer.Record{
		{"studentId": "s1", "studentName": "Ada", "clinic": "A", "clientName": "Acme", "hoursWorked": 2.5, "weekEnding": "2025-09-14", "status": "reviewed"},
		{"student_id": "s2", "student_name": "Bo", "clinic": "A", "client_name": "Acme", "hours_worked": "3", "week_ending": "2025-09-14", "status": "reviewed"},
		{"studentId": "s3", "studentName": "Cy", "clinic": "A", "clientName": "Beta", "hoursWorked": 2, "weekEnding": "2025-09-14", "status": "reviewed"},
		{"student_id": "s1", "clinic": "A", "client_name": "Acme", "hours_worked": 2.5, "week_ending": "2025-09-21", "status": "reviewed"},
		{"studentId": "s2", "clinic": "A", "clientName": "Acme", "hoursWorked": 2.5, "weekEnding": "2025-09-21", "status": "submitted"},
		{"studentId": "s4", "studentName": "Di", "clinic": "B", "clientName": "Gamma", "hoursWorked": 2, "weekEnding": "2025-09-14", "status": "reviewed"},
		{"student_id": "s5", "student_name": "Ed", "clinic": "B", "client_name": "Gamma", "hours_worked": 2, "week_ending": "2025-09-14", "status": "submitted"},
		{"studentId": "s4", "clinic": "B", "clientName": "Gamma", "hoursWorked": 3, "weekEnding": "2025-09-21", "status": "reviewed"},
		{"student_id": "s5", "clinic": "B", "client_name": "Delta", "hours_worked": 1.5, "week_ending": "2025-09-21", "status": "submitted"},
		{"studentId": "s4", "clinic": "B", "clientName": "Delta", "hoursWorked": 1.5, "weekEnding": "2025-09-21", "status": "pending"},
	}
}

func TestClinicsFromRawRows(t *testing.T) {
	debriefs := normalizer.Debriefs(rawDebriefRows())
	require.Len(t, debriefs, 10)

	rows := Clinics(Input{Debriefs: debriefs, TrendDebriefs: debriefs}, DefaultPolicy())
	require.Len(t, rows, 2)
	byName := make(map[string]dto.ClinicSummary, len(rows))
	for _, r := range rows {
		byName[r.Name] = r
	}

	tests := []struct {
		clinic     string
		students   int
		clients    int
		hours      float64
		debriefs   int
		completion int
	}{
		{clinic: "A", students: 3, clients: 2, hours: 12.5, debriefs: 5, completion: 80},
		{clinic: "B", students: 2, clients: 2, hours: 10, debriefs: 5, completion: 50},
	}
	for _, tc := range tests {
		t.Run(tc.clinic, func(t *testing.T) {
			row, ok := byName[tc.clinic]
			require.True(t, ok)
			assert.Equal(t, tc.students, row.Students)
			assert.Equal(t, tc.clients, row.Clients)
			assert.Equal(t, tc.hours, row.Hours)
			assert.Equal(t, tc.debriefs, row.Debriefs)
			assert.Equal(t, tc.completion, row.CompletionRate)
		})
	}

	again := normalizer.Debriefs(rawDebriefRows())
	assert.Equal(t, rows, Clinics(Input{Debriefs: again, TrendDebriefs: again}, DefaultPolicy()))
}
