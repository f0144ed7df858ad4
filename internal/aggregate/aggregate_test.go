package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/clinic-portal-api/internal/filter"
	"github.com/noah-isme/clinic-portal-api/internal/models"
	"github.com/noah-isme/clinic-portal-api/internal/semester"
)

func sampleDebriefs() []models.Debrief {
	return []models.Debrief{
		{StudentID: "s1", StudentName: "Ada", ClientName: "Acme", Clinic: "Accounting", HoursWorked: 2.5, WeekEnding: "2025-09-14", Status: models.DebriefReviewed},
		{StudentID: "s2", StudentName: "Bo", ClientName: "Acme", Clinic: "Marketing", HoursWorked: 3, WeekEnding: "2025-09-14", Status: models.DebriefSubmitted},
		{StudentID: "s1", StudentName: "Ada", ClientName: "Beta", Clinic: "Accounting", HoursWorked: 4, WeekEnding: "2025-09-21", Status: models.DebriefSubmitted},
		{StudentID: "s3", ClientName: "", Clinic: "", HoursWorked: 1, WeekEnding: "2025-09-21", Status: models.DebriefPending},
	}
}

func TestGroupDebriefsByClinic(t *testing.T) {
	groups := GroupDebriefs(sampleDebriefs(), ByClinic)

	require.Equal(t, 3, groups.Len())
	list := groups.List()
	assert.Equal(t, "Accounting", list[0].Key)
	assert.Equal(t, "Marketing", list[1].Key)
	assert.Equal(t, Unknown, list[2].Key)

	acc, ok := groups.Get("Accounting")
	require.True(t, ok)
	assert.Equal(t, 6.5, acc.Hours)
	assert.Equal(t, 2, acc.Records)
	assert.Equal(t, 1, acc.StudentCount())
	assert.Equal(t, 2, acc.ClientCount())
	assert.Equal(t, 2, acc.Submitted)
	assert.Equal(t, 1, acc.Reviewed)
	assert.InDelta(t, 50.0, acc.CompletionRate(), 1e-9)
	assert.InDelta(t, 6.5, acc.AvgHoursPerStudent(), 1e-9)
	assert.InDelta(t, 60.0, acc.WeeklyTrend(), 1e-9)

	unknown, _ := groups.Get(Unknown)
	assert.Equal(t, 1, unknown.Pending)
	assert.Zero(t, unknown.Submitted)
	assert.Zero(t, unknown.CompletionRate())
}

func TestTotalIsUnrounded(t *testing.T) {
	debriefs := []models.Debrief{{HoursWorked: 0.1}, {HoursWorked: 0.2}}
	total := Total(debriefs)
	assert.InDelta(t, 0.3, total.Hours, 1e-12)
	assert.Equal(t, 2, total.Records)
}

func TestRatesGuardZero(t *testing.T) {
	assert.Zero(t, CompletionRate(3, 0))
	assert.Zero(t, AvgHoursPerStudent(10, 0))
	assert.Zero(t, WeeklyTrend(5, 0))
	assert.InDelta(t, -50.0, WeeklyTrend(5, 10), 1e-9)
	assert.Zero(t, AttendanceRate(3, 0))
	assert.Equal(t, 100.0, AttendanceRate(7, 5))
	assert.InDelta(t, 60.0, AttendanceRate(3, 5), 1e-9)
	assert.Zero(t, HoursTarget(0, 3, 4))
	assert.Equal(t, 36.0, HoursTarget(3, 3, 4))
}

func TestProgressBadge(t *testing.T) {
	assert.Equal(t, BadgeOnTrack, ProgressBadge(100))
	assert.Equal(t, BadgeGoodProgress, ProgressBadge(75))
	assert.Equal(t, BadgeNeedsAttention, ProgressBadge(50))
	assert.Equal(t, BadgeBehind, ProgressBadge(49.9))
}

func TestLastTwoAndStudentsPerWeek(t *testing.T) {
	last, prev := LastTwo(map[string]float64{"2025-09-21": 5, "2025-09-14": 4, "2025-09-07": 1})
	assert.Equal(t, 5.0, last)
	assert.Equal(t, 4.0, prev)

	perWeek := StudentsPerWeek(sampleDebriefs())
	assert.Equal(t, 2.0, perWeek["2025-09-14"])
	assert.Equal(t, 2.0, perWeek["2025-09-21"])
}

func TestExpectedSubmissionsExcludesBreaks(t *testing.T) {
	cal := semester.Calendar{ClassHour: 19, ClassMinute: 30, Location: time.UTC}
	weeks := semester.FallbackSchedule()
	asOf := time.Date(2025, 10, 26, 12, 0, 0, 0, time.UTC)

	all := filter.NewWeekMatcher(nil, weeks)
	assert.Equal(t, 6, ExpectedSubmissions(weeks, all, cal, asOf))

	some := filter.NewWeekMatcher([]string{"2025-09-08", "2025-10-13", "2025-11-03"}, weeks)
	assert.Equal(t, 1, ExpectedSubmissions(weeks, some, cal, asOf))
}

func TestMissingDebriefs(t *testing.T) {
	expected := []models.SemesterWeek{
		{WeekNumber: 1, WeekStart: "2025-09-08", WeekEnd: "2025-09-14"},
		{WeekNumber: 2, WeekStart: "2025-09-15", WeekEnd: "2025-09-21"},
	}
	students := []models.Student{{ID: "s1", FullName: "Ada"}, {ID: "s2", FullName: "Bo"}, {ID: "s4", FullName: "Cy"}}
	debriefs := append(sampleDebriefs(), models.Debrief{StudentID: "s4", WeekNumber: 2, Status: models.DebriefDraft})

	missing := MissingDebriefs(students, debriefs, expected)

	require.Len(t, missing, 2)
	assert.Equal(t, "s2", missing[0].StudentID)
	assert.Equal(t, 1, missing[0].Submitted)
	require.Len(t, missing[0].MissingWeeks, 1)
	assert.Equal(t, 2, missing[0].MissingWeeks[0].WeekNumber)
	assert.Equal(t, "s4", missing[1].StudentID)
	assert.Equal(t, 0, missing[1].Submitted)

	assert.Empty(t, MissingDebriefs(students, debriefs, nil))
}

func TestMissingDebriefsCreditsOneWeekPerDebrief(t *testing.T) {
	expected := []models.SemesterWeek{
		{WeekNumber: 1, WeekStart: "2025-09-08", WeekEnd: "2025-09-14"},
		{WeekNumber: 2, WeekStart: "2025-09-15", WeekEnd: "2025-09-21"},
	}
	students := []models.Student{{ID: "s1", FullName: "Ada"}}

	tests := []struct {
		name     string
		debrief  models.Debrief
		missWeek int
	}{
		{"week number wins over week ending", models.Debrief{StudentID: "s1", WeekNumber: 1, WeekEnding: "2025-09-21", Status: models.DebriefSubmitted}, 2},
		{"week ending used without week number", models.Debrief{StudentID: "s1", WeekEnding: "2025-09-20", Status: models.DebriefSubmitted}, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			missing := MissingDebriefs(students, []models.Debrief{tc.debrief}, expected)

			require.Len(t, missing, 1)
			assert.Equal(t, 1, missing[0].Submitted)
			require.Len(t, missing[0].MissingWeeks, 1)
			assert.Equal(t, tc.missWeek, missing[0].MissingWeeks[0].WeekNumber)
		})
	}
}

func TestMissingDebriefsMatchesByEmail(t *testing.T) {
	expected := []models.SemesterWeek{{WeekNumber: 1, WeekStart: "2025-09-08", WeekEnd: "2025-09-14"}}
	students := []models.Student{{ID: "s1", FullName: "Ada", Email: "Ada@Uni.edu"}}
	debriefs := []models.Debrief{{StudentEmail: "ada@uni.edu", WeekNumber: 1, Status: models.DebriefSubmitted}}

	assert.Empty(t, MissingDebriefs(students, debriefs, expected))
}

func TestTallyAttendance(t *testing.T) {
	records := []models.AttendanceRecord{
		{StudentID: "s1", IsPresent: true},
		{StudentID: "s2", IsPresent: false},
		{StudentID: "s1", IsPresent: true},
		{},
	}
	tally := TallyAttendance(records)
	require.Len(t, tally, 2)
	assert.Equal(t, 2, tally[0].Present)
	assert.Equal(t, 0, tally[1].Present)
	assert.Equal(t, 2, PresentCount(records))
}

func TestAuditRoster(t *testing.T) {
	directors := []models.Director{{ID: "d1", Clinic: "Accounting"}, {ID: "d2", Clinic: "Marketing"}}
	students := []models.Student{
		{ID: "s1", FullName: "Ada", Clinic: "Accounting", IsTeamLeader: true, ClientName: "Acme"},
		{ID: "s2", FullName: "Bo", Clinic: "Consulting"},
		{ID: "s3", FullName: "Cy", Clinic: "Marketing"},
	}
	clients := []models.Client{{ID: "c1", Name: "Acme", DirectorID: "d1"}, {ID: "c2", Name: "Beta"}, {ID: "c3", Name: "Idle"}}
	mappings := []models.CompleteMapping{
		{StudentID: "s1", ClientID: "c1", ClientName: "Acme", StudentClinicName: "Accounting", ClientDirectorID: "d1"},
		{StudentID: "s2", ClientID: "c1", ClientName: "Acme", StudentClinicName: "Consulting"},
		{StudentID: "s3", ClientName: "Beta", StudentClinicName: "Marketing", ClientDirectorID: "d2"},
	}

	a := AuditRoster(directors, students, clients, mappings, []string{"Accounting", "Consulting"})

	assert.Equal(t, 2, a.DirectorsTotal)
	assert.Equal(t, 3, a.StudentsTotal)
	assert.Equal(t, 1, a.TeamLeaders)
	assert.Equal(t, 1, a.StudentsWithClient)
	assert.Equal(t, 1, a.ClientsWithDirector)
	assert.Equal(t, 2, a.ClientsWithStudents)
	assert.Equal(t, 3, a.AssignmentsTotal)
	assert.Equal(t, 2, a.ClientDirectorsTotal)
	assert.Equal(t, []string{"Acme"}, a.ClientsWithAllClinic)
	require.Len(t, a.ClientsMissing, 1)
	assert.Equal(t, "Beta", a.ClientsMissing[0].Client)
	assert.Equal(t, []string{"Accounting", "Consulting"}, a.ClientsMissing[0].MissingClinics)
	assert.Empty(t, a.OrphanedStudents)
	assert.Equal(t, 1, a.StudentsByClinic["Consulting"])
}
