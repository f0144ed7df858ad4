package viewmodel

import (
	"sort"
	"strings"

	"github.com/noah-isme/clinic-portal-api/internal/aggregate"
	"github.com/noah-isme/clinic-portal-api/internal/dto"
	"github.com/noah-isme/clinic-portal-api/internal/models"
	"github.com/noah-isme/clinic-portal-api/internal/normalizer"
)

// Targets are the syllabus constants used for progress maths.
type Targets struct {
	HoursPerStudentPerWeek float64
	ClientHoursTarget      float64
}

// Input is the already filtered data a dashboard is built from.
type Input struct {
	// Debriefs are in scope and in the selected weeks.
	Debriefs []models.Debrief
	// TrendDebriefs are in scope regardless of the week selection and feed
	// week-over-week changes.
	TrendDebriefs []models.Debrief
	Attendance    []models.AttendanceRecord
	Students      []models.Student
	Mappings      []models.CompleteMapping
	// Weeks are the selected schedule weeks; ExpectedWeeks the subset owing a debrief.
	Weeks          []models.SemesterWeek
	ExpectedWeeks  []models.SemesterWeek
	ElapsedClasses int
	Targets        Targets
}

// QuickStats builds the headline cards.
func QuickStats(in Input) dto.QuickStats {
	total := aggregate.Total(in.Debriefs)
	trend := aggregate.Total(in.TrendDebriefs)

	lastHours, prevHours := aggregate.LastTwo(trend.WeekHours)
	lastStudents, prevStudents := aggregate.LastTwo(aggregate.StudentsPerWeek(in.TrendDebriefs))
	hoursChange := Pct(aggregate.WeeklyTrend(lastHours, prevHours))
	studentsChange := Pct(aggregate.WeeklyTrend(lastStudents, prevStudents))

	return dto.QuickStats{
		TotalHours:          Round1(total.Hours),
		ActiveStudents:      total.StudentCount(),
		ActiveClients:       total.ClientCount(),
		DebriefsSubmitted:   total.Submitted,
		PendingReviews:      total.Submitted - total.Reviewed,
		HoursChange:         hoursChange,
		HoursChangeLabel:    SignedPctLabel(hoursChange),
		StudentsChange:      studentsChange,
		StudentsChangeLabel: SignedPctLabel(studentsChange),
		CompletionRate:      Pct(total.CompletionRate()),
		AvgHoursPerStudent:  Round1(total.AvgHoursPerStudent()),
	}
}

// Clinics builds the clinic performance rows. A clinic's target is its
// roster size times the weekly hours for every expected week.
func Clinics(in Input, p Policy) []dto.ClinicSummary {
	roster := make(map[string]int)
	for _, s := range in.Students {
		roster[strings.ToLower(strings.TrimSpace(s.Clinic))]++
	}

	groups := aggregate.GroupDebriefs(in.Debriefs, aggregate.ByClinic)
	rows := make([]dto.ClinicSummary, 0, groups.Len())
	for _, g := range groups.List() {
		size := roster[strings.ToLower(g.Key)]
		if size == 0 {
			size = g.StudentCount()
		}
		target := aggregate.HoursTarget(size, in.Targets.HoursPerStudentPerWeek, len(in.ExpectedWeeks))
		progress := Pct(aggregate.Percent(g.Hours, target))
		rows = append(rows, dto.ClinicSummary{
			Name:           g.Key,
			Hours:          Round1(g.Hours),
			Students:       g.StudentCount(),
			Clients:        g.ClientCount(),
			Debriefs:       g.Records,
			CompletionRate: Pct(g.CompletionRate()),
			TargetHours:    Round1(target),
			Progress:       progress,
			ProgressLabel:  PctLabel(progress),
			Status:         aggregate.ProgressBadge(float64(progress)),
		})
	}
	return order(rows, p, sortKeys[dto.ClinicSummary]{
		name: func(r dto.ClinicSummary) string { return r.Name },
		value: map[string]func(dto.ClinicSummary) float64{
			SortHours:      func(r dto.ClinicSummary) float64 { return r.Hours },
			SortStudents:   func(r dto.ClinicSummary) float64 { return float64(r.Students) },
			SortClients:    func(r dto.ClinicSummary) float64 { return float64(r.Clients) },
			SortCompletion: func(r dto.ClinicSummary) float64 { return float64(r.CompletionRate) },
		},
	})
}

// Clients builds the client leaderboard. Share is the client's portion of
// all hours in the selection; progress is measured against the per-client
// semester target.
func Clients(in Input, p Policy) []dto.ClientSummary {
	teams := teamsByClient(in.Mappings)
	directors := directorsByClient(in.Mappings)

	total := aggregate.Total(in.Debriefs).Hours
	groups := aggregate.GroupDebriefs(in.Debriefs, aggregate.ByClient)
	rows := make([]dto.ClientSummary, 0, groups.Len())
	for _, g := range groups.List() {
		key := strings.ToLower(g.Key)
		team := len(teams[key])
		if team == 0 {
			team = g.StudentCount()
		}
		director := directors[key]
		if director == "" {
			director = aggregate.Unknown
		}
		share := Pct(aggregate.Percent(g.Hours, total))
		progress := Pct(aggregate.Percent(g.Hours, in.Targets.ClientHoursTarget))
		rows = append(rows, dto.ClientSummary{
			Name:          g.Key,
			Hours:         Round1(g.Hours),
			Share:         share,
			ShareLabel:    PctLabel(share),
			TeamSize:      team,
			DirectorName:  director,
			TargetHours:   Round1(in.Targets.ClientHoursTarget),
			Progress:      progress,
			ProgressLabel: PctLabel(progress),
			Status:        aggregate.ProgressBadge(float64(progress)),
		})
	}
	return order(rows, p, sortKeys[dto.ClientSummary]{
		name: func(r dto.ClientSummary) string { return r.Name },
		value: map[string]func(dto.ClientSummary) float64{
			SortHours:      func(r dto.ClientSummary) float64 { return r.Hours },
			SortStudents:   func(r dto.ClientSummary) float64 { return float64(r.TeamSize) },
			SortCompletion: func(r dto.ClientSummary) float64 { return float64(r.Progress) },
		},
	})
}

// Students builds per-student rows for the roster plus any debrief author
// missing from it.
func Students(in Input, p Policy) []dto.StudentHours {
	groups := aggregate.GroupDebriefs(in.Debriefs, aggregate.ByStudent)
	tallies := make(map[string]aggregate.AttendanceTally)
	for _, t := range aggregate.TallyAttendance(in.Attendance) {
		tallies[t.StudentID] = t
	}

	seen := make(map[string]struct{}, len(in.Students))
	rows := make([]dto.StudentHours, 0, len(in.Students))
	for _, s := range in.Students {
		seen[s.ID] = struct{}{}
		row := dto.StudentHours{StudentID: s.ID, Name: s.FullName, Clinic: s.Clinic, ClientName: s.ClientName}
		if g, ok := groups.Get(s.ID); ok {
			row.Hours = Round1(g.Hours)
			row.Debriefs = g.Records
		}
		present := tallies[s.ID].Present
		row.ClassesPresent = present
		row.AttendanceRate = Pct(aggregate.AttendanceRate(present, in.ElapsedClasses))
		rows = append(rows, row)
	}
	for _, g := range groups.List() {
		if _, ok := seen[g.Key]; ok || g.Key == aggregate.Unknown {
			continue
		}
		name := g.Names[g.Key]
		if name == "" {
			name = aggregate.Unknown
		}
		present := tallies[g.Key].Present
		rows = append(rows, dto.StudentHours{
			StudentID:      g.Key,
			Name:           name,
			Clinic:         firstKey(groupClinics(in.Debriefs, g.Key)),
			Hours:          Round1(g.Hours),
			Debriefs:       g.Records,
			ClassesPresent: present,
			AttendanceRate: Pct(aggregate.AttendanceRate(present, in.ElapsedClasses)),
		})
	}
	return order(rows, p, sortKeys[dto.StudentHours]{
		name: func(r dto.StudentHours) string { return r.Name },
		value: map[string]func(dto.StudentHours) float64{
			SortHours:      func(r dto.StudentHours) float64 { return r.Hours },
			SortCompletion: func(r dto.StudentHours) float64 { return float64(r.AttendanceRate) },
		},
	})
}

// Attendance summarises presence against classes held so far. Expected is
// elapsed classes times headcount.
func Attendance(records []models.AttendanceRecord, weeks []models.SemesterWeek, elapsed, headcount int) dto.AttendanceSummary {
	present := aggregate.PresentCount(records)
	expected := elapsed * headcount
	rate := Pct(aggregate.AttendanceRate(present, expected))

	perWeek := make(map[int]int)
	for _, r := range records {
		if r.IsPresent && r.WeekNumber > 0 {
			perWeek[r.WeekNumber]++
		}
	}

	rows := make([]dto.AttendanceWeek, 0, len(weeks))
	for _, w := range weeks {
		rows = append(rows, dto.AttendanceWeek{
			WeekNumber: w.WeekNumber,
			Label:      WeekLabel(w.WeekLabel, w.WeekNumber, w.WeekEnd),
			WeekStart:  w.WeekStart,
			WeekEnd:    w.WeekEnd,
			IsBreak:    w.IsBreak,
			Present:    perWeek[w.WeekNumber],
		})
	}
	return dto.AttendanceSummary{
		Present:   present,
		Expected:  expected,
		Rate:      rate,
		RateLabel: PctLabel(rate),
		Weeks:     rows,
	}
}

// Missing converts missing-debrief findings into rows.
func Missing(in []aggregate.Missing) []dto.MissingDebrief {
	rows := make([]dto.MissingDebrief, 0, len(in))
	for _, m := range in {
		labels := make([]string, 0, len(m.MissingWeeks))
		for _, w := range m.MissingWeeks {
			labels = append(labels, WeekLabel(w.WeekLabel, w.WeekNumber, w.WeekEnd))
		}
		name := m.StudentName
		if name == "" {
			name = aggregate.Unknown
		}
		rows = append(rows, dto.MissingDebrief{
			StudentID:    m.StudentID,
			StudentName:  name,
			Clinic:       m.Clinic,
			ClientName:   m.ClientName,
			Expected:     m.Expected,
			Submitted:    m.Submitted,
			MissingWeeks: labels,
		})
	}
	return rows
}

// Schedule builds week selector options. The option value is the week start,
// which is what a selection carries back.
func Schedule(weeks []models.SemesterWeek) []dto.WeekOption {
	out := make([]dto.WeekOption, 0, len(weeks))
	for _, w := range weeks {
		out = append(out, dto.WeekOption{
			Value:      w.WeekStart,
			Label:      WeekLabel(w.WeekLabel, w.WeekNumber, w.WeekEnd),
			WeekNumber: w.WeekNumber,
			IsBreak:    w.IsBreak,
			WeekStart:  w.WeekStart,
			WeekEnd:    w.WeekEnd,
		})
	}
	return out
}

// Audit converts the roster audit into its response shape.
func Audit(a aggregate.Audit) dto.AuditResults {
	gaps := make([]dto.AuditClientGap, 0, len(a.ClientsMissing))
	for _, g := range a.ClientsMissing {
		gaps = append(gaps, dto.AuditClientGap{Client: g.Client, MissingClinics: g.MissingClinics})
	}
	return dto.AuditResults{
		Directors: dto.AuditDirectors{Total: a.DirectorsTotal, ByClinic: a.DirectorsByClinic},
		Students: dto.AuditStudents{
			Total:          a.StudentsTotal,
			ByClinic:       a.StudentsByClinic,
			WithClientTeam: a.StudentsWithClient,
			TeamLeaders:    a.TeamLeaders,
		},
		Clients: dto.AuditClients{
			Total:        a.ClientsTotal,
			WithDirector: a.ClientsWithDirector,
			WithStudents: a.ClientsWithStudents,
		},
		ClientAssignments: dto.AuditAssignments{Total: a.AssignmentsTotal, ByClinic: a.AssignmentsByClinic},
		ClientDirectors:   dto.AuditClientDirectors{Total: a.ClientDirectorsTotal},
		Validation: dto.AuditValidation{
			ClientsWithAllClinics:  a.ClientsWithAllClinic,
			ClientsMissingStudents: gaps,
			OrphanedStudents:       a.OrphanedStudents,
		},
	}
}

// WeeklySummary groups debrief work entries by client with the client's
// director and full team.
func WeeklySummary(debriefs []models.Debrief, mappings []models.CompleteMapping) []dto.ClientWorkSummary {
	teams := teamsByClient(mappings)
	directors := directorsByClient(mappings)

	groups := aggregate.GroupDebriefs(debriefs, aggregate.ByClient)
	entries := make(map[string][]dto.WorkEntry)
	for _, d := range debriefs {
		key := aggregate.ByClient(d)
		name := d.StudentName
		if name == "" {
			name = aggregate.Unknown
		}
		clinic := d.Clinic
		if clinic == "" {
			clinic = aggregate.Unknown
		}
		entries[key] = append(entries[key], dto.WorkEntry{
			StudentName: name,
			Clinic:      clinic,
			Hours:       Round1(d.HoursWorked),
			Summary:     d.WorkSummary,
			WeekEnding:  d.WeekEnding,
		})
	}

	out := make([]dto.ClientWorkSummary, 0, groups.Len())
	for _, g := range groups.List() {
		key := strings.ToLower(g.Key)
		director := directors[key]
		if director == "" {
			director = aggregate.Unknown
		}
		list := entries[g.Key]
		sort.SliceStable(list, func(i, j int) bool { return list[i].StudentName < list[j].StudentName })
		members := sortedNames(teams[key])
		if len(members) == 0 {
			members = sortedNames(g.Names)
		}
		out = append(out, dto.ClientWorkSummary{
			ClientName:   g.Key,
			DirectorName: director,
			TeamMembers:  members,
			TotalHours:   Round1(g.Hours),
			Entries:      list,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalHours > out[j].TotalHours })
	return out
}

// StudentProgress builds the student portal overview from one student's data.
func StudentProgress(student models.Student, debriefs []models.Debrief, attendance []models.AttendanceRecord, weeks, expected []models.SemesterWeek, elapsed, currentWeek int) dto.StudentProgress {
	total := aggregate.Total(debriefs)
	roster := []models.Student{student}
	missing := aggregate.MissingDebriefs(roster, debriefs, expected)
	submitted := len(expected)
	var missingLabels []string
	if len(missing) > 0 {
		submitted = missing[0].Submitted
		missingLabels = Missing(missing)[0].MissingWeeks
	}
	if missingLabels == nil {
		missingLabels = []string{}
	}
	name := student.FullName
	if name == "" {
		name = aggregate.Unknown
	}
	return dto.StudentProgress{
		StudentID:    student.ID,
		Name:         name,
		Clinic:       student.Clinic,
		ClientName:   student.ClientName,
		TotalHours:   Round1(total.Hours),
		Debriefs:     total.Records,
		Expected:     len(expected),
		DebriefRate:  Pct(aggregate.Percent(float64(submitted), float64(len(expected)))),
		MissingWeeks: missingLabels,
		Attendance:   Attendance(attendance, weeks, elapsed, 1),
		CurrentWeek:  currentWeek,
	}
}

func teamsByClient(mappings []models.CompleteMapping) map[string]map[string]string {
	out := make(map[string]map[string]string)
	for _, m := range mappings {
		client := strings.ToLower(strings.TrimSpace(m.ClientName))
		if client == "" || m.StudentID == "" {
			continue
		}
		if out[client] == nil {
			out[client] = make(map[string]string)
		}
		name := m.StudentName
		if name == "" {
			name = aggregate.Unknown
		}
		out[client][m.StudentID] = name
	}
	return out
}

func directorsByClient(mappings []models.CompleteMapping) map[string]string {
	out := make(map[string]string)
	for _, m := range mappings {
		client := strings.ToLower(strings.TrimSpace(m.ClientName))
		if client == "" {
			continue
		}
		if _, ok := out[client]; ok {
			continue
		}
		switch {
		case m.ClientDirectorName != "":
			out[client] = m.ClientDirectorName
		case m.ClinicDirectorName != "":
			out[client] = m.ClinicDirectorName
		}
	}
	return out
}

func groupClinics(debriefs []models.Debrief, studentKey string) map[string]string {
	out := make(map[string]string)
	for _, d := range debriefs {
		if aggregate.StudentKey(d) == studentKey && d.Clinic != "" {
			out[d.Clinic] = d.Clinic
		}
	}
	return out
}

func firstKey(m map[string]string) string {
	names := sortedNames(m)
	if len(names) == 0 {
		return aggregate.Unknown
	}
	return names[0]
}

func sortedNames(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// DateLabel formats a YYYY-MM-DD date as "Jan 2".
func DateLabel(date string) string {
	t, ok := normalizer.ParseDate(date)
	if !ok {
		return ""
	}
	return t.Format("Jan 2")
}
