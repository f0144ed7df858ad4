package aggregate

import (
	"strings"
	"time"

	"github.com/noah-isme/clinic-portal-api/internal/filter"
	"github.com/noah-isme/clinic-portal-api/internal/models"
	"github.com/noah-isme/clinic-portal-api/internal/normalizer"
	"github.com/noah-isme/clinic-portal-api/internal/semester"
)

// ExpectedWeeks returns the weeks each student owes a debrief for: ended,
// not a break, and within the selection.
func ExpectedWeeks(weeks []models.SemesterWeek, matcher *filter.WeekMatcher, cal semester.Calendar, asOf time.Time) []models.SemesterWeek {
	return matcher.Weeks(cal.DueWeeks(weeks, asOf))
}

// ExpectedSubmissions is the number of debriefs a single student owes.
func ExpectedSubmissions(weeks []models.SemesterWeek, matcher *filter.WeekMatcher, cal semester.Calendar, asOf time.Time) int {
	return len(ExpectedWeeks(weeks, matcher, cal, asOf))
}

// Missing describes a student who has not covered every expected week.
type Missing struct {
	StudentID    string
	StudentName  string
	Clinic       string
	ClientName   string
	Expected     int
	Submitted    int
	MissingWeeks []models.SemesterWeek
}

// MissingDebriefs lists students whose non-draft debriefs do not cover every
// expected week. A debrief covers at most one week: its week number when
// set, otherwise the week whose range holds its week ending. Students are
// reported in roster order.
func MissingDebriefs(students []models.Student, debriefs []models.Debrief, expected []models.SemesterWeek) []Missing {
	if len(expected) == 0 {
		return []Missing{}
	}

	type span struct{ start, end time.Time }
	spans := make([]span, len(expected))
	for i, w := range expected {
		s, _ := normalizer.ParseDate(w.WeekStart)
		e, _ := normalizer.ParseDate(w.WeekEnd)
		spans[i] = span{s, e}
	}
	weekOf := func(d models.Debrief) int {
		if d.WeekNumber > 0 {
			for i, w := range expected {
				if w.WeekNumber == d.WeekNumber {
					return i
				}
			}
			return -1
		}
		date, ok := normalizer.ParseDate(d.WeekEnding)
		if !ok {
			return -1
		}
		for i, sp := range spans {
			if !sp.start.IsZero() && !date.Before(sp.start) && !date.After(sp.end) {
				return i
			}
		}
		return -1
	}

	covered := make(map[string]map[int]struct{})
	for _, d := range debriefs {
		if d.Status == models.DebriefDraft {
			continue
		}
		sk := StudentKey(d)
		if sk == "" {
			continue
		}
		i := weekOf(d)
		if i < 0 {
			continue
		}
		if covered[sk] == nil {
			covered[sk] = make(map[int]struct{})
		}
		covered[sk][i] = struct{}{}
	}

	out := make([]Missing, 0)
	for _, st := range students {
		got := coverageFor(covered, st)
		if len(got) >= len(expected) {
			continue
		}
		missing := make([]models.SemesterWeek, 0, len(expected)-len(got))
		for i, w := range expected {
			if _, ok := got[i]; !ok {
				missing = append(missing, w)
			}
		}
		out = append(out, Missing{
			StudentID:    st.ID,
			StudentName:  st.FullName,
			Clinic:       st.Clinic,
			ClientName:   st.ClientName,
			Expected:     len(expected),
			Submitted:    len(got),
			MissingWeeks: missing,
		})
	}
	return out
}

// coverageFor merges the weeks credited to a student under any key a
// debrief may have been filed by.
func coverageFor(covered map[string]map[int]struct{}, st models.Student) map[int]struct{} {
	got := make(map[int]struct{})
	keys := []string{st.ID}
	if st.Email != "" {
		keys = append(keys, strings.ToLower(st.Email))
	}
	for _, k := range keys {
		if k == "" {
			continue
		}
		for i := range covered[k] {
			got[i] = struct{}{}
		}
	}
	return got
}

// AttendanceTally counts attendance for one student.
type AttendanceTally struct {
	StudentID   string
	StudentName string
	Present     int
	Records     int
}

// TallyAttendance counts present records per student in first-appearance order.
func TallyAttendance(records []models.AttendanceRecord) []AttendanceTally {
	idx := make(map[string]int)
	out := make([]AttendanceTally, 0)
	for _, r := range records {
		key := r.StudentID
		if key == "" {
			key = r.StudentName
		}
		if key == "" {
			continue
		}
		i, ok := idx[key]
		if !ok {
			i = len(out)
			idx[key] = i
			out = append(out, AttendanceTally{StudentID: r.StudentID, StudentName: r.StudentName})
		}
		out[i].Records++
		if r.IsPresent {
			out[i].Present++
		}
	}
	return out
}

// PresentCount counts records marked present.
func PresentCount(records []models.AttendanceRecord) int {
	n := 0
	for _, r := range records {
		if r.IsPresent {
			n++
		}
	}
	return n
}
