// Package filter decides whether a record belongs to the current selection,
// either by time (selected weeks) or by ownership (director scope).
package filter

import (
	"time"

	"github.com/noah-isme/clinic-portal-api/internal/models"
	"github.com/noah-isme/clinic-portal-api/internal/normalizer"
)

const weekSpan = 6 * 24 * time.Hour

type window struct {
	start time.Time
	end   time.Time
}

// WeekMatcher tests dates against a set of selected weeks. Each selected week
// is identified by its start date and covers start through start+6 days
// inclusive, unless the schedule supplies explicit bounds for that start.
type WeekMatcher struct {
	all     bool
	windows []window
}

// NewWeekMatcher builds a matcher for selected week starts. Unparsable
// selections are ignored; if every selection is unparsable the matcher
// matches nothing.
func NewWeekMatcher(selected []string, schedule []models.SemesterWeek) *WeekMatcher {
	bounds := make(map[string]window, len(schedule))
	for _, w := range schedule {
		start, okStart := normalizer.ParseDate(w.WeekStart)
		end, okEnd := normalizer.ParseDate(w.WeekEnd)
		if okStart && okEnd && !end.Before(start) {
			bounds[start.Format(time.DateOnly)] = window{start: start, end: end}
		}
	}

	if len(selected) == 0 {
		return &WeekMatcher{all: true}
	}

	m := &WeekMatcher{windows: make([]window, 0, len(selected))}
	for _, raw := range selected {
		start, ok := normalizer.ParseDate(raw)
		if !ok {
			continue
		}
		if b, known := bounds[start.Format(time.DateOnly)]; known {
			m.windows = append(m.windows, b)
			continue
		}
		m.windows = append(m.windows, window{start: start, end: start.Add(weekSpan)})
	}
	return m
}

// All reports whether the matcher accepts every date.
func (m *WeekMatcher) All() bool {
	return m == nil || m.all
}

// Matches reports whether date falls inside a selected week. An empty
// selection matches every date, including blank ones. Malformed dates never
// match a non-empty selection.
func (m *WeekMatcher) Matches(date string) bool {
	if m.All() {
		return true
	}
	d, ok := normalizer.ParseDate(date)
	if !ok {
		return false
	}
	for _, w := range m.windows {
		if !d.Before(w.start) && !d.After(w.end) {
			return true
		}
	}
	return false
}

// MatchesWeek is the schedule-free form of WeekMatcher.Matches.
func MatchesWeek(date string, selectedWeekStarts []string) bool {
	return NewWeekMatcher(selectedWeekStarts, nil).Matches(date)
}

// Debriefs keeps debriefs whose week ending falls in the selection.
func (m *WeekMatcher) Debriefs(in []models.Debrief) []models.Debrief {
	if m.All() {
		return in
	}
	out := make([]models.Debrief, 0, len(in))
	for _, d := range in {
		if m.Matches(d.WeekEnding) {
			out = append(out, d)
		}
	}
	return out
}

// Attendance keeps attendance records whose class date (or week ending when
// the class date is missing) falls in the selection.
func (m *WeekMatcher) Attendance(in []models.AttendanceRecord) []models.AttendanceRecord {
	if m.All() {
		return in
	}
	out := make([]models.AttendanceRecord, 0, len(in))
	for _, a := range in {
		date := a.ClassDate
		if date == "" {
			date = a.WeekEnding
		}
		if m.Matches(date) {
			out = append(out, a)
		}
	}
	return out
}

// Weeks keeps schedule weeks whose start is selected.
func (m *WeekMatcher) Weeks(in []models.SemesterWeek) []models.SemesterWeek {
	if m.All() {
		return in
	}
	out := make([]models.SemesterWeek, 0, len(in))
	for _, w := range in {
		if m.Matches(w.WeekStart) {
			out = append(out, w)
		}
	}
	return out
}
