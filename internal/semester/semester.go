// Package semester answers calendar questions about the semester schedule:
// which week is current, which classes have happened, and which weeks are
// due a debrief.
package semester

import (
	"fmt"
	"sort"
	"time"

	"github.com/noah-isme/clinic-portal-api/internal/models"
	"github.com/noah-isme/clinic-portal-api/internal/normalizer"
)

// ClassStatus describes a student's standing for one class week.
type ClassStatus string

const (
	StatusAttended ClassStatus = "attended"
	StatusMissed   ClassStatus = "missed"
	StatusUpcoming ClassStatus = "upcoming"
	StatusBreak    ClassStatus = "break"
)

// Calendar holds the weekly class time. Classes meet on the first day of each
// schedule week and count as held once the class time has passed.
type Calendar struct {
	ClassHour   int
	ClassMinute int
	Location    *time.Location
}

// DefaultCalendar meets at 19:30 local time.
func DefaultCalendar() Calendar {
	return Calendar{ClassHour: 19, ClassMinute: 30, Location: time.Local}
}

func (c Calendar) loc() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

func (c Calendar) day(raw string) (time.Time, bool) {
	t, ok := normalizer.ParseDate(raw)
	if !ok {
		return time.Time{}, false
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc()), true
}

// ClassTime returns when the class for week takes place.
func (c Calendar) ClassTime(week models.SemesterWeek) (time.Time, bool) {
	d, ok := c.day(week.WeekStart)
	if !ok {
		return time.Time{}, false
	}
	return d.Add(time.Duration(c.ClassHour)*time.Hour + time.Duration(c.ClassMinute)*time.Minute), true
}

// CurrentWeekNumber returns the number of the week containing now. Before the
// semester it is 0; after the semester it is the last week's number.
func (c Calendar) CurrentWeekNumber(weeks []models.SemesterWeek, now time.Time) int {
	today := c.truncate(now)
	var last *models.SemesterWeek
	for i := range weeks {
		w := &weeks[i]
		start, okS := c.day(w.WeekStart)
		end, okE := c.day(w.WeekEnd)
		if !okS || !okE {
			continue
		}
		if !today.Before(start) && !today.After(end) {
			return w.WeekNumber
		}
		if last == nil || w.WeekNumber > last.WeekNumber {
			last = w
		}
	}
	if last != nil {
		if end, ok := c.day(last.WeekEnd); ok && today.After(end) {
			return last.WeekNumber
		}
	}
	return 0
}

// ElapsedClasses counts non-break weeks whose class time is on or before the
// end of today.
func (c Calendar) ElapsedClasses(weeks []models.SemesterWeek, now time.Time) int {
	endOfDay := c.truncate(now).Add(24*time.Hour - time.Nanosecond)
	count := 0
	for _, w := range weeks {
		if w.IsBreak {
			continue
		}
		if at, ok := c.ClassTime(w); ok && !at.After(endOfDay) {
			count++
		}
	}
	return count
}

// TotalClasses counts non-break weeks.
func TotalClasses(weeks []models.SemesterWeek) int {
	count := 0
	for _, w := range weeks {
		if !w.IsBreak {
			count++
		}
	}
	return count
}

// DueWeeks returns the non-break weeks that have fully ended by now. Break
// weeks never expect a debrief.
func (c Calendar) DueWeeks(weeks []models.SemesterWeek, now time.Time) []models.SemesterWeek {
	today := c.truncate(now)
	out := make([]models.SemesterWeek, 0, len(weeks))
	for _, w := range weeks {
		if w.IsBreak {
			continue
		}
		end, ok := c.day(w.WeekEnd)
		if ok && !end.After(today) {
			out = append(out, w)
		}
	}
	return out
}

// Status returns the class standing for week given a student's attendance.
func (c Calendar) Status(week models.SemesterWeek, attendance []models.AttendanceRecord, now time.Time) ClassStatus {
	if week.IsBreak {
		return StatusBreak
	}
	for _, a := range attendance {
		if a.WeekNumber == week.WeekNumber && a.IsPresent {
			return StatusAttended
		}
	}
	if at, ok := c.ClassTime(week); ok && now.In(c.loc()).After(at) {
		return StatusMissed
	}
	return StatusUpcoming
}

// WeekFor returns the week whose range contains date.
func (c Calendar) WeekFor(weeks []models.SemesterWeek, date string) (models.SemesterWeek, bool) {
	d, ok := c.day(date)
	if !ok {
		return models.SemesterWeek{}, false
	}
	for _, w := range weeks {
		start, okS := c.day(w.WeekStart)
		end, okE := c.day(w.WeekEnd)
		if okS && okE && !d.Before(start) && !d.After(end) {
			return w, true
		}
	}
	return models.SemesterWeek{}, false
}

func (c Calendar) truncate(now time.Time) time.Time {
	local := now.In(c.loc())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc())
}

// Sort orders weeks by start date, then week number.
func Sort(weeks []models.SemesterWeek) []models.SemesterWeek {
	out := append([]models.SemesterWeek(nil), weeks...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].WeekStart != out[j].WeekStart {
			return out[i].WeekStart < out[j].WeekStart
		}
		return out[i].WeekNumber < out[j].WeekNumber
	})
	return out
}

// FallbackSchedule builds the default fourteen-week fall schedule used when
// the backend has no schedule rows: weekly from September 8, 2025, with the
// sixth week as the October break.
func FallbackSchedule() []models.SemesterWeek {
	start := time.Date(2025, time.September, 8, 0, 0, 0, 0, time.UTC)
	weeks := make([]models.SemesterWeek, 0, 14)
	teaching := 0
	for i := 0; i < 14; i++ {
		ws := start.AddDate(0, 0, 7*i)
		w := models.SemesterWeek{
			WeekNumber: i + 1,
			WeekStart:  ws.Format(time.DateOnly),
			WeekEnd:    ws.AddDate(0, 0, 6).Format(time.DateOnly),
		}
		if i == 5 {
			w.IsBreak = true
			w.WeekLabel = "Oct Break"
		} else {
			teaching++
			w.WeekLabel = fmt.Sprintf("Week %d", teaching)
		}
		weeks = append(weeks, w)
	}
	return weeks
}
