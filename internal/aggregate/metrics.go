package aggregate

// Progress badges.
const (
	BadgeOnTrack        = "On Track"
	BadgeGoodProgress   = "Good Progress"
	BadgeNeedsAttention = "Needs Attention"
	BadgeBehind         = "Behind Schedule"
)

// CompletionRate returns reviewed/submitted as a percentage, 0 when nothing
// was submitted.
func CompletionRate(reviewed, submitted int) float64 {
	if submitted <= 0 {
		return 0
	}
	return float64(reviewed) / float64(submitted) * 100
}

// AvgHoursPerStudent returns hours per distinct student, 0 without students.
func AvgHoursPerStudent(hours float64, students int) float64 {
	if students <= 0 {
		return 0
	}
	return hours / float64(students)
}

// WeeklyTrend returns the percent change from prev to last, 0 when prev is 0.
func WeeklyTrend(last, prev float64) float64 {
	if prev == 0 {
		return 0
	}
	return (last - prev) / prev * 100
}

// AttendanceRate returns present/total as a percentage capped at 100, 0 when
// no classes were expected.
func AttendanceRate(present, total int) float64 {
	if total <= 0 {
		return 0
	}
	rate := float64(present) / float64(total) * 100
	if rate > 100 {
		return 100
	}
	return rate
}

// Percent returns part/whole*100 capped at 100, 0 when whole is not positive.
func Percent(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	p := part / whole * 100
	if p > 100 {
		return 100
	}
	return p
}

// HoursTarget returns expected hours for a team over elapsed weeks.
func HoursTarget(students int, hoursPerWeek float64, weeks int) float64 {
	if students <= 0 || weeks <= 0 || hoursPerWeek <= 0 {
		return 0
	}
	return float64(students) * hoursPerWeek * float64(weeks)
}

// ProgressBadge labels progress toward a target expressed in percent.
func ProgressBadge(pct float64) string {
	switch {
	case pct >= 100:
		return BadgeOnTrack
	case pct >= 75:
		return BadgeGoodProgress
	case pct >= 50:
		return BadgeNeedsAttention
	default:
		return BadgeBehind
	}
}
