// Package viewmodel turns aggregates into ready-to-render rows. It is the
// only place values are rounded or formatted.
package viewmodel

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Sort fields accepted by Policy.
const (
	SortHours      = "hours"
	SortName       = "name"
	SortStudents   = "students"
	SortClients    = "clients"
	SortCompletion = "completion"
)

// Policy controls ordering and truncation of a table.
type Policy struct {
	SortBy string
	Desc   bool
	Limit  int
}

// DefaultPolicy sorts by hours, largest first, without a limit.
func DefaultPolicy() Policy {
	return Policy{SortBy: SortHours, Desc: true}
}

// Round1 rounds to one decimal place for hour displays.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Pct rounds a percentage to an integer.
func Pct(v float64) int {
	return int(math.Round(v))
}

// PctLabel formats an integer percentage.
func PctLabel(p int) string {
	return fmt.Sprintf("%d%%", p)
}

// SignedPctLabel formats a change with an explicit sign.
func SignedPctLabel(p int) string {
	if p > 0 {
		return fmt.Sprintf("+%d%%", p)
	}
	return PctLabel(p)
}

// WeekLabel returns the schedule label or a numbered fallback.
func WeekLabel(label string, number int, weekEnd string) string {
	if strings.TrimSpace(label) != "" {
		return label
	}
	if number > 0 {
		return fmt.Sprintf("Week %d", number)
	}
	return weekEnd
}

type sortKeys[T any] struct {
	name  func(T) string
	value map[string]func(T) float64
}

// order sorts rows by policy, falling back to name for ties and for unknown
// fields, then applies the limit.
func order[T any](rows []T, p Policy, keys sortKeys[T]) []T {
	by := p.SortBy
	if by == "" {
		by = SortHours
	}
	metric, numeric := keys.value[by]
	sort.SliceStable(rows, func(i, j int) bool {
		if numeric {
			a, b := metric(rows[i]), metric(rows[j])
			if a != b {
				if p.Desc {
					return a > b
				}
				return a < b
			}
			return strings.ToLower(keys.name(rows[i])) < strings.ToLower(keys.name(rows[j]))
		}
		a, b := strings.ToLower(keys.name(rows[i])), strings.ToLower(keys.name(rows[j]))
		if p.Desc {
			return a > b
		}
		return a < b
	})
	if p.Limit > 0 && len(rows) > p.Limit {
		rows = rows[:p.Limit]
	}
	return rows
}
