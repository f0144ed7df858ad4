// Package aggregate folds normalized records into per-group totals and
// derived rates. Values here are never rounded.
package aggregate

import (
	"sort"
	"strings"

	"github.com/noah-isme/clinic-portal-api/internal/models"
)

// Unknown labels records whose grouping field is blank.
const Unknown = "Unknown"

// KeyFunc picks the grouping key of a debrief.
type KeyFunc func(models.Debrief) string

// Grouping keys.
var (
	ByClinic  KeyFunc = func(d models.Debrief) string { return orUnknown(d.Clinic) }
	ByClient  KeyFunc = func(d models.Debrief) string { return orUnknown(d.ClientName) }
	ByStudent KeyFunc = func(d models.Debrief) string { return orUnknown(StudentKey(d)) }
	ByWeek    KeyFunc = func(d models.Debrief) string { return orUnknown(d.WeekEnding) }
)

// StudentKey identifies the author of a debrief by id, then email, then name.
func StudentKey(d models.Debrief) string {
	switch {
	case d.StudentID != "":
		return d.StudentID
	case d.StudentEmail != "":
		return strings.ToLower(d.StudentEmail)
	default:
		return d.StudentName
	}
}

// Group accumulates totals for one key.
type Group struct {
	Key       string
	Hours     float64
	Records   int
	Submitted int
	Reviewed  int
	Pending   int
	Students  map[string]struct{}
	Clients   map[string]struct{}
	WeekHours map[string]float64
	// Names maps a student key to the display name seen first.
	Names map[string]string
}

func newGroup(key string) *Group {
	return &Group{
		Key:       key,
		Students:  make(map[string]struct{}),
		Clients:   make(map[string]struct{}),
		WeekHours: make(map[string]float64),
		Names:     make(map[string]string),
	}
}

func (g *Group) add(d models.Debrief) {
	g.Hours += d.HoursWorked
	g.Records++
	switch {
	case d.Status == models.DebriefReviewed:
		g.Submitted++
		g.Reviewed++
	case d.Status.CountsAsSubmitted():
		g.Submitted++
	case d.Status == models.DebriefPending:
		g.Pending++
	}
	if sk := StudentKey(d); sk != "" {
		g.Students[sk] = struct{}{}
		if _, ok := g.Names[sk]; !ok && d.StudentName != "" {
			g.Names[sk] = d.StudentName
		}
	}
	if name := strings.TrimSpace(d.ClientName); name != "" {
		g.Clients[name] = struct{}{}
	}
	if d.WeekEnding != "" {
		g.WeekHours[d.WeekEnding] += d.HoursWorked
	}
}

// StudentCount returns the number of distinct students.
func (g *Group) StudentCount() int { return len(g.Students) }

// ClientCount returns the number of distinct clients.
func (g *Group) ClientCount() int { return len(g.Clients) }

// CompletionRate is the reviewed share of submitted debriefs, in percent.
func (g *Group) CompletionRate() float64 { return CompletionRate(g.Reviewed, g.Submitted) }

// AvgHoursPerStudent is hours divided by distinct students.
func (g *Group) AvgHoursPerStudent() float64 { return AvgHoursPerStudent(g.Hours, g.StudentCount()) }

// WeeklyTrend compares the two most recent weeks in the group.
func (g *Group) WeeklyTrend() float64 {
	last, prev := LastTwo(g.WeekHours)
	return WeeklyTrend(last, prev)
}

// Groups keeps groups in first-appearance order.
type Groups struct {
	order []string
	byKey map[string]*Group
}

// GroupDebriefs folds debriefs by key.
func GroupDebriefs(debriefs []models.Debrief, key KeyFunc) *Groups {
	gs := &Groups{byKey: make(map[string]*Group)}
	for _, d := range debriefs {
		k := key(d)
		g, ok := gs.byKey[k]
		if !ok {
			g = newGroup(k)
			gs.byKey[k] = g
			gs.order = append(gs.order, k)
		}
		g.add(d)
	}
	return gs
}

// Total folds every debrief into a single group.
func Total(debriefs []models.Debrief) *Group {
	g := newGroup("total")
	for _, d := range debriefs {
		g.add(d)
	}
	return g
}

// List returns the groups in first-appearance order.
func (gs *Groups) List() []*Group {
	out := make([]*Group, 0, len(gs.order))
	for _, k := range gs.order {
		out = append(out, gs.byKey[k])
	}
	return out
}

// Get returns the group for key.
func (gs *Groups) Get(key string) (*Group, bool) {
	g, ok := gs.byKey[key]
	return g, ok
}

// Len returns the number of groups.
func (gs *Groups) Len() int { return len(gs.order) }

// LastTwo returns the values for the latest and the previous date key.
func LastTwo(byDate map[string]float64) (last, prev float64) {
	keys := make([]string, 0, len(byDate))
	for k := range byDate {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if n := len(keys); n > 0 {
		last = byDate[keys[n-1]]
		if n > 1 {
			prev = byDate[keys[n-2]]
		}
	}
	return last, prev
}

// StudentsPerWeek counts distinct students per week ending.
func StudentsPerWeek(debriefs []models.Debrief) map[string]float64 {
	sets := make(map[string]map[string]struct{})
	for _, d := range debriefs {
		if d.WeekEnding == "" {
			continue
		}
		sk := StudentKey(d)
		if sk == "" {
			continue
		}
		if sets[d.WeekEnding] == nil {
			sets[d.WeekEnding] = make(map[string]struct{})
		}
		sets[d.WeekEnding][sk] = struct{}{}
	}
	out := make(map[string]float64, len(sets))
	for week, set := range sets {
		out[week] = float64(len(set))
	}
	return out
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return Unknown
	}
	return s
}
