package models

// SemesterWeek is one entry of the semester schedule. WeekEnd is inclusive.
type SemesterWeek struct {
	ID           string `json:"id"`
	SemesterID   string `json:"semesterId"`
	WeekNumber   int    `json:"weekNumber"`
	WeekLabel    string `json:"weekLabel"`
	WeekStart    string `json:"weekStart"`
	WeekEnd      string `json:"weekEnd"`
	IsBreak      bool   `json:"isBreak"`
	SessionFocus string `json:"sessionFocus"`
}
