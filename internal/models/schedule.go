package models

import (
	"strings"
	"time"
)

// Schedule is a weekly recurring timetable entry for a class within a term.
type Schedule struct {
	ID             string               `db:"id" json:"id"`
	TermID         string               `db:"term_id" json:"term_id"`
	ClassID        string               `db:"class_id" json:"class_id"`
	SubjectID      string               `db:"subject_id" json:"subject_id"`
	TeacherID      string               `db:"teacher_id" json:"teacher_id"`
	DayOfWeek      string               `db:"day_of_week" json:"day_of_week"`
	StartTime      Clock                `db:"start_time" json:"start_time"`
	EndTime        Clock                `db:"end_time" json:"end_time"`
	Room           *string              `db:"room" json:"room,omitempty"`
	Building       *string              `db:"building" json:"building,omitempty"`
	ValidFrom      *time.Time           `db:"valid_from" json:"valid_from,omitempty"`
	ValidUntil     *time.Time           `db:"valid_until" json:"valid_until,omitempty"`
	ConflictReport StoredConflictReport `db:"conflict_report" json:"conflict_report"`
	CreatedAt      time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time            `db:"updated_at" json:"updated_at"`
}

// ScheduleFilter describes query params for listing schedules.
type ScheduleFilter struct {
	TermID    string
	ClassID   string
	TeacherID string
	DayOfWeek string
	Room      string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

var weekdays = map[string]time.Weekday{
	"SUNDAY":    time.Sunday,
	"MONDAY":    time.Monday,
	"TUESDAY":   time.Tuesday,
	"WEDNESDAY": time.Wednesday,
	"THURSDAY":  time.Thursday,
	"FRIDAY":    time.Friday,
	"SATURDAY":  time.Saturday,
}

// ParseWeekday maps an upper or lower case day name onto time.Weekday.
func ParseWeekday(day string) (time.Weekday, bool) {
	wd, ok := weekdays[strings.ToUpper(strings.TrimSpace(day))]
	return wd, ok
}

// ActiveOn reports whether the entry recurs on date, ignoring the weekday.
func (s Schedule) ActiveOn(date time.Time) bool {
	date = DateOf(date)
	if s.ValidFrom != nil && date.Before(DateOf(*s.ValidFrom)) {
		return false
	}
	if s.ValidUntil != nil && date.After(DateOf(*s.ValidUntil)) {
		return false
	}
	return true
}

// Occurrence expands the entry onto a concrete date.
func (s Schedule) Occurrence(date time.Time, studentIDs []string) Allocation {
	alloc := Allocation{
		ID:         s.ID,
		Kind:       AllocationKindClass,
		Title:      s.Title(),
		Date:       DateOf(date),
		Interval:   Interval{Start: s.StartTime, End: s.EndTime},
		StudentIDs: studentIDs,
	}
	if s.TeacherID != "" {
		alloc.FacultyIDs = []string{s.TeacherID}
	}
	if s.Room != nil {
		alloc.Room = *s.Room
	}
	if s.Building != nil {
		alloc.Building = *s.Building
	}
	return alloc
}

// Title labels the entry in conflict messages.
func (s Schedule) Title() string {
	return s.SubjectID + " / " + s.ClassID + " (" + s.DayOfWeek + " " + s.StartTime.String() + ")"
}
