package models

import (
	"fmt"
	"strings"
	"time"
)

// AllocationKind distinguishes exams from recurring timetable entries.
type AllocationKind string

const (
	AllocationKindExam  AllocationKind = "EXAM"
	AllocationKindClass AllocationKind = "CLASS"
)

// Interval is a half-open [Start, End) range within one day.
type Interval struct {
	Start Clock `json:"start"`
	End   Clock `json:"end"`
}

// Valid reports whether the interval is non-empty and inside the day.
func (i Interval) Valid() bool {
	return i.Start.Valid() && i.End.Valid() && i.Start < i.End
}

// Overlaps reports whether two intervals intersect. Touching ends do not.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start < other.End && other.Start < i.End
}

// Intersect returns the shared part of two overlapping intervals.
func (i Interval) Intersect(other Interval) Interval {
	out := i
	if other.Start > out.Start {
		out.Start = other.Start
	}
	if other.End < out.End {
		out.End = other.End
	}
	return out
}

// String renders the interval as HH:MM-HH:MM.
func (i Interval) String() string {
	return fmt.Sprintf("%s-%s", i.Start, i.End)
}

// Allocation is a single dated, timed claim on a room and people. Exams and
// expanded timetable occurrences are normalised into this shape before
// conflict checking.
type Allocation struct {
	ID         string         `json:"id"`
	Kind       AllocationKind `json:"kind"`
	Title      string         `json:"title"`
	Date       time.Time      `json:"date"`
	Interval   Interval       `json:"interval"`
	Room       string         `json:"room,omitempty"`
	Building   string         `json:"building,omitempty"`
	FacultyIDs []string       `json:"faculty_ids"`
	StudentIDs []string       `json:"student_ids,omitempty"`
}

// HasRoom reports whether a room has been assigned.
func (a Allocation) HasRoom() bool {
	return strings.TrimSpace(a.Room) != ""
}

// RoomKey identifies the physical room across buildings.
func (a Allocation) RoomKey() string {
	if !a.HasRoom() {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(a.Building)) + "/" + strings.ToLower(strings.TrimSpace(a.Room))
}

// RoomLabel is the human readable room name.
func (a Allocation) RoomLabel() string {
	if strings.TrimSpace(a.Building) == "" {
		return a.Room
	}
	return fmt.Sprintf("%s (%s)", a.Room, a.Building)
}

// DateKey renders the allocation date as YYYY-MM-DD.
func (a Allocation) DateKey() string {
	return a.Date.Format(DateLayout)
}
