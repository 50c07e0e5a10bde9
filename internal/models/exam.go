package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Exam is a dated assessment sat by one or more class sections.
type Exam struct {
	ID             string               `db:"id" json:"id"`
	TermID         string               `db:"term_id" json:"term_id"`
	SubjectID      string               `db:"subject_id" json:"subject_id"`
	Title          string               `db:"title" json:"title"`
	ClassIDs       pq.StringArray       `db:"class_ids" json:"class_ids"`
	ExamDate       time.Time            `db:"exam_date" json:"exam_date"`
	StartTime      Clock                `db:"start_time" json:"start_time"`
	EndTime        Clock                `db:"end_time" json:"end_time"`
	Room           *string              `db:"room" json:"room,omitempty"`
	Building       *string              `db:"building" json:"building,omitempty"`
	InvigilatorIDs pq.StringArray       `db:"invigilator_ids" json:"invigilator_ids"`
	ConflictReport StoredConflictReport `db:"conflict_report" json:"conflict_report"`
	CreatedAt      time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time            `db:"updated_at" json:"updated_at"`
}

// ExamFilter narrows exam listings.
type ExamFilter struct {
	TermID    string
	ClassID   string
	DateFrom  *time.Time
	DateUntil *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Allocation normalises the exam for conflict checking. Students are
// resolved separately from enrollments.
func (e Exam) Allocation(studentIDs []string) Allocation {
	alloc := Allocation{
		ID:         e.ID,
		Kind:       AllocationKindExam,
		Title:      e.Title,
		Date:       DateOf(e.ExamDate),
		Interval:   Interval{Start: e.StartTime, End: e.EndTime},
		FacultyIDs: append([]string(nil), e.InvigilatorIDs...),
		StudentIDs: studentIDs,
	}
	if e.Room != nil {
		alloc.Room = *e.Room
	}
	if e.Building != nil {
		alloc.Building = *e.Building
	}
	return alloc
}

// StoredConflictReport persists informational conflicts next to the exam as JSONB.
type StoredConflictReport struct {
	ConflictReport
	CheckedAt *time.Time `json:"checked_at,omitempty"`
}

// Value marshals the report for persistence.
func (r StoredConflictReport) Value() (driver.Value, error) {
	if r.Conflicts == nil {
		r.Conflicts = []Conflict{}
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal conflict report: %w", err)
	}
	return data, nil
}

// Scan unmarshals the JSONB column.
func (r *StoredConflictReport) Scan(value interface{}) error {
	if value == nil {
		*r = StoredConflictReport{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported conflict report type %T", value)
	}
	if len(data) == 0 {
		*r = StoredConflictReport{}
		return nil
	}
	return json.Unmarshal(data, r)
}
