package models

import "time"

// ConflictType names the resource dimension two allocations collide on.
type ConflictType string

const (
	ConflictTypeRoom    ConflictType = "ROOM"
	ConflictTypeFaculty ConflictType = "FACULTY"
	ConflictTypeStudent ConflictType = "STUDENT"
)

// Rank orders conflict types for deterministic output.
func (t ConflictType) Rank() int {
	switch t {
	case ConflictTypeRoom:
		return 0
	case ConflictTypeFaculty:
		return 1
	case ConflictTypeStudent:
		return 2
	default:
		return 3
	}
}

// Valid reports whether t is a known conflict type.
func (t ConflictType) Valid() bool {
	return t.Rank() < 3
}

// Conflict describes one existing allocation colliding with a proposal.
type Conflict struct {
	Type                       ConflictType   `json:"type"`
	ConflictingAllocationID    string         `json:"conflicting_allocation_id"`
	ConflictingAllocationTitle string         `json:"conflicting_allocation_title"`
	ConflictingAllocationKind  AllocationKind `json:"conflicting_allocation_kind"`
	Date                       time.Time      `json:"date"`
	Interval                   Interval       `json:"interval"`
	Message                    string         `json:"message"`
	SharedFacultyIDs           []string       `json:"shared_faculty_ids,omitempty"`
	SharedStudentIDs           []string       `json:"shared_student_ids,omitempty"`
}

// ConflictReport is the outcome of checking one proposal.
type ConflictReport struct {
	Conflicts           []Conflict `json:"conflicts"`
	HasBlockingConflict bool       `json:"has_blocking_conflict"`
}

// Empty reports whether no conflicts were found.
func (r *ConflictReport) Empty() bool {
	return r == nil || len(r.Conflicts) == 0
}

// CountByType tallies conflicts per dimension.
func (r *ConflictReport) CountByType() map[ConflictType]int {
	counts := map[ConflictType]int{}
	if r == nil {
		return counts
	}
	for _, c := range r.Conflicts {
		counts[c.Type]++
	}
	return counts
}

// ConflictError is returned when a proposal collides with a blocking resource.
type ConflictError struct {
	Message string          `json:"message"`
	Report  *ConflictReport `json:"report"`
}

// Error implements the error interface for conflict errors.
func (e *ConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

// StaleSnapshotError signals that a concurrent writer claimed a resource
// between the initial check and commit.
type StaleSnapshotError struct {
	Message string          `json:"message"`
	Report  *ConflictReport `json:"report"`
}

// Error implements the error interface.
func (e *StaleSnapshotError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

// Retryable marks stale snapshots as safe to resubmit.
func (e *StaleSnapshotError) Retryable() bool {
	return true
}

// ReportFormat enumerates supported conflict export formats.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)
