package conflict

import (
	"time"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
)

// Index groups the allocations of one date by room, faculty member and student.
type Index struct {
	date      time.Time
	byRoom    map[string][]*models.Allocation
	byFaculty map[string][]*models.Allocation
	byStudent map[string][]*models.Allocation
}

// BuildIndex indexes the allocations that fall on date. Allocations without a
// room are left out of the room dimension.
func BuildIndex(date time.Time, existing []models.Allocation) *Index {
	idx := &Index{
		date:      models.DateOf(date),
		byRoom:    make(map[string][]*models.Allocation),
		byFaculty: make(map[string][]*models.Allocation),
		byStudent: make(map[string][]*models.Allocation),
	}
	for i := range existing {
		a := &existing[i]
		if !models.SameDate(a.Date, idx.date) {
			continue
		}
		if key := a.RoomKey(); key != "" {
			idx.byRoom[key] = append(idx.byRoom[key], a)
		}
		for _, id := range uniqueIDs(a.FacultyIDs) {
			idx.byFaculty[id] = append(idx.byFaculty[id], a)
		}
		for _, id := range uniqueIDs(a.StudentIDs) {
			idx.byStudent[id] = append(idx.byStudent[id], a)
		}
	}
	return idx
}

// Date returns the calendar date the index covers.
func (idx *Index) Date() time.Time {
	return idx.date
}

// ByRoom returns allocations using the room identified by key.
func (idx *Index) ByRoom(key string) []*models.Allocation {
	return idx.byRoom[key]
}

// ByFaculty returns allocations assigned to the faculty member.
func (idx *Index) ByFaculty(id string) []*models.Allocation {
	return idx.byFaculty[id]
}

// ByStudent returns allocations the student is expected at.
func (idx *Index) ByStudent(id string) []*models.Allocation {
	return idx.byStudent[id]
}

// Size reports the number of distinct keys per dimension.
func (idx *Index) Size() (rooms, faculty, students int) {
	return len(idx.byRoom), len(idx.byFaculty), len(idx.byStudent)
}

func uniqueIDs(ids []string) []string {
	if len(ids) < 2 {
		if len(ids) == 1 && ids[0] == "" {
			return nil
		}
		return ids
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
