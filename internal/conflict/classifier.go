package conflict

import (
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
)

// Classify returns every conflict between proposed and the indexed
// allocations, one per (type, conflicting allocation), in deterministic order.
func Classify(proposed models.Allocation, idx *Index) []models.Conflict {
	c := classifier{
		proposed: proposed,
		overlap:  make(map[string]bool),
	}

	var out []models.Conflict
	if key := proposed.RoomKey(); key != "" {
		for _, candidate := range idx.ByRoom(key) {
			if !c.collides(candidate) {
				continue
			}
			conflict := c.newConflict(models.ConflictTypeRoom, candidate)
			conflict.Message = fmt.Sprintf("room %s is already booked for %s on %s %s",
				proposed.RoomLabel(), candidate.Title, proposed.DateKey(), conflict.Interval)
			out = append(out, conflict)
		}
	}

	faculty := c.collect(models.ConflictTypeFaculty, proposed.FacultyIDs, idx.ByFaculty)
	for i := range faculty {
		f := &faculty[i]
		f.Message = fmt.Sprintf("%s already assigned to %s on %s %s",
			describeShared(f.SharedFacultyIDs, "faculty member", "faculty members"), f.ConflictingAllocationTitle, proposed.DateKey(), f.Interval)
	}
	out = append(out, faculty...)

	students := c.collect(models.ConflictTypeStudent, proposed.StudentIDs, idx.ByStudent)
	for i := range students {
		s := &students[i]
		s.Message = fmt.Sprintf("%s also expected at %s on %s %s",
			describeShared(s.SharedStudentIDs, "student", "students"), s.ConflictingAllocationTitle, proposed.DateKey(), s.Interval)
	}
	out = append(out, students...)

	SortConflicts(out)
	return out
}

type classifier struct {
	proposed models.Allocation
	overlap  map[string]bool
}

// collides memoises the overlap test per candidate so large student sets test
// each candidate once.
func (c *classifier) collides(candidate *models.Allocation) bool {
	if candidate.ID == c.proposed.ID && c.proposed.ID != "" {
		return false
	}
	hit, ok := c.overlap[candidate.ID]
	if !ok {
		hit = Overlaps(c.proposed, *candidate)
		c.overlap[candidate.ID] = hit
	}
	return hit
}

func (c *classifier) collect(kind models.ConflictType, ids []string, lookup func(string) []*models.Allocation) []models.Conflict {
	byCandidate := make(map[string]*models.Conflict)
	shared := make(map[string]map[string]struct{})
	for _, id := range uniqueIDs(ids) {
		for _, candidate := range lookup(id) {
			if !c.collides(candidate) {
				continue
			}
			if _, seen := shared[candidate.ID][id]; seen {
				continue
			}
			conflict, ok := byCandidate[candidate.ID]
			if !ok {
				created := c.newConflict(kind, candidate)
				conflict = &created
				byCandidate[candidate.ID] = conflict
				shared[candidate.ID] = make(map[string]struct{})
			}
			shared[candidate.ID][id] = struct{}{}
			if kind == models.ConflictTypeFaculty {
				conflict.SharedFacultyIDs = append(conflict.SharedFacultyIDs, id)
			} else {
				conflict.SharedStudentIDs = append(conflict.SharedStudentIDs, id)
			}
		}
	}

	out := make([]models.Conflict, 0, len(byCandidate))
	for _, conflict := range byCandidate {
		sort.Strings(conflict.SharedFacultyIDs)
		sort.Strings(conflict.SharedStudentIDs)
		out = append(out, *conflict)
	}
	return out
}

func (c *classifier) newConflict(kind models.ConflictType, candidate *models.Allocation) models.Conflict {
	return models.Conflict{
		Type:                       kind,
		ConflictingAllocationID:    candidate.ID,
		ConflictingAllocationTitle: candidate.Title,
		ConflictingAllocationKind:  candidate.Kind,
		Date:                       models.DateOf(c.proposed.Date),
		Interval:                   c.proposed.Interval.Intersect(candidate.Interval),
	}
}

// SortConflicts orders ROOM before FACULTY before STUDENT, then by conflicting
// allocation id, then by date.
func SortConflicts(conflicts []models.Conflict) {
	sort.SliceStable(conflicts, func(i, j int) bool {
		a, b := conflicts[i], conflicts[j]
		if a.Type.Rank() != b.Type.Rank() {
			return a.Type.Rank() < b.Type.Rank()
		}
		if a.ConflictingAllocationID != b.ConflictingAllocationID {
			return a.ConflictingAllocationID < b.ConflictingAllocationID
		}
		return a.Date.Before(b.Date)
	})
}

func describeShared(ids []string, singular, plural string) string {
	switch len(ids) {
	case 1:
		return fmt.Sprintf("%s %s is", singular, ids[0])
	case 2, 3:
		return fmt.Sprintf("%s %s are", plural, strings.Join(ids, ", "))
	default:
		return fmt.Sprintf("%d %s are", len(ids), plural)
	}
}
