package conflict

import (
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
)

// Policy decides which conflict types prevent a proposal from being committed.
type Policy struct {
	blocking map[models.ConflictType]bool
}

// NewPolicy builds a policy blocking the given conflict types.
func NewPolicy(blocking ...models.ConflictType) Policy {
	p := Policy{blocking: make(map[models.ConflictType]bool, len(blocking))}
	for _, t := range blocking {
		p.blocking[t] = true
	}
	return p
}

// DefaultPolicy blocks room and faculty double-booking; student clashes only warn.
func DefaultPolicy() Policy {
	return NewPolicy(models.ConflictTypeRoom, models.ConflictTypeFaculty)
}

// ParsePolicy reads blocking types such as "ROOM,FACULTY". An empty list
// yields a policy where nothing blocks.
func ParsePolicy(names []string) (Policy, error) {
	types := make([]models.ConflictType, 0, len(names))
	for _, name := range names {
		t := models.ConflictType(strings.ToUpper(strings.TrimSpace(name)))
		if t == "" {
			continue
		}
		if !t.Valid() {
			return Policy{}, fmt.Errorf("unknown conflict type %q", name)
		}
		types = append(types, t)
	}
	return NewPolicy(types...), nil
}

// Blocks reports whether conflicts of type t are blocking.
func (p Policy) Blocks(t models.ConflictType) bool {
	return p.blocking[t]
}

// BlockingTypes lists the blocking types in rank order.
func (p Policy) BlockingTypes() []models.ConflictType {
	out := make([]models.ConflictType, 0, len(p.blocking))
	for t, ok := range p.blocking {
		if ok {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank() < out[j].Rank() })
	return out
}

// Detector runs conflict detection under a blocking policy. It holds no
// mutable state and is safe for concurrent use.
type Detector struct {
	policy Policy
}

// NewDetector returns a detector applying policy.
func NewDetector(policy Policy) *Detector {
	return &Detector{policy: policy}
}

// Policy exposes the detector's blocking policy.
func (d *Detector) Policy() Policy {
	return d.policy
}

// DetectConflicts checks proposed against existing using DefaultPolicy.
func DetectConflicts(proposed models.Allocation, existing []models.Allocation) (*models.ConflictReport, error) {
	return NewDetector(DefaultPolicy()).Detect(proposed, existing)
}

// Detect checks one proposal against the existing allocations. When editing,
// proposed keeps its stored id so it is never compared with itself.
func (d *Detector) Detect(proposed models.Allocation, existing []models.Allocation) (*models.ConflictReport, error) {
	if err := ValidateAllocation(proposed); err != nil {
		return nil, err
	}
	if err := validateExisting(existing); err != nil {
		return nil, err
	}
	conflicts := Classify(proposed, BuildIndex(proposed.Date, existing))
	return d.report(conflicts), nil
}

// DetectAll checks several single-date proposals, such as the expanded
// occurrences of a recurring timetable entry, and merges the results. Each
// proposal is compared only with the existing allocations on its own date, so
// an id may repeat across dates but not within one.
func (d *Detector) DetectAll(proposals []models.Allocation, existing []models.Allocation) (*models.ConflictReport, error) {
	byDate := make(map[string][]models.Allocation)
	for _, a := range existing {
		if a.Date.IsZero() {
			return nil, validationError(ErrMissingDate, fmt.Sprintf("existing allocation %q has no date", a.ID))
		}
		key := a.DateKey()
		byDate[key] = append(byDate[key], a)
	}

	reports := make([]*models.ConflictReport, 0, len(proposals))
	for _, proposed := range proposals {
		report, err := d.Detect(proposed, byDate[models.DateOf(proposed.Date).Format(models.DateLayout)])
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return d.Merge(reports...), nil
}

// Merge folds reports into one, keeping the first conflict seen for each
// (type, allocation) pair.
func (d *Detector) Merge(reports ...*models.ConflictReport) *models.ConflictReport {
	type key struct {
		kind models.ConflictType
		id   string
	}
	seen := make(map[key]struct{})
	var merged []models.Conflict
	for _, r := range reports {
		if r == nil {
			continue
		}
		for _, c := range r.Conflicts {
			k := key{kind: c.Type, id: c.ConflictingAllocationID}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			merged = append(merged, c)
		}
	}
	SortConflicts(merged)
	return d.report(merged)
}

// IsBlocking reports whether any conflict in the list blocks under the policy.
func (d *Detector) IsBlocking(conflicts []models.Conflict) bool {
	for _, c := range conflicts {
		if d.policy.Blocks(c.Type) {
			return true
		}
	}
	return false
}

func (d *Detector) report(conflicts []models.Conflict) *models.ConflictReport {
	if conflicts == nil {
		conflicts = []models.Conflict{}
	}
	return &models.ConflictReport{
		Conflicts:           conflicts,
		HasBlockingConflict: d.IsBlocking(conflicts),
	}
}
