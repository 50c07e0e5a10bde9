package conflict

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/sma-scheduling-api/pkg/errors"
)

func TestDetectRoomConflictScenario(t *testing.T) {
	a := exam(t, "A", "R101", "09:00", "11:00", "F1")
	b := exam(t, "B", "R101", "10:00", "12:00", "F2")

	report, err := DetectConflicts(b, []models.Allocation{a})
	require.NoError(t, err)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, models.ConflictTypeRoom, report.Conflicts[0].Type)
	assert.Equal(t, "A", report.Conflicts[0].ConflictingAllocationID)
	assert.Equal(t, "Exam A", report.Conflicts[0].ConflictingAllocationTitle)
	assert.Equal(t, span(t, "10:00", "11:00"), report.Conflicts[0].Interval)
	assert.True(t, report.HasBlockingConflict)
}

func TestDetectFacultyConflictScenario(t *testing.T) {
	a := exam(t, "A", "R101", "09:00", "11:00", "F1")
	b := exam(t, "B", "R102", "10:00", "12:00", "F1")

	report, err := DetectConflicts(b, []models.Allocation{a})
	require.NoError(t, err)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, models.ConflictTypeFaculty, report.Conflicts[0].Type)
	assert.Equal(t, "A", report.Conflicts[0].ConflictingAllocationID)
	assert.Equal(t, []string{"F1"}, report.Conflicts[0].SharedFacultyIDs)
	assert.True(t, report.HasBlockingConflict)
}

func TestDetectSymmetry(t *testing.T) {
	a := exam(t, "A", "R101", "09:00", "11:00", "F1")
	b := exam(t, "B", "R101", "10:30", "12:00", "F2")

	forward, err := DetectConflicts(a, []models.Allocation{b})
	require.NoError(t, err)
	backward, err := DetectConflicts(b, []models.Allocation{a})
	require.NoError(t, err)

	require.Len(t, forward.Conflicts, 1)
	require.Len(t, backward.Conflicts, 1)
	assert.Equal(t, "B", forward.Conflicts[0].ConflictingAllocationID)
	assert.Equal(t, "A", backward.Conflicts[0].ConflictingAllocationID)
	assert.Equal(t, forward.Conflicts[0].Interval, backward.Conflicts[0].Interval)
}

func TestDetectExcludesSelf(t *testing.T) {
	a := exam(t, "A", "R101", "09:00", "11:00", "F1")
	a.StudentIDs = []string{"S1"}
	edited := a
	edited.Interval = span(t, "09:30", "11:30")

	report, err := DetectConflicts(edited, []models.Allocation{a})
	require.NoError(t, err)
	assert.Empty(t, report.Conflicts)
	assert.NotNil(t, report.Conflicts)
	assert.False(t, report.HasBlockingConflict)
}

func TestDetectBoundaryTouchingIsLegal(t *testing.T) {
	a := exam(t, "A", "R101", "09:00", "10:00", "F1")
	b := exam(t, "B", "R101", "10:00", "11:00", "F1")

	report, err := DetectConflicts(b, []models.Allocation{a})
	require.NoError(t, err)
	assert.Empty(t, report.Conflicts)
}

func TestDetectMultiDimensionAggregation(t *testing.T) {
	x := exam(t, "X", "R101", "09:00", "10:30", "F9")
	y := exam(t, "Y", "R202", "09:30", "11:00", "F1")
	proposed := exam(t, "P", "R101", "10:00", "11:00", "F1")

	report, err := DetectConflicts(proposed, []models.Allocation{y, x})
	require.NoError(t, err)
	require.Len(t, report.Conflicts, 2)
	assert.Equal(t, models.ConflictTypeRoom, report.Conflicts[0].Type)
	assert.Equal(t, "X", report.Conflicts[0].ConflictingAllocationID)
	assert.Equal(t, models.ConflictTypeFaculty, report.Conflicts[1].Type)
	assert.Equal(t, "Y", report.Conflicts[1].ConflictingAllocationID)
	assert.True(t, report.HasBlockingConflict)
}

func TestDetectStudentConflictsAreInformational(t *testing.T) {
	a := exam(t, "A", "R101", "09:00", "11:00", "F1")
	a.StudentIDs = []string{"S1", "S2", "S3"}
	b := exam(t, "B", "R102", "10:00", "12:00", "F2")
	b.StudentIDs = []string{"S2", "S3", "S4"}

	report, err := DetectConflicts(b, []models.Allocation{a})
	require.NoError(t, err)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, models.ConflictTypeStudent, report.Conflicts[0].Type)
	assert.Equal(t, []string{"S2", "S3"}, report.Conflicts[0].SharedStudentIDs)
	assert.False(t, report.HasBlockingConflict)
}

func TestDetectDeduplicatesSharedFaculty(t *testing.T) {
	a := exam(t, "A", "", "09:00", "11:00", "F2", "F1")
	b := exam(t, "B", "", "10:00", "12:00", "F1", "F2", "F1")

	report, err := DetectConflicts(b, []models.Allocation{a})
	require.NoError(t, err)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, []string{"F1", "F2"}, report.Conflicts[0].SharedFacultyIDs)
	assert.Contains(t, report.Conflicts[0].Message, "F1, F2")
}

func TestDetectIgnoresUnassignedRooms(t *testing.T) {
	a := exam(t, "A", "", "09:00", "11:00", "F1")
	b := exam(t, "B", "", "10:00", "12:00", "F2")

	report, err := DetectConflicts(b, []models.Allocation{a})
	require.NoError(t, err)
	assert.Empty(t, report.Conflicts)
}

func TestDetectIsDeterministic(t *testing.T) {
	var existing []models.Allocation
	for i := 9; i >= 0; i-- {
		a := exam(t, fmt.Sprintf("E%02d", i), "R101", "09:00", "11:00", "F1")
		a.StudentIDs = []string{"S1", fmt.Sprintf("S%d", i)}
		existing = append(existing, a)
	}
	proposed := exam(t, "P", "R101", "10:00", "12:00", "F1")
	proposed.StudentIDs = []string{"S1", "S2", "S3"}

	first, err := DetectConflicts(proposed, existing)
	require.NoError(t, err)
	second, err := DetectConflicts(proposed, existing)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))

	require.Len(t, first.Conflicts, 30)
	assert.Equal(t, models.ConflictTypeRoom, first.Conflicts[0].Type)
	assert.Equal(t, "E00", first.Conflicts[0].ConflictingAllocationID)
	assert.Equal(t, "E09", first.Conflicts[9].ConflictingAllocationID)
	assert.Equal(t, models.ConflictTypeFaculty, first.Conflicts[10].Type)
	assert.Equal(t, models.ConflictTypeStudent, first.Conflicts[29].Type)
}

func TestDetectRejectsDuplicateExistingIDs(t *testing.T) {
	a := exam(t, "A", "R101", "09:00", "11:00", "F1")
	proposed := exam(t, "P", "R101", "10:00", "12:00", "F2")

	_, err := DetectConflicts(proposed, []models.Allocation{a, a})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateAllocation))
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDetectRejectsMalformedProposal(t *testing.T) {
	proposed := exam(t, "P", "R101", "12:00", "10:00", "F2")
	_, err := DetectConflicts(proposed, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInterval))
}

func TestPolicyConfigurable(t *testing.T) {
	policy, err := ParsePolicy([]string{"student", " room "})
	require.NoError(t, err)
	assert.Equal(t, []models.ConflictType{models.ConflictTypeRoom, models.ConflictTypeStudent}, policy.BlockingTypes())

	a := exam(t, "A", "R101", "09:00", "11:00", "F1")
	a.StudentIDs = []string{"S1"}
	b := exam(t, "B", "R102", "10:00", "12:00", "F1")
	b.StudentIDs = []string{"S1"}

	report, err := NewDetector(policy).Detect(b, []models.Allocation{a})
	require.NoError(t, err)
	require.Len(t, report.Conflicts, 2)
	assert.True(t, report.HasBlockingConflict)

	report, err = NewDetector(NewPolicy()).Detect(b, []models.Allocation{a})
	require.NoError(t, err)
	assert.False(t, report.HasBlockingConflict)

	_, err = ParsePolicy([]string{"CAFETERIA"})
	assert.Error(t, err)
}

func TestDetectAllMergesAcrossDates(t *testing.T) {
	detector := NewDetector(DefaultPolicy())
	week1 := exam(t, "C1", "R101", "09:00", "10:00", "F1")
	week2 := week1
	week2.Date = examDay.AddDate(0, 0, 7)
	other := exam(t, "C2", "R300", "09:00", "10:00", "F7")
	other.Date = examDay.AddDate(0, 0, 7)
	other.StudentIDs = []string{"S1"}

	p1 := exam(t, "NEW", "R101", "09:30", "10:30", "F2")
	p1.StudentIDs = []string{"S1"}
	p2 := p1
	p2.Date = examDay.AddDate(0, 0, 7)

	report, err := detector.DetectAll([]models.Allocation{p1, p2}, []models.Allocation{week1, week2, other})
	require.NoError(t, err)
	require.Len(t, report.Conflicts, 2)
	assert.Equal(t, models.ConflictTypeRoom, report.Conflicts[0].Type)
	assert.Equal(t, "C1", report.Conflicts[0].ConflictingAllocationID)
	assert.Equal(t, examDay, report.Conflicts[0].Date)
	assert.Equal(t, models.ConflictTypeStudent, report.Conflicts[1].Type)
	assert.Equal(t, "C2", report.Conflicts[1].ConflictingAllocationID)
	assert.True(t, report.HasBlockingConflict)
}
