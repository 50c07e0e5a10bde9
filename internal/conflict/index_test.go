package conflict

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
)

func TestBuildIndexRestrictsToDate(t *testing.T) {
	onDay := exam(t, "a", "R101", "09:00", "10:00", "F1")
	onDay.StudentIDs = []string{"S1", "S2", "S1"}
	nextDay := exam(t, "b", "R101", "09:00", "10:00", "F1")
	nextDay.Date = examDay.AddDate(0, 0, 1)
	noRoom := exam(t, "c", "", "09:00", "10:00", "F2", "F2")

	idx := BuildIndex(examDay, []models.Allocation{onDay, nextDay, noRoom})

	rooms, faculty, students := idx.Size()
	assert.Equal(t, 1, rooms)
	assert.Equal(t, 2, faculty)
	assert.Equal(t, 2, students)
	assert.Len(t, idx.ByRoom(onDay.RoomKey()), 1)
	assert.Len(t, idx.ByFaculty("F1"), 1)
	assert.Len(t, idx.ByFaculty("F2"), 1)
	assert.Len(t, idx.ByStudent("S1"), 1)
	assert.Equal(t, examDay, idx.Date())
}

func TestRoomKeyIgnoresCaseAndBuilding(t *testing.T) {
	a := models.Allocation{Room: " r101 ", Building: "Main"}
	b := models.Allocation{Room: "R101", Building: "main"}
	c := models.Allocation{Room: "R101", Building: "Annex"}
	assert.Equal(t, a.RoomKey(), b.RoomKey())
	assert.NotEqual(t, a.RoomKey(), c.RoomKey())
	assert.Empty(t, models.Allocation{}.RoomKey())
}
