package conflict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
)

var examDay = time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

func clock(t *testing.T, raw string) models.Clock {
	t.Helper()
	c, err := models.ParseClock(raw)
	require.NoError(t, err)
	return c
}

func span(t *testing.T, start, end string) models.Interval {
	t.Helper()
	return models.Interval{Start: clock(t, start), End: clock(t, end)}
}

func exam(t *testing.T, id, room, start, end string, faculty ...string) models.Allocation {
	t.Helper()
	return models.Allocation{
		ID:         id,
		Kind:       models.AllocationKindExam,
		Title:      "Exam " + id,
		Date:       examDay,
		Interval:   span(t, start, end),
		Room:       room,
		FacultyIDs: faculty,
	}
}
