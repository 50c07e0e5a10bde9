package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/sma-scheduling-api/pkg/errors"
)

func parseClockField(field, raw string) (models.Clock, error) {
	c, err := models.ParseClock(raw)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid "+field)
	}
	return c, nil
}

func parseDateField(field, raw string) (time.Time, error) {
	d, err := models.ParseDate(raw)
	if err != nil {
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid "+field)
	}
	return d, nil
}

func parseOptionalDate(field, raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	d, err := parseDateField(field, raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func optionalString(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// studentsOf flattens the enrolled students of several classes into a
// sorted, de-duplicated list.
func studentsOf(classIDs []string, enrolled map[string][]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, classID := range classIDs {
		for _, studentID := range enrolled[classID] {
			if _, ok := seen[studentID]; ok {
				continue
			}
			seen[studentID] = struct{}{}
			out = append(out, studentID)
		}
	}
	sort.Strings(out)
	return out
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// occupancy lays exams and recurring timetable entries onto dates so both
// kinds share one existing set. Students of every class involved are
// resolved with a single enrollment lookup.
func occupancy(ctx context.Context, enrollments enrollmentReader, dates []time.Time, exams []models.Exam, entries []models.Schedule) ([]models.Allocation, error) {
	var classIDs []string
	for _, e := range exams {
		classIDs = append(classIDs, e.ClassIDs...)
	}
	for _, entry := range entries {
		classIDs = append(classIDs, entry.ClassID)
	}
	enrolled, err := enrollments.ListActiveStudentIDs(ctx, uniqueSorted(classIDs))
	if err != nil {
		return nil, err
	}

	var out []models.Allocation
	for _, d := range dates {
		for _, e := range exams {
			if models.SameDate(e.ExamDate, d) {
				out = append(out, e.Allocation(studentsOf(e.ClassIDs, enrolled)))
			}
		}
		for _, entry := range entries {
			if recursOn(entry, d) {
				out = append(out, entry.Occurrence(d, enrolled[entry.ClassID]))
			}
		}
	}
	return out, nil
}

func recursOn(entry models.Schedule, date time.Time) bool {
	weekday, ok := models.ParseWeekday(entry.DayOfWeek)
	return ok && weekday == date.Weekday() && entry.ActiveOn(date)
}

func weekdayName(date time.Time) string {
	return strings.ToUpper(date.Weekday().String())
}

func storedReport(report *models.ConflictReport, at time.Time) models.StoredConflictReport {
	stored := models.StoredConflictReport{CheckedAt: &at}
	if report != nil {
		stored.ConflictReport = *report
	}
	return stored
}
