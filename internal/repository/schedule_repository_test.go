package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
)

var scheduleRowColumns = []string{"id", "term_id", "class_id", "subject_id", "teacher_id", "day_of_week", "start_time", "end_time", "room", "building", "valid_from", "valid_until", "conflict_report", "created_at", "updated_at"}

func TestScheduleRepositoryListByTermAndDay(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	until := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(scheduleRowColumns).
		AddRow("sch-1", "term-1", "class-a", "math", "t-1", "MONDAY", "07:30:00", "09:00:00", "R101", "Main", nil, until, nil, time.Now(), time.Now()).
		AddRow("sch-2", "term-1", "class-b", "bio", "t-2", "MONDAY", "09:00:00", "10:30:00", nil, nil, nil, nil, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM schedules WHERE term_id = $1 AND day_of_week = $2")).
		WithArgs("term-1", "MONDAY").
		WillReturnRows(rows)

	schedules, err := repo.ListByTermAndDay(context.Background(), "term-1", "MONDAY")
	require.NoError(t, err)
	require.Len(t, schedules, 2)
	assert.Equal(t, models.NewClock(7, 30), schedules[0].StartTime)
	require.NotNil(t, schedules[0].ValidUntil)
	assert.True(t, until.Equal(*schedules[0].ValidUntil))
	assert.Nil(t, schedules[1].Room)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryListDefaultsSort(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM schedules WHERE 1=1 AND teacher_id = $1 ORDER BY day_of_week ASC, start_time ASC LIMIT 20 OFFSET 0")).
		WithArgs("t-1").
		WillReturnRows(sqlmock.NewRows(scheduleRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM schedules WHERE 1=1 AND teacher_id = $1")).
		WithArgs("t-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, total, err := repo.List(context.Background(), models.ScheduleFilter{TeacherID: "t-1", SortBy: "nonsense"})
	require.NoError(t, err)
	assert.Zero(t, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedules SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	schedule := &models.Schedule{ID: "sch-1", TermID: "term-1", DayOfWeek: "MONDAY", StartTime: models.NewClock(7, 0), EndTime: models.NewClock(8, 0)}
	require.NoError(t, repo.Update(context.Background(), schedule))
	assert.False(t, schedule.UpdatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}
