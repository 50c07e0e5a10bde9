package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/sma-scheduling-api/pkg/errors"
	"github.com/noah-isme/sma-scheduling-api/pkg/logger"
)

type scheduleRepository interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error)
	ListByClass(ctx context.Context, classID string) ([]models.Schedule, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Schedule, error)
	ListByTermAndDay(ctx context.Context, termID, dayOfWeek string) ([]models.Schedule, error)
	FindByID(ctx context.Context, id string) (*models.Schedule, error)
	Create(ctx context.Context, schedule *models.Schedule) error
	Update(ctx context.Context, schedule *models.Schedule) error
	Delete(ctx context.Context, id string) error
}

// examCalendarReader lists exams so timetable entries see the exams held in their rooms.
type examCalendarReader interface {
	ListByDates(ctx context.Context, dates []time.Time) ([]models.Exam, error)
}

type termReader interface {
	FindByID(ctx context.Context, id string) (*models.Term, error)
}

// CreateScheduleRequest describes payload for creating a timetable entry.
type CreateScheduleRequest struct {
	TermID     string `json:"term_id" validate:"required"`
	ClassID    string `json:"class_id" validate:"required"`
	SubjectID  string `json:"subject_id" validate:"required"`
	TeacherID  string `json:"teacher_id" validate:"required"`
	DayOfWeek  string `json:"day_of_week" validate:"required,oneof=MONDAY TUESDAY WEDNESDAY THURSDAY FRIDAY SATURDAY SUNDAY monday tuesday wednesday thursday friday saturday sunday"`
	StartTime  string `json:"start_time" validate:"required"`
	EndTime    string `json:"end_time" validate:"required"`
	Room       string `json:"room" validate:"max=64"`
	Building   string `json:"building" validate:"max=64"`
	ValidFrom  string `json:"valid_from,omitempty"`
	ValidUntil string `json:"valid_until,omitempty"`
}

// UpdateScheduleRequest updates an existing timetable entry.
type UpdateScheduleRequest = CreateScheduleRequest

// BulkCreateSchedulesRequest holds multiple schedules for creation.
type BulkCreateSchedulesRequest struct {
	Items          []CreateScheduleRequest `json:"items" validate:"required,min=1,dive"`
	PartialOnError bool                    `json:"partial_on_error"`
}

// ScheduleRejection reports why one bulk item was not created.
type ScheduleRejection struct {
	Index  int                    `json:"index"`
	Code   string                 `json:"code"`
	Report *models.ConflictReport `json:"conflict_report,omitempty"`
}

// BulkCreateSchedulesResult summarises bulk creation results.
type BulkCreateSchedulesResult struct {
	Created  []models.Schedule   `json:"created"`
	Rejected []ScheduleRejection `json:"rejected,omitempty"`
}

// ScheduleResult pairs a persisted entry with the report accepted at commit.
type ScheduleResult struct {
	Schedule *models.Schedule       `json:"schedule"`
	Report   *models.ConflictReport `json:"conflict_report"`
}

// ScheduleService coordinates timetable writes. Every weekly entry is
// expanded to its concrete dates within the term before conflict checks.
type ScheduleService struct {
	repo        scheduleRepository
	exams       examCalendarReader
	terms       termReader
	enrollments enrollmentReader
	guard       *MutationGuard
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewScheduleService instantiates ScheduleService.
func NewScheduleService(repo scheduleRepository, exams examCalendarReader, terms termReader, enrollments enrollmentReader, guard *MutationGuard, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if guard == nil {
		guard = NewMutationGuard(nil, nil, nil, logger, 0)
	}
	return &ScheduleService{repo: repo, exams: exams, terms: terms, enrollments: enrollments, guard: guard, validator: validate, logger: logger}
}

// List returns schedules with pagination metadata.
func (s *ScheduleService) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, *models.Pagination, error) {
	schedules, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return schedules, pagination, nil
}

// ListByClass returns schedules for a class.
func (s *ScheduleService) ListByClass(ctx context.Context, classID string) ([]models.Schedule, error) {
	schedules, err := s.repo.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class schedules")
	}
	return schedules, nil
}

// ListByTeacher returns schedules for a teacher.
func (s *ScheduleService) ListByTeacher(ctx context.Context, teacherID string) ([]models.Schedule, error) {
	schedules, err := s.repo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teacher schedules")
	}
	return schedules, nil
}

// Create inserts a new timetable entry after conflict detection across every
// date it recurs on.
func (s *ScheduleService) Create(ctx context.Context, req CreateScheduleRequest) (*ScheduleResult, error) {
	schedule, err := s.buildSchedule(req)
	if err != nil {
		return nil, err
	}
	schedule.ID = uuid.NewString()

	mutation, err := s.newMutation(ctx, schedule, false, nil)
	if err != nil {
		return nil, err
	}
	report, err := s.guard.Apply(ctx, mutation)
	if err != nil {
		return nil, err
	}
	return &ScheduleResult{Schedule: schedule, Report: report}, nil
}

// Update modifies an existing timetable entry.
func (s *ScheduleService) Update(ctx context.Context, id string, req UpdateScheduleRequest) (*ScheduleResult, error) {
	existing, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.buildSchedule(req)
	if err != nil {
		return nil, err
	}
	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt

	mutation, err := s.newMutation(ctx, updated, true, nil)
	if err != nil {
		return nil, err
	}
	report, err := s.guard.Apply(ctx, mutation)
	if err != nil {
		return nil, err
	}
	return &ScheduleResult{Schedule: updated, Report: report}, nil
}

// Check previews conflicts for a proposed entry without persisting it.
func (s *ScheduleService) Check(ctx context.Context, id string, req CreateScheduleRequest) (*models.ConflictReport, error) {
	schedule, err := s.buildSchedule(req)
	if err != nil {
		return nil, err
	}
	schedule.ID = id
	mutation, err := s.newMutation(ctx, schedule, id != "", nil)
	if err != nil {
		return nil, err
	}
	return s.guard.Check(ctx, mutation)
}

// Delete removes a schedule entry.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	if _, err := s.find(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule")
	}
	return nil
}

// BulkCreate inserts multiple schedules. Items are first checked against the
// stored timetable and the earlier items of the batch; unless PartialOnError
// is set, any blocking conflict aborts the batch before anything is written.
func (s *ScheduleService) BulkCreate(ctx context.Context, req BulkCreateSchedulesRequest) (*BulkCreateSchedulesResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk schedule payload")
	}

	result := &BulkCreateSchedulesResult{Created: []models.Schedule{}}
	type queued struct {
		index    int
		mutation *scheduleMutation
	}
	var accepted []queued
	var pending []models.Allocation

	for i, item := range req.Items {
		schedule, err := s.buildSchedule(item)
		if err != nil {
			return nil, err
		}
		schedule.ID = uuid.NewString()
		mutation, err := s.newMutation(ctx, schedule, false, pending)
		if err != nil {
			return nil, err
		}
		report, err := s.guard.Check(ctx, mutation)
		if err != nil {
			return nil, err
		}
		if report.HasBlockingConflict {
			if !req.PartialOnError {
				return nil, conflictError(report)
			}
			result.Rejected = append(result.Rejected, ScheduleRejection{Index: i, Code: appErrors.ErrConflict.Code, Report: report})
			continue
		}
		mutation.extra = nil
		accepted = append(accepted, queued{index: i, mutation: mutation})
		pending = append(pending, mutation.Proposals()...)
	}

	for _, item := range accepted {
		if _, err := s.guard.Apply(ctx, item.mutation); err != nil {
			if !req.PartialOnError {
				return nil, err
			}
			rejection := ScheduleRejection{Index: item.index, Code: appErrors.FromError(err).Code}
			var stale *models.StaleSnapshotError
			var conflictErr *models.ConflictError
			switch {
			case errors.As(err, &stale):
				rejection.Report = stale.Report
			case errors.As(err, &conflictErr):
				rejection.Report = conflictErr.Report
			}
			result.Rejected = append(result.Rejected, rejection)
			continue
		}
		result.Created = append(result.Created, *item.mutation.schedule)
	}

	logger.WithContext(ctx, s.logger).Info("bulk schedules processed",
		zap.Int("created", len(result.Created)),
		zap.Int("rejected", len(result.Rejected)))
	return result, nil
}

func (s *ScheduleService) find(ctx context.Context, id string) (*models.Schedule, error) {
	schedule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	return schedule, nil
}

func (s *ScheduleService) buildSchedule(req CreateScheduleRequest) (*models.Schedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	start, err := parseClockField("start_time", req.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := parseClockField("end_time", req.EndTime)
	if err != nil {
		return nil, err
	}
	validFrom, err := parseOptionalDate("valid_from", req.ValidFrom)
	if err != nil {
		return nil, err
	}
	validUntil, err := parseOptionalDate("valid_until", req.ValidUntil)
	if err != nil {
		return nil, err
	}
	return &models.Schedule{
		TermID:     req.TermID,
		ClassID:    req.ClassID,
		SubjectID:  req.SubjectID,
		TeacherID:  req.TeacherID,
		DayOfWeek:  strings.ToUpper(strings.TrimSpace(req.DayOfWeek)),
		StartTime:  start,
		EndTime:    end,
		Room:       optionalString(req.Room),
		Building:   optionalString(req.Building),
		ValidFrom:  validFrom,
		ValidUntil: validUntil,
	}, nil
}

func (s *ScheduleService) newMutation(ctx context.Context, schedule *models.Schedule, update bool, extra []models.Allocation) (*scheduleMutation, error) {
	term, err := s.terms.FindByID(ctx, schedule.TermID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	dates, err := ExpandRecurrence(*schedule, *term)
	if err != nil {
		return nil, err
	}
	enrolled, err := s.enrollments.ListActiveStudentIDs(ctx, []string{schedule.ClassID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve class students")
	}
	return &scheduleMutation{
		svc:      s,
		schedule: schedule,
		dates:    dates,
		students: enrolled[schedule.ClassID],
		update:   update,
		extra:    extra,
	}, nil
}

// ExpandRecurrence lists every date within the term, and the entry's own
// validity window, that falls on the entry's weekday.
func ExpandRecurrence(schedule models.Schedule, term models.Term) ([]time.Time, error) {
	weekday, ok := models.ParseWeekday(schedule.DayOfWeek)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid day_of_week")
	}
	from := models.DateOf(term.StartDate)
	until := models.DateOf(term.EndDate)
	if schedule.ValidFrom != nil && schedule.ValidFrom.After(from) {
		from = models.DateOf(*schedule.ValidFrom)
	}
	if schedule.ValidUntil != nil && schedule.ValidUntil.Before(until) {
		until = models.DateOf(*schedule.ValidUntil)
	}

	offset := (int(weekday) - int(from.Weekday()) + 7) % 7
	var dates []time.Time
	for d := from.AddDate(0, 0, offset); !d.After(until); d = d.AddDate(0, 0, 7) {
		dates = append(dates, d)
	}
	if len(dates) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "schedule does not recur within the term")
	}
	return dates, nil
}

// scheduleMutation adapts a timetable write to the MutationGuard.
type scheduleMutation struct {
	svc      *ScheduleService
	schedule *models.Schedule
	dates    []time.Time
	students []string
	update   bool
	// extra holds not yet persisted allocations from the same bulk batch.
	extra []models.Allocation
}

func (m *scheduleMutation) Kind() models.AllocationKind {
	return models.AllocationKindClass
}

func (m *scheduleMutation) Proposals() []models.Allocation {
	out := make([]models.Allocation, 0, len(m.dates))
	for _, d := range m.dates {
		out = append(out, m.schedule.Occurrence(d, m.students))
	}
	return out
}

// Snapshot expands the other entries of the same term and weekday onto the
// proposal's dates and adds the exams held on those dates.
func (m *scheduleMutation) Snapshot(ctx context.Context) ([]models.Allocation, error) {
	entries, err := m.svc.repo.ListByTermAndDay(ctx, m.schedule.TermID, m.schedule.DayOfWeek)
	if err != nil {
		return nil, err
	}
	var exams []models.Exam
	if m.svc.exams != nil {
		exams, err = m.svc.exams.ListByDates(ctx, m.dates)
		if err != nil {
			return nil, err
		}
	}
	allocations, err := occupancy(ctx, m.svc.enrollments, m.dates, exams, entries)
	if err != nil {
		return nil, err
	}
	return append(allocations, m.extra...), nil
}

func (m *scheduleMutation) Commit(ctx context.Context, report *models.ConflictReport) error {
	m.schedule.ConflictReport = storedReport(report, time.Now().UTC())
	if m.update {
		return m.svc.repo.Update(ctx, m.schedule)
	}
	return m.svc.repo.Create(ctx, m.schedule)
}
