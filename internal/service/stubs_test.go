package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
)

var examDay = time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

type stubEnrollments struct {
	byClass map[string][]string
	err     error
}

func (s *stubEnrollments) ListActiveStudentIDs(ctx context.Context, classIDs []string) (map[string][]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string][]string, len(classIDs))
	for _, id := range classIDs {
		if students, ok := s.byClass[id]; ok {
			out[id] = students
		}
	}
	return out, nil
}

type stubExamRepo struct {
	mu      sync.Mutex
	items   map[string]*models.Exam
	created []string
	updated []string
	deleted []string
	listErr error
	// onListByDate runs before each ListByDate, letting tests mutate state between snapshots.
	onListByDate func(call int)
	byDateCalls  int
}

func newStubExamRepo(exams ...models.Exam) *stubExamRepo {
	repo := &stubExamRepo{items: make(map[string]*models.Exam)}
	for i := range exams {
		e := exams[i]
		repo.items[e.ID] = &e
	}
	return repo
}

func (r *stubExamRepo) List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, int, error) {
	if r.listErr != nil {
		return nil, 0, r.listErr
	}
	var out []models.Exam
	for _, e := range r.items {
		out = append(out, *e)
	}
	return out, len(out), nil
}

func (r *stubExamRepo) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.items[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (r *stubExamRepo) ListByDate(ctx context.Context, date time.Time) ([]models.Exam, error) {
	r.byDateCalls++
	if r.onListByDate != nil {
		r.onListByDate(r.byDateCalls)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Exam
	for _, e := range r.items {
		if models.SameDate(e.ExamDate, date) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *stubExamRepo) ListByDates(ctx context.Context, dates []time.Time) ([]models.Exam, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Exam
	for _, e := range r.items {
		for _, d := range dates {
			if models.SameDate(e.ExamDate, d) {
				out = append(out, *e)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *stubExamRepo) Create(ctx context.Context, exam *models.Exam) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *exam
	r.items[exam.ID] = &cp
	r.created = append(r.created, exam.ID)
	return nil
}

func (r *stubExamRepo) Update(ctx context.Context, exam *models.Exam) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *exam
	r.items[exam.ID] = &cp
	r.updated = append(r.updated, exam.ID)
	return nil
}

func (r *stubExamRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	r.deleted = append(r.deleted, id)
	return nil
}

type stubScheduleRepo struct {
	mu      sync.Mutex
	items   map[string]*models.Schedule
	created []string
	updated []string
	order   []string
}

func newStubScheduleRepo(schedules ...models.Schedule) *stubScheduleRepo {
	repo := &stubScheduleRepo{items: make(map[string]*models.Schedule)}
	for i := range schedules {
		s := schedules[i]
		repo.items[s.ID] = &s
		repo.order = append(repo.order, s.ID)
	}
	return repo
}

func (r *stubScheduleRepo) all(match func(models.Schedule) bool) []models.Schedule {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Schedule
	for _, id := range r.order {
		if s, ok := r.items[id]; ok && match(*s) {
			out = append(out, *s)
		}
	}
	return out
}

func (r *stubScheduleRepo) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error) {
	out := r.all(func(s models.Schedule) bool { return filter.TermID == "" || s.TermID == filter.TermID })
	return out, len(out), nil
}

func (r *stubScheduleRepo) ListByClass(ctx context.Context, classID string) ([]models.Schedule, error) {
	return r.all(func(s models.Schedule) bool { return s.ClassID == classID }), nil
}

func (r *stubScheduleRepo) ListByTeacher(ctx context.Context, teacherID string) ([]models.Schedule, error) {
	return r.all(func(s models.Schedule) bool { return s.TeacherID == teacherID }), nil
}

func (r *stubScheduleRepo) ListByTermAndDay(ctx context.Context, termID, dayOfWeek string) ([]models.Schedule, error) {
	return r.all(func(s models.Schedule) bool { return s.TermID == termID && s.DayOfWeek == dayOfWeek }), nil
}

func (r *stubScheduleRepo) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.items[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (r *stubScheduleRepo) Create(ctx context.Context, schedule *models.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *schedule
	r.items[schedule.ID] = &cp
	r.order = append(r.order, schedule.ID)
	r.created = append(r.created, schedule.ID)
	return nil
}

func (r *stubScheduleRepo) Update(ctx context.Context, schedule *models.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *schedule
	r.items[schedule.ID] = &cp
	r.updated = append(r.updated, schedule.ID)
	return nil
}

func (r *stubScheduleRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

type stubTerms struct {
	terms map[string]models.Term
}

func (s *stubTerms) FindByID(ctx context.Context, id string) (*models.Term, error) {
	if t, ok := s.terms[id]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}
