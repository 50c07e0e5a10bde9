package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/sma-scheduling-api/pkg/errors"
	"github.com/noah-isme/sma-scheduling-api/pkg/export"
	"github.com/noah-isme/sma-scheduling-api/pkg/logger"
)

type examRepository interface {
	List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, int, error)
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	ListByDate(ctx context.Context, date time.Time) ([]models.Exam, error)
	Create(ctx context.Context, exam *models.Exam) error
	Update(ctx context.Context, exam *models.Exam) error
	Delete(ctx context.Context, id string) error
}

// timetableReader lists recurring entries so exams see the classes they would displace.
type timetableReader interface {
	ListByTermAndDay(ctx context.Context, termID, dayOfWeek string) ([]models.Schedule, error)
}

type enrollmentReader interface {
	ListActiveStudentIDs(ctx context.Context, classIDs []string) (map[string][]string, error)
}

// ExamRequest describes the payload for creating, updating or checking an exam.
type ExamRequest struct {
	TermID         string   `json:"term_id" validate:"required"`
	SubjectID      string   `json:"subject_id" validate:"required"`
	Title          string   `json:"title" validate:"required,max=200"`
	ClassIDs       []string `json:"class_ids" validate:"required,min=1,dive,required"`
	Date           string   `json:"date" validate:"required"`
	StartTime      string   `json:"start_time" validate:"required"`
	EndTime        string   `json:"end_time" validate:"required"`
	Room           string   `json:"room" validate:"max=64"`
	Building       string   `json:"building" validate:"max=64"`
	InvigilatorIDs []string `json:"invigilator_ids" validate:"required,min=1,dive,required"`
}

// ExamResult pairs a persisted exam with the report accepted at commit.
type ExamResult struct {
	Exam   *models.Exam           `json:"exam"`
	Report *models.ConflictReport `json:"conflict_report"`
}

// ConflictExport is a rendered conflict report ready for download.
type ConflictExport struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExamService manages exams and guards every write with conflict detection.
type ExamService struct {
	repo        examRepository
	timetable   timetableReader
	enrollments enrollmentReader
	guard       *MutationGuard
	validator   *validator.Validate
	logger      *zap.Logger
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
}

// NewExamService instantiates ExamService.
func NewExamService(repo examRepository, timetable timetableReader, enrollments enrollmentReader, guard *MutationGuard, validate *validator.Validate, logger *zap.Logger) *ExamService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if guard == nil {
		guard = NewMutationGuard(nil, nil, nil, logger, 0)
	}
	return &ExamService{
		repo:        repo,
		timetable:   timetable,
		enrollments: enrollments,
		guard:       guard,
		validator:   validate,
		logger:      logger,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
	}
}

// List returns exams with pagination metadata.
func (s *ExamService) List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, *models.Pagination, error) {
	exams, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exams")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return exams, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get loads a single exam.
func (s *ExamService) Get(ctx context.Context, id string) (*models.Exam, error) {
	exam, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	return exam, nil
}

// Create validates and stores a new exam. Informational conflicts are stored
// with the exam; blocking ones reject the write.
func (s *ExamService) Create(ctx context.Context, req ExamRequest) (*ExamResult, error) {
	exam, err := s.buildExam(req)
	if err != nil {
		return nil, err
	}
	exam.ID = uuid.NewString()

	mutation, err := s.newMutation(ctx, exam, false)
	if err != nil {
		return nil, err
	}
	report, err := s.guard.Apply(ctx, mutation)
	if err != nil {
		return nil, err
	}
	logger.WithContext(ctx, s.logger).Info("exam created", zap.String("exam_id", exam.ID), zap.Int("warnings", len(report.Conflicts)))
	return &ExamResult{Exam: exam, Report: report}, nil
}

// Update re-validates and stores an exam. The exam keeps its id so it is
// never reported as conflicting with its previous version.
func (s *ExamService) Update(ctx context.Context, id string, req ExamRequest) (*ExamResult, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	exam, err := s.buildExam(req)
	if err != nil {
		return nil, err
	}
	exam.ID = current.ID
	exam.CreatedAt = current.CreatedAt

	mutation, err := s.newMutation(ctx, exam, true)
	if err != nil {
		return nil, err
	}
	report, err := s.guard.Apply(ctx, mutation)
	if err != nil {
		return nil, err
	}
	return &ExamResult{Exam: exam, Report: report}, nil
}

// Check runs conflict detection for a proposed exam without persisting it.
// Pass the exam id when previewing an edit.
func (s *ExamService) Check(ctx context.Context, id string, req ExamRequest) (*models.ConflictReport, error) {
	exam, err := s.buildExam(req)
	if err != nil {
		return nil, err
	}
	exam.ID = id
	mutation, err := s.newMutation(ctx, exam, id != "")
	if err != nil {
		return nil, err
	}
	return s.guard.Check(ctx, mutation)
}

// Delete removes an exam.
func (s *ExamService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete exam")
	}
	return nil
}

// ConflictWarnings returns the report stored with the exam at its last write.
func (s *ExamService) ConflictWarnings(ctx context.Context, id string) (*models.StoredConflictReport, error) {
	exam, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	report := exam.ConflictReport
	if report.Conflicts == nil {
		report.Conflicts = []models.Conflict{}
	}
	return &report, nil
}

// ExportConflicts renders the stored conflict warnings as CSV or PDF.
func (s *ExamService) ExportConflicts(ctx context.Context, id string, format models.ReportFormat) (*ConflictExport, error) {
	exam, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	dataset := export.ConflictDataset(exam.ConflictReport.Conflicts)
	base := fmt.Sprintf("exam-%s-conflicts", exam.ID)

	switch format {
	case models.ReportFormatCSV, "":
		body, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render conflicts")
		}
		return &ConflictExport{Filename: base + ".csv", ContentType: "text/csv", Body: body}, nil
	case models.ReportFormatPDF:
		body, err := s.pdf.Render(dataset, "Conflicts: "+exam.Title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render conflicts")
		}
		return &ConflictExport{Filename: base + ".pdf", ContentType: "application/pdf", Body: body}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

func (s *ExamService) buildExam(req ExamRequest) (*models.Exam, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}
	date, err := parseDateField("date", req.Date)
	if err != nil {
		return nil, err
	}
	start, err := parseClockField("start_time", req.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := parseClockField("end_time", req.EndTime)
	if err != nil {
		return nil, err
	}
	return &models.Exam{
		TermID:         req.TermID,
		SubjectID:      req.SubjectID,
		Title:          strings.TrimSpace(req.Title),
		ClassIDs:       uniqueSorted(req.ClassIDs),
		ExamDate:       date,
		StartTime:      start,
		EndTime:        end,
		Room:           optionalString(req.Room),
		Building:       optionalString(req.Building),
		InvigilatorIDs: uniqueSorted(req.InvigilatorIDs),
	}, nil
}

func (s *ExamService) newMutation(ctx context.Context, exam *models.Exam, update bool) (*examMutation, error) {
	enrolled, err := s.enrollments.ListActiveStudentIDs(ctx, exam.ClassIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve exam students")
	}
	return &examMutation{svc: s, exam: exam, students: studentsOf(exam.ClassIDs, enrolled), update: update}, nil
}

// examMutation adapts an exam write to the MutationGuard.
type examMutation struct {
	svc      *ExamService
	exam     *models.Exam
	students []string
	update   bool
}

func (m *examMutation) Kind() models.AllocationKind {
	return models.AllocationKindExam
}

func (m *examMutation) Proposals() []models.Allocation {
	return []models.Allocation{m.exam.Allocation(m.students)}
}

// Snapshot loads the other exams on the exam date together with the
// timetable entries of the exam's term that recur on that date.
func (m *examMutation) Snapshot(ctx context.Context) ([]models.Allocation, error) {
	date := models.DateOf(m.exam.ExamDate)
	exams, err := m.svc.repo.ListByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	var entries []models.Schedule
	if m.svc.timetable != nil {
		entries, err = m.svc.timetable.ListByTermAndDay(ctx, m.exam.TermID, weekdayName(date))
		if err != nil {
			return nil, err
		}
	}
	return occupancy(ctx, m.svc.enrollments, []time.Time{date}, exams, entries)
}

func (m *examMutation) Commit(ctx context.Context, report *models.ConflictReport) error {
	m.exam.ConflictReport = storedReport(report, time.Now().UTC())
	if m.update {
		return m.svc.repo.Update(ctx, m.exam)
	}
	return m.svc.repo.Create(ctx, m.exam)
}
