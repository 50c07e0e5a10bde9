package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
)

const examColumns = "id, term_id, subject_id, title, class_ids, exam_date, start_time, end_time, room, building, invigilator_ids, conflict_report, created_at, updated_at"

// ExamRepository provides persistence for exams.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository creates a new exam repository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// List returns exams with optional filtering and pagination.
func (r *ExamRepository) List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, int, error) {
	base := "FROM exams WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.TermID != "" {
		conditions = append(conditions, fmt.Sprintf("term_id = $%d", len(args)+1))
		args = append(args, filter.TermID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(class_ids)", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("exam_date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateUntil != nil {
		conditions = append(conditions, fmt.Sprintf("exam_date <= $%d", len(args)+1))
		args = append(args, *filter.DateUntil)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "exam_date"
	}
	allowedSorts := map[string]bool{
		"exam_date":  true,
		"start_time": true,
		"title":      true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "exam_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, id ASC LIMIT %d OFFSET %d", examColumns, base, sortBy, order, size, offset)
	var exams []models.Exam
	if err := r.db.SelectContext(ctx, &exams, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list exams: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count exams: %w", err)
	}

	return exams, total, nil
}

// FindByID loads an exam by id.
func (r *ExamRepository) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	query := `SELECT ` + examColumns + ` FROM exams WHERE id = $1`
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, id); err != nil {
		return nil, err
	}
	return &exam, nil
}

// ListByDate returns every exam held on the given calendar date.
func (r *ExamRepository) ListByDate(ctx context.Context, date time.Time) ([]models.Exam, error) {
	query := `SELECT ` + examColumns + ` FROM exams WHERE exam_date = $1 ORDER BY start_time ASC, id ASC`
	var exams []models.Exam
	if err := r.db.SelectContext(ctx, &exams, query, models.DateOf(date)); err != nil {
		return nil, fmt.Errorf("list exams by date: %w", err)
	}
	return exams, nil
}

// ListByDates returns exams held on any of the given calendar dates.
func (r *ExamRepository) ListByDates(ctx context.Context, dates []time.Time) ([]models.Exam, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	days := make([]string, 0, len(dates))
	for _, d := range dates {
		days = append(days, models.DateOf(d).Format(models.DateLayout))
	}
	query := `SELECT ` + examColumns + ` FROM exams WHERE exam_date = ANY($1::date[]) ORDER BY exam_date ASC, start_time ASC, id ASC`
	var exams []models.Exam
	if err := r.db.SelectContext(ctx, &exams, query, pq.Array(days)); err != nil {
		return nil, fmt.Errorf("list exams by dates: %w", err)
	}
	return exams, nil
}

// Create stores a new exam record.
func (r *ExamRepository) Create(ctx context.Context, exam *models.Exam) error {
	if exam.ID == "" {
		exam.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if exam.CreatedAt.IsZero() {
		exam.CreatedAt = now
	}
	exam.UpdatedAt = now

	const query = `INSERT INTO exams (id, term_id, subject_id, title, class_ids, exam_date, start_time, end_time, room, building, invigilator_ids, conflict_report, created_at, updated_at) VALUES (:id, :term_id, :subject_id, :title, :class_ids, :exam_date, :start_time, :end_time, :room, :building, :invigilator_ids, :conflict_report, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("create exam: %w", err)
	}
	return nil
}

// Update modifies an exam record.
func (r *ExamRepository) Update(ctx context.Context, exam *models.Exam) error {
	exam.UpdatedAt = time.Now().UTC()
	const query = `UPDATE exams SET term_id = :term_id, subject_id = :subject_id, title = :title, class_ids = :class_ids, exam_date = :exam_date, start_time = :start_time, end_time = :end_time, room = :room, building = :building, invigilator_ids = :invigilator_ids, conflict_report = :conflict_report, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("update exam: %w", err)
	}
	return nil
}

// Delete removes an exam by id.
func (r *ExamRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM exams WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete exam: %w", err)
	}
	return nil
}
