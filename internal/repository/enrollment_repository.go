package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// EnrollmentRepository resolves which students sit in which class sections.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

type classStudentRow struct {
	ClassID   string `db:"class_id"`
	StudentID string `db:"student_id"`
}

// ListActiveStudentIDs returns the active students of every requested class,
// keyed by class id, in one query.
func (r *EnrollmentRepository) ListActiveStudentIDs(ctx context.Context, classIDs []string) (map[string][]string, error) {
	result := make(map[string][]string, len(classIDs))
	if len(classIDs) == 0 {
		return result, nil
	}
	const query = `SELECT class_id, student_id FROM enrollments WHERE status = 'ACTIVE' AND class_id = ANY($1) ORDER BY class_id ASC, student_id ASC`
	var rows []classStudentRow
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(classIDs)); err != nil {
		return nil, fmt.Errorf("list active students by class: %w", err)
	}
	for _, row := range rows {
		result[row.ClassID] = append(result[row.ClassID], row.StudentID)
	}
	return result, nil
}
