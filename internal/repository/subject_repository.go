package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-bulletin-api/internal/models"
)

// SubjectRepository reads the subject catalog and per-course coefficients.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a new subject repository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// ListByCourse returns the subjects taught in a course ordered by name.
// A missing coefficient defaults to 1; non-positive stored values are returned as-is so line creation rejects them.
func (r *SubjectRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Subject, error) {
	const query = `SELECT s.id, s.name, COALESCE(cs.coefficient, 1) AS coefficient
        FROM course_subjects cs
        JOIN subjects s ON s.id = cs.subject_id
        WHERE cs.course_id = $1
        ORDER BY s.name, s.id`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, courseID); err != nil {
		return nil, fmt.Errorf("list course subjects: %w", err)
	}
	return subjects, nil
}

// FindInCourse returns one subject of a course.
func (r *SubjectRepository) FindInCourse(ctx context.Context, courseID, subjectID string) (*models.Subject, error) {
	const query = `SELECT s.id, s.name, COALESCE(cs.coefficient, 1) AS coefficient
        FROM course_subjects cs
        JOIN subjects s ON s.id = cs.subject_id
        WHERE cs.course_id = $1 AND s.id = $2`
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, courseID, subjectID); err != nil {
		return nil, err
	}
	return &subject, nil
}
