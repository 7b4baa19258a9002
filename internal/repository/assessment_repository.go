package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-bulletin-api/internal/models"
)

// AssessmentRepository reads raw marks recorded through the portal's grade entry screens.
// Grade component codes map onto assessment kinds.
type AssessmentRepository struct {
	db *sqlx.DB
}

// NewAssessmentRepository creates the repository.
func NewAssessmentRepository(db *sqlx.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

// Scores returns every mark of a student for a term across subjects.
func (r *AssessmentRepository) Scores(ctx context.Context, studentID, termID string) ([]models.AssessmentScore, error) {
	const query = `SELECT e.student_id, g.subject_id, e.term_id, LOWER(gc.code) AS kind, g.grade_value AS value
        FROM grades g
        JOIN enrollments e ON e.id = g.enrollment_id
        JOIN grade_components gc ON gc.id = g.component_id
        WHERE e.student_id = $1 AND e.term_id = $2
        ORDER BY g.subject_id, gc.code`
	var scores []models.AssessmentScore
	if err := r.db.SelectContext(ctx, &scores, query, studentID, termID); err != nil {
		return nil, fmt.Errorf("list assessment scores: %w", err)
	}
	return scores, nil
}
