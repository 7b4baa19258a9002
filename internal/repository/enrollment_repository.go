package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const enrollmentStatusActive = "ACTIVE"

// EnrollmentRepository provides the class roster from active enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// StudentIDs lists students actively enrolled in the class for the term.
func (r *EnrollmentRepository) StudentIDs(ctx context.Context, batchID, termID string) ([]string, error) {
	const query = `SELECT DISTINCT student_id FROM enrollments WHERE class_id = $1 AND term_id = $2 AND status = $3 ORDER BY student_id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, batchID, termID, enrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("list class roster: %w", err)
	}
	return ids, nil
}

// IsEnrolled reports whether the student is actively enrolled in the class for the term.
func (r *EnrollmentRepository) IsEnrolled(ctx context.Context, studentID, batchID, termID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE student_id = $1 AND class_id = $2 AND term_id = $3 AND status = $4)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentID, batchID, termID, enrollmentStatusActive); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return exists, nil
}
