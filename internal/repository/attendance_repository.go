package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-bulletin-api/internal/models"
)

// AttendanceRepository reads daily attendance for bulletin absence counters.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Summary aggregates the student's daily attendance in the class for the term, limited to the term's dates.
func (r *AttendanceRepository) Summary(ctx context.Context, studentID, batchID, termID string) (*models.AttendanceSummary, error) {
	const query = `SELECT da.status, COUNT(*) AS cnt
FROM daily_attendance da
JOIN enrollments e ON e.id = da.enrollment_id
JOIN terms t ON t.id = e.term_id
WHERE e.student_id = $1 AND e.class_id = $2 AND e.term_id = $3
  AND da.date BETWEEN t.start_date AND t.end_date
GROUP BY da.status`
	rows := []struct {
		Status string `db:"status"`
		Count  int    `db:"cnt"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, studentID, batchID, termID); err != nil {
		return nil, fmt.Errorf("student attendance summary: %w", err)
	}
	summary := &models.AttendanceSummary{}
	for _, row := range rows {
		switch models.AttendanceStatus(row.Status) {
		case models.AttendanceStatusPresent:
			summary.Present += row.Count
		case models.AttendanceStatusSick, models.AttendanceStatusExcused:
			summary.Justified += row.Count
		case models.AttendanceStatusAbsent:
			summary.Unjustified += row.Count
		}
		summary.Total += row.Count
	}
	return summary, nil
}
