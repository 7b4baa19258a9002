package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttendanceRepositorySummary(t *testing.T) {
	db, mock, cleanup := newCatalogMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("da.date BETWEEN t.start_date AND t.end_date")).
		WithArgs("stu-1", "batch-1", "term-1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "cnt"}).
			AddRow("H", 40).
			AddRow("S", 2).
			AddRow("I", 1).
			AddRow("A", 3))

	summary, err := repo.Summary(context.Background(), "stu-1", "batch-1", "term-1")
	require.NoError(t, err)
	assert.Equal(t, 40, summary.Present)
	assert.Equal(t, 3, summary.Justified)
	assert.Equal(t, 3, summary.Unjustified)
	assert.Equal(t, 46, summary.Total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositorySummaryNoRecords(t *testing.T) {
	db, mock, cleanup := newCatalogMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM daily_attendance da")).
		WithArgs("stu-1", "batch-1", "term-1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "cnt"}))

	summary, err := repo.Summary(context.Background(), "stu-1", "batch-1", "term-1")
	require.NoError(t, err)
	assert.Zero(t, summary.Total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositorySummaryError(t *testing.T) {
	db, mock, cleanup := newCatalogMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM daily_attendance da")).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.Summary(context.Background(), "stu-1", "batch-1", "term-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "student attendance summary")
}
