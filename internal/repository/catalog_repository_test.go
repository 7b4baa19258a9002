package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-bulletin-api/internal/models"
)

func newCatalogMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestBatchRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newCatalogMock(t)
	defer cleanup()
	repo := NewBatchRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM classes WHERE id = $1")).
		WithArgs("batch-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "course_id", "education_level"}).
			AddRow("batch-1", "6th A", "course-1", "middle"))

	batch, err := repo.FindByID(context.Background(), "batch-1")
	require.NoError(t, err)
	assert.Equal(t, models.EducationLevelMiddle, batch.EducationLevel)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectRepositoryListByCourse(t *testing.T) {
	db, mock, cleanup := newCatalogMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM course_subjects cs")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "coefficient"}).
			AddRow("fr", "French", 3.0).
			AddRow("math", "Mathematics", 4.0))

	subjects, err := repo.ListByCourse(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, subjects, 2)
	assert.Equal(t, 4.0, subjects[1].Coefficient)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryStudentIDs(t *testing.T) {
	db, mock, cleanup := newCatalogMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT student_id FROM enrollments WHERE class_id = $1 AND term_id = $2 AND status = $3")).
		WithArgs("batch-1", "term-1", "ACTIVE").
		WillReturnRows(sqlmock.NewRows([]string{"student_id"}).AddRow("stu-1").AddRow("stu-2"))

	ids, err := repo.StudentIDs(context.Background(), "batch-1", "term-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"stu-1", "stu-2"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryIsEnrolled(t *testing.T) {
	db, mock, cleanup := newCatalogMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("stu-1", "batch-1", "term-1", "ACTIVE").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.IsEnrolled(context.Background(), "stu-1", "batch-1", "term-1")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssessmentRepositoryScores(t *testing.T) {
	db, mock, cleanup := newCatalogMock(t)
	defer cleanup()
	repo := NewAssessmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("JOIN grade_components gc ON gc.id = g.component_id")).
		WithArgs("stu-1", "term-1").
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "subject_id", "term_id", "kind", "value"}).
			AddRow("stu-1", "math", "term-1", "homework", 14.0).
			AddRow("stu-1", "math", "term-1", "composition", 16.0))

	scores, err := repo.Scores(context.Background(), "stu-1", "term-1")
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, models.AssessmentHomework, scores[0].Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, "bulletins:")
	var dest map[string]string

	err := repo.Get(context.Background(), "bulletin:1", &dest)
	assert.Error(t, err)
	assert.NoError(t, repo.Set(context.Background(), "bulletin:1", map[string]string{"a": "b"}, 0))
	assert.NoError(t, repo.Delete(context.Background(), "bulletin:1"))
	assert.NoError(t, repo.DeleteByPattern(context.Background(), "stats:*"))
}
