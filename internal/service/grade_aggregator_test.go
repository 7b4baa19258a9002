package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-bulletin-api/internal/models"
	appErrors "github.com/noah-isme/sma-bulletin-api/pkg/errors"
)

func fptr(v float64) *float64 { return &v }

func TestPolicyFor(t *testing.T) {
	policy, err := PolicyFor(models.EducationLevelPrimary)
	require.NoError(t, err)
	assert.Equal(t, PolicyPrimary, policy)

	for _, level := range []models.EducationLevel{models.EducationLevelMiddle, models.EducationLevelUpper} {
		policy, err := PolicyFor(level)
		require.NoError(t, err)
		assert.Equal(t, PolicySecondary, policy)
	}

	_, err = PolicyFor("")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)

	_, err = PolicyFor("kindergarten")
	assert.ErrorIs(t, err, appErrors.ErrPreconditionFailed)
}

func TestSubjectAverageSecondaryPolicy(t *testing.T) {
	agg := NewGradeAggregator(20)
	avg, incomplete := agg.SubjectAverage(PolicySecondary, models.LineScores{Homework: fptr(14), Composition: fptr(16)})
	assert.Equal(t, 15.0, avg)
	assert.False(t, incomplete)
}

func TestSubjectAveragePrimaryIgnoresOtherKinds(t *testing.T) {
	agg := NewGradeAggregator(20)
	avg, incomplete := agg.SubjectAverage(PolicyPrimary, models.LineScores{
		Control:  fptr(12),
		Homework: fptr(20),
		Oral:     fptr(2),
	})
	assert.Equal(t, 12.0, avg)
	assert.False(t, incomplete)
}

func TestSubjectAverageSkipsZeroScores(t *testing.T) {
	agg := NewGradeAggregator(20)
	avg, incomplete := agg.SubjectAverage(PolicySecondary, models.LineScores{Homework: fptr(0), Composition: fptr(13)})
	assert.Equal(t, 13.0, avg)
	assert.False(t, incomplete)
}

func TestSubjectAverageIncompleteWithoutQualifyingScores(t *testing.T) {
	agg := NewGradeAggregator(20)
	cases := []models.LineScores{
		{},
		{Homework: fptr(0), Composition: fptr(0)},
		{Control: fptr(18)},
	}
	for _, scores := range cases {
		avg, incomplete := agg.SubjectAverage(PolicySecondary, scores)
		assert.Equal(t, 0.0, avg)
		assert.True(t, incomplete)
	}
}

func TestSubjectAverageStaysInRange(t *testing.T) {
	agg := NewGradeAggregator(20)
	values := []float64{0, 0.01, 7.5, 10, 19.99, 20, 35, -4}
	for _, a := range values {
		for _, b := range values {
			avg, _ := agg.SubjectAverage(PolicySecondary, models.LineScores{Homework: fptr(a), Composition: fptr(b)})
			assert.GreaterOrEqual(t, avg, 0.0)
			assert.LessOrEqual(t, avg, 20.0)
		}
	}
}

func TestKindAveragesAveragesPerKind(t *testing.T) {
	agg := NewGradeAggregator(20)
	scores := agg.KindAverages([]models.AssessmentScore{
		{Kind: models.AssessmentHomework, Value: 12},
		{Kind: models.AssessmentHomework, Value: 15},
		{Kind: models.AssessmentComposition, Value: 16},
		{Kind: "quiz", Value: 20},
	})
	require.NotNil(t, scores.Homework)
	assert.Equal(t, 13.5, *scores.Homework)
	require.NotNil(t, scores.Composition)
	assert.Equal(t, 16.0, *scores.Composition)
	assert.Nil(t, scores.Control)
	assert.Nil(t, scores.Oral)
}

func TestAggregateLeavesPreservedLineUntouched(t *testing.T) {
	agg := NewGradeAggregator(20)
	line := models.BulletinLine{SubjectID: "math", Coefficient: 2, SubjectAverage: 17, Preserved: true}
	agg.Aggregate(PolicySecondary, &line, []models.AssessmentScore{{Kind: models.AssessmentHomework, Value: 4}})
	assert.Equal(t, 17.0, line.SubjectAverage)
	assert.Nil(t, line.Homework)
}

func TestAggregateSetsAppreciation(t *testing.T) {
	agg := NewGradeAggregator(20)
	line := models.BulletinLine{SubjectID: "math", Coefficient: 2}
	agg.Aggregate(PolicySecondary, &line, []models.AssessmentScore{
		{Kind: models.AssessmentHomework, Value: 16},
		{Kind: models.AssessmentComposition, Value: 17},
	})
	assert.Equal(t, 16.5, line.SubjectAverage)
	require.NotNil(t, line.Appreciation)
	assert.Equal(t, "Very good", *line.Appreciation)

	agg.Aggregate(PolicySecondary, &line, nil)
	assert.True(t, line.Incomplete)
	assert.Nil(t, line.Appreciation)
}

func TestAppreciationScale(t *testing.T) {
	agg := NewGradeAggregator(20)
	assert.Equal(t, "Very good", agg.Appreciation(16))
	assert.Equal(t, "Good", agg.Appreciation(15.99))
	assert.Equal(t, "Fairly good", agg.Appreciation(12))
	assert.Equal(t, "Pass", agg.Appreciation(10))
	assert.Equal(t, "Insufficient", agg.Appreciation(9.99))

	hundred := NewGradeAggregator(100)
	assert.Equal(t, "Good", hundred.Appreciation(70))
}

func TestRoundGrade(t *testing.T) {
	assert.Equal(t, 12.33, roundGrade(37.0/3))
	assert.Equal(t, 15.0, roundGrade(15))
}
