package service

import (
	"fmt"
	"math"

	"github.com/noah-isme/sma-bulletin-api/internal/models"
	appErrors "github.com/noah-isme/sma-bulletin-api/pkg/errors"
)

// ScoringPolicy decides which assessment kinds feed a subject average.
type ScoringPolicy string

// Scoring policies. Middle and upper levels share the secondary policy.
const (
	PolicyPrimary   ScoringPolicy = "primary"
	PolicySecondary ScoringPolicy = "secondary"
)

var policyKinds = map[ScoringPolicy][]models.AssessmentKind{
	PolicyPrimary:   {models.AssessmentControl, models.AssessmentComposition},
	PolicySecondary: {models.AssessmentHomework, models.AssessmentComposition},
}

// PolicyFor maps a stored education level to its scoring policy.
// An unset or unknown level is a precondition failure; the level is never guessed from names.
func PolicyFor(level models.EducationLevel) (ScoringPolicy, error) {
	switch level {
	case models.EducationLevelPrimary:
		return PolicyPrimary, nil
	case models.EducationLevelMiddle, models.EducationLevelUpper:
		return PolicySecondary, nil
	case "":
		return "", appErrors.Clone(appErrors.ErrPreconditionFailed, "class has no education level configured")
	}
	return "", appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("unknown education level %q", level))
}

var appreciationScale = []struct {
	min   float64
	label string
}{
	{16, "Very good"},
	{14, "Good"},
	{12, "Fairly good"},
	{10, "Pass"},
}

// GradeAggregator turns raw marks into subject averages. It holds no state beyond its configuration.
type GradeAggregator struct {
	maxGrade float64
}

// NewGradeAggregator builds an aggregator for marks on a [0, maxGrade] scale.
func NewGradeAggregator(maxGrade float64) *GradeAggregator {
	if maxGrade <= 0 {
		maxGrade = 20
	}
	return &GradeAggregator{maxGrade: maxGrade}
}

// MaxGrade returns the upper bound of the grading scale.
func (a *GradeAggregator) MaxGrade() float64 {
	return a.maxGrade
}

// KindAverages averages the scores of each kind. Kinds without scores stay nil.
func (a *GradeAggregator) KindAverages(scores []models.AssessmentScore) models.LineScores {
	sums := make(map[models.AssessmentKind]float64)
	counts := make(map[models.AssessmentKind]int)
	for _, sc := range scores {
		if !sc.Kind.Valid() {
			continue
		}
		sums[sc.Kind] += a.clamp(sc.Value)
		counts[sc.Kind]++
	}

	var out models.LineScores
	for kind, n := range counts {
		avg := a.round(sums[kind] / float64(n))
		out.Set(kind, &avg)
	}
	return out
}

// SubjectAverage applies policy to per-kind scores: the mean of the policy's kinds that are
// present and strictly positive. With none qualifying the average is 0 and incomplete is true.
func (a *GradeAggregator) SubjectAverage(policy ScoringPolicy, scores models.LineScores) (avg float64, incomplete bool) {
	var sum float64
	var n int
	for _, kind := range policyKinds[policy] {
		v := scores.Get(kind)
		if v == nil || *v <= 0 {
			continue
		}
		sum += a.clamp(*v)
		n++
	}
	if n == 0 {
		return 0, true
	}
	return a.clamp(a.round(sum / float64(n))), false
}

// Aggregate recomputes a line from raw marks for its subject. Preserved lines are left untouched.
func (a *GradeAggregator) Aggregate(policy ScoringPolicy, line *models.BulletinLine, scores []models.AssessmentScore) {
	if line.Preserved {
		return
	}
	line.LineScores = a.KindAverages(scores)
	a.Refresh(policy, line)
}

// Refresh recomputes average, incompleteness and appreciation from the line's current scores.
func (a *GradeAggregator) Refresh(policy ScoringPolicy, line *models.BulletinLine) {
	line.SubjectAverage, line.Incomplete = a.SubjectAverage(policy, line.LineScores)
	label := a.Appreciation(line.SubjectAverage)
	if line.Incomplete {
		line.Appreciation = nil
		return
	}
	line.Appreciation = &label
}

// Appreciation returns the scale label for an average, normalised to a 20-point scale.
func (a *GradeAggregator) Appreciation(avg float64) string {
	on20 := avg * 20 / a.maxGrade
	for _, step := range appreciationScale {
		if on20 >= step.min {
			return step.label
		}
	}
	return "Insufficient"
}

// InRange reports whether v is a legal mark.
func (a *GradeAggregator) InRange(v float64) bool {
	return v >= 0 && v <= a.maxGrade
}

func (a *GradeAggregator) clamp(v float64) float64 {
	return math.Max(0, math.Min(a.maxGrade, v))
}

func (a *GradeAggregator) round(v float64) float64 {
	return roundGrade(v)
}

func roundGrade(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
