package models

import (
	"fmt"
	"strings"
	"time"

	appErrors "github.com/noah-isme/sma-bulletin-api/pkg/errors"
)

// EducationLevel selects the scoring policy used when averaging a subject.
type EducationLevel string

// Supported education levels.
const (
	EducationLevelPrimary EducationLevel = "primary"
	EducationLevelMiddle  EducationLevel = "middle"
	EducationLevelUpper   EducationLevel = "upper"
)

// Valid reports whether the level is one of the configured values.
func (l EducationLevel) Valid() bool {
	switch l {
	case EducationLevelPrimary, EducationLevelMiddle, EducationLevelUpper:
		return true
	}
	return false
}

// BulletinState is the lifecycle position of a bulletin.
type BulletinState string

// Bulletin lifecycle states.
const (
	BulletinStateDraft      BulletinState = "draft"
	BulletinStateCalculated BulletinState = "calculated"
	BulletinStateValidated  BulletinState = "validated"
	BulletinStatePublished  BulletinState = "published"
	BulletinStateArchived   BulletinState = "archived"
)

// Ranked reports whether bulletins in this state take part in cohort ranking.
func (s BulletinState) Ranked() bool {
	return s == BulletinStateCalculated || s == BulletinStateValidated || s == BulletinStatePublished
}

// AssessmentKind identifies the type of evaluation a score comes from.
type AssessmentKind string

// Assessment kinds supplied by the assessment provider.
const (
	AssessmentControl     AssessmentKind = "control"
	AssessmentComposition AssessmentKind = "composition"
	AssessmentHomework    AssessmentKind = "homework"
	AssessmentOral        AssessmentKind = "oral"
	AssessmentPractical   AssessmentKind = "practical"
)

// Valid reports whether the kind is known.
func (k AssessmentKind) Valid() bool {
	switch k {
	case AssessmentControl, AssessmentComposition, AssessmentHomework, AssessmentOral, AssessmentPractical:
		return true
	}
	return false
}

// Batch is a class cohort sharing a timetable; its education level is stored, never inferred.
type Batch struct {
	ID             string         `db:"id" json:"id"`
	Name           string         `db:"name" json:"name"`
	CourseID       string         `db:"course_id" json:"course_id"`
	EducationLevel EducationLevel `db:"education_level" json:"education_level"`
}

// Subject is a catalog entry for a course with its weighting coefficient.
type Subject struct {
	ID          string  `db:"id" json:"id"`
	Name        string  `db:"name" json:"name"`
	Coefficient float64 `db:"coefficient" json:"coefficient"`
}

// AssessmentScore is one raw mark owned by the assessment provider.
type AssessmentScore struct {
	StudentID string         `db:"student_id" json:"student_id"`
	SubjectID string         `db:"subject_id" json:"subject_id"`
	TermID    string         `db:"term_id" json:"term_id"`
	Kind      AssessmentKind `db:"kind" json:"kind"`
	Value     float64        `db:"value" json:"value"`
}

// NewAssessmentScore builds a score, rejecting unknown kinds and values outside [0, maxGrade].
func NewAssessmentScore(studentID, subjectID, termID string, kind AssessmentKind, value, maxGrade float64) (AssessmentScore, error) {
	if !kind.Valid() {
		return AssessmentScore{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown assessment kind %q", kind))
	}
	if value < 0 || value > maxGrade {
		return AssessmentScore{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("score %.2f outside [0, %.2f]", value, maxGrade))
	}
	return AssessmentScore{StudentID: studentID, SubjectID: subjectID, TermID: termID, Kind: kind, Value: value}, nil
}

// LineScores holds the per-kind averages a line was computed from. Nil means no score of that kind.
type LineScores struct {
	Control     *float64 `db:"control_score" json:"control,omitempty"`
	Composition *float64 `db:"composition_score" json:"composition,omitempty"`
	Homework    *float64 `db:"homework_score" json:"homework,omitempty"`
	Oral        *float64 `db:"oral_score" json:"oral,omitempty"`
	Practical   *float64 `db:"practical_score" json:"practical,omitempty"`
}

// Get returns the score stored for kind.
func (s LineScores) Get(kind AssessmentKind) *float64 {
	switch kind {
	case AssessmentControl:
		return s.Control
	case AssessmentComposition:
		return s.Composition
	case AssessmentHomework:
		return s.Homework
	case AssessmentOral:
		return s.Oral
	case AssessmentPractical:
		return s.Practical
	}
	return nil
}

// Set stores value for kind; unknown kinds are ignored.
func (s *LineScores) Set(kind AssessmentKind, value *float64) {
	switch kind {
	case AssessmentControl:
		s.Control = value
	case AssessmentComposition:
		s.Composition = value
	case AssessmentHomework:
		s.Homework = value
	case AssessmentOral:
		s.Oral = value
	case AssessmentPractical:
		s.Practical = value
	}
}

// BulletinLine is one subject row of a bulletin.
type BulletinLine struct {
	ID          string `db:"id" json:"id"`
	BulletinID  string `db:"bulletin_id" json:"bulletin_id"`
	SubjectID   string `db:"subject_id" json:"subject_id"`
	SubjectName string `db:"subject_name" json:"subject_name"`
	LineScores  `json:"scores"`

	SubjectAverage float64   `db:"subject_average" json:"subject_average"`
	Coefficient    float64   `db:"coefficient" json:"coefficient"`
	Appreciation   *string   `db:"appreciation" json:"appreciation,omitempty"`
	SubjectRank    *int      `db:"subject_rank" json:"subject_rank,omitempty"`
	Incomplete     bool      `db:"incomplete" json:"incomplete"`
	Preserved      bool      `db:"preserved" json:"preserved"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// NewBulletinLine creates an empty line for subject, copying its coefficient.
// A coefficient of zero or less is rejected rather than defaulted.
func NewBulletinLine(bulletinID string, subject Subject) (BulletinLine, error) {
	if strings.TrimSpace(subject.ID) == "" {
		return BulletinLine{}, appErrors.Clone(appErrors.ErrValidation, "subject is required")
	}
	if subject.Coefficient <= 0 {
		return BulletinLine{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("subject %s has non-positive coefficient %.2f", subject.ID, subject.Coefficient))
	}
	return BulletinLine{
		BulletinID:  bulletinID,
		SubjectID:   subject.ID,
		SubjectName: subject.Name,
		Coefficient: subject.Coefficient,
		Incomplete:  true,
	}, nil
}

// CohortKey scopes ranking to one class in one term.
type CohortKey struct {
	BatchID string `json:"batch_id"`
	TermID  string `json:"term_id"`
}

// String renders the key for locks, cache keys and job coalescing.
func (k CohortKey) String() string {
	return k.BatchID + ":" + k.TermID
}

// Bulletin is a student's report card for one term.
type Bulletin struct {
	ID          string `db:"id" json:"id"`
	Number      string `db:"number" json:"number"`
	StudentID   string `db:"student_id" json:"student_id"`
	StudentName string `db:"student_name" json:"student_name,omitempty"`
	BatchID     string `db:"batch_id" json:"batch_id"`
	CourseID    string `db:"course_id" json:"course_id"`
	TermID      string `db:"term_id" json:"term_id"`

	Lines []BulletinLine `db:"-" json:"lines"`

	OverallAverage float64  `db:"overall_average" json:"overall_average"`
	ClassRank      *int     `db:"class_rank" json:"class_rank,omitempty"`
	ClassSize      *int     `db:"class_size" json:"class_size,omitempty"`
	ClassAverage   *float64 `db:"class_average" json:"class_average,omitempty"`

	UnjustifiedAbsences int     `db:"unjustified_absences" json:"unjustified_absences"`
	JustifiedAbsences   int     `db:"justified_absences" json:"justified_absences"`
	Tardies             int     `db:"tardies" json:"tardies"`
	AttendanceManual    bool    `db:"attendance_manual" json:"attendance_manual"`
	GeneralAppreciation *string `db:"general_appreciation" json:"general_appreciation,omitempty"`
	CouncilDecision     *string `db:"council_decision" json:"council_decision,omitempty"`

	State         BulletinState `db:"state" json:"state"`
	ValidatedBy   *string       `db:"validated_by" json:"validated_by,omitempty"`
	ValidatedAt   *time.Time    `db:"validated_at" json:"validated_at,omitempty"`
	PublishedBy   *string       `db:"published_by" json:"published_by,omitempty"`
	PublishedAt   *time.Time    `db:"published_at" json:"published_at,omitempty"`
	ArchivedAt    *time.Time    `db:"archived_at" json:"archived_at,omitempty"`
	ArchiveReason *string       `db:"archive_reason" json:"archive_reason,omitempty"`
	EditionDate   *time.Time    `db:"edition_date" json:"edition_date,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// Cohort returns the ranking scope of the bulletin.
func (b *Bulletin) Cohort() CohortKey {
	return CohortKey{BatchID: b.BatchID, TermID: b.TermID}
}

// Line returns the line for subjectID, if present.
func (b *Bulletin) Line(subjectID string) (*BulletinLine, bool) {
	for i := range b.Lines {
		if b.Lines[i].SubjectID == subjectID {
			return &b.Lines[i], true
		}
	}
	return nil, false
}

// BulletinFilter narrows bulletin listings.
type BulletinFilter struct {
	BatchID   string
	TermID    string
	StudentID string
	State     BulletinState
	Page      int
	PageSize  int
}

// RankedStudent is an entry in the stats leaderboards.
type RankedStudent struct {
	BulletinID     string  `db:"bulletin_id" json:"bulletin_id"`
	StudentID      string  `db:"student_id" json:"student_id"`
	StudentName    string  `db:"student_name" json:"student_name"`
	OverallAverage float64 `db:"overall_average" json:"overall_average"`
	ClassRank      *int    `db:"class_rank" json:"class_rank,omitempty"`
}

// SubjectStat summarises one subject across a cohort.
type SubjectStat struct {
	SubjectID   string  `db:"subject_id" json:"subject_id"`
	SubjectName string  `db:"subject_name" json:"subject_name"`
	Average     float64 `db:"average" json:"average"`
	Min         float64 `db:"min" json:"min"`
	Max         float64 `db:"max" json:"max"`
}

// BulletinStats aggregates a cohort for dashboards.
type BulletinStats struct {
	Cohort          CohortKey             `json:"cohort"`
	Total           int                   `json:"total"`
	ByState         map[BulletinState]int `json:"by_state"`
	AverageOverall  float64               `json:"average_overall"`
	TopStudents     []RankedStudent       `json:"top_students"`
	LowPerformers   []RankedStudent       `json:"low_performers"`
	SubjectAverages []SubjectStat         `json:"subject_averages"`
}

// RankAssignment is the outcome of a ranking pass for one bulletin.
// LineRanks maps line IDs to their subject rank.
type RankAssignment struct {
	BulletinID   string
	ClassRank    int
	ClassSize    int
	ClassAverage float64
	LineRanks    map[string]int
}
