package dto

import "github.com/noah-isme/sma-bulletin-api/internal/models"

// CreateBulletinRequest opens a draft bulletin for one student and term.
type CreateBulletinRequest struct {
	StudentID string `json:"studentId" validate:"required"`
	BatchID   string `json:"batchId" validate:"required"`
	TermID    string `json:"termId" validate:"required"`
}

// UpdateBulletinRequest edits header fields. Nil fields are left untouched.
type UpdateBulletinRequest struct {
	GeneralAppreciation *string `json:"generalAppreciation,omitempty" validate:"omitempty,max=1000"`
	CouncilDecision     *string `json:"councilDecision,omitempty" validate:"omitempty,max=255"`
	UnjustifiedAbsences *int    `json:"unjustifiedAbsences,omitempty" validate:"omitempty,gte=0"`
	JustifiedAbsences   *int    `json:"justifiedAbsences,omitempty" validate:"omitempty,gte=0"`
	Tardies             *int    `json:"tardies,omitempty" validate:"omitempty,gte=0"`
	// AttendanceFromRecords drops a manual absence override so the next calculation recounts from attendance.
	AttendanceFromRecords bool `json:"attendanceFromRecords,omitempty"`
}

// ArchiveBulletinRequest carries the mandatory archive reason.
type ArchiveBulletinRequest struct {
	Reason string `json:"reason"`
}

// LineScoresRequest sets raw per-kind scores on a line.
type LineScoresRequest struct {
	Control     *float64 `json:"control,omitempty" validate:"omitempty,gte=0"`
	Composition *float64 `json:"composition,omitempty" validate:"omitempty,gte=0"`
	Homework    *float64 `json:"homework,omitempty" validate:"omitempty,gte=0"`
	Oral        *float64 `json:"oral,omitempty" validate:"omitempty,gte=0"`
	Practical   *float64 `json:"practical,omitempty" validate:"omitempty,gte=0"`
}

// ToModel converts the request into line scores.
func (r *LineScoresRequest) ToModel() models.LineScores {
	if r == nil {
		return models.LineScores{}
	}
	return models.LineScores{
		Control:     r.Control,
		Composition: r.Composition,
		Homework:    r.Homework,
		Oral:        r.Oral,
		Practical:   r.Practical,
	}
}

// UpsertLineRequest adds or edits a subject line by hand.
// SubjectAverage overrides the computed average; Preserved shields the line from recalculation.
type UpsertLineRequest struct {
	SubjectID      string             `json:"subjectId" validate:"required"`
	Scores         *LineScoresRequest `json:"scores,omitempty"`
	SubjectAverage *float64           `json:"subjectAverage,omitempty" validate:"omitempty,gte=0"`
	Appreciation   *string            `json:"appreciation,omitempty" validate:"omitempty,max=255"`
	Preserved      *bool              `json:"preserved,omitempty"`
}

// GenerateBatchRequest drives batch generation and its preview.
type GenerateBatchRequest struct {
	BatchID            string `json:"batchId" validate:"required"`
	TermID             string `json:"termId" validate:"required"`
	RegenerateExisting bool   `json:"regenerateExisting"`
	AutoValidate       bool   `json:"autoValidate"`
	// Actor is stamped as validator on auto-validated bulletins; set from the caller's claims.
	Actor string `json:"-"`
}

// BatchPreview reports planned decision counts before anything is written.
type BatchPreview struct {
	BatchID       string `json:"batchId"`
	TermID        string `json:"termId"`
	TotalStudents int    `json:"totalStudents"`
	Existing      int    `json:"existing"`
	ToCreate      int    `json:"toCreate"`
	ToUpdate      int    `json:"toUpdate"`
	ToSkip        int    `json:"toSkip"`
}

// BatchError is one student's failure during batch generation.
type BatchError struct {
	StudentID string `json:"studentId"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// BatchSummary is the externally observable result of a batch run.
type BatchSummary struct {
	BatchID      string             `json:"batchId"`
	TermID       string             `json:"termId"`
	CreatedCount int                `json:"createdCount"`
	UpdatedCount int                `json:"updatedCount"`
	SkippedCount int                `json:"skippedCount"`
	ErrorCount   int                `json:"errorCount"`
	PendingCount int                `json:"pendingCount"`
	Bulletins    []models.Bulletin  `json:"bulletins"`
	Errors       []BatchError       `json:"errors"`
	Pending      []string           `json:"pending,omitempty"`
	Ranking      *RankingPassResult `json:"ranking,omitempty"`
}

// RankingPassResult describes the cohort ranking pass that closed a batch.
type RankingPassResult struct {
	ClassSize    int     `json:"classSize"`
	ClassAverage float64 `json:"classAverage"`
	Error        string  `json:"error,omitempty"`
}

// BulletinListQuery binds list filters from the query string.
type BulletinListQuery struct {
	BatchID   string `form:"batchId"`
	TermID    string `form:"termId"`
	StudentID string `form:"studentId"`
	State     string `form:"state"`
	Page      int    `form:"page"`
	PageSize  int    `form:"pageSize"`
}

// StatsQuery selects the cohort for statistics.
type StatsQuery struct {
	BatchID string `form:"batchId" validate:"required"`
	TermID  string `form:"termId" validate:"required"`
}
