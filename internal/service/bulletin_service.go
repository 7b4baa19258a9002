package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-bulletin-api/internal/dto"
	"github.com/noah-isme/sma-bulletin-api/internal/models"
	"github.com/noah-isme/sma-bulletin-api/internal/repository"
	appErrors "github.com/noah-isme/sma-bulletin-api/pkg/errors"
)

const (
	topStudentThreshold = 16
	lowStudentThreshold = 10
	leaderboardSize     = 5
	cohortLockWait      = 5 * time.Second
)

type bulletinStore interface {
	FindByID(ctx context.Context, id string) (*models.Bulletin, error)
	FindActiveByStudentTerm(ctx context.Context, studentID, termID string) (*models.Bulletin, error)
	ListByCohort(ctx context.Context, key models.CohortKey) ([]models.Bulletin, error)
	List(ctx context.Context, filter models.BulletinFilter) ([]models.Bulletin, int, error)
	Create(ctx context.Context, bulletin *models.Bulletin) error
	Update(ctx context.Context, bulletin *models.Bulletin) error
	UpdateWithLines(ctx context.Context, bulletin *models.Bulletin) error
	SaveRanking(ctx context.Context, key models.CohortKey, assignments []models.RankAssignment) error
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context, key models.CohortKey, topThreshold, lowThreshold float64, limit int) (*models.BulletinStats, error)
}

type batchReader interface {
	FindByID(ctx context.Context, id string) (*models.Batch, error)
}

type rosterReader interface {
	StudentIDs(ctx context.Context, batchID, termID string) ([]string, error)
	IsEnrolled(ctx context.Context, studentID, batchID, termID string) (bool, error)
}

type subjectCatalog interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Subject, error)
	FindInCourse(ctx context.Context, courseID, subjectID string) (*models.Subject, error)
}

type assessmentReader interface {
	Scores(ctx context.Context, studentID, termID string) ([]models.AssessmentScore, error)
}

type attendanceReader interface {
	Summary(ctx context.Context, studentID, batchID, termID string) (*models.AttendanceSummary, error)
}

type rankScheduler interface {
	Schedule(key models.CohortKey)
}

// BulletinDeps groups the collaborators of BulletinService.
type BulletinDeps struct {
	Store       bulletinStore
	Batches     batchReader
	Roster      rosterReader
	Subjects    subjectCatalog
	Assessments assessmentReader
	Attendance  attendanceReader
	Locker      Locker
	Cache       *CacheService
	Metrics     *MetricsService
}

// BulletinService runs single-bulletin lifecycle operations and cohort ranking.
type BulletinService struct {
	store       bulletinStore
	batches     batchReader
	roster      rosterReader
	subjects    subjectCatalog
	assessments assessmentReader
	attendance  attendanceReader
	locker      Locker
	cache       *CacheService
	metrics     *MetricsService
	scheduler   rankScheduler

	aggregator *GradeAggregator
	calculator *BulletinCalculator
	states     *BulletinStateMachine
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewBulletinService constructs the service.
func NewBulletinService(deps BulletinDeps, aggregator *GradeAggregator, validate *validator.Validate, logger *zap.Logger) *BulletinService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if aggregator == nil {
		aggregator = NewGradeAggregator(20)
	}
	if deps.Locker == nil {
		deps.Locker = NewLocalLocker()
	}
	return &BulletinService{
		store:       deps.Store,
		batches:     deps.Batches,
		roster:      deps.Roster,
		subjects:    deps.Subjects,
		assessments: deps.Assessments,
		attendance:  deps.Attendance,
		locker:      deps.Locker,
		cache:       deps.Cache,
		metrics:     deps.Metrics,
		aggregator:  aggregator,
		calculator:  NewBulletinCalculator(),
		states:      NewBulletinStateMachine(),
		validator:   validate,
		logger:      logger,
	}
}

// UseRankScheduler defers cohort re-ranking after edits to s. Without one, re-ranking runs inline.
func (s *BulletinService) UseRankScheduler(scheduler rankScheduler) {
	s.scheduler = scheduler
}

// Create opens a draft bulletin for an enrolled student.
func (s *BulletinService) Create(ctx context.Context, req dto.CreateBulletinRequest) (*models.Bulletin, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulletin payload")
	}
	batch, err := s.loadBatch(ctx, req.BatchID)
	if err != nil {
		return nil, err
	}
	enrolled, err := s.roster.IsEnrolled(ctx, req.StudentID, req.BatchID, req.TermID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is not enrolled in this class for the term")
	}

	unlock, err := s.locker.Lock(ctx, studentTermLockKey(req.StudentID, req.TermID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.createDraft(ctx, req.StudentID, batch, req.TermID)
}

func (s *BulletinService) createDraft(ctx context.Context, studentID string, batch *models.Batch, termID string) (*models.Bulletin, error) {
	if _, err := s.store.FindActiveByStudentTerm(ctx, studentID, termID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already has an active bulletin for this term")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing bulletin")
	}

	bulletin := &models.Bulletin{
		StudentID: studentID,
		BatchID:   batch.ID,
		CourseID:  batch.CourseID,
		TermID:    termID,
		State:     models.BulletinStateDraft,
	}
	if err := s.store.Create(ctx, bulletin); err != nil {
		if errors.Is(err, repository.ErrDuplicateActiveBulletin) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already has an active bulletin for this term")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create bulletin")
	}
	s.cache.Invalidate(ctx, statsCacheKey(bulletin.Cohort().String()))
	return bulletin, nil
}

// Get returns a bulletin with its lines.
func (s *BulletinService) Get(ctx context.Context, id string) (*models.Bulletin, error) {
	var cached models.Bulletin
	if s.cache.Get(ctx, bulletinCacheKey(id), &cached) {
		return &cached, nil
	}
	bulletin, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, bulletinCacheKey(id), bulletin)
	return bulletin, nil
}

// List returns bulletin headers with pagination metadata.
func (s *BulletinService) List(ctx context.Context, filter models.BulletinFilter) ([]models.Bulletin, *models.Pagination, error) {
	if filter.State != "" && !validState(filter.State) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown state %q", filter.State))
	}
	bulletins, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bulletins")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return bulletins, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Calculate refreshes lines and averages from current marks, then re-ranks the cohort.
func (s *BulletinService) Calculate(ctx context.Context, id string) (result *models.Bulletin, err error) {
	defer func() { s.metrics.RecordTransition(ActionCalculate, err) }()

	bulletin, err := s.withBulletinLock(ctx, id, func(b *models.Bulletin) error {
		batch, err := s.loadBatch(ctx, b.BatchID)
		if err != nil {
			return err
		}
		subjects, err := s.courseSubjects(ctx, batch.CourseID)
		if err != nil {
			return err
		}
		return s.calculate(ctx, b, batch, subjects)
	})
	if err != nil {
		return nil, err
	}

	assignments, err := s.RankCohort(ctx, bulletin.Cohort())
	if err != nil {
		s.logger.Warn("rank after calculate failed", zap.String("bulletin_id", id), zap.Error(err))
		s.scheduleRank(ctx, bulletin.Cohort())
		return bulletin, nil
	}
	for _, a := range assignments {
		if a.BulletinID == bulletin.ID {
			applyAssignment(bulletin, a)
		}
	}
	return bulletin, nil
}

// calculate rebuilds b's lines from the course catalog and marks, then persists it.
// Preserved lines keep their scores and average; lines for subjects no longer in the course are dropped unless preserved.
// Callers hold the bulletin lock.
func (s *BulletinService) calculate(ctx context.Context, b *models.Bulletin, batch *models.Batch, subjects []models.Subject) error {
	if err := Guard(b.State, ActionCalculate); err != nil {
		return err
	}
	policy, err := PolicyFor(batch.EducationLevel)
	if err != nil {
		return err
	}

	raw, err := s.assessments.Scores(ctx, b.StudentID, b.TermID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assessment scores")
	}
	bySubject := make(map[string][]models.AssessmentScore)
	for _, sc := range raw {
		score, err := models.NewAssessmentScore(sc.StudentID, sc.SubjectID, sc.TermID, sc.Kind, sc.Value, s.aggregator.MaxGrade())
		if err != nil {
			s.logger.Debug("skipping assessment score", zap.String("student_id", sc.StudentID), zap.String("subject_id", sc.SubjectID), zap.Error(err))
			continue
		}
		bySubject[score.SubjectID] = append(bySubject[score.SubjectID], score)
	}

	lines := make([]models.BulletinLine, 0, len(subjects))
	seen := make(map[string]struct{}, len(subjects))
	for _, subject := range subjects {
		seen[subject.ID] = struct{}{}
		line, ok := b.Line(subject.ID)
		var next models.BulletinLine
		if ok {
			next = *line
		} else {
			created, err := models.NewBulletinLine(b.ID, subject)
			if err != nil {
				return err
			}
			next = created
		}
		next.SubjectName = subject.Name
		s.aggregator.Aggregate(policy, &next, bySubject[subject.ID])
		lines = append(lines, next)
	}
	for _, line := range b.Lines {
		if _, inCourse := seen[line.SubjectID]; !inCourse && line.Preserved {
			lines = append(lines, line)
		}
	}

	if err := s.countAbsences(ctx, b); err != nil {
		return err
	}

	sortLines(lines)
	b.Lines = lines
	b.OverallAverage = s.calculator.OverallAverage(b.Lines)
	if err := s.states.Apply(b, ActionCalculate, "", ""); err != nil {
		return err
	}
	if err := s.store.UpdateWithLines(ctx, b); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save bulletin")
	}
	return nil
}

// countAbsences refreshes b's absence counters from daily attendance unless they were set by hand.
// Tardies are not recorded in daily attendance and stay manual.
func (s *BulletinService) countAbsences(ctx context.Context, b *models.Bulletin) error {
	if s.attendance == nil || b.AttendanceManual {
		return nil
	}
	summary, err := s.attendance.Summary(ctx, b.StudentID, b.BatchID, b.TermID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	b.JustifiedAbsences = summary.Justified
	b.UnjustifiedAbsences = summary.Unjustified
	return nil
}

// Validate freezes a calculated bulletin.
func (s *BulletinService) Validate(ctx context.Context, id, actor string) (*models.Bulletin, error) {
	return s.transition(ctx, id, ActionValidate, actor, "")
}

// Publish makes a validated bulletin visible.
func (s *BulletinService) Publish(ctx context.Context, id, actor string) (*models.Bulletin, error) {
	return s.transition(ctx, id, ActionPublish, actor, "")
}

// Archive retires a bulletin for good and re-ranks what remains of the cohort.
func (s *BulletinService) Archive(ctx context.Context, id, actor, reason string) (*models.Bulletin, error) {
	bulletin, err := s.transition(ctx, id, ActionArchive, actor, reason)
	if err != nil {
		return nil, err
	}
	s.scheduleRank(ctx, bulletin.Cohort())
	return bulletin, nil
}

func (s *BulletinService) transition(ctx context.Context, id string, action BulletinAction, actor, reason string) (result *models.Bulletin, err error) {
	defer func() { s.metrics.RecordTransition(action, err) }()
	return s.withBulletinLock(ctx, id, func(b *models.Bulletin) error {
		if err := s.states.Apply(b, action, actor, reason); err != nil {
			return err
		}
		if err := s.store.Update(ctx, b); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to %s bulletin", action))
		}
		return nil
	})
}

// UpdateHeader edits appreciation, council decision and attendance counters.
func (s *BulletinService) UpdateHeader(ctx context.Context, id string, req dto.UpdateBulletinRequest) (*models.Bulletin, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulletin payload")
	}
	return s.withBulletinLock(ctx, id, func(b *models.Bulletin) error {
		if err := Guard(b.State, ActionEditHeader); err != nil {
			return err
		}
		if req.GeneralAppreciation != nil {
			b.GeneralAppreciation = req.GeneralAppreciation
		}
		if req.CouncilDecision != nil {
			b.CouncilDecision = req.CouncilDecision
		}
		if req.AttendanceFromRecords {
			b.AttendanceManual = false
		}
		if req.UnjustifiedAbsences != nil {
			b.UnjustifiedAbsences = *req.UnjustifiedAbsences
			b.AttendanceManual = true
		}
		if req.JustifiedAbsences != nil {
			b.JustifiedAbsences = *req.JustifiedAbsences
			b.AttendanceManual = true
		}
		if req.Tardies != nil {
			b.Tardies = *req.Tardies
		}
		if err := s.store.Update(ctx, b); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update bulletin")
		}
		return nil
	})
}

// UpsertLine adds or edits a subject line by hand while the bulletin is editable.
func (s *BulletinService) UpsertLine(ctx context.Context, id string, req dto.UpsertLineRequest) (*models.Bulletin, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid line payload")
	}
	if err := s.checkLineRange(req); err != nil {
		return nil, err
	}

	bulletin, err := s.withBulletinLock(ctx, id, func(b *models.Bulletin) error {
		if err := Guard(b.State, ActionEditLines); err != nil {
			return err
		}
		batch, err := s.loadBatch(ctx, b.BatchID)
		if err != nil {
			return err
		}

		line, exists := b.Line(req.SubjectID)
		if !exists {
			subject, err := s.subjects.FindInCourse(ctx, b.CourseID, req.SubjectID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return appErrors.Clone(appErrors.ErrValidation, "subject is not part of the course")
				}
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
			}
			created, err := models.NewBulletinLine(b.ID, *subject)
			if err != nil {
				return err
			}
			b.Lines = append(b.Lines, created)
			line = &b.Lines[len(b.Lines)-1]
		}

		if req.Scores != nil {
			line.LineScores = req.Scores.ToModel()
		}
		if req.Scores != nil || !exists {
			policy, err := PolicyFor(batch.EducationLevel)
			if err != nil {
				return err
			}
			s.aggregator.Refresh(policy, line)
		}
		if req.SubjectAverage != nil {
			line.SubjectAverage = roundGrade(*req.SubjectAverage)
			line.Incomplete = false
			label := s.aggregator.Appreciation(line.SubjectAverage)
			line.Appreciation = &label
		}
		if req.Appreciation != nil {
			line.Appreciation = req.Appreciation
		}
		if req.Preserved != nil {
			line.Preserved = *req.Preserved
		}

		sortLines(b.Lines)
		b.OverallAverage = s.calculator.OverallAverage(b.Lines)
		if err := s.store.UpdateWithLines(ctx, b); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save bulletin line")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if bulletin.State.Ranked() {
		s.scheduleRank(ctx, bulletin.Cohort())
	}
	return bulletin, nil
}

// RemoveLine drops a subject from an editable bulletin.
func (s *BulletinService) RemoveLine(ctx context.Context, id, subjectID string) (*models.Bulletin, error) {
	bulletin, err := s.withBulletinLock(ctx, id, func(b *models.Bulletin) error {
		if err := Guard(b.State, ActionEditLines); err != nil {
			return err
		}
		kept := b.Lines[:0:0]
		for _, line := range b.Lines {
			if line.SubjectID != subjectID {
				kept = append(kept, line)
			}
		}
		if len(kept) == len(b.Lines) {
			return appErrors.Clone(appErrors.ErrNotFound, "bulletin line not found")
		}
		b.Lines = kept
		b.OverallAverage = s.calculator.OverallAverage(b.Lines)
		if err := s.store.UpdateWithLines(ctx, b); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove bulletin line")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if bulletin.State.Ranked() {
		s.scheduleRank(ctx, bulletin.Cohort())
	}
	return bulletin, nil
}

// Delete removes a draft bulletin.
func (s *BulletinService) Delete(ctx context.Context, id string) (err error) {
	defer func() { s.metrics.RecordTransition(ActionDelete, err) }()
	_, err = s.withBulletinLock(ctx, id, func(b *models.Bulletin) error {
		if err := Guard(b.State, ActionDelete); err != nil {
			return err
		}
		if err := s.store.Delete(ctx, b.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "bulletin not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete bulletin")
		}
		return nil
	})
	return err
}

// Stats summarises a cohort.
func (s *BulletinService) Stats(ctx context.Context, query dto.StatsQuery) (*models.BulletinStats, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "batchId and termId are required")
	}
	key := models.CohortKey{BatchID: query.BatchID, TermID: query.TermID}
	cacheKey := statsCacheKey(key.String())

	var cached models.BulletinStats
	if s.cache.Get(ctx, cacheKey, &cached) {
		return &cached, nil
	}
	scale := s.aggregator.MaxGrade() / 20
	stats, err := s.store.Stats(ctx, key, topStudentThreshold*scale, lowStudentThreshold*scale, leaderboardSize)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute bulletin stats")
	}
	stats.AverageOverall = roundGrade(stats.AverageOverall)
	for i := range stats.SubjectAverages {
		stats.SubjectAverages[i].Average = roundGrade(stats.SubjectAverages[i].Average)
	}
	s.cache.Set(ctx, cacheKey, stats)
	return stats, nil
}

// RankCohort runs one ordered ranking pass over every bulletin sharing key and persists it.
func (s *BulletinService) RankCohort(ctx context.Context, key models.CohortKey) ([]models.RankAssignment, error) {
	unlock, err := lockWithin(ctx, s.locker, cohortLockKey(key.String()), cohortLockWait)
	if err != nil {
		return nil, err
	}
	defer unlock()

	start := time.Now()
	bulletins, err := s.store.ListByCohort(ctx, key)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cohort")
	}
	assignments := s.calculator.Rank(bulletins)
	if err := s.store.SaveRanking(ctx, key, assignments); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save ranking")
	}
	s.metrics.ObserveRankingPass(time.Since(start))

	keys := make([]string, 0, len(bulletins))
	for _, b := range bulletins {
		keys = append(keys, bulletinCacheKey(b.ID))
	}
	s.cache.Delete(ctx, keys...)
	s.cache.Invalidate(ctx, statsCacheKey(key.String()))

	s.logger.Debug("cohort ranked", zap.String("cohort", key.String()), zap.Int("ranked", len(assignments)))
	return assignments, nil
}

func (s *BulletinService) scheduleRank(ctx context.Context, key models.CohortKey) {
	if s.scheduler != nil {
		s.scheduler.Schedule(key)
		return
	}
	if _, err := s.RankCohort(ctx, key); err != nil {
		s.logger.Warn("inline re-rank failed", zap.String("cohort", key.String()), zap.Error(err))
	}
}

// withBulletinLock loads id under its write lock, runs fn and refreshes caches when fn succeeds.
func (s *BulletinService) withBulletinLock(ctx context.Context, id string, fn func(b *models.Bulletin) error) (*models.Bulletin, error) {
	unlock, err := s.locker.Lock(ctx, bulletinLockKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	bulletin, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(bulletin); err != nil {
		return nil, err
	}
	s.cache.Delete(ctx, bulletinCacheKey(id))
	s.cache.Invalidate(ctx, statsCacheKey(bulletin.Cohort().String()))
	return bulletin, nil
}

func (s *BulletinService) load(ctx context.Context, id string) (*models.Bulletin, error) {
	bulletin, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "bulletin not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bulletin")
	}
	return bulletin, nil
}

func (s *BulletinService) loadBatch(ctx context.Context, id string) (*models.Batch, error) {
	batch, err := s.batches.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return batch, nil
}

func (s *BulletinService) courseSubjects(ctx context.Context, courseID string) ([]models.Subject, error) {
	subjects, err := s.subjects.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course subjects")
	}
	return subjects, nil
}

func (s *BulletinService) checkLineRange(req dto.UpsertLineRequest) error {
	if req.SubjectAverage != nil && !s.aggregator.InRange(*req.SubjectAverage) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("subject average must be within [0, %.2f]", s.aggregator.MaxGrade()))
	}
	if req.Scores == nil {
		return nil
	}
	scores := req.Scores.ToModel()
	for _, kind := range []models.AssessmentKind{
		models.AssessmentControl, models.AssessmentComposition, models.AssessmentHomework, models.AssessmentOral, models.AssessmentPractical,
	} {
		if v := scores.Get(kind); v != nil && !s.aggregator.InRange(*v) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s score must be within [0, %.2f]", kind, s.aggregator.MaxGrade()))
		}
	}
	return nil
}

func sortLines(lines []models.BulletinLine) {
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].SubjectName != lines[j].SubjectName {
			return lines[i].SubjectName < lines[j].SubjectName
		}
		return lines[i].SubjectID < lines[j].SubjectID
	})
}

func validState(state models.BulletinState) bool {
	switch state {
	case models.BulletinStateDraft, models.BulletinStateCalculated, models.BulletinStateValidated,
		models.BulletinStatePublished, models.BulletinStateArchived:
		return true
	}
	return false
}
