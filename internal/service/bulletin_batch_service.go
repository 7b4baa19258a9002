package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-bulletin-api/internal/dto"
	"github.com/noah-isme/sma-bulletin-api/internal/models"
	appErrors "github.com/noah-isme/sma-bulletin-api/pkg/errors"
)

// PlanAction is the per-student decision of a batch run.
type PlanAction string

// Batch decisions.
const (
	PlanCreate PlanAction = "create"
	PlanUpdate PlanAction = "update"
	PlanSkip   PlanAction = "skip"
)

// PlanDecision pairs a student with the action a batch run takes for them.
type PlanDecision struct {
	StudentID string
	Action    PlanAction
	Existing  *models.Bulletin
}

// BatchPlan is the ordered set of decisions for one roster.
type BatchPlan struct {
	Decisions []PlanDecision
	Existing  int
	ToCreate  int
	ToUpdate  int
	ToSkip    int
}

// Plan decides create, update or skip for every distinct student of roster.
// Existing bulletins are only regenerated when regenerate is set and they can still be recalculated;
// validated and published bulletins are skipped.
func Plan(roster []string, existing []models.Bulletin, regenerate bool) BatchPlan {
	byStudent := make(map[string]*models.Bulletin, len(existing))
	for i := range existing {
		if existing[i].State == models.BulletinStateArchived {
			continue
		}
		byStudent[existing[i].StudentID] = &existing[i]
	}

	plan := BatchPlan{Decisions: make([]PlanDecision, 0, len(roster))}
	seen := make(map[string]struct{}, len(roster))
	for _, studentID := range roster {
		if studentID == "" {
			continue
		}
		if _, dup := seen[studentID]; dup {
			continue
		}
		seen[studentID] = struct{}{}

		decision := PlanDecision{StudentID: studentID, Action: PlanCreate}
		if current, ok := byStudent[studentID]; ok {
			plan.Existing++
			decision.Existing = current
			decision.Action = PlanSkip
			if regenerate && Guard(current.State, ActionCalculate) == nil {
				decision.Action = PlanUpdate
			}
		}
		switch decision.Action {
		case PlanCreate:
			plan.ToCreate++
		case PlanUpdate:
			plan.ToUpdate++
		default:
			plan.ToSkip++
		}
		plan.Decisions = append(plan.Decisions, decision)
	}
	return plan
}

// BatchGenerationService generates the bulletins of a whole class for one term.
type BatchGenerationService struct {
	bulletins   *BulletinService
	concurrency int
	timeout     time.Duration
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewBatchGenerationService constructs the batch generator.
func NewBatchGenerationService(bulletins *BulletinService, concurrency int, timeout time.Duration, validate *validator.Validate, logger *zap.Logger) *BatchGenerationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &BatchGenerationService{
		bulletins:   bulletins,
		concurrency: concurrency,
		timeout:     timeout,
		validator:   validate,
		logger:      logger,
	}
}

type batchInput struct {
	batch    *models.Batch
	roster   []string
	existing []models.Bulletin
}

func (s *BatchGenerationService) load(ctx context.Context, req dto.GenerateBatchRequest) (*batchInput, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "batchId and termId are required")
	}
	batch, err := s.bulletins.loadBatch(ctx, req.BatchID)
	if err != nil {
		return nil, err
	}
	if _, err := PolicyFor(batch.EducationLevel); err != nil {
		return nil, err
	}
	roster, err := s.bulletins.roster.StudentIDs(ctx, req.BatchID, req.TermID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}
	existing, err := s.bulletins.store.ListByCohort(ctx, models.CohortKey{BatchID: req.BatchID, TermID: req.TermID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing bulletins")
	}
	return &batchInput{batch: batch, roster: roster, existing: existing}, nil
}

// Preview returns the decision counts a Generate call with the same request would act on. Nothing is written.
func (s *BatchGenerationService) Preview(ctx context.Context, req dto.GenerateBatchRequest) (*dto.BatchPreview, error) {
	in, err := s.load(ctx, req)
	if err != nil {
		return nil, err
	}
	plan := Plan(in.roster, in.existing, req.RegenerateExisting)
	return &dto.BatchPreview{
		BatchID:       req.BatchID,
		TermID:        req.TermID,
		TotalStudents: len(plan.Decisions),
		Existing:      plan.Existing,
		ToCreate:      plan.ToCreate,
		ToUpdate:      plan.ToUpdate,
		ToSkip:        plan.ToSkip,
	}, nil
}

type batchCollector struct {
	mu      sync.Mutex
	summary *dto.BatchSummary
	metrics *MetricsService
}

func (c *batchCollector) done(action PlanAction, bulletin *models.Bulletin) {
	c.metrics.RecordBatchStudent(action, nil)
	c.mu.Lock()
	defer c.mu.Unlock()
	switch action {
	case PlanCreate:
		c.summary.CreatedCount++
	case PlanUpdate:
		c.summary.UpdatedCount++
	}
	if bulletin != nil {
		c.summary.Bulletins = append(c.summary.Bulletins, *bulletin)
	}
}

func (c *batchCollector) failed(action PlanAction, studentID string, err error) {
	c.metrics.RecordBatchStudent(action, err)
	appErr := appErrors.FromError(err)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary.ErrorCount++
	c.summary.Errors = append(c.summary.Errors, dto.BatchError{StudentID: studentID, Code: appErr.Code, Message: appErr.Message})
}

func (c *batchCollector) skipped() {
	c.metrics.RecordBatchStudent(PlanSkip, nil)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary.SkippedCount++
}

// pending records a student that was never submitted because the run timed out.
func (c *batchCollector) pending(studentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary.Pending = append(c.summary.Pending, studentID)
	c.summary.PendingCount = len(c.summary.Pending)
}

// Generate executes the plan for a class and term. Per-student failures are collected and never abort the run.
// Once every submitted student has finished, the cohort is ranked in a single pass.
func (s *BatchGenerationService) Generate(ctx context.Context, req dto.GenerateBatchRequest) (*dto.BatchSummary, error) {
	start := time.Now()
	defer func() { s.bulletins.metrics.ObserveBatch(time.Since(start)) }()

	in, err := s.load(ctx, req)
	if err != nil {
		return nil, err
	}
	summary := &dto.BatchSummary{
		BatchID:   req.BatchID,
		TermID:    req.TermID,
		Bulletins: []models.Bulletin{},
		Errors:    []dto.BatchError{},
	}
	plan := Plan(in.roster, in.existing, req.RegenerateExisting)
	if len(plan.Decisions) == 0 {
		return summary, nil
	}

	subjects, err := s.bulletins.courseSubjects(ctx, in.batch.CourseID)
	if err != nil {
		return nil, err
	}

	submitCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		submitCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	collector := &batchCollector{summary: summary, metrics: s.bulletins.metrics}
	group := new(errgroup.Group)
	group.SetLimit(s.concurrency)
	for i, decision := range plan.Decisions {
		if decision.Action == PlanSkip {
			collector.skipped()
			continue
		}
		if submitCtx.Err() != nil {
			for _, rest := range plan.Decisions[i:] {
				if rest.Action == PlanSkip {
					collector.skipped()
					continue
				}
				collector.pending(rest.StudentID)
			}
			break
		}
		decision := decision
		group.Go(func() error {
			bulletin, err := s.generateOne(ctx, decision, in.batch, req, subjects)
			if err != nil {
				s.logger.Warn("batch student failed",
					zap.String("batch_id", req.BatchID),
					zap.String("student_id", decision.StudentID),
					zap.Error(err))
				collector.failed(decision.Action, decision.StudentID, err)
				return nil
			}
			collector.done(decision.Action, bulletin)
			return nil
		})
	}
	_ = group.Wait()

	key := models.CohortKey{BatchID: req.BatchID, TermID: req.TermID}
	assignments, err := s.bulletins.RankCohort(ctx, key)
	ranking := &dto.RankingPassResult{}
	if err != nil {
		ranking.Error = appErrors.FromError(err).Message
		s.logger.Error("batch ranking pass failed", zap.String("cohort", key.String()), zap.Error(err))
	} else if len(assignments) > 0 {
		ranking.ClassSize = assignments[0].ClassSize
		ranking.ClassAverage = assignments[0].ClassAverage
		s.bulletins.calculator.Apply(summary.Bulletins, assignments)
	}
	summary.Ranking = ranking

	sort.Slice(summary.Bulletins, func(i, j int) bool {
		return summary.Bulletins[i].StudentID < summary.Bulletins[j].StudentID
	})
	sort.Slice(summary.Errors, func(i, j int) bool {
		return summary.Errors[i].StudentID < summary.Errors[j].StudentID
	})

	s.logger.Info("batch generation finished",
		zap.String("cohort", key.String()),
		zap.Int("created", summary.CreatedCount),
		zap.Int("updated", summary.UpdatedCount),
		zap.Int("skipped", summary.SkippedCount),
		zap.Int("errors", summary.ErrorCount),
		zap.Int("pending", summary.PendingCount),
		zap.Duration("duration", time.Since(start)))
	return summary, nil
}

// generateOne creates or refreshes one student's bulletin and runs calculate on it, optionally validating it.
// A draft created here is removed again when its calculation fails so the next run plans it as a create.
func (s *BatchGenerationService) generateOne(ctx context.Context, decision PlanDecision, batch *models.Batch, req dto.GenerateBatchRequest, subjects []models.Subject) (*models.Bulletin, error) {
	svc := s.bulletins
	bulletinID := ""
	if decision.Action == PlanCreate {
		unlock, err := svc.locker.Lock(ctx, studentTermLockKey(decision.StudentID, req.TermID))
		if err != nil {
			return nil, err
		}
		created, err := svc.createDraft(ctx, decision.StudentID, batch, req.TermID)
		unlock()
		if err != nil {
			return nil, err
		}
		bulletinID = created.ID
	} else {
		bulletinID = decision.Existing.ID
	}

	bulletin, err := svc.withBulletinLock(ctx, bulletinID, func(b *models.Bulletin) error {
		err := s.calculateAndValidate(ctx, b, batch, subjects, req)
		if err != nil && decision.Action == PlanCreate {
			s.discardDraft(ctx, b)
		}
		return err
	})
	if err != nil {
		var appErr *appErrors.Error
		if !errors.As(err, &appErr) {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate bulletin")
		}
		return nil, err
	}
	return bulletin, nil
}

func (s *BatchGenerationService) calculateAndValidate(ctx context.Context, b *models.Bulletin, batch *models.Batch, subjects []models.Subject, req dto.GenerateBatchRequest) error {
	svc := s.bulletins
	if err := svc.calculate(ctx, b, batch, subjects); err != nil {
		return err
	}
	if !req.AutoValidate {
		return nil
	}
	err := svc.states.Apply(b, ActionValidate, req.Actor, "")
	if err == nil {
		err = svc.store.Update(ctx, b)
	}
	svc.metrics.RecordTransition(ActionValidate, err)
	return err
}

func (s *BatchGenerationService) discardDraft(ctx context.Context, b *models.Bulletin) {
	ctx = context.WithoutCancel(ctx)
	if err := s.bulletins.store.Delete(ctx, b.ID); err != nil {
		s.logger.Error("failed to discard draft after batch failure",
			zap.String("bulletin_id", b.ID),
			zap.String("student_id", b.StudentID),
			zap.Error(err))
		return
	}
	s.bulletins.cache.Invalidate(ctx, statsCacheKey(b.Cohort().String()))
}
