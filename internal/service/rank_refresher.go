package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-bulletin-api/internal/models"
	"github.com/noah-isme/sma-bulletin-api/pkg/jobs"
)

const rankJobType = "cohort.rank"

type cohortRanker interface {
	RankCohort(ctx context.Context, key models.CohortKey) ([]models.RankAssignment, error)
}

// RankRefresherConfig tunes the background re-rank queue.
type RankRefresherConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// RankRefresher re-ranks cohorts in the background after edits that move averages.
// Requests for a cohort that is already waiting collapse into one pass.
type RankRefresher struct {
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewRankRefresher builds the refresher around ranker.
func NewRankRefresher(ranker cohortRanker, cfg RankRefresherConfig, metrics *MetricsService, logger *zap.Logger) *RankRefresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &RankRefresher{metrics: metrics, logger: logger}
	handler := func(ctx context.Context, job jobs.Job) error {
		if job.Attempt == 0 {
			r.metrics.RankJobScheduled(-1)
		}
		key, ok := job.Payload.(models.CohortKey)
		if !ok {
			return fmt.Errorf("unexpected rank payload %T", job.Payload)
		}
		_, err := ranker.RankCohort(ctx, key)
		return err
	}
	r.queue = jobs.NewQueue("cohort-rank", handler, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return r
}

// Start launches the workers.
func (r *RankRefresher) Start(ctx context.Context) {
	r.queue.Start(ctx)
}

// Stop drains the workers.
func (r *RankRefresher) Stop() {
	r.queue.Stop()
}

// Schedule queues a ranking pass for key.
func (r *RankRefresher) Schedule(key models.CohortKey) {
	queued, err := r.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Key:     key.String(),
		Type:    rankJobType,
		Payload: key,
	})
	if err != nil {
		r.logger.Warn("schedule cohort rank", zap.String("cohort", key.String()), zap.Error(err))
		return
	}
	if queued {
		r.metrics.RankJobScheduled(1)
	}
}
