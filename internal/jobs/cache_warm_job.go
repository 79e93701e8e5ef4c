package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CacheWarmJobName is the scheduler name of the summary warm-up job
const CacheWarmJobName = "analytics_cache_warm"

// BrandLister yields the brands worth warming
type BrandLister interface {
	ListActiveIDs(ctx context.Context) ([]uuid.UUID, error)
}

// SummaryWarmer recomputes and stores the default-window summary for a brand
type SummaryWarmer interface {
	WarmSummary(ctx context.Context, brandID uuid.UUID) error
}

// CacheWarmJob keeps the default dashboard summary of every active brand in the
// cache so the first request after expiry does not pay for the aggregation.
type CacheWarmJob struct {
	brands  BrandLister
	warmer  SummaryWarmer
	logger  *zap.Logger
	timeout time.Duration
}

func NewCacheWarmJob(brands BrandLister, warmer SummaryWarmer, logger *zap.Logger, timeout time.Duration) *CacheWarmJob {
	return &CacheWarmJob{
		brands:  brands,
		warmer:  warmer,
		logger:  logger,
		timeout: timeout,
	}
}

// Run warms every active brand. One brand failing does not stop the others; the
// whole run stops at the timeout.
func (j *CacheWarmJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	j.run(ctx)
}

func (j *CacheWarmJob) run(ctx context.Context) (warmed, failed int) {
	start := time.Now()

	ids, err := j.brands.ListActiveIDs(ctx)
	if err != nil {
		j.logger.Error("cache warm: failed to list brands", zap.Error(err))
		return 0, 0
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			j.logger.Warn("cache warm: stopped before all brands were warmed",
				zap.Int("remaining", len(ids)-warmed-failed),
				zap.Error(ctx.Err()))
			break
		}
		if err := j.warmer.WarmSummary(ctx, id); err != nil {
			failed++
			j.logger.Warn("cache warm: brand failed", zap.String("brand_id", id.String()), zap.Error(err))
			continue
		}
		warmed++
	}

	j.logger.Info("analytics cache warm completed",
		zap.Int("brands_warmed", warmed),
		zap.Int("brands_failed", failed),
		zap.Duration("duration", time.Since(start)))
	return warmed, failed
}

// RegisterCacheWarmJob schedules the warm-up. With warmOnStart the first run
// happens in the background right away.
func RegisterCacheWarmJob(scheduler *Scheduler, brands BrandLister, warmer SummaryWarmer, logger *zap.Logger, cronExpr string, timeout time.Duration, warmOnStart bool) error {
	job := NewCacheWarmJob(brands, warmer, logger, timeout)
	if warmOnStart {
		go job.Run()
	}
	return scheduler.AddJob(CacheWarmJobName, cronExpr, job.Run)
}
