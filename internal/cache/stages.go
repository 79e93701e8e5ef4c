package cache

import (
	"context"
	"time"

	"github.com/straye-as/funnel-api/internal/analytics"
	"github.com/straye-as/funnel-api/internal/domain"
	"go.uber.org/zap"
)

// StageRegistry caches the stage list, which changes far less often than it is read
type StageRegistry struct {
	next   analytics.StageRegistry
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

func NewStageRegistry(next analytics.StageRegistry, cache Cache, ttl time.Duration, logger *zap.Logger) *StageRegistry {
	return &StageRegistry{next: next, cache: cache, ttl: ttl, logger: logger}
}

func stagesKey(funnelType *domain.FunnelType) string {
	if funnelType == nil {
		return "stages:all"
	}
	return "stages:" + string(*funnelType)
}

// ListStages serves from cache and falls through to the database on a miss or cache error
func (r *StageRegistry) ListStages(ctx context.Context, funnelType *domain.FunnelType) ([]domain.Stage, error) {
	key := stagesKey(funnelType)

	var stages []domain.Stage
	found, err := r.cache.Get(ctx, key, &stages)
	if err != nil {
		r.logger.Warn("stage cache read failed", zap.String("key", key), zap.Error(err))
	}
	if found && err == nil {
		return stages, nil
	}

	stages, err = r.next.ListStages(ctx, funnelType)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Set(ctx, key, stages, r.ttl); err != nil {
		r.logger.Warn("stage cache write failed", zap.String("key", key), zap.Error(err))
	}
	return stages, nil
}

// Invalidate drops every cached stage list. Called after stage mutations.
func (r *StageRegistry) Invalidate(ctx context.Context) error {
	return r.cache.Delete(ctx,
		stagesKey(nil),
		stagesKey(ptr(domain.FunnelTypeFollowUp)),
		stagesKey(ptr(domain.FunnelTypeBroadcast)),
	)
}

func ptr[T any](v T) *T {
	return &v
}
