package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/funnel-api/internal/analytics"
	"github.com/straye-as/funnel-api/internal/auth"
	"github.com/straye-as/funnel-api/internal/cache"
	"github.com/straye-as/funnel-api/internal/config"
	"github.com/straye-as/funnel-api/internal/logger"
	"github.com/straye-as/funnel-api/internal/repository"
	"go.uber.org/zap"
)

// AnalyticsQuery carries the raw request parameters of an analytics call
type AnalyticsQuery struct {
	BrandID           *uuid.UUID
	FunnelID          *uuid.UUID
	Range             string
	From              string
	To                string
	IncludeInProgress bool
}

// preset reports the range preset when no explicit bounds are given
func (q AnalyticsQuery) preset(defaultRange string) (string, bool) {
	if q.From != "" || q.To != "" {
		return "", false
	}
	if q.Range == "" {
		return defaultRange, true
	}
	return q.Range, true
}

// StoredStatsFetcher reads the figures produced by the legacy database functions
type StoredStatsFetcher interface {
	Fetch(ctx context.Context, scope analytics.Scope, window analytics.Window) (analytics.StoredStats, error)
}

// AnalyticsService validates analytics requests, resolves their window and scope,
// and serves preset summaries from the cache
type AnalyticsService struct {
	engine     *analytics.Engine
	brandRepo  *repository.BrandRepository
	funnelRepo *repository.FunnelRepository
	stored     StoredStatsFetcher
	cache      cache.Cache
	cfg        *config.AnalyticsConfig
	summaryTTL time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

func NewAnalyticsService(
	engine *analytics.Engine,
	brandRepo *repository.BrandRepository,
	funnelRepo *repository.FunnelRepository,
	stored StoredStatsFetcher,
	summaryCache cache.Cache,
	cfg *config.AnalyticsConfig,
	summaryTTL time.Duration,
	logger *zap.Logger,
) *AnalyticsService {
	if summaryCache == nil {
		summaryCache = cache.NoopCache{}
	}
	return &AnalyticsService{
		engine:     engine,
		brandRepo:  brandRepo,
		funnelRepo: funnelRepo,
		stored:     stored,
		cache:      summaryCache,
		cfg:        cfg,
		summaryTTL: summaryTTL,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the clock used to resolve windows. Used by tests.
func (s *AnalyticsService) WithClock(now func() time.Time) *AnalyticsService {
	cp := *s
	cp.now = now
	return &cp
}

// resolve turns the query into an engine request. Unknown brands and funnels are
// input errors, as is a funnel that belongs to another brand.
func (s *AnalyticsService) resolve(ctx context.Context, q AnalyticsQuery) (analytics.Request, error) {
	if q.BrandID == nil {
		q.BrandID = auth.GetEffectiveBrandFilter(ctx)
	}
	if q.BrandID != nil {
		if _, err := s.brandRepo.GetByID(ctx, *q.BrandID); err != nil {
			return analytics.Request{}, notFound(err, ErrBrandNotFound, "failed to get brand")
		}
	}
	if q.FunnelID != nil {
		funnel, err := s.funnelRepo.GetByID(ctx, *q.FunnelID)
		if err != nil {
			return analytics.Request{}, notFound(err, ErrFunnelNotFound, "failed to get funnel")
		}
		if q.BrandID != nil && funnel.BrandID != *q.BrandID {
			return analytics.Request{}, fmt.Errorf("%w: funnel does not belong to brand", ErrInvalidInput)
		}
	}

	window, err := analytics.ParseWindow(q.Range, q.From, q.To, s.now(), s.cfg.DefaultRange)
	if err != nil {
		return analytics.Request{}, err
	}
	return analytics.Request{
		Scope:             analytics.Scope{BrandID: q.BrandID, FunnelID: q.FunnelID},
		Window:            window,
		IncludeInProgress: q.IncludeInProgress,
	}, nil
}

func (s *AnalyticsService) scopedLogger(req analytics.Request) *zap.Logger {
	return logger.WithWindow(s.logger, idString(req.BrandID), idString(req.FunnelID), req.Window.From, req.Window.To)
}

func idString(id *uuid.UUID) string {
	if id == nil {
		return "all"
	}
	return id.String()
}

// Summary returns every analytics product for one window. Preset windows are
// cached; explicit bounds always recompute.
func (s *AnalyticsService) Summary(ctx context.Context, q AnalyticsQuery) (*analytics.Summary, error) {
	req, err := s.resolve(ctx, q)
	if err != nil {
		return nil, err
	}
	log := s.scopedLogger(req)

	preset, cacheable := q.preset(s.cfg.DefaultRange)
	key := cache.SummaryKey(preset, req.BrandID, req.FunnelID, req.IncludeInProgress)
	if cacheable {
		var cached analytics.Summary
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			log.Warn("summary cache read failed", zap.Error(err))
		} else if hit {
			log.Debug("summary served from cache", zap.String("key", key))
			return &cached, nil
		}
	}

	start := time.Now()
	summary, err := s.engine.Summarize(ctx, req)
	if err != nil {
		log.Error("analytics summary failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, err
	}
	log.Info("analytics summary computed",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("total_leads", summary.Leakage.TotalLeads),
		zap.Int("bottlenecks", len(summary.Bottlenecks)),
	)

	if cacheable {
		if err := s.cache.Set(ctx, key, summary, s.summaryTTL); err != nil {
			log.Warn("summary cache write failed", zap.Error(err))
		}
	}
	return summary, nil
}

func (s *AnalyticsService) Leakage(ctx context.Context, q AnalyticsQuery) (*analytics.LeakageStats, error) {
	req, err := s.resolve(ctx, q)
	if err != nil {
		return nil, err
	}
	stats, err := s.engine.Leakage(ctx, req)
	if err != nil {
		s.scopedLogger(req).Error("leakage failed", zap.Error(err))
		return nil, err
	}
	return &stats, nil
}

func (s *AnalyticsService) Velocity(ctx context.Context, q AnalyticsQuery) ([]analytics.StageVelocity, error) {
	req, err := s.resolve(ctx, q)
	if err != nil {
		return nil, err
	}
	velocity, err := s.engine.Velocity(ctx, req)
	if err != nil {
		s.scopedLogger(req).Error("velocity failed", zap.Error(err))
		return nil, err
	}
	return velocity, nil
}

func (s *AnalyticsService) Bottlenecks(ctx context.Context, q AnalyticsQuery) ([]analytics.Bottleneck, error) {
	req, err := s.resolve(ctx, q)
	if err != nil {
		return nil, err
	}
	bottlenecks, err := s.engine.Bottlenecks(ctx, req)
	if err != nil {
		s.scopedLogger(req).Error("bottleneck detection failed", zap.Error(err))
		return nil, err
	}
	return bottlenecks, nil
}

func (s *AnalyticsService) Heatmap(ctx context.Context, q AnalyticsQuery) (*analytics.Heatmap, error) {
	req, err := s.resolve(ctx, q)
	if err != nil {
		return nil, err
	}
	heatmap, err := s.engine.Heatmap(ctx, req)
	if err != nil {
		s.scopedLogger(req).Error("heatmap failed", zap.Error(err))
		return nil, err
	}
	return &heatmap, nil
}

// Reconcile compares engine figures against the stored database functions for the
// same window. Admin only.
func (s *AnalyticsService) Reconcile(ctx context.Context, actor *auth.Principal, q AnalyticsQuery) (*analytics.ReconciliationReport, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if s.stored == nil {
		return nil, &analytics.AggregationError{Source: "stored_functions", Err: fmt.Errorf("stored functions not configured")}
	}
	req, err := s.resolve(ctx, q)
	if err != nil {
		return nil, err
	}
	log := s.scopedLogger(req)

	summary, err := s.engine.Summarize(ctx, req)
	if err != nil {
		log.Error("reconciliation summary failed", zap.Error(err))
		return nil, err
	}
	stored, err := s.stored.Fetch(ctx, req.Scope, req.Window)
	if err != nil {
		log.Error("stored stats query failed", zap.Error(err))
		return nil, &analytics.AggregationError{Source: "stored_functions", Timeout: errors.Is(err, context.DeadlineExceeded), Err: err}
	}

	report := analytics.Reconcile(req.Window, summary.Leakage, summary.Velocity, stored, s.cfg.ReconcileTolerance)
	if !report.Consistent() {
		log.Warn("analytics reconciliation found discrepancies",
			zap.Int("checked", report.Checked),
			zap.Int("discrepancies", len(report.Discrepancies)),
		)
	}
	return &report, nil
}

// WarmSummary recomputes and caches the default-window summary for one brand
func (s *AnalyticsService) WarmSummary(ctx context.Context, brandID uuid.UUID) error {
	req, err := s.resolve(ctx, AnalyticsQuery{BrandID: &brandID})
	if err != nil {
		return err
	}
	summary, err := s.engine.Summarize(ctx, req)
	if err != nil {
		return err
	}
	key := cache.SummaryKey(s.cfg.DefaultRange, req.BrandID, nil, false)
	return s.cache.Set(ctx, key, summary, s.summaryTTL)
}
