package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/funnel-api/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Scope narrows a query to one brand and optionally one funnel. Nil means all.
type Scope struct {
	BrandID  *uuid.UUID
	FunnelID *uuid.UUID
}

// TransitionQuery selects ledger rows with moved_at inside [From, To]
type TransitionQuery struct {
	Scope
	From time.Time
	To   time.Time
}

// LeadQuery selects leads created inside [CreatedFrom, CreatedTo]
type LeadQuery struct {
	Scope
	CreatedFrom time.Time
	CreatedTo   time.Time
}

// ActivityQuery selects lead activities that occurred inside [From, To]
type ActivityQuery struct {
	Scope
	From time.Time
	To   time.Time
}

// TransitionSource reads the stage ledger, ordered by lead then moved_at
type TransitionSource interface {
	QueryTransitions(ctx context.Context, q TransitionQuery) ([]domain.LeadStageHistory, error)
}

// LeadSource reads lead snapshots for totals and status counts
type LeadSource interface {
	QueryLeads(ctx context.Context, q LeadQuery) ([]domain.Lead, error)
}

// StageRegistry lists stages ordered by funnel type then stage number.
// A nil funnelType lists both pipelines.
type StageRegistry interface {
	ListStages(ctx context.Context, funnelType *domain.FunnelType) ([]domain.Stage, error)
}

// ActivitySource reads activity timestamps for the heatmap
type ActivitySource interface {
	QueryActivityTimes(ctx context.Context, q ActivityQuery) ([]time.Time, error)
}

// EngineConfig tunes the engine
type EngineConfig struct {
	Timeout       time.Duration
	Thresholds    Thresholds
	Heatmap       HeatmapOptions
	HeatmapSource HeatmapSource
}

// DefaultTimeout bounds one aggregation when the config leaves it unset
const DefaultTimeout = 10 * time.Second

// Request is one aggregation call
type Request struct {
	Scope
	Window            Window
	IncludeInProgress bool
}

// Summary is the AnalyticsSummary handed to presentation code
type Summary struct {
	BrandID     *uuid.UUID      `json:"brand_id,omitempty"`
	FunnelID    *uuid.UUID      `json:"funnel_id,omitempty"`
	Window      Window          `json:"window"`
	GeneratedAt time.Time       `json:"generated_at"`
	Leakage     LeakageStats    `json:"leakage"`
	Velocity    []StageVelocity `json:"velocity"`
	Heatmap     Heatmap         `json:"heatmap"`
	Bottlenecks []Bottleneck    `json:"bottlenecks"`
}

// Engine fetches a ledger snapshot and derives the summary products from it.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	transitions TransitionSource
	leads       LeadSource
	stages      StageRegistry
	activities  ActivitySource
	cfg         EngineConfig
	logger      *zap.Logger
	now         func() time.Time
}

// NewEngine wires the engine to its sources. activities may be nil when the heatmap
// is built from stage entries.
func NewEngine(transitions TransitionSource, leads LeadSource, stages StageRegistry, activities ActivitySource, cfg EngineConfig, logger *zap.Logger) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HeatmapSource == "" {
		cfg.HeatmapSource = SourceStageEntries
	}
	if cfg.Heatmap.Policy == "" {
		cfg.Heatmap.Policy = PolicyTertile
	}
	return &Engine{
		transitions: transitions,
		leads:       leads,
		stages:      stages,
		activities:  activities,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock replaces the engine clock. Used by tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	cp := *e
	cp.now = now
	return &cp
}

type part uint8

const (
	partTransitions part = 1 << iota
	partLeads
	partStages
	partActivities
)

type snapshot struct {
	transitions []domain.LeadStageHistory
	leads       []domain.Lead
	stages      []domain.Stage
	activities  []time.Time
}

// Summarize computes every data product from one snapshot
func (e *Engine) Summarize(ctx context.Context, req Request) (*Summary, error) {
	need := partTransitions | partLeads | partStages
	if e.cfg.HeatmapSource == SourceActivities {
		need |= partActivities
	}
	snap, err := e.fetch(ctx, req, need)
	if err != nil {
		return nil, err
	}

	velocity := ComputeVelocity(snap.stages, snap.transitions, req.Window, VelocityOptions{IncludeInProgress: req.IncludeInProgress})
	return &Summary{
		BrandID:     req.BrandID,
		FunnelID:    req.FunnelID,
		Window:      req.Window,
		GeneratedAt: e.now().UTC(),
		Leakage:     ComputeLeakage(snap.leads, snap.transitions, req.Window),
		Velocity:    velocity,
		Heatmap:     BuildHeatmap(e.heatmapTimes(snap), req.Window, e.cfg.Heatmap),
		Bottlenecks: DetectBottlenecks(velocity, e.cfg.Thresholds),
	}, nil
}

// Leakage computes only the leakage product
func (e *Engine) Leakage(ctx context.Context, req Request) (LeakageStats, error) {
	snap, err := e.fetch(ctx, req, partTransitions|partLeads)
	if err != nil {
		return LeakageStats{}, err
	}
	return ComputeLeakage(snap.leads, snap.transitions, req.Window), nil
}

// Velocity computes only the per-stage velocity records
func (e *Engine) Velocity(ctx context.Context, req Request) ([]StageVelocity, error) {
	snap, err := e.fetch(ctx, req, partTransitions|partStages)
	if err != nil {
		return nil, err
	}
	return ComputeVelocity(snap.stages, snap.transitions, req.Window, VelocityOptions{IncludeInProgress: req.IncludeInProgress}), nil
}

// Bottlenecks computes velocity and classifies it
func (e *Engine) Bottlenecks(ctx context.Context, req Request) ([]Bottleneck, error) {
	velocity, err := e.Velocity(ctx, req)
	if err != nil {
		return nil, err
	}
	return DetectBottlenecks(velocity, e.cfg.Thresholds), nil
}

// Heatmap computes only the activity grid
func (e *Engine) Heatmap(ctx context.Context, req Request) (Heatmap, error) {
	need := partTransitions
	if e.cfg.HeatmapSource == SourceActivities {
		need = partActivities
	}
	snap, err := e.fetch(ctx, req, need)
	if err != nil {
		return Heatmap{}, err
	}
	return BuildHeatmap(e.heatmapTimes(snap), req.Window, e.cfg.Heatmap), nil
}

func (e *Engine) heatmapTimes(snap *snapshot) []time.Time {
	if e.cfg.HeatmapSource == SourceActivities {
		return snap.activities
	}
	times := make([]time.Time, 0, len(snap.transitions))
	for _, t := range snap.transitions {
		times = append(times, t.MovedAt)
	}
	return times
}

// fetch runs the needed sub-queries concurrently, all bounded by the same window and
// deadline. The first failure cancels the rest and fails the whole call.
func (e *Engine) fetch(ctx context.Context, req Request, need part) (*snapshot, error) {
	if err := req.Window.Validate(e.now()); err != nil {
		return nil, err
	}
	if need&partActivities != 0 && e.activities == nil {
		return nil, &AggregationError{Source: "activities", Err: errors.New("activity source not configured")}
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	start := time.Now()
	snap := &snapshot{}
	g, gctx := errgroup.WithContext(ctx)

	if need&partTransitions != 0 {
		g.Go(func() error {
			rows, err := e.transitions.QueryTransitions(gctx, TransitionQuery{Scope: req.Scope, From: req.Window.From, To: req.Window.To})
			if err != nil {
				return &AggregationError{Source: "transitions", Err: err}
			}
			snap.transitions = rows
			return nil
		})
	}
	if need&partLeads != 0 {
		g.Go(func() error {
			rows, err := e.leads.QueryLeads(gctx, LeadQuery{Scope: req.Scope, CreatedFrom: req.Window.From, CreatedTo: req.Window.To})
			if err != nil {
				return &AggregationError{Source: "leads", Err: err}
			}
			snap.leads = rows
			return nil
		})
	}
	if need&partStages != 0 {
		g.Go(func() error {
			rows, err := e.stages.ListStages(gctx, nil)
			if err != nil {
				return &AggregationError{Source: "stages", Err: err}
			}
			snap.stages = rows
			return nil
		})
	}
	if need&partActivities != 0 {
		g.Go(func() error {
			rows, err := e.activities.QueryActivityTimes(gctx, ActivityQuery{Scope: req.Scope, From: req.Window.From, To: req.Window.To})
			if err != nil {
				return &AggregationError{Source: "activities", Err: err}
			}
			snap.activities = rows
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var aggErr *AggregationError
		if !errors.As(err, &aggErr) {
			aggErr = &AggregationError{Source: "unknown", Err: err}
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			aggErr.Timeout = true
		}
		e.logger.Warn("Analytics aggregation failed",
			zap.String("source", aggErr.Source),
			zap.Bool("timeout", aggErr.Timeout),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(aggErr.Err),
		)
		return nil, aggErr
	}

	e.logger.Debug("Analytics snapshot fetched",
		zap.Int("transitions", len(snap.transitions)),
		zap.Int("leads", len(snap.leads)),
		zap.Int("stages", len(snap.stages)),
		zap.Int("activities", len(snap.activities)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return snap, nil
}
