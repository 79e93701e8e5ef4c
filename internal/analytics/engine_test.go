package analytics_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/funnel-api/internal/analytics"
	"github.com/straye-as/funnel-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSources struct {
	mu          sync.Mutex
	transitions []domain.LeadStageHistory
	leads       []domain.Lead
	stages      []domain.Stage
	activities  []time.Time

	failTransitions error
	blockLeads      bool

	calls        int
	seenWindows  []analytics.Window
	leadsStopped chan error
}

func (f *fakeSources) record(w analytics.Window) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.seenWindows = append(f.seenWindows, w)
}

func (f *fakeSources) QueryTransitions(ctx context.Context, q analytics.TransitionQuery) ([]domain.LeadStageHistory, error) {
	f.record(analytics.Window{From: q.From, To: q.To})
	if f.failTransitions != nil {
		return nil, f.failTransitions
	}
	return f.transitions, nil
}

func (f *fakeSources) QueryLeads(ctx context.Context, q analytics.LeadQuery) ([]domain.Lead, error) {
	f.record(analytics.Window{From: q.CreatedFrom, To: q.CreatedTo})
	if f.blockLeads {
		<-ctx.Done()
		if f.leadsStopped != nil {
			f.leadsStopped <- ctx.Err()
		}
		return nil, ctx.Err()
	}
	return f.leads, nil
}

func (f *fakeSources) ListStages(ctx context.Context, _ *domain.FunnelType) ([]domain.Stage, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.stages, nil
}

func (f *fakeSources) QueryActivityTimes(ctx context.Context, q analytics.ActivityQuery) ([]time.Time, error) {
	f.record(analytics.Window{From: q.From, To: q.To})
	return f.activities, nil
}

func newTestEngine(f *fakeSources, cfg analytics.EngineConfig) *analytics.Engine {
	if cfg.Thresholds == (analytics.Thresholds{}) {
		cfg.Thresholds = analytics.DefaultThresholds
	}
	return analytics.NewEngine(f, f, f, f, cfg, zap.NewNop()).
		WithClock(func() time.Time { return t0.Add(31 * 24 * time.Hour) })
}

func seededSources() (*fakeSources, domain.Stage) {
	s1 := stage(domain.FunnelTypeFollowUp, 1, "New")
	s2 := stage(domain.FunnelTypeFollowUp, 2, "Qualified")
	b1 := stage(domain.FunnelTypeBroadcast, 1, "Nurture")

	f := &fakeSources{stages: []domain.Stage{s1, s2, b1}}
	for i := 0; i < 4; i++ {
		l := lead(t0, domain.LeadStatusActive)
		f.leads = append(f.leads, l)
		lg := newLedger(l.ID).move(s1, t0).move(s2, t0.Add(80*time.Hour))
		if i == 0 {
			lg.move(b1, t0.Add(200*time.Hour))
		}
		f.transitions = append(f.transitions, lg.rows...)
	}
	return f, s1
}

func TestEngine_Summarize(t *testing.T) {
	f, s1 := seededSources()
	engine := newTestEngine(f, analytics.EngineConfig{})
	brandID := uuid.New()

	summary, err := engine.Summarize(context.Background(), analytics.Request{
		Scope:  analytics.Scope{BrandID: &brandID},
		Window: testWindow(),
	})
	require.NoError(t, err)

	assert.Equal(t, &brandID, summary.BrandID)
	assert.Equal(t, 4, summary.Leakage.TotalLeads)
	assert.Equal(t, 1, summary.Leakage.LeakedToBroadcast)
	assert.Equal(t, 25.0, summary.Leakage.LeakagePercentage)

	require.Len(t, summary.Velocity, 3)
	assert.Equal(t, s1.ID, summary.Velocity[0].StageID)
	assert.Equal(t, 80.0, summary.Velocity[0].AvgHours)
	assert.Equal(t, 4, summary.Velocity[0].TotalLeads)

	require.Len(t, summary.Bottlenecks, 1)
	assert.Equal(t, analytics.SeverityHigh, summary.Bottlenecks[0].Severity)
	assert.Equal(t, "New", summary.Bottlenecks[0].StageName)

	assert.Len(t, summary.Heatmap.Cells, analytics.HeatmapCells)
	assert.Equal(t, 9, summary.Heatmap.Total)
	assert.Equal(t, t0.Add(31*24*time.Hour), summary.GeneratedAt)
}

func TestEngine_SubQueriesShareWindow(t *testing.T) {
	f, _ := seededSources()
	engine := newTestEngine(f, analytics.EngineConfig{HeatmapSource: analytics.SourceActivities})
	window := testWindow()

	_, err := engine.Summarize(context.Background(), analytics.Request{Window: window})
	require.NoError(t, err)

	assert.Equal(t, 4, f.calls)
	require.Len(t, f.seenWindows, 3)
	for _, w := range f.seenWindows {
		assert.Equal(t, window, w)
	}
}

func TestEngine_UpstreamFailureFailsWholeSummary(t *testing.T) {
	f, _ := seededSources()
	f.failTransitions = errors.New("connection reset by peer")
	engine := newTestEngine(f, analytics.EngineConfig{})

	summary, err := engine.Summarize(context.Background(), analytics.Request{Window: testWindow()})

	assert.Nil(t, summary)
	require.Error(t, err)
	assert.True(t, errors.Is(err, analytics.ErrUpstream))

	var aggErr *analytics.AggregationError
	require.True(t, errors.As(err, &aggErr))
	assert.Equal(t, "transitions", aggErr.Source)
	assert.False(t, aggErr.Timeout)
}

func TestEngine_TimeoutFailsCleanly(t *testing.T) {
	f, _ := seededSources()
	f.blockLeads = true
	engine := newTestEngine(f, analytics.EngineConfig{Timeout: 50 * time.Millisecond})

	start := time.Now()
	summary, err := engine.Summarize(context.Background(), analytics.Request{Window: testWindow()})

	assert.Nil(t, summary)
	assert.Less(t, time.Since(start), 5*time.Second)

	var aggErr *analytics.AggregationError
	require.True(t, errors.As(err, &aggErr))
	assert.True(t, aggErr.Timeout)
	assert.Equal(t, "leads", aggErr.Source)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestEngine_CallerCancellationStopsQueries(t *testing.T) {
	f, _ := seededSources()
	f.blockLeads = true
	f.leadsStopped = make(chan error, 1)
	engine := newTestEngine(f, analytics.EngineConfig{Timeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := engine.Summarize(ctx, analytics.Request{Window: testWindow()})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("summary did not return after cancellation")
	}
	assert.True(t, errors.Is(<-f.leadsStopped, context.Canceled))
}

func TestEngine_InvalidWindowRejectedBeforeQuerying(t *testing.T) {
	f, _ := seededSources()
	engine := newTestEngine(f, analytics.EngineConfig{})

	_, err := engine.Summarize(context.Background(), analytics.Request{
		Window: analytics.Window{From: t0.Add(time.Hour), To: t0},
	})

	assert.True(t, errors.Is(err, analytics.ErrInvalidWindow))
	assert.Zero(t, f.calls)
}

func TestEngine_IndividualProducts(t *testing.T) {
	f, _ := seededSources()
	engine := newTestEngine(f, analytics.EngineConfig{})
	req := analytics.Request{Window: testWindow()}
	ctx := context.Background()

	leakage, err := engine.Leakage(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 25.0, leakage.LeakagePercentage)

	velocity, err := engine.Velocity(ctx, req)
	require.NoError(t, err)
	assert.Len(t, velocity, 3)

	bottlenecks, err := engine.Bottlenecks(ctx, req)
	require.NoError(t, err)
	assert.Len(t, bottlenecks, 1)

	heatmap, err := engine.Heatmap(ctx, req)
	require.NoError(t, err)
	assert.Len(t, heatmap.Cells, analytics.HeatmapCells)
}
