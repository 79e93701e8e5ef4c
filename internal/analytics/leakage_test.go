package analytics_test

import (
	"testing"
	"time"

	"github.com/straye-as/funnel-api/internal/analytics"
	"github.com/straye-as/funnel-api/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestComputeLeakage_HundredLeadsThirtyLeaked(t *testing.T) {
	followUp := stage(domain.FunnelTypeFollowUp, 1, "New")
	broadcast := stage(domain.FunnelTypeBroadcast, 1, "Nurture")

	var leads []domain.Lead
	var transitions []domain.LeadStageHistory
	for i := 0; i < 100; i++ {
		created := t0.Add(time.Duration(i) * time.Hour)
		l := lead(created, domain.LeadStatusActive)
		leads = append(leads, l)

		lg := newLedger(l.ID).move(followUp, created)
		if i < 30 {
			lg.move(broadcast, created.Add(48*time.Hour))
		}
		transitions = append(transitions, lg.rows...)
	}

	stats := analytics.ComputeLeakage(leads, transitions, testWindow())

	assert.Equal(t, 100, stats.TotalLeads)
	assert.Equal(t, 30, stats.LeakedToBroadcast)
	assert.Equal(t, 30.0, stats.LeakagePercentage)
	assert.Equal(t, 70.0, stats.RetentionPercentage)
	assert.Equal(t, 100, stats.StatusBreakdown.Active)
}

func TestComputeLeakage_NoLeadsIsZero(t *testing.T) {
	stats := analytics.ComputeLeakage(nil, nil, testWindow())

	assert.Equal(t, 0, stats.TotalLeads)
	assert.Equal(t, 0.0, stats.LeakagePercentage)
	assert.Equal(t, 100.0, stats.RetentionPercentage)
}

func TestComputeLeakage_OnlyFollowUpOriginCounts(t *testing.T) {
	followUp := stage(domain.FunnelTypeFollowUp, 1, "New")
	followUp2 := stage(domain.FunnelTypeFollowUp, 2, "Contacted")
	broadcast := stage(domain.FunnelTypeBroadcast, 1, "Nurture")
	broadcast2 := stage(domain.FunnelTypeBroadcast, 2, "Campaign")

	// Starts in broadcast and stays there: not leakage
	direct := lead(t0, domain.LeadStatusActive)
	directLedger := newLedger(direct.ID).move(broadcast, t0).move(broadcast2, t0.Add(time.Hour))

	// Follow-up, then broadcast without from_funnel recorded: leaked via prior history
	legacy := lead(t0, domain.LeadStatusLost)
	legacyLedger := newLedger(legacy.ID).move(followUp, t0).move(followUp2, t0.Add(time.Hour))
	legacyLedger.move(broadcast, t0.Add(2*time.Hour))
	legacyLedger.rows[2].FromFunnel = nil

	// Leaks after the window end: not counted
	late := lead(t0, domain.LeadStatusDeal)
	window := testWindow()
	lateLedger := newLedger(late.ID).move(followUp, t0).move(broadcast, window.To.Add(time.Hour))

	var transitions []domain.LeadStageHistory
	transitions = append(transitions, directLedger.rows...)
	transitions = append(transitions, legacyLedger.rows...)
	transitions = append(transitions, lateLedger.rows...)

	stats := analytics.ComputeLeakage([]domain.Lead{direct, legacy, late}, transitions, window)

	assert.Equal(t, 3, stats.TotalLeads)
	assert.Equal(t, 1, stats.LeakedToBroadcast)
	assert.Equal(t, 33.33, stats.LeakagePercentage)
	assert.Equal(t, 66.67, stats.RetentionPercentage)
	assert.Equal(t, analytics.StatusBreakdown{Active: 1, Deal: 1, Lost: 1}, stats.StatusBreakdown)
}

func TestComputeLeakage_IgnoresLeadsOutsideCohort(t *testing.T) {
	followUp := stage(domain.FunnelTypeFollowUp, 1, "New")
	broadcast := stage(domain.FunnelTypeBroadcast, 1, "Nurture")
	window := testWindow()

	old := lead(window.From.Add(-time.Hour), domain.LeadStatusActive)
	oldLedger := newLedger(old.ID).move(followUp, old.CreatedAt).move(broadcast, t0)

	fresh := lead(t0, domain.LeadStatusActive)
	freshLedger := newLedger(fresh.ID).move(followUp, t0)

	transitions := append(oldLedger.rows, freshLedger.rows...)
	stats := analytics.ComputeLeakage([]domain.Lead{old, fresh}, transitions, window)

	assert.Equal(t, 1, stats.TotalLeads)
	assert.Equal(t, 0, stats.LeakedToBroadcast)
}

func TestComputeLeakage_PercentageAlwaysInRange(t *testing.T) {
	followUp := stage(domain.FunnelTypeFollowUp, 1, "New")
	broadcast := stage(domain.FunnelTypeBroadcast, 1, "Nurture")

	for total := 0; total <= 12; total++ {
		for leaked := 0; leaked <= total; leaked++ {
			var leads []domain.Lead
			var transitions []domain.LeadStageHistory
			for i := 0; i < total; i++ {
				l := lead(t0, domain.LeadStatusActive)
				leads = append(leads, l)
				lg := newLedger(l.ID).move(followUp, t0)
				if i < leaked {
					// Bouncing back and forth still counts once
					lg.move(broadcast, t0.Add(time.Hour)).move(followUp, t0.Add(2*time.Hour)).move(broadcast, t0.Add(3*time.Hour))
				}
				transitions = append(transitions, lg.rows...)
			}

			stats := analytics.ComputeLeakage(leads, transitions, testWindow())
			assert.GreaterOrEqual(t, stats.LeakagePercentage, 0.0)
			assert.LessOrEqual(t, stats.LeakagePercentage, 100.0)
			assert.Equal(t, leaked, stats.LeakedToBroadcast)
			assert.InDelta(t, 100.0, stats.LeakagePercentage+stats.RetentionPercentage, 0.001)
		}
	}
}
