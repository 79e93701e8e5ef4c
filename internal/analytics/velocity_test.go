package analytics_test

import (
	"testing"
	"time"

	"github.com/straye-as/funnel-api/internal/analytics"
	"github.com/straye-as/funnel-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeVelocity_AveragesCompletedVisits(t *testing.T) {
	first := stage(domain.FunnelTypeFollowUp, 1, "New")
	x := stage(domain.FunnelTypeFollowUp, 2, "Qualified")
	next := stage(domain.FunnelTypeFollowUp, 3, "Proposal")

	a := newLedger(lead(t0, domain.LeadStatusActive).ID).
		move(first, t0).
		move(x, t0.Add(time.Hour)).
		move(next, t0.Add(11*time.Hour))
	b := newLedger(lead(t0, domain.LeadStatusActive).ID).
		move(first, t0).
		move(x, t0.Add(2*time.Hour)).
		move(next, t0.Add(22*time.Hour))

	transitions := append(a.rows, b.rows...)
	out := analytics.ComputeVelocity([]domain.Stage{first, x, next}, transitions, testWindow(), analytics.VelocityOptions{})

	require.Len(t, out, 3)
	assert.Equal(t, x.ID, out[1].StageID)
	assert.Equal(t, 15.0, out[1].AvgHours)
	assert.Equal(t, 2, out[1].TotalLeads)
	assert.Equal(t, 2, out[1].Visits)

	assert.Equal(t, 1.5, out[0].AvgHours)

	// Both leads are still in the last stage
	assert.Equal(t, 0.0, out[2].AvgHours)
	assert.Equal(t, 0, out[2].TotalLeads)
	assert.Equal(t, 2, out[2].InProgress)
}

func TestComputeVelocity_InProgressUsesWindowEnd(t *testing.T) {
	s := stage(domain.FunnelTypeFollowUp, 1, "New")
	window := analytics.Window{From: t0, To: t0.Add(10 * time.Hour)}

	lg := newLedger(lead(t0, domain.LeadStatusActive).ID).move(s, t0.Add(4*time.Hour))

	excluded := analytics.ComputeVelocity([]domain.Stage{s}, lg.rows, window, analytics.VelocityOptions{})
	require.Len(t, excluded, 1)
	assert.Equal(t, 0.0, excluded[0].AvgHours)
	assert.Equal(t, 0, excluded[0].TotalLeads)
	assert.Equal(t, 1, excluded[0].InProgress)

	included := analytics.ComputeVelocity([]domain.Stage{s}, lg.rows, window, analytics.VelocityOptions{IncludeInProgress: true})
	assert.Equal(t, 6.0, included[0].AvgHours)
	assert.Equal(t, 1, included[0].TotalLeads)
}

func TestComputeVelocity_ExitAfterWindowIsOpen(t *testing.T) {
	s1 := stage(domain.FunnelTypeFollowUp, 1, "New")
	s2 := stage(domain.FunnelTypeFollowUp, 2, "Contacted")
	window := analytics.Window{From: t0, To: t0.Add(10 * time.Hour)}

	lg := newLedger(lead(t0, domain.LeadStatusActive).ID).
		move(s1, t0.Add(2*time.Hour)).
		move(s2, t0.Add(40*time.Hour))

	out := analytics.ComputeVelocity([]domain.Stage{s1, s2}, lg.rows, window, analytics.VelocityOptions{})
	assert.Equal(t, 0, out[0].Visits)
	assert.Equal(t, 1, out[0].InProgress)
	assert.Equal(t, 0, out[1].Visits, "entry outside window is not a visit")
}

func TestComputeVelocity_RepeatVisitsCountLeadOnce(t *testing.T) {
	s1 := stage(domain.FunnelTypeFollowUp, 1, "New")
	s2 := stage(domain.FunnelTypeFollowUp, 2, "Contacted")

	lg := newLedger(lead(t0, domain.LeadStatusActive).ID).
		move(s1, t0).
		move(s2, t0.Add(4*time.Hour)).
		move(s1, t0.Add(5*time.Hour)).
		move(s2, t0.Add(7*time.Hour))

	out := analytics.ComputeVelocity([]domain.Stage{s1, s2}, lg.rows, testWindow(), analytics.VelocityOptions{})
	assert.Equal(t, 3.0, out[0].AvgHours)
	assert.Equal(t, 2, out[0].Visits)
	assert.Equal(t, 1, out[0].TotalLeads)
}

func TestComputeVelocity_NeverNegative(t *testing.T) {
	s1 := stage(domain.FunnelTypeFollowUp, 1, "New")
	s2 := stage(domain.FunnelTypeBroadcast, 1, "Nurture")

	// Rows supplied out of order are sorted by moved_at before pairing
	lg := newLedger(lead(t0, domain.LeadStatusActive).ID).
		move(s1, t0.Add(hours(3))).
		move(s2, t0)

	out := analytics.ComputeVelocity([]domain.Stage{s1, s2}, lg.rows, testWindow(), analytics.VelocityOptions{IncludeInProgress: true})
	for _, v := range out {
		assert.GreaterOrEqual(t, v.AvgHours, 0.0)
	}
}
