package analytics_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/straye-as/funnel-api/internal/analytics"
	"github.com/straye-as/funnel-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func velocityRecord(name string, number int, avg float64, leads int) analytics.StageVelocity {
	return analytics.StageVelocity{
		StageID:     uuid.New(),
		StageName:   name,
		FunnelType:  domain.FunnelTypeFollowUp,
		StageNumber: number,
		AvgHours:    avg,
		TotalLeads:  leads,
		Visits:      leads,
	}
}

func TestThresholds_Classify(t *testing.T) {
	th := analytics.DefaultThresholds

	assert.Equal(t, analytics.SeverityLow, th.Classify(0))
	assert.Equal(t, analytics.SeverityLow, th.Classify(23.99))
	assert.Equal(t, analytics.SeverityMedium, th.Classify(24))
	assert.Equal(t, analytics.SeverityMedium, th.Classify(71.5))
	assert.Equal(t, analytics.SeverityHigh, th.Classify(72))
	assert.Equal(t, analytics.SeverityHigh, th.Classify(500))
}

func TestThresholds_ClassifyIsMonotonic(t *testing.T) {
	rank := map[analytics.Severity]int{analytics.SeverityLow: 0, analytics.SeverityMedium: 1, analytics.SeverityHigh: 2}

	for _, th := range []analytics.Thresholds{
		analytics.DefaultThresholds,
		{HighHours: 10, MediumHours: 10},
		{HighHours: 0, MediumHours: 0},
		{HighHours: 200, MediumHours: 1},
	} {
		prev := -1
		for avg := 0.0; avg <= 250; avg += 0.5 {
			r := rank[th.Classify(avg)]
			assert.GreaterOrEqual(t, r, prev, "severity decreased at %v hours for %+v", avg, th)
			prev = r
		}
	}
}

func TestThresholds_Validate(t *testing.T) {
	assert.NoError(t, analytics.DefaultThresholds.Validate())
	assert.NoError(t, analytics.Thresholds{HighHours: 5, MediumHours: 5}.Validate())
	assert.Error(t, analytics.Thresholds{HighHours: 5, MediumHours: 10}.Validate())
	assert.Error(t, analytics.Thresholds{HighHours: 5, MediumHours: -1}.Validate())
}

func TestDetectBottlenecks_OrderAndFloor(t *testing.T) {
	velocity := []analytics.StageVelocity{
		velocityRecord("New", 1, 5, 10),
		velocityRecord("Contacted", 2, 30, 10),
		velocityRecord("Qualified", 3, 100, 10),
		velocityRecord("Proposal", 4, 80, 10),
		velocityRecord("Sparse", 5, 400, 2),
		velocityRecord("Negotiation", 6, 50, 3),
	}

	out := analytics.DetectBottlenecks(velocity, analytics.DefaultThresholds)

	require.Len(t, out, 5)
	names := make([]string, len(out))
	for i, b := range out {
		names[i] = b.StageName
	}
	assert.Equal(t, []string{"Qualified", "Proposal", "Negotiation", "Contacted", "New"}, names)
	assert.Equal(t, analytics.SeverityHigh, out[0].Severity)
	assert.Equal(t, analytics.SeverityMedium, out[2].Severity)
	assert.Equal(t, analytics.SeverityLow, out[4].Severity)
	assert.Contains(t, out[0].Message, "Qualified")
	assert.Contains(t, out[0].Message, "72h")
}

func TestDetectBottlenecks_EmptyStagesNeverReported(t *testing.T) {
	velocity := []analytics.StageVelocity{
		velocityRecord("Empty", 1, 0, 0),
		velocityRecord("Busy", 2, 90, 1),
	}

	for _, th := range []analytics.Thresholds{
		{HighHours: 0, MediumHours: 0, MinSampleSize: 0},
		{HighHours: 0, MediumHours: 0, MinSampleSize: -5},
		analytics.DefaultThresholds,
	} {
		for _, b := range analytics.DetectBottlenecks(velocity, th) {
			assert.NotZero(t, b.TotalLeads)
			assert.NotEqual(t, "Empty", b.StageName)
		}
	}

	out := analytics.DetectBottlenecks(velocity, analytics.Thresholds{HighHours: 72, MediumHours: 24, MinSampleSize: 0})
	require.Len(t, out, 1)
	assert.Equal(t, "Busy", out[0].StageName)
}
