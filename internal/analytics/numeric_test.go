package analytics_test

import (
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/funnel-api/internal/analytics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumeric(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want float64
	}{
		{"text", "42.50", 42.5},
		{"padded text", "  7 ", 7},
		{"bytes", []byte("33.33"), 33.33},
		{"float", 12.25, 12.25},
		{"int64", int64(9), 9},
		{"decimal", decimal.RequireFromString("15.0"), 15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := analytics.ParseNumeric(tt.in)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestParseNumeric_Errors(t *testing.T) {
	inputs := []interface{}{
		"twelve", "", "NaN", nil, struct{}{},
		math.NaN(), math.Inf(1), math.Inf(-1), float32(math.Inf(1)),
	}
	for _, in := range inputs {
		_, err := analytics.ParseNumeric(in)
		var pe *analytics.NumericParseError
		assert.True(t, errors.As(err, &pe), "input %#v", in)
	}

	_, err := analytics.ParseNumericField("avg_hours", "n/a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "avg_hours")
}

func TestReconcile(t *testing.T) {
	stageID := uuid.New()
	otherID := uuid.New()
	leakage := analytics.LeakageStats{TotalLeads: 100, LeakedToBroadcast: 30, LeakagePercentage: 30}
	velocity := []analytics.StageVelocity{
		{StageID: stageID, StageName: "Qualified", AvgHours: 15, TotalLeads: 2},
		{StageID: otherID, StageName: "Unreported", AvgHours: 4, TotalLeads: 1},
	}
	stored := analytics.StoredStats{
		Leakage: &analytics.StoredLeakage{TotalLeads: 100, LeakedToBroadcast: 30, LeakagePercentage: 30.004},
		Velocity: map[uuid.UUID]analytics.StoredVelocity{
			stageID: {StageName: "Qualified", AvgHours: 17.5, TotalLeads: 2},
		},
	}

	report := analytics.Reconcile(testWindow(), leakage, velocity, stored, 0.01)

	assert.Equal(t, 5, report.Checked)
	require.Len(t, report.Discrepancies, 1)
	assert.False(t, report.Consistent())
	d := report.Discrepancies[0]
	assert.Equal(t, "velocity.avg_hours", d.Metric)
	assert.Equal(t, &stageID, d.StageID)
	assert.Equal(t, -2.5, d.Delta)
}
