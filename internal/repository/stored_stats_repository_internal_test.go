package repository

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStoredStats(t *testing.T) {
	leakage, err := parseStoredLeakage(map[string]interface{}{
		"total_leads":         int64(120),
		"leaked_to_broadcast": "30",
		"leakage_percentage":  []byte("25.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, 120.0, leakage.TotalLeads)
	assert.Equal(t, 30.0, leakage.LeakedToBroadcast)
	assert.Equal(t, 25.0, leakage.LeakagePercentage)

	_, err = parseStoredLeakage(map[string]interface{}{"total_leads": "n/a"})
	assert.Error(t, err)

	stageID := uuid.New()
	velocity, err := parseStoredVelocity([]map[string]interface{}{{
		"stage_id":    stageID.String(),
		"stage_name":  "Qualified",
		"avg_hours":   "17.50",
		"total_leads": int64(4),
	}})
	require.NoError(t, err)
	require.Contains(t, velocity, stageID)
	assert.Equal(t, 17.5, velocity[stageID].AvgHours)
	assert.Equal(t, "Qualified", velocity[stageID].StageName)

	_, err = parseStoredVelocity([]map[string]interface{}{{"stage_id": 42}})
	assert.Error(t, err)
}
