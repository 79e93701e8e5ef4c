package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/funnel-api/internal/analytics"
	"gorm.io/gorm"
)

// StoredStatsRepository calls the legacy reporting functions kept in the database
// (get_funnel_leakage_stats, get_stage_velocity). They return NUMERIC columns which
// drivers hand back as text, so every figure goes through analytics.ParseNumeric.
type StoredStatsRepository struct {
	db *gorm.DB
}

func NewStoredStatsRepository(db *gorm.DB) *StoredStatsRepository {
	return &StoredStatsRepository{db: db}
}

// Fetch reads both stored figures for the same scope and window
func (r *StoredStatsRepository) Fetch(ctx context.Context, scope analytics.Scope, window analytics.Window) (analytics.StoredStats, error) {
	var stats analytics.StoredStats

	var leakageRows []map[string]interface{}
	err := r.db.WithContext(ctx).
		Raw("SELECT * FROM get_funnel_leakage_stats(?, ?, ?, ?)", scope.BrandID, scope.FunnelID, window.From, window.To).
		Scan(&leakageRows).Error
	if err != nil {
		return stats, fmt.Errorf("get_funnel_leakage_stats: %w", err)
	}
	if len(leakageRows) > 0 {
		leakage, err := parseStoredLeakage(leakageRows[0])
		if err != nil {
			return stats, err
		}
		stats.Leakage = leakage
	}

	var velocityRows []map[string]interface{}
	err = r.db.WithContext(ctx).
		Raw("SELECT * FROM get_stage_velocity(?, ?, ?, ?)", scope.BrandID, scope.FunnelID, window.From, window.To).
		Scan(&velocityRows).Error
	if err != nil {
		return stats, fmt.Errorf("get_stage_velocity: %w", err)
	}
	stats.Velocity, err = parseStoredVelocity(velocityRows)
	if err != nil {
		return stats, err
	}
	return stats, nil
}

func parseStoredLeakage(row map[string]interface{}) (*analytics.StoredLeakage, error) {
	var out analytics.StoredLeakage
	var err error
	if out.TotalLeads, err = analytics.ParseNumericField("total_leads", row["total_leads"]); err != nil {
		return nil, err
	}
	if out.LeakedToBroadcast, err = analytics.ParseNumericField("leaked_to_broadcast", row["leaked_to_broadcast"]); err != nil {
		return nil, err
	}
	if out.LeakagePercentage, err = analytics.ParseNumericField("leakage_percentage", row["leakage_percentage"]); err != nil {
		return nil, err
	}
	return &out, nil
}

func parseStoredVelocity(rows []map[string]interface{}) (map[uuid.UUID]analytics.StoredVelocity, error) {
	out := make(map[uuid.UUID]analytics.StoredVelocity, len(rows))
	for _, row := range rows {
		stageID, err := uuidValue(row["stage_id"])
		if err != nil {
			return nil, fmt.Errorf("stage_id: %w", err)
		}
		avg, err := analytics.ParseNumericField("avg_hours", row["avg_hours"])
		if err != nil {
			return nil, err
		}
		total, err := analytics.ParseNumericField("total_leads", row["total_leads"])
		if err != nil {
			return nil, err
		}
		name, _ := row["stage_name"].(string)
		out[stageID] = analytics.StoredVelocity{StageName: name, AvgHours: avg, TotalLeads: total}
	}
	return out, nil
}

func uuidValue(v interface{}) (uuid.UUID, error) {
	switch t := v.(type) {
	case string:
		return uuid.Parse(t)
	case []byte:
		if len(t) == 16 {
			return uuid.FromBytes(t)
		}
		return uuid.ParseBytes(t)
	case uuid.UUID:
		return t, nil
	default:
		return uuid.Nil, fmt.Errorf("unsupported id type %T", v)
	}
}
