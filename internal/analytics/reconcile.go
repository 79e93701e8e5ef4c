package analytics

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// StoredStats are the figures produced by the legacy database functions, already
// normalized to numbers
type StoredStats struct {
	Leakage  *StoredLeakage
	Velocity map[uuid.UUID]StoredVelocity
}

type StoredLeakage struct {
	TotalLeads        float64
	LeakedToBroadcast float64
	LeakagePercentage float64
}

type StoredVelocity struct {
	StageName  string
	AvgHours   float64
	TotalLeads float64
}

// Discrepancy is one metric where the engine and the stored functions disagree
type Discrepancy struct {
	Metric   string     `json:"metric"`
	StageID  *uuid.UUID `json:"stage_id,omitempty"`
	Engine   float64    `json:"engine"`
	Stored   float64    `json:"stored"`
	Delta    float64    `json:"delta"`
	Comments string     `json:"comments,omitempty"`
}

// ReconciliationReport compares one engine summary against stored figures
type ReconciliationReport struct {
	Window        Window        `json:"window"`
	Tolerance     float64       `json:"tolerance"`
	Checked       int           `json:"checked"`
	Discrepancies []Discrepancy `json:"discrepancies"`
}

// Consistent reports whether every checked metric agreed within tolerance
func (r ReconciliationReport) Consistent() bool {
	return len(r.Discrepancies) == 0
}

// Reconcile lists every metric whose absolute difference exceeds tolerance
func Reconcile(window Window, leakage LeakageStats, velocity []StageVelocity, stored StoredStats, tolerance float64) ReconciliationReport {
	report := ReconciliationReport{Window: window, Tolerance: tolerance, Discrepancies: []Discrepancy{}}

	check := func(metric string, stageID *uuid.UUID, engine, storedVal float64, comments string) {
		report.Checked++
		delta := round2(engine - storedVal)
		if math.Abs(engine-storedVal) > tolerance {
			report.Discrepancies = append(report.Discrepancies, Discrepancy{
				Metric: metric, StageID: stageID, Engine: engine, Stored: storedVal, Delta: delta, Comments: comments,
			})
		}
	}

	if stored.Leakage != nil {
		check("leakage.total_leads", nil, float64(leakage.TotalLeads), stored.Leakage.TotalLeads, "")
		check("leakage.leaked_to_broadcast", nil, float64(leakage.LeakedToBroadcast), stored.Leakage.LeakedToBroadcast, "")
		check("leakage.leakage_percentage", nil, leakage.LeakagePercentage, stored.Leakage.LeakagePercentage, "")
	}

	for _, v := range velocity {
		sv, ok := stored.Velocity[v.StageID]
		if !ok {
			continue
		}
		id := v.StageID
		label := fmt.Sprintf("stage %q", v.StageName)
		check("velocity.avg_hours", &id, v.AvgHours, sv.AvgHours, label)
		check("velocity.total_leads", &id, float64(v.TotalLeads), sv.TotalLeads, label)
	}
	return report
}
