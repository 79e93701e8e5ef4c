package analytics

import (
	"github.com/google/uuid"
	"github.com/straye-as/funnel-api/internal/domain"
)

// StatusBreakdown counts the window's leads per lifecycle status
type StatusBreakdown struct {
	Active int `json:"active"`
	Deal   int `json:"deal"`
	Lost   int `json:"lost"`
}

// LeakageStats is the FunnelLeakageStats data product
type LeakageStats struct {
	TotalLeads          int             `json:"total_leads"`
	LeakedToBroadcast   int             `json:"leaked_to_broadcast"`
	LeakagePercentage   float64         `json:"leakage_percentage"`
	RetentionPercentage float64         `json:"retention_percentage"`
	StatusBreakdown     StatusBreakdown `json:"status_breakdown"`
}

// ComputeLeakage counts how many of the leads created in the window moved from the
// follow_up pipeline into broadcast at or before the window end.
func ComputeLeakage(leads []domain.Lead, transitions []domain.LeadStageHistory, window Window) LeakageStats {
	cohort := make(map[uuid.UUID]struct{}, len(leads))
	var stats LeakageStats
	for _, l := range leads {
		if !window.Contains(l.CreatedAt) {
			continue
		}
		if _, dup := cohort[l.ID]; dup {
			continue
		}
		cohort[l.ID] = struct{}{}
		switch l.Status {
		case domain.LeadStatusDeal:
			stats.StatusBreakdown.Deal++
		case domain.LeadStatusLost:
			stats.StatusBreakdown.Lost++
		default:
			stats.StatusBreakdown.Active++
		}
	}
	stats.TotalLeads = len(cohort)

	for leadID, rows := range leadHistory(transitions) {
		if _, ok := cohort[leadID]; !ok {
			continue
		}
		if leakedToBroadcast(rows, window) {
			stats.LeakedToBroadcast++
		}
	}

	if stats.TotalLeads > 0 {
		pct := 100 * float64(stats.LeakedToBroadcast) / float64(stats.TotalLeads)
		stats.LeakagePercentage = round2(min(max(pct, 0), 100))
	}
	stats.RetentionPercentage = round2(100 - stats.LeakagePercentage)
	return stats
}

// leakedToBroadcast reports whether a lead's ordered history contains a move into
// broadcast that came from, or followed time in, the follow_up pipeline
func leakedToBroadcast(rows []domain.LeadStageHistory, window Window) bool {
	inFollowUp := false
	for _, r := range rows {
		if r.MovedAt.After(window.To) {
			break
		}
		if r.ToFunnel == domain.FunnelTypeBroadcast {
			fromFollowUp := r.FromFunnel != nil && *r.FromFunnel == domain.FunnelTypeFollowUp
			if fromFollowUp || inFollowUp {
				return true
			}
		}
		if r.ToFunnel == domain.FunnelTypeFollowUp {
			inFollowUp = true
		}
	}
	return false
}
