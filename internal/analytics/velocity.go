package analytics

import (
	"github.com/google/uuid"
	"github.com/straye-as/funnel-api/internal/domain"
)

// StageVelocity is the per-stage dwell time record
type StageVelocity struct {
	StageID     uuid.UUID         `json:"stage_id"`
	StageName   string            `json:"stage_name"`
	FunnelType  domain.FunnelType `json:"funnel_type"`
	StageNumber int               `json:"stage_number"`
	AvgHours    float64           `json:"avg_hours"`
	// TotalLeads is the number of distinct leads with a counted visit
	TotalLeads int `json:"total_leads"`
	Visits     int `json:"visits"`
	// InProgress is the number of visits still open at the window end
	InProgress int `json:"in_progress"`
}

// VelocityOptions controls how open visits are treated
type VelocityOptions struct {
	// IncludeInProgress counts open visits with the window end as a provisional exit
	IncludeInProgress bool
}

type stageAccumulator struct {
	hours      float64
	visits     int
	inProgress int
	leads      map[uuid.UUID]struct{}
}

// ComputeVelocity returns one record per registry stage, in registry order.
//
// A visit is a ledger row whose moved_at falls inside the window. It ends at the next
// row of the same lead at or before the window end. Open visits are skipped unless
// opts.IncludeInProgress is set.
func ComputeVelocity(stages []domain.Stage, transitions []domain.LeadStageHistory, window Window, opts VelocityOptions) []StageVelocity {
	acc := make(map[uuid.UUID]*stageAccumulator, len(stages))
	for _, s := range stages {
		acc[s.ID] = &stageAccumulator{leads: make(map[uuid.UUID]struct{})}
	}

	for leadID, rows := range leadHistory(transitions) {
		for i, entry := range rows {
			if !window.Contains(entry.MovedAt) {
				continue
			}
			a, known := acc[entry.ToStageID]
			if !known {
				continue
			}

			exit, closed := window.To, false
			if i+1 < len(rows) && !rows[i+1].MovedAt.After(window.To) {
				exit, closed = rows[i+1].MovedAt, true
			}
			if !closed {
				a.inProgress++
				if !opts.IncludeInProgress {
					continue
				}
			}

			dwell := exit.Sub(entry.MovedAt).Hours()
			if dwell < 0 {
				dwell = 0
			}
			a.hours += dwell
			a.visits++
			a.leads[leadID] = struct{}{}
		}
	}

	out := make([]StageVelocity, 0, len(stages))
	for _, s := range stages {
		a := acc[s.ID]
		v := StageVelocity{
			StageID:     s.ID,
			StageName:   s.Name,
			FunnelType:  s.FunnelType,
			StageNumber: s.StageNumber,
			TotalLeads:  len(a.leads),
			Visits:      a.visits,
			InProgress:  a.inProgress,
		}
		if a.visits > 0 {
			v.AvgHours = round2(a.hours / float64(a.visits))
		}
		out = append(out, v)
	}
	return out
}
