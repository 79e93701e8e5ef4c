package analytics

import (
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/straye-as/funnel-api/internal/domain"
)

// leadHistory groups ledger rows per lead, each group ordered by moved_at.
// Rows with equal timestamps keep their source order.
func leadHistory(transitions []domain.LeadStageHistory) map[uuid.UUID][]domain.LeadStageHistory {
	byLead := make(map[uuid.UUID][]domain.LeadStageHistory)
	for _, t := range transitions {
		byLead[t.LeadID] = append(byLead[t.LeadID], t)
	}
	for _, rows := range byLead {
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].MovedAt.Before(rows[j].MovedAt)
		})
	}
	return byLead
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
