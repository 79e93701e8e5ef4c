package analytics_test

import (
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/funnel-api/internal/analytics"
	"github.com/straye-as/funnel-api/internal/domain"
)

// Monday 3 March 2025, 09:00 UTC
var t0 = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

func testWindow() analytics.Window {
	return analytics.Window{From: t0.Add(-24 * time.Hour), To: t0.Add(30 * 24 * time.Hour)}
}

func stage(ft domain.FunnelType, number int, name string) domain.Stage {
	s := domain.Stage{FunnelType: ft, StageNumber: number, Name: name}
	s.ID = uuid.New()
	return s
}

func lead(createdAt time.Time, status domain.LeadStatus) domain.Lead {
	l := domain.Lead{Status: status}
	l.ID = uuid.New()
	l.CreatedAt = createdAt
	return l
}

func funnelPtr(ft domain.FunnelType) *domain.FunnelType {
	return &ft
}

// ledger builds ordered history rows for one lead visiting stages at the given offsets from start
type ledger struct {
	leadID uuid.UUID
	rows   []domain.LeadStageHistory
}

func newLedger(leadID uuid.UUID) *ledger {
	return &ledger{leadID: leadID}
}

func (l *ledger) move(to domain.Stage, at time.Time) *ledger {
	row := domain.LeadStageHistory{
		ID:        uuid.New(),
		LeadID:    l.leadID,
		ToStageID: to.ID,
		ToFunnel:  to.FunnelType,
		MovedAt:   at,
	}
	if n := len(l.rows); n > 0 {
		prev := l.rows[n-1]
		from := prev.ToStageID
		row.FromStageID = &from
		row.FromFunnel = funnelPtr(prev.ToFunnel)
	}
	l.rows = append(l.rows, row)
	return l
}
