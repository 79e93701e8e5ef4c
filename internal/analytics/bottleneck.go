package analytics

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/straye-as/funnel-api/internal/domain"
)

// Severity of a stage bottleneck
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

func (s Severity) rank() int {
	switch s {
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// Thresholds are the deployment-tunable bottleneck limits
type Thresholds struct {
	HighHours   float64
	MediumHours float64
	// MinSampleSize is the lead count below which a stage is never reported
	MinSampleSize int
}

// DefaultThresholds flags stages averaging over three days as high and over one day as medium
var DefaultThresholds = Thresholds{HighHours: 72, MediumHours: 24, MinSampleSize: 3}

func (t Thresholds) Validate() error {
	if t.MediumHours < 0 || t.HighHours < t.MediumHours {
		return fmt.Errorf("bottleneck thresholds must satisfy high >= medium >= 0, got high=%v medium=%v",
			t.HighHours, t.MediumHours)
	}
	return nil
}

// sampleFloor is never below one so empty stages are never reported
func (t Thresholds) sampleFloor() int {
	return max(1, t.MinSampleSize)
}

// Classify maps an average dwell time to a severity. It is monotonic in avgHours.
func (t Thresholds) Classify(avgHours float64) Severity {
	switch {
	case avgHours >= t.HighHours:
		return SeverityHigh
	case avgHours >= t.MediumHours:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Bottleneck is one classified stage
type Bottleneck struct {
	StageID     uuid.UUID         `json:"stage_id"`
	StageName   string            `json:"stage_name"`
	FunnelType  domain.FunnelType `json:"funnel_type"`
	StageNumber int               `json:"stage_number"`
	AvgHours    float64           `json:"avg_hours"`
	TotalLeads  int               `json:"total_leads"`
	Severity    Severity          `json:"severity"`
	Message     string            `json:"message"`
}

// DetectBottlenecks classifies every stage with enough leads, ordered by severity
// then by average dwell time, both descending
func DetectBottlenecks(velocity []StageVelocity, t Thresholds) []Bottleneck {
	floor := t.sampleFloor()
	out := make([]Bottleneck, 0, len(velocity))
	for _, v := range velocity {
		if v.TotalLeads < floor {
			continue
		}
		sev := t.Classify(v.AvgHours)
		out = append(out, Bottleneck{
			StageID:     v.StageID,
			StageName:   v.StageName,
			FunnelType:  v.FunnelType,
			StageNumber: v.StageNumber,
			AvgHours:    v.AvgHours,
			TotalLeads:  v.TotalLeads,
			Severity:    sev,
			Message:     bottleneckMessage(v, sev, t),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Severity.rank() != b.Severity.rank() {
			return a.Severity.rank() > b.Severity.rank()
		}
		if a.AvgHours != b.AvgHours {
			return a.AvgHours > b.AvgHours
		}
		if a.FunnelType != b.FunnelType {
			return a.FunnelType > b.FunnelType
		}
		return a.StageNumber < b.StageNumber
	})
	return out
}

func bottleneckMessage(v StageVelocity, sev Severity, t Thresholds) string {
	subject := fmt.Sprintf("Leads spend %.1fh on average in %q (%s stage %d) across %d leads",
		v.AvgHours, v.StageName, v.FunnelType, v.StageNumber, v.TotalLeads)
	switch sev {
	case SeverityHigh:
		return fmt.Sprintf("%s, at or above the %gh critical threshold", subject, t.HighHours)
	case SeverityMedium:
		return fmt.Sprintf("%s, at or above the %gh warning threshold", subject, t.MediumHours)
	default:
		return fmt.Sprintf("%s, below the %gh warning threshold", subject, t.MediumHours)
	}
}
