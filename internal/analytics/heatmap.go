package analytics

import (
	"fmt"
	"time"
)

const (
	daysPerWeek  = 7
	hoursPerDay  = 24
	HeatmapCells = daysPerWeek * hoursPerDay
)

// Intensity is the display bucket of a heatmap cell
type Intensity string

const (
	IntensityNone   Intensity = "none"
	IntensityLow    Intensity = "low"
	IntensityMedium Intensity = "medium"
	IntensityHigh   Intensity = "high"
)

// IntensityPolicy selects how non-zero counts are split into low, medium and high
type IntensityPolicy string

const (
	// PolicyTertile splits 1..max into equal thirds
	PolicyTertile IntensityPolicy = "tertile"
	// PolicyFixed uses the absolute LowMax and MediumMax bounds
	PolicyFixed IntensityPolicy = "fixed"
)

// HeatmapSource selects the timestamps bucketed into the grid
type HeatmapSource string

const (
	SourceStageEntries HeatmapSource = "stage_entries"
	SourceActivities   HeatmapSource = "activities"
)

// HeatmapOptions configures bucketing
type HeatmapOptions struct {
	Location  *time.Location
	Policy    IntensityPolicy
	LowMax    int
	MediumMax int
}

type HeatmapCell struct {
	Day       string    `json:"day"`
	DayIndex  int       `json:"day_index"`
	Hour      int       `json:"hour"`
	Count     int       `json:"count"`
	Intensity Intensity `json:"intensity"`
}

// Heatmap always holds 168 cells, Sunday through Saturday, hours 0 to 23
type Heatmap struct {
	Cells    []HeatmapCell `json:"cells"`
	Max      int           `json:"max"`
	Total    int           `json:"total"`
	Timezone string        `json:"timezone"`
}

// Cell returns the cell for a weekday and hour. A day or hour out of range, or a
// heatmap without its full grid, yields the zero cell.
func (h Heatmap) Cell(day time.Weekday, hour int) HeatmapCell {
	if day < time.Sunday || day > time.Saturday || hour < 0 || hour >= hoursPerDay {
		return HeatmapCell{}
	}
	idx := int(day)*hoursPerDay + hour
	if idx >= len(h.Cells) {
		return HeatmapCell{}
	}
	return h.Cells[idx]
}

// BuildHeatmap buckets the timestamps inside the window by weekday and hour in opts.Location
func BuildHeatmap(timestamps []time.Time, window Window, opts HeatmapOptions) Heatmap {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	var counts [HeatmapCells]int
	total := 0
	for _, ts := range timestamps {
		if !window.Contains(ts) {
			continue
		}
		local := ts.In(loc)
		counts[int(local.Weekday())*hoursPerDay+local.Hour()]++
		total++
	}

	maxCount := 0
	for _, c := range counts {
		maxCount = max(maxCount, c)
	}

	h := Heatmap{
		Cells:    make([]HeatmapCell, 0, HeatmapCells),
		Max:      maxCount,
		Total:    total,
		Timezone: loc.String(),
	}
	for day := 0; day < daysPerWeek; day++ {
		for hour := 0; hour < hoursPerDay; hour++ {
			c := counts[day*hoursPerDay+hour]
			h.Cells = append(h.Cells, HeatmapCell{
				Day:       time.Weekday(day).String(),
				DayIndex:  day,
				Hour:      hour,
				Count:     c,
				Intensity: classifyIntensity(c, maxCount, opts),
			})
		}
	}
	return h
}

func classifyIntensity(count, maxCount int, opts HeatmapOptions) Intensity {
	if count <= 0 {
		return IntensityNone
	}
	if opts.Policy == PolicyFixed {
		switch {
		case count <= opts.LowMax:
			return IntensityLow
		case count <= opts.MediumMax:
			return IntensityMedium
		default:
			return IntensityHigh
		}
	}
	switch {
	case 3*count <= maxCount:
		return IntensityLow
	case 3*count <= 2*maxCount:
		return IntensityMedium
	default:
		return IntensityHigh
	}
}

// ParseHeatmapOptions builds options from configuration values
func ParseHeatmapOptions(timezone, policy string, lowMax, mediumMax int) (HeatmapOptions, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return HeatmapOptions{}, fmt.Errorf("heatmap timezone: %w", err)
	}
	p := IntensityPolicy(policy)
	if p != PolicyTertile && p != PolicyFixed {
		return HeatmapOptions{}, fmt.Errorf("unknown heatmap policy %q", policy)
	}
	return HeatmapOptions{Location: loc, Policy: p, LowMax: lowMax, MediumMax: mediumMax}, nil
}
