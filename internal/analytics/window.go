// Package analytics computes funnel leakage, stage velocity, bottleneck and heatmap
// summaries from a point-in-time snapshot of the lead stage ledger.
package analytics

import (
	"fmt"
	"strings"
	"time"
)

// Window is an inclusive time range. To doubles as the snapshot bound and as "now"
// for visits that are still open.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports whether t falls inside the window
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

// futureSkew is how far past the server clock a window may end
const futureSkew = time.Minute

// Validate rejects windows that would make the aggregation meaningless
func (w Window) Validate(now time.Time) error {
	if w.To.IsZero() {
		return fmt.Errorf("%w: missing end bound", ErrInvalidWindow)
	}
	if w.From.After(w.To) {
		return fmt.Errorf("%w: from %s is after to %s", ErrInvalidWindow,
			w.From.Format(time.RFC3339), w.To.Format(time.RFC3339))
	}
	if w.To.After(now.Add(futureSkew)) {
		return fmt.Errorf("%w: to %s is in the future", ErrInvalidWindow, w.To.Format(time.RFC3339))
	}
	return nil
}

// Range presets accepted by ParseWindow
const (
	Range7Days  = "7d"
	Range30Days = "30d"
	Range90Days = "90d"
	RangeAll    = "all"
)

var presetDurations = map[string]time.Duration{
	Range7Days:  7 * 24 * time.Hour,
	Range30Days: 30 * 24 * time.Hour,
	Range90Days: 90 * 24 * time.Hour,
}

// allTimeStart is the lower bound used for the "all" preset
var allTimeStart = time.Unix(0, 0).UTC()

// PresetWindow returns the window for a named preset ending at now
func PresetWindow(preset string, now time.Time) (Window, error) {
	now = now.UTC()
	if preset == RangeAll {
		return Window{From: allTimeStart, To: now}, nil
	}
	d, ok := presetDurations[preset]
	if !ok {
		return Window{}, fmt.Errorf("%w: unknown range %q", ErrInvalidWindow, preset)
	}
	return Window{From: now.Add(-d), To: now}, nil
}

// ParseWindow builds a window from request parameters. Explicit from/to bounds win over
// the preset; a missing from is derived from defaultRange, a missing to is now.
// Date-only bounds cover the whole day.
func ParseWindow(preset, from, to string, now time.Time, defaultRange string) (Window, error) {
	now = now.UTC()
	from, to, preset = strings.TrimSpace(from), strings.TrimSpace(to), strings.TrimSpace(preset)

	if from == "" && to == "" {
		if preset == "" {
			preset = defaultRange
		}
		return PresetWindow(preset, now)
	}

	w := Window{To: now}
	if to != "" {
		t, dateOnly, err := parseBound(to)
		if err != nil {
			return Window{}, err
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
			if t.After(now) {
				t = now
			}
		}
		w.To = t
	}

	if from != "" {
		t, _, err := parseBound(from)
		if err != nil {
			return Window{}, err
		}
		w.From = t
	} else {
		if preset == "" {
			preset = defaultRange
		}
		base, err := PresetWindow(preset, w.To)
		if err != nil {
			return Window{}, err
		}
		w.From = base.From
	}

	if err := w.Validate(now); err != nil {
		return Window{}, err
	}
	return w, nil
}

func parseBound(s string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), false, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), true, nil
	}
	return time.Time{}, false, fmt.Errorf("%w: cannot parse %q, expected RFC 3339 or YYYY-MM-DD", ErrInvalidWindow, s)
}
