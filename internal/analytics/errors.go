package analytics

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidWindow is an input error: the requested window is malformed
	ErrInvalidWindow = errors.New("invalid analytics window")

	// ErrUpstream marks a failed or timed out ledger, lead, stage or activity query
	ErrUpstream = errors.New("analytics upstream failure")
)

// AggregationError is the single failure returned when any sub-query of a summary
// fails. No partial summary accompanies it.
type AggregationError struct {
	// Source names the sub-query that failed first
	Source  string
	Timeout bool
	Err     error
}

func (e *AggregationError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("analytics aggregation timed out while querying %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("analytics aggregation failed while querying %s: %v", e.Source, e.Err)
}

// Unwrap exposes both ErrUpstream and the underlying cause to errors.Is
func (e *AggregationError) Unwrap() []error {
	return []error{ErrUpstream, e.Err}
}
