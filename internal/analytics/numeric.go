package analytics

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// NumericParseError is returned when a query layer value cannot be read as a number
type NumericParseError struct {
	Field string
	Value interface{}
	Err   error
}

func (e *NumericParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("cannot parse %s value %v as number: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("cannot parse %v as number: %v", e.Value, e.Err)
}

func (e *NumericParseError) Unwrap() error { return e.Err }

var errNotFinite = errors.New("value is not finite")

// ParseNumeric normalizes numeric values that database functions and drivers return
// as text, bytes or native numbers. NULL, NaN and infinities are errors; callers
// decide what absence means.
func ParseNumeric(v interface{}) (float64, error) {
	f, err := parseNumeric(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &NumericParseError{Value: v, Err: errNotFinite}
	}
	return f, nil
}

func parseNumeric(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case decimal.Decimal:
		return n.InexactFloat64(), nil
	case string:
		return parseDecimalText(n)
	case []byte:
		return parseDecimalText(string(n))
	case nil:
		return 0, &NumericParseError{Value: v, Err: fmt.Errorf("value is null")}
	default:
		return 0, &NumericParseError{Value: v, Err: fmt.Errorf("unsupported type %T", v)}
	}
}

// ParseNumericField is ParseNumeric with the source column attached to the error
func ParseNumericField(field string, v interface{}) (float64, error) {
	f, err := ParseNumeric(v)
	if err != nil {
		if pe, ok := err.(*NumericParseError); ok {
			pe.Field = field
		}
		return 0, err
	}
	return f, nil
}

func parseDecimalText(s string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, &NumericParseError{Value: s, Err: err}
	}
	return d.InexactFloat64(), nil
}
