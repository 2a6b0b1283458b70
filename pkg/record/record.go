// Package record defines the flat usage record produced by flattening
// analytics response envelopes, plus the lenient accessors every report uses
// to read it.
package record

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Unknown is substituted for missing categorical values.
const Unknown = "unknown"

// Record maps a field name to a scalar value (string, integer or float).
type Record map[string]any

// Number returns the field as a non-negative float64.
//
// Absent, null, empty and unparseable values read as 0. Numbers arrive from
// the service as JSON strings as often as JSON numbers, so both are accepted.
func (r Record) Number(field string) float64 {
	return ToNumber(r[field])
}

// String returns the field as a string, or Unknown when it is absent, null
// or empty.
func (r Record) String(field string) string {
	return ToString(r[field])
}

// Has reports whether the field is present with a non-null value.
func (r Record) Has(field string) bool {
	v, ok := r[field]
	return ok && v != nil
}

// ToNumber coerces an arbitrary decoded JSON value to a non-negative float64.
func ToNumber(v any) float64 {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		f = parsed
	case bool:
		return 0
	default:
		return 0
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

// ToString renders a decoded JSON scalar as a string. Missing values become
// Unknown.
func ToString(v any) string {
	switch s := v.(type) {
	case nil:
		return Unknown
	case string:
		if strings.TrimSpace(s) == "" {
			return Unknown
		}
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case json.Number:
		return s.String()
	default:
		out := fmt.Sprint(s)
		if out == "" {
			return Unknown
		}
		return out
	}
}

// HourOfDay extracts the two-digit hour from a timestamp shaped like
// "2025-01-15 14:32:05 +0000 UTC". Anything that does not have a second
// whitespace-separated token starting with two digits yields Unknown.
func HourOfDay(ts string) string {
	fields := strings.Fields(ts)
	if len(fields) < 2 {
		return Unknown
	}
	clock := fields[1]
	if len(clock) < 2 {
		return Unknown
	}
	hour := clock[:2]
	n, err := strconv.Atoi(hour)
	if err != nil || n < 0 || n > 23 {
		return Unknown
	}
	return hour
}
