// Package aggregator groups usage records along one or more dimensions and
// accumulates numeric sums, record counts and sets of observed categorical
// values per group.
//
// Every report runs through the same engine, parameterized only by which
// dimensions, measures and sets it needs.
//
// Example usage:
//
//	agg := aggregator.New(aggregator.Config{
//	    Dimensions: []aggregator.Dimension{aggregator.DimUser, aggregator.DimDate, aggregator.DimModel},
//	    Measures:   []string{"prompts_used", "flex_credits_used"},
//	})
//	agg.AddAll(records)
//
//	for _, b := range agg.Buckets() {
//	    fmt.Println(b.Key, b.Count, b.Sums["prompts_used"])
//	}
package aggregator

import (
	"strings"

	"github.com/0xmhha/usage-report/pkg/record"
)

// MeasureCount is the pseudo-measure accepted by Top to rank on Bucket.Count.
const MeasureCount = "count"

// Dimension names one component of a group key.
//
// The value is read from Field unless Derive is set, in which case Derive
// computes it from the whole record. Empty values become record.Unknown.
type Dimension struct {
	Name   string
	Field  string
	Derive func(record.Record) string

	// OmitEmpty drops blank values instead of recording record.Unknown.
	// Only honoured for sets; key components are never omitted.
	OmitEmpty bool
}

// Predefined dimensions for the analytics data sources.
var (
	DimUser          = Dimension{Name: "api_key", Field: "api_key"}
	DimDate          = Dimension{Name: "date", Field: "date"}
	DimModel         = Dimension{Name: "model", Field: "model"}
	DimLanguage      = Dimension{Name: "language", Field: "language"}
	DimIDE           = Dimension{Name: "ide", Field: "ide"}
	DimCommandSource = Dimension{Name: "command_source", Field: "command_source"}
	DimHour          = Dimension{
		Name: "hour",
		Derive: func(r record.Record) string {
			if !r.Has("hour") {
				return record.Unknown
			}
			return record.HourOfDay(r.String("hour"))
		},
	}
)

// Set collects the distinct values of a categorical field per bucket.
type Set Dimension

// SetOf turns a dimension into a set collector with the given name.
func SetOf(name string, d Dimension) Set {
	s := Set(d)
	s.Name = name
	return s
}

// Config contains aggregator configuration.
type Config struct {
	// Dimensions form the group key, in order. No dimensions yields a single
	// bucket with an empty key.
	Dimensions []Dimension

	// Measures are the numeric fields summed per bucket.
	Measures []string

	// Sets are the categorical fields whose distinct values are kept per bucket.
	Sets []Set
}

// GroupKey is the ordered tuple of dimension values identifying a bucket.
type GroupKey []string

// String joins the key components with "|".
func (k GroupKey) String() string {
	return strings.Join(k, "|")
}

// Bucket holds the accumulated values for one group.
type Bucket struct {
	// Key identifies the bucket.
	Key GroupKey

	// Count is the number of records absorbed.
	Count int

	// Sums maps measure name to its total.
	Sums map[string]float64

	// Sets maps set name to its distinct values, sorted.
	Sets map[string][]string

	dims []string
}

// Value returns the key component for the named dimension, or "" when the
// bucket was not grouped on it.
func (b Bucket) Value(dimension string) string {
	for i, name := range b.dims {
		if name == dimension && i < len(b.Key) {
			return b.Key[i]
		}
	}
	return ""
}

// Sum returns the total of a measure, 0 when it was never observed.
func (b Bucket) Sum(measure string) float64 {
	return b.Sums[measure]
}

// Aggregator accumulates records into buckets.
//
// An Aggregator is owned by a single aggregation pass and is not safe for
// concurrent use.
type Aggregator interface {
	// Add folds a record into its bucket, creating the bucket on first sight.
	Add(r record.Record)

	// AddAll adds every record in order.
	AddAll(records []record.Record)

	// Buckets returns a snapshot of all buckets sorted by key.
	Buckets() []Bucket

	// Bucket returns the bucket for a key.
	Bucket(key GroupKey) (Bucket, bool)

	// Totals returns a single bucket summing every record added.
	Totals() Bucket

	// Len returns the number of buckets.
	Len() int

	// Reset clears all aggregated data.
	Reset()
}
