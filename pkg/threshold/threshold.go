// Package threshold ranks entities by their share of a usage limit and binds
// each one to the single highest tier it has crossed.
package threshold

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Entity is one row to classify.
type Entity struct {
	// ID identifies the entity; entities sharing an ID are classified once.
	ID string

	// Label is a display name (email or redacted key).
	Label string

	// Total is the accumulated usage compared against the limit.
	Total float64

	// Extra carries report-specific columns through classification untouched.
	Extra map[string]string
}

// Entry is a classified entity.
type Entry struct {
	Entity

	// Percent is Total as a percentage of the limit.
	Percent float64

	// Tier is the label of the highest threshold crossed, e.g. "95%".
	Tier string
}

// Report is the read-only result of Classify.
type Report struct {
	// Limit is the absolute limit the entities were measured against.
	Limit float64

	// Tiers lists tier labels from highest to lowest.
	Tiers []string

	// Entries holds flagged entities sorted by Percent descending.
	Entries []Entry

	// TierCounts maps tier label to the number of entities newly bound to it.
	TierCounts map[string]int
}

// Classify assigns each entity to the highest threshold whose absolute value
// (pct/100 * limit) its total meets or exceeds. Entities crossing no
// threshold are left out. Tiers are bound per ID: every entity sharing an ID
// with a flagged entity is reported with that tier, and counted once.
func Classify(entities []Entity, limit float64, percents []float64) (*Report, error) {
	if limit <= 0 || math.IsNaN(limit) || math.IsInf(limit, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLimit, limit)
	}
	if err := validatePercents(percents); err != nil {
		return nil, err
	}

	ordered := make([]float64, len(percents))
	copy(ordered, percents)
	sort.Sort(sort.Reverse(sort.Float64Slice(ordered)))

	report := &Report{
		Limit:      limit,
		Tiers:      make([]string, 0, len(ordered)),
		TierCounts: make(map[string]int, len(ordered)),
	}

	tierOf := make(map[string]string)
	for _, pct := range ordered {
		label := Label(pct)
		if _, dup := report.TierCounts[label]; dup {
			continue
		}
		report.Tiers = append(report.Tiers, label)
		report.TierCounts[label] = 0

		cutoff := pct / 100 * limit
		for _, e := range entities {
			if _, done := tierOf[e.ID]; done {
				continue
			}
			if e.Total >= cutoff {
				tierOf[e.ID] = label
				report.TierCounts[label]++
			}
		}
	}

	for _, e := range entities {
		tier, ok := tierOf[e.ID]
		if !ok {
			continue
		}
		report.Entries = append(report.Entries, Entry{
			Entity:  e,
			Percent: e.Total / limit * 100,
			Tier:    tier,
		})
	}

	sort.SliceStable(report.Entries, func(i, j int) bool {
		return report.Entries[i].Percent > report.Entries[j].Percent
	})

	return report, nil
}

// Top returns the first n entries, the highest percentages.
func (r *Report) Top(n int) []Entry {
	if n <= 0 || n >= len(r.Entries) {
		return r.Entries
	}
	return r.Entries[:n]
}

// Label renders a threshold percentage as a tier label without trailing zeros.
func Label(pct float64) string {
	return strconv.FormatFloat(pct, 'f', -1, 64) + "%"
}

// ParsePercents parses a comma-separated list such as "75,85,95".
func ParsePercents(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSuffix(p, "%"), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidThreshold, p)
		}
		out = append(out, v)
	}
	if err := validatePercents(out); err != nil {
		return nil, err
	}
	return out, nil
}

func validatePercents(percents []float64) error {
	if len(percents) == 0 {
		return fmt.Errorf("%w: no thresholds given", ErrInvalidThreshold)
	}
	for _, p := range percents {
		if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("%w: %v", ErrInvalidThreshold, p)
		}
	}
	return nil
}
