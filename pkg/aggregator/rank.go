package aggregator

import (
	"sort"
)

// Rollup re-groups buckets on a subset of their dimensions, summing counts
// and measures and merging sets. Dimensions the buckets were not grouped on
// contribute an empty key component.
//
// Used to derive per-user summaries from user/date/model buckets without a
// second pass over the records.
func Rollup(buckets []Bucket, dimensions ...string) []Bucket {
	merged := make(map[string]*group)
	order := make([]string, 0)

	for _, b := range buckets {
		key := make(GroupKey, len(dimensions))
		for i, d := range dimensions {
			key[i] = b.Value(d)
		}
		id := mapID(key)

		g, ok := merged[id]
		if !ok {
			g = newGroup(key)
			merged[id] = g
			order = append(order, id)
		}

		g.count += b.Count
		for m, v := range b.Sums {
			g.sums[m] += v
		}
		for name, values := range b.Sets {
			set, ok := g.sets[name]
			if !ok {
				set = make(map[string]struct{})
				g.sets[name] = set
			}
			for _, v := range values {
				set[v] = struct{}{}
			}
		}
	}

	result := make([]Bucket, 0, len(order))
	for _, id := range order {
		result = append(result, merged[id].snapshot(dimensions))
	}

	sortBuckets(result)
	return result
}

// Top returns the n buckets with the largest value of measure, descending.
// Ties keep key order. n <= 0 returns every bucket ranked.
func Top(buckets []Bucket, measure string, n int) []Bucket {
	ranked := make([]Bucket, len(buckets))
	copy(ranked, buckets)
	sortBuckets(ranked)

	value := func(b Bucket) float64 {
		if measure == MeasureCount {
			return float64(b.Count)
		}
		return b.Sums[measure]
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return value(ranked[i]) > value(ranked[j])
	})

	if n > 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}
