package aggregator

import (
	"sort"
	"strings"

	"github.com/0xmhha/usage-report/pkg/record"
)

// aggregator implements the Aggregator interface.
type aggregator struct {
	config Config
	dims   []string

	groups map[string]*group
	totals *group
}

// group is the mutable form of a Bucket.
type group struct {
	key   GroupKey
	count int
	sums  map[string]float64
	sets  map[string]map[string]struct{}
}

// New creates a new aggregator.
func New(cfg Config) Aggregator {
	dims := make([]string, len(cfg.Dimensions))
	for i, d := range cfg.Dimensions {
		dims[i] = d.Name
	}

	a := &aggregator{config: cfg, dims: dims}
	a.Reset()
	return a
}

// Add implements Aggregator.Add.
func (a *aggregator) Add(r record.Record) {
	key := a.keyOf(r)
	id := mapID(key)

	g, exists := a.groups[id]
	if !exists {
		g = newGroup(key)
		a.groups[id] = g
	}

	a.absorb(g, r)
	a.absorb(a.totals, r)
}

// AddAll implements Aggregator.AddAll.
func (a *aggregator) AddAll(records []record.Record) {
	for _, r := range records {
		a.Add(r)
	}
}

// Buckets implements Aggregator.Buckets.
func (a *aggregator) Buckets() []Bucket {
	result := make([]Bucket, 0, len(a.groups))
	for _, g := range a.groups {
		result = append(result, g.snapshot(a.dims))
	}

	sortBuckets(result)
	return result
}

// Bucket implements Aggregator.Bucket.
func (a *aggregator) Bucket(key GroupKey) (Bucket, bool) {
	g, ok := a.groups[mapID(key)]
	if !ok {
		return Bucket{}, false
	}
	return g.snapshot(a.dims), true
}

// Totals implements Aggregator.Totals.
func (a *aggregator) Totals() Bucket {
	return a.totals.snapshot(nil)
}

// Len implements Aggregator.Len.
func (a *aggregator) Len() int {
	return len(a.groups)
}

// Reset implements Aggregator.Reset.
func (a *aggregator) Reset() {
	a.groups = make(map[string]*group)
	a.totals = newGroup(GroupKey{})
}

func (a *aggregator) keyOf(r record.Record) GroupKey {
	key := make(GroupKey, len(a.config.Dimensions))
	for i, d := range a.config.Dimensions {
		key[i] = extract(d.Field, d.Derive, r)
	}
	return key
}

func (a *aggregator) absorb(g *group, r record.Record) {
	g.count++

	for _, m := range a.config.Measures {
		g.sums[m] += r.Number(m)
	}

	for _, s := range a.config.Sets {
		values, ok := g.sets[s.Name]
		if !ok {
			values = make(map[string]struct{})
			g.sets[s.Name] = values
		}
		if s.OmitEmpty && blank(s.Field, s.Derive, r) {
			continue
		}
		values[extract(s.Field, s.Derive, r)] = struct{}{}
	}
}

// extract reads one categorical value, substituting record.Unknown for blanks.
func extract(field string, derive func(record.Record) string, r record.Record) string {
	var v string
	if derive != nil {
		v = derive(r)
	} else {
		v = r.String(field)
	}
	if v == "" {
		return record.Unknown
	}
	return v
}

func blank(field string, derive func(record.Record) string, r record.Record) bool {
	if derive != nil {
		return derive(r) == ""
	}
	return !r.Has(field) || r.String(field) == record.Unknown
}

func newGroup(key GroupKey) *group {
	return &group{
		key:  key,
		sums: make(map[string]float64),
		sets: make(map[string]map[string]struct{}),
	}
}

// snapshot copies a group into an immutable Bucket.
func (g *group) snapshot(dims []string) Bucket {
	b := Bucket{
		Key:   append(GroupKey(nil), g.key...),
		Count: g.count,
		Sums:  make(map[string]float64, len(g.sums)),
		Sets:  make(map[string][]string, len(g.sets)),
		dims:  dims,
	}

	for m, v := range g.sums {
		b.Sums[m] = v
	}
	for name, values := range g.sets {
		b.Sets[name] = sortedKeys(values)
	}

	return b
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// mapID joins key components with NUL so values containing "|" cannot collide.
func mapID(key GroupKey) string {
	return strings.Join(key, "\x00")
}

// sortBuckets orders buckets by key component, left to right.
func sortBuckets(buckets []Bucket) {
	sort.Slice(buckets, func(i, j int) bool {
		return lessKey(buckets[i].Key, buckets[j].Key)
	})
}

func lessKey(a, b GroupKey) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
