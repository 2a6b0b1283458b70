package report

import (
	"context"

	"github.com/0xmhha/usage-report/pkg/aggregator"
	"github.com/0xmhha/usage-report/pkg/analytics"
	"github.com/0xmhha/usage-report/pkg/daterange"
	"github.com/0xmhha/usage-report/pkg/identity"
	"github.com/0xmhha/usage-report/pkg/manifest"
	"github.com/0xmhha/usage-report/pkg/record"
)

const (
	fieldAcceptances   = "num_acceptances"
	fieldLinesAccepted = "num_lines_accepted"
	fieldBytesAccepted = "num_bytes_accepted"
)

var autocompleteFields = []string{
	"api_key", "date", "hour", "language", "ide", "version",
	fieldAcceptances, fieldLinesAccepted, fieldBytesAccepted,
}

// WindowOptions configures the reports that query a date window for an
// optional set of accounts.
type WindowOptions struct {
	Range daterange.Range

	// Accounts restricts the report. Empty means all accounts.
	Accounts []string

	// MappingFile overrides the mapping lookup.
	MappingFile string

	// FullJSON also writes the complete analysis as JSON.
	FullJSON bool
}

// Measures is the JSON form of one group's accumulated values.
type Measures map[string]interface{}

// Analysis is the JSON form of an autocomplete or command-bytes run.
type Analysis struct {
	Totals     map[string]float64  `json:"totals"`
	ByUser     map[string]Measures `json:"by_user"`
	ByLanguage map[string]Measures `json:"by_language"`
	ByIDE      map[string]Measures `json:"by_ide"`
	ByDate     map[string]Measures `json:"by_date"`
	ByHour     map[string]Measures `json:"by_hour,omitempty"`
}

// AutocompleteTables holds the autocomplete exports.
type AutocompleteTables struct {
	ByUser     *Table
	ByLanguage *Table
	ByHour     *Table
	Analysis   *Analysis

	Records int
	IDEs    int
}

// userDimension groups by display identity: the mapped email, or the
// redacted key.
func userDimension(res *identity.Resolver) aggregator.Dimension {
	return aggregator.Dimension{
		Name: "user",
		Derive: func(r record.Record) string {
			return res.Display(r.String("api_key"))
		},
	}
}

// AutocompleteQuery returns the autocomplete query for a window.
func AutocompleteQuery(rng daterange.Range) analytics.Query {
	return analytics.NewQuery(analytics.DataSourceUser, rng.Start, rng.End, autocompleteFields...)
}

// BuildAutocomplete aggregates acceptance records per user, language, IDE,
// date and hour.
func BuildAutocomplete(records []record.Record, res *identity.Resolver) *AutocompleteTables {
	user := userDimension(res)
	measures := []string{fieldAcceptances, fieldLinesAccepted, fieldBytesAccepted}

	agg := aggregator.New(aggregator.Config{
		Dimensions: []aggregator.Dimension{user, aggregator.DimLanguage, aggregator.DimIDE, aggregator.DimDate, aggregator.DimHour},
		Measures:   measures,
		Sets: []aggregator.Set{
			aggregator.SetOf("languages", aggregator.DimLanguage),
			aggregator.SetOf("ides", aggregator.DimIDE),
			aggregator.SetOf("active_hours", aggregator.DimHour),
		},
	})
	agg.AddAll(records)
	buckets := agg.Buckets()

	sums := func(b aggregator.Bucket) []string {
		return []string{
			Number(b.Sum(fieldAcceptances)),
			Number(b.Sum(fieldLinesAccepted)),
			Number(b.Sum(fieldBytesAccepted)),
		}
	}
	measureMap := func(b aggregator.Bucket) Measures {
		return Measures{
			"acceptances":    b.Sum(fieldAcceptances),
			"lines_accepted": b.Sum(fieldLinesAccepted),
			"bytes_accepted": b.Sum(fieldBytesAccepted),
		}
	}

	out := &AutocompleteTables{
		ByUser:     NewTable("user", "acceptances", "lines_accepted", "bytes_accepted", "languages", "ides", "active_hours"),
		ByLanguage: NewTable("language", "acceptances", "lines_accepted", "bytes_accepted"),
		ByHour:     NewTable("hour", "acceptances", "lines_accepted", "bytes_accepted"),
		Analysis:   newAnalysis(),
		Records:    len(records),
	}

	for _, b := range aggregator.Rollup(buckets, user.Name) {
		name := b.Value(user.Name)
		out.ByUser.Append(append(append([]string{name}, sums(b)...),
			List(b.Sets["languages"]), List(b.Sets["ides"]), List(b.Sets["active_hours"]))...)

		mm := measureMap(b)
		mm["languages"] = b.Sets["languages"]
		mm["ides"] = b.Sets["ides"]
		mm["active_hours"] = b.Sets["active_hours"]
		out.Analysis.ByUser[name] = mm
	}

	for _, b := range aggregator.Rollup(buckets, aggregator.DimLanguage.Name) {
		name := b.Value(aggregator.DimLanguage.Name)
		out.ByLanguage.Append(append([]string{name}, sums(b)...)...)
		out.Analysis.ByLanguage[name] = measureMap(b)
	}

	for _, b := range aggregator.Rollup(buckets, aggregator.DimHour.Name) {
		name := b.Value(aggregator.DimHour.Name)
		out.ByHour.Append(append([]string{name}, sums(b)...)...)
		out.Analysis.ByHour[name] = measureMap(b)
	}

	ides := aggregator.Rollup(buckets, aggregator.DimIDE.Name)
	for _, b := range ides {
		out.Analysis.ByIDE[b.Value(aggregator.DimIDE.Name)] = measureMap(b)
	}
	out.IDEs = len(ides)

	for _, b := range aggregator.Rollup(buckets, aggregator.DimDate.Name) {
		out.Analysis.ByDate[b.Value(aggregator.DimDate.Name)] = measureMap(b)
	}

	totals := agg.Totals()
	out.Analysis.Totals = map[string]float64{
		"records":        float64(totals.Count),
		"acceptances":    totals.Sum(fieldAcceptances),
		"lines_accepted": totals.Sum(fieldLinesAccepted),
		"bytes_accepted": totals.Sum(fieldBytesAccepted),
	}

	return out
}

func newAnalysis() *Analysis {
	return &Analysis{
		ByUser:     make(map[string]Measures),
		ByLanguage: make(map[string]Measures),
		ByIDE:      make(map[string]Measures),
		ByDate:     make(map[string]Measures),
		ByHour:     make(map[string]Measures),
	}
}

// Autocomplete analyzes tab acceptances for a window.
func (r *Reporter) Autocomplete(ctx context.Context, opts WindowOptions) (*Output, error) {
	res := r.resolver(opts.MappingFile)

	result, err := r.fetch(ctx, analytics.Request{
		Query:    AutocompleteQuery(opts.Range),
		Accounts: opts.Accounts,
	})
	if err != nil {
		return nil, err
	}

	tables := BuildAutocomplete(result.Records, res)
	totals := tables.Analysis.Totals

	out := &Output{Summary: Summary{Title: "Autocomplete Analysis Summary"}}
	out.field("Date range", opts.Range.String())
	out.field("Total records", tables.Records)
	out.field("Total acceptances", int64(totals["acceptances"]))
	out.field("Total lines accepted", int64(totals["lines_accepted"]))
	out.field("Total bytes accepted", int64(totals["bytes_accepted"]))
	out.field("Unique users", tables.ByUser.Len())
	out.field("Languages used", tables.ByLanguage.Len())
	out.field("IDEs used", tables.IDEs)

	if tables.Records == 0 {
		out.Empty = true
		r.finish("autocomplete")
		return out, nil
	}

	base := r.namer.Window("autocomplete_analysis", opts.Range)
	// The by-user file goes last so it becomes the latest of its kind.
	exports := []struct {
		suffix string
		table  *Table
	}{
		{"_by_language.csv", tables.ByLanguage},
		{"_by_hour.csv", tables.ByHour},
		{"_by_user.csv", tables.ByUser},
	}
	for _, e := range exports {
		if err := e.table.WriteCSV(base + e.suffix); err != nil {
			return nil, err
		}
		r.publish(out, manifest.KindAutocomplete, base+e.suffix, &opts.Range)
	}

	if opts.FullJSON {
		path := base + "_full_analysis.json"
		if err := WriteJSON(path, tables.Analysis); err != nil {
			return nil, err
		}
		r.publish(out, manifest.KindAutocompleteSummary, path, &opts.Range)
	}

	r.finish("autocomplete")
	return out, nil
}
