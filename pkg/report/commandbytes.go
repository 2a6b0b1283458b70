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
	fieldBytesAdded   = "bytes_added"
	fieldBytesRemoved = "bytes_removed"
	fieldLinesAdded   = "lines_added"
	fieldLinesRemoved = "lines_removed"
)

var commandFields = []string{
	"api_key", "date", "timestamp", "language", "ide", "command_source", "provider_source",
	fieldBytesAdded, fieldBytesRemoved, fieldLinesAdded, fieldLinesRemoved, "accepted",
}

// CommandTables holds the command-bytes exports.
type CommandTables struct {
	ByUser     *Table
	ByLanguage *Table
	ByDate     *Table
	Analysis   *Analysis

	Commands int
	IDEs     int
}

// NetBytes is bytes added minus bytes removed over every command.
func (t *CommandTables) NetBytes() float64 {
	return t.Analysis.Totals["bytes_added"] - t.Analysis.Totals["bytes_removed"]
}

// CommandQuery returns the command data query for a window.
func CommandQuery(rng daterange.Range) analytics.Query {
	return analytics.NewQuery(analytics.DataSourceCommand, rng.Start, rng.End, commandFields...)
}

// BuildCommandBytes aggregates command records per user, language, IDE and
// date. Each record is one command.
func BuildCommandBytes(records []record.Record, res *identity.Resolver) *CommandTables {
	user := userDimension(res)

	agg := aggregator.New(aggregator.Config{
		Dimensions: []aggregator.Dimension{user, aggregator.DimLanguage, aggregator.DimIDE, aggregator.DimDate},
		Measures:   []string{fieldBytesAdded, fieldBytesRemoved, fieldLinesAdded, fieldLinesRemoved},
		Sets: []aggregator.Set{
			aggregator.SetOf("languages", aggregator.DimLanguage),
			aggregator.SetOf("ides", aggregator.DimIDE),
		},
	})
	agg.AddAll(records)
	buckets := agg.Buckets()

	brief := func(b aggregator.Bucket) []string {
		return []string{Number(float64(b.Count)), Number(b.Sum(fieldBytesAdded)), Number(b.Sum(fieldBytesRemoved))}
	}
	briefMap := func(b aggregator.Bucket) Measures {
		return Measures{
			"commands":      b.Count,
			"bytes_added":   b.Sum(fieldBytesAdded),
			"bytes_removed": b.Sum(fieldBytesRemoved),
		}
	}

	out := &CommandTables{
		ByUser:     NewTable("user", "commands", "bytes_added", "bytes_removed", "lines_added", "lines_removed", "languages", "ides"),
		ByLanguage: NewTable("language", "commands", "bytes_added", "bytes_removed"),
		ByDate:     NewTable("date", "commands", "bytes_added", "bytes_removed"),
		Analysis:   newAnalysis(),
		Commands:   len(records),
	}
	out.Analysis.ByHour = nil

	for _, b := range aggregator.Rollup(buckets, user.Name) {
		name := b.Value(user.Name)
		row := append([]string{name}, brief(b)...)
		row = append(row,
			Number(b.Sum(fieldLinesAdded)), Number(b.Sum(fieldLinesRemoved)),
			List(b.Sets["languages"]), List(b.Sets["ides"]))
		out.ByUser.Append(row...)

		mm := briefMap(b)
		mm["lines_added"] = b.Sum(fieldLinesAdded)
		mm["lines_removed"] = b.Sum(fieldLinesRemoved)
		mm["languages"] = b.Sets["languages"]
		mm["ides"] = b.Sets["ides"]
		out.Analysis.ByUser[name] = mm
	}

	for _, b := range aggregator.Rollup(buckets, aggregator.DimLanguage.Name) {
		name := b.Value(aggregator.DimLanguage.Name)
		out.ByLanguage.Append(append([]string{name}, brief(b)...)...)
		out.Analysis.ByLanguage[name] = briefMap(b)
	}

	for _, b := range aggregator.Rollup(buckets, aggregator.DimDate.Name) {
		name := b.Value(aggregator.DimDate.Name)
		out.ByDate.Append(append([]string{name}, brief(b)...)...)
		out.Analysis.ByDate[name] = briefMap(b)
	}

	ides := aggregator.Rollup(buckets, aggregator.DimIDE.Name)
	for _, b := range ides {
		out.Analysis.ByIDE[b.Value(aggregator.DimIDE.Name)] = briefMap(b)
	}
	out.IDEs = len(ides)

	totals := agg.Totals()
	out.Analysis.Totals = map[string]float64{
		"commands":      float64(totals.Count),
		"bytes_added":   totals.Sum(fieldBytesAdded),
		"bytes_removed": totals.Sum(fieldBytesRemoved),
		"lines_added":   totals.Sum(fieldLinesAdded),
		"lines_removed": totals.Sum(fieldLinesRemoved),
	}

	return out
}

// CommandBytes analyzes bytes changed by commands for a window.
func (r *Reporter) CommandBytes(ctx context.Context, opts WindowOptions) (*Output, error) {
	res := r.resolver(opts.MappingFile)

	result, err := r.fetch(ctx, analytics.Request{
		Query:    CommandQuery(opts.Range),
		Accounts: opts.Accounts,
	})
	if err != nil {
		return nil, err
	}

	tables := BuildCommandBytes(result.Records, res)
	totals := tables.Analysis.Totals

	out := &Output{Summary: Summary{Title: "Command Bytes Analysis Summary"}}
	out.field("Date range", opts.Range.String())
	out.field("Total commands", tables.Commands)
	out.field("Total bytes added", int64(totals["bytes_added"]))
	out.field("Total bytes removed", int64(totals["bytes_removed"]))
	out.field("Net bytes", int64(tables.NetBytes()))
	out.field("Total lines added", int64(totals["lines_added"]))
	out.field("Total lines removed", int64(totals["lines_removed"]))
	out.field("Unique users", tables.ByUser.Len())
	out.field("Languages used", tables.ByLanguage.Len())
	out.field("IDEs used", tables.IDEs)

	if tables.Commands == 0 {
		out.Empty = true
		r.finish("command_bytes")
		return out, nil
	}

	base := r.namer.Window("command_bytes_analysis", opts.Range)
	exports := []struct {
		suffix string
		table  *Table
	}{
		{"_by_language.csv", tables.ByLanguage},
		{"_by_date.csv", tables.ByDate},
		{"_by_user.csv", tables.ByUser},
	}
	for _, e := range exports {
		if err := e.table.WriteCSV(base + e.suffix); err != nil {
			return nil, err
		}
		r.publish(out, manifest.KindCommandBytes, base+e.suffix, &opts.Range)
	}

	if opts.FullJSON {
		path := base + "_full_analysis.json"
		if err := WriteJSON(path, tables.Analysis); err != nil {
			return nil, err
		}
		r.publish(out, manifest.KindCommandBytesSummary, path, &opts.Range)
	}

	r.finish("command_bytes")
	return out, nil
}
