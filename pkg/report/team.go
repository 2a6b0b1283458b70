package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/0xmhha/usage-report/pkg/aggregator"
	"github.com/0xmhha/usage-report/pkg/discovery"
	"github.com/0xmhha/usage-report/pkg/manifest"
	"github.com/0xmhha/usage-report/pkg/record"
)

// DefaultTeamInput is the results file the team report reads by default.
const DefaultTeamInput = "cascade_analytics_results"

const (
	fieldUserEmail     = "user_email"
	teamLinesAccepted  = "linesAccepted"
	teamLinesSuggested = "linesSuggested"
	teamMessagesSent   = "messagesSent"
	teamPromptsUsed    = "promptsUsed"
	teamToolCount      = "count"
)

var (
	dimUserEmail = aggregator.Dimension{Name: fieldUserEmail, Field: fieldUserEmail}
	dimTool      = aggregator.Dimension{Name: "tool", Field: "tool"}
)

// TeamOptions configures the team usage report.
type TeamOptions struct {
	// InputFile overrides the results lookup.
	InputFile string
}

type teamRows struct {
	Lines *struct {
		Rows []record.Record `json:"cascadeLines"`
	} `json:"cascadeLines"`
	Runs *struct {
		Rows []record.Record `json:"cascadeRuns"`
	} `json:"cascadeRuns"`
	Tools *struct {
		Rows []record.Record `json:"cascadeToolUsage"`
	} `json:"cascadeToolUsage"`
}

type teamResult struct {
	QueryResults []teamRows      `json:"queryResults"`
	Error        json.RawMessage `json:"error,omitempty"`
}

// TeamResults maps email to its cascade analytics results.
type TeamResults map[string]teamResult

// LoadTeamResults reads a team results file.
func LoadTeamResults(path string) (TeamResults, error) {
	// #nosec G304: path comes from CLI flags or the search directories
	data, err := os.ReadFile(path) // nolint:gosec
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var results TeamResults
	if err := dec.Decode(&results); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, path, err)
	}
	return results, nil
}

// TeamTables holds the team exports.
type TeamTables struct {
	Daily      *Table
	Aggregated *Table
	Models     *Table

	// Users counts emails with results; Skipped counts emails whose
	// results carry an error.
	Users   int
	Skipped int
}

// tag copies rows, adding the user email and mapping "day" to "date".
func tag(email string, rows []record.Record) []record.Record {
	out := make([]record.Record, 0, len(rows))
	for _, row := range rows {
		r := make(record.Record, len(row)+2)
		for k, v := range row {
			r[k] = v
		}
		r[fieldUserEmail] = email
		if day, ok := row["day"]; ok {
			r["date"] = day
		}
		out = append(out, r)
	}
	return out
}

// BuildTeam flattens per-user results into daily, aggregated and model
// usage tables.
func BuildTeam(results TeamResults) *TeamTables {
	models := aggregator.SetOf("models", aggregator.DimModel)
	models.OmitEmpty = true

	daily := aggregator.New(aggregator.Config{
		Dimensions: []aggregator.Dimension{dimUserEmail, aggregator.DimDate},
		Measures:   []string{teamLinesAccepted, teamLinesSuggested, teamMessagesSent, teamPromptsUsed},
		Sets:       []aggregator.Set{models},
	})
	byModel := aggregator.New(aggregator.Config{
		Dimensions: []aggregator.Dimension{dimUserEmail, aggregator.DimDate, aggregator.DimModel},
		Measures:   []string{teamMessagesSent, teamPromptsUsed},
	})
	tools := aggregator.New(aggregator.Config{
		Dimensions: []aggregator.Dimension{dimUserEmail, dimTool},
		Measures:   []string{teamToolCount},
	})

	tables := &TeamTables{}
	var emails []string

	for email, res := range results {
		if len(res.Error) > 0 && string(res.Error) != "null" {
			tables.Skipped++
			continue
		}
		emails = append(emails, email)

		for _, q := range res.QueryResults {
			switch {
			case q.Lines != nil:
				daily.AddAll(tag(email, q.Lines.Rows))
			case q.Runs != nil:
				runs := tag(email, q.Runs.Rows)
				daily.AddAll(runs)
				for _, run := range runs {
					if run.String("model") != record.Unknown {
						byModel.Add(run)
					}
				}
			case q.Tools != nil:
				tools.AddAll(tag(email, q.Tools.Rows))
			}
		}
	}
	sort.Strings(emails)
	tables.Users = len(emails)

	tables.Daily = NewTable(fieldUserEmail, "date", teamLinesAccepted, teamLinesSuggested,
		"percentage_accepted", "models", teamMessagesSent, teamPromptsUsed)
	dailyBuckets := daily.Buckets()
	for _, b := range dailyBuckets {
		tables.Daily.Append(
			b.Value(fieldUserEmail),
			b.Value(aggregator.DimDate.Name),
			Number(b.Sum(teamLinesAccepted)),
			Number(b.Sum(teamLinesSuggested)),
			Number(acceptance(b.Sum(teamLinesAccepted), b.Sum(teamLinesSuggested))),
			JSONList(b.Sets["models"]),
			Number(b.Sum(teamMessagesSent)),
			Number(b.Sum(teamPromptsUsed)),
		)
	}

	tables.Models = NewTable(fieldUserEmail, "date", "model", teamMessagesSent, teamPromptsUsed)
	for _, b := range byModel.Buckets() {
		tables.Models.Append(
			b.Value(fieldUserEmail),
			b.Value(aggregator.DimDate.Name),
			b.Value(aggregator.DimModel.Name),
			Number(b.Sum(teamMessagesSent)),
			Number(b.Sum(teamPromptsUsed)),
		)
	}

	tables.Aggregated = aggregated(emails, dailyBuckets, tools.Buckets())
	return tables
}

// aggregated builds one row per email with a total_<TOOL> column per tool
// seen anywhere. Tools a user never used are 0.
func aggregated(emails []string, dailyBuckets, toolBuckets []aggregator.Bucket) *Table {
	perUser := make(map[string]aggregator.Bucket)
	for _, b := range aggregator.Rollup(dailyBuckets, fieldUserEmail) {
		perUser[b.Value(fieldUserEmail)] = b
	}

	toolCounts := make(map[string]map[string]float64)
	toolSet := make(map[string]struct{})
	for _, b := range toolBuckets {
		email, tool := b.Value(fieldUserEmail), b.Value(dimTool.Name)
		if toolCounts[email] == nil {
			toolCounts[email] = make(map[string]float64)
		}
		toolCounts[email][tool] += b.Sum(teamToolCount)
		toolSet[tool] = struct{}{}
	}
	toolNames := make([]string, 0, len(toolSet))
	for tool := range toolSet {
		toolNames = append(toolNames, tool)
	}
	sort.Strings(toolNames)

	header := []string{fieldUserEmail, "total_linesAccepted", "total_linesSuggested",
		"total_percentageAccepted", "total_messagesSent", "total_promptsUsed"}
	for _, tool := range toolNames {
		header = append(header, "total_"+tool)
	}

	t := NewTable(header...)
	for _, email := range emails {
		b := perUser[email]
		row := []string{
			email,
			Number(b.Sum(teamLinesAccepted)),
			Number(b.Sum(teamLinesSuggested)),
			Number(acceptance(b.Sum(teamLinesAccepted), b.Sum(teamLinesSuggested))),
			Number(b.Sum(teamMessagesSent)),
			Number(b.Sum(teamPromptsUsed)),
		}
		for _, tool := range toolNames {
			row = append(row, Number(toolCounts[email][tool]))
		}
		t.Append(row...)
	}
	return t
}

// acceptance is accepted/suggested as a percentage rounded to 2 decimals,
// 0 when nothing was suggested.
func acceptance(accepted, suggested float64) float64 {
	if suggested <= 0 {
		return 0
	}
	return Round2(accepted / suggested * 100)
}

// Team generates the daily, aggregated and model usage CSVs from a team
// results file.
func (r *Reporter) Team(opts TeamOptions) (*Output, error) {
	input := opts.InputFile
	if input == "" {
		f, err := r.finder.Latest(DefaultTeamInput, ".json")
		if err != nil {
			if errors.Is(err, discovery.ErrNoFilesFound) {
				return nil, fmt.Errorf("%w: no %s.json in search directories", ErrInputNotFound, DefaultTeamInput)
			}
			return nil, err
		}
		input = f.Path
	}
	r.logger.Info("loading team results", "path", input)

	results, err := LoadTeamResults(input)
	if err != nil {
		return nil, err
	}

	tables := BuildTeam(results)

	out := &Output{Summary: Summary{Title: "Team Cascade Analytics"}}
	out.field("Input file", input)
	out.field("Users", tables.Users)
	out.field("Users with errors", tables.Skipped)
	out.field("Daily rows", tables.Daily.Len())
	out.field("Model usage rows", tables.Models.Len())

	exports := []struct {
		kind   string
		prefix string
		table  *Table
	}{
		{manifest.KindTeamDaily, "daily_user_analytics", tables.Daily},
		{manifest.KindTeamAggregated, "aggregated_user_analytics", tables.Aggregated},
		{manifest.KindTeamModelUsage, "model_usage_analytics", tables.Models},
	}

	for _, e := range exports {
		if e.table.Len() == 0 {
			r.logger.Info("no data to export", "report", e.prefix)
			continue
		}
		path := r.namer.Compact(e.prefix, "csv")
		if err := e.table.WriteCSV(path); err != nil {
			return nil, err
		}
		r.publish(out, e.kind, path, nil)
	}

	out.Empty = len(out.Files) == 0
	r.finish("team")
	return out, nil
}
