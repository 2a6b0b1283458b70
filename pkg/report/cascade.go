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

// Cascade measures.
const (
	fieldPrompts = "prompts_used"
	fieldFlex    = "flex_credits_used"
)

var cascadeFields = []string{"api_key", "date", fieldPrompts, fieldFlex, "model", "metadata"}

// CascadeOptions configures the cascade credit report.
type CascadeOptions struct {
	Range daterange.Range

	// Accounts restricts the report. Empty means every mapped account.
	Accounts []string

	// MappingFile overrides the mapping lookup.
	MappingFile string
}

// CascadeTables holds the cascade exports.
type CascadeTables struct {
	ByModelDate *Table
	ByUser      *Table

	// Items is the number of records aggregated.
	Items int

	// TotalPromptCredits is the sum of prompt credits over every user.
	TotalPromptCredits float64
}

// CascadeQuery returns the cascade data query for a window.
func CascadeQuery(rng daterange.Range) analytics.Query {
	return analytics.NewQuery(analytics.DataSourceCascade, rng.Start, rng.End, cascadeFields...)
}

// BuildCascade groups records by (api_key, date, model) and rolls them up per
// user. Credits are converted from hundredths on output; each record counts
// as one prompt sent.
func BuildCascade(records []record.Record, res *identity.Resolver) *CascadeTables {
	agg := aggregator.New(aggregator.Config{
		Dimensions: []aggregator.Dimension{aggregator.DimUser, aggregator.DimDate, aggregator.DimModel},
		Measures:   []string{fieldPrompts, fieldFlex},
	})
	agg.AddAll(records)
	buckets := agg.Buckets()

	email := func(key string) string {
		e, _ := res.Email(key)
		return e
	}

	byModelDate := NewTable("api_key", "email", "date", "model", "sum_flex_credits", "sum_prompt_credits", "total_prompts_sent")
	for _, b := range buckets {
		key := b.Value(aggregator.DimUser.Name)
		byModelDate.Append(
			key,
			email(key),
			b.Value(aggregator.DimDate.Name),
			b.Value(aggregator.DimModel.Name),
			Number(Credits(b.Sum(fieldFlex))),
			Number(Credits(b.Sum(fieldPrompts))),
			Number(float64(b.Count)),
		)
	}

	byUser := NewTable("api_key", "email", "total_prompts", "total_flex_credits", "total_prompt_credits")
	var total float64
	for _, b := range aggregator.Rollup(buckets, aggregator.DimUser.Name) {
		key := b.Value(aggregator.DimUser.Name)
		prompts := Credits(b.Sum(fieldPrompts))
		total += prompts
		byUser.Append(
			key,
			email(key),
			Number(float64(b.Count)),
			Number(Round2(Credits(b.Sum(fieldFlex)))),
			Number(Round2(prompts)),
		)
	}

	return &CascadeTables{
		ByModelDate:        byModelDate,
		ByUser:             byUser,
		Items:              len(records),
		TotalPromptCredits: Round2(total),
	}
}

// Cascade fetches cascade usage one account at a time and writes the raw
// responses, the per model/date CSV and the per user CSV.
func (r *Reporter) Cascade(ctx context.Context, opts CascadeOptions) (*Output, error) {
	m, _, err := r.Mapping(opts.MappingFile)
	if err != nil && len(opts.Accounts) == 0 {
		return nil, err
	}
	if err != nil {
		r.logger.Warn("no email mapping, email column will be empty", "error", err)
	}

	accounts := opts.Accounts
	if len(accounts) == 0 {
		for _, email := range m.Emails() {
			accounts = append(accounts, m[email])
		}
		accounts = dedupe(accounts)
	}
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}

	r.logger.Info("processing accounts", "accounts", len(accounts), "range", opts.Range.String())

	result, err := r.fetch(ctx, analytics.Request{
		Query:      CascadeQuery(opts.Range),
		Accounts:   accounts,
		PerAccount: true,
	})
	if err != nil {
		return nil, err
	}

	tables := BuildCascade(result.Records, identity.NewResolver(m))

	out := &Output{Summary: Summary{Title: "Cascade Usage " + opts.Range.String()}}
	out.field("Accounts queried", len(accounts))
	out.field("Failed requests", result.Failed)
	out.field("Total items processed", tables.Items)
	out.field("Unique aggregated entries", tables.ByModelDate.Len())
	out.field("Users with usage", tables.ByUser.Len())
	out.field("Total prompt credits", tables.TotalPromptCredits)

	if tables.Items == 0 {
		out.Empty = true
		r.finish("cascade")
		return out, nil
	}

	rawPath := r.namer.Dated("cascade_api_raw_responses", "json")
	if err := WriteJSON(rawPath, result.Raw); err != nil {
		return nil, err
	}
	r.publish(out, manifest.KindCascadeRaw, rawPath, &opts.Range)

	modelPath := r.namer.Dated("cascade_usage_by_model_date", "csv")
	if err := tables.ByModelDate.WriteCSV(modelPath); err != nil {
		return nil, err
	}
	r.publish(out, manifest.KindCascadeByModelDate, modelPath, &opts.Range)

	userPath := r.namer.Dated("cascade_usage_by_user", "csv")
	if err := tables.ByUser.WriteCSV(userPath); err != nil {
		return nil, err
	}
	r.publish(out, manifest.KindCascadeByUser, userPath, &opts.Range)

	r.finish("cascade")
	return out, nil
}
