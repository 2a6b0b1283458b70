package report

import (
	"fmt"
	"strconv"

	"github.com/0xmhha/usage-report/pkg/identity"
	"github.com/0xmhha/usage-report/pkg/manifest"
	"github.com/0xmhha/usage-report/pkg/record"
	"github.com/0xmhha/usage-report/pkg/threshold"
)

const columnPromptCredits = "total_prompt_credits"

// CreditOptions configures the credit usage report.
type CreditOptions struct {
	// Limit is the per-user credit limit.
	Limit float64

	// Thresholds are percentages of Limit, in any order.
	Thresholds []float64

	// InputFile overrides the by-user CSV lookup.
	InputFile string

	// OutputFile overrides the report path.
	OutputFile string
}

// CreditEntities reads users from a by-user CSV. Users are identified by
// email, falling back to the API key when the email column is blank.
func CreditEntities(t *Table) ([]threshold.Entity, error) {
	for _, col := range []string{"api_key", columnPromptCredits} {
		if t.Column(col) < 0 {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	entities := make([]threshold.Entity, 0, t.Len())
	for i := range t.Rows {
		key := t.Cell(i, "api_key")
		email := t.Cell(i, "email")

		id, label := email, email
		if email == "" {
			id, label = key, identity.Redact(key)
		}

		entities = append(entities, threshold.Entity{
			ID:    id,
			Label: label,
			Total: record.ToNumber(t.Cell(i, columnPromptCredits)),
			Extra: map[string]string{"api_key": key, "email": email},
		})
	}
	return entities, nil
}

// CreditTable renders classified users.
func CreditTable(rep *threshold.Report) *Table {
	t := NewTable("api_key", "email", columnPromptCredits, "percentage", "threshold_reached")
	for _, e := range rep.Entries {
		t.Append(
			e.Extra["api_key"],
			e.Extra["email"],
			Number(e.Total),
			Number(Round2(e.Percent)),
			e.Tier,
		)
	}
	return t
}

// Credits flags users whose prompt credits reached a threshold of the limit.
func (r *Reporter) Credits(opts CreditOptions) (*Output, error) {
	input := opts.InputFile
	if input == "" {
		found, err := r.Locate(manifest.KindCascadeByUser, PrefixCascadeUser, ".csv")
		if err != nil {
			return nil, err
		}
		input = found
	}
	r.logger.Info("reading usage data", "path", input)

	t, err := ReadCSV(input)
	if err != nil {
		return nil, err
	}

	entities, err := CreditEntities(t)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", input, err)
	}

	rep, err := threshold.Classify(entities, opts.Limit, opts.Thresholds)
	if err != nil {
		return nil, err
	}

	out := &Output{Summary: Summary{Title: "Credit Usage Report", Threshold: rep}}
	out.field("Input file", input)
	out.field("User records", len(entities))
	out.field("Credit limit", opts.Limit)

	tiers := make([]string, 0, len(rep.Tiers)+1)
	for _, tier := range rep.Tiers {
		tiers = append(tiers, fmt.Sprintf("%s threshold only: %d users", tier, rep.TierCounts[tier]))
	}
	tiers = append(tiers, fmt.Sprintf("Total flagged users: %d", len(rep.Entries)))
	out.section("Summary of flagged users", tiers...)

	if len(rep.Entries) == 0 {
		out.Empty = true
		r.finish("credits")
		return out, nil
	}

	top := make([]string, 0, 3)
	for _, e := range rep.Top(3) {
		top = append(top, fmt.Sprintf("%s: %s%% of limit (%s credits)",
			e.Label, strconv.FormatFloat(e.Percent, 'f', 1, 64), strconv.FormatFloat(e.Total, 'f', 1, 64)))
	}
	out.section("Top 3 highest usage users", top...)

	path := opts.OutputFile
	if path == "" {
		path = r.namer.Dated("credit_usage_report", "csv")
	}
	if err := CreditTable(rep).WriteCSV(path); err != nil {
		return nil, err
	}
	r.publish(out, manifest.KindCreditReport, path, nil)

	r.finish("credits")
	return out, nil
}
