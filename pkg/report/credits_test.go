package report

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/usage-report/pkg/manifest"
	"github.com/0xmhha/usage-report/pkg/threshold"
)

func byUserTable() *Table {
	t := NewTable("api_key", "email", "total_prompts", "total_flex_credits", "total_prompt_credits")
	t.Append("k1", "hi@x.com", "10", "1", "1450")
	t.Append("k2", "mid@x.com", "5", "1", "1200")
	t.Append("k3", "low@x.com", "1", "1", "1000")
	t.Append("k4", "", "1", "1", "1300")
	return t
}

func TestCreditEntities(t *testing.T) {
	t.Parallel()

	entities, err := CreditEntities(byUserTable())
	require.NoError(t, err)
	require.Len(t, entities, 4)

	assert.Equal(t, "hi@x.com", entities[0].ID)
	assert.Equal(t, 1450.0, entities[0].Total)

	// Blank email falls back to the key.
	assert.Equal(t, "k4", entities[3].ID)
	assert.Equal(t, "k4...", entities[3].Label)
	assert.Equal(t, "", entities[3].Extra["email"])
}

func TestCreditEntities_MissingColumn(t *testing.T) {
	t.Parallel()

	_, err := CreditEntities(NewTable("api_key", "email"))
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestCreditTable(t *testing.T) {
	t.Parallel()

	entities, err := CreditEntities(byUserTable())
	require.NoError(t, err)

	rep, err := threshold.Classify(entities, 1500, []float64{75, 85, 95})
	require.NoError(t, err)

	got := CreditTable(rep)
	assert.Equal(t, []string{"api_key", "email", "total_prompt_credits", "percentage", "threshold_reached"}, got.Header)
	assert.Equal(t, [][]string{
		{"k1", "hi@x.com", "1450", "96.67", "95%"},
		{"k4", "", "1300", "86.67", "85%"},
		{"k2", "mid@x.com", "1200", "80", "75%"},
	}, got.Rows)
}

func TestCredits(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil)
	input := filepath.Join(f.dir, "cascade_usage_by_user_2025-01-30.csv")
	require.NoError(t, byUserTable().WriteCSV(input))

	out, err := f.reporter.Credits(CreditOptions{Limit: 1500, Thresholds: []float64{95, 75, 85}})
	require.NoError(t, err)
	assert.False(t, out.Empty)
	require.NotNil(t, out.Summary.Threshold)
	assert.Len(t, out.Summary.Threshold.Entries, 3)

	require.Len(t, out.Summary.Sections, 2)
	assert.Equal(t, []string{
		"95% threshold only: 1 users",
		"85% threshold only: 1 users",
		"75% threshold only: 1 users",
		"Total flagged users: 3",
	}, out.Summary.Sections[0].Lines)
	assert.Equal(t, []string{
		"hi@x.com: 96.7% of limit (1450.0 credits)",
		"k4...: 86.7% of limit (1300.0 credits)",
		"mid@x.com: 80.0% of limit (1200.0 credits)",
	}, out.Summary.Sections[1].Lines)

	path, ok := out.PathOf(manifest.KindCreditReport)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(f.dir, "credit_usage_report_2025-01-31.csv"), path)

	written, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, 3, written.Len())
	assert.Equal(t, "95%", written.Cell(0, "threshold_reached"))
}

func TestCredits_NobodyFlagged(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil)
	input := filepath.Join(f.dir, "summary.csv")
	require.NoError(t, byUserTable().WriteCSV(input))

	out, err := f.reporter.Credits(CreditOptions{Limit: 100000, Thresholds: []float64{90}, InputFile: input})
	require.NoError(t, err)
	assert.True(t, out.Empty)
	assert.Empty(t, out.Files)
	assert.Equal(t, []string{"90% threshold only: 0 users", "Total flagged users: 0"}, out.Summary.Sections[0].Lines)
}

func TestCredits_Errors(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil)

	_, err := f.reporter.Credits(CreditOptions{Limit: 1500, Thresholds: []float64{90}})
	assert.ErrorIs(t, err, ErrInputNotFound)

	input := filepath.Join(f.dir, "summary.csv")
	require.NoError(t, byUserTable().WriteCSV(input))

	_, err = f.reporter.Credits(CreditOptions{Limit: 0, Thresholds: []float64{90}, InputFile: input})
	assert.Error(t, err)
}
