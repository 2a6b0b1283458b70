package display

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/0xmhha/usage-report/pkg/report"
	"github.com/0xmhha/usage-report/pkg/threshold"
)

func creditsOutput(t *testing.T) *report.Output {
	t.Helper()

	rep, err := threshold.Classify([]threshold.Entity{
		{ID: "hi@x.com", Label: "hi@x.com", Total: 1450},
		{ID: "mid@x.com", Label: "mid@x.com", Total: 1300},
		{ID: "low@x.com", Label: "low@x.com", Total: 1200},
	}, 1500, []float64{75, 85, 95})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	return &report.Output{
		Summary: report.Summary{
			Title: "Credit Usage Report",
			Fields: []report.Field{
				{Label: "User records", Value: 12345},
				{Label: "Credit limit", Value: 1500.0},
				{Label: "Total prompt credits", Value: 2345.678},
			},
			Sections: []report.Section{
				{Title: "Summary of flagged users", Lines: []string{"Total flagged users: 3"}},
			},
			Threshold: rep,
		},
		Files: []report.File{{Kind: "credit-report", Path: "output/credit_usage_report_2025-01-31.csv"}},
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		config Config
		want   string
	}{
		{name: "default format (table)", config: Config{}, want: "*display.tableFormatter"},
		{name: "table format", config: Config{Format: FormatTable}, want: "*display.tableFormatter"},
		{name: "json format", config: Config{Format: FormatJSON}, want: "*display.jsonFormatter"},
		{name: "simple format", config: Config{Format: FormatSimple}, want: "*display.simpleFormatter"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := fmt.Sprintf("%T", New(tt.config))
			if got != tt.want {
				t.Errorf("New() type = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatTable},
		{in: "JSON", want: FormatJSON},
		{in: " simple ", want: FormatSimple},
		{in: "xml", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownFormat) {
				t.Errorf("ParseFormat(%q) error = %v, want ErrUnknownFormat", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, %v, want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestFormatValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   interface{}
		want string
	}{
		{in: 12345, want: "12,345"},
		{in: int64(-1000), want: "-1,000"},
		{in: 1500.0, want: "1,500"},
		{in: 2345.678, want: "2,345.68"},
		{in: 0.125, want: "0.13"},
		{in: 1999.996, want: "2,000"},
		{in: "2025-01-01 to 2025-01-07", want: "2025-01-01 to 2025-01-07"},
		{in: true, want: "true"},
	}

	for _, tt := range tests {
		if got := formatValue(tt.in); got != tt.want {
			t.Errorf("formatValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTableFormatter_FormatOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := New(Config{Format: FormatTable}).FormatOutput(&buf, creditsOutput(t)); err != nil {
		t.Fatalf("FormatOutput() error = %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"Credit Usage Report",
		"12,345",
		"2,345.68",
		"Summary of flagged users:",
		"Flagged users (limit 1,500 credits)",
		"96.7%",
		"95%",
		"credit_usage_report_2025-01-31.csv",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
	if strings.Contains(output, "\x1b[") {
		t.Error("output contains color codes with colors disabled")
	}
}

func TestTableFormatter_Colors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := New(Config{Format: FormatTable, Color: true}).FormatOutput(&buf, creditsOutput(t)); err != nil {
		t.Fatalf("FormatOutput() error = %v", err)
	}

	output := buf.String()
	// red for >= 95%, yellow for >= 85%
	for _, code := range []string{"\x1b[31;1m", "\x1b[33m"} {
		if !strings.Contains(output, code) {
			t.Errorf("output missing color %q", code)
		}
	}
	if !strings.Contains(output, "| 80.0%") {
		t.Errorf("users below the warning tier should not be colored:\n%s", output)
	}
}

func TestTableFormatter_Empty(t *testing.T) {
	t.Parallel()

	out := &report.Output{
		Summary: report.Summary{Title: "Cascade Usage", Fields: []report.Field{{Label: "Total items processed", Value: 0}}},
		Empty:   true,
	}

	var buf bytes.Buffer
	if err := New(Config{}).FormatOutput(&buf, out); err != nil {
		t.Fatalf("FormatOutput() error = %v", err)
	}
	if !strings.Contains(buf.String(), "No data") {
		t.Errorf("output missing empty notice:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "Files written") {
		t.Error("empty output lists files")
	}
}

func TestTableFormatter_FormatSteps(t *testing.T) {
	t.Parallel()

	steps := []report.Step{
		{Name: "Fetching email to API key mapping", Reused: "email_api_mapping_2025-01-30.json"},
		{Name: "Analyzing usage data", Output: &report.Output{
			Summary: report.Summary{Title: "Cascade Usage"},
			Files: []report.File{
				{Kind: "cascade-raw", Path: "raw.json"},
				{Kind: "cascade-by-user", Path: "cascade_usage_by_user_2025-01-31.csv"},
			},
		}},
	}

	var buf bytes.Buffer
	if err := New(Config{}).FormatSteps(&buf, steps); err != nil {
		t.Fatalf("FormatSteps() error = %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"STEP: Skipping Fetching email to API key mapping (using email_api_mapping_2025-01-30.json)",
		"STEP: Analyzing usage data",
		"WORKFLOW COMPLETED SUCCESSFULLY!",
		"1. Fetching email to API key mapping: email_api_mapping_2025-01-30.json",
		"2. Analyzing usage data: cascade_usage_by_user_2025-01-31.csv",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestJSONFormatter_FormatOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := New(Config{Format: FormatJSON, Compact: true}).FormatOutput(&buf, creditsOutput(t)); err != nil {
		t.Fatalf("FormatOutput() error = %v", err)
	}

	var got outputView
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}

	if got.Title != "Credit Usage Report" {
		t.Errorf("Title = %q", got.Title)
	}
	if len(got.Flagged) != 3 {
		t.Fatalf("Flagged = %d entries, want 3", len(got.Flagged))
	}
	if got.Flagged[0].Percent != 96.67 || got.Flagged[0].Threshold != "95%" {
		t.Errorf("Flagged[0] = %+v", got.Flagged[0])
	}
	if len(got.Files) != 1 || got.Files[0].Kind != "credit-report" {
		t.Errorf("Files = %+v", got.Files)
	}
}

func TestJSONFormatter_FormatSteps(t *testing.T) {
	t.Parallel()

	steps := []report.Step{{Name: "mapping", Reused: "m.json"}, {Name: "credits", Output: &report.Output{Empty: true}}}

	var buf bytes.Buffer
	if err := New(Config{Format: FormatJSON}).FormatSteps(&buf, steps); err != nil {
		t.Fatalf("FormatSteps() error = %v", err)
	}

	var got []stepView
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(got) != 2 || got[0].Reused != "m.json" || got[1].Output == nil || !got[1].Output.Empty {
		t.Errorf("steps = %+v", got)
	}
}

func TestSimpleFormatter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	f := New(Config{Format: FormatSimple})
	if err := f.FormatOutput(&buf, creditsOutput(t)); err != nil {
		t.Fatalf("FormatOutput() error = %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"User records: 12,345",
		"Summary of flagged users: Total flagged users: 3",
		"Wrote output/credit_usage_report_2025-01-31.csv",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}

	buf.Reset()
	steps := []report.Step{{Name: "mapping", Reused: "m.json"}}
	if err := f.FormatSteps(&buf, steps); err != nil {
		t.Fatalf("FormatSteps() error = %v", err)
	}
	if got := buf.String(); got != "#1 mapping: using m.json\n" {
		t.Errorf("FormatSteps() = %q", got)
	}
}
