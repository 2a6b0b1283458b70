package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/0xmhha/usage-report/pkg/report"
	"github.com/0xmhha/usage-report/pkg/threshold"
)

// Percent of the limit at which flagged users turn red or yellow. Below
// warningPercent they stay uncolored.
const (
	criticalPercent = 95
	warningPercent  = 85
)

type palette struct {
	title    *color.Color
	critical *color.Color
	warning  *color.Color
	notice   *color.Color
	plain    *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		title:    color.New(color.FgCyan, color.Bold),
		critical: color.New(color.FgRed, color.Bold),
		warning:  color.New(color.FgYellow),
		notice:   color.New(color.FgGreen),
		plain:    color.New(),
	}
	p.plain.DisableColor()
	for _, c := range []*color.Color{p.title, p.critical, p.warning, p.notice} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// tier picks the color of a flagged user.
func (p palette) tier(pct float64) *color.Color {
	switch {
	case pct >= criticalPercent:
		return p.critical
	case pct >= warningPercent:
		return p.warning
	default:
		return p.plain
	}
}

// tableFormatter formats output as tables.
type tableFormatter struct {
	config Config
	colors palette
}

// FormatOutput implements Formatter.FormatOutput.
func (f *tableFormatter) FormatOutput(w io.Writer, out *report.Output) error {
	if err := f.header(w, out.Summary.Title); err != nil {
		return err
	}

	if len(out.Summary.Fields) > 0 {
		rows := make([][]string, 0, len(out.Summary.Fields))
		for _, field := range out.Summary.Fields {
			rows = append(rows, []string{field.Label, formatValue(field.Value)})
		}
		f.writeTable(w, []string{"Metric", "Value"}, rows)
	}

	for _, s := range out.Summary.Sections {
		if err := f.writeSection(w, s); err != nil {
			return err
		}
	}

	if rep := out.Summary.Threshold; rep != nil && len(rep.Entries) > 0 {
		if err := f.writeThreshold(w, rep); err != nil {
			return err
		}
	}

	if out.Empty {
		_, err := fmt.Fprintln(w, "\nNo data")
		return err
	}

	if len(out.Files) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "\nFiles written:"); err != nil {
		return err
	}
	for _, file := range out.Files {
		if _, err := fmt.Fprintf(w, "  %s\n", file.Path); err != nil {
			return err
		}
	}
	return nil
}

// FormatSteps implements Formatter.FormatSteps.
func (f *tableFormatter) FormatSteps(w io.Writer, steps []report.Step) error {
	for _, s := range steps {
		title := "STEP: " + s.Name
		if s.Reused != "" {
			title = fmt.Sprintf("STEP: Skipping %s (using %s)", s.Name, s.Reused)
		}
		if err := writeBanner(w, title); err != nil {
			return err
		}
		if s.Output != nil {
			if err := f.FormatOutput(w, s.Output); err != nil {
				return err
			}
		}
	}

	if err := writeBanner(w, f.colors.notice.Sprint("WORKFLOW COMPLETED SUCCESSFULLY!")); err != nil {
		return err
	}

	if _, err := fmt.Fprintln(w, "\nGenerated files:"); err != nil {
		return err
	}
	n := 0
	for _, s := range steps {
		path := primaryFile(s)
		if path == "" {
			continue
		}
		n++
		if _, err := fmt.Fprintf(w, "%d. %s: %s\n", n, s.Name, path); err != nil {
			return err
		}
	}
	return nil
}

func (f *tableFormatter) writeSection(w io.Writer, s report.Section) error {
	if _, err := fmt.Fprintf(w, "\n%s:\n", s.Title); err != nil {
		return err
	}
	if len(s.Lines) == 0 {
		_, err := fmt.Fprintln(w, "  (none)")
		return err
	}
	for _, line := range s.Lines {
		if _, err := fmt.Fprintf(w, "  - %s\n", line); err != nil {
			return err
		}
	}
	return nil
}

// writeThreshold lists flagged users, highest percentage first, colored by
// how close they are to the limit.
func (f *tableFormatter) writeThreshold(w io.Writer, rep *threshold.Report) error {
	title := fmt.Sprintf("Flagged users (limit %s credits)", formatValue(rep.Limit))
	if err := f.header(w, title); err != nil {
		return err
	}

	rows := make([][]string, 0, len(rep.Entries))
	for _, e := range rep.Entries {
		c := f.colors.tier(e.Percent)
		rows = append(rows, []string{
			e.Label,
			formatValue(e.Total),
			c.Sprint(formatPercent(e.Percent)),
			c.Sprint(e.Tier),
		})
	}
	f.writeTable(w, []string{"User", "Prompt credits", "Of limit", "Threshold"}, rows)
	return nil
}

// header writes a colored section header underlined to the plain title width.
func (f *tableFormatter) header(w io.Writer, title string) error {
	if f.config.Compact {
		_, err := fmt.Fprintln(w, f.colors.title.Sprint(title))
		return err
	}
	_, err := fmt.Fprintf(w, "\n%s\n%s\n\n", f.colors.title.Sprint(title), strings.Repeat("=", len(title)))
	return err
}

// writeTable renders rows with tablewriter.
func (f *tableFormatter) writeTable(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	if f.config.Compact {
		table.SetBorder(false)
		table.SetColumnSeparator("")
		table.SetCenterSeparator("")
		table.SetRowSeparator("")
		table.SetHeaderLine(false)
	}
	table.AppendBulk(rows)
	table.Render()
}
