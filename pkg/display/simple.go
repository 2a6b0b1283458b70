package display

import (
	"fmt"
	"io"

	"github.com/0xmhha/usage-report/pkg/report"
)

// simpleFormatter formats output as simple text.
type simpleFormatter struct {
	config Config
}

// FormatOutput implements Formatter.FormatOutput.
func (f *simpleFormatter) FormatOutput(w io.Writer, out *report.Output) error {
	if _, err := fmt.Fprintln(w, out.Summary.Title); err != nil {
		return err
	}
	for _, field := range out.Summary.Fields {
		if _, err := fmt.Fprintf(w, "%s: %s\n", field.Label, formatValue(field.Value)); err != nil {
			return err
		}
	}
	for _, s := range out.Summary.Sections {
		for _, line := range s.Lines {
			if _, err := fmt.Fprintf(w, "%s: %s\n", s.Title, line); err != nil {
				return err
			}
		}
	}
	if out.Empty {
		_, err := fmt.Fprintln(w, "No data")
		return err
	}
	for _, file := range out.Files {
		if _, err := fmt.Fprintf(w, "Wrote %s\n", file.Path); err != nil {
			return err
		}
	}
	return nil
}

// FormatSteps implements Formatter.FormatSteps.
func (f *simpleFormatter) FormatSteps(w io.Writer, steps []report.Step) error {
	for i, s := range steps {
		if s.Reused != "" {
			if _, err := fmt.Fprintf(w, "#%d %s: using %s\n", i+1, s.Name, s.Reused); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "#%d %s: %s\n", i+1, s.Name, primaryFile(s)); err != nil {
			return err
		}
	}
	return nil
}
