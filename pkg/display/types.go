// Package display renders report results on the console.
//
// It supports multiple output formats (table, JSON, simple text). The table
// format colors flagged users by how close they are to the credit limit.
package display

import (
	"errors"
	"io"

	"github.com/0xmhha/usage-report/pkg/report"
)

// Format represents an output format.
type Format string

const (
	// FormatTable displays results in formatted tables.
	FormatTable Format = "table"

	// FormatJSON displays results as JSON.
	FormatJSON Format = "json"

	// FormatSimple displays results as plain lines.
	FormatSimple Format = "simple"
)

// ErrUnknownFormat is returned by ParseFormat for unsupported names.
var ErrUnknownFormat = errors.New("unknown output format")

// Formatter renders report results.
type Formatter interface {
	// FormatOutput renders one report run.
	//
	// Parameters:
	//   - w: Output writer
	//   - out: Report result to render
	//
	// Returns error if writing fails.
	FormatOutput(w io.Writer, out *report.Output) error

	// FormatSteps renders a workflow run, one block per step followed by
	// the files it produced.
	//
	// Parameters:
	//   - w: Output writer
	//   - steps: Completed workflow steps
	//
	// Returns error if writing fails.
	FormatSteps(w io.Writer, steps []report.Step) error
}

// Config contains formatter configuration.
type Config struct {
	// Format specifies the output format.
	// Default: FormatTable.
	Format Format

	// Color enables ANSI colors in the table format.
	// Default: false. See ColorEnabled.
	Color bool

	// Compact enables compact output (less whitespace, no borders).
	// Default: false.
	Compact bool
}
