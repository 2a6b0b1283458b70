package display

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/0xmhha/usage-report/pkg/report"
)

const bannerWidth = 80

// New creates a new formatter based on configuration.
func New(cfg Config) Formatter {
	if cfg.Format == "" {
		cfg.Format = FormatTable
	}

	switch cfg.Format {
	case FormatJSON:
		return &jsonFormatter{config: cfg}
	case FormatSimple:
		return &simpleFormatter{config: cfg}
	case FormatTable:
		fallthrough
	default:
		return &tableFormatter{config: cfg, colors: newPalette(cfg.Color)}
	}
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatJSON, FormatSimple:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q (want table, json or simple)", ErrUnknownFormat, s)
	}
}

// ColorEnabled reports whether colors should be used on f: never when
// disabled by flag or NO_COLOR, otherwise only on a terminal.
func ColorEnabled(noColor bool, f *os.File) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// formatValue renders a summary value with thousand separators.
func formatValue(v interface{}) string {
	switch n := v.(type) {
	case int:
		return humanize.Comma(int64(n))
	case int64:
		return humanize.Comma(n)
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < 1e15 {
			return humanize.Comma(int64(n))
		}
		return humanize.CommafWithDigits(math.Round(n*100)/100, 2)
	case string:
		return n
	default:
		return fmt.Sprint(v)
	}
}

// formatPercent renders a percentage of the limit with one decimal.
func formatPercent(pct float64) string {
	return fmt.Sprintf("%.1f%%", pct)
}

// primaryFile is the file a step hands to the next one: the reused input,
// or the last file it wrote.
func primaryFile(s report.Step) string {
	if s.Reused != "" {
		return s.Reused
	}
	if s.Output == nil || len(s.Output.Files) == 0 {
		return ""
	}
	return s.Output.Files[len(s.Output.Files)-1].Path
}

// writeBanner writes a full-width workflow banner.
func writeBanner(w io.Writer, text string) error {
	line := strings.Repeat("=", bannerWidth)
	_, err := fmt.Fprintf(w, "\n%s\n%s\n%s\n", line, text, line)
	return err
}
