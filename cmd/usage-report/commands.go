package main

import (
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/0xmhha/usage-report/pkg/daterange"
	"github.com/0xmhha/usage-report/pkg/manifest"
	"github.com/0xmhha/usage-report/pkg/report"
	"github.com/0xmhha/usage-report/pkg/threshold"
)

// now is the clock used for date defaults.
var now = time.Now

// dateFlags are the --start-date/--end-date pair shared by windowed reports.
type dateFlags struct {
	start string
	end   string
}

func (d *dateFlags) register(fs *pflag.FlagSet, startHelp string) {
	fs.StringVar(&d.start, "start-date", "", "start date YYYY-MM-DD (default: "+startHelp+")")
	fs.StringVar(&d.end, "end-date", "", "end date YYYY-MM-DD (default: today)")
}

// resolve fills unset dates from def and validates the window.
func (d *dateFlags) resolve(def daterange.Range) (daterange.Range, error) {
	start, end := d.start, d.end
	if start == "" {
		start = def.Start
	}
	if end == "" {
		end = def.End
	}
	return daterange.Parse(start, end)
}

// accountFlags filter a report to API keys, given directly or as emails
// resolved through the mapping.
type accountFlags struct {
	apiKeys     []string
	emails      []string
	mappingFile string
}

func (f *accountFlags) register(fs *pflag.FlagSet) {
	fs.StringSliceVar(&f.apiKeys, "api-keys", nil, "API keys to query (comma-separated)")
	fs.StringSliceVar(&f.emails, "emails", nil, "emails to query, resolved through the mapping (comma-separated)")
	fs.StringVar(&f.mappingFile, "email-map", "", "email to API key mapping file (default: latest)")
}

func (f *accountFlags) resolve(r *report.Reporter) ([]string, error) {
	if len(f.emails) == 0 {
		return r.Accounts(nil, f.apiKeys, nil)
	}
	m, _, err := r.Mapping(f.mappingFile)
	if err != nil {
		return nil, err
	}
	return r.Accounts(m, f.apiKeys, f.emails)
}

// creditFlags override the configured limit and thresholds.
type creditFlags struct {
	limit      float64
	thresholds string
}

func (f *creditFlags) register(fs *pflag.FlagSet) {
	fs.Float64Var(&f.limit, "credit-limit", 0, "credit limit per user (default: from config)")
	fs.StringVar(&f.thresholds, "thresholds", "", "comma-separated threshold percentages (default: from config)")
}

// resolve validates the limit and thresholds, falling back to configured
// values for unset flags.
func (f *creditFlags) resolve(limit float64, thresholds []float64) (float64, []float64, error) {
	if f.limit != 0 {
		limit = f.limit
	}
	if limit <= 0 {
		return 0, nil, fmt.Errorf("%w: %v", threshold.ErrInvalidLimit, limit)
	}
	if f.thresholds != "" {
		parsed, err := threshold.ParsePercents(f.thresholds)
		if err != nil {
			return 0, nil, err
		}
		thresholds = parsed
	}
	return limit, thresholds, nil
}

func newMappingCmd(g *globalOptions) *cobra.Command {
	var (
		dates  dateFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "mapping",
		Short: "Fetch the email to API key mapping",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rng, err := dates.resolve(daterange.LastDays(now(), 30))
			if err != nil {
				return err
			}

			a, err := g.open(cmd.OutOrStdout(), true)
			if err != nil {
				return err
			}
			defer a.close()

			out, err := a.reporter.FetchMapping(cmd.Context(), report.MappingOptions{Range: rng, OutputFile: output})
			if err != nil {
				return err
			}
			return a.show(out)
		},
	}

	dates.register(cmd.Flags(), "30 days ago")
	cmd.Flags().StringVar(&output, "output", "", "mapping file path (default: <output-dir>/email_api_mapping_<date>.json)")
	return cmd
}

func newCascadeCmd(g *globalOptions) *cobra.Command {
	var (
		dates    dateFlags
		accounts accountFlags
	)

	cmd := &cobra.Command{
		Use:   "cascade",
		Short: "Analyze cascade credit usage per user, date and model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rng, err := dates.resolve(daterange.WeekToDate(now()))
			if err != nil {
				return err
			}

			a, err := g.open(cmd.OutOrStdout(), true)
			if err != nil {
				return err
			}
			defer a.close()

			keys, err := accounts.resolve(a.reporter)
			if err != nil {
				return err
			}

			out, err := a.reporter.Cascade(cmd.Context(), report.CascadeOptions{
				Range:       rng,
				Accounts:    keys,
				MappingFile: accounts.mappingFile,
			})
			if err != nil {
				return err
			}
			return a.show(out)
		},
	}

	dates.register(cmd.Flags(), "start of the week")
	accounts.register(cmd.Flags())
	return cmd
}

// newWindowCmd builds the autocomplete and command-bytes commands, which
// share flags and differ only in the report they run.
func newWindowCmd(g *globalOptions, use, short string,
	run func(*report.Reporter) func(*cobra.Command, report.WindowOptions) (*report.Output, error)) *cobra.Command {
	var (
		dates    dateFlags
		accounts accountFlags
		fullJSON bool
	)

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rng, err := dates.resolve(daterange.LastDays(now(), 7))
			if err != nil {
				return err
			}

			a, err := g.open(cmd.OutOrStdout(), true)
			if err != nil {
				return err
			}
			defer a.close()

			keys, err := accounts.resolve(a.reporter)
			if err != nil {
				return err
			}

			out, err := run(a.reporter)(cmd, report.WindowOptions{
				Range:       rng,
				Accounts:    keys,
				MappingFile: accounts.mappingFile,
				FullJSON:    fullJSON,
			})
			if err != nil {
				return err
			}
			return a.show(out)
		},
	}

	dates.register(cmd.Flags(), "7 days ago")
	accounts.register(cmd.Flags())
	cmd.Flags().BoolVar(&fullJSON, "output-json", false, "also write the full analysis as JSON")
	return cmd
}

func newAutocompleteCmd(g *globalOptions) *cobra.Command {
	return newWindowCmd(g, "autocomplete", "Analyze autocomplete acceptances",
		func(r *report.Reporter) func(*cobra.Command, report.WindowOptions) (*report.Output, error) {
			return func(cmd *cobra.Command, opts report.WindowOptions) (*report.Output, error) {
				return r.Autocomplete(cmd.Context(), opts)
			}
		})
}

func newCommandBytesCmd(g *globalOptions) *cobra.Command {
	return newWindowCmd(g, "command-bytes", "Analyze bytes changed by commands",
		func(r *report.Reporter) func(*cobra.Command, report.WindowOptions) (*report.Output, error) {
			return func(cmd *cobra.Command, opts report.WindowOptions) (*report.Output, error) {
				return r.CommandBytes(cmd.Context(), opts)
			}
		})
}

func newCreditsCmd(g *globalOptions) *cobra.Command {
	var (
		credit     creditFlags
		inputFile  string
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "credits",
		Short: "Flag users approaching their credit limit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.open(cmd.OutOrStdout(), false)
			if err != nil {
				return err
			}
			defer a.close()

			limit, thresholds, err := credit.resolve(a.cfg.Credit.Limit, a.cfg.Credit.Thresholds)
			if err != nil {
				return err
			}

			out, err := a.reporter.Credits(report.CreditOptions{
				Limit:      limit,
				Thresholds: thresholds,
				InputFile:  inputFile,
				OutputFile: outputFile,
			})
			if err != nil {
				return err
			}
			return a.show(out)
		},
	}

	credit.register(cmd.Flags())
	cmd.Flags().StringVar(&inputFile, "input-file", "", "by-user usage CSV (default: latest cascade_usage_by_user_*.csv)")
	cmd.Flags().StringVar(&outputFile, "output-file", "", "report path (default: <output-dir>/credit_usage_report_<date>.csv)")
	return cmd
}

func newActivityCmd(g *globalOptions) *cobra.Command {
	opts := report.ActivityOptions{}

	cmd := &cobra.Command{
		Use:   "activity",
		Short: "List active and inactive users from saved cascade responses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.Days <= 0 {
				return fmt.Errorf("%w: --days must be positive", report.ErrInvalidOption)
			}

			a, err := g.open(cmd.OutOrStdout(), false)
			if err != nil {
				return err
			}
			defer a.close()

			out, err := a.reporter.Activity(opts)
			if err != nil {
				return err
			}
			return a.show(out)
		},
	}

	cmd.Flags().IntVar(&opts.Days, "days", 30, "activity window in days")
	cmd.Flags().StringVar(&opts.RawFile, "raw-file", "", "raw responses JSON (default: latest cascade_api_raw_responses_*.json)")
	cmd.Flags().StringVar(&opts.MappingFile, "email-map", "", "email to API key mapping file (default: latest)")
	cmd.Flags().StringVar(&opts.OutputFile, "output", "", "report path (default: <output-dir>/user_activity_report_<date>.json)")
	return cmd
}

func newTeamCmd(g *globalOptions) *cobra.Command {
	opts := report.TeamOptions{}

	cmd := &cobra.Command{
		Use:   "team",
		Short: "Generate team CSV reports from a cascade analytics results file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.open(cmd.OutOrStdout(), false)
			if err != nil {
				return err
			}
			defer a.close()

			out, err := a.reporter.Team(opts)
			if err != nil {
				return err
			}
			return a.show(out)
		},
	}

	cmd.Flags().StringVar(&opts.InputFile, "input", "", "results JSON (default: latest "+report.DefaultTeamInput+".json)")
	return cmd
}

func newWorkflowCmd(g *globalOptions) *cobra.Command {
	var (
		dates  dateFlags
		credit creditFlags
		opts   report.WorkflowOptions
	)

	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Run mapping, cascade analysis and credit monitoring in sequence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rng, err := dates.resolve(daterange.WeekToDate(now()))
			if err != nil {
				return err
			}
			opts.Range = rng

			// Only the mapping and cascade steps call the network.
			online := !(opts.SkipMapping && opts.SkipAnalysis)
			a, err := g.open(cmd.OutOrStdout(), online)
			if err != nil {
				return err
			}
			defer a.close()

			opts.Limit, opts.Thresholds, err = credit.resolve(a.cfg.Credit.Limit, a.cfg.Credit.Thresholds)
			if err != nil {
				return err
			}

			steps, err := a.reporter.Workflow(cmd.Context(), opts)
			if err != nil {
				if len(steps) > 0 {
					_ = a.formatter.FormatSteps(a.out, steps)
				}
				return err
			}
			return a.formatter.FormatSteps(a.out, steps)
		},
	}

	dates.register(cmd.Flags(), "start of the week")
	credit.register(cmd.Flags())
	cmd.Flags().BoolVar(&opts.SkipMapping, "skip-mapping", false, "reuse an existing mapping instead of fetching one")
	cmd.Flags().StringVar(&opts.MappingFile, "mapping-file", "", "mapping file to write, or to reuse with --skip-mapping")
	cmd.Flags().BoolVar(&opts.SkipAnalysis, "skip-analysis", false, "reuse an existing by-user CSV instead of fetching usage")
	cmd.Flags().StringVar(&opts.SummaryFile, "summary-file", "", "by-user CSV to reuse with --skip-analysis")
	return cmd
}

func newArtifactsCmd(g *globalOptions) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "artifacts",
		Short: "List report files recorded in the artifact manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.open(cmd.OutOrStdout(), false)
			if err != nil {
				return err
			}
			defer a.close()

			artifacts, err := a.manifest.List(kind)
			if err != nil {
				return err
			}
			if len(artifacts) == 0 {
				_, err := fmt.Fprintln(a.out, "No artifacts recorded")
				return err
			}

			table := tablewriter.NewWriter(a.out)
			table.SetHeader([]string{"Created", "Kind", "Window", "Path"})
			table.SetAutoFormatHeaders(false)
			table.SetAutoWrapText(false)
			for _, art := range artifacts {
				window := ""
				if art.Start != "" {
					window = art.Start + " to " + art.End
				}
				table.Append([]string{art.CreatedAt.Local().Format("2006-01-02 15:04:05"), art.Kind, window, art.Path})
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "only list one kind (e.g. "+manifest.KindCascadeByUser+")")
	return cmd
}
