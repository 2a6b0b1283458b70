// Package main provides the usage-report CLI application.
//
// Usage Report pulls usage analytics for a team's API keys and turns them
// into CSV and JSON reports: per-user cascade credits, autocomplete and
// command activity, credit threshold alerts and inactive user lists.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is set during build time.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes the main application logic.
func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
}

// newRootCmd builds the command tree writing reports to stdout.
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "usage-report",
		Short: "Team usage analytics reports",
		Long: `Usage Report fetches usage analytics for a team's API keys and writes
CSV and JSON reports: cascade credits per user, autocomplete and command
activity, credit threshold alerts and user activity.

The service key is read from SERVICE_KEY, either in the environment or in a
.env file in the working directory.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to configuration file")
	flags.StringVar(&opts.envFile, "env-file", "", "path to .env file (default: ./.env when present)")
	flags.StringVar(&opts.outputDir, "output-dir", "", "directory receiving reports (overrides config)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&opts.format, "format", "", "console format: table, json, simple")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newMappingCmd(opts),
		newCascadeCmd(opts),
		newAutocompleteCmd(opts),
		newCommandBytesCmd(opts),
		newCreditsCmd(opts),
		newActivityCmd(opts),
		newTeamCmd(opts),
		newWorkflowCmd(opts),
		newArtifactsCmd(opts),
		newConfigCmd(opts),
	)

	return root
}
