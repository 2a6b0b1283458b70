package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/0xmhha/usage-report/pkg/analytics"
	"github.com/0xmhha/usage-report/pkg/config"
	"github.com/0xmhha/usage-report/pkg/display"
	"github.com/0xmhha/usage-report/pkg/logger"
	"github.com/0xmhha/usage-report/pkg/manifest"
	"github.com/0xmhha/usage-report/pkg/metrics"
	"github.com/0xmhha/usage-report/pkg/report"
)

// globalOptions holds the persistent flags.
type globalOptions struct {
	configPath string
	envFile    string
	outputDir  string
	logLevel   string
	format     string
	noColor    bool
}

// loadConfig loads configuration and applies flag overrides.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader(o.configPath, o.envFile).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if o.outputDir != "" {
		cfg.Output.Dir = o.outputDir
	}
	if o.logLevel != "" {
		cfg.Logging.Level = strings.ToLower(o.logLevel)
	}
	if o.format != "" {
		cfg.Display.Format = o.format
	}
	if o.noColor {
		cfg.Display.ColorEnabled = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// app bundles the components a command runs with.
type app struct {
	cfg       *config.Config
	log       logger.Logger
	metrics   *metrics.Collector
	manifest  manifest.Manifest
	reporter  *report.Reporter
	formatter display.Formatter
	out       io.Writer
}

// open initializes the components. Commands that call the network pass
// online; they fail here when no service key is configured.
func (o *globalOptions) open(out io.Writer, online bool) (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	if online {
		if err := cfg.RequireServiceKey(); err != nil {
			return nil, err
		}
	}

	format, err := display.ParseFormat(cfg.Display.Format)
	if err != nil {
		return nil, err
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	m, err := manifest.New(manifest.Config{Path: cfg.ManifestPath()}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact manifest: %w", err)
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		metrics:  metrics.New(),
		manifest: m,
		out:      out,
		formatter: display.New(display.Config{
			Format: format,
			Color:  display.ColorEnabled(!cfg.Display.ColorEnabled, os.Stdout),
		}),
	}

	rc := report.Config{
		Namer:    report.Namer{Dir: cfg.Output.Dir},
		Manifest: m,
		Logger:   log,
		Metrics:  a.metrics,
	}

	if online {
		client, err := analytics.NewClient(analytics.Config{
			URL:         cfg.Service.URL,
			UserPageURL: cfg.Service.UserPageURL,
			ServiceKey:  cfg.Service.ServiceKey,
			Timeout:     cfg.Service.Timeout,
			Logger:      log,
			Metrics:     a.metrics,
		})
		if err != nil {
			_ = m.Close()
			return nil, err
		}
		rc.Fetcher = analytics.NewFetcher(client, log)
		rc.UserPager = client
	}

	a.reporter = report.New(rc)
	return a, nil
}

// close writes the metrics textfile and closes the manifest.
func (a *app) close() {
	if err := a.metrics.WriteTextfile(a.cfg.Output.MetricsFile); err != nil {
		a.log.Warn("failed to write metrics", "path", a.cfg.Output.MetricsFile, "error", err)
	}
	if err := a.manifest.Close(); err != nil {
		a.log.Error("failed to close manifest", "error", err)
	}
}

// show renders a report result.
func (a *app) show(out *report.Output) error {
	return a.formatter.FormatOutput(a.out, out)
}
