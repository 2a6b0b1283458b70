// Package report builds the usage reports.
//
// Every report follows the same pipeline: fetch (or read) records, fold them
// through an aggregator, optionally classify against thresholds, then export
// tables. Written files are recorded in the artifact manifest so that later
// reports can find them.
//
// Example usage:
//
//	r := report.New(report.Config{
//	    Fetcher:  analytics.NewFetcher(client, log),
//	    Namer:    report.Namer{Dir: "output"},
//	    Manifest: m,
//	    Logger:   log,
//	})
//	out, err := r.Cascade(ctx, report.CascadeOptions{Range: rng})
package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/0xmhha/usage-report/pkg/analytics"
	"github.com/0xmhha/usage-report/pkg/daterange"
	"github.com/0xmhha/usage-report/pkg/discovery"
	"github.com/0xmhha/usage-report/pkg/identity"
	"github.com/0xmhha/usage-report/pkg/logger"
	"github.com/0xmhha/usage-report/pkg/manifest"
	"github.com/0xmhha/usage-report/pkg/metrics"
	"github.com/0xmhha/usage-report/pkg/threshold"
)

// File name prefixes looked up by discovery when the manifest has no entry.
const (
	PrefixMapping      = "email_api_mapping_"
	PrefixCascadeRaw   = "cascade_api_raw_responses_"
	PrefixCascadeUser  = "cascade_usage_by_user_"
	PrefixCreditReport = "credit_usage_report_"
)

// UserPager fetches the email to API key pairs of the user page endpoint.
type UserPager interface {
	UserPage(ctx context.Context, startTimestamp, endTimestamp string) (map[string]string, error)
}

// Config contains reporter dependencies.
type Config struct {
	// Fetcher serves the analytics reports.
	Fetcher analytics.Fetcher

	// UserPager serves the mapping report.
	UserPager UserPager

	// Namer places output files.
	Namer Namer

	// Manifest records written files. Optional.
	Manifest manifest.Manifest

	// SearchDirs are scanned for inputs the manifest does not know about.
	// Default: the output directory, then the working directory.
	SearchDirs []string

	// Logger receives diagnostics. Default: no-op.
	Logger logger.Logger

	// Metrics records the last run of each report. Optional.
	Metrics *metrics.Collector
}

// Reporter runs reports.
type Reporter struct {
	fetcher   analytics.Fetcher
	userPager UserPager
	namer     Namer
	manifest  manifest.Manifest
	finder    discovery.Discoverer
	logger    logger.Logger
	metrics   *metrics.Collector
}

// New creates a Reporter.
func New(cfg Config) *Reporter {
	if cfg.Logger == nil {
		cfg.Logger = logger.Noop()
	}
	if len(cfg.SearchDirs) == 0 {
		cfg.SearchDirs = []string{cfg.Namer.Dir, "."}
	}

	return &Reporter{
		fetcher:   cfg.Fetcher,
		userPager: cfg.UserPager,
		namer:     cfg.Namer,
		manifest:  cfg.Manifest,
		finder:    discovery.New(cfg.SearchDirs, cfg.Logger),
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}
}

// File is one written output.
type File struct {
	Kind string
	Path string
}

// Field is one labelled value of a console summary.
type Field struct {
	Label string
	Value interface{}
}

// Section is a titled list of console lines.
type Section struct {
	Title string
	Lines []string
}

// Summary is what a report prints to the console.
type Summary struct {
	Title    string
	Fields   []Field
	Sections []Section

	// Threshold is set by the credits report.
	Threshold *threshold.Report
}

// Output is the result of one report run.
type Output struct {
	Summary Summary
	Files   []File

	// Empty is set when there was nothing to report. No files are written.
	Empty bool
}

func (o *Output) field(label string, value interface{}) {
	o.Summary.Fields = append(o.Summary.Fields, Field{Label: label, Value: value})
}

func (o *Output) section(title string, lines ...string) {
	o.Summary.Sections = append(o.Summary.Sections, Section{Title: title, Lines: lines})
}

// PathOf returns the first written file of a kind.
func (o *Output) PathOf(kind string) (string, bool) {
	for _, f := range o.Files {
		if f.Kind == kind {
			return f.Path, true
		}
	}
	return "", false
}

// Locate returns the newest input of a kind: the manifest entry when its file
// still exists, otherwise the newest file named prefix*ext in the search
// directories.
func (r *Reporter) Locate(kind, prefix, ext string) (string, error) {
	if r.manifest != nil {
		a, err := r.manifest.Latest(kind)
		switch {
		case err == nil:
			if _, statErr := os.Stat(a.Path); statErr == nil {
				r.logger.Debug("input found in manifest", "kind", kind, "path", a.Path)
				return a.Path, nil
			}
			r.logger.Warn("recorded file no longer exists", "kind", kind, "path", a.Path)
		case !errors.Is(err, manifest.ErrArtifactNotFound):
			r.logger.Warn("manifest lookup failed", "kind", kind, "error", err)
		}
	}

	f, err := r.finder.Latest(prefix, ext)
	if err != nil {
		if errors.Is(err, discovery.ErrNoFilesFound) {
			return "", fmt.Errorf("%w: no %s*%s file", ErrInputNotFound, prefix, ext)
		}
		return "", err
	}
	return f.Path, nil
}

// Mapping loads the identity mapping at path, or the newest one when path is
// empty. The returned path is the file actually read.
func (r *Reporter) Mapping(path string) (identity.Mapping, string, error) {
	if path == "" {
		found, err := r.Locate(manifest.KindIdentityMap, PrefixMapping, ".json")
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", identity.ErrMappingNotFound, err)
		}
		path = found
	}

	m, err := identity.Load(path)
	if err != nil {
		return nil, path, err
	}
	r.logger.Info("loaded email mapping", "path", path, "users", len(m))
	return m, path, nil
}

// resolver loads the mapping for display purposes. A missing or unreadable
// mapping degrades to redacted keys.
func (r *Reporter) resolver(path string) *identity.Resolver {
	m, _, err := r.Mapping(path)
	if err != nil {
		r.logger.Warn("no email mapping, users will be identified by API key prefix", "error", err)
		return identity.NewResolver(nil)
	}
	return identity.NewResolver(m)
}

// publish records a written file in the output and the manifest.
func (r *Reporter) publish(out *Output, kind, path string, rng *daterange.Range) {
	out.Files = append(out.Files, File{Kind: kind, Path: path})

	if r.manifest == nil {
		return
	}

	a := &manifest.Artifact{Kind: kind, Path: path}
	if rng != nil {
		a.Start, a.End = rng.Start, rng.End
	}
	if err := r.manifest.Record(a); err != nil {
		r.logger.Warn("failed to record artifact", "kind", kind, "path", path, "error", err)
	}
}

// finish stamps the run in the metrics collector.
func (r *Reporter) finish(name string) {
	r.metrics.MarkRun(name, time.Now())
}

// fetch runs a request, treating a missing fetcher as a programming error.
func (r *Reporter) fetch(ctx context.Context, req analytics.Request) (*analytics.Result, error) {
	if r.fetcher == nil {
		return nil, errors.New("report: no fetcher configured")
	}
	return r.fetcher.Fetch(ctx, req)
}
