package report

import (
	"context"
	"fmt"

	"github.com/0xmhha/usage-report/pkg/daterange"
	"github.com/0xmhha/usage-report/pkg/manifest"
)

// WorkflowOptions configures the mapping, cascade and credits chain.
type WorkflowOptions struct {
	Range daterange.Range

	Limit      float64
	Thresholds []float64

	// SkipMapping reuses MappingFile, or the latest mapping.
	SkipMapping bool
	MappingFile string

	// SkipAnalysis reuses SummaryFile, or the latest by-user CSV.
	SkipAnalysis bool
	SummaryFile  string
}

// Step is one stage of the workflow.
type Step struct {
	Name   string
	Output *Output

	// Reused names the existing file used instead of running the step.
	Reused string
}

// Workflow runs mapping, cascade and credits in sequence, each stage feeding
// its output file to the next. It stops at the first failing stage; the
// steps completed so far are returned with the error.
func (r *Reporter) Workflow(ctx context.Context, opts WorkflowOptions) ([]Step, error) {
	var steps []Step

	mappingFile := opts.MappingFile
	if opts.SkipMapping {
		if mappingFile == "" {
			found, err := r.Locate(manifest.KindIdentityMap, PrefixMapping, ".json")
			if err != nil {
				return steps, err
			}
			mappingFile = found
		}
		steps = append(steps, Step{Name: "Fetching email to API key mapping", Reused: mappingFile})
	} else {
		out, err := r.FetchMapping(ctx, MappingOptions{Range: opts.Range, OutputFile: mappingFile})
		if err != nil {
			return steps, err
		}
		steps = append(steps, Step{Name: "Fetching email to API key mapping", Output: out})
		path, ok := out.PathOf(manifest.KindIdentityMap)
		if !ok {
			return steps, fmt.Errorf("%w: mapping step produced no users", ErrNoAccounts)
		}
		mappingFile = path
	}

	summaryFile := opts.SummaryFile
	if opts.SkipAnalysis {
		if summaryFile == "" {
			found, err := r.Locate(manifest.KindCascadeByUser, PrefixCascadeUser, ".csv")
			if err != nil {
				return steps, err
			}
			summaryFile = found
		}
		steps = append(steps, Step{Name: "Analyzing usage data", Reused: summaryFile})
	} else {
		out, err := r.Cascade(ctx, CascadeOptions{Range: opts.Range, MappingFile: mappingFile})
		if err != nil {
			return steps, err
		}
		steps = append(steps, Step{Name: "Analyzing usage data", Output: out})
		path, ok := out.PathOf(manifest.KindCascadeByUser)
		if !ok {
			return steps, nil
		}
		summaryFile = path
	}

	out, err := r.Credits(CreditOptions{
		Limit:      opts.Limit,
		Thresholds: opts.Thresholds,
		InputFile:  summaryFile,
	})
	if err != nil {
		return steps, err
	}
	steps = append(steps, Step{Name: "Monitoring credit usage", Output: out})

	r.finish("workflow")
	return steps, nil
}
