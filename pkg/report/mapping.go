package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/0xmhha/usage-report/pkg/daterange"
	"github.com/0xmhha/usage-report/pkg/identity"
	"github.com/0xmhha/usage-report/pkg/manifest"
)

const mappingSamples = 5

// MappingOptions configures the email mapping report.
type MappingOptions struct {
	Range daterange.Range

	// OutputFile overrides the mapping path.
	OutputFile string
}

// MappingSamples renders up to n redacted pairs, followed by a count of the
// rest.
func MappingSamples(m identity.Mapping, n int) []string {
	emails := m.Emails()
	lines := make([]string, 0, n+1)
	for i, email := range emails {
		if i == n {
			lines = append(lines, fmt.Sprintf("... and %d more", len(emails)-n))
			break
		}
		lines = append(lines, email+": "+identity.Redact(m[email]))
	}
	return lines
}

// FetchMapping fetches email to API key pairs from the user page endpoint and
// saves them as the identity mapping.
func (r *Reporter) FetchMapping(ctx context.Context, opts MappingOptions) (*Output, error) {
	if r.userPager == nil {
		return nil, errors.New("report: no user page client configured")
	}

	start, end := opts.Range.Timestamps()
	r.logger.Info("fetching user data", "start", start, "end", end)

	pairs, err := r.userPager.UserPage(ctx, start, end)
	if err != nil {
		return nil, err
	}
	m := identity.Mapping(pairs)

	out := &Output{Summary: Summary{Title: "Email to API Key Mapping"}}
	out.field("Date range", opts.Range.String())
	out.field("Users mapped", len(m))

	if len(m) == 0 {
		out.Empty = true
		r.finish("mapping")
		return out, nil
	}
	out.section("Sample mappings", MappingSamples(m, mappingSamples)...)

	path := opts.OutputFile
	if path == "" {
		path = r.namer.Dated("email_api_mapping", "json")
	}
	if err := identity.Save(path, m); err != nil {
		return nil, err
	}
	r.publish(out, manifest.KindIdentityMap, path, &opts.Range)

	r.finish("mapping")
	return out, nil
}
