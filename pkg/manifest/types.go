// Package manifest records the report files each run writes, so that later
// steps can find "the latest mapping" or "the latest by-user CSV" without
// relying on filename sort order.
//
// The manifest is a small bbolt database next to the reports.
//
// Example usage:
//
//	m, err := manifest.New(manifest.Config{Path: "output/manifest.db"}, log)
//	if err != nil {
//	    return err
//	}
//	defer m.Close()
//
//	a := &manifest.Artifact{Kind: manifest.KindIdentityMap, Path: path}
//	if err := m.Record(a); err != nil {
//	    return err
//	}
//	latest, err := m.Latest(manifest.KindIdentityMap)
package manifest

import (
	"time"
)

// Artifact kinds.
const (
	KindIdentityMap         = "identity-map"
	KindCascadeRaw          = "cascade-raw"
	KindCascadeByUser       = "cascade-by-user"
	KindCascadeByModelDate  = "cascade-by-model-date"
	KindCreditReport        = "credit-report"
	KindAutocomplete        = "autocomplete"
	KindCommandBytes        = "command-bytes"
	KindActivityReport      = "activity-report"
	KindTeamDaily           = "team-daily"
	KindTeamAggregated      = "team-aggregated"
	KindTeamModelUsage      = "team-model-usage"
	KindAutocompleteSummary = "autocomplete-full"
	KindCommandBytesSummary = "command-bytes-full"
)

// Artifact describes one file written by a report.
type Artifact struct {
	// ID is assigned by Record.
	ID string `json:"id"`

	// Kind groups artifacts of the same report output.
	Kind string `json:"kind"`

	// Path is where the file was written.
	Path string `json:"path"`

	// Start and End are the report window, when the report has one.
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`

	// CreatedAt is assigned by Record.
	CreatedAt time.Time `json:"created_at"`
}

// Manifest stores artifacts.
type Manifest interface {
	// Record assigns an ID and timestamp to a and stores it as the latest of
	// its kind.
	Record(a *Artifact) error

	// Latest returns the most recently recorded artifact of a kind.
	Latest(kind string) (*Artifact, error)

	// Get returns an artifact by ID.
	Get(id string) (*Artifact, error)

	// List returns artifacts of a kind, newest first. An empty kind lists all.
	List(kind string) ([]*Artifact, error)

	// Close releases the database.
	Close() error
}

// Config contains manifest configuration.
type Config struct {
	// Path is the database file. "~" is expanded.
	Path string

	// Timeout bounds waiting for the file lock. Default: 1s.
	Timeout time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}
