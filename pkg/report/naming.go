package report

import (
	"path/filepath"
	"time"

	"github.com/0xmhha/usage-report/pkg/daterange"
)

// Namer builds timestamped output paths.
type Namer struct {
	// Dir is the output directory.
	Dir string

	// Now overrides the clock. Default: time.Now.
	Now func() time.Time
}

func (n Namer) now() time.Time {
	if n.Now == nil {
		return time.Now()
	}
	return n.Now()
}

// Dated returns <dir>/<prefix>_<YYYY-MM-DD>.<ext>.
func (n Namer) Dated(prefix, ext string) string {
	return filepath.Join(n.Dir, prefix+"_"+n.now().Format(daterange.Layout)+"."+ext)
}

// Compact returns <dir>/<prefix>_<YYYYMMDD>.<ext>.
func (n Namer) Compact(prefix, ext string) string {
	return filepath.Join(n.Dir, prefix+"_"+n.now().Format("20060102")+"."+ext)
}

// Window returns the base path <dir>/<prefix>_<start>_to_<end>_<YYYYMMDD_HHMMSS>
// shared by the files of one windowed analysis. Callers append a suffix.
func (n Namer) Window(prefix string, r daterange.Range) string {
	return filepath.Join(n.Dir, prefix+"_"+r.Start+"_to_"+r.End+"_"+n.now().Format("20060102_150405"))
}

// Today returns the current date as YYYY-MM-DD.
func (n Namer) Today() string {
	return n.now().Format(daterange.Layout)
}
