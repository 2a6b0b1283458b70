package display

import (
	"encoding/json"
	"io"

	"github.com/0xmhha/usage-report/pkg/report"
)

type fieldView struct {
	Label string      `json:"label"`
	Value interface{} `json:"value"`
}

type sectionView struct {
	Title string   `json:"title"`
	Lines []string `json:"lines"`
}

type flaggedView struct {
	User      string  `json:"user"`
	Credits   float64 `json:"credits"`
	Percent   float64 `json:"percent"`
	Threshold string  `json:"threshold"`
}

type fileView struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
}

type outputView struct {
	Title    string        `json:"title"`
	Empty    bool          `json:"empty"`
	Fields   []fieldView   `json:"fields"`
	Sections []sectionView `json:"sections,omitempty"`
	Flagged  []flaggedView `json:"flagged,omitempty"`
	Files    []fileView    `json:"files"`
}

type stepView struct {
	Name   string      `json:"name"`
	Reused string      `json:"reused,omitempty"`
	Output *outputView `json:"output,omitempty"`
}

func viewOf(out *report.Output) *outputView {
	v := &outputView{
		Title:  out.Summary.Title,
		Empty:  out.Empty,
		Fields: make([]fieldView, 0, len(out.Summary.Fields)),
		Files:  make([]fileView, 0, len(out.Files)),
	}
	for _, f := range out.Summary.Fields {
		v.Fields = append(v.Fields, fieldView{Label: f.Label, Value: f.Value})
	}
	for _, s := range out.Summary.Sections {
		v.Sections = append(v.Sections, sectionView{Title: s.Title, Lines: s.Lines})
	}
	if rep := out.Summary.Threshold; rep != nil {
		for _, e := range rep.Entries {
			v.Flagged = append(v.Flagged, flaggedView{
				User:      e.Label,
				Credits:   e.Total,
				Percent:   report.Round2(e.Percent),
				Threshold: e.Tier,
			})
		}
	}
	for _, f := range out.Files {
		v.Files = append(v.Files, fileView{Kind: f.Kind, Path: f.Path})
	}
	return v
}

// jsonFormatter formats output as JSON.
type jsonFormatter struct {
	config Config
}

func (f *jsonFormatter) encode(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	if !f.config.Compact {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(v)
}

// FormatOutput implements Formatter.FormatOutput.
func (f *jsonFormatter) FormatOutput(w io.Writer, out *report.Output) error {
	return f.encode(w, viewOf(out))
}

// FormatSteps implements Formatter.FormatSteps.
func (f *jsonFormatter) FormatSteps(w io.Writer, steps []report.Step) error {
	views := make([]stepView, 0, len(steps))
	for _, s := range steps {
		sv := stepView{Name: s.Name, Reused: s.Reused}
		if s.Output != nil {
			sv.Output = viewOf(s.Output)
		}
		views = append(views, sv)
	}
	return f.encode(w, views)
}
