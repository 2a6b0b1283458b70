// Package daterange validates inclusive YYYY-MM-DD report windows and
// computes the default window of each report.
package daterange

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Layout is the only accepted date format.
const Layout = "2006-01-02"

// ErrInvalidDate indicates a date that is not strictly YYYY-MM-DD, or a
// window whose end precedes its start.
var ErrInvalidDate = errors.New("invalid date")

var validate = validator.New()

// Range is an inclusive date window.
type Range struct {
	Start string `validate:"required,datetime=2006-01-02"`
	End   string `validate:"required,datetime=2006-01-02"`
}

// Parse validates start and end and returns the window.
func Parse(start, end string) (Range, error) {
	r := Range{Start: start, End: end}
	if err := validate.Struct(&r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return Range{}, fmt.Errorf("%w: %s %q must be YYYY-MM-DD", ErrInvalidDate, fieldFlag(fe.Field()), fe.Value())
		}
		return Range{}, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}

	if r.End < r.Start {
		return Range{}, fmt.Errorf("%w: end date %s is before start date %s", ErrInvalidDate, r.End, r.Start)
	}
	return r, nil
}

// ParseDate validates a single date.
func ParseDate(s string) (time.Time, error) {
	if err := validate.Var(s, "required,datetime=2006-01-02"); err != nil {
		return time.Time{}, fmt.Errorf("%w: %q must be YYYY-MM-DD", ErrInvalidDate, s)
	}
	return time.Parse(Layout, s)
}

// Timestamps renders the window as the whole-day RFC 3339 bounds used by
// the user page endpoint.
func (r Range) Timestamps() (string, string) {
	return r.Start + "T00:00:00Z", r.End + "T23:59:59Z"
}

// String renders the window as "start to end".
func (r Range) String() string {
	return r.Start + " to " + r.End
}

// StartOfWeek returns the most recent Sunday on or before now.
func StartOfWeek(now time.Time) time.Time {
	return now.AddDate(0, 0, -int(now.Weekday()))
}

// WeekToDate is the default cascade window: Sunday through today.
func WeekToDate(now time.Time) Range {
	return Range{Start: StartOfWeek(now).Format(Layout), End: now.Format(Layout)}
}

// LastDays is the window from days ago through today.
func LastDays(now time.Time, days int) Range {
	return Range{Start: now.AddDate(0, 0, -days).Format(Layout), End: now.Format(Layout)}
}

func fieldFlag(field string) string {
	switch field {
	case "Start":
		return "start date"
	case "End":
		return "end date"
	default:
		return field
	}
}
