package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/0xmhha/usage-report/pkg/aggregator"
	"github.com/0xmhha/usage-report/pkg/analytics"
	"github.com/0xmhha/usage-report/pkg/daterange"
	"github.com/0xmhha/usage-report/pkg/identity"
	"github.com/0xmhha/usage-report/pkg/manifest"
	"github.com/0xmhha/usage-report/pkg/record"
)

// NeverActive is the last-active value of users without dated usage.
const NeverActive = "Never"

// ActivityOptions configures the user activity report.
type ActivityOptions struct {
	// Days is the activity window ending now.
	Days int

	// RawFile overrides the raw responses lookup.
	RawFile string

	// MappingFile overrides the mapping lookup.
	MappingFile string

	// OutputFile overrides the report path.
	OutputFile string
}

// ActivityUser is one user of the activity report.
type ActivityUser struct {
	APIKey             string  `json:"api_key"`
	TotalPrompts       int     `json:"total_prompts"`
	TotalFlexCredits   float64 `json:"total_flex_credits"`
	TotalPromptCredits float64 `json:"total_prompt_credits"`
	LastActive         string  `json:"last_active"`

	// DaysSinceLastActive is nil for users who were never active.
	DaysSinceLastActive *int `json:"days_since_last_active"`
}

// ActivityReport is the JSON document written by the activity report.
type ActivityReport struct {
	ReportDate         string                  `json:"report_date"`
	ActiveUsersCount   int                     `json:"active_users_count"`
	InactiveUsersCount int                     `json:"inactive_users_count"`
	ActiveUsers        map[string]ActivityUser `json:"active_users"`
	InactiveUsers      map[string]ActivityUser `json:"inactive_users"`
}

// RawResponses maps API key to the response fetched for it.
type RawResponses map[string]*analytics.Response

// LoadRawResponses reads a raw responses file written by the cascade report.
func LoadRawResponses(path string) (RawResponses, error) {
	// #nosec G304: path comes from CLI flags or the artifact manifest
	data, err := os.ReadFile(path) // nolint:gosec
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw RawResponses
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, path, err)
	}
	return raw, nil
}

// metadataEmail extracts "email" from the JSON-encoded metadata field.
func metadataEmail(r record.Record) string {
	raw, ok := r["metadata"].(string)
	if !ok || raw == "" {
		return ""
	}
	var meta map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return ""
	}
	email, _ := meta["email"].(string)
	return email
}

// emailOf resolves an account's email: mapping first, then the metadata of
// its items, then a placeholder built from the key prefix.
func emailOf(key string, items []record.Record, res *identity.Resolver) string {
	if email, ok := res.Email(key); ok {
		return email
	}
	for _, item := range items {
		if email := metadataEmail(item); email != "" {
			return email
		}
	}
	prefix := key
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return "unknown_" + prefix
}

// BuildActivity splits users into active and inactive by the date of their
// latest usage relative to now minus days. Items without a valid date are
// ignored; users left with no usage are inactive and never active.
func BuildActivity(raw RawResponses, res *identity.Resolver, now time.Time, days int) *ActivityReport {
	email := aggregator.Dimension{Name: "email", Field: "email"}
	agg := aggregator.New(aggregator.Config{
		Dimensions: []aggregator.Dimension{email},
		Measures:   []string{fieldPrompts, fieldFlex},
		Sets:       []aggregator.Set{aggregator.SetOf("dates", aggregator.DimDate)},
	})

	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	// first API key seen per email
	keyOf := make(map[string]string)
	for _, key := range keys {
		items := raw[key].Items()
		addr := emailOf(key, items, res)
		if _, seen := keyOf[addr]; !seen {
			keyOf[addr] = key
		}

		for _, item := range items {
			if _, err := daterange.ParseDate(item.String("date")); err != nil {
				continue
			}
			dated := make(record.Record, len(item)+1)
			for k, v := range item {
				dated[k] = v
			}
			dated["email"] = addr
			agg.Add(dated)
		}
	}

	cutoff := now.AddDate(0, 0, -days)
	rep := &ActivityReport{
		ReportDate:    now.Format(daterange.Layout),
		ActiveUsers:   make(map[string]ActivityUser),
		InactiveUsers: make(map[string]ActivityUser),
	}

	for addr, key := range keyOf {
		u := ActivityUser{APIKey: key, LastActive: NeverActive}

		if b, ok := agg.Bucket(aggregator.GroupKey{addr}); ok {
			u.TotalPrompts = b.Count
			u.TotalFlexCredits = Round2(Credits(b.Sum(fieldFlex)))
			u.TotalPromptCredits = Round2(Credits(b.Sum(fieldPrompts)))

			if dates := b.Sets["dates"]; len(dates) > 0 {
				last := dates[len(dates)-1]
				lastDate, _ := time.ParseInLocation(daterange.Layout, last, now.Location())
				since := int(now.Sub(lastDate).Hours() / 24)
				u.LastActive = last
				u.DaysSinceLastActive = &since

				if !lastDate.Before(cutoff) {
					rep.ActiveUsers[addr] = u
					continue
				}
			}
		}
		rep.InactiveUsers[addr] = u
	}

	rep.ActiveUsersCount = len(rep.ActiveUsers)
	rep.InactiveUsersCount = len(rep.InactiveUsers)
	return rep
}

// activityLines renders users ordered by days since last activity, never
// active users last.
func activityLines(users map[string]ActivityUser) []string {
	emails := make([]string, 0, len(users))
	for email := range users {
		emails = append(emails, email)
	}
	sort.SliceStable(emails, func(i, j int) bool {
		a, b := users[emails[i]].DaysSinceLastActive, users[emails[j]].DaysSinceLastActive
		if (a == nil) != (b == nil) {
			return b == nil
		}
		if a != nil && *a != *b {
			return *a < *b
		}
		return emails[i] < emails[j]
	})

	lines := make([]string, 0, len(emails))
	for _, email := range emails {
		u := users[email]
		if u.DaysSinceLastActive == nil {
			lines = append(lines, email+": Never active")
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: Last active %s (%d days ago)", email, u.LastActive, *u.DaysSinceLastActive))
	}
	return lines
}

// Activity reports which users were active in the last opts.Days days, from
// the raw responses saved by the cascade report.
func (r *Reporter) Activity(opts ActivityOptions) (*Output, error) {
	if opts.Days <= 0 {
		return nil, fmt.Errorf("%w: days must be positive, got %d", ErrInvalidOption, opts.Days)
	}

	input := opts.RawFile
	if input == "" {
		found, err := r.Locate(manifest.KindCascadeRaw, PrefixCascadeRaw, ".json")
		if err != nil {
			return nil, err
		}
		input = found
	}
	r.logger.Info("using raw API responses file", "path", input)

	raw, err := LoadRawResponses(input)
	if err != nil {
		return nil, err
	}

	rep := BuildActivity(raw, r.resolver(opts.MappingFile), r.namer.now(), opts.Days)

	out := &Output{Summary: Summary{Title: "User Activity Report (" + rep.ReportDate + ")"}}
	out.field("Raw responses file", input)
	out.field("Activity window (days)", opts.Days)
	out.field("Active users", rep.ActiveUsersCount)
	out.field("Inactive users", rep.InactiveUsersCount)
	out.section("Active Users", activityLines(rep.ActiveUsers)...)
	out.section("Inactive Users", activityLines(rep.InactiveUsers)...)

	if len(raw) == 0 {
		out.Empty = true
		r.finish("activity")
		return out, nil
	}

	path := opts.OutputFile
	if path == "" {
		path = r.namer.Dated("user_activity_report", "json")
	}
	if err := WriteJSON(path, rep); err != nil {
		return nil, err
	}
	r.publish(out, manifest.KindActivityReport, path, nil)

	r.finish("activity")
	return out, nil
}
