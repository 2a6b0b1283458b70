// Package analytics talks to the usage analytics service.
//
// It builds query payloads, POSTs them, and flattens the nested
// queryResults[].responseItems[].item envelopes into flat records. The
// Fetcher layers the soft-failure policy on top: a failed sub-request is
// logged and counted but never aborts the run.
//
// Example usage:
//
//	client, err := analytics.NewClient(analytics.Config{
//	    ServiceKey: key,
//	    Timeout:    60 * time.Second,
//	})
//	fetcher := analytics.NewFetcher(client, log)
//	res, err := fetcher.Fetch(ctx, analytics.Request{
//	    Query:      analytics.NewQuery(analytics.DataSourceUser, start, end, "api_key", "num_acceptances"),
//	    Accounts:   keys,
//	})
package analytics

import (
	"github.com/0xmhha/usage-report/pkg/record"
)

// Data sources understood by the analytics endpoint.
const (
	DataSourceCascade = "QUERY_DATA_SOURCE_CASCADE_DATA"
	DataSourceUser    = "QUERY_DATA_SOURCE_USER_DATA"
	DataSourceCommand = "QUERY_DATA_SOURCE_COMMAND_DATA"
)

// Filter operators.
const (
	OpGE    = "QUERY_FILTER_GE"
	OpLE    = "QUERY_FILTER_LE"
	OpEqual = "QUERY_FILTER_EQUAL"
)

// Default endpoints.
const (
	DefaultURL         = "https://server.codeium.com/api/v1/Analytics"
	DefaultUserPageURL = "https://server.codeium.com/api/v1/UserPageAnalytics"
)

// Selection names one returned field.
type Selection struct {
	Field string `json:"field"`
	Name  string `json:"name"`
}

// Filter restricts the rows a query returns.
type Filter struct {
	Name  string `json:"name"`
	Op    string `json:"filter"`
	Value string `json:"value"`
}

// Query is one entry of query_requests.
type Query struct {
	DataSource string      `json:"data_source"`
	Selections []Selection `json:"selections"`
	Filters    []Filter    `json:"filters"`
}

// NewQuery builds a query selecting fields over an inclusive date window.
func NewQuery(dataSource, start, end string, fields ...string) Query {
	return Query{
		DataSource: dataSource,
		Selections: Select(fields...),
		Filters:    DateRange(start, end),
	}
}

// Select returns selections whose output name equals the field name.
func Select(fields ...string) []Selection {
	out := make([]Selection, len(fields))
	for i, f := range fields {
		out[i] = Selection{Field: f, Name: f}
	}
	return out
}

// DateRange returns the GE/LE filter pair on the date field.
func DateRange(start, end string) []Filter {
	return []Filter{
		{Name: "date", Op: OpGE, Value: start},
		{Name: "date", Op: OpLE, Value: end},
	}
}

// Equal returns an equality filter.
func Equal(name, value string) Filter {
	return Filter{Name: name, Op: OpEqual, Value: value}
}

// With returns a copy of q with extra filters appended.
func (q Query) With(filters ...Filter) Query {
	out := q
	out.Filters = make([]Filter, 0, len(q.Filters)+len(filters))
	out.Filters = append(out.Filters, q.Filters...)
	out.Filters = append(out.Filters, filters...)
	return out
}

// payload is the request body of the analytics endpoint.
type payload struct {
	ServiceKey    string  `json:"service_key"`
	QueryRequests []Query `json:"query_requests"`
}

// userPagePayload is the request body of the user page endpoint.
type userPagePayload struct {
	ServiceKey     string `json:"service_key"`
	StartTimestamp string `json:"start_timestamp"`
	EndTimestamp   string `json:"end_timestamp"`
}

// Response is the analytics response envelope.
type Response struct {
	QueryResults []QueryResult `json:"queryResults"`
}

// QueryResult holds the rows answering one query.
type QueryResult struct {
	ResponseItems []ResponseItem `json:"responseItems"`
}

// ResponseItem wraps one row.
type ResponseItem struct {
	Item record.Record `json:"item,omitempty"`
}

// Items flattens every envelope into records, skipping entries without an item.
func (r *Response) Items() []record.Record {
	if r == nil {
		return nil
	}

	var items []record.Record
	for _, qr := range r.QueryResults {
		for _, ri := range qr.ResponseItems {
			if ri.Item == nil {
				continue
			}
			items = append(items, ri.Item)
		}
	}
	return items
}
