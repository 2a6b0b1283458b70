package analytics

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/usage-report/pkg/logger"
	"github.com/0xmhha/usage-report/pkg/record"
)

// fakeQuerier answers per api_key equality filter.
type fakeQuerier struct {
	byAccount map[string][]record.Record
	fail      map[string]error
	calls     []Query
}

func (f *fakeQuerier) Query(_ context.Context, queries ...Query) (*Response, error) {
	q := queries[0]
	f.calls = append(f.calls, q)

	var accounts []string
	for _, flt := range q.Filters {
		if flt.Name == "api_key" && flt.Op == OpEqual {
			accounts = append(accounts, flt.Value)
		}
	}

	resp := &Response{QueryResults: []QueryResult{{}}}
	for _, a := range accounts {
		if err, ok := f.fail[a]; ok {
			return nil, err
		}
		for _, r := range f.byAccount[a] {
			resp.QueryResults[0].ResponseItems = append(resp.QueryResults[0].ResponseItems, ResponseItem{Item: r})
		}
	}
	return resp, nil
}

func TestFetch_PerAccount(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{
		byAccount: map[string][]record.Record{
			"k1": {{"api_key": "k1", "prompts_used": "200"}, {"api_key": "k1", "prompts_used": "300"}},
			"k3": {{"api_key": "k3", "prompts_used": "10"}},
		},
		fail: map[string]error{"k2": &StatusError{StatusCode: 500, Text: "boom"}},
	}

	var logs bytes.Buffer
	f := NewFetcher(q, logger.New(logger.Config{Level: "debug", Writer: &logs}))

	res, err := f.Fetch(context.Background(), Request{
		Query:      NewQuery(DataSourceCascade, "2025-01-01", "2025-01-07", "api_key"),
		Accounts:   []string{"k1", "k2", "k3"},
		PerAccount: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Requests)
	assert.Equal(t, 1, res.Failed)
	assert.False(t, res.AllFailed())
	assert.Len(t, res.Records, 3)
	assert.Contains(t, res.Raw, "k1")
	assert.NotContains(t, res.Raw, "k2")
	assert.Contains(t, res.Raw, "k3")
	assert.Len(t, q.calls, 3)

	out := logs.String()
	assert.True(t, strings.Contains(out, "status=500"), "log should carry the status code:\n%s", out)
	assert.True(t, strings.Contains(out, "detail=boom"), "log should carry the body:\n%s", out)
}

func TestFetch_SingleRequestWithFilters(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{byAccount: map[string][]record.Record{
		"k1": {{"api_key": "k1"}},
		"k2": {{"api_key": "k2"}},
	}}

	res, err := NewFetcher(q, nil).Fetch(context.Background(), Request{
		Query:    NewQuery(DataSourceUser, "2025-01-01", "2025-01-07"),
		Accounts: []string{"k1", "k2"},
	})
	require.NoError(t, err)

	require.Len(t, q.calls, 1)
	assert.Len(t, q.calls[0].Filters, 4)
	assert.Equal(t, 1, res.Requests)
	assert.Len(t, res.Records, 2)
	assert.Contains(t, res.Raw, RawAll)
}

func TestFetch_NoDataIsNotFailure(t *testing.T) {
	t.Parallel()

	res, err := NewFetcher(&fakeQuerier{}, nil).Fetch(context.Background(), Request{
		Query: NewQuery(DataSourceCommand, "2025-01-01", "2025-01-07"),
	})
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Equal(t, 1, res.Requests)
	assert.Equal(t, 0, res.Failed)
}

func TestFetch_AllFailed(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{fail: map[string]error{
		"k1": errors.New("connection refused"),
		"k2": errors.New("connection refused"),
	}}

	res, err := NewFetcher(q, nil).Fetch(context.Background(), Request{
		Query:      NewQuery(DataSourceCascade, "2025-01-01", "2025-01-07"),
		Accounts:   []string{"k1", "k2"},
		PerAccount: true,
	})
	assert.ErrorIs(t, err, ErrAllRequestsFailed)
	require.NotNil(t, res)
	assert.True(t, res.AllFailed())
	assert.Empty(t, res.Records)
}

func TestFetch_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q := &fakeQuerier{}
	_, err := NewFetcher(q, nil).Fetch(ctx, Request{
		Query:      NewQuery(DataSourceCascade, "2025-01-01", "2025-01-07"),
		Accounts:   []string{"k1", "k2"},
		PerAccount: true,
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, q.calls)
}
