package analytics

import (
	"context"
	"errors"
	"fmt"

	"github.com/0xmhha/usage-report/pkg/identity"
	"github.com/0xmhha/usage-report/pkg/logger"
	"github.com/0xmhha/usage-report/pkg/record"
)

// RawAll keys the raw response of a fetch that was not split per account.
const RawAll = "all"

// Request describes one logical fetch.
type Request struct {
	// Query is the base query; date filters included.
	Query Query

	// Accounts restricts the fetch to these API keys. Empty means all.
	Accounts []string

	// PerAccount issues one request per account instead of a single request
	// carrying one equality filter per account.
	PerAccount bool
}

// Result is the outcome of a fetch.
type Result struct {
	// Records holds every extracted item, in request order.
	Records []record.Record

	// Raw maps account (or RawAll) to its decoded response. Failed
	// sub-requests have no entry.
	Raw map[string]*Response

	// Requests is the number of sub-requests issued.
	Requests int

	// Failed is the number of sub-requests that returned no response.
	Failed int
}

// AllFailed reports whether requests were issued and none succeeded.
func (r *Result) AllFailed() bool {
	return r.Requests > 0 && r.Failed == r.Requests
}

// Fetcher turns a Request into flat records.
type Fetcher interface {
	// Fetch issues the sub-requests sequentially. Failed sub-requests are
	// logged and contribute no records. The error is ErrAllRequestsFailed
	// when nothing succeeded, or the context error when cancelled.
	Fetch(ctx context.Context, req Request) (*Result, error)
}

type fetcher struct {
	client Querier
	log    logger.Logger
}

// NewFetcher creates a fetcher over a query client.
func NewFetcher(client Querier, log logger.Logger) Fetcher {
	if log == nil {
		log = logger.Noop()
	}
	return &fetcher{client: client, log: log}
}

// Fetch implements Fetcher.Fetch.
func (f *fetcher) Fetch(ctx context.Context, req Request) (*Result, error) {
	res := &Result{Raw: make(map[string]*Response)}
	log := f.log.With("data_source", req.Query.DataSource)

	if !req.PerAccount || len(req.Accounts) == 0 {
		q := req.Query
		for _, a := range req.Accounts {
			q = q.With(Equal("api_key", a))
		}
		if len(req.Accounts) > 0 {
			log.Info("filtering by account", "accounts", len(req.Accounts))
		}
		f.run(ctx, log, res, RawAll, q)
		return res, f.verdict(ctx, res)
	}

	log.Info("fetching per account", "accounts", len(req.Accounts))
	for _, a := range req.Accounts {
		if ctx.Err() != nil {
			break
		}
		f.run(ctx, log.With("account", identity.Redact(a)), res, a, req.Query.With(Equal("api_key", a)))
	}
	return res, f.verdict(ctx, res)
}

func (f *fetcher) run(ctx context.Context, log logger.Logger, res *Result, key string, q Query) {
	res.Requests++

	resp, err := f.client.Query(ctx, q)
	if err != nil {
		res.Failed++
		var se *StatusError
		if errors.As(err, &se) {
			log.Error("analytics request failed", "status", se.StatusCode, "detail", se.Detail())
		} else {
			log.Error("analytics request failed", "error", err)
		}
		return
	}

	items := resp.Items()
	res.Raw[key] = resp
	res.Records = append(res.Records, items...)
	log.Info("fetched records", "records", len(items))
}

func (f *fetcher) verdict(ctx context.Context, res *Result) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("fetch interrupted: %w", err)
	}
	if res.AllFailed() {
		return fmt.Errorf("%w (%d of %d)", ErrAllRequestsFailed, res.Failed, res.Requests)
	}
	return nil
}
