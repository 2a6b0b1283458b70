package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/0xmhha/usage-report/pkg/logger"
	"github.com/0xmhha/usage-report/pkg/metrics"
)

// userPageSource labels user page requests in metrics.
const userPageSource = "USER_PAGE"

// Config contains client configuration.
type Config struct {
	// URL is the analytics query endpoint. Default: DefaultURL.
	URL string

	// UserPageURL is the user page endpoint. Default: DefaultUserPageURL.
	UserPageURL string

	// ServiceKey authenticates every request. Required.
	ServiceKey string

	// Timeout bounds each HTTP call. Default: 60s.
	Timeout time.Duration

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client

	// Logger receives request diagnostics. Default: logger.Noop().
	Logger logger.Logger

	// Metrics observes every request. Optional.
	Metrics *metrics.Collector
}

// Querier issues analytics queries.
type Querier interface {
	Query(ctx context.Context, queries ...Query) (*Response, error)
}

// Client calls the analytics service.
type Client struct {
	url         string
	userPageURL string
	serviceKey  string
	http        *http.Client
	log         logger.Logger
	metrics     *metrics.Collector
}

// NewClient creates a client. The service key is mandatory.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.ServiceKey) == "" {
		return nil, ErrMissingServiceKey
	}

	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.UserPageURL == "" {
		cfg.UserPageURL = DefaultUserPageURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Noop()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		url:         cfg.URL,
		userPageURL: cfg.UserPageURL,
		serviceKey:  cfg.ServiceKey,
		http:        httpClient,
		log:         cfg.Logger,
		metrics:     cfg.Metrics,
	}, nil
}

// Query POSTs the queries in a single request and decodes the envelope.
//
// Non-2xx responses return a *StatusError.
func (c *Client) Query(ctx context.Context, queries ...Query) (*Response, error) {
	source := "mixed"
	if len(queries) > 0 {
		source = queries[0].DataSource
	}

	start := time.Now()
	var resp Response
	err := c.post(ctx, c.url, payload{ServiceKey: c.serviceKey, QueryRequests: queries}, &resp)
	c.metrics.ObserveRequest(source, outcomeOf(err), time.Since(start), len(resp.Items()))
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// UserPage fetches the email to API key pairs seen in a timestamp window.
//
// The pairs are read from userTableStats when present. Otherwise the whole
// body is searched for objects carrying both an email and an apiKey.
func (c *Client) UserPage(ctx context.Context, startTimestamp, endTimestamp string) (map[string]string, error) {
	start := time.Now()
	var body interface{}
	err := c.post(ctx, c.userPageURL, userPagePayload{
		ServiceKey:     c.serviceKey,
		StartTimestamp: startTimestamp,
		EndTimestamp:   endTimestamp,
	}, &body)

	var pairs map[string]string
	if err == nil {
		pairs = extractPairs(body)
	}
	c.metrics.ObserveRequest(userPageSource, outcomeOf(err), time.Since(start), len(pairs))

	if err != nil {
		return nil, err
	}
	return pairs, nil
}

func (c *Client) post(ctx context.Context, url string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{StatusCode: resp.StatusCode, Text: string(raw)}
		var parsed interface{}
		if json.Unmarshal(raw, &parsed) == nil {
			se.Body = parsed
		}
		return se
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

func outcomeOf(err error) string {
	var se *StatusError
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.As(err, &se):
		return metrics.OutcomeHTTP
	case errors.Is(err, ErrInvalidResponse):
		return metrics.OutcomeDecode
	default:
		return metrics.OutcomeNetwork
	}
}

// extractPairs reads email/apiKey pairs from a user page response.
func extractPairs(body interface{}) map[string]string {
	pairs := make(map[string]string)

	if obj, ok := body.(map[string]interface{}); ok {
		if stats, ok := obj["userTableStats"].([]interface{}); ok {
			for _, s := range stats {
				if email, key, ok := pairOf(s); ok {
					pairs[email] = key
				}
			}
			return pairs
		}
	}

	var walk func(v interface{})
	walk = func(v interface{}) {
		switch t := v.(type) {
		case map[string]interface{}:
			if email, key, ok := pairOf(t); ok {
				pairs[email] = key
			}
			for _, child := range t {
				walk(child)
			}
		case []interface{}:
			for _, child := range t {
				walk(child)
			}
		}
	}
	walk(body)

	return pairs
}

func pairOf(v interface{}) (string, string, bool) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return "", "", false
	}
	email, _ := obj["email"].(string)
	key, _ := obj["apiKey"].(string)
	if email == "" || key == "" {
		return "", "", false
	}
	return email, key, true
}
