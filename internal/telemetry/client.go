package telemetry

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

	"golang.org/x/sync/errgroup"

	"github.com/oshokin/pingbot/internal/domain/ping"
	"github.com/oshokin/pingbot/internal/logger"
)

// Query is one GraphQL query. Name is the root field of the response that
// holds the marker list.
type Query struct {
	Name     string
	Document string
}

var (
	// errBadStatus is returned for a non-200 gateway answer.
	errBadStatus = errors.New("unexpected gateway status")
	// errGraphQL is returned when the response carries an errors envelope.
	errGraphQL = errors.New("graphql errors in response")
	// errQueryPanicked is returned when a query panicked.
	errQueryPanicked = errors.New("query panicked")
)

// Client is the External Aggregator over a GraphQL gateway.
type Client struct {
	// gatewayURL is the GraphQL endpoint; empty disables fetching.
	gatewayURL string
	// token is sent as a bearer token when set.
	token string
	// queries are issued on every Fetch, results kept in this order.
	queries []Query
	// httpClient performs the requests.
	httpClient *http.Client
	// callTimeout bounds each query.
	callTimeout time.Duration
}

// Option configures the client.
type Option func(*Client)

// WithToken sets the bearer token.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithCallTimeout bounds every query.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// NewClient creates an aggregator for queries against gatewayURL.
func NewClient(gatewayURL string, queries []Query, opts ...Option) *Client {
	c := &Client{
		gatewayURL: gatewayURL,
		queries:    queries,
		httpClient: http.DefaultClient,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Fetch issues every query concurrently and concatenates the markers in
// query order. It never fails: a failed query yields no markers.
func (c *Client) Fetch(ctx context.Context) []ping.Marker {
	if c.gatewayURL == "" || len(c.queries) == 0 {
		return nil
	}

	results := make([][]ping.Marker, len(c.queries))

	var group errgroup.Group

	for i, query := range c.queries {
		group.Go(func() error {
			markers, err := c.guardedFetch(ctx, query)
			if err != nil {
				logger.ErrorKV(ctx, "Telemetry query failed", "query", query.Name, "error", err)

				return nil
			}

			results[i] = markers

			return nil
		})
	}

	// Goroutines never return errors; Wait only joins them.
	_ = group.Wait()

	var total int
	for _, r := range results {
		total += len(r)
	}

	markers := make([]ping.Marker, 0, total)
	for _, r := range results {
		markers = append(markers, r...)
	}

	return markers
}

// graphQLResponse is the envelope returned by the gateway.
type graphQLResponse struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []graphQLError             `json:"errors"`
}

// graphQLError is one entry of the errors envelope.
type graphQLError struct {
	Message string `json:"message"`
}

// guardedFetch runs fetchOne, turning a panic into an error for this query only.
func (c *Client) guardedFetch(ctx context.Context, query Query) (markers []ping.Marker, err error) {
	defer func() {
		if r := recover(); r != nil {
			markers, err = nil, fmt.Errorf("%w: %v", errQueryPanicked, r)
		}
	}()

	return c.fetchOne(ctx, query)
}

// fetchOne runs a single query.
func (c *Client) fetchOne(ctx context.Context, query Query) ([]ping.Marker, error) {
	payload, err := json.Marshal(map[string]string{"query": query.Document})
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.gatewayURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)

		return nil, fmt.Errorf("%w: %d", errBadStatus, resp.StatusCode)
	}

	var decoded graphQLResponse
	if err = json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(decoded.Errors) > 0 {
		messages := make([]string, 0, len(decoded.Errors))
		for _, e := range decoded.Errors {
			messages = append(messages, e.Message)
		}

		return nil, fmt.Errorf("%w: %s", errGraphQL, strings.Join(messages, "; "))
	}

	raw, ok := decoded.Data[query.Name]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var markers []ping.Marker
	if err = json.Unmarshal(raw, &markers); err != nil {
		return nil, fmt.Errorf("decode %s: %w", query.Name, err)
	}

	return markers, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
