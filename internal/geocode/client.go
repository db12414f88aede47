package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/oshokin/pingbot/internal/domain/ping"
)

// Address is the structured part of a search hit.
type Address struct {
	Neighbourhood string `json:"neighbourhood"`
	Suburb        string `json:"suburb"`
	Village       string `json:"village"`
	City          string `json:"city"`
	Country       string `json:"country"`
	Postcode      string `json:"postcode"`
}

// Result is one search hit. Latitude and longitude arrive as strings.
type Result struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Address     Address `json:"address"`
}

// Label returns the locality label shown in replies and summaries.
func (r Result) Label() string {
	return strings.Join([]string{
		r.Address.Neighbourhood,
		r.Address.Suburb,
		r.Address.Village,
		r.Address.City,
	}, ", ")
}

// Coordinates returns "lat, lon" with the precision normalised.
// Unparseable values are passed through as received.
func (r Result) Coordinates() string {
	lat, latErr := strconv.ParseFloat(r.Lat, 64)
	lon, lonErr := strconv.ParseFloat(r.Lon, 64)

	if latErr != nil || lonErr != nil {
		return r.Lat + ", " + r.Lon
	}

	return ping.FormatCoordinates(lat, lon)
}

var (
	// ErrNotFound is returned when the search has no hits.
	ErrNotFound = errors.New("location not found")
	// errBadStatus is returned for a non-200 answer.
	errBadStatus = errors.New("unexpected geocoder status")
	// errEmptyQuery is returned for a blank search.
	errEmptyQuery = errors.New("query must not be empty")
)

// Client queries the geocoder.
type Client struct {
	// searchURL is the full search endpoint.
	searchURL string
	// apiKey is sent as X-RapidAPI-Key.
	apiKey string
	// host is sent as X-RapidAPI-Host.
	host string
	// countryCodes restricts the search.
	countryCodes string
	// httpClient performs the requests.
	httpClient *http.Client
	// callTimeout bounds each search.
	callTimeout time.Duration
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithCallTimeout bounds every search.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithCountryCodes overrides the default "TW,US" restriction.
func WithCountryCodes(codes string) Option {
	return func(c *Client) {
		c.countryCodes = codes
	}
}

// NewClient creates a geocoder client.
func NewClient(searchURL, apiKey, host string, opts ...Option) *Client {
	c := &Client{
		searchURL:    searchURL,
		apiKey:       apiKey,
		host:         host,
		countryCodes: "TW,US",
		httpClient:   http.DefaultClient,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Lookup returns the best hit for query, or ErrNotFound.
func (c *Client) Lookup(ctx context.Context, query string) (Result, error) {
	results, err := c.Search(ctx, query)
	if err != nil {
		return Result{}, err
	}

	if len(results) == 0 {
		return Result{}, ErrNotFound
	}

	return results[0], nil
}

// Search queries the geocoder and returns at most one hit.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errEmptyQuery
	}

	endpoint, err := url.Parse(c.searchURL)
	if err != nil {
		return nil, fmt.Errorf("parse search url: %w", err)
	}

	params := endpoint.Query()
	params.Set("q", query)
	params.Set("countrycodes", c.countryCodes)
	params.Set("language", "en")
	params.Set("limit", "1")
	endpoint.RawQuery = params.Encode()

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("X-RapidAPI-Key", c.apiKey)
	req.Header.Set("X-RapidAPI-Host", c.host)

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

	var results []Result
	if err = json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return results, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
