package line

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
)

// DefaultBaseURL is the production Messaging API root.
const DefaultBaseURL = "https://api.line.me"

const (
	pushPath  = "/v2/bot/message/push"
	replyPath = "/v2/bot/message/reply"

	// maxErrorBody caps how much of an error response is kept.
	maxErrorBody = 4 << 10
)

var (
	// errTokenRequired is returned when no channel token is configured.
	errTokenRequired = errors.New("channel token must be provided")
	// errNoMessages is returned when a send carries no message parts.
	errNoMessages = errors.New("at least one message is required")
	// errRecipientRequired is returned when push has no recipient.
	errRecipientRequired = errors.New("recipient must be provided")
	// errReplyTokenRequired is returned when reply has no reply token.
	errReplyTokenRequired = errors.New("reply token must be provided")
)

// APIError is a non-2xx answer from the Messaging API.
type APIError struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int
	// Body is the (truncated) response body.
	Body string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("line api: status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the Messaging API with a channel access token.
type Client struct {
	// baseURL is the API root without a trailing slash.
	baseURL string
	// token is the channel access token.
	token string
	// httpClient performs the requests.
	httpClient *http.Client
	// callTimeout bounds each request; zero means no extra deadline.
	callTimeout time.Duration
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the API root, used to point at a test server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
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

// WithCallTimeout sets a timeout for every request.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// NewClient creates a client authenticated with token.
func NewClient(token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, errTokenRequired
	}

	c := &Client{
		baseURL:    DefaultBaseURL,
		token:      token,
		httpClient: http.DefaultClient,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// pushRequest is the body of a push call.
type pushRequest struct {
	To       string    `json:"to"`
	Messages []Message `json:"messages"`
}

// replyRequest is the body of a reply call.
type replyRequest struct {
	ReplyToken string    `json:"replyToken"`
	Messages   []Message `json:"messages"`
}

// Push sends messages to one user.
func (c *Client) Push(ctx context.Context, to string, messages ...Message) error {
	if to == "" {
		return errRecipientRequired
	}

	if len(messages) == 0 {
		return errNoMessages
	}

	if err := c.post(ctx, pushPath, pushRequest{To: to, Messages: messages}); err != nil {
		return fmt.Errorf("push to %s: %w", to, err)
	}

	return nil
}

// Reply answers one inbound event identified by its reply token.
func (c *Client) Reply(ctx context.Context, replyToken string, messages ...Message) error {
	if replyToken == "" {
		return errReplyTokenRequired
	}

	if len(messages) == 0 {
		return errNoMessages
	}

	if err := c.post(ctx, replyPath, replyRequest{ReplyToken: replyToken, Messages: messages}); err != nil {
		return fmt.Errorf("reply: %w", err)
	}

	return nil
}

// post sends body as JSON and treats any non-2xx status as an *APIError.
func (c *Client) post(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(errBody))}
	}

	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
