//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"

	api "github.com/oshokin/pingbot/internal/api/grpc/pings"
	"github.com/oshokin/pingbot/internal/config"
	pb "github.com/oshokin/pingbot/internal/pb/v1"
)

// Client wraps the gRPC PingService client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the pingbot server.
	conn *grpc.ClientConn
	// api is the PingService client interface.
	api pb.PingServiceClient

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
	// token is sent as a bearer token when set.
	token string
	// actor is reported to the server on every call when set.
	actor string
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithToken sets the bearer token required by the query surface.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithActor reports actor on every call.
func WithActor(actor Actor) Option {
	return func(c *Client) {
		c.actor = actor.String()
	}
}

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Dial establishes a gRPC connection to the pingbot server.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy until native TLS is added.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial pingbot server: %w", err)
	}

	client := &Client{
		conn:        conn,
		api:         pb.NewPingServiceClient(conn),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// ListPings retrieves the active pings.
func (c *Client) ListPings(ctx context.Context) ([]api.Record, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.ListPings(callCtx, new(emptypb.Empty))
	if err != nil {
		return nil, fmt.Errorf("list pings: %w", err)
	}

	records, err := api.DecodeRecords(resp)
	if err != nil {
		return nil, fmt.Errorf("list pings: %w", err)
	}

	return records, nil
}

// GetAlarm returns when the summary alarm fires next, zero when disarmed.
func (c *Client) GetAlarm(ctx context.Context) (time.Time, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	ts, err := c.api.GetAlarm(callCtx, new(emptypb.Empty))
	if err != nil {
		return time.Time{}, fmt.Errorf("get alarm: %w", err)
	}

	if ts.GetSeconds() == 0 && ts.GetNanos() == 0 {
		return time.Time{}, nil
	}

	return ts.AsTime(), nil
}

// ResetSubscribers removes every subscriber.
func (c *Client) ResetSubscribers(ctx context.Context) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if _, err := c.api.ResetSubscribers(callCtx, new(emptypb.Empty)); err != nil {
		return fmt.Errorf("reset subscribers: %w", err)
	}

	return nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline. Credentials and
// the actor are attached as outgoing metadata.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, api.AuthorizationKey, "Bearer "+c.token)
	}

	if c.actor != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, api.ActorKey, c.actor)
	}

	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
