package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	api "github.com/oshokin/pingbot/internal/api/grpc/pings"
	"github.com/oshokin/pingbot/internal/config"
	"github.com/oshokin/pingbot/internal/logger"
	"github.com/oshokin/pingbot/internal/service/common"
)

// Options controls the watcher polling behavior and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ServerAddress provides an optional gRPC server address override.
	ServerAddress string
	// PollInterval defines the interval between polls.
	PollInterval time.Duration
	// Once polls a single time and exits.
	Once bool
}

// DefaultPollInterval defines the fixed polling interval.
const DefaultPollInterval = 5 * time.Second

// querier is the subset of the client the watcher needs.
type querier interface {
	ListPings(ctx context.Context) ([]api.Record, error)
	GetAlarm(ctx context.Context) (time.Time, error)
}

// Run polls the query surface until the context is canceled.
// Settings are optional when an address is given on the command line.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "pingbot-watch")

	cfg, err := loadSettings(opts)
	if err != nil {
		return err
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	// Determine server address: command line argument overrides config.
	serverAddress := cfg.GRPCAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	clientOpts := []common.Option{
		common.WithCallTimeout(cfg.Timeout),
		common.WithToken(cfg.QueryToken),
	}

	// Detect current system actor for audit logging on the server side.
	if actor, err := common.DetectActor(); err == nil {
		clientOpts = append(clientOpts, common.WithActor(actor))
	} else {
		logger.WarnKV(ctx, "Cannot detect actor", "error", err)
	}

	client, err := common.Dial(ctx, serverAddress, clientOpts...)
	if err != nil {
		return fmt.Errorf("dial server: %w", err)
	}

	defer func() {
		_ = client.Close()
	}()

	logger.InfoKV(ctx, "Watching pings", "server_address", serverAddress, "interval", opts.PollInterval.String())

	if opts.Once {
		return poll(ctx, client)
	}

	return loop(ctx, client, opts.PollInterval)
}

// loadSettings reads the settings file. A missing file is tolerated when the
// server address comes from the command line; secrets then come from the
// environment only.
func loadSettings(opts *Options) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err == nil {
		return cfg, nil
	}

	if opts.ServerAddress == "" || !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	cfg = &config.Config{Timeout: config.DefaultTimeout}
	config.ApplyEnv(cfg, os.Getenv)

	return cfg, nil
}

// loop polls on every tick until the context is canceled.
func loop(ctx context.Context, client querier, interval time.Duration) error {
	// Setup polling ticker with fixed interval.
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")
			return nil
		case <-ticker.C:
			if err := poll(ctx, client); err != nil {
				logger.ErrorKV(ctx, "Poll failed", "error", err)
			}
		}
	}
}

// poll fetches and logs the alarm and the active pings.
func poll(ctx context.Context, client querier) error {
	next, err := client.GetAlarm(ctx)
	if err != nil {
		return err
	}

	if next.IsZero() {
		logger.Info(ctx, "Alarm: disarmed")
	} else {
		logger.Infof(ctx, "Alarm: next summary at %s", next.Format(time.RFC3339))
	}

	records, err := client.ListPings(ctx)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Active pings", "count", len(records))

	now := time.Now()

	for _, r := range records {
		expiresIn := time.UnixMilli(r.Expiry).Sub(now).Round(time.Second)

		logger.InfoKV(ctx, "Ping",
			"uid", r.UID,
			"title", r.Title,
			"city", r.City,
			"lat", r.Lat,
			"lon", r.Lon,
			"expires_in", expiresIn.String())
	}

	return nil
}
