package server

import (
	"context"
	"fmt"

	api "github.com/oshokin/pingbot/internal/api/grpc/pings"
	"github.com/oshokin/pingbot/internal/config"
	"github.com/oshokin/pingbot/internal/geocode"
	"github.com/oshokin/pingbot/internal/logger"
	"github.com/oshokin/pingbot/internal/messaging/line"
	"github.com/oshokin/pingbot/internal/repository/pings"
	"github.com/oshokin/pingbot/internal/repository/users"
	"github.com/oshokin/pingbot/internal/service/notifier"
	"github.com/oshokin/pingbot/internal/service/state"
	"github.com/oshokin/pingbot/internal/service/webhook"
	"github.com/oshokin/pingbot/internal/telemetry"
)

// service is the composition root: one State Actor and the transports in front of it.
// It is unexported to keep the transports decoupled from the wiring.
type service struct {
	// actor owns pings, subscribers and the summary alarm.
	actor *state.Actor
	// webhook serves provider callbacks.
	webhook *webhook.Handler
	// queries serves the gRPC query surface.
	queries *api.Server
}

// newService wires every collaborator from the settings.
func newService(ctx context.Context, settings *config.Config) (*service, error) {
	lineClient, err := line.NewClient(settings.Line.ChannelToken,
		line.WithBaseURL(settings.Line.APIURL),
		line.WithCallTimeout(settings.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("create messaging client: %w", err)
	}

	registry, err := users.Open(ctx, settings.Users)
	if err != nil {
		return nil, fmt.Errorf("open users registry: %w", err)
	}

	actor := state.New(state.Deps{
		Pings:       pings.NewStore(settings.PingTTL),
		Users:       registry,
		Aggregator:  newAggregator(ctx, settings),
		Dispatcher:  notifier.NewDispatcher(lineClient, notifier.WithCallTimeout(settings.Timeout)),
		AlarmPeriod: settings.AlarmPeriod,
	})

	handler := webhook.NewHandler(actor, lineClient, newGeocoder(ctx, settings), webhook.Options{
		ChannelSecret: settings.Line.ChannelSecret,
		DemoActive:    settings.DemoActive,
	})

	logger.InfoKV(ctx, "Service wired",
		"users_driver", settings.Users.Driver,
		"demo_active", settings.DemoActive,
		"alarm_period", settings.AlarmPeriod.String(),
		"ping_ttl", settings.PingTTL.String())

	return &service{
		actor:   actor,
		webhook: handler,
		queries: api.NewServer(actor, settings.DemoActive),
	}, nil
}

// close disarms the alarm and releases the registry.
func (s *service) close(ctx context.Context) error {
	return s.actor.Close(ctx)
}

// newAggregator returns the telemetry client, or nil when no gateway is set.
//
//nolint:ireturn // nil means no external markers.
func newAggregator(ctx context.Context, settings *config.Config) state.Aggregator {
	if settings.Telemetry.GatewayURL == "" {
		logger.Warn(ctx, "No telemetry gateway configured, summaries contain pings only")

		return nil
	}

	queries := make([]telemetry.Query, 0, len(settings.Telemetry.Queries))
	for _, q := range settings.Telemetry.Queries {
		queries = append(queries, telemetry.Query{Name: q.Name, Document: q.Document})
	}

	return telemetry.NewClient(settings.Telemetry.GatewayURL, queries,
		telemetry.WithToken(settings.Telemetry.Token),
		telemetry.WithCallTimeout(settings.Timeout),
	)
}

// newGeocoder returns the geocoder, or nil when no API key is set.
//
//nolint:ireturn // nil disables TITLE.LOCATION pings.
func newGeocoder(ctx context.Context, settings *config.Config) webhook.Geocoder {
	if settings.Geocode.APIKey == "" {
		logger.Warn(ctx, "No geocoder API key configured, text pings are disabled")

		return nil
	}

	return geocode.NewClient(settings.Geocode.URL, settings.Geocode.APIKey, settings.Geocode.Host,
		geocode.WithCallTimeout(settings.Timeout),
	)
}
