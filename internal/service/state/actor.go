package state

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oshokin/pingbot/internal/domain/alarm"
	"github.com/oshokin/pingbot/internal/domain/ping"
	"github.com/oshokin/pingbot/internal/logger"
	"github.com/oshokin/pingbot/internal/messaging/line"
	"github.com/oshokin/pingbot/internal/repository/pings"
	"github.com/oshokin/pingbot/internal/repository/users"
	"github.com/oshokin/pingbot/internal/service/notifier"
	"github.com/oshokin/pingbot/internal/service/scheduler"
)

// Aggregator fetches external markers. It never fails.
type Aggregator interface {
	Fetch(ctx context.Context) []ping.Marker
}

// Broadcaster pushes one message to many recipients.
type Broadcaster interface {
	Broadcast(ctx context.Context, recipients []string, messages ...line.Message) []notifier.Outcome
}

// Deps are the collaborators of the actor.
type Deps struct {
	// Pings is the TTL store; required.
	Pings *pings.Store
	// Users is the subscriber registry; required.
	Users users.Registry
	// Aggregator is optional; nil means no external markers.
	Aggregator Aggregator
	// Dispatcher is required for summaries to be delivered.
	Dispatcher Broadcaster
	// AlarmPeriod is the summary interval.
	AlarmPeriod time.Duration
	// NewID generates correlation ids; defaults to ping.NewCorrelationID.
	NewID ping.IDGenerator
	// Now is the clock used for summary rendering; defaults to time.Now.
	Now func() time.Time
}

// Actor is the single mutable-state owner.
type Actor struct {
	// pingsMu serializes every access to pings.
	pingsMu sync.Mutex
	pings   *pings.Store

	// usersMu serializes every access to users.
	usersMu sync.Mutex
	users   users.Registry

	aggregator Aggregator
	dispatcher Broadcaster
	alarm      *scheduler.Scheduler
	newID      ping.IDGenerator
	now        func() time.Time
}

// New creates the actor and its disarmed alarm.
func New(deps Deps) *Actor {
	a := &Actor{
		pings:      deps.Pings,
		users:      deps.Users,
		aggregator: deps.Aggregator,
		dispatcher: deps.Dispatcher,
		newID:      deps.NewID,
		now:        deps.Now,
	}

	if a.newID == nil {
		a.newID = ping.NewCorrelationID
	}

	if a.now == nil {
		a.now = time.Now
	}

	a.alarm = scheduler.New(deps.AlarmPeriod, a.RunSummary)

	return a
}

// StorePingEvent normalizes candidate, inserts it with a fresh expiry and
// returns the stored event with its key/value encoding.
func (a *Actor) StorePingEvent(ctx context.Context, candidate ping.Event) (ping.Event, string) {
	candidate.Title = strings.TrimSpace(candidate.Title)
	candidate.City = strings.TrimSpace(candidate.City)
	candidate.Coordinates = strings.TrimSpace(candidate.Coordinates)

	if candidate.CorrelationID == "" {
		candidate.CorrelationID = a.newID()
	}

	if candidate.Origin == "" {
		candidate.Origin = ping.OriginUnknown
	}

	a.pingsMu.Lock()
	stored := a.pings.Insert(candidate)
	a.pingsMu.Unlock()

	logger.InfoKV(ctx, "Ping stored",
		"title", stored.Title,
		"city", stored.City,
		"coordinates", stored.Coordinates,
		"correlation_id", stored.CorrelationID,
		"origin", stored.Origin,
		"expiry", stored.Expiry.Format(time.RFC3339))

	return stored, ping.Encode(stored)
}

// StorePostback decodes a button payload, substituting placeholders for
// missing fields, and stores it like any other ping. A malformed payload is
// logged and still stored.
func (a *Actor) StorePostback(ctx context.Context, raw, sender string) (ping.Event, string) {
	candidate, err := ping.Decode(raw, sender)
	if err != nil {
		logger.WarnKV(ctx, "Postback payload is malformed, using placeholders", "error", err)
	}

	return a.StorePingEvent(ctx, candidate)
}

// GetPostbackData returns the active pings, compacting the store.
func (a *Actor) GetPostbackData(context.Context) []ping.Event {
	a.pingsMu.Lock()
	defer a.pingsMu.Unlock()

	return a.pings.ReadActive()
}

// TrackUser subscribes id to summaries.
func (a *Actor) TrackUser(ctx context.Context, id string) error {
	a.usersMu.Lock()
	defer a.usersMu.Unlock()

	if err := a.users.Add(ctx, id); err != nil {
		return fmt.Errorf("track user: %w", err)
	}

	logger.InfoKV(ctx, "User tracked", "user_id", id)

	return nil
}

// RemoveUser unsubscribes id.
func (a *Actor) RemoveUser(ctx context.Context, id string) error {
	a.usersMu.Lock()
	defer a.usersMu.Unlock()

	if err := a.users.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove user: %w", err)
	}

	logger.InfoKV(ctx, "User removed", "user_id", id)

	return nil
}

// RemoveAllUsers clears the registry.
func (a *Actor) RemoveAllUsers(ctx context.Context) error {
	a.usersMu.Lock()
	defer a.usersMu.Unlock()

	if err := a.users.Clear(ctx); err != nil {
		return fmt.Errorf("remove all users: %w", err)
	}

	logger.Info(ctx, "All users removed")

	return nil
}

// Users returns the current subscribers.
func (a *Actor) Users(ctx context.Context) ([]string, error) {
	a.usersMu.Lock()
	defer a.usersMu.Unlock()

	ids, err := a.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	return ids, nil
}

// AlarmInit arms the summary alarm when enabled and disarms it otherwise.
// It returns when the alarm fires next, zero when disarmed.
func (a *Actor) AlarmInit(ctx context.Context, enabled bool) time.Time {
	a.alarm.Init(ctx, enabled)

	return a.alarm.Next()
}

// AlarmState returns a snapshot of the summary alarm.
func (a *Actor) AlarmState() alarm.State {
	return a.alarm.State()
}

// Close disarms the alarm and releases the registry.
func (a *Actor) Close(ctx context.Context) error {
	a.alarm.Stop(ctx)

	a.usersMu.Lock()
	defer a.usersMu.Unlock()

	if err := a.users.Close(); err != nil {
		return fmt.Errorf("close users: %w", err)
	}

	return nil
}
