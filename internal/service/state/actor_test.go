package state

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/pingbot/internal/domain/ping"
	"github.com/oshokin/pingbot/internal/messaging/line"
	"github.com/oshokin/pingbot/internal/repository/pings"
	"github.com/oshokin/pingbot/internal/repository/users"
	"github.com/oshokin/pingbot/internal/service/notifier"
)

// fakeAggregator returns markers from fetchFn.
type fakeAggregator struct {
	fetchFn func(ctx context.Context) []ping.Marker
}

// Fetch implements Aggregator.
func (f *fakeAggregator) Fetch(ctx context.Context) []ping.Marker {
	return f.fetchFn(ctx)
}

// broadcast is one recorded Broadcast call.
type broadcast struct {
	recipients []string
	text       string
}

// fakeBroadcaster records every Broadcast call.
type fakeBroadcaster struct {
	mu    sync.Mutex
	calls []broadcast
}

// Broadcast implements Broadcaster.
func (f *fakeBroadcaster) Broadcast(_ context.Context, recipients []string, messages ...line.Message) []notifier.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()

	var text string
	if len(messages) > 0 {
		if m, ok := messages[0].(line.TextMessage); ok {
			text = m.Text
		}
	}

	f.calls = append(f.calls, broadcast{recipients: recipients, text: text})

	outcomes := make([]notifier.Outcome, 0, len(recipients))
	for _, r := range recipients {
		outcomes = append(outcomes, notifier.Outcome{Recipient: r})
	}

	return outcomes
}

// Calls returns a copy of the recorded calls.
func (f *fakeBroadcaster) Calls() []broadcast {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]broadcast(nil), f.calls...)
}

// failingRegistry fails every operation.
type failingRegistry struct {
	users.MemoryRegistry
}

var errRegistryDown = errors.New("registry down")

// List implements users.Registry.
func (*failingRegistry) List(context.Context) ([]string, error) {
	return nil, errRegistryDown
}

// Add implements users.Registry.
func (*failingRegistry) Add(context.Context, string) error {
	return errRegistryDown
}

// fixture wires an actor with a fixed clock and fakes.
type fixture struct {
	actor      *Actor
	store      *pings.Store
	registry   users.Registry
	dispatcher *fakeBroadcaster
	markers    []ping.Marker
	now        time.Time
	mu         sync.Mutex
}

// Now returns the fixture time.
func (f *fixture) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.now
}

// Advance moves the fixture clock.
func (f *fixture) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.now = f.now.Add(d)
}

// newFixture builds an actor with an in-memory registry.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		registry:   users.NewMemoryRegistry(),
		dispatcher: new(fakeBroadcaster),
		now:        time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	f.store = pings.NewStore(time.Minute, pings.WithClock(f.Now))
	f.actor = New(Deps{
		Pings:       f.store,
		Users:       f.registry,
		Aggregator:  &fakeAggregator{fetchFn: func(context.Context) []ping.Marker { return f.markers }},
		Dispatcher:  f.dispatcher,
		AlarmPeriod: 30 * time.Second,
		NewID:       func() string { return "AMBER_RIVER_STONE" },
		Now:         f.Now,
	})

	return f
}

// TestActor_StorePingEvent_Normalizes fills defaults and sets expiry.
func TestActor_StorePingEvent_Normalizes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	stored, encoded := f.actor.StorePingEvent(ctx, ping.Event{
		Title:       " Alert ",
		City:        "Harbor",
		Coordinates: "25.03, 121.56",
		Expiry:      time.Unix(0, 0),
	})

	require.Equal(t, "Alert", stored.Title)
	require.Equal(t, "AMBER_RIVER_STONE", stored.CorrelationID)
	require.Equal(t, ping.OriginUnknown, stored.Origin)
	require.Equal(t, f.Now().Add(time.Minute), stored.Expiry)
	require.Contains(t, encoded, "expiry="+strconv.FormatInt(f.Now().Add(time.Minute).UnixMilli(), 10))

	active := f.actor.GetPostbackData(ctx)
	require.Len(t, active, 1)
	require.Equal(t, stored, active[0])

	f.Advance(61 * time.Second)
	require.Empty(t, f.actor.GetPostbackData(ctx))
	require.Zero(t, f.store.Len())
}

// TestActor_PostbackRoundtrip stores an encoded ping back through the postback path.
func TestActor_PostbackRoundtrip(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	original, encoded := f.actor.StorePingEvent(ctx, ping.Event{
		Title:         "Alert",
		City:          "Harbor",
		Coordinates:   "25.03, 121.56",
		CorrelationID: "JADE_OAK_NOVA",
		Origin:        "U1",
	})

	f.Advance(10 * time.Second)

	decoded, _ := f.actor.StorePostback(ctx, encoded, "U2")
	require.Equal(t, original.Title, decoded.Title)
	require.Equal(t, original.City, decoded.City)
	require.Equal(t, original.Coordinates, decoded.Coordinates)
	require.Equal(t, original.CorrelationID, decoded.CorrelationID)
	require.Equal(t, "U2", decoded.Origin)
	require.Equal(t, f.Now().Add(time.Minute), decoded.Expiry)

	placeholder, _ := f.actor.StorePostback(ctx, "%zz", "")
	require.Equal(t, ping.MissingTitle, placeholder.Title)
	require.Equal(t, ping.MissingCity, placeholder.City)
	require.Equal(t, ping.OriginUnknown, placeholder.Origin)

	require.Len(t, f.actor.GetPostbackData(ctx), 3)
}

// TestActor_ConcurrentInsertsLoseNothing serializes racing inserts and compactions.
func TestActor_ConcurrentInsertsLoseNothing(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	const writers = 64

	var wg sync.WaitGroup

	for i := range writers {
		wg.Go(func() {
			f.actor.StorePingEvent(ctx, ping.Event{Title: "p" + strconv.Itoa(i)})
		})
		wg.Go(func() {
			f.actor.GetPostbackData(ctx)
		})
	}

	wg.Wait()

	require.Len(t, f.actor.GetPostbackData(ctx), writers)
}

// TestActor_Users covers set semantics through the actor.
func TestActor_Users(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.actor.TrackUser(ctx, "A"))
	require.NoError(t, f.actor.TrackUser(ctx, "A"))
	require.NoError(t, f.actor.TrackUser(ctx, "B"))

	ids, err := f.actor.Users(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B"}, ids)

	require.NoError(t, f.actor.RemoveUser(ctx, "A"))
	ids, err = f.actor.Users(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"B"}, ids)

	require.NoError(t, f.actor.RemoveAllUsers(ctx))
	ids, err = f.actor.Users(ctx)
	require.NoError(t, err)
	require.Empty(t, ids)
}

// TestActor_RunSummary_SkipsWhenEmpty never invokes the dispatcher without content.
func TestActor_RunSummary_SkipsWhenEmpty(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.actor.TrackUser(ctx, "A"))

	f.actor.RunSummary(ctx)
	require.Empty(t, f.dispatcher.Calls())

	// An expired ping counts as empty as well.
	f.actor.StorePingEvent(ctx, ping.Event{Title: "old"})
	f.Advance(2 * time.Minute)

	f.actor.RunSummary(ctx)
	require.Empty(t, f.dispatcher.Calls())
}

// TestActor_RunSummary_Composition renders pings before markers.
func TestActor_RunSummary_Composition(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	f.markers = []ping.Marker{
		{ID: "m1", Label: "X", Latitude: 1.0, Longitude: 2.0, Source: "tak1"},
		{ID: "m2", Label: "Y", Latitude: 3.5, Longitude: -4.25, Source: "tak2"},
	}

	require.NoError(t, f.actor.TrackUser(ctx, "A"))
	require.NoError(t, f.actor.TrackUser(ctx, "B"))

	f.actor.StorePingEvent(ctx, ping.Event{Title: "Alert", Coordinates: "25.03, 121.56", CorrelationID: "JADE_OAK_NOVA"})
	f.Advance(15500 * time.Millisecond)

	f.actor.RunSummary(ctx)

	calls := f.dispatcher.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, []string{"A", "B"}, calls[0].recipients)
	require.Equal(t, "Summary of Current Events:\n"+
		"Line Message: Alert\n\tUUID: JADE_OAK_NOVA\n\tCoords: 25.03, 121.56\n\texpires in: 44.5s\n"+
		"TAK Point: X\n\tServer: tak1\n\tCoords: 1, 2\n"+
		"TAK Point: Y\n\tServer: tak2\n\tCoords: 3.5, -4.25", calls[0].text)
}

// TestActor_RunSummary_MarkersOnly broadcasts when only telemetry has data.
func TestActor_RunSummary_MarkersOnly(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	f.markers = []ping.Marker{{Label: "X", Latitude: 1, Longitude: 2, Source: "tak1"}}
	require.NoError(t, f.actor.TrackUser(ctx, "A"))

	f.actor.RunSummary(ctx)

	calls := f.dispatcher.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "Summary of Current Events:\nTAK Point: X\n\tServer: tak1\n\tCoords: 1, 2", calls[0].text)
}

// TestActor_RunSummary_ContainsFailures keeps panics and registry errors inside the job.
func TestActor_RunSummary_ContainsFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dispatcher := new(fakeBroadcaster)

	panicking := New(Deps{
		Pings:      pings.NewStore(time.Minute),
		Users:      users.NewMemoryRegistry(),
		Aggregator: &fakeAggregator{fetchFn: func(context.Context) []ping.Marker { panic("telemetry exploded") }},
		Dispatcher: dispatcher,
	})

	require.NotPanics(t, func() { panicking.RunSummary(ctx) })

	broken := New(Deps{
		Pings:      pings.NewStore(time.Minute),
		Users:      new(failingRegistry),
		Dispatcher: dispatcher,
	})

	broken.StorePingEvent(ctx, ping.Event{Title: "Alert"})
	require.NotPanics(t, func() { broken.RunSummary(ctx) })
	require.ErrorIs(t, broken.TrackUser(ctx, "A"), errRegistryDown)

	require.Empty(t, dispatcher.Calls())
}

// TestActor_AlarmDrivesSummary arms the alarm and observes a broadcast per period.
func TestActor_AlarmDrivesSummary(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()
		dispatcher := new(fakeBroadcaster)
		registry := users.NewMemoryRegistry()

		a := New(Deps{
			Pings:       pings.NewStore(time.Minute),
			Users:       registry,
			Dispatcher:  dispatcher,
			AlarmPeriod: 30 * time.Second,
		})

		require.NoError(t, a.TrackUser(ctx, "A"))
		a.StorePingEvent(ctx, ping.Event{Title: "Alert"})

		next := a.AlarmInit(ctx, true)
		require.True(t, next.Equal(time.Now().Add(30*time.Second)))
		require.True(t, a.AlarmState().IsEnabled)

		// Pings live for 60s: the fires at 30s and 60s see it only the first time.
		time.Sleep(95 * time.Second)
		synctest.Wait()

		require.Len(t, dispatcher.Calls(), 1)

		require.NoError(t, a.Close(ctx))
		require.False(t, a.AlarmState().IsEnabled)
		require.True(t, a.AlarmInit(ctx, false).IsZero())
	})
}
