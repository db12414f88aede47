package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/pingbot/internal/domain/alarm"
	"github.com/oshokin/pingbot/internal/domain/ping"
	"github.com/oshokin/pingbot/internal/geocode"
	"github.com/oshokin/pingbot/internal/messaging/line"
)

const testSecret = "channel-secret"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// fakeActor records the operations the handler performs.
type fakeActor struct {
	mu        sync.Mutex
	alarmInit []bool
	stored    []ping.Event
	postbacks []string
	tracked   []string
	removed   []string
	trackErr  error
	// payload, when set, replaces the encoding StorePingEvent returns.
	payload string
}

// AlarmInit implements Actor.
func (f *fakeActor) AlarmInit(_ context.Context, enabled bool) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.alarmInit = append(f.alarmInit, enabled)

	return time.Time{}
}

// AlarmState implements Actor.
func (f *fakeActor) AlarmState() alarm.State {
	return alarm.State{
		IsEnabled: true,
		Period:    30 * time.Second,
		Next:      time.Date(2024, 5, 1, 12, 0, 30, 0, time.UTC),
	}
}

// StorePingEvent implements Actor.
func (f *fakeActor) StorePingEvent(_ context.Context, candidate ping.Event) (ping.Event, string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stored = append(f.stored, candidate)

	if f.payload != "" {
		return candidate, f.payload
	}

	return candidate, ping.Encode(candidate)
}

// StorePostback implements Actor.
func (f *fakeActor) StorePostback(_ context.Context, raw, sender string) (ping.Event, string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.postbacks = append(f.postbacks, sender+"|"+raw)

	return ping.Event{}, raw
}

// TrackUser implements Actor.
func (f *fakeActor) TrackUser(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.tracked = append(f.tracked, id)

	return f.trackErr
}

// RemoveUser implements Actor.
func (f *fakeActor) RemoveUser(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.removed = append(f.removed, id)

	return nil
}

// reply is one recorded Reply call.
type reply struct {
	token    string
	messages []line.Message
}

// fakeReplier records replies.
type fakeReplier struct {
	mu      sync.Mutex
	replies []reply
	err     error
}

// Reply implements Replier.
func (f *fakeReplier) Reply(_ context.Context, replyToken string, messages ...line.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.replies = append(f.replies, reply{token: replyToken, messages: messages})

	return f.err
}

// fakeGeocoder answers lookups with lookupFn.
type fakeGeocoder struct {
	queries  []string
	lookupFn func(query string) (geocode.Result, error)
}

// Lookup implements Geocoder.
func (f *fakeGeocoder) Lookup(_ context.Context, query string) (geocode.Result, error) {
	f.queries = append(f.queries, query)

	return f.lookupFn(query)
}

// harness bundles a router with its fakes.
type harness struct {
	router   *gin.Engine
	actor    *fakeActor
	replier  *fakeReplier
	geocoder *fakeGeocoder
}

// newHarness builds a router around fakes.
func newHarness(demo bool) *harness {
	h := &harness{
		actor:   new(fakeActor),
		replier: new(fakeReplier),
		geocoder: &fakeGeocoder{lookupFn: func(string) (geocode.Result, error) {
			return geocode.Result{
				Lat: "25.0339", Lon: "121.5645",
				Address: geocode.Address{Neighbourhood: "Xinyi", Suburb: "Xinyi District", City: "Taipei"},
			}, nil
		}},
	}

	handler := NewHandler(h.actor, h.replier, h.geocoder, Options{
		ChannelSecret: testSecret,
		DemoActive:    demo,
		NewID:         func() string { return "JADE_OAK_NOVA" },
	})
	h.router = NewRouter(handler)

	return h
}

// post sends a signed webhook body.
func (h *harness) post(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()

	return h.postWithSignature(t, body, Sign(testSecret, []byte(body)))
}

// postWithSignature sends body with an explicit signature header.
func (h *harness) postWithSignature(t *testing.T, body, signature string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	if signature != "" {
		req.Header.Set(signatureHeader, signature)
	}

	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	return rec
}

// texts extracts the text of every plain text message.
func texts(messages []line.Message) []string {
	var result []string

	for _, m := range messages {
		if tm, ok := m.(line.TextMessage); ok {
			result = append(result, tm.Text)
		}
	}

	return result
}

// hasCarousel reports whether the last message is the ping catalog.
func hasCarousel(messages []line.Message) bool {
	if len(messages) == 0 {
		return false
	}

	_, ok := messages[len(messages)-1].(line.FlexMessage)

	return ok
}

// event wraps raw events into a webhook body.
func event(events ...string) string {
	return `{"destination":"Ubot","events":[` + strings.Join(events, ",") + `]}`
}

const (
	followEvent   = `{"type":"follow","replyToken":"r-follow","mode":"active","source":{"type":"user","userId":"U1"},"follow":{"isUnblocked":false}}`
	unfollowEvent = `{"type":"unfollow","mode":"active","source":{"type":"user","userId":"U1"}}`
	locationEvent = `{"type":"message","replyToken":"r-loc","source":{"type":"user","userId":"U1"},
		"message":{"type":"location","id":"1","address":"Harbor","latitude":25.03,"longitude":121.56}}`
	postbackEvent = `{"type":"postback","replyToken":"r-pb","source":{"type":"user","userId":"U1"},
		"postback":{"data":"title=Ping+1&city=Taipei"}}`
)

// textEvent builds a text message event.
func textEvent(text string) string {
	return `{"type":"message","replyToken":"r-text","source":{"type":"user","userId":"U1"},
		"message":{"type":"text","id":"2","quoteToken":"q","text":"` + text + `"}}`
}

// TestWebhook_InvalidSignature ignores events but still answers 200.
func TestWebhook_InvalidSignature(t *testing.T) {
	t.Parallel()

	h := newHarness(true)

	rec := h.postWithSignature(t, event(followEvent), Sign("wrong", []byte(event(followEvent))))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.postWithSignature(t, event(followEvent), "")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Empty(t, h.actor.tracked)
	require.Empty(t, h.replier.replies)
	require.Equal(t, []bool{true, true}, h.actor.alarmInit)
}

// TestWebhook_UndecodableBody answers 400.
func TestWebhook_UndecodableBody(t *testing.T) {
	t.Parallel()

	h := newHarness(true)

	rec := h.post(t, "not json")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

// TestWebhook_FollowAndUnfollow tracks and removes users.
func TestWebhook_FollowAndUnfollow(t *testing.T) {
	t.Parallel()

	h := newHarness(true)

	rec := h.post(t, event(followEvent, unfollowEvent))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, []string{"U1"}, h.actor.tracked)
	require.Equal(t, []string{"U1"}, h.actor.removed)

	require.Len(t, h.replier.replies, 1)
	require.Equal(t, "r-follow", h.replier.replies[0].token)
	require.Equal(t, []string{welcomeText}, texts(h.replier.replies[0].messages))
	require.True(t, hasCarousel(h.replier.replies[0].messages))
}

// TestWebhook_FollowTrackFailureStillReplies keeps the user-facing reply.
func TestWebhook_FollowTrackFailureStillReplies(t *testing.T) {
	t.Parallel()

	h := newHarness(false)
	h.actor.trackErr = errors.New("db down")

	rec := h.post(t, event(followEvent))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, h.replier.replies, 1)
	require.False(t, hasCarousel(h.replier.replies[0].messages))
}

// TestWebhook_LocationMessage stores a ping and echoes it.
func TestWebhook_LocationMessage(t *testing.T) {
	t.Parallel()

	h := newHarness(true)

	rec := h.post(t, event(locationEvent))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, []ping.Event{{
		Title:         "Ping at Harbor",
		City:          "Harbor",
		Coordinates:   "25.03, 121.56",
		CorrelationID: "JADE_OAK_NOVA",
		Origin:        "U1",
	}}, h.actor.stored)

	require.Len(t, h.replier.replies, 1)
	require.Equal(t, []string{
		"New Message Published (JADE_OAK_NOVA) at Harbor [25.03, 121.56]: Ping at Harbor",
		instructionText,
	}, texts(h.replier.replies[0].messages))
	require.True(t, hasCarousel(h.replier.replies[0].messages))
}

// TestWebhook_LocationMessageEchoesStoredPayload builds the confirmation from
// what the actor stored, not from the candidate it was given.
func TestWebhook_LocationMessageEchoesStoredPayload(t *testing.T) {
	t.Parallel()

	h := newHarness(true)
	h.actor.payload = "title=Normalized&city=Dock+7&latlong=1.5%2C+2.5&randomPhrase=STORED_ID"

	rec := h.post(t, event(locationEvent))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, h.replier.replies, 1)
	require.Equal(t, "New Message Published (STORED_ID) at Dock 7 [1.5, 2.5]: Normalized",
		texts(h.replier.replies[0].messages)[0])
}

// TestWebhook_TextMessage geocodes TITLE.LOCATION messages.
func TestWebhook_TextMessage(t *testing.T) {
	t.Parallel()

	h := newHarness(true)

	rec := h.post(t, event(textEvent("Alert. Taipei 101")))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, []string{"Taipei 101"}, h.geocoder.queries)
	require.Len(t, h.actor.stored, 1)
	require.Equal(t, "Alert", h.actor.stored[0].Title)
	require.Equal(t, "Xinyi, Xinyi District, , Taipei", h.actor.stored[0].City)
	require.Equal(t, "25.0339, 121.5645", h.actor.stored[0].Coordinates)

	require.Equal(t, []string{
		"New Message Published (JADE_OAK_NOVA) at Xinyi, Xinyi District, , Taipei [25.0339, 121.5645]: Alert",
		instructionText,
	}, texts(h.replier.replies[0].messages))
}

// TestWebhook_TextMessageWithoutPing replies without storing anything.
func TestWebhook_TextMessageWithoutPing(t *testing.T) {
	t.Parallel()

	t.Run("not in title.location format", func(t *testing.T) {
		t.Parallel()

		h := newHarness(true)
		h.post(t, event(textEvent("hello")))

		require.Empty(t, h.geocoder.queries)
		require.Empty(t, h.actor.stored)
		require.Equal(t, []string{instructionText}, texts(h.replier.replies[0].messages))
	})

	t.Run("geocoder miss", func(t *testing.T) {
		t.Parallel()

		h := newHarness(true)
		h.geocoder.lookupFn = func(string) (geocode.Result, error) {
			return geocode.Result{}, geocode.ErrNotFound
		}

		h.post(t, event(textEvent("Alert.Atlantis")))

		require.Equal(t, []string{"Atlantis"}, h.geocoder.queries)
		require.Empty(t, h.actor.stored)
		require.Equal(t, []string{instructionText}, texts(h.replier.replies[0].messages))
		require.True(t, hasCarousel(h.replier.replies[0].messages))
	})

	t.Run("demo inactive", func(t *testing.T) {
		t.Parallel()

		h := newHarness(false)
		h.post(t, event(textEvent("Alert.Taipei"), locationEvent))

		require.Empty(t, h.geocoder.queries)
		require.Empty(t, h.actor.stored)
		require.Len(t, h.replier.replies, 2)

		for _, r := range h.replier.replies {
			require.Equal(t, []string{greetingText}, texts(r.messages))
			require.False(t, hasCarousel(r.messages))
		}

		require.Equal(t, []bool{false}, h.actor.alarmInit)
	})
}

// TestWebhook_Postback stores the button payload and confirms it.
func TestWebhook_Postback(t *testing.T) {
	t.Parallel()

	h := newHarness(true)
	h.replier.err = errors.New("reply rejected")

	rec := h.post(t, event(postbackEvent))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, []string{"U1|title=Ping+1&city=Taipei"}, h.actor.postbacks)
	require.Equal(t, []string{"Sent: title=Ping+1&city=Taipei", instructionText}, texts(h.replier.replies[0].messages))
}

// TestWebhook_SkipsUnsupportedEvents keeps processing the rest of the batch.
func TestWebhook_SkipsUnsupportedEvents(t *testing.T) {
	t.Parallel()

	h := newHarness(true)

	rec := h.post(t, event(
		`{"type":"join","replyToken":"r","source":{"type":"group","groupId":"G"}}`,
		`{"type":"message","replyToken":"r","source":{"type":"user","userId":"U1"},"message":{"type":"sticker"}}`,
		`{"type":"follow","source":{"type":"group","groupId":"G"}}`,
		followEvent,
	))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"U1"}, h.actor.tracked)
}

// TestHealth reports the alarm state.
func TestHealth(t *testing.T) {
	t.Parallel()

	h := newHarness(true)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "fixed-id")

	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "fixed-id", rec.Header().Get(RequestIDHeader))

	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, healthResponse{
		Status: "ok",
		Alarm:  alarmHealth{Status: "armed", Period: "30s", Next: "2024-05-01T12:00:30Z"},
	}, body)
}
