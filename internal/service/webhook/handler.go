package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/oshokin/pingbot/internal/domain/alarm"
	"github.com/oshokin/pingbot/internal/domain/ping"
	"github.com/oshokin/pingbot/internal/geocode"
	"github.com/oshokin/pingbot/internal/logger"
	"github.com/oshokin/pingbot/internal/messaging/line"
)

// Reply texts.
const (
	instructionText = "Please select a message from the catalog or provide a custom message in the format {MESSAGE}.{LOCATION}"
	welcomeText     = "Welcome to Catalyst! " + instructionText
	greetingText    = "Hello Friend"
)

// RequestIDHeader echoes the id assigned to every webhook call.
const RequestIDHeader = "X-Request-ID"

// Actor is the subset of the State Actor the webhook drives.
type Actor interface {
	AlarmInit(ctx context.Context, enabled bool) time.Time
	AlarmState() alarm.State
	StorePingEvent(ctx context.Context, candidate ping.Event) (ping.Event, string)
	StorePostback(ctx context.Context, raw, sender string) (ping.Event, string)
	TrackUser(ctx context.Context, id string) error
	RemoveUser(ctx context.Context, id string) error
}

// Replier answers an inbound event.
type Replier interface {
	Reply(ctx context.Context, replyToken string, messages ...line.Message) error
}

// Geocoder resolves a free-text location.
type Geocoder interface {
	Lookup(ctx context.Context, query string) (geocode.Result, error)
}

// Options configures the handler.
type Options struct {
	// ChannelSecret verifies request signatures.
	ChannelSecret string
	// DemoActive arms the alarm and enables ping creation from messages.
	DemoActive bool
	// NewID generates correlation ids; defaults to ping.NewCorrelationID.
	NewID ping.IDGenerator
}

// Handler serves the webhook endpoint.
type Handler struct {
	actor    Actor
	replier  Replier
	geocoder Geocoder
	secret   string
	demo     bool
	newID    ping.IDGenerator
}

// NewHandler creates a webhook handler.
func NewHandler(actor Actor, replier Replier, geocoder Geocoder, opts Options) *Handler {
	h := &Handler{
		actor:    actor,
		replier:  replier,
		geocoder: geocoder,
		secret:   opts.ChannelSecret,
		demo:     opts.DemoActive,
		newID:    opts.NewID,
	}

	if h.newID == nil {
		h.newID = ping.NewCorrelationID
	}

	return h
}

// Register mounts the webhook and health routes.
func (h *Handler) Register(router gin.IRoutes) {
	router.POST("/", h.handleWebhook)
	router.GET("/healthz", h.handleHealth)
}

// NewRouter returns a gin engine with request ids, recovery and the handler routes.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestID())
	h.Register(router)

	return router
}

// requestID tags every request with a uuid and a named request logger.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		c.Header(RequestIDHeader, id)

		ctx := logger.WithName(c.Request.Context(), "webhook")
		ctx = logger.WithKV(ctx, "request_id", id)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// handleWebhook processes one provider callback.
func (h *Handler) handleWebhook(c *gin.Context) {
	ctx := c.Request.Context()

	// The alarm follows the demo flag on every call.
	next := h.actor.AlarmInit(ctx, h.demo)
	logger.DebugKV(ctx, "Next alarm", "next", next)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		logger.ErrorKV(ctx, "Cannot read webhook body", "error", err)
		c.Status(http.StatusBadRequest)

		return
	}

	if !validSignature(h.secret, body, c.GetHeader(signatureHeader)) {
		logger.Warn(ctx, "Invalid signature, ignoring events")
		c.Status(http.StatusOK)

		return
	}

	p, err := decodePayload(body)
	if err != nil {
		logger.ErrorKV(ctx, "Cannot decode webhook payload", "error", err)
		c.Status(http.StatusBadRequest)

		return
	}

	logger.InfoKV(ctx, "Webhook received", "destination", p.Destination, "events", len(p.Events))

	for i, raw := range p.Events {
		event, err := decodeEvent(raw)
		if err != nil {
			if errors.Is(err, errUnsupportedEvent) {
				logger.DebugKV(ctx, "Skipping event", "index", i, "reason", err)
			} else {
				logger.WarnKV(ctx, "Skipping malformed event", "index", i, "error", err)
			}

			continue
		}

		h.dispatch(ctx, event)
	}

	c.Status(http.StatusOK)
}

// dispatch applies one event.
func (h *Handler) dispatch(ctx context.Context, event Event) {
	ctx = logger.WithKV(ctx, "event", event.Kind())

	switch e := event.(type) {
	case FollowEvent:
		h.handleFollow(ctx, e)
	case UnfollowEvent:
		if err := h.actor.RemoveUser(ctx, e.UserID); err != nil {
			logger.ErrorKV(ctx, "Cannot remove user", "user_id", e.UserID, "error", err)
		}
	case TextMessageEvent:
		var published string
		if h.demo {
			published = h.publishText(ctx, e)
		}

		h.replyToMessage(ctx, e.ReplyToken, published)
	case LocationMessageEvent:
		var published string
		if h.demo {
			published = h.publishLocation(ctx, e)
		}

		h.replyToMessage(ctx, e.ReplyToken, published)
	case PostbackEvent:
		h.handlePostback(ctx, e)
	}
}

// handleFollow subscribes the user and welcomes them.
func (h *Handler) handleFollow(ctx context.Context, e FollowEvent) {
	if err := h.actor.TrackUser(ctx, e.UserID); err != nil {
		logger.ErrorKV(ctx, "Cannot track user", "user_id", e.UserID, "error", err)
	}

	h.reply(ctx, e.ReplyToken, h.withCarousel(line.NewText(welcomeText))...)
}

// handlePostback stores the ping carried by a catalog button.
func (h *Handler) handlePostback(ctx context.Context, e PostbackEvent) {
	h.actor.StorePostback(ctx, e.Data, e.UserID)

	h.reply(ctx, e.ReplyToken, h.withCarousel(
		line.NewText("Sent: "+e.Data),
		line.NewText(instructionText),
	)...)
}

// publishText stores a "TITLE.LOCATION" message once the location resolves
// and returns the stored payload. It returns "" when the text is not in that
// format or the lookup fails.
func (h *Handler) publishText(ctx context.Context, e TextMessageEvent) string {
	parts := make([]string, 0, 2)

	for _, part := range strings.Split(e.Text, ".") {
		if strings.TrimSpace(part) != "" {
			parts = append(parts, strings.TrimSpace(part))
		}
	}

	if len(parts) < 2 {
		return ""
	}

	title, location := parts[0], parts[1]

	if h.geocoder == nil {
		logger.Warn(ctx, "No geocoder configured, cannot resolve location")

		return ""
	}

	result, err := h.geocoder.Lookup(ctx, location)
	if err != nil {
		logger.WarnKV(ctx, "Cannot geocode location", "location", location, "error", err)

		return ""
	}

	_, payload := h.actor.StorePingEvent(ctx, ping.Event{
		Title:         title,
		City:          result.Label(),
		Coordinates:   result.Coordinates(),
		CorrelationID: h.newID(),
		Origin:        e.UserID,
	})

	return payload
}

// publishLocation stores a shared location pin and returns the stored payload.
func (h *Handler) publishLocation(ctx context.Context, e LocationMessageEvent) string {
	_, payload := h.actor.StorePingEvent(ctx, ping.Event{
		Title:         "Ping at " + e.Address,
		City:          e.Address,
		Coordinates:   ping.FormatCoordinates(e.Latitude, e.Longitude),
		CorrelationID: h.newID(),
		Origin:        e.UserID,
	})

	return payload
}

// replyToMessage answers every message, echoing the published payload if any.
func (h *Handler) replyToMessage(ctx context.Context, replyToken, published string) {
	messages := make([]line.Message, 0, 3)

	if published != "" {
		messages = append(messages, line.NewText(publishedText(ctx, published)))
	}

	if h.demo {
		messages = append(messages, line.NewText(instructionText))
	} else {
		messages = append(messages, line.NewText(greetingText))
	}

	h.reply(ctx, replyToken, h.withCarousel(messages...)...)
}

// publishedText confirms a stored ping to its author, reading the fields
// back from the payload the actor returned.
func publishedText(ctx context.Context, payload string) string {
	e, err := ping.Decode(payload, "")
	if err != nil {
		logger.WarnKV(ctx, "Stored ping payload is malformed", "payload", payload, "error", err)
	}

	return "New Message Published (" + e.CorrelationID + ") at " + e.City + " [" + e.Coordinates + "]: " + e.Title
}

// withCarousel appends the ping catalog when the demo is active.
func (h *Handler) withCarousel(messages ...line.Message) []line.Message {
	if h.demo {
		messages = append(messages, PingCarousel(h.newID))
	}

	return messages
}

// reply sends messages and logs failures.
func (h *Handler) reply(ctx context.Context, replyToken string, messages ...line.Message) {
	if replyToken == "" {
		logger.Debug(ctx, "No reply token, not replying")

		return
	}

	if err := h.replier.Reply(ctx, replyToken, messages...); err != nil {
		logger.ErrorKV(ctx, "Reply failed", "error", err)

		return
	}

	logger.DebugKV(ctx, "Reply sent", "messages", len(messages))
}

// healthResponse is the body of GET /healthz.
type healthResponse struct {
	Status string      `json:"status"`
	Alarm  alarmHealth `json:"alarm"`
}

// alarmHealth reports the scheduler state.
type alarmHealth struct {
	Status string `json:"status"`
	Period string `json:"period"`
	Next   string `json:"next,omitempty"`
}

// handleHealth reports liveness and the alarm state.
func (h *Handler) handleHealth(c *gin.Context) {
	state := h.actor.AlarmState()

	resp := healthResponse{
		Status: "ok",
		Alarm: alarmHealth{
			Status: state.Status(),
			Period: state.Period.String(),
		},
	}

	if !state.Next.IsZero() {
		resp.Alarm.Next = state.Next.UTC().Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, resp)
}
