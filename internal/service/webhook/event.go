package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event is one decoded webhook event.
type Event interface {
	// Kind names the variant for logging.
	Kind() string
}

// FollowEvent is sent when a user adds the bot.
type FollowEvent struct {
	ReplyToken string
	UserID     string
}

// UnfollowEvent is sent when a user blocks the bot.
type UnfollowEvent struct {
	UserID string
}

// TextMessageEvent carries a free-text message.
type TextMessageEvent struct {
	ReplyToken string
	UserID     string
	Text       string
}

// LocationMessageEvent carries a shared location pin.
type LocationMessageEvent struct {
	ReplyToken string
	UserID     string
	Address    string
	Latitude   float64
	Longitude  float64
}

// PostbackEvent is sent when a user presses a postback button.
type PostbackEvent struct {
	ReplyToken string
	UserID     string
	Data       string
}

// Kind implements Event.
func (FollowEvent) Kind() string { return "follow" }

// Kind implements Event.
func (UnfollowEvent) Kind() string { return "unfollow" }

// Kind implements Event.
func (TextMessageEvent) Kind() string { return "message/text" }

// Kind implements Event.
func (LocationMessageEvent) Kind() string { return "message/location" }

// Kind implements Event.
func (PostbackEvent) Kind() string { return "postback" }

var (
	// errUnsupportedEvent is returned for event or message types the bot ignores.
	errUnsupportedEvent = errors.New("unsupported event")
	// errMissingField is returned when a required field is absent.
	errMissingField = errors.New("missing required field")
)

// payload is the webhook request body.
type payload struct {
	Destination string            `json:"destination"`
	Events      []json.RawMessage `json:"events"`
}

// envelope holds the fields shared by every event type.
type envelope struct {
	Type       string          `json:"type"`
	ReplyToken string          `json:"replyToken"`
	Source     source          `json:"source"`
	Message    json.RawMessage `json:"message"`
	Postback   *postback       `json:"postback"`
}

// source identifies who triggered the event.
type source struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

// postback is the payload of a postback event.
type postback struct {
	Data string `json:"data"`
}

// message is the union of the supported message payloads.
type message struct {
	Type      string   `json:"type"`
	Text      string   `json:"text"`
	Address   string   `json:"address"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// decodePayload parses the request body into its raw events.
func decodePayload(body []byte) (payload, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return payload{}, fmt.Errorf("decode payload: %w", err)
	}

	return p, nil
}

// decodeEvent turns one raw event into its variant.
//
//nolint:ireturn // Event is a closed set of variants.
func decodeEvent(raw json.RawMessage) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	// Only events from individual users are handled.
	userID := ""
	if env.Source.Type == "user" {
		userID = env.Source.UserID
	}

	switch env.Type {
	case "follow":
		if userID == "" {
			return nil, fmt.Errorf("%w: source.userId", errMissingField)
		}

		return FollowEvent{ReplyToken: env.ReplyToken, UserID: userID}, nil
	case "unfollow":
		if userID == "" {
			return nil, fmt.Errorf("%w: source.userId", errMissingField)
		}

		return UnfollowEvent{UserID: userID}, nil
	case "postback":
		if env.Postback == nil {
			return nil, fmt.Errorf("%w: postback", errMissingField)
		}

		return PostbackEvent{ReplyToken: env.ReplyToken, UserID: userID, Data: env.Postback.Data}, nil
	case "message":
		return decodeMessage(env, userID)
	default:
		return nil, fmt.Errorf("%w: %q", errUnsupportedEvent, env.Type)
	}
}

// decodeMessage decodes the message payload of a message event.
//
//nolint:ireturn // Event is a closed set of variants.
func decodeMessage(env envelope, userID string) (Event, error) {
	if len(env.Message) == 0 {
		return nil, fmt.Errorf("%w: message", errMissingField)
	}

	var m message
	if err := json.Unmarshal(env.Message, &m); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	switch m.Type {
	case "text":
		return TextMessageEvent{ReplyToken: env.ReplyToken, UserID: userID, Text: m.Text}, nil
	case "location":
		if m.Latitude == nil || m.Longitude == nil {
			return nil, fmt.Errorf("%w: latitude/longitude", errMissingField)
		}

		return LocationMessageEvent{
			ReplyToken: env.ReplyToken,
			UserID:     userID,
			Address:    m.Address,
			Latitude:   *m.Latitude,
			Longitude:  *m.Longitude,
		}, nil
	default:
		return nil, fmt.Errorf("%w: message type %q", errUnsupportedEvent, m.Type)
	}
}
