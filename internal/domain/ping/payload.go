package ping

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Payload keys. They match the postback data already attached to buttons
// sent to users, so they must not change.
const (
	keyCoordinates   = "latlong"
	keyExpiry        = "expiry"
	keyCity          = "city"
	keyTitle         = "title"
	keyCorrelationID = "randomPhrase"
	keyOrigin        = "from"
)

// Placeholders substituted for fields missing from a postback payload.
const (
	MissingCoordinates   = "no latlong provided"
	MissingCity          = "no city provided"
	MissingTitle         = "no title provided"
	MissingCorrelationID = "no UID provided"
)

// Encode renders the stored fields of e as a URL-encoded key/value payload.
// The origin is omitted; it is re-derived from whoever presses the button.
func Encode(e Event) string {
	values := url.Values{}
	values.Set(keyCoordinates, e.Coordinates)
	values.Set(keyCity, e.City)
	values.Set(keyTitle, e.Title)
	values.Set(keyCorrelationID, e.CorrelationID)

	if !e.Expiry.IsZero() {
		values.Set(keyExpiry, strconv.FormatInt(e.ExpiryMillis(), 10))
	}

	return values.Encode()
}

// ButtonPayload renders the payload attached to a carousel button.
// Coordinates lose their inner space to keep the payload short.
func ButtonPayload(title, city, coordinates, correlationID string) string {
	values := url.Values{}
	values.Set(keyTitle, title)
	values.Set(keyCity, city)
	values.Set(keyCoordinates, strings.ReplaceAll(coordinates, " ", ""))
	values.Set(keyCorrelationID, correlationID)

	return values.Encode()
}

// Decode reconstructs a ping candidate from a postback payload.
// Missing fields get placeholders; the origin falls back to sender and then
// to OriginUnknown. A malformed payload still yields a candidate together
// with the parse error so the caller can log it.
func Decode(raw, sender string) (Event, error) {
	values, parseErr := url.ParseQuery(raw)

	origin := sender
	if v, ok := lookup(values, keyOrigin); ok {
		origin = v
	}

	if origin == "" {
		origin = OriginUnknown
	}

	candidate := Event{
		Title:         valueOr(values, keyTitle, MissingTitle),
		City:          valueOr(values, keyCity, MissingCity),
		Coordinates:   valueOr(values, keyCoordinates, MissingCoordinates),
		CorrelationID: valueOr(values, keyCorrelationID, MissingCorrelationID),
		Origin:        origin,
	}

	// The expiry is informational only; the store always sets its own.
	if v, ok := lookup(values, keyExpiry); ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			candidate.Expiry = time.UnixMilli(ms)
		}
	}

	if parseErr != nil {
		return candidate, fmt.Errorf("parse postback payload: %w", parseErr)
	}

	return candidate, nil
}

// lookup returns the first value of key if the key is present.
func lookup(values url.Values, key string) (string, bool) {
	if !values.Has(key) {
		return "", false
	}

	return values.Get(key), true
}

// valueOr returns the value of key, or fallback when the key is absent.
func valueOr(values url.Values, key, fallback string) string {
	if v, ok := lookup(values, key); ok {
		return v
	}

	return fallback
}
