package ping

import (
	"strconv"
	"strings"
	"time"
)

// OriginUnknown marks a ping whose creator could not be identified.
const OriginUnknown = "unknown"

// Event is one geotagged, time-boxed announcement.
type Event struct {
	// Title is the headline shown to subscribers.
	Title string
	// City is a display label for the location.
	City string
	// Coordinates is "lat, lon" in decimal degrees.
	Coordinates string
	// CorrelationID distinguishes concurrently created pings.
	CorrelationID string
	// Expiry is set by the store at insertion time.
	Expiry time.Time
	// Origin is the user id of the creator, or OriginUnknown.
	Origin string
}

// ExpiryMillis returns the expiry as milliseconds since the epoch.
func (e Event) ExpiryMillis() int64 {
	return e.Expiry.UnixMilli()
}

// Active reports whether the ping is still live at now.
func (e Event) Active(now time.Time) bool {
	return e.Expiry.After(now)
}

// LatLon splits Coordinates into its latitude and longitude parts.
// Missing parts are returned as empty strings.
func (e Event) LatLon() (string, string) {
	parts := strings.SplitN(strings.ReplaceAll(e.Coordinates, " ", ""), ",", 2)
	if len(parts) < 2 {
		return parts[0], ""
	}

	return parts[0], parts[1]
}

// Marker is a read-only projection of telemetry data.
type Marker struct {
	ID        string  `json:"uid"`
	Label     string  `json:"callsign"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Source    string  `json:"namespace"`
}

// FormatCoordinates renders a latitude/longitude pair as "lat, lon".
func FormatCoordinates(lat, lon float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + ", " + strconv.FormatFloat(lon, 'f', -1, 64)
}
