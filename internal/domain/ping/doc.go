// Package ping contains the core domain types of pingbot.
//
// An Event is a short-lived, user-originated geotagged announcement; a
// Marker is an externally sourced point fetched fresh on every summary.
// The package also owns the key/value payload carried by postback buttons
// and the generator of human-readable correlation ids.
package ping
