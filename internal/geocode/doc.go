// Package geocode resolves free-text locations through the maptoolkit
// RapidAPI search endpoint.
package geocode
