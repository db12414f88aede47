// Package config defines the pingbot settings and provides helpers to load,
// validate and save them in YAML format.
//
// Secrets (channel token and secret, gateway token, geocoder key, query
// token) and the demo flag can be overridden from the environment so the
// settings file can be committed without them.
package config
