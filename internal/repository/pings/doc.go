// Package pings implements the TTL ping store.
//
// The store keeps active ping events in memory and evicts expired ones
// lazily: every ReadActive call drops expired entries and writes the
// surviving set back. There is no background sweeper.
package pings
