// Package pings exposes the read-only ping query surface over gRPC.
//
// It depends on a small Service interface so handlers can be tested without
// the State Actor. Pings travel as a google.protobuf.Struct of the form
// {"pings": [{"uid", "title", "city", "lat", "lon", "expiry"}]}.
package pings
