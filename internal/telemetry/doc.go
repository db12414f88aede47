// Package telemetry fetches external markers from a GraphQL gateway.
//
// Every configured query is issued concurrently. A query that fails for any
// reason (transport error, non-200 status, undecodable body, GraphQL error
// envelope) contributes zero markers and is logged; it never aborts its
// siblings or the caller.
package telemetry
