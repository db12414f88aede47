// Package server runs the pingbot process: the webhook endpoint over HTTP
// and the ping query surface over gRPC, both backed by one State Actor.
package server
