// Package pb holds the gRPC glue of pingbot.v1.PingService.
//
// The service only exchanges protobuf well-known types (Empty, Struct,
// Timestamp), so the descriptor, client and server registration are
// written by hand against the standard proto codec and no protoc output
// is needed.
package pb
