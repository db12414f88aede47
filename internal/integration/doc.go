// Package integration holds end-to-end tests that run the real server
// against in-process fakes of the messaging provider and telemetry gateway.
package integration
