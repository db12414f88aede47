// Package common holds helpers shared by several services.
//
// It provides a lightweight PingService client wrapper with timeouts and
// bearer authentication, and detects the current system actor
// (username@hostname) that tools report to the server for audit logs.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
