// Package state implements the State Actor: the single owner of the ping
// store, the subscriber registry and the summary alarm.
//
// Every read-modify-write of a collection runs under that collection's
// mutex. Network I/O (telemetry, pushes) always happens outside the locks.
package state
