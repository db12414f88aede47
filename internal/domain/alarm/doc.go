// Package alarm contains the snapshot type of the summary alarm.
//
// State is what the query surface and the health endpoint report about the
// scheduler: whether it is armed, since when, and when it fires next.
package alarm
