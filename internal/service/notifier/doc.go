// Package notifier fans a composed message out to every subscriber.
//
// Each recipient is pushed independently: a failure is logged and reported
// in the returned outcomes, never surfaced as an error of the broadcast.
package notifier
