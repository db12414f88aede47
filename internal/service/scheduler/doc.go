// Package scheduler implements the alarm that drives the periodic summary.
//
// The scheduler is either disarmed or armed with exactly one outstanding
// timer. Each fire runs the job inside a recover boundary and then re-arms
// itself at now+period, whatever the job did.
package scheduler
