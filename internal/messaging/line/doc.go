// Package line is a minimal client for the LINE Messaging API.
//
// Only the two operations pingbot needs are implemented: push a message to
// one user and reply to one inbound event. Messages are text or flex
// (bubble and carousel with postback buttons).
package line
