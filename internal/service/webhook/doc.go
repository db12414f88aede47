// Package webhook receives messaging provider callbacks and turns them into
// State Actor operations.
//
// The handler verifies the request signature, decodes each event into one
// of a closed set of variants (follow, unfollow, text or location message,
// postback), applies it and replies to the user. Provider callbacks are
// always answered with 200 once the body has been read, except when the
// body is not JSON at all.
package webhook
