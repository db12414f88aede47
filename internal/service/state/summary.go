package state

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/oshokin/pingbot/internal/domain/ping"
	"github.com/oshokin/pingbot/internal/logger"
	"github.com/oshokin/pingbot/internal/messaging/line"
)

// summaryHeader opens every summary broadcast.
const summaryHeader = "Summary of Current Events:"

// RunSummary is the periodic job: it renders active pings and external
// markers and broadcasts them to every subscriber. Nothing escapes it.
func (a *Actor) RunSummary(ctx context.Context) {
	ctx = logger.WithName(ctx, "summary")

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorKV(ctx, "Summary failed", "panic", r)
		}
	}()

	events := a.GetPostbackData(ctx)
	pingLines := renderPings(events, a.now())

	var markers []ping.Marker
	if a.aggregator != nil {
		markers = a.aggregator.Fetch(ctx)
	}

	markerLines := renderMarkers(markers)

	if len(pingLines) == 0 && len(markerLines) == 0 {
		logger.Debug(ctx, "Nothing to summarize, skipping broadcast")

		return
	}

	recipients, err := a.Users(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Cannot read subscribers", "error", err)

		return
	}

	if len(recipients) == 0 || a.dispatcher == nil {
		logger.DebugKV(ctx, "No subscribers, skipping broadcast", "pings", len(pingLines), "markers", len(markerLines))

		return
	}

	message := composeSummary(pingLines, markerLines)
	a.dispatcher.Broadcast(ctx, recipients, line.NewText(message))
}

// composeSummary joins the header, ping lines and marker lines, in that order.
func composeSummary(pingLines, markerLines []string) string {
	lines := make([]string, 0, 1+len(pingLines)+len(markerLines))
	lines = append(lines, summaryHeader)
	lines = append(lines, pingLines...)
	lines = append(lines, markerLines...)

	return strings.Join(lines, "\n")
}

// renderPings renders one line per ping. The countdown may be zero or
// negative for pings at the edge of expiry.
func renderPings(events []ping.Event, now time.Time) []string {
	lines := make([]string, 0, len(events))

	for _, e := range events {
		secondsLeft := float64(e.Expiry.Sub(now).Milliseconds()) / 1000

		lines = append(lines, "Line Message: "+e.Title+
			"\n\tUUID: "+e.CorrelationID+
			"\n\tCoords: "+e.Coordinates+
			"\n\texpires in: "+strconv.FormatFloat(secondsLeft, 'f', -1, 64)+"s")
	}

	return lines
}

// renderMarkers renders one line per marker.
func renderMarkers(markers []ping.Marker) []string {
	lines := make([]string, 0, len(markers))

	for _, m := range markers {
		lines = append(lines, "TAK Point: "+m.Label+
			"\n\tServer: "+m.Source+
			"\n\tCoords: "+ping.FormatCoordinates(m.Latitude, m.Longitude))
	}

	return lines
}
