package ping

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestEncodeDecode_Roundtrip ensures a stored ping survives the postback payload unchanged.
func TestEncodeDecode_Roundtrip(t *testing.T) {
	t.Parallel()

	want := Event{
		Title:         "Alert & evacuate",
		City:          "Harbor",
		Coordinates:   "25.03, 121.56",
		CorrelationID: "AMBER_RIVER_STONE",
		Expiry:        time.UnixMilli(1_700_000_060_000),
		Origin:        "U-creator",
	}

	got, err := Decode(Encode(want), "U-presser")
	require.NoError(t, err)
	require.Equal(t, want.Title, got.Title)
	require.Equal(t, want.City, got.City)
	require.Equal(t, want.Coordinates, got.Coordinates)
	require.Equal(t, want.CorrelationID, got.CorrelationID)
	require.Equal(t, want.ExpiryMillis(), got.ExpiryMillis())
	require.Equal(t, "U-presser", got.Origin)
}

// TestDecode_Placeholders verifies missing fields are substituted instead of failing.
func TestDecode_Placeholders(t *testing.T) {
	t.Parallel()

	got, err := Decode("title=Only+title", "")
	require.NoError(t, err)
	require.Equal(t, "Only title", got.Title)
	require.Equal(t, MissingCity, got.City)
	require.Equal(t, MissingCoordinates, got.Coordinates)
	require.Equal(t, MissingCorrelationID, got.CorrelationID)
	require.Equal(t, OriginUnknown, got.Origin)
	require.True(t, got.Expiry.IsZero())

	// Explicit origin in the payload wins over the sender.
	got, err = Decode("from=U-payload", "U-sender")
	require.NoError(t, err)
	require.Equal(t, "U-payload", got.Origin)
}

// TestDecode_Malformed keeps the usable fields and reports the parse error.
func TestDecode_Malformed(t *testing.T) {
	t.Parallel()

	got, err := Decode("title=ok&city=%zz", "U1")
	require.Error(t, err)
	require.Equal(t, "ok", got.Title)
	require.Equal(t, MissingCity, got.City)
	require.Equal(t, "U1", got.Origin)
}

// TestButtonPayload checks the carousel payload decodes into a ping candidate.
func TestButtonPayload(t *testing.T) {
	t.Parallel()

	raw := ButtonPayload("Ping 2", "Taipei", "25.03, 121.56", "A_B_C")
	require.NotContains(t, raw, "expiry")

	got, err := Decode(raw, "U1")
	require.NoError(t, err)
	require.Equal(t, "25.03,121.56", got.Coordinates)
	require.Equal(t, "A_B_C", got.CorrelationID)
}

// TestEvent_LatLonAndActive covers the small helpers on Event.
func TestEvent_LatLonAndActive(t *testing.T) {
	t.Parallel()

	now := time.Now()
	e := Event{Coordinates: "25.03, 121.56", Expiry: now.Add(time.Second)}

	lat, lon := e.LatLon()
	require.Equal(t, "25.03", lat)
	require.Equal(t, "121.56", lon)
	require.True(t, e.Active(now))
	require.False(t, e.Active(now.Add(time.Second)))

	lat, lon = Event{Coordinates: MissingCoordinates}.LatLon()
	require.Equal(t, "nolatlongprovided", lat)
	require.Empty(t, lon)

	require.Equal(t, "1, 2.5", FormatCoordinates(1, 2.5))
}

// TestNewCorrelationID checks the shape of generated ids.
func TestNewCorrelationID(t *testing.T) {
	t.Parallel()

	id := NewCorrelationID()
	parts := strings.Split(id, "_")
	require.Len(t, parts, correlationWordCount)

	for _, p := range parts {
		require.NotEmpty(t, p)
		require.Equal(t, strings.ToUpper(p), p)
	}
}
