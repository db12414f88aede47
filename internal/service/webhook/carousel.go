package webhook

import (
	"github.com/oshokin/pingbot/internal/domain/ping"
	"github.com/oshokin/pingbot/internal/messaging/line"
)

// CannedPing is one entry of the ping catalog offered to users.
type CannedPing struct {
	Title       string
	City        string
	Coordinates string
}

// CannedPings returns the catalog offered in the carousel.
func CannedPings() []CannedPing {
	return []CannedPing{
		{Title: "Ping 1", City: "Kinmen Island", Coordinates: "24.42695125386981, 118.22488092750645"},
		{Title: "Ping 2", City: "Taipei", Coordinates: "25.033916607697982, 121.565390818944"},
		{Title: "Ping 3", City: "Kaohsiung", Coordinates: "22.76081208289122, 120.24882050572171"},
	}
}

// carouselAltText is shown by clients that cannot render flex messages.
const carouselAltText = "Ping catalog"

// PingCarousel renders the catalog. Every bubble gets a fresh correlation id
// that travels in its button payload.
func PingCarousel(newID ping.IDGenerator) line.FlexMessage {
	catalog := CannedPings()
	bubbles := make([]line.Bubble, 0, len(catalog))

	for _, p := range catalog {
		id := newID()

		bubbles = append(bubbles, line.NewBubble(
			line.NewTextComponent(p.Title),
			line.NewTextComponent(p.City),
			line.NewTextComponent("UID: "+id),
			line.NewTextComponent(p.Coordinates),
			line.NewPostbackButton("Send", ping.ButtonPayload(p.Title, p.City, p.Coordinates, id)),
		))
	}

	return line.NewFlexCarousel(carouselAltText, bubbles...)
}
