package ping

import (
	"math/rand/v2"
	"strings"
)

// correlationWords is the vocabulary for correlation ids. Short, distinct
// words that read well over a radio or in a chat bubble.
//
//nolint:gochecknoglobals // Read-only vocabulary.
var correlationWords = []string{
	"amber", "anchor", "arrow", "aspen", "atlas", "badge", "banner", "beacon",
	"birch", "blaze", "bolt", "breeze", "bridge", "canyon", "cedar", "comet",
	"copper", "coral", "crane", "crest", "delta", "dune", "eagle", "ember",
	"falcon", "fern", "flint", "forge", "frost", "garnet", "glacier", "granite",
	"harbor", "hawk", "hazel", "heron", "island", "ivory", "jade", "juniper",
	"kestrel", "lagoon", "lantern", "lark", "maple", "marble", "meadow", "mesa",
	"nova", "oak", "onyx", "orbit", "osprey", "pebble", "pine", "plume",
	"prairie", "quartz", "raven", "reef", "ridge", "river", "robin", "sable",
	"sage", "shore", "sierra", "slate", "spruce", "stone", "summit", "swift",
	"tide", "timber", "topaz", "tundra", "valley", "vapor", "willow", "zephyr",
}

// correlationWordCount is how many words form one id.
const correlationWordCount = 3

// IDGenerator produces correlation ids. Tests substitute a deterministic one.
type IDGenerator func() string

// NewCorrelationID returns three random upper-case words joined by "_",
// e.g. AMBER_RIVER_STONE. It is not globally unique.
func NewCorrelationID() string {
	words := make([]string, correlationWordCount)
	for i := range words {
		words[i] = strings.ToUpper(correlationWords[rand.IntN(len(correlationWords))]) //nolint:gosec // Not a secret.
	}

	return strings.Join(words, "_")
}
