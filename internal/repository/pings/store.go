package pings

import (
	"slices"
	"time"

	"github.com/oshokin/pingbot/internal/domain/ping"
)

// Store holds active pings. It is not safe for concurrent use: its owner
// must serialize every Insert and ReadActive, since both rewrite the
// underlying collection.
type Store struct {
	// ttl is the fixed lifetime given to every inserted ping.
	ttl time.Duration
	// now returns the current time; injectable for tests.
	now func() time.Time
	// events is the stored collection, possibly holding expired entries
	// until the next read.
	events []ping.Event
}

// Option configures the store.
type Option func(*Store)

// WithClock replaces time.Now as the store's time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates an empty store whose pings live for ttl.
func NewStore(ttl time.Duration, opts ...Option) *Store {
	s := &Store{
		ttl: ttl,
		now: time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Insert stores candidate with Expiry set to now + TTL and returns the stored event.
// Any expiry on the candidate is ignored.
func (s *Store) Insert(candidate ping.Event) ping.Event {
	candidate.Expiry = s.now().Add(s.ttl)
	s.events = append(s.events, candidate)

	return candidate
}

// ReadActive drops every ping with expiry <= now, persists the survivors as
// the new contents and returns a copy of them.
func (s *Store) ReadActive() []ping.Event {
	now := s.now()

	kept := slices.DeleteFunc(s.events, func(e ping.Event) bool {
		return !e.Active(now)
	})

	s.events = kept

	return slices.Clone(kept)
}

// Len returns the number of physically stored entries, expired ones included.
func (s *Store) Len() int {
	return len(s.events)
}
