package memory

import (
	"sort"
	"sync"

	appoutbox "rentcancel/internal/app/outbox"
	domainbooking "rentcancel/internal/domain/booking"
	domainlistings "rentcancel/internal/domain/listings"
	"rentcancel/internal/domain/shared/events"
)

// Store holds the committed state shared by every unit of work. Aggregates
// are cloned on the way in and out so callers never alias stored values.
type Store struct {
	mu       sync.RWMutex
	bookings map[domainbooking.BookingID]*domainbooking.Booking
	listings map[domainlistings.ListingID]*domainlistings.Listing
	outbox   []*outboxEntry
}

func NewStore() *Store {
	return &Store{
		bookings: make(map[domainbooking.BookingID]*domainbooking.Booking),
		listings: make(map[domainlistings.ListingID]*domainlistings.Listing),
	}
}

// Events returns every committed outbox record in commit order.
func (s *Store) Events() []appoutbox.EventRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]appoutbox.EventRecord, 0, len(s.outbox))
	for _, e := range s.outbox {
		out = append(out, e.record)
	}
	return out
}

func (s *Store) pendingRefunds(limit int) []*domainbooking.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domainbooking.Booking, 0)
	for _, b := range s.bookings {
		if b.RefundOutstanding() {
			out = append(out, cloneBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Cancellation.At.Before(out[j].Cancellation.At)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func cloneBooking(b *domainbooking.Booking) *domainbooking.Booking {
	if b == nil {
		return nil
	}
	c := *b
	c.EventRecorder = events.EventRecorder{}
	if b.Cancellation != nil {
		cancellation := *b.Cancellation
		c.Cancellation = &cancellation
	}
	return &c
}

func cloneListing(l *domainlistings.Listing) *domainlistings.Listing {
	if l == nil {
		return nil
	}
	c := *l
	c.EventRecorder = events.EventRecorder{}
	return &c
}
