package memory

import (
	"context"
	"fmt"

	domainbooking "rentcancel/internal/domain/booking"
	domainlistings "rentcancel/internal/domain/listings"
)

// BookingRepository reads committed state and writes into the owning unit.
// Without a unit it writes straight through, which fixtures rely on.
type BookingRepository struct {
	store *Store
	unit  *Unit
}

func NewBookingRepository(store *Store) *BookingRepository {
	return &BookingRepository{store: store}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	if r.unit != nil {
		if staged, ok := r.unit.stagedBooking(id); ok {
			return cloneBooking(staged), nil
		}
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	b, ok := r.store.bookings[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domainbooking.ErrBookingNotFound, id)
	}
	return cloneBooking(b), nil
}

// Save accepts the booking only if its Version matches the stored one and
// bumps it. The same check is repeated on commit.
func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	if r.unit != nil {
		return r.unit.stageBooking(b)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := checkBookingVersion(r.store, b.ID, b.Version); err != nil {
		return err
	}
	b.Version++
	r.store.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (r *BookingRepository) ListPendingRefunds(ctx context.Context, limit int) ([]*domainbooking.Booking, error) {
	return r.store.pendingRefunds(limit), nil
}

// caller holds store.mu
func checkBookingVersion(store *Store, id domainbooking.BookingID, version int64) error {
	current, ok := store.bookings[id]
	switch {
	case !ok && version != 0:
		return fmt.Errorf("%w: %s no longer exists", domainbooking.ErrConcurrentUpdate, id)
	case ok && current.Version != version:
		return fmt.Errorf("%w: %s at version %d, have %d", domainbooking.ErrConcurrentUpdate, id, current.Version, version)
	}
	return nil
}

type ListingRepository struct {
	store *Store
	unit  *Unit
}

func NewListingRepository(store *Store) *ListingRepository {
	return &ListingRepository{store: store}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	if r.unit != nil {
		if staged, ok := r.unit.stagedListing(id); ok {
			return cloneListing(staged), nil
		}
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	l, ok := r.store.listings[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domainlistings.ErrNotFound, id)
	}
	return cloneListing(l), nil
}

func (r *ListingRepository) Save(ctx context.Context, l *domainlistings.Listing) error {
	if r.unit != nil {
		return r.unit.stageListing(l)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	l.Version++
	r.store.listings[l.ID] = cloneListing(l)
	return nil
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
var _ domainlistings.ListingRepository = (*ListingRepository)(nil)
