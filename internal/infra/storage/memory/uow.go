package memory

import (
	"context"
	"errors"
	"sync"

	appoutbox "rentcancel/internal/app/outbox"
	"rentcancel/internal/app/uow"
	domainbooking "rentcancel/internal/domain/booking"
	domainlistings "rentcancel/internal/domain/listings"
)

var (
	ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")
	ErrUnitClosed           = errors.New("memory: unit of work already finished")
	ErrReadOnlyUnit         = errors.New("memory: write in read-only unit of work")
)

// Factory opens units of work over a shared Store.
type Factory struct {
	Store *Store
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Store == nil {
		return nil, ErrFactoryMisconfigured
	}
	u := &Unit{
		store:    f.Store,
		readOnly: opts.ReadOnly,
		bookings: make(map[domainbooking.BookingID]*domainbooking.Booking),
		listings: make(map[domainlistings.ListingID]*domainlistings.Listing),
	}
	u.bookingRepo = &BookingRepository{store: f.Store, unit: u}
	u.listingRepo = &ListingRepository{store: f.Store, unit: u}
	return u, nil
}

// Unit buffers writes and applies them atomically on Commit. Commit fails
// with ErrConcurrentUpdate when another unit committed the same booking first.
type Unit struct {
	mu       sync.Mutex
	store    *Store
	readOnly bool
	closed   bool

	bookings map[domainbooking.BookingID]*domainbooking.Booking
	listings map[domainlistings.ListingID]*domainlistings.Listing
	events   []appoutbox.EventRecord

	bookingRepo *BookingRepository
	listingRepo *ListingRepository
}

func (u *Unit) Listings() domainlistings.ListingRepository {
	return u.listingRepo
}

func (u *Unit) Booking() domainbooking.Repository {
	return u.bookingRepo
}

func (u *Unit) stagedBooking(id domainbooking.BookingID) (*domainbooking.Booking, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	b, ok := u.bookings[id]
	return b, ok
}

func (u *Unit) stagedListing(id domainlistings.ListingID) (*domainlistings.Listing, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	l, ok := u.listings[id]
	return l, ok
}

func (u *Unit) stageBooking(b *domainbooking.Booking) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.writable(); err != nil {
		return err
	}
	if staged, ok := u.bookings[b.ID]; ok {
		if staged.Version != b.Version {
			return domainbooking.ErrConcurrentUpdate
		}
	} else {
		u.store.mu.RLock()
		err := checkBookingVersion(u.store, b.ID, b.Version)
		u.store.mu.RUnlock()
		if err != nil {
			return err
		}
	}
	b.Version++
	u.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (u *Unit) stageListing(l *domainlistings.Listing) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.writable(); err != nil {
		return err
	}
	l.Version++
	u.listings[l.ID] = cloneListing(l)
	return nil
}

func (u *Unit) stageEvent(rec appoutbox.EventRecord) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.writable(); err != nil {
		return err
	}
	u.events = append(u.events, rec)
	return nil
}

// caller holds u.mu
func (u *Unit) writable() error {
	if u.closed {
		return ErrUnitClosed
	}
	if u.readOnly {
		return ErrReadOnlyUnit
	}
	return nil
}

func (u *Unit) Commit(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return ErrUnitClosed
	}
	u.closed = true

	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	for id, staged := range u.bookings {
		if err := checkBookingVersion(u.store, id, staged.Version-1); err != nil {
			return err
		}
	}
	for id, staged := range u.bookings {
		u.store.bookings[id] = staged
	}
	for id, staged := range u.listings {
		u.store.listings[id] = staged
	}
	for _, rec := range u.events {
		u.store.outbox = append(u.store.outbox, &outboxEntry{record: rec, state: stateNew})
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.closed = true
	u.bookings = nil
	u.listings = nil
	u.events = nil
	return nil
}

var _ uow.UoWFactory = Factory{}
var _ uow.UnitOfWork = (*Unit)(nil)
