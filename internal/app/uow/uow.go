package uow

import (
	"context"

	domainbooking "rentcancel/internal/domain/booking"
	domainlistings "rentcancel/internal/domain/listings"
)

// UnitOfWork gives handlers one consistent view of bookings and listings.
// Nothing written through it is visible to others before Commit.
type UnitOfWork interface {
	Listings() domainlistings.ListingRepository
	Booking() domainbooking.Repository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

type TxOptions struct {
	ReadOnly bool
}
