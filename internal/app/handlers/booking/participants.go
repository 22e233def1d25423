package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rentcancel/internal/app/policies"
	"rentcancel/internal/app/uow"
	domainauth "rentcancel/internal/domain/auth"
	domainbooking "rentcancel/internal/domain/booking"
	domainlistings "rentcancel/internal/domain/listings"
	"rentcancel/internal/domain/refund"
)

var (
	ErrNotParticipant     = errors.New("booking: actor is neither guest, host nor admin")
	ErrBookingIDRequired  = errors.New("booking: booking id required")
	ErrActorRequired      = errors.New("booking: actor required")
	ErrUnitOfWorkRequired = errors.New("booking: unit of work required")
)

// ProviderError reports that the payment provider did not confirm a refund.
// Nothing about the booking was committed when it is returned.
type ProviderError struct {
	BookingID string
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("booking %s: refund provider: %v", e.BookingID, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// refundFailure maps a failed provider call to the handler's error. A key
// that already refunded another amount means the stored cancellation and the
// money moved disagree, which no retry can repair.
func refundFailure(bookingID string, err error) error {
	if errors.Is(err, policies.ErrRefundKeyConflict) {
		return fmt.Errorf("%w: booking %s: %w", refund.ErrDataIntegrity, bookingID, err)
	}
	return &ProviderError{BookingID: bookingID, Err: err}
}

// deferrable reports whether a refund may be left pending for a later retry.
// Rejections are final, so they never are.
func deferrable(err error) bool {
	return !errors.Is(err, policies.ErrRefundRejected)
}

type bookingView struct {
	booking *domainbooking.Booking
	listing *domainlistings.Listing
}

// loadView reads the booking and its listing through one unit of work so the
// pricing snapshot and the policy come from the same consistent read.
func loadView(ctx context.Context, unit uow.UnitOfWork, bookingID string) (bookingView, error) {
	b, err := unit.Booking().ByID(ctx, domainbooking.BookingID(bookingID))
	if err != nil {
		return bookingView{}, err
	}
	l, err := unit.Listings().ByID(ctx, b.ListingID)
	if err != nil {
		if errors.Is(err, domainlistings.ErrNotFound) {
			return bookingView{}, fmt.Errorf("%w: listing %s of booking %s missing", refund.ErrDataIntegrity, b.ListingID, b.ID)
		}
		return bookingView{}, err
	}
	return bookingView{booking: b, listing: l}, nil
}

// resolveActor decides in which capacity actorID acts on the booking. The
// guest who owns it wins over any other capacity.
func resolveActor(view bookingView, actorID string, roles []string) (domainbooking.Actor, error) {
	actorID = strings.TrimSpace(actorID)
	switch {
	case actorID == "":
		return "", ErrActorRequired
	case actorID == view.booking.GuestID:
		return domainbooking.ActorGuest, nil
	case actorID == string(view.listing.Host):
		return domainbooking.ActorHost, nil
	case hasRole(roles, domainauth.RoleAdmin):
		return domainbooking.ActorAdmin, nil
	default:
		return "", ErrNotParticipant
	}
}

func hasRole(roles []string, want domainauth.Role) bool {
	for _, r := range roles {
		if strings.EqualFold(strings.TrimSpace(r), string(want)) {
			return true
		}
	}
	return false
}
