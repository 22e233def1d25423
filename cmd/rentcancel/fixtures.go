package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	domainauth "rentcancel/internal/domain/auth"
	domainbooking "rentcancel/internal/domain/booking"
	"rentcancel/internal/domain/listings"
	"rentcancel/internal/domain/refund"
	"rentcancel/internal/domain/shared/daterange"
	"rentcancel/internal/infra/storage/memory"
)

type fixtureSet struct {
	Listings []listingFixture `json:"listings"`
	Bookings []bookingFixture `json:"bookings"`
	Users    []userFixture    `json:"users"`
}

type listingFixture struct {
	ID                 string `json:"id"`
	Host               string `json:"host"`
	Title              string `json:"title"`
	Kind               string `json:"kind"`
	CancellationPolicy string `json:"cancellation_policy"`
}

// bookingFixture dates are relative to load time so the demo data never
// drifts into the past.
type bookingFixture struct {
	ID            string `json:"id"`
	ListingID     string `json:"listing_id"`
	GuestID       string `json:"guest_id"`
	Guests        int    `json:"guests"`
	BookedDaysAgo int    `json:"booked_days_ago"`
	CheckInInDays int    `json:"check_in_in_days"`
	Nights        int    `json:"nights"`
	Subtotal      int64  `json:"subtotal"`
	CleaningFee   int64  `json:"cleaning_fee"`
	ServiceFee    int64  `json:"service_fee"`
	Taxes         int64  `json:"taxes"`
	Currency      string `json:"currency"`
	PaymentRef    string `json:"payment_ref"`
}

type userFixture struct {
	ID    string   `json:"id"`
	Roles []string `json:"roles"`
}

func (a *application) loadFixtures(ctx context.Context, path string) error {
	if a.memoryStore == nil {
		a.logger.Info("fixtures skipped, only the memory backend accepts them")
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			a.logger.Info("fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	var set fixtureSet
	if err := json.Unmarshal(data, &set); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}
	return a.importFixtures(ctx, set, time.Now().UTC())
}

func (a *application) importFixtures(ctx context.Context, set fixtureSet, now time.Time) error {
	listingRepo := memory.NewListingRepository(a.memoryStore)
	bookingRepo := memory.NewBookingRepository(a.memoryStore)

	for _, fx := range set.Listings {
		l, err := listings.NewListing(listings.CreateListingParams{
			ID:                 listings.ListingID(fx.ID),
			Host:               listings.HostID(fx.Host),
			Title:              fx.Title,
			Kind:               listings.Kind(fx.Kind),
			CancellationPolicy: fx.CancellationPolicy,
			Now:                now,
		})
		if err != nil {
			a.logger.Error("fixture listing invalid", "listing_id", fx.ID, "error", err)
			continue
		}
		if err := listingRepo.Save(ctx, l); err != nil {
			return fmt.Errorf("store listing %s: %w", fx.ID, err)
		}
	}

	for _, fx := range set.Bookings {
		b, err := fx.build(now)
		if err != nil {
			a.logger.Error("fixture booking invalid", "booking_id", fx.ID, "error", err)
			continue
		}
		if err := bookingRepo.Save(ctx, b); err != nil {
			return fmt.Errorf("store booking %s: %w", fx.ID, err)
		}
	}

	for _, fx := range set.Users {
		roles := make([]domainauth.Role, 0, len(fx.Roles))
		for _, r := range fx.Roles {
			roles = append(roles, domainauth.Role(r))
		}
		session, err := a.auth.IssueSession(ctx, fx.ID, roles...)
		if err != nil {
			return fmt.Errorf("issue session for %s: %w", fx.ID, err)
		}
		a.logger.Info("fixture session", "user_id", fx.ID, "token", string(session.Token))
	}
	a.logger.Info("fixtures imported", "listings", len(set.Listings), "bookings", len(set.Bookings), "users", len(set.Users))
	return nil
}

func (fx bookingFixture) build(now time.Time) (*domainbooking.Booking, error) {
	bookedAt := now.AddDate(0, 0, -fx.BookedDaysAgo)
	checkIn := time.Date(now.Year(), now.Month(), now.Day(), 15, 0, 0, 0, time.UTC).AddDate(0, 0, fx.CheckInInDays)
	dr, err := daterange.New(checkIn, checkIn.AddDate(0, 0, fx.Nights))
	if err != nil {
		return nil, err
	}
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:        domainbooking.BookingID(fx.ID),
		ListingID: listings.ListingID(fx.ListingID),
		GuestID:   fx.GuestID,
		Range:     dr,
		Guests:    fx.Guests,
		Pricing: refund.Pricing{
			Subtotal:        fx.Subtotal,
			CleaningFee:     fx.CleaningFee,
			GuestServiceFee: fx.ServiceFee,
			Taxes:           fx.Taxes,
			Total:           fx.Subtotal + fx.CleaningFee + fx.ServiceFee + fx.Taxes,
			Currency:        fx.Currency,
			Nights:          fx.Nights,
		},
		CreatedAt: bookedAt,
	})
	if err != nil {
		return nil, err
	}
	if err := b.MarkPaid(fx.PaymentRef, bookedAt); err != nil {
		return nil, err
	}
	b.ClearEvents()
	return b, nil
}

func fixturesPath() string {
	if p := os.Getenv("FIXTURES_PATH"); p != "" {
		return p
	}
	candidates := []string{
		filepath.Join("data", "fixtures.json"),
		filepath.Join("..", "..", "data", "fixtures.json"),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return candidates[0]
}
