package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "rentcancel/internal/domain/auth"
	"rentcancel/internal/infra/config"
	ginserver "rentcancel/internal/infra/http/gin"
	"rentcancel/internal/infra/obs"
)

func memoryConfig(t *testing.T) config.Config {
	return config.Config{
		Env:                 "test",
		HTTPAddr:            ":0",
		DataBackend:         config.BackendMemory,
		IdempotencyBackend:  config.BackendMemory,
		IdempotencyTTL:      time.Hour,
		SessionBackend:      config.BackendMemory,
		PaymentsProvider:    config.ProviderSandbox,
		LedgerPath:          filepath.Join(t.TempDir(), "ledger.db"),
		ReconcileInterval:   time.Minute,
		ReconcileBatchSize:  10,
		SessionTTL:          time.Hour,
		ShutdownGracePeriod: time.Second,
	}
}

func TestMemoryApplicationCancelsFixtureBooking(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := buildApplication(ctx, memoryConfig(t), logger)
	require.NoError(t, err)
	defer app.close(ctx)

	require.NoError(t, app.importFixtures(ctx, fixtureSet{
		Listings: []listingFixture{{ID: "lst-1", Host: "host-1", Title: "Loft", CancellationPolicy: "flexible"}},
		Bookings: []bookingFixture{{
			ID: "bk-1", ListingID: "lst-1", GuestID: "guest-1", Guests: 1,
			BookedDaysAgo: 10, CheckInInDays: 7, Nights: 2,
			Subtotal: 200, CleaningFee: 20, ServiceFee: 10, Currency: "USD", PaymentRef: "pay-1",
		}},
	}, time.Now().UTC()))
	session, err := app.auth.IssueSession(ctx, "guest-1", domainauth.RoleGuest)
	require.NoError(t, err)

	assert.Len(t, app.background, 2)
	server := ginserver.NewServer(memoryConfig(t), obs.Middleware{Logger: logger}, app.health, app.handlers)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/bk-1/cancel", strings.NewReader(`{"reason":"sick"}`))
	req.Header.Set("Authorization", "Bearer "+string(session.Token))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.Handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"refund_status":"settled"`)

	w = httptest.NewRecorder()
	server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFixtureBookingDatesAreRelative(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	b, err := bookingFixture{
		ID: "bk-2", ListingID: "lst-1", GuestID: "guest-1", Guests: 2,
		BookedDaysAgo: 3, CheckInInDays: 5, Nights: 4,
		Subtotal: 400, ServiceFee: 40, Currency: "eur", PaymentRef: "pay-2",
	}.build(now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 6, 15, 0, 0, 0, time.UTC), b.Range.CheckIn)
	assert.Equal(t, int64(440), b.Pricing.Total)
	assert.Equal(t, "EUR", b.Pricing.Currency)
	assert.Empty(t, b.PendingEvents())
}
