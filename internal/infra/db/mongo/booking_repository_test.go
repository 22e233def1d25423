package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainbooking "rentcancel/internal/domain/booking"
	"rentcancel/internal/domain/refund"
	"rentcancel/internal/domain/shared/daterange"
)

func TestBookingDocumentKeepsCancellation(t *testing.T) {
	created := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)
	dr, err := daterange.New(created.AddDate(0, 0, 20), created.AddDate(0, 0, 23))
	require.NoError(t, err)
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID: "bk-1", ListingID: "lst-1", GuestID: "g-1", Range: dr, Guests: 2,
		Pricing:   refund.Pricing{Subtotal: 300, CleaningFee: 40, GuestServiceFee: 25, Taxes: 35, Total: 400, Currency: "EUR", Nights: 3},
		CreatedAt: created,
	})
	require.NoError(t, err)
	require.NoError(t, b.MarkPaid("pay-1", created))
	_, err = b.Cancel(domainbooking.CancelParams{Actor: domainbooking.ActorGuest, Reason: "sick", Policy: refund.PolicyStrict, Now: created.Add(time.Hour)})
	require.NoError(t, err)
	require.NoError(t, b.DeferRefund("gateway timeout", created.Add(time.Hour)))
	b.Version = 3

	got := newBookingDocument(b).toAggregate()
	assert.Equal(t, b.Pricing, got.Pricing)
	assert.Equal(t, b.Status, got.Status)
	assert.Equal(t, int64(3), got.Version)
	require.NotNil(t, got.Cancellation)
	assert.Equal(t, b.Cancellation.Breakdown, got.Cancellation.Breakdown)
	assert.Equal(t, domainbooking.RefundPending, got.Cancellation.RefundStatus)
	assert.Equal(t, "gateway timeout", got.Cancellation.LastRefundError)
	assert.True(t, got.Cancellation.RefundSettledAt.IsZero())
	assert.True(t, got.RefundOutstanding())
	assert.True(t, b.Range.CheckIn.Equal(got.Range.CheckIn))
}
