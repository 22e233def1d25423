package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentcancel/internal/app/commands"
	"rentcancel/internal/app/dto"
	bookinghandlers "rentcancel/internal/app/handlers/booking"
	"rentcancel/internal/app/middleware"
	domainbooking "rentcancel/internal/domain/booking"
	"rentcancel/internal/domain/refund"
	"rentcancel/internal/domain/shared/daterange"
	"rentcancel/internal/infra/storage/memory"
)

func seedDeferred(t *testing.T, store *memory.Store, id string) {
	t.Helper()
	ctx := context.Background()
	created := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	checkIn := created.AddDate(0, 1, 0)
	dr, err := daterange.New(checkIn, checkIn.AddDate(0, 0, 3))
	require.NoError(t, err)
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID: domainbooking.BookingID(id), ListingID: "lst-1", GuestID: "guest-1", Range: dr, Guests: 1,
		Pricing:   refund.Pricing{Subtotal: 300, CleaningFee: 30, GuestServiceFee: 15, Total: 345, Currency: "EUR", Nights: 3},
		CreatedAt: created,
	})
	require.NoError(t, err)
	require.NoError(t, b.MarkPaid("pay-"+id, created))
	_, err = b.Cancel(domainbooking.CancelParams{Actor: domainbooking.ActorHost, Reason: "maintenance", Policy: refund.PolicyStrict, Now: created.AddDate(0, 0, 5)})
	require.NoError(t, err)
	require.NoError(t, b.DeferRefund("timeout", created.AddDate(0, 0, 5)))
	require.NoError(t, memory.NewBookingRepository(store).Save(ctx, b))
}

func newBus(store *memory.Store, payments *memory.Payments) commands.Bus {
	base := commands.NewInMemoryBus()
	commands.RegisterHandler[bookinghandlers.SettleDeferredRefundCommand, *dto.RefundSettlement](base, bookinghandlers.SettleDeferredRefundCommand{}.Key(), &bookinghandlers.SettleDeferredRefundHandler{
		Payments: payments,
		Outbox:   memory.NewOutbox(store),
	})
	return middleware.ChainCommands(base, middleware.Transaction(memory.Factory{Store: store}, nil))
}

func TestRunOnceSettlesPendingRefunds(t *testing.T) {
	store := memory.NewStore()
	seedDeferred(t, store, "bk-1")
	seedDeferred(t, store, "bk-2")
	payments := memory.NewPayments()

	w := &Worker{UoWFactory: memory.Factory{Store: store}, Bus: newBus(store, payments)}
	settled, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, settled)
	assert.Equal(t, int64(345), payments.Refunded("bk-1"))
	assert.Equal(t, int64(345), payments.Refunded("bk-2"))

	settled, err = w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, settled)
}

func TestRunOnceKeepsFailuresPending(t *testing.T) {
	store := memory.NewStore()
	seedDeferred(t, store, "bk-1")
	payments := memory.NewPayments()
	payments.FailWith(errors.New("still down"))

	w := &Worker{UoWFactory: memory.Factory{Store: store}, Bus: newBus(store, payments)}
	settled, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, settled)

	b, err := memory.NewBookingRepository(store).ByID(context.Background(), "bk-1")
	require.NoError(t, err)
	assert.True(t, b.RefundOutstanding())
}

func TestRunRequiresDependencies(t *testing.T) {
	assert.ErrorIs(t, (&Worker{}).Run(context.Background()), ErrWorkerNotConfigured)
}
