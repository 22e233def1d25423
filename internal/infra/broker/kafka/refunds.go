package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"rentcancel/internal/app/commands"
	bookinghandlers "rentcancel/internal/app/handlers/booking"
)

const refundDeferredType = "booking.refund_deferred.v1"

// Inbox remembers which events a consumer has already handled.
type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// DeferredRefundHandler settles a refund as soon as its deferral event
// arrives instead of waiting for the next reconciliation pass.
type DeferredRefundHandler struct {
	Bus    commands.Bus
	Inbox  Inbox
	Logger *slog.Logger
}

type cloudEvent struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type refundDeferredData struct {
	BookingID string `json:"BookingID"`
}

func (h *DeferredRefundHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var evt cloudEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return fmt.Errorf("decode cloudevent: %w", err)
	}
	if evt.Type != refundDeferredType {
		return nil
	}
	var data refundDeferredData
	if err := json.Unmarshal(evt.Data, &data); err != nil {
		return fmt.Errorf("decode %s data: %w", evt.Type, err)
	}
	if data.BookingID == "" {
		return fmt.Errorf("%s %s without booking id", evt.Type, evt.ID)
	}
	if h.Inbox != nil {
		seen, err := h.Inbox.Seen(ctx, evt.ID)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}
	}
	if _, err := h.Bus.Dispatch(ctx, bookinghandlers.SettleDeferredRefundCommand{BookingID: data.BookingID}); err != nil {
		if h.Inbox != nil {
			if forgetErr := h.Inbox.Forget(ctx, evt.ID); forgetErr != nil && h.Logger != nil {
				h.Logger.WarnContext(ctx, "inbox forget failed, event will not be redelivered",
					"event_id", evt.ID, "booking_id", data.BookingID, "error", forgetErr)
			}
		}
		return err
	}
	if h.Logger != nil {
		h.Logger.InfoContext(ctx, "deferred refund settled from event", "booking_id", data.BookingID, "event_id", evt.ID)
	}
	return nil
}

var _ MessageHandler = (*DeferredRefundHandler)(nil)
