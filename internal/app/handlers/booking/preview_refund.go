package booking

import (
	"context"
	"strings"
	"time"

	"rentcancel/internal/app/dto"
	handlersupport "rentcancel/internal/app/handlers/support"
	"rentcancel/internal/app/queries"
	"rentcancel/internal/app/uow"
)

const previewRefundKey = "booking.refund.preview"

// PreviewRefundQuery shows the caller what Cancel would refund at At.
type PreviewRefundQuery struct {
	BookingID  string
	ActorID    string
	ActorRoles []string
	At         time.Time
}

func (q PreviewRefundQuery) Key() string { return previewRefundKey }

func (q PreviewRefundQuery) Validate() error {
	if strings.TrimSpace(q.BookingID) == "" {
		return ErrBookingIDRequired
	}
	if strings.TrimSpace(q.ActorID) == "" {
		return ErrActorRequired
	}
	return nil
}

type PreviewRefundHandler struct {
	UoWFactory uow.UoWFactory
	Now        func() time.Time
}

func (h *PreviewRefundHandler) Handle(ctx context.Context, q PreviewRefundQuery) (dto.RefundPreview, error) {
	if err := q.Validate(); err != nil {
		return dto.RefundPreview{}, err
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.RefundPreview{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	view, err := loadView(execCtx, unit, q.BookingID)
	if err != nil {
		return dto.RefundPreview{}, err
	}
	actor, err := resolveActor(view, q.ActorID, q.ActorRoles)
	if err != nil {
		return dto.RefundPreview{}, err
	}
	at := q.At
	if at.IsZero() {
		at = h.now()
	}
	breakdown, err := view.booking.EvaluateRefund(actor, view.listing.Policy(), at)
	if err != nil {
		return dto.RefundPreview{}, err
	}
	return dto.RefundPreview{
		BookingID: string(view.booking.ID),
		Status:    string(view.booking.Status),
		Actor:     string(actor),
		Refund:    dto.MapBreakdown(breakdown),
	}, nil
}

func (h *PreviewRefundHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

var _ queries.Handler[PreviewRefundQuery, dto.RefundPreview] = (*PreviewRefundHandler)(nil)
