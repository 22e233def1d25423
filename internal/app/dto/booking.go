package dto

import (
	"time"

	domainbooking "rentcancel/internal/domain/booking"
	"rentcancel/internal/domain/refund"
	"rentcancel/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type RefundBreakdownDTO struct {
	Policy                string   `json:"policy"`
	Party                 string   `json:"party"`
	DaysUntilCheckIn      int      `json:"days_until_check_in"`
	SubtotalRefundPercent int      `json:"subtotal_refund_percent"`
	SubtotalRefund        MoneyDTO `json:"subtotal_refund"`
	CleaningFeeRefund     MoneyDTO `json:"cleaning_fee_refund"`
	ServiceFeeRefund      MoneyDTO `json:"service_fee_refund"`
	RefundAmount          MoneyDTO `json:"refund_amount"`
	CancellationFee       MoneyDTO `json:"cancellation_fee"`
	RefundPercentage      float64  `json:"refund_percentage"`
	IsInGracePeriod       bool     `json:"is_in_grace_period"`
}

type CancellationResult struct {
	BookingID       string             `json:"booking_id"`
	Status          string             `json:"status"`
	CancelledBy     string             `json:"cancelled_by"`
	CancelledAt     time.Time          `json:"cancelled_at"`
	RefundStatus    string             `json:"refund_status"`
	RefundReference string             `json:"refund_reference,omitempty"`
	Refund          RefundBreakdownDTO `json:"refund"`
}

type RefundPreview struct {
	BookingID string             `json:"booking_id"`
	Status    string             `json:"status"`
	Actor     string             `json:"actor"`
	Refund    RefundBreakdownDTO `json:"refund"`
}

type RefundSettlement struct {
	BookingID       string `json:"booking_id"`
	RefundStatus    string `json:"refund_status"`
	RefundReference string `json:"refund_reference,omitempty"`
}

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{
		Amount:   value.Amount,
		Currency: value.Currency,
	}
}

func MapBreakdown(b refund.Breakdown) RefundBreakdownDTO {
	amount := func(v int64) MoneyDTO { return MoneyDTO{Amount: v, Currency: b.Currency} }
	return RefundBreakdownDTO{
		Policy:                string(b.Policy),
		Party:                 string(b.Party),
		DaysUntilCheckIn:      b.DaysUntilCheckIn,
		SubtotalRefundPercent: b.SubtotalRefundPercent,
		SubtotalRefund:        amount(b.SubtotalRefund),
		CleaningFeeRefund:     amount(b.CleaningFeeRefund),
		ServiceFeeRefund:      amount(b.ServiceFeeRefund),
		RefundAmount:          amount(b.RefundAmount),
		CancellationFee:       amount(b.CancellationFee),
		RefundPercentage:      b.RefundPercentage,
		IsInGracePeriod:       b.IsInGracePeriod,
	}
}

func MapCancellation(booking *domainbooking.Booking) CancellationResult {
	out := CancellationResult{
		BookingID: string(booking.ID),
		Status:    string(booking.Status),
	}
	if c := booking.Cancellation; c != nil {
		out.CancelledBy = string(c.By)
		out.CancelledAt = c.At
		out.RefundStatus = string(c.RefundStatus)
		out.RefundReference = c.RefundReference
		out.Refund = MapBreakdown(c.Breakdown)
	}
	return out
}

func MapSettlement(booking *domainbooking.Booking) RefundSettlement {
	out := RefundSettlement{BookingID: string(booking.ID)}
	if c := booking.Cancellation; c != nil {
		out.RefundStatus = string(c.RefundStatus)
		out.RefundReference = c.RefundReference
	}
	return out
}
