package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "rentcancel/internal/domain/booking"
	"rentcancel/internal/domain/listings"
	"rentcancel/internal/domain/refund"
	domainrange "rentcancel/internal/domain/shared/daterange"
)

type BookingRepository struct {
	col *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	col := db.Collection("agg_booking")
	idx := mongo.IndexModel{Keys: bson.D{{Key: "cancellation.refund_status", Value: 1}, {Key: "cancellation.at", Value: 1}}}
	_, _ = col.Indexes().CreateOne(context.Background(), idx)
	return &BookingRepository{col: col}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", domainbooking.ErrBookingNotFound, id)
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

// Save writes the booking only if the stored version still equals
// b.Version. A lost race surfaces as ErrConcurrentUpdate.
func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	filter := bson.M{"_id": doc.ID, "version": b.Version}
	doc.Version = b.Version + 1
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(b.Version == 0)
	res, err := r.col.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) || isTransient(err) {
			return fmt.Errorf("%w: %s: %v", domainbooking.ErrConcurrentUpdate, b.ID, err)
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return fmt.Errorf("%w: %s", domainbooking.ErrConcurrentUpdate, b.ID)
	}
	b.Version = doc.Version
	return nil
}

func (r *BookingRepository) ListPendingRefunds(ctx context.Context, limit int) ([]*domainbooking.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "cancellation.at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.col.Find(ctx, bson.M{"cancellation.refund_status": string(domainbooking.RefundPending)}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*domainbooking.Booking
	for cur.Next(ctx) {
		var doc bookingDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cur.Err()
}

type bookingDocument struct {
	ID               string                `bson:"_id"`
	ListingID        string                `bson:"listing_id"`
	GuestID          string                `bson:"guest_id"`
	Range            rangeDocument         `bson:"range"`
	Guests           int                   `bson:"guests"`
	Pricing          pricingDocument       `bson:"pricing"`
	Status           string                `bson:"status"`
	PaymentReference string                `bson:"payment_reference"`
	Cancellation     *cancellationDocument `bson:"cancellation,omitempty"`
	CreatedAt        int64                 `bson:"created_at"`
	UpdatedAt        int64                 `bson:"updated_at"`
	Version          int64                 `bson:"version"`
}

type rangeDocument struct {
	CheckIn  int64 `bson:"check_in"`
	CheckOut int64 `bson:"check_out"`
}

type pricingDocument struct {
	Subtotal        int64  `bson:"subtotal"`
	CleaningFee     int64  `bson:"cleaning_fee"`
	GuestServiceFee int64  `bson:"guest_service_fee"`
	Taxes           int64  `bson:"taxes"`
	Total           int64  `bson:"total"`
	Currency        string `bson:"currency"`
	Nights          int    `bson:"nights"`
}

type cancellationDocument struct {
	By              string            `bson:"by"`
	Reason          string            `bson:"reason"`
	At              int64             `bson:"at"`
	Breakdown       breakdownDocument `bson:"breakdown"`
	RefundStatus    string            `bson:"refund_status"`
	RefundReference string            `bson:"refund_reference,omitempty"`
	RefundSettledAt int64             `bson:"refund_settled_at,omitempty"`
	LastRefundError string            `bson:"last_refund_error,omitempty"`
}

type breakdownDocument struct {
	Policy                string  `bson:"policy"`
	Party                 string  `bson:"party"`
	Currency              string  `bson:"currency"`
	DaysUntilCheckIn      int     `bson:"days_until_check_in"`
	SubtotalRefundPercent int     `bson:"subtotal_refund_percent"`
	SubtotalRefund        int64   `bson:"subtotal_refund"`
	CleaningFeeRefund     int64   `bson:"cleaning_fee_refund"`
	ServiceFeeRefund      int64   `bson:"service_fee_refund"`
	RefundAmount          int64   `bson:"refund_amount"`
	CancellationFee       int64   `bson:"cancellation_fee"`
	RefundPercentage      float64 `bson:"refund_percentage"`
	IsInGracePeriod       bool    `bson:"is_in_grace_period"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	p := b.Pricing
	doc := bookingDocument{
		ID:        string(b.ID),
		ListingID: string(b.ListingID),
		GuestID:   b.GuestID,
		Range:     rangeDocument{CheckIn: b.Range.CheckIn.UnixMilli(), CheckOut: b.Range.CheckOut.UnixMilli()},
		Guests:    b.Guests,
		Pricing: pricingDocument{
			Subtotal: p.Subtotal, CleaningFee: p.CleaningFee, GuestServiceFee: p.GuestServiceFee,
			Taxes: p.Taxes, Total: p.Total, Currency: p.Currency, Nights: p.Nights,
		},
		Status:           string(b.Status),
		PaymentReference: b.PaymentReference,
		CreatedAt:        b.CreatedAt.UnixMilli(),
		UpdatedAt:        b.UpdatedAt.UnixMilli(),
		Version:          b.Version,
	}
	if c := b.Cancellation; c != nil {
		bd := c.Breakdown
		doc.Cancellation = &cancellationDocument{
			By:     string(c.By),
			Reason: c.Reason,
			At:     c.At.UnixMilli(),
			Breakdown: breakdownDocument{
				Policy: string(bd.Policy), Party: string(bd.Party), Currency: bd.Currency,
				DaysUntilCheckIn: bd.DaysUntilCheckIn, SubtotalRefundPercent: bd.SubtotalRefundPercent,
				SubtotalRefund: bd.SubtotalRefund, CleaningFeeRefund: bd.CleaningFeeRefund,
				ServiceFeeRefund: bd.ServiceFeeRefund, RefundAmount: bd.RefundAmount,
				CancellationFee: bd.CancellationFee, RefundPercentage: bd.RefundPercentage,
				IsInGracePeriod: bd.IsInGracePeriod,
			},
			RefundStatus:    string(c.RefundStatus),
			RefundReference: c.RefundReference,
			LastRefundError: c.LastRefundError,
		}
		if !c.RefundSettledAt.IsZero() {
			doc.Cancellation.RefundSettledAt = c.RefundSettledAt.UnixMilli()
		}
	}
	return doc
}

func (d bookingDocument) toAggregate() *domainbooking.Booking {
	p := d.Pricing
	agg := &domainbooking.Booking{
		ID:        domainbooking.BookingID(d.ID),
		ListingID: listings.ListingID(d.ListingID),
		GuestID:   d.GuestID,
		Range:     domainrange.DateRange{CheckIn: timestampToTime(d.Range.CheckIn), CheckOut: timestampToTime(d.Range.CheckOut)},
		Guests:    d.Guests,
		Pricing: refund.Pricing{
			Subtotal: p.Subtotal, CleaningFee: p.CleaningFee, GuestServiceFee: p.GuestServiceFee,
			Taxes: p.Taxes, Total: p.Total, Currency: p.Currency, Nights: p.Nights,
		},
		Status:           domainbooking.Status(d.Status),
		PaymentReference: d.PaymentReference,
		CreatedAt:        timestampToTime(d.CreatedAt),
		UpdatedAt:        timestampToTime(d.UpdatedAt),
		Version:          d.Version,
	}
	if c := d.Cancellation; c != nil {
		bd := c.Breakdown
		agg.Cancellation = &domainbooking.Cancellation{
			By:     domainbooking.Actor(c.By),
			Reason: c.Reason,
			At:     timestampToTime(c.At),
			Breakdown: refund.Breakdown{
				Policy: refund.Policy(bd.Policy), Party: refund.Party(bd.Party), Currency: bd.Currency,
				DaysUntilCheckIn: bd.DaysUntilCheckIn, SubtotalRefundPercent: bd.SubtotalRefundPercent,
				SubtotalRefund: bd.SubtotalRefund, CleaningFeeRefund: bd.CleaningFeeRefund,
				ServiceFeeRefund: bd.ServiceFeeRefund, RefundAmount: bd.RefundAmount,
				CancellationFee: bd.CancellationFee, RefundPercentage: bd.RefundPercentage,
				IsInGracePeriod: bd.IsInGracePeriod,
			},
			RefundStatus:    domainbooking.RefundStatus(c.RefundStatus),
			RefundReference: c.RefundReference,
			LastRefundError: c.LastRefundError,
		}
		if c.RefundSettledAt != 0 {
			agg.Cancellation.RefundSettledAt = timestampToTime(c.RefundSettledAt)
		}
	}
	return agg
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
