package midtrans

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"

	"rentcancel/internal/app/policies"
)

// refunder is the part of coreapi.Client the adapter uses.
type refunder interface {
	RefundTransaction(orderID string, req *coreapi.RefundReq) (*coreapi.RefundResponse, *midtrans.Error)
}

// Refunds issues refunds through the Midtrans Core API. The booking's
// payment reference is the Midtrans order id and the idempotency key is sent
// as refund_key, which Midtrans uses to reject duplicates.
type Refunds struct {
	client   refunder
	currency string
}

type Options struct {
	ServerKey  string
	Production bool
	// Currency the merchant account settles in. Defaults to IDR.
	Currency string
}

func New(opts Options) *Refunds {
	env := midtrans.Sandbox
	if opts.Production {
		env = midtrans.Production
	}
	var c coreapi.Client
	c.New(opts.ServerKey, env)
	return newWithClient(&c, opts.Currency)
}

func newWithClient(client refunder, currency string) *Refunds {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "IDR"
	}
	return &Refunds{client: client, currency: currency}
}

func (r *Refunds) Refund(ctx context.Context, instr policies.RefundInstruction) (policies.RefundReceipt, error) {
	if err := ctx.Err(); err != nil {
		return policies.RefundReceipt{}, err
	}
	if strings.TrimSpace(instr.PaymentRef) == "" {
		return policies.RefundReceipt{}, fmt.Errorf("%w: booking %s has no payment reference", policies.ErrRefundRejected, instr.BookingID)
	}
	if instr.Amount.Currency != r.currency {
		return policies.RefundReceipt{}, fmt.Errorf("%w: currency %s not supported, account settles in %s", policies.ErrRefundRejected, instr.Amount.Currency, r.currency)
	}
	resp, merr := r.client.RefundTransaction(instr.PaymentRef, &coreapi.RefundReq{
		RefundKey: instr.IdempotencyKey,
		Amount:    instr.Amount.Amount,
		Reason:    instr.Reason,
	})
	if merr != nil {
		return policies.RefundReceipt{}, classify(merr)
	}
	if resp == nil {
		return policies.RefundReceipt{}, errors.New("midtrans: empty refund response")
	}
	switch resp.StatusCode {
	case "200", "201":
	default:
		return policies.RefundReceipt{}, fmt.Errorf("%w: midtrans status %s: %s", policies.ErrRefundRejected, resp.StatusCode, resp.StatusMessage)
	}
	reference := resp.RefundKey
	if reference == "" {
		reference = instr.IdempotencyKey
	}
	return policies.RefundReceipt{Reference: "midtrans:" + resp.TransactionID + ":" + reference}, nil
}

// classify keeps 4xx answers as rejections and everything else as a
// transport failure worth retrying.
func classify(merr *midtrans.Error) error {
	code := merr.GetStatusCode()
	if code >= 400 && code < 500 {
		return fmt.Errorf("%w: midtrans %d: %s", policies.ErrRefundRejected, code, merr.GetMessage())
	}
	return fmt.Errorf("midtrans: refund failed (%d): %s", code, merr.GetMessage())
}

var _ policies.PaymentsPort = (*Refunds)(nil)
