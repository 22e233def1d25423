package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"rentcancel/internal/app/policies"
)

// Payments is a sandbox refund provider. It honours idempotency keys the
// way a real provider does and can be told to fail.
type Payments struct {
	mu       sync.Mutex
	receipts map[string]policies.RefundReceipt
	amounts  map[string]int64
	fail     error
	calls    int
}

func NewPayments() *Payments {
	return &Payments{
		receipts: make(map[string]policies.RefundReceipt),
		amounts:  make(map[string]int64),
	}
}

// FailWith makes every following refund fail with err until cleared with nil.
func (p *Payments) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = err
}

func (p *Payments) Refund(ctx context.Context, instr policies.RefundInstruction) (policies.RefundReceipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.fail != nil {
		return policies.RefundReceipt{}, p.fail
	}
	if receipt, ok := p.receipts[instr.IdempotencyKey]; ok {
		if p.amounts[instr.IdempotencyKey] != instr.Amount.Amount {
			return policies.RefundReceipt{}, fmt.Errorf("%w: key %s refunded %d, asked %d", policies.ErrRefundKeyConflict, instr.IdempotencyKey, p.amounts[instr.IdempotencyKey], instr.Amount.Amount)
		}
		receipt.Replayed = true
		return receipt, nil
	}
	receipt := policies.RefundReceipt{Reference: "sbx-" + uuid.NewString()}
	p.receipts[instr.IdempotencyKey] = receipt
	p.amounts[instr.IdempotencyKey] = instr.Amount.Amount
	return receipt, nil
}

// Refunded returns the total moved for key; zero when no refund happened.
func (p *Payments) Refunded(key string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.amounts[key]
}

func (p *Payments) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

var _ policies.PaymentsPort = (*Payments)(nil)
